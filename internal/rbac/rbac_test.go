package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDefaultPolicy(t *testing.T) {
	c := NewChecker(nil)
	cases := []struct {
		role, perm string
		want       bool
	}{
		{"lecturer", PermMaterialCreate, true},
		{"lecturer", PermMaterialDeleteOwn, true},
		{"lecturer", PermQuizView, true},
		{"student", PermQuizView, true},
		{"student", PermMaterialCreate, false},
		{"student", PermMaterialViewOwn, false},
		{"admin", "anything:at_all", true},
		{"", PermQuizView, false},
		{"ghost", PermQuizView, false},
	}
	for _, tc := range cases {
		if got := c.Has(tc.role, tc.perm); got != tc.want {
			t.Errorf("Has(%q, %q) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
	if !c.Any("student", PermMaterialCreate, PermQuizView) {
		t.Error("Any should match the second permission")
	}
}

func TestPrefixPattern(t *testing.T) {
	c := NewChecker(map[string][]string{"r": {"material:*"}})
	if !c.Has("r", "material:edit_own") || c.Has("r", "quiz:view") {
		t.Fatal("prefix match wrong")
	}
}

func TestRequire(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Require(PermMaterialCreate)(ok)

	for role, want := range map[string]int{
		"lecturer": http.StatusNoContent,
		"student":  http.StatusForbidden,
		"":         http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if role != "" {
			req = req.WithContext(WithRole(context.Background(), role))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("role %q: status %d, want %d", role, rec.Code, want)
		}
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(WithRole(context.Background(), "student"))
	RequireAny(PermMaterialViewOwn, PermQuizView)(ok).ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("RequireAny: status %d", rec.Code)
	}
}
