package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	authmw "github.com/mind-engage/mindengage-materials/internal/auth/middleware"
	"github.com/mind-engage/mindengage-materials/internal/material"
	"github.com/mind-engage/mindengage-materials/internal/rbac"
)

// MaterialService is what the lecturer routes need from material.Service.
type MaterialService interface {
	CreateMaterial(ctx context.Context, ownerID int64, f material.Fields, quizEnabled bool, questions []material.Draft, file material.Upload) (material.Report, error)
	EditMaterial(ctx context.Context, materialID, ownerID int64, f material.Fields, quizEnabled bool, changes []material.Change, file *material.Upload) (material.Report, error)
	DeleteMaterial(ctx context.Context, materialID, ownerID int64) (material.Report, error)
	GetMaterial(ctx context.Context, materialID, ownerID int64) (material.Detail, error)
	ListMaterials(ctx context.Context, ownerID int64) ([]material.Material, error)
	QuestionsForMaterial(ctx context.Context, materialID int64) ([]material.Question, error)
	QuizzesByCategory(ctx context.Context, categoryID, ownerID int64) ([]material.CategoryQuestion, error)
}

var errBadForm = errors.New("bad form")

// MountMaterials registers the lecturer routes on r. Requests must already
// carry a principal (see auth.JWTMiddleware).
func MountMaterials(r chi.Router, svc MaterialService, maxUpload int64) {
	r.With(rbac.Require(rbac.PermMaterialCreate)).
		Post("/materials", CreateMaterialHandler(svc, maxUpload))
	r.With(rbac.Require(rbac.PermMaterialViewOwn)).
		Get("/materials", ListMaterialsHandler(svc))
	r.With(rbac.Require(rbac.PermMaterialViewOwn)).
		Get("/materials/{id}", GetMaterialHandler(svc))
	r.With(rbac.Require(rbac.PermMaterialEditOwn)).
		Put("/materials/{id}", EditMaterialHandler(svc, maxUpload))
	r.With(rbac.Require(rbac.PermMaterialDeleteOwn)).
		Delete("/materials/{id}", DeleteMaterialHandler(svc))
	r.With(rbac.Require(rbac.PermQuizView)).
		Get("/by-material/{materialID}", QuestionsByMaterialHandler(svc))
	r.With(rbac.Require(rbac.PermMaterialViewOwn)).
		Get("/categories/{categoryID}/quizzes", QuizzesByCategoryHandler(svc))
}

// materialForm is the multipart body shared by create and edit.
type materialForm struct {
	fields      material.Fields
	quizEnabled bool
	questions   []byte
	upload      *material.Upload
	close       func()
}

func parseMaterialForm(w http.ResponseWriter, r *http.Request, maxUpload int64) (*materialForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		return nil, fmt.Errorf("%w: %w", errBadForm, err)
	}
	f := &materialForm{close: func() {}}
	f.fields.Title = r.FormValue("title")
	f.fields.Description = r.FormValue("description")
	if v := strings.TrimSpace(r.FormValue("category_id")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: category_id %q", errBadForm, v)
		}
		f.fields.CategoryID = id
	}
	if v := strings.TrimSpace(r.FormValue("isQuizEnabled")); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: isQuizEnabled %q", errBadForm, v)
		}
		f.quizEnabled = on
	}
	f.questions = []byte(r.FormValue("quizQuestions"))

	file, hdr, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		return nil, fmt.Errorf("%w: file: %v", errBadForm, err)
	default:
		f.upload = &material.Upload{Name: hdr.Filename, Body: file}
		f.close = func() { _ = file.Close() }
	}
	return f, nil
}

func principal(w http.ResponseWriter, r *http.Request) (authmw.Principal, bool) {
	p, ok := authmw.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
	return p, ok
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s", errBadForm, name)
	}
	return id, nil
}

// POST /lecturer/materials
func CreateMaterialHandler(svc MaterialService, maxUpload int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		form, err := parseMaterialForm(w, r, maxUpload)
		if err != nil {
			writeError(w, err)
			return
		}
		defer form.close()

		var drafts []material.Draft
		if form.quizEnabled {
			if drafts, err = material.DecodeDrafts(form.questions); err != nil {
				writeError(w, err)
				return
			}
		}
		var up material.Upload
		if form.upload != nil {
			up = *form.upload
		}
		rep, err := svc.CreateMaterial(r.Context(), p.UserID, form.fields, form.quizEnabled, drafts, up)
		if err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, rep)
	}
}

// PUT /lecturer/materials/{id}
func EditMaterialHandler(svc MaterialService, maxUpload int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		form, err := parseMaterialForm(w, r, maxUpload)
		if err != nil {
			writeError(w, err)
			return
		}
		defer form.close()

		changes, err := material.DecodeChanges(form.questions)
		if err != nil {
			writeError(w, err)
			return
		}
		rep, err := svc.EditMaterial(r.Context(), id, p.UserID, form.fields, form.quizEnabled, changes, form.upload)
		if err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, rep)
	}
}

// DELETE /lecturer/materials/{id}
func DeleteMaterialHandler(svc MaterialService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		rep, err := svc.DeleteMaterial(r.Context(), id, p.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, rep)
	}
}

func GetMaterialHandler(svc MaterialService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		d, err := svc.GetMaterial(r.Context(), id, p.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, d)
	}
}

func ListMaterialsHandler(svc MaterialService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		ms, err := svc.ListMaterials(r.Context(), p.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, ms)
	}
}

// GET /lecturer/by-material/{materialID}
func QuestionsByMaterialHandler(svc MaterialService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "materialID")
		if err != nil {
			writeError(w, err)
			return
		}
		qs, err := svc.QuestionsForMaterial(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, qs)
	}
}

// GET /lecturer/categories/{categoryID}/quizzes
func QuizzesByCategoryHandler(svc MaterialService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		cat, err := pathID(r, "categoryID")
		if err != nil {
			writeError(w, err)
			return
		}
		qs, err := svc.QuizzesByCategory(r.Context(), cat, p.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, qs)
	}
}

func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadForm),
		errors.Is(err, material.ErrInvalidQuizPayload),
		errors.Is(err, material.ErrInvalidFields),
		errors.Is(err, material.ErrFileRequired),
		errors.Is(err, material.ErrUnknownQuestion):
		return http.StatusBadRequest
	case errors.Is(err, material.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, material.ErrConstraintViolation):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	body := map[string]any{"error": err.Error()}
	var ee *material.EditError
	if errors.As(err, &ee) {
		body["state"] = ee.State
	}
	respondJSON(w, statusFor(err), body)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
