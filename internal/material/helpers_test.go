package material

import (
	"bytes"
	"context"
	"database/sql"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-materials/internal/db"
	"github.com/mind-engage/mindengage-materials/internal/storage"
)

const (
	lecturer1 int64 = 1
	lecturer2 int64 = 2
	catMath   int64 = 1
	catPhys   int64 = 2
)

type fixture struct {
	db       *sql.DB
	svc      *Service
	blobBase string
	logs     *bytes.Buffer
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "materials.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = dbh.Close() })
	mustExec(t, dbh,
		`INSERT INTO users (id, username, role) VALUES (1, 'lecturer1', 'lecturer'), (2, 'lecturer2', 'lecturer')`,
		`INSERT INTO categories (id, name) VALUES (1, 'Math'), (2, 'Physics')`,
	)
	return dbh
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dbh := openTestDB(t)
	base := filepath.Join(t.TempDir(), "blobs")
	blobs, err := storage.NewFSStore(base)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	svc := NewService(dbh, NewFiles(blobs, logger), logger)
	svc.now = func() time.Time { return time.Unix(1714000000, 0) }
	return &fixture{db: dbh, svc: svc, blobBase: base, logs: &buf}
}

func mustExec(t *testing.T, dbh *sql.DB, stmts ...string) {
	t.Helper()
	for _, s := range stmts {
		if _, err := dbh.Exec(s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}
}

func (fx *fixture) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	if err := fx.db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func (fx *fixture) questions(t *testing.T, materialID int64) []Question {
	t.Helper()
	qs, err := Store{}.ListQuestionsByMaterial(context.Background(), fx.db, materialID)
	if err != nil {
		t.Fatalf("list questions: %v", err)
	}
	return qs
}

func (fx *fixture) material(t *testing.T, id int64) Material {
	t.Helper()
	m, err := Store{}.GetMaterial(context.Background(), fx.db, id, lecturer1)
	if err != nil {
		t.Fatalf("get material %d: %v", id, err)
	}
	return m
}

func (fx *fixture) fileExists(key string) bool {
	_, err := os.Stat(filepath.Join(fx.blobBase, filepath.FromSlash(key)))
	return err == nil
}

func (fx *fixture) blobCount(t *testing.T) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(fx.blobBase, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return n
}

// create makes a material owned by lecturer1 in Math.
func (fx *fixture) create(t *testing.T, quizEnabled bool, drafts ...Draft) Report {
	t.Helper()
	rep, err := fx.svc.CreateMaterial(context.Background(), lecturer1, mathFields("Algebra"), quizEnabled, drafts, pdf("week1.pdf"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return rep
}

// trackQuestionWrites counts every insert, update and delete on quiz_questions.
func (fx *fixture) trackQuestionWrites(t *testing.T) func() int {
	t.Helper()
	mustExec(t, fx.db,
		`CREATE TABLE qq_writes (n INTEGER NOT NULL)`,
		`INSERT INTO qq_writes (n) VALUES (0)`,
		`CREATE TRIGGER qq_w_ins AFTER INSERT ON quiz_questions BEGIN UPDATE qq_writes SET n = n + 1; END`,
		`CREATE TRIGGER qq_w_upd AFTER UPDATE ON quiz_questions BEGIN UPDATE qq_writes SET n = n + 1; END`,
		`CREATE TRIGGER qq_w_del AFTER DELETE ON quiz_questions BEGIN UPDATE qq_writes SET n = n + 1; END`,
	)
	return func() int {
		var n int
		if err := fx.db.QueryRow(`SELECT n FROM qq_writes`).Scan(&n); err != nil {
			t.Fatal(err)
		}
		return n
	}
}

func mathFields(title string) Fields {
	return Fields{Title: title, Description: "lecture notes", CategoryID: catMath}
}

func draft(text, answer string, options ...string) Draft {
	return Draft{Text: text, Options: options, CorrectAnswer: answer}
}

func pdf(name string) Upload {
	return Upload{Name: name, Body: strings.NewReader("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n")}
}

func text(name, body string) Upload {
	return Upload{Name: name, Body: strings.NewReader(body)}
}
