package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/mind-engage/mindengage-materials/internal/api/http"
	auth "github.com/mind-engage/mindengage-materials/internal/auth/middleware"
	"github.com/mind-engage/mindengage-materials/internal/config"
	"github.com/mind-engage/mindengage-materials/internal/db"
	"github.com/mind-engage/mindengage-materials/internal/material"
	"github.com/mind-engage/mindengage-materials/internal/rbac"
	"github.com/mind-engage/mindengage-materials/internal/storage"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stderr, "materialsd ", log.LstdFlags|log.Lmsgprefix)

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	defer dbh.Close()

	// --- Blobs ---
	if cfg.BlobDriver != "fs" {
		log.Fatalf("unsupported blob driver: %s", cfg.BlobDriver)
	}
	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	svc := material.NewService(dbh, material.NewFiles(bs, logger), logger)
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Local login (enabled in offline mode by default; can be enabled online via env)
	if cfg.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))
	}

	// Protected API (JWT → role refreshed from users → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc), auth.AttachRoleFromDB(dbh))

		pr.Route("/lecturer", func(lr chi.Router) {
			api.MountMaterials(lr, svc, cfg.MaxUploadBytes)
		})
		pr.With(rbac.Require(rbac.PermFileView)).Route("/uploads", func(ur chi.Router) {
			api.MountUploads(ur, bs)
		})
		pr.With(rbac.Require(rbac.PermChangePassword)).
			Post("/users/change-password", api.ChangePasswordHandler(dbh))
	})

	r.Get("/healthz", api.Healthz)
	r.Get("/readyz", api.Readyz(dbh))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	stop, release := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer release()
	go func() {
		<-stop.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
