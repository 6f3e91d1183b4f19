package main

import (
	"context"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/mind-engage/papercopy/internal/api/http"
	auth "github.com/mind-engage/papercopy/internal/auth/middleware"
	"github.com/mind-engage/papercopy/internal/config"
	"github.com/mind-engage/papercopy/internal/db"
	"github.com/mind-engage/papercopy/internal/papercopy"
	"github.com/mind-engage/papercopy/internal/qusage"
	"github.com/mind-engage/papercopy/internal/rbac"
	"github.com/mind-engage/papercopy/internal/roster"
	"github.com/mind-engage/papercopy/internal/storage"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	blobs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	// --- Core wiring ---
	store := papercopy.NewSQLStore(dbh)
	rosterStore := roster.NewSQLStore(dbh, cfg.UsernamePrefix)

	manager := &papercopy.Manager{
		Batches:  store,
		Attempts: store,
		Quizzes:  store,
		Usages:   qusage.NewSQLRuntime(dbh),
		Blobs:    blobs,
		Rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	resolver := &roster.Resolver{
		Directory:   rosterStore,
		EnrolWindow: time.Duration(cfg.EnrolDays) * 24 * time.Hour,
	}
	if cfg.AutoProvision {
		resolver.Provision = rosterStore
	}
	reconciler := &papercopy.Reconciler{Manager: manager, Resolver: resolver}

	// --- Auth ---
	authSvc := auth.NewAuthService(cfg.AuthSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.AdminLogin(authSvc, cfg.AdminUser, cfg.AdminPassHash))

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.With(rbac.Require("batch:create")).
			Post("/quizzes/{quizID}/batches", api.CreateBatchHandler(manager))
		pr.With(rbac.Require("batch:view")).
			Get("/quizzes/{quizID}/batches", api.ListBatchesHandler(manager))
		pr.With(rbac.Require("batch:delete")).
			Delete("/quizzes/{quizID}/batches/{batchID}", api.DeleteBatchHandler(manager))
		pr.With(rbac.Require("batch:view")).
			Post("/quizzes/{quizID}/maintain", api.MaintainHandler(manager))

		pr.With(rbac.Require("grade:import")).
			Post("/quizzes/{quizID}/import/csv", api.ImportCSVHandler(reconciler))
		pr.With(rbac.Require("grade:import")).
			Post("/quizzes/{quizID}/import/scans", api.ImportScansHandler(reconciler))

		pr.With(rbac.Require("usage:associate")).
			Post("/quizzes/{quizID}/usages/{usageID}/associate", api.AssociateUsageHandler(manager))
		pr.With(rbac.Require("usage:disassociate")).
			Delete("/quizzes/{quizID}/usages/{usageID}/association", api.DisassociateUsageHandler(manager))
		pr.With(rbac.Require("attempt:delete")).
			Delete("/usages/{usageID}", api.DeleteUsageHandler(manager))

		pr.With(rbac.Require("artifact:write")).
			Put("/batches/{batchID}/artifacts/{mode}", api.PutArtifactHandler(manager))
		pr.With(rbac.Require("artifact:read")).
			Get("/batches/{batchID}/artifacts/{mode}", api.GetArtifactHandler(manager))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("papercopyd listening on %s (db=%s)", cfg.HTTPAddr, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
