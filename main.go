package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cfg "github.com/example/spendwise/internal/config"
	"github.com/gorilla/mux"
	_ "modernc.org/sqlite"
)

var jwtSecret []byte

type App struct {
	DB             Store
	Quota          *QuotaStore
	Policies       *policyTable
	AI             *AIClient
	Production     bool
	UploadMaxBytes int64
	UploadDir      string
}

func main() {
	c, err := cfg.New()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	jwtSecret = []byte(c.JwtSecret)

	var db Store
	switch c.DBAdapter {
	case "sqlite":
		s, err := NewSQLiteStore(c.SQLiteFile)
		if err != nil {
			log.Fatalf("sqlite init: %v", err)
		}
		db = s
	case "postgres":
		dsn, err := c.BuildPostgresDSN()
		if err != nil {
			log.Fatalf("postgres config error: %v", err)
		}

		log.Println("Applying database migrations...")
		if err := ApplyMigrations("./migrations", dsn); err != nil {
			log.Printf("migrations warning: %v", err)
		} else {
			log.Println("Migrations applied successfully")
		}

		p, err := NewPostgresStore(dsn)
		if err != nil {
			log.Fatalf("postgres init: %v", err)
		}
		db = p
		log.Println("Connected to PostgreSQL database")
	case "memory":
		log.Println("Using in-memory database (not recommended for production)")
		db = NewMemStore()
	default:
		log.Fatalf("unsupported DB_ADAPTER: %s (supported: postgres, sqlite, memory)", c.DBAdapter)
	}

	app := &App{
		DB:             db,
		Quota:          NewQuotaStore(),
		Policies:       newPolicyTable(c.RateLimitMax, c.RateLimitWindow),
		AI:             NewAIClient(c.AIServiceURL, c.AIServiceKey),
		Production:     c.IsProduction(),
		UploadMaxBytes: c.UploadMaxBytes,
		UploadDir:      c.UploadDir,
	}
	r := app.Router()

	srv := &http.Server{Handler: r, Addr: ":" + c.Port, ReadTimeout: 5 * time.Second, WriteTimeout: 30 * time.Second}

	go func() {
		fmt.Println("Starting server on", c.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if closer, ok := app.DB.(interface{ close() error }); ok {
		_ = closer.close()
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown failed:%+v", err)
	}
	fmt.Println("Server exited properly")
}

// Router builds the full middleware chain and route table. Rate
// limiting runs before the identity middleware so unauthenticated
// flooding is still throttled.
func (a *App) Router() *mux.Router {
	r := mux.NewRouter()

	r.Use(SecurityHeaders)
	r.Use(a.RequestID)
	r.Use(a.Logging)
	r.Use(a.CORS)
	r.Use(a.Recover)

	// Health check endpoints (no auth required)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")
	r.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if p, ok := a.DB.(interface{ ping() bool }); ok {
			if !p.ping() {
				w.WriteHeader(503)
				w.Write([]byte(`{"ready":false}`))
				return
			}
		}
		w.WriteHeader(200)
		w.Write([]byte(`{"ready":true}`))
	}).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(a.RateLimit)

	// Authentication endpoints
	auth := api.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/register", a.HandleRegister).Methods("POST")
	auth.HandleFunc("/login", a.HandleLogin).Methods("POST")
	auth.HandleFunc("/refresh", a.HandleRefresh).Methods("POST")
	auth.HandleFunc("/logout", a.HandleLogout).Methods("POST")
	auth.Handle("/me", a.RequireAuth(http.HandlerFunc(a.HandleMe))).Methods("GET")

	// Expense and category CRUD, always authenticated
	expenses := api.PathPrefix("/expenses").Subrouter()
	expenses.Use(a.RequireAuth)
	expenses.HandleFunc("", a.HandleListExpenses).Methods("GET")
	expenses.HandleFunc("", a.HandleCreateExpense).Methods("POST")
	expenses.HandleFunc("/{id}", a.HandleGetExpense).Methods("GET")
	expenses.HandleFunc("/{id}", a.HandleUpdateExpense).Methods("PUT")
	expenses.HandleFunc("/{id}", a.HandleDeleteExpense).Methods("DELETE")

	categories := api.PathPrefix("/categories").Subrouter()
	categories.Use(a.RequireAuth)
	categories.HandleFunc("", a.HandleListCategories).Methods("GET")
	categories.HandleFunc("", a.HandleCreateCategory).Methods("POST")

	api.Handle("/users/avatar", a.RequireAuth(http.HandlerFunc(a.HandleUpdateAvatar))).Methods("PUT")

	// AI and upload routes parse tokens leniently but still need a user
	ai := api.PathPrefix("/ai").Subrouter()
	ai.Use(a.OptionalAuth, a.RequireIdentity)
	ai.HandleFunc("/scan-receipt", a.HandleScanReceipt).Methods("POST")

	upload := api.PathPrefix("/upload").Subrouter()
	upload.Use(a.OptionalAuth, a.RequireIdentity)
	upload.HandleFunc("/receipt", a.HandleUploadReceipt).Methods("POST")

	r.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", http.FileServer(http.Dir(a.UploadDir))))

	return r
}
