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

	"github.com/gorilla/mux"
	_ "modernc.org/sqlite"

	cfg "github.com/example/authstarter/internal/config"
)

// Rate-limit tiers: one independent fixed-window limiter per endpoint class,
// so exhausting the login budget never blocks refreshes or validation.
const (
	generalMaxRequests = 5
	generalWindow      = 10 * time.Second

	loginMaxRequests = 5
	loginWindow      = time.Minute

	refreshMaxRequests = 5
	refreshWindow      = time.Minute
)

type App struct {
	DB     DB
	Auth   *AuthService
	Tokens *TokenService

	generalLimiter *RateLimiter
	loginLimiter   *RateLimiter
	refreshLimiter *RateLimiter

	corsOrigin string
}

func NewApp(db DB, tokens *TokenService, corsOrigin string) *App {
	return &App{
		DB:             db,
		Auth:           NewAuthService(db, tokens),
		Tokens:         tokens,
		generalLimiter: NewRateLimiter(generalMaxRequests, generalWindow),
		loginLimiter:   NewRateLimiter(loginMaxRequests, loginWindow),
		refreshLimiter: NewRateLimiter(refreshMaxRequests, refreshWindow),
		corsOrigin:     corsOrigin,
	}
}

// Router wires the HTTP surface: the three auth endpoints plus token
// validation, each behind its own rate limiter, and unlimited health probes.
func (a *App) Router() *mux.Router {
	r := mux.NewRouter()

	r.Use(SecurityHeaders)
	r.Use(a.Logging)
	r.Use(a.CORS)

	// Health check endpoints (no auth, no rate limit)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	r.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if p, ok := a.DB.(interface{ ping() bool }); ok && !p.ping() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"ready": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ready": true})
	}).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/login", a.RateLimit(a.loginLimiter, a.HandleLogin)).Methods("POST")
	api.HandleFunc("/auth/refresh", a.RateLimit(a.refreshLimiter, a.HandleRefresh)).Methods("POST")
	api.HandleFunc("/auth/change-password", a.RateLimit(a.loginLimiter, a.HandleChangePassword)).Methods("POST")
	api.HandleFunc("/validate-token", a.RateLimit(a.generalLimiter, a.HandleValidateToken)).Methods("GET")

	return r
}

func main() {
	c, err := cfg.New()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var db DB
	switch c.DBAdapter {
	case "sqlite":
		s, err := NewSQLiteDB(c.SQLiteFile)
		if err != nil {
			log.Fatalf("sqlite init: %v", err)
		}
		db = s
	case "postgres":
		log.Println("Applying database migrations...")
		if err := ApplyMigrations("./migrations", c.PostgresDSN); err != nil {
			log.Fatalf("migrations: %v", err)
		}
		p, err := NewPostgresDB(c.PostgresDSN)
		if err != nil {
			log.Fatalf("postgres init: %v", err)
		}
		db = p
		log.Println("Connected to PostgreSQL database")
	case "memory":
		log.Println("Using in-memory database (not recommended for production)")
		db = NewMemoryDB()
	default:
		log.Fatalf("unsupported DB_ADAPTER: %s (supported: postgres, sqlite, memory)", c.DBAdapter)
	}

	if err := bootstrapDefaultUser(db, c); err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	tokens := NewTokenService([]byte(c.JWTSecret), c.AccessTokenTTL, c.RefreshTokenTTL)
	app := NewApp(db, tokens, c.CORSOrigin)

	srv := &http.Server{
		Handler:      app.Router(),
		Addr:         ":" + c.Port,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		fmt.Println("Starting auth server on", c.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if closer, ok := db.(interface{ close() error }); ok {
		_ = closer.close()
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown failed:%+v", err)
	}
	fmt.Println("Server exited properly")
}
