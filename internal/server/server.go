package server

import (
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/nifastore/nifa/internal/backup"
	"github.com/nifastore/nifa/internal/config"
	"github.com/nifastore/nifa/internal/handler"
	"github.com/nifastore/nifa/internal/middleware"
	"github.com/nifastore/nifa/internal/push"
	"github.com/nifastore/nifa/internal/store"
	"github.com/nifastore/nifa/internal/ui"
	"github.com/nifastore/nifa/internal/verification"
	ws "github.com/nifastore/nifa/internal/websocket"
)

// Requests per minute per client IP on the unauthenticated verification routes.
const verificationRateLimit = 10

type Server struct {
	hub            *ws.Hub
	productH       *handler.ProductHandler
	verificationH  *handler.VerificationHandler
	backupH        *handler.BackupHandler
	pushH          *handler.PushHandler
	backupManager  *backup.Manager
	uiConfig       ui.Config
	cookies        verification.CookieOptions
	codeStore      *store.CodeStore
	adminStore     *store.AdminStore
	rateLimiter    *middleware.RateLimiter
	originPatterns []string
	logger         *slog.Logger
}

func New(db *sql.DB, cfg config.Config, sender handler.CodeSender, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	productStore := store.NewProductStore(db)
	codeStore := store.NewCodeStore(db)
	adminStore := store.NewAdminStore(db)
	rateLimiter := middleware.NewRateLimiter()

	backupStore := store.NewBackupStore(db)
	backupMgr := backup.NewManager(cfg.BackupConfig(), db, backupStore, func(st backup.Status) {
		hub.Broadcast(ws.Event{
			Type:   "backup_status",
			Action: string(st.State),
			Data:   st,
		})
	}, logger.With("component", "backup"))

	// Push is optional; without VAPID keys its routes are not registered.
	var notifier handler.ProductNotifier
	var pushH *handler.PushHandler
	if pushCfg := cfg.PushConfig(); pushCfg.Enabled() {
		pushSvc := push.NewService(pushCfg)
		pushStore := store.NewPushStore(db)
		notifier = push.NewNotifier(pushSvc, pushStore, logger.With("component", "push"))
		pushH = handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push_handler"))
	}

	cookies := verification.CookieOptions{
		MaxAge:   int(cfg.CookieMaxAge().Seconds()),
		Secure:   cfg.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	// Cookies are always signed. Without a configured secret the key lives
	// only as long as the process, so verifications do not survive a restart.
	if cfg.CookieSecret != "" {
		cookies.SigningKey = []byte(cfg.CookieSecret)
	} else {
		cookies.SigningKey = []byte(rand.Text())
	}

	var origins []string
	if u, err := url.Parse(cfg.BaseURL); err == nil && u.Host != "" {
		origins = append(origins, u.Host)
	}

	return &Server{
		hub:      hub,
		productH: handler.NewProductHandler(productStore, hub, notifier, logger.With("component", "product")),
		verificationH: handler.NewVerificationHandler(
			codeStore, adminStore, sender, rateLimiter, cfg.CodeRequestsPerHour, cookies,
			logger.With("component", "verification"),
		),
		backupH:        handler.NewBackupHandler(backupMgr, backupStore, logger.With("component", "backup_handler")),
		backupManager:  backupMgr,
		pushH:          pushH,
		uiConfig:       ui.Default(),
		cookies:        cookies,
		codeStore:      codeStore,
		adminStore:     adminStore,
		rateLimiter:    rateLimiter,
		originPatterns: origins,
		logger:         logger,
	}
}

// CodeStore returns the verification code store for cleanup tasks.
func (s *Server) CodeStore() *store.CodeStore {
	return s.codeStore
}

// AdminStore returns the admin store for seeding.
func (s *Server) AdminStore() *store.AdminStore {
	return s.adminStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("GET /api/ui", handler.UI(s.uiConfig))
	outerMux.HandleFunc("GET /api/verification", s.verificationH.Status)
	outerMux.HandleFunc("POST /api/verification/request", s.rateLimitedHandler(s.verificationH.RequestCode))
	outerMux.HandleFunc("POST /api/verification/confirm", s.rateLimitedHandler(s.verificationH.Confirm))
	outerMux.HandleFunc("POST /api/verification/logout", s.verificationH.Logout)

	// Verified routes
	verifiedMux := http.NewServeMux()
	s.registerVerifiedRoutes(verifiedMux)

	requireVerified := middleware.RequireVerified(s.cookies)
	outerMux.Handle("/", requireVerified(verifiedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, verificationRateLimit, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerVerifiedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", s.productH.List)
	mux.HandleFunc("GET /api/products/{id}", s.productH.Get)
	mux.HandleFunc("GET /api/categories", s.productH.Categories)

	if s.pushH != nil {
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
		mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
	}

	// Admin routes
	requireAdmin := middleware.RequireAdmin(s.adminStore)
	mux.Handle("POST /api/products", requireAdmin(http.HandlerFunc(s.productH.Create)))
	mux.Handle("PUT /api/products/{id}", requireAdmin(http.HandlerFunc(s.productH.Update)))
	mux.Handle("DELETE /api/products/{id}", requireAdmin(http.HandlerFunc(s.productH.Delete)))
	mux.Handle("GET /api/admin/backups", requireAdmin(http.HandlerFunc(s.backupH.List)))
	mux.Handle("POST /api/admin/backups", requireAdmin(http.HandlerFunc(s.backupH.Run)))
	mux.Handle("GET /ws", requireAdmin(ws.Handler(s.hub, s.originPatterns, s.logger.With("component", "websocket"))))
}
