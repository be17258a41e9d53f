package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"sangha/internal/auth"
	"sangha/internal/cache"
	applog "sangha/internal/log"
	"sangha/internal/middleware/ratelimit"
	"sangha/internal/middleware/security"
	"sangha/internal/middleware/trace"
	"sangha/internal/services"
	"sangha/internal/store"
)

// ImportPublisher hands a sheet import off to a background worker.
type ImportPublisher interface {
	PublishImport(ctx context.Context) error
}

// Deps carries everything the handlers need. Sessions gates the admin
// surface; Importer and ImportQueue are both optional (ImportQueue wins
// when set, Importer runs the import inline).
type Deps struct {
	Members      *services.Members
	Payments     *services.Payments
	Transactions *services.Transactions
	Ledger       *services.Ledger
	Search       *services.Search
	Presence     *services.Presence
	Intake       *services.Intake
	Importer     *services.Importer
	ImportQueue  ImportPublisher
	Sessions     *auth.Sessions
	Store        store.Store
}

// Server exposes the ledger over a JSON API plus an SSE change stream.
type Server struct {
	http.Server

	deps Deps

	limiter  *ratelimit.Limiter
	detector *security.Detector
	headers  *security.HeadersMiddleware
	tracer   *trace.Middleware

	audit *applog.StructuredLogger

	statsCache   *cache.LRUCache[statsResponse]
	searchCache  *cache.LRUCache[[]services.PublicMember]
	cacheManager *cache.Manager
}

// NewServer wires routes, middleware and caches. Call Shutdown to stop
// the rate limiter and cache cleanup alongside the listener.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	detector := security.NewDetector()

	s := &Server{
		deps:         deps,
		limiter:      ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector:     detector,
		headers:      security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		tracer:       trace.NewMiddleware(detector.ExtractClientIP),
		audit:        applog.NewStructuredLogger(applog.New(applog.DefaultConfig())),
		statsCache:   cache.NewLRUCache[statsResponse](4, 10*time.Second),
		searchCache:  cache.NewLRUCache[[]services.PublicMember](200, 30*time.Second),
		cacheManager: cache.NewManager(),
	}
	s.cacheManager.Register(s.statsCache)
	s.cacheManager.Register(s.searchCache)
	s.cacheManager.StartCleanup(time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	// Public surface.
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/members/search", s.handleMemberSearch)
	mux.HandleFunc("GET /api/collection/current", s.handleRunningCollection)
	mux.HandleFunc("POST /api/join", s.limited(s.handleJoinRequest))
	mux.HandleFunc("POST /api/donate", s.limited(s.handleDonation))
	mux.HandleFunc("POST /api/contact", s.limited(s.handleContact))
	mux.HandleFunc("POST /api/presence/heartbeat", s.handleHeartbeat)
	mux.HandleFunc("GET /api/presence/count", s.handlePresenceCount)
	mux.HandleFunc("GET /api/stream", s.handleStatsStream)

	// Admin surface, token-gated.
	mux.HandleFunc("POST /api/admin/login", s.limited(s.handleLogin))
	mux.HandleFunc("GET /api/admin/members", s.admin(s.handleMemberList))
	mux.HandleFunc("POST /api/admin/members", s.admin(s.handleMemberSave))
	mux.HandleFunc("PUT /api/admin/members/{key}", s.admin(s.handleMemberUpdate))
	mux.HandleFunc("DELETE /api/admin/members/{key}", s.admin(s.handleMemberDelete))
	mux.HandleFunc("GET /api/admin/payments", s.admin(s.handlePaymentList))
	mux.HandleFunc("POST /api/admin/payments", s.admin(s.handlePaymentAdd))
	mux.HandleFunc("PUT /api/admin/payments/{key}", s.admin(s.handlePaymentUpdate))
	mux.HandleFunc("DELETE /api/admin/payments/{key}", s.admin(s.handlePaymentDelete))
	mux.HandleFunc("POST /api/admin/payments/{key}/archive", s.admin(s.handlePaymentArchive))
	mux.HandleFunc("GET /api/admin/transactions", s.admin(s.handleTransactionList))
	mux.HandleFunc("POST /api/admin/transactions", s.admin(s.handleTransactionAdd))
	mux.HandleFunc("PUT /api/admin/transactions/{key}", s.admin(s.handleTransactionUpdate))
	mux.HandleFunc("DELETE /api/admin/transactions/{key}", s.admin(s.handleTransactionDelete))
	mux.HandleFunc("POST /api/admin/import", s.admin(s.handleImport))
	mux.HandleFunc("POST /api/admin/refresh", s.admin(s.handleFullRefresh))

	s.Addr = addr
	s.Handler = s.tracer.Middleware(s.headers.Middleware(mux))
	s.ReadHeaderTimeout = 10 * time.Second
	return s
}

// Shutdown stops the listener and the background middleware goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Server.Shutdown(ctx)
	s.limiter.Stop()
	s.cacheManager.Stop()
	return err
}

// limited applies per-IP rate limiting to write endpoints.
func (s *Server) limited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := s.detector.ExtractClientIP(r)
		if !s.limiter.Allow(ip) {
			slog.WarnContext(r.Context(), "Rate limit exceeded",
				"client_ip", ip, "path", r.URL.Path)
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many requests"})
			return
		}
		if s.detector.DetectSuspiciousRequest(r) {
			slog.WarnContext(r.Context(), "Suspicious request",
				"client_ip", ip, "path", r.URL.Path)
		}
		next(w, r)
	}
}

// admin requires a valid bearer token issued by /api/admin/login.
func (s *Server) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Sessions == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "admin access not configured"})
			return
		}
		token := bearerToken(r)
		if token == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing credentials"})
			return
		}
		claims, err := s.deps.Sessions.Verify(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid or expired session"})
			return
		}
		ctx := context.WithValue(r.Context(), adminEmailKey{}, claims.Email)
		next(w, r.WithContext(ctx))
	}
}

type adminEmailKey struct{}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return h[len(prefix):]
	}
	return ""
}

// invalidateStats drops cached snapshots after a mutation. The refresh
// pipeline may still be running, so the short TTL covers stragglers.
func (s *Server) invalidateStats() {
	s.statsCache.Delete(statsCacheKey)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
