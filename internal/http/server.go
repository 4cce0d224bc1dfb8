package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"

	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/ledger"
	"ledger/internal/log"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/middleware/security"
	"ledger/internal/middleware/trace"
	appweb "ledger/web"
)

// Ledger is the set of operations the HTTP surface exposes.
type Ledger interface {
	CreateAccount(ctx context.Context, name, provider, institution string) (core.Account, error)
	ListAccounts(ctx context.Context) ([]core.Account, error)
	IngestSample(ctx context.Context, accountID int64) (ledger.IngestResult, error)
	Ingest(ctx context.Context, accountID int64, records []core.RawRecord) (ledger.IngestResult, error)
	ListTransactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error)
	CreateRule(ctx context.Context, r core.Rule) (core.Rule, error)
	ListRules(ctx context.Context) ([]core.Rule, error)
	DeleteRule(ctx context.Context, id int64) error
	ApplyRules(ctx context.Context, accountID *int64, from *core.Date) (int, error)
	CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	ListBudgets(ctx context.Context) ([]core.Budget, error)
	MonthlyReport(ctx context.Context, year, month int, accountID *int64) ([]core.ReportRow, error)
	SyncNotion(ctx context.Context, f core.TransactionFilter) (core.SyncResult, error)
	Summary(ctx context.Context) (core.LedgerSummary, error)
	Ready(ctx context.Context) error
}

// ReportExporter pushes a monthly report to an external sheet.
type ReportExporter interface {
	ExportMonthly(ctx context.Context, year, month int, rows []core.ReportRow) error
}

var _ Ledger = (*ledger.Service)(nil)

type Server struct {
	http.Server
	svc       Ledger
	exporter  ReportExporter
	templates *template.Template
	logger    *log.Logger
	validate  *validator.Validate

	reports  *cache.LRUCache[[]core.ReportRow]
	caches   *cache.Manager
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	started  time.Time
	metrics  appMetrics

	cacheSize      int
	cacheTTL       time.Duration
	rateLimit      ratelimit.Config
	trustedProxies []string
	shutdownOnce   sync.Once
}

type appMetrics struct {
	ingested     atomic.Int64
	reportHits   atomic.Int64
	reportMisses atomic.Int64
	exports      atomic.Int64
}

type Option func(*Server)

// WithExporter enables POST /reports/monthly/export.
func WithExporter(e ReportExporter) Option {
	return func(s *Server) { s.exporter = e }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithReportCache sizes the monthly report cache.
func WithReportCache(size int, ttl time.Duration) Option {
	return func(s *Server) { s.cacheSize, s.cacheTTL = size, ttl }
}

func WithRateLimit(cfg ratelimit.Config) Option {
	return func(s *Server) { s.rateLimit = cfg }
}

// WithTrustedProxies lets hosts in the given CIDRs set X-Forwarded-For.
func WithTrustedProxies(cidrs ...string) Option {
	return func(s *Server) { s.trustedProxies = append(s.trustedProxies, cidrs...) }
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(addr string, svc Ledger, opts ...Option) *Server {
	s := &Server{
		svc:       svc,
		validate:  newValidator(),
		detector:  security.NewDetector(),
		started:   time.Now(),
		cacheSize: 100,
		cacheTTL:  5 * time.Minute,
		rateLimit: ratelimit.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(log.DefaultConfig())
	}
	s.logger = s.logger.WithComponent(log.ComponentHTTP)

	for _, cidr := range s.trustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring invalid trusted proxy", "cidr", cidr, log.FieldError, err)
		}
	}

	s.reports = cache.NewLRUCache[[]core.ReportRow](s.cacheSize, s.cacheTTL)
	s.caches = cache.NewManager()
	s.caches.Register(s.reports)
	s.caches.StartCleanup(10 * time.Minute)
	s.limiter = ratelimit.NewLimiter(s.rateLimit)
	s.tracer = trace.NewMiddleware(s.logger, s.detector.ExtractClientIP)

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)(handler)
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /demo", s.handleDemo)

	mux.HandleFunc("POST /accounts", s.handleCreateAccount)
	mux.HandleFunc("GET /accounts", s.handleListAccounts)

	mux.HandleFunc("POST /ingest/mock", s.handleIngestMock)
	mux.HandleFunc("POST /ingest", s.handleIngest)
	mux.HandleFunc("GET /transactions", s.handleListTransactions)

	mux.HandleFunc("POST /rules", s.handleCreateRule)
	mux.HandleFunc("GET /rules", s.handleListRules)
	mux.HandleFunc("DELETE /rules/{id}", s.handleDeleteRule)
	mux.HandleFunc("POST /apply-rules", s.handleApplyRules)

	mux.HandleFunc("POST /budgets", s.handleCreateBudget)
	mux.HandleFunc("GET /budgets", s.handleListBudgets)

	mux.HandleFunc("GET /reports/monthly", s.handleMonthlyReport)
	mux.HandleFunc("POST /reports/monthly/export", s.handleExportMonthlyReport)

	mux.HandleFunc("POST /notion/sync", s.handleNotionSync)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(),
		"Rate limit exceeded", log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").Write(w)
}

// Shutdown stops background goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// fail logs err at the level its status warrants and writes the response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := ErrorFor(err)
	logger := log.FromContext(r.Context())
	switch code := resp.StatusCode(); {
	case code >= 500:
		errType := log.ErrorTypeInternal
		var storageErr *core.StorageError
		if errors.As(err, &storageErr) {
			errType = log.ErrorTypeDatabase
		}
		log.NewStructuredLogger(logger.WithComponent(log.ComponentLedger)).LogError(r.Context(), "Request failed", err, op,
			log.LogFields{log.FieldErrorType: errType})
	case code == http.StatusNotFound:
		logger.DebugContext(r.Context(), "Request rejected", log.FieldOperation, op,
			log.FieldErrorType, log.ErrorTypeNotFound, log.FieldError, err)
	default:
		logger.DebugContext(r.Context(), "Request rejected", log.FieldOperation, op,
			log.FieldErrorType, log.ErrorTypeValidation, log.FieldError, err)
	}
	resp.Write(w)
}

// Report cache

func reportCacheKey(year, month int, accountID *int64) string {
	acct := "all"
	if accountID != nil {
		acct = strconv.FormatInt(*accountID, 10)
	}
	return fmt.Sprintf("%04d-%02d/%s", year, month, acct)
}

// monthlyReport serves reports from the cache when possible.
func (s *Server) monthlyReport(ctx context.Context, year, month int, accountID *int64) ([]core.ReportRow, error) {
	key := reportCacheKey(year, month, accountID)
	if rows, ok := s.reports.Get(key); ok {
		s.metrics.reportHits.Add(1)
		log.FromContext(ctx).DebugContext(ctx, "Report cache hit", log.FieldYear, year, log.FieldMonth, month)
		return rows, nil
	}
	s.metrics.reportMisses.Add(1)
	rows, err := s.svc.MonthlyReport(ctx, year, month, accountID)
	if err != nil {
		return nil, err
	}
	s.reports.Set(key, rows)
	return rows, nil
}

// invalidateReports drops cached reports after a write that can change them.
func (s *Server) invalidateReports() {
	s.reports.Clear()
}
