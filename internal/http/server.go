package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"expensa/internal/log"
	"expensa/internal/middleware/auth"
	"expensa/internal/middleware/ratelimit"
	"expensa/internal/middleware/security"
	"expensa/internal/middleware/trace"
	"expensa/internal/receipt"
	"expensa/internal/services"
)

// Pinger reports whether a dependency is reachable. Used by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services behind the API. Importer and Receipts may be nil;
// their routes then answer with an error.
type Deps struct {
	Users      auth.UserResolver
	Store      Pinger
	Categories *services.CategoryService
	Expenses   *services.ExpenseService
	Recurring  *services.RecurringService
	Budgets    *services.BudgetService
	Goals      *services.GoalService
	Settings   *services.SettingsService
	Stats      *services.StatsService
	Splitwise  *services.SplitwiseProxy
	Importer   *services.SplitwiseImporter
	Receipts   *receipt.Parser
}

type Options struct {
	CORSAllowedOrigin  string
	RateLimitPerMinute int
	ReceiptMaxBytes    int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
}

func DefaultOptions() Options {
	return Options{
		CORSAllowedOrigin:  "*",
		RateLimitPerMinute: 60,
		ReceiptMaxBytes:    8 << 20,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       60 * time.Second,
		IdleTimeout:        60 * time.Second,
	}
}

// appMetrics counts domain writes served over HTTP.
type appMetrics struct {
	expensesCreated int64
	seriesCreated   int64
	receiptsParsed  int64
	importsRun      int64
}

type Server struct {
	http.Server
	deps    Deps
	opts    Options
	logger  *log.Logger
	now     func() time.Time
	started time.Time

	tracer   *trace.Middleware
	limiter  *ratelimit.Limiter
	detector *security.Detector
	metrics  appMetrics

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Nop()
	}
	if opts.ReceiptMaxBytes <= 0 {
		opts.ReceiptMaxBytes = DefaultOptions().ReceiptMaxBytes
	}

	s := &Server{
		deps:     deps,
		opts:     opts,
		logger:   logger.WithComponent(log.ComponentHTTP),
		now:      time.Now,
		started:  time.Now(),
		detector: security.NewDetector(),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, s.logger)

	api := http.NewServeMux()
	s.routes(api)

	authed := auth.Middleware(deps.Users, func(w http.ResponseWriter, r *http.Request, status int, err error) {
		ErrorResponse(status, err.Error()).Write(w)
	})(api)

	root := http.NewServeMux()
	root.HandleFunc("GET /health", handleHealth)
	root.HandleFunc("GET /ready", s.handleReady)
	root.HandleFunc("GET /metrics", s.handleMetrics)
	root.Handle("/api/", authed)

	var h http.Handler = root
	h = s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w)
	})(h)
	h = security.CORS(opts.CORSAllowedOrigin)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       opts.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       opts.IdleTimeout,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("GET /api/categories/{id}", s.handleGetCategory)
	mux.HandleFunc("PUT /api/categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)
	mux.HandleFunc("GET /api/categories/{id}/subcategories", s.handleListSubcategories)
	mux.HandleFunc("GET /api/subcategories", s.handleListSubcategories)
	mux.HandleFunc("POST /api/subcategories", s.handleCreateSubcategory)
	mux.HandleFunc("PUT /api/subcategories/{id}", s.handleUpdateSubcategory)
	mux.HandleFunc("DELETE /api/subcategories/{id}", s.handleDeleteSubcategory)

	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /api/expenses/{id}", s.handleGetExpense)
	mux.HandleFunc("PUT /api/expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)
	mux.HandleFunc("POST /api/expenses/bulk-delete", s.handleBulkDelete)
	mux.HandleFunc("POST /api/expenses/bulk-recategorize", s.handleBulkRecategorize)

	mux.HandleFunc("GET /api/recurring", s.handleListSeries)
	mux.HandleFunc("POST /api/recurring", s.handleCreateSeries)
	mux.HandleFunc("POST /api/recurring/catch-up", s.handleCatchUp)
	mux.HandleFunc("POST /api/recurring/{group}/stop", s.handleStopSeries)

	mux.HandleFunc("GET /api/budgets", s.handleListBudgets)
	mux.HandleFunc("POST /api/budgets", s.handleSetBudget)
	mux.HandleFunc("GET /api/budgets/progress", s.handleBudgetProgress)
	mux.HandleFunc("GET /api/budgets/{id}", s.handleGetBudget)
	mux.HandleFunc("PUT /api/budgets/{id}", s.handleUpdateBudget)
	mux.HandleFunc("DELETE /api/budgets/{id}", s.handleDeleteBudget)

	mux.HandleFunc("GET /api/goals", s.handleListGoals)
	mux.HandleFunc("POST /api/goals", s.handleCreateGoal)
	mux.HandleFunc("GET /api/goals/{id}", s.handleGetGoal)
	mux.HandleFunc("PUT /api/goals/{id}", s.handleUpdateGoal)
	mux.HandleFunc("DELETE /api/goals/{id}", s.handleDeleteGoal)
	mux.HandleFunc("GET /api/goals/{id}/contributions", s.handleListContributions)
	mux.HandleFunc("POST /api/goals/{id}/contributions", s.handleContribute)
	mux.HandleFunc("DELETE /api/goals/{id}/contributions/{cid}", s.handleRemoveContribution)

	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handleUpdateSettings)

	mux.HandleFunc("GET /api/stats/monthly", s.handleMonthlyStats)
	mux.HandleFunc("GET /api/stats/range", s.handleRangeStats)
	mux.HandleFunc("GET /api/stats/trend", s.handleTrend)

	mux.HandleFunc("GET /api/splitwise/current_user", s.handleSplitwiseCurrentUser)
	mux.HandleFunc("GET /api/splitwise/groups", s.handleSplitwiseGroups)
	mux.HandleFunc("GET /api/splitwise/group_info", s.handleSplitwiseGroupInfo)
	mux.HandleFunc("GET /api/splitwise/expenses", s.handleSplitwiseExpenses)
	mux.HandleFunc("POST /api/splitwise/create_expense", s.handleSplitwiseCreateExpense)
	mux.HandleFunc("POST /api/splitwise/import", s.handleSplitwiseImport)

	mux.HandleFunc("POST /api/receipts/parse", s.handleParseReceipt)

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("route not found").Write(w)
	})
}

// userID returns the authenticated user's ID. Routes under /api always run
// behind the auth middleware.
func userID(r *http.Request) string {
	u, _ := auth.UserFrom(r.Context())
	return u.ID
}

// Shutdown stops background goroutines and drains the HTTP server. Safe to
// call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Store.Ping(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			ErrorResponse(http.StatusServiceUnavailable, "database unavailable").Write(w)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

type metricsDTO struct {
	UptimeSeconds      int64 `json:"uptime_seconds"`
	TotalRequests      int64 `json:"total_requests"`
	ServerErrors       int64 `json:"server_errors"`
	AvgResponseMicros  int64 `json:"avg_response_us"`
	RateLimitHits      int64 `json:"rate_limit_hits"`
	RateLimitClients   int64 `json:"rate_limit_clients"`
	SuspiciousRequests int64 `json:"suspicious_requests"`
	BlockedRequests    int64 `json:"blocked_requests"`
	ExpensesCreated    int64 `json:"expenses_created"`
	SeriesCreated      int64 `json:"series_created"`
	ReceiptsParsed     int64 `json:"receipts_parsed"`
	ImportsRun         int64 `json:"imports_run"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	tm := s.tracer.GetMetrics()
	rm := s.limiter.GetMetrics()
	dm := s.detector.GetMetrics()
	writeJSON(w, http.StatusOK, metricsDTO{
		UptimeSeconds:      int64(s.now().Sub(s.started).Seconds()),
		TotalRequests:      tm.TotalRequests,
		ServerErrors:       tm.ServerErrors,
		AvgResponseMicros:  tm.AverageResponseTime,
		RateLimitHits:      rm.TotalHits,
		RateLimitClients:   rm.ClientCount,
		SuspiciousRequests: dm.SuspiciousRequests,
		BlockedRequests:    dm.BlockedRequests,
		ExpensesCreated:    atomic.LoadInt64(&s.metrics.expensesCreated),
		SeriesCreated:      atomic.LoadInt64(&s.metrics.seriesCreated),
		ReceiptsParsed:     atomic.LoadInt64(&s.metrics.receiptsParsed),
		ImportsRun:         atomic.LoadInt64(&s.metrics.importsRun),
	})
}
