// Package server exposes provisioning and campaign management over HTTP.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/metrics"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/oracle"
	"github.com/sells-group/outreach-cli/internal/progress"
	"github.com/sells-group/outreach-cli/internal/provision"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/instantly"
)

// Provisioner runs one provisioning request.
type Provisioner interface {
	Run(ctx context.Context, req provision.Request, em progress.Emitter) (*model.RunSummary, error)
}

// Manager operates on provisioned campaigns.
type Manager interface {
	RefreshAnalytics(ctx context.Context, id string) (*model.Campaign, error)
	Pause(ctx context.Context, id string) (*model.Campaign, error)
	Activate(ctx context.Context, id string) (*model.Campaign, error)
	Delete(ctx context.Context, id string) error
}

// Searcher starts lead searches that are not tied to a campaign.
type Searcher interface {
	Search(ctx context.Context, req provision.SearchRequest) (*provision.SearchStart, error)
}

// Deps are the collaborators of the server. Searcher, ICP and Copy may be
// nil; the oracles then answer with fallback output.
type Deps struct {
	Provisioner Provisioner
	Searcher    Searcher
	Manager     Manager
	Store       store.Store
	Vendor      instantly.Client
	ICP         oracle.ICPOracle
	Copy        oracle.CopyOracle
	Previewer   *oracle.Previewer
}

// Options configure the HTTP surface.
type Options struct {
	// JWTSecret enables bearer auth on /api when set.
	JWTSecret   string
	CORSOrigins []string
}

// Server serves the API.
type Server struct {
	deps Deps
	opts Options
	runs sync.WaitGroup
}

// New creates a Server.
func New(deps Deps, opts Options) *Server {
	if deps.Previewer == nil {
		deps.Previewer = oracle.NewPreviewer()
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	return &Server{deps: deps, opts: opts}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observe)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		if s.opts.JWTSecret != "" {
			r.Use(requireJWT([]byte(s.opts.JWTSecret)))
		}

		r.Post("/campaigns/stream", s.provisionStream)
		r.Post("/campaigns", s.provisionSync)
		r.Get("/campaigns", s.listCampaigns)
		r.Route("/campaigns/{id}", func(r chi.Router) {
			r.Get("/", s.getCampaign)
			r.Delete("/", s.deleteCampaign)
			r.Get("/analytics", s.campaignAnalytics)
			r.Post("/pause", s.pauseCampaign)
			r.Post("/activate", s.activateCampaign)
		})
		r.Get("/leads/{listID}", s.listLeads)
		r.Get("/stats", s.userStats)
		r.Post("/icp/suggest", s.suggestICPs)
		r.Post("/icp/search-leads", s.searchLeads)
		r.Get("/icp/leads/{listID}", s.previewLeads)
		r.Post("/icp/generate-emails", s.generateEmails)
		r.Post("/icp/regenerate-email", s.regenerateEmail)
		r.Post("/copy/preview", s.previewCopy)
	})

	return r
}

// Wait blocks until detached provisioning runs finish or ctx is done.
func (s *Server) Wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		zap.L().Warn("server: provisioning runs still in flight at shutdown")
	}
}

// observe records request metrics by route pattern.
func observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.ObserveHTTP(r.Method, route, status, time.Since(start))
	})
}
