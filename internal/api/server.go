// Package api serves the catalog tables as a read-only JSON API.
//
// Routes:
//
//	GET  /healthz
//	GET  /api/books               ?category= &q= &in_stock= &discounted= &page= &size=
//	GET  /api/books/{slug}
//	GET  /api/categories          ?parent= &depth= &page= &size=
//	GET  /api/categories/{slug}
//	GET  /api/stores              ?type= &q= &with_coordinates= &page= &size=
//	GET  /api/stats
//	POST /api/reload              (only when enabled)
//
// List responses use the origin's envelope: {"data": [...], "meta": {...}}.
// Errors are {"error": "...", "code": "...", "request_id": "..."}.
package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/shelfmark/pkg/buildinfo"
	"github.com/matzehuels/shelfmark/pkg/dataset"
	apperrors "github.com/matzehuels/shelfmark/pkg/errors"
)

// Page size limits for list endpoints.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Catalog is the table accessor the API serves from.
// *dataset.Manager satisfies it.
type Catalog interface {
	Books(ctx context.Context) ([]dataset.Book, error)
	Categories(ctx context.Context) ([]dataset.Category, error)
	Stores(ctx context.Context) ([]dataset.StoreLocation, error)
	Loaded() []dataset.Kind
	Reset()
}

// Options configures a [Server].
type Options struct {
	Logger *log.Logger

	// AllowReload enables POST /api/reload, which drops the memoized tables.
	AllowReload bool
}

// Server is the listing API.
type Server struct {
	catalog Catalog
	logger  *log.Logger
	reload  bool
}

// New creates a server over catalog.
func New(catalog Catalog, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Server{catalog: catalog, logger: logger, reload: opts.AllowReload}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(recoverer(s.logger))
	r.Use(logRequests(s.logger))

	r.Get("/healthz", s.health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/books", s.listBooks)
		r.Get("/books/{slug}", s.getBook)
		r.Get("/categories", s.listCategories)
		r.Get("/categories/{slug}", s.getCategory)
		r.Get("/stores", s.listStores)
		r.Get("/stats", s.stats)
		if s.reload {
			r.Post("/reload", s.reloadTables)
		}
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, apperrors.New(apperrors.ErrCodeNotFound, "no route for %s %s", r.Method, r.URL.Path))
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	loaded := s.catalog.Loaded()
	if loaded == nil {
		loaded = []dataset.Kind{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": buildinfo.Version,
		"loaded":  loaded,
	})
}

func pageParams(q *query) (int, int) {
	return q.integer("page", 1, 1, math.MaxInt32), q.integer("size", DefaultPageSize, 1, MaxPageSize)
}

func (s *Server) listBooks(w http.ResponseWriter, r *http.Request) {
	q := &query{r: r}
	filter := dataset.BookFilter{
		Category:   q.str("category"),
		Query:      q.str("q"),
		InStock:    q.boolean("in_stock"),
		Discounted: q.boolean("discounted"),
	}
	page, size := pageParams(q)
	if q.err != nil {
		s.writeError(w, r, q.err)
		return
	}

	books, err := s.catalog.Books(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var cats []dataset.Category
	if filter.Category != "" {
		if cats, err = s.catalog.Categories(r.Context()); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, dataset.Paginate(dataset.FilterBooks(books, cats, filter), page, size))
}

func (s *Server) getBook(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	books, err := s.catalog.Books(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	book, ok := dataset.FindBook(books, slug)
	if !ok {
		s.writeError(w, r, apperrors.New(apperrors.ErrCodeNotFound, "book %q not found", slug))
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	q := &query{r: r}
	filter := dataset.CategoryFilter{Parent: q.str("parent")}
	if q.str("depth") != "" {
		d := int64(q.integer("depth", 0, 0, 64))
		filter.Depth = &d
	}
	page, size := pageParams(q)
	if q.err != nil {
		s.writeError(w, r, q.err)
		return
	}

	cats, err := s.catalog.Categories(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataset.Paginate(dataset.FilterCategories(cats, filter), page, size))
}

type categoryDetail struct {
	dataset.Category
	Descendants []string `json:"descendants"`
}

func (s *Server) getCategory(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	cats, err := s.catalog.Categories(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	for _, c := range cats {
		if c.Slug == slug {
			writeJSON(w, http.StatusOK, categoryDetail{Category: c, Descendants: dataset.Descendants(cats, slug)[1:]})
			return
		}
	}
	s.writeError(w, r, apperrors.New(apperrors.ErrCodeNotFound, "category %q not found", slug))
}

func (s *Server) listStores(w http.ResponseWriter, r *http.Request) {
	q := &query{r: r}
	filter := dataset.StoreFilter{
		Type:            q.str("type"),
		Query:           q.str("q"),
		WithCoordinates: q.boolean("with_coordinates"),
	}
	page, size := pageParams(q)
	if q.err != nil {
		s.writeError(w, r, q.err)
		return
	}

	stores, err := s.catalog.Stores(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataset.Paginate(dataset.FilterStores(stores, filter), page, size))
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	var (
		books  []dataset.Book
		cats   []dataset.Category
		stores []dataset.StoreLocation
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) { books, err = s.catalog.Books(ctx); return err })
	g.Go(func() (err error) { cats, err = s.catalog.Categories(ctx); return err })
	g.Go(func() (err error) { stores, err = s.catalog.Stores(ctx); return err })
	if err := g.Wait(); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataset.Summarize(books, cats, stores))
}

func (s *Server) reloadTables(w http.ResponseWriter, r *http.Request) {
	s.catalog.Reset()
	s.logger.Info("memoized tables dropped", "request_id", RequestID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

var _ Catalog = (*dataset.Manager)(nil)
