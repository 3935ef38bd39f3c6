package guide

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/weft-dev/weft/internal/log"
)

// debounceWindow coalesces editor save bursts into one reload.
const debounceWindow = 500 * time.Millisecond

// Options configures the guide server.
type Options struct {
	// Addr is the listen address, host:port.
	Addr string

	// Dir serves chapters from a directory instead of the embedded
	// guide, watching it and reloading open tabs on change.
	Dir string
}

// Server serves the migration guide as a chaptered HTML site.
type Server struct {
	opts   Options
	site   *Site
	router chi.Router
	hub    *reloadHub
	logger zerolog.Logger
}

// NewServer parses the chapters and builds the router. With Dir set
// the chapters come from disk and the reload endpoint is live.
func NewServer(opts Options) (*Server, error) {
	if opts.Addr == "" {
		opts.Addr = ":8090"
	}

	fsys := DefaultContent()
	if opts.Dir != "" {
		fsys = os.DirFS(opts.Dir)
	}
	site, err := NewSite(fsys)
	if err != nil {
		return nil, err
	}

	s := &Server{
		opts:   opts,
		site:   site,
		logger: log.WithComponent("guide"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"status":"ok"}`)
	})
	r.Get("/", s.handleIndex)
	r.Get("/{slug}", s.handleChapter)
	if opts.Dir != "" {
		s.hub = newReloadHub(s.logger)
		r.Get(ReloadPath, s.hub.handle)
	}
	s.router = r
	return s, nil
}

// ServeHTTP implements http.Handler, so the guide can be mounted or
// driven by httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves until ctx is canceled or an interrupt arrives. In --dir
// mode it also runs the file watcher.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpSrv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info().Str(log.FieldAddr, s.opts.Addr).Msg("guide listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if s.opts.Dir != "" {
		g.Go(func() error { return s.watch(ctx) })
	}
	g.Go(func() error {
		<-ctx.Done()
		if s.hub != nil {
			s.hub.closeAll()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	first := s.site.First()
	if first == nil {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/"+first.Slug, http.StatusFound)
}

func (s *Server) handleChapter(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if _, ok := s.site.Chapter(slug); !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.site.WritePage(w, slug, s.opts.Dir != ""); err != nil {
		s.logger.Debug().Err(err).Str(log.FieldPath, r.URL.Path).Msg("write chapter")
	}
}

// watch reloads the site when chapter files change, debounced so an
// editor's save burst lands as one rebuild and one browser reload.
func (s *Server) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("guide: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.opts.Dir); err != nil {
		return fmt.Errorf("guide: watch %s: %w", s.opts.Dir, err)
	}
	s.logger.Info().Str(log.FieldPath, s.opts.Dir).Msg("watching chapters")

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(event.Name) != ".md" {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceWindow, func() { s.reload(event.Name) })
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error().Err(err).Msg("watcher error")
		}
	}
}

// reload re-parses the chapters and tells open tabs to refresh. A
// parse failure keeps the previous site, so a half-saved chapter never
// blanks the guide.
func (s *Server) reload(changed string) {
	if err := s.site.Load(os.DirFS(s.opts.Dir)); err != nil {
		s.logger.Warn().Err(err).Str(log.FieldPath, changed).Msg("guide reload failed")
		return
	}
	s.logger.Info().Str(log.FieldPath, changed).Msg("guide reloaded")
	if s.hub != nil {
		s.hub.broadcast("guide updated")
	}
}
