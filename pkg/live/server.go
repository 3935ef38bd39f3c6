package live

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/weft-dev/weft/internal/config"
	"github.com/weft-dev/weft/internal/log"
	"github.com/weft-dev/weft/pkg/dom"
	"github.com/weft-dev/weft/pkg/live/state"
	"github.com/weft-dev/weft/pkg/protocol"
	"github.com/weft-dev/weft/pkg/render"
)

const handshakeTimeout = 10 * time.Second

// Options configures a Server. The zero value serves on :8080 with
// in-memory snapshots and a per-process signing secret.
type Options struct {
	// Addr is the listen address, host:port.
	Addr string

	// Title and Styles apply to every served page.
	Title  string
	Styles []string

	// ResumeWindow is how long a detached session stays resumable.
	ResumeWindow time.Duration

	// MaxSessions and MaxPerIP bound sessions held in memory; zero
	// means unlimited.
	MaxSessions int
	MaxPerIP    int

	// EventRate and EventBurst bound the per-session client event
	// rate, in events per second.
	EventRate  float64
	EventBurst int

	// RequestRate bounds page and socket requests per client IP per
	// minute.
	RequestRate int

	// Store persists state snapshots for resume. Nil gets an
	// in-memory store, which survives eviction but not restarts.
	Store state.Store

	// Secret signs resume tokens. Empty gets a random per-process
	// secret; set it to let sessions resume across restarts.
	Secret []byte

	// AllowedOrigins lists Origin hosts allowed to open WebSocket
	// connections. Empty allows same-host only; "*" allows any.
	AllowedOrigins []string
}

// FromConfig builds Options from project configuration. The signing
// secret is taken from WEFT_SECRET when set.
func FromConfig(cfg *config.Config) (Options, error) {
	store, err := state.Open(cfg.State.Store, cfg.StatePath())
	if err != nil {
		return Options{}, err
	}
	opts := Options{
		Addr:         cfg.Live.Addr,
		Title:        cfg.Name,
		ResumeWindow: cfg.ResumeWindow(),
		MaxSessions:  cfg.Live.MaxSessions,
		MaxPerIP:     cfg.Live.MaxPerIP,
		EventRate:    cfg.Live.EventRate,
		EventBurst:   cfg.Live.EventBurst,
		Store:        store,
	}
	if secret := os.Getenv("WEFT_SECRET"); secret != "" {
		opts.Secret = []byte(secret)
	}
	return opts, nil
}

// Server is the HTTP front of a live application: page renders, the
// browser runtime, and the WebSocket endpoint sessions attach through.
type Server struct {
	opts    Options
	router  chi.Router
	pages   chi.Router
	manager *SessionManager
	signer  *tokenSigner
	store   state.Store
	codec   protocol.Codec
	up      websocket.Upgrader
	routes  map[string]func() dom.Component
	logger  zerolog.Logger
}

// NewServer builds a server from opts. Register pages with Handle
// before calling Run.
func NewServer(opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.ResumeWindow <= 0 {
		opts.ResumeWindow = DefaultResumeWindow
	}
	if opts.EventRate <= 0 {
		opts.EventRate = 50
	}
	if opts.EventBurst <= 0 {
		opts.EventBurst = 100
	}
	if opts.RequestRate <= 0 {
		opts.RequestRate = 300
	}
	if opts.Store == nil {
		opts.Store = state.NewMemoryStore()
	}

	signer := newTokenSigner(opts.Secret)
	manager := newSessionManager(
		Limits{
			MaxSessions:  opts.MaxSessions,
			MaxPerIP:     opts.MaxPerIP,
			ResumeWindow: opts.ResumeWindow,
		},
		sessionConfig{
			signer:       signer,
			store:        opts.Store,
			resumeWindow: opts.ResumeWindow,
			eventRate:    rate.Limit(opts.EventRate),
			eventBurst:   opts.EventBurst,
		},
	)

	s := &Server{
		opts:    opts,
		manager: manager,
		signer:  signer,
		store:   opts.Store,
		routes:  make(map[string]func() dom.Component),
		logger:  log.WithComponent("live"),
	}
	s.up = websocket.Upgrader{
		HandshakeTimeout: handshakeTimeout,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      s.checkOrigin,
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get(ClientScriptPath, handleClientScript)

	s.pages = r.With(httprate.Limit(
		opts.RequestRate,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(handleRateLimited),
	))
	s.pages.Get("/weft/ws", s.handleWS)
	s.pages.Get("/weft/resume", s.handleResumeCheck)

	s.router = r
	return s
}

// Handle registers a page: GET pattern serves the server-side render
// and creates the session the browser runtime attaches to. newRoot
// builds a fresh root component per session. Register all pages
// before Run.
//
// Patterns with chi parameters ("/todo/{id}") work for the initial
// render, but a session restored from a snapshot is only remounted on
// exact-match patterns; parameterized pages recover via page reload
// instead.
func (s *Server) Handle(pattern string, newRoot func() dom.Component) {
	s.routes[pattern] = newRoot
	s.pages.Get(pattern, s.servePage(pattern, newRoot))
}

// Sessions exposes the session manager, for stats and broadcast-style
// operations.
func (s *Server) Sessions() *SessionManager { return s.manager }

// ReloadAll asks every attached client to reload the page, typically
// after a rebuild in development.
func (s *Server) ReloadAll(reason string) {
	s.manager.ForEach(func(sess *Session) { sess.SendReload(reason) })
}

// ServeHTTP implements http.Handler, so a Server can be mounted in a
// larger application or driven by httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves until ctx is canceled or an interrupt arrives, then
// drains sessions and shuts down.
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
		s.logger.Info().Str(log.FieldAddr, s.opts.Addr).Msg("live server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.manager.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Msg("session drain incomplete")
		}
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return s.store.Close()
	})
	return g.Wait()
}

// servePage renders the page and creates its session. The resume token
// rides along in a meta tag the browser runtime picks up.
func (s *Server) servePage(pattern string, newRoot func() dom.Component) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.manager.Create(clientIP(r))
		if err != nil {
			status := http.StatusServiceUnavailable
			if errors.Is(err, ErrTooManyPerIP) {
				status = http.StatusTooManyRequests
			}
			http.Error(w, "server at capacity", status)
			return
		}
		sess.MountRoot(pattern, newRoot())
		sess.settle()

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		page := render.Page{
			Title:       s.opts.Title,
			Styles:      s.opts.Styles,
			Body:        sess.containerNode(),
			ResumeToken: sess.Token(),
		}
		if err := render.WritePage(w, page); err != nil {
			s.logger.Debug().Err(err).Str(log.FieldPath, r.URL.Path).Msg("write page")
		}
	}
}

// handleWS upgrades the connection, runs the hello/welcome handshake,
// and attaches the resolved session.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.up.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied over HTTP.
		s.logger.Debug().Err(err).Msg("websocket upgrade refused")
		return
	}

	hello, err := s.readHello(conn)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket handshake failed")
		s.closeHandshake(conn, protocol.NewFatalError(protocol.CodeBadMessage, "handshake failed"))
		return
	}

	sess, resumed, full, err := s.resolveSession(hello, clientIP(r))
	if err != nil {
		s.logger.Warn().Err(err).Str(log.FieldPath, hello.Path).Msg("session resolution failed")
		s.closeHandshake(conn, resolveError(err))
		return
	}

	if err := s.writeHandshake(conn, protocol.NewWelcome(sess.ID(), sess.Token(), resumed)); err != nil {
		s.logger.Debug().Err(err).Msg("write welcome")
		conn.Close()
		return
	}

	sess.attach(conn, hello.LastSeq, full)
}

// resolveSession finds or builds the session for a hello. Preference
// order: the session is still in memory (reattach), its snapshot is in
// the store (restore), or the path maps to a registered page (mount
// fresh). full reports that the client's DOM can no longer be patched
// incrementally and the managed region must be resent.
func (s *Server) resolveSession(hello *protocol.Hello, remote string) (sess *Session, resumed, full bool, err error) {
	if hello.Resume != "" {
		id, verr := s.signer.Verify(hello.Resume)
		if verr != nil {
			s.logger.Warn().Err(verr).Msg("resume token rejected")
		} else {
			if sess = s.manager.Get(id); sess != nil && !sess.closed.Load() {
				resumed = sess.wasAttached.Load()
				if resumed {
					s.manager.markResumed()
				}
				return sess, resumed, false, nil
			}
			if sess = s.restoreSession(hello, remote); sess != nil {
				s.manager.markResumed()
				return sess, true, true, nil
			}
		}
	}

	factory, pattern, ok := s.lookupRoute(hello.Path)
	if !ok {
		return nil, false, false, fmt.Errorf("live: no page at %q", hello.Path)
	}
	sess, err = s.manager.Create(remote)
	if err != nil {
		return nil, false, false, err
	}
	sess.MountRoot(pattern, factory())
	sess.settle()
	return sess, false, true, nil
}

// restoreSession rebuilds a session from its stored snapshot: restore
// state, remount the page, and consume the snapshot. Returns nil when
// the snapshot or the route is gone.
func (s *Server) restoreSession(hello *protocol.Hello, remote string) *Session {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotSaveTimeout)
	defer cancel()

	data, err := s.store.Load(ctx, hello.Resume)
	if err != nil {
		if !errors.Is(err, state.ErrNotFound) {
			s.logger.Warn().Err(err).Msg("load state snapshot")
		}
		return nil
	}
	factory, pattern, ok := s.lookupRoute(hello.Path)
	if !ok {
		return nil
	}
	sess, err := s.manager.Create(remote)
	if err != nil {
		return nil
	}
	if err := sess.restoreSnapshot(data); err != nil {
		s.logger.Warn().Err(err).Msg("decode state snapshot")
	}
	sess.MountRoot(pattern, factory())
	sess.settle()

	if err := s.store.Delete(ctx, hello.Resume); err != nil {
		s.logger.Debug().Err(err).Msg("drop consumed snapshot")
	}
	s.logger.Info().
		Str(log.FieldSessionID, sess.ID()).
		Str(log.FieldRoute, pattern).
		Msg("session restored from snapshot")
	return sess
}

func (s *Server) lookupRoute(path string) (func() dom.Component, string, bool) {
	if factory, ok := s.routes[path]; ok {
		return factory, path, true
	}
	return nil, "", false
}

func (s *Server) readHello(conn *websocket.Conn) (*protocol.Hello, error) {
	conn.SetReadLimit(protocol.MaxMessageBytes)
	if err := conn.SetReadDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		return nil, err
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read hello: %w", err)
	}
	msg, err := s.codec.DecodeClient(data)
	if err != nil {
		return nil, fmt.Errorf("decode hello: %w", err)
	}
	hello, ok := msg.(*protocol.Hello)
	if !ok {
		return nil, fmt.Errorf("expected hello, got %s", msg.Kind())
	}
	return hello, nil
}

func (s *Server) writeHandshake(conn *websocket.Conn, msg protocol.Msg) error {
	data, err := s.codec.Encode(msg)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// closeHandshake sends a final error and closes a connection that
// never became a session.
func (s *Server) closeHandshake(conn *websocket.Conn, msg *protocol.ErrorMsg) {
	_ = s.writeHandshake(conn, msg)
	deadline := time.Now().Add(writeWait)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, string(msg.Code)), deadline)
	conn.Close()
}

// resolveError maps a session resolution failure to the protocol error
// the client acts on: capacity problems ask it to back off, anything
// else asks it to reload the page.
func resolveError(err error) *protocol.ErrorMsg {
	if errors.Is(err, ErrMaxSessions) || errors.Is(err, ErrTooManyPerIP) {
		return protocol.NewFatalError(protocol.CodeRateLimited, "server at capacity")
	}
	return protocol.NewFatalError(protocol.CodeResumeExpired, "session cannot be resumed")
}

// checkOrigin enforces the browser Origin policy for socket upgrades.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if len(s.opts.AllowedOrigins) == 0 {
		return strings.EqualFold(u.Host, r.Host)
	}
	for _, allowed := range s.opts.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(u.Host, allowed) {
			return true
		}
	}
	return false
}

// handleResumeCheck reports whether a resume token would still be
// honored, so a client can choose between a socket resume and a page
// reload.
func (s *Server) handleResumeCheck(w http.ResponseWriter, r *http.Request) {
	resumable := false
	if token := r.URL.Query().Get("token"); token != "" {
		if id, err := s.signer.Verify(token); err == nil {
			if s.manager.Get(id) != nil {
				resumable = true
			} else {
				ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
				_, err := s.store.Load(ctx, token)
				cancel()
				resumable = err == nil
			}
		}
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"resumable":%t}`+"\n", resumable)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintln(w, `{"status":"ok"}`)
}

func handleRateLimited(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	fmt.Fprintln(w, `{"error":"rate limit exceeded"}`)
}

// clientIP extracts the client address without the port. With the
// RealIP middleware installed the address may already be bare.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
