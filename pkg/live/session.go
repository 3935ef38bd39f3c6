package live

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/weft-dev/weft/internal/log"
	"github.com/weft-dev/weft/pkg/dom"
	"github.com/weft-dev/weft/pkg/live/state"
	"github.com/weft-dev/weft/pkg/protocol"
	"github.com/weft-dev/weft/pkg/weft"
)

// RootContainerID is the id of the element wrapping the server-managed
// region of the page.
const RootContainerID = "weft-root"

const (
	// writeWait bounds a single write to the peer.
	writeWait = 10 * time.Second

	// pongWait is how long a connection may stay silent before the read
	// deadline kills it; pings go out at pingPeriod to keep it alive.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// historyLimit caps unacknowledged patch batches kept for replay.
	historyLimit = 64

	eventQueueSize    = 32
	dispatchQueueSize = 256

	// snapshotGrace keeps a snapshot loadable slightly past the resume
	// window, so a reconnect racing the sweep still finds it.
	snapshotGrace       = time.Minute
	snapshotSaveTimeout = 5 * time.Second
)

var errNotAttached = errors.New("live: session not attached")

// wsConn is the slice of *websocket.Conn the session uses. Tests
// substitute an in-memory implementation.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// Session is the server half of one browser tab: the mounted component
// tree, its reactive scope, and the connection currently attached to
// it. All component code runs on the session's event loop goroutine;
// the exported methods are safe from any goroutine.
type Session struct {
	id     string
	route  string
	remote string
	token  string
	logger zerolog.Logger

	codec        protocol.Codec
	store        state.Store
	resumeWindow time.Duration

	scope    *weft.Scope
	vars     *sessionVars
	registry *state.Registry
	root     *mount
	refs     *dom.RefGen

	// container wraps the root mount's tree in a stable element, so a
	// full resend can always address the region the runtime owns.
	container *dom.Node

	// handlers maps ref+event to the handler functions of the current
	// tree. Rebuilt after every render; touched only by the goroutine
	// that rendered (the event loop, or the page handler before attach).
	handlers map[string]any

	limiter *rate.Limiter

	mu       sync.Mutex
	conn     wsConn
	attached bool
	done     chan struct{}

	events     chan *protocol.Event
	dispatchCh chan func()
	renderCh   chan struct{}

	wg sync.WaitGroup

	sendSeq atomic.Uint64
	recvSeq atomic.Uint64

	// history holds sent patch batches the client has not acknowledged.
	// Touched only by the event loop and by attach, which runs after
	// the previous loops have stopped.
	history []*protocol.Patches

	lastActive  atomic.Int64
	wasAttached atomic.Bool
	closed      atomic.Bool
	onClose     func(*Session)
}

// sessionConfig carries the knobs the manager hands every session.
type sessionConfig struct {
	signer       *tokenSigner
	store        state.Store
	resumeWindow time.Duration
	eventRate    rate.Limit
	eventBurst   int
}

func newSession(id, remote string, cfg sessionConfig) (*Session, error) {
	token, err := cfg.signer.Sign(id)
	if err != nil {
		return nil, err
	}
	logger := log.Derive(func(c *zerolog.Context) {
		*c = c.Str(log.FieldComponent, "live").Str(log.FieldSessionID, id)
	})
	s := &Session{
		id:           id,
		remote:       remote,
		token:        token,
		logger:       logger,
		store:        cfg.store,
		resumeWindow: cfg.resumeWindow,
		scope:        weft.NewScope(nil),
		vars:         newSessionVars(),
		registry:     state.NewRegistry(),
		refs:         dom.NewRefGen(),
		handlers:     make(map[string]any),
		limiter:      rate.NewLimiter(cfg.eventRate, cfg.eventBurst),
		events:       make(chan *protocol.Event, eventQueueSize),
		dispatchCh:   make(chan func(), dispatchQueueSize),
		renderCh:     make(chan struct{}, 1),
	}
	s.scope.SetValue(weft.SessionVarsKey, s.vars)
	s.scope.SetValue(weft.PersistRegistryKey, s.registry)
	s.scope.SetScheduler(s.scheduleRender)
	s.touch()
	return s, nil
}

// ID returns the session's ID.
func (s *Session) ID() string { return s.id }

// Route returns the page pattern this session was mounted for.
func (s *Session) Route() string { return s.route }

// Token returns the resume token handed to the client.
func (s *Session) Token() string { return s.token }

// Attached reports whether a connection is currently bound.
func (s *Session) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached
}

// LastActive returns the time of the last client activity or lifecycle
// transition.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// MountRoot mounts comp as the session's root component, renders the
// initial tree, and indexes its event handlers. The tree is wrapped in
// a stable container element so a full resend can replace the managed
// region wholesale.
func (s *Session) MountRoot(route string, comp dom.Component) {
	s.route = route
	s.root = newMount(s, nil, comp, "root")
	c := &Ctx{sess: s}
	// A signal write during this render (an OnMount effect, say) leaves
	// the mount dirty; settle folds it in before the page is served.
	tree := s.root.render(c)
	s.root.lastTree = tree
	s.container = dom.Div(dom.ID(RootContainerID), tree)
	dom.AssignRefs(s.container, s.refs)
	s.handlers = collectHandlers(s.container)
}

// settle runs effects queued by the initial render and folds their
// updates into the tree, so the served HTML already reflects OnMount
// work that completed synchronously.
func (s *Session) settle() {
	c := &Ctx{sess: s}
	weft.WithCtx(c, func() { s.flushEffects() })
	s.renderDirty(0)
}

// containerNode returns the element wrapping the managed region, for
// embedding in a page render.
func (s *Session) containerNode() *dom.Node { return s.container }

// Dispatch queues fn to run on the event loop with the same
// flush-and-render cycle as a client event. Calls made while detached
// are buffered and run on the next attach; a full buffer drops the
// call.
func (s *Session) Dispatch(fn func()) {
	if s.closed.Load() {
		return
	}
	select {
	case s.dispatchCh <- fn:
	default:
		s.logger.Warn().Msg("dispatch queue full, dropping call")
	}
}

// SendReload asks the client to reload the page. Used by development
// tooling after a rebuild.
func (s *Session) SendReload(reason string) {
	if err := s.writeMsg(protocol.NewReload(reason)); err != nil && !errors.Is(err, errNotAttached) {
		s.logger.Debug().Err(err).Msg("send reload")
	}
}

// scheduleRender wakes the event loop to flush effects and re-render.
// Non-blocking; a pending wake already covers this one.
func (s *Session) scheduleRender() {
	select {
	case s.renderCh <- struct{}{}:
	default:
	}
}

// attach binds a connection and starts the session's loops. Any
// previous connection is detached first, so the newest one wins. When
// full is set the whole managed region is resent; otherwise batches
// after lastSeq are replayed from history, falling back to a full
// resend when the history window no longer covers the gap.
func (s *Session) attach(conn wsConn, lastSeq uint64, full bool) {
	s.detach("superseded by new connection")
	s.wg.Wait()

	done := make(chan struct{})
	s.mu.Lock()
	s.conn = conn
	s.attached = true
	s.done = done
	s.mu.Unlock()
	s.touch()
	s.wasAttached.Store(true)

	conn.SetReadLimit(protocol.MaxMessageBytes)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	if full {
		s.sendContainer()
	} else {
		s.replay(lastSeq)
	}

	s.wg.Add(3)
	go s.readLoop(conn, done)
	go s.writeLoop(conn, done)
	go s.eventLoop(done)

	// Fold in anything that went dirty while detached.
	s.scheduleRender()
	s.logger.Info().Msg("session attached")
}

// detach unbinds the current connection, stops the loops, and saves a
// state snapshot so the session can be resumed or restored. The
// session itself stays alive until the resume window expires.
func (s *Session) detach(reason string) {
	s.mu.Lock()
	if !s.attached {
		s.mu.Unlock()
		return
	}
	conn := s.conn
	s.attached = false
	s.conn = nil
	close(s.done)
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	s.touch()
	s.saveSnapshot()
	s.logger.Info().Str(log.FieldReason, reason).Msg("session detached")
}

// detachConn is detach for the loops: it only acts when conn is still
// the bound connection, so a loop left over from a superseded
// attachment cannot tear down its successor.
func (s *Session) detachConn(conn wsConn, reason string) {
	s.mu.Lock()
	if !s.attached || s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.detach(reason)
}

// Close tears the session down permanently: detach, dispose the scope
// tree, and notify the owner. Idempotent.
func (s *Session) Close(reason string) {
	if s.closed.Swap(true) {
		return
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		deadline := time.Now().Add(writeWait)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
	}

	s.detach(reason)
	s.wg.Wait()

	if s.root != nil {
		s.root.dispose()
	}
	s.scope.Dispose()
	if s.onClose != nil {
		s.onClose(s)
	}
	s.logger.Info().Str(log.FieldReason, reason).Msg("session closed")
}

// readLoop decodes client messages: events are rate-limited and queued
// for the event loop, control messages are answered inline.
func (s *Session) readLoop(conn wsConn, done chan struct{}) {
	defer s.wg.Done()
	defer s.detachConn(conn, "read loop ended")

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug().Err(err).Msg("read failed")
			}
			return
		}
		s.touch()

		msg, err := s.codec.DecodeClient(data)
		if err != nil {
			s.logger.Warn().Err(err).Msg("undecodable client message")
			s.sendError(protocol.NewError(protocol.CodeBadMessage, "could not decode message"))
			continue
		}

		switch m := msg.(type) {
		case *protocol.Event:
			if !s.limiter.Allow() {
				recordEvent(eventRateLimited)
				s.sendError(protocol.NewError(protocol.CodeRateLimited, "too many events, slow down"))
				continue
			}
			select {
			case s.events <- m:
			case <-done:
				return
			}
		case *protocol.Ping:
			if err := s.writeMsg(protocol.NewPong(m)); err != nil {
				return
			}
		case *protocol.Ack:
			seq := m.LastSeq
			s.Dispatch(func() { s.trimHistory(seq) })
		case *protocol.Hello:
			s.logger.Warn().Msg("unexpected hello on established session")
		}
	}
}

// writeLoop keeps the connection alive with protocol-level pings.
// Patch writes happen on the event loop; gorilla allows WriteControl
// concurrently with WriteMessage.
func (s *Session) writeLoop(conn wsConn, done chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(writeWait)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.detachConn(conn, "heartbeat failed")
				return
			}
		case <-done:
			return
		}
	}
}

// eventLoop is the session's single-threaded heart: client events,
// dispatched callbacks, and render wakes all run here, one at a time.
func (s *Session) eventLoop(done chan struct{}) {
	defer s.wg.Done()

	for {
		select {
		case ev := <-s.events:
			s.handleEvent(ev)
		case fn := <-s.dispatchCh:
			s.runDispatched(fn)
		case <-s.renderCh:
			s.runWake()
		case <-done:
			return
		}
	}
}

// handleEvent runs one client event end to end: find the handler, run
// it with effects flushed, re-render what went dirty, send patches.
func (s *Session) handleEvent(ev *protocol.Event) {
	start := time.Now()
	s.recvSeq.Store(ev.Seq)
	s.touch()

	ctx := log.ContextWithSessionID(context.Background(), s.id)
	ctx, span := otel.GetTracerProvider().Tracer("weft.live").Start(ctx, "weft.event",
		trace.WithAttributes(
			attribute.String("weft.ref", ev.Ref),
			attribute.String("weft.event", ev.Event),
		))
	defer span.End()

	fn, ok := s.handlers[handlerKey(ev.Ref, ev.Event)]
	if !ok {
		recordEvent(eventNoHandler)
		s.logger.Warn().
			Str(log.FieldRef, ev.Ref).
			Str(log.FieldEventName, ev.Event).
			Msg("no handler for event")
		s.sendError(protocol.NewError(protocol.CodeHandlerNotFound,
			fmt.Sprintf("no handler for %s on %s", ev.Event, ev.Ref)))
		return
	}

	c := &Ctx{sess: s, std: ctx}
	recordEvent(s.runTick(c, fn, ev))
	s.renderDirty(ev.Seq)
	observeEvent(time.Since(start))
}

// runTick runs the handler and flushes effects inside one runtime
// context, recovering panics so one bad handler cannot take the whole
// session down.
func (s *Session) runTick(c *Ctx, fn any, ev *protocol.Event) (result string) {
	result = eventHandled
	defer func() {
		if r := recover(); r != nil {
			result = eventPanicked
			s.logger.Error().
				Interface("panic", r).
				Str(log.FieldRef, ev.Ref).
				Str(log.FieldEventName, ev.Event).
				Bytes("stack", debug.Stack()).
				Msg("event handler panicked")
			s.sendError(protocol.NewError(protocol.CodeHandlerPanic, "internal error"))
		}
	}()

	weft.WithCtx(c, func() {
		if !s.callHandler(fn, ev) {
			result = eventBadPayload
		}
		s.flushEffects()
	})
	return result
}

// callHandler invokes fn with the payload shape its signature asks
// for. Returns false when the payload cannot satisfy the signature.
func (s *Session) callHandler(fn any, ev *protocol.Event) bool {
	switch h := fn.(type) {
	case func():
		h()
	case func(string):
		v, err := ev.StringValue()
		if err != nil {
			s.sendError(protocol.NewError(protocol.CodeBadMessage, "event value is not a string"))
			return false
		}
		h(v)
	case func(weft.Event):
		h(weft.Event{Name: ev.Event, Ref: ev.Ref, Value: ev.Value})
	default:
		s.logger.Error().
			Str(log.FieldRef, ev.Ref).
			Str(log.FieldEventName, ev.Event).
			Str("handler_type", fmt.Sprintf("%T", fn)).
			Msg("unsupported handler signature")
		return false
	}
	return true
}

// runDispatched runs a function queued via Dispatch, then flushes and
// renders like any other tick.
func (s *Session) runDispatched(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("dispatched call panicked")
		}
	}()

	c := &Ctx{sess: s}
	weft.WithCtx(c, func() {
		fn()
		s.flushEffects()
	})
	s.renderDirty(0)
}

// runWake services a render wake: flush whatever effects are queued
// and re-render dirty mounts.
func (s *Session) runWake() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("effect flush panicked")
		}
	}()

	c := &Ctx{sess: s}
	weft.WithCtx(c, func() { s.flushEffects() })
	s.renderDirty(0)
}

func (s *Session) flushEffects() {
	if !s.scope.PendingEffects() {
		return
	}
	start := time.Now()
	stats := s.scope.Flush()
	observeFlush(time.Since(start))
	if stats.Deferred > 0 {
		s.logger.Warn().Int("deferred", stats.Deferred).Msg("flush budget exhausted, effects deferred")
		s.scheduleRender()
	}
}

// renderDirty re-renders every dirty mount, diffs against its previous
// subtree, and sends the patches as one batch. eventSeq names the
// client event that caused the work, zero for server-initiated
// updates. While detached this still refreshes the tree, so the page
// render and later resends stay current; it just sends nothing.
func (s *Session) renderDirty(eventSeq uint64) {
	if s.root == nil {
		return
	}
	c := &Ctx{sess: s}
	var patches []dom.Patch
	rendered := false
	s.root.walkDirty(func(m *mount) {
		rendered = true
		m.dirty.Store(false)
		prev := m.lastTree
		next := m.render(c)
		patches = append(patches, dom.Diff(prev, next)...)
		dom.AssignRefs(next, s.refs)
		m.lastTree = next
		s.graft(prev, next)
	})
	if !rendered {
		return
	}
	s.handlers = collectHandlers(s.container)
	if len(patches) == 0 {
		return
	}
	s.sendPatches(eventSeq, patches)
}

// graft swaps a re-rendered subtree into the session tree in place, so
// ancestors' materialized trees stay current without re-rendering
// them.
func (s *Session) graft(old, next *dom.Node) {
	if old == nil || old == next {
		return
	}
	dom.Walk(s.container, func(n *dom.Node) bool {
		for i, child := range n.Children {
			if child == old {
				n.Children[i] = next
				return false
			}
		}
		return true
	})
}

// sendPatches converts, records, and writes one patch batch. Only
// called with a connection attached; detached sessions never render.
func (s *Session) sendPatches(eventSeq uint64, patches []dom.Patch) {
	if !s.Attached() {
		return
	}
	seq := s.sendSeq.Add(1)
	msg, err := protocol.NewPatches(seq, eventSeq, patches)
	if err != nil {
		s.logger.Error().Err(err).Msg("encode patches")
		return
	}
	s.pushHistory(msg)
	recordPatches(len(msg.Patches))
	if err := s.writeMsg(msg); err != nil && !errors.Is(err, errNotAttached) {
		s.logger.Debug().Err(err).Uint64(log.FieldSeq, seq).Msg("write patches")
	}
}

// sendContainer resends the entire managed region as a single replace
// patch targeting the container element.
func (s *Session) sendContainer() {
	if s.container == nil {
		return
	}
	s.sendPatches(0, []dom.Patch{{
		Op:   dom.PatchReplaceNode,
		Ref:  s.container.Ref,
		Node: s.container,
	}})
}

// replay brings a reconnecting client up to date: batches it missed
// are resent from history when the window still covers them, and the
// managed region is resent wholesale when it does not.
func (s *Session) replay(lastSeq uint64) {
	if lastSeq >= s.sendSeq.Load() {
		return
	}
	if len(s.history) > 0 && s.history[0].Seq <= lastSeq+1 {
		for _, batch := range s.history {
			if batch.Seq <= lastSeq {
				continue
			}
			if err := s.writeMsg(batch); err != nil {
				return
			}
		}
		return
	}
	s.sendContainer()
}

func (s *Session) pushHistory(batch *protocol.Patches) {
	s.history = append(s.history, batch)
	if len(s.history) > historyLimit {
		s.history = s.history[len(s.history)-historyLimit:]
	}
}

func (s *Session) trimHistory(lastSeq uint64) {
	i := 0
	for i < len(s.history) && s.history[i].Seq <= lastSeq {
		i++
	}
	s.history = s.history[i:]
}

// writeMsg encodes and writes one message under the connection lock.
func (s *Session) writeMsg(m protocol.Msg) error {
	data, err := s.codec.Encode(m)
	if err != nil {
		return fmt.Errorf("live: encode %s: %w", m.Kind(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached || s.conn == nil {
		return errNotAttached
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	recordSentBytes(len(data))
	return nil
}

// sendError writes a protocol error, logging transport failures at
// debug only; the read loop will notice a dead connection on its own.
func (s *Session) sendError(msg *protocol.ErrorMsg) {
	if err := s.writeMsg(msg); err != nil && !errors.Is(err, errNotAttached) {
		s.logger.Debug().Err(err).Msg("write error message")
	}
}

// saveSnapshot captures persisted signal state to the store, keyed by
// the resume token, so the session survives eviction and, with a
// configured secret, a server restart.
func (s *Session) saveSnapshot() {
	if s.store == nil || s.registry == nil {
		return
	}
	snap, err := s.registry.Capture()
	if err != nil {
		s.logger.Warn().Err(err).Msg("capture state snapshot")
		return
	}
	if len(snap) == 0 {
		return
	}
	data, err := snap.Encode()
	if err != nil {
		s.logger.Warn().Err(err).Msg("encode state snapshot")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), snapshotSaveTimeout)
	defer cancel()
	ttl := s.resumeWindow + snapshotGrace
	if err := s.store.Save(ctx, s.token, data, ttl); err != nil {
		s.logger.Warn().Err(err).Msg("save state snapshot")
		return
	}
	s.logger.Debug().Int("bytes", len(data)).Msg("state snapshot saved")
}

// restoreSnapshot seeds the registry from a stored snapshot. Must run
// before MountRoot so signals rehydrate as they are created.
func (s *Session) restoreSnapshot(data []byte) error {
	snap, err := state.DecodeSnapshot(data)
	if err != nil {
		return err
	}
	s.registry.Restore(snap)
	return nil
}

// collectHandlers indexes every event handler in the tree by ref and
// event name. Renders produce fresh closures, so the index is rebuilt
// after each one.
func collectHandlers(tree *dom.Node) map[string]any {
	handlers := make(map[string]any)
	dom.Walk(tree, func(n *dom.Node) bool {
		if n.Kind == dom.KindElement && n.Ref != "" {
			for key, val := range n.Props {
				if dom.IsEventProp(key) {
					handlers[handlerKey(n.Ref, key[2:])] = val
				}
			}
		}
		return true
	})
	return handlers
}

func handlerKey(ref, event string) string {
	return ref + ":" + strings.ToLower(event)
}
