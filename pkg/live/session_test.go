package live

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/time/rate"

	"github.com/weft-dev/weft/pkg/dom"
	"github.com/weft-dev/weft/pkg/live/state"
	"github.com/weft-dev/weft/pkg/protocol"
	"github.com/weft-dev/weft/pkg/render"
	"github.com/weft-dev/weft/pkg/weft"
)

// fakeConn is an in-memory wsConn. The test plays the client: push
// injects frames for the session to read, sent returns what the
// session wrote.
type fakeConn struct {
	incoming chan []byte
	closed   chan struct{}
	once     sync.Once

	mu     sync.Mutex
	frames [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		incoming: make(chan []byte, 32),
		closed:   make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.incoming:
		return websocket.TextMessage, data, nil
	case <-c.closed:
		return 0, nil, &websocket.CloseError{Code: websocket.CloseGoingAway}
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-c.closed:
		return &websocket.CloseError{Code: websocket.CloseGoingAway}
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) WriteControl(int, []byte, time.Time) error { return nil }
func (c *fakeConn) SetReadLimit(int64)                        {}
func (c *fakeConn) SetReadDeadline(time.Time) error           { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error          { return nil }
func (c *fakeConn) SetPongHandler(func(string) error)         {}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) push(t *testing.T, msg protocol.Msg) {
	t.Helper()
	var codec protocol.Codec
	data, err := codec.Encode(msg)
	require.NoError(t, err)
	select {
	case c.incoming <- data:
	case <-time.After(time.Second):
		t.Fatal("push timed out")
	}
}

func (c *fakeConn) sent(t *testing.T) []protocol.Msg {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var codec protocol.Codec
	out := make([]protocol.Msg, 0, len(c.frames))
	for _, frame := range c.frames {
		msg, err := codec.DecodeServer(frame)
		require.NoError(t, err)
		out = append(out, msg)
	}
	return out
}

func sentPatches(t *testing.T, conn *fakeConn) []*protocol.Patches {
	t.Helper()
	var out []*protocol.Patches
	for _, msg := range conn.sent(t) {
		if p, ok := msg.(*protocol.Patches); ok {
			out = append(out, p)
		}
	}
	return out
}

func sentErrors(t *testing.T, conn *fakeConn) []*protocol.ErrorMsg {
	t.Helper()
	var out []*protocol.ErrorMsg
	for _, msg := range conn.sent(t) {
		if e, ok := msg.(*protocol.ErrorMsg); ok {
			out = append(out, e)
		}
	}
	return out
}

func hasSetText(batches []*protocol.Patches, value string) bool {
	for _, b := range batches {
		for _, p := range b.Patches {
			if p.Op == "set-text" && p.Value == value {
				return true
			}
		}
	}
	return false
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newBareSession(t *testing.T, eventRate rate.Limit, burst int) *Session {
	t.Helper()
	id, err := newSessionID()
	require.NoError(t, err)
	s, err := newSession(id, "203.0.113.7", sessionConfig{
		signer:       newTokenSigner([]byte("session-test-secret")),
		store:        state.NewMemoryStore(),
		resumeWindow: time.Minute,
		eventRate:    eventRate,
		eventBurst:   burst,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close("test finished")
		s.store.Close()
	})
	return s
}

func newTestSession(t *testing.T, comp dom.Component) *Session {
	t.Helper()
	s := newBareSession(t, rate.Limit(1000), 1000)
	s.MountRoot("/", comp)
	s.settle()
	return s
}

func renderContainer(t *testing.T, s *Session) string {
	t.Helper()
	html, err := render.RenderToString(s.containerNode())
	require.NoError(t, err)
	return html
}

// findRef returns the ref of the first element in the session tree
// matching pred.
func findRef(t *testing.T, s *Session, pred func(*dom.Node) bool) string {
	t.Helper()
	var ref string
	dom.Walk(s.containerNode(), func(n *dom.Node) bool {
		if ref == "" && n.Kind == dom.KindElement && pred(n) {
			ref = n.Ref
		}
		return ref == ""
	})
	require.NotEmpty(t, ref, "no element matched")
	return ref
}

func refByTag(t *testing.T, s *Session, tag string) string {
	t.Helper()
	return findRef(t, s, func(n *dom.Node) bool { return n.Tag == tag })
}

func refByID(t *testing.T, s *Session, id string) string {
	t.Helper()
	return findRef(t, s, func(n *dom.Node) bool { return n.Props["id"] == id })
}

// counterComp is the canonical test component: a label and a button
// that bumps it.
type counterComp struct {
	count *weft.Signal[int]
}

func newCounterComp() *counterComp {
	return &counterComp{count: weft.NewSignal(0)}
}

func (c *counterComp) Render() *dom.Node {
	return dom.Div(
		dom.Span(dom.Textf("count: %d", c.count.Get())),
		dom.Button(
			dom.OnClick(func() { c.count.Update(func(n int) int { return n + 1 }) }),
			dom.Text("+"),
		),
	)
}

// draftComp persists its text under a stable key. The signal is
// created lazily inside Render so it lands in the session's scope and
// registers with the persistence registry.
type draftComp struct {
	text *weft.Signal[string]
}

func (c *draftComp) Render() *dom.Node {
	if c.text == nil {
		c.text = weft.NewSignal("", weft.Persist("draft"))
	}
	return dom.Div(
		dom.Span(dom.Text("draft: "+c.text.Get())),
		dom.Input(dom.OnInput(func(v string) { c.text.Set(v) })),
	)
}

type panicComp struct {
	count *weft.Signal[int]
}

func (c *panicComp) Render() *dom.Node {
	if c.count == nil {
		c.count = weft.NewSignal(0)
	}
	return dom.Div(
		dom.Span(dom.Textf("n=%d", c.count.Get())),
		dom.Button(dom.ID("boom"), dom.OnClick(func() { panic("kaboom") }), dom.Text("boom")),
		dom.Button(dom.ID("inc"), dom.OnClick(func() {
			c.count.Update(func(n int) int { return n + 1 })
		}), dom.Text("+")),
	)
}

// effectComp derives one signal from another through an effect, so
// updates must survive a flush cycle to become visible.
type effectComp struct {
	n       *weft.Signal[int]
	doubled *weft.Signal[int]
}

func (c *effectComp) Render() *dom.Node {
	if c.n == nil {
		c.n = weft.NewSignal(1)
		c.doubled = weft.NewSignal(0)
		weft.NewEffect(func() weft.Cleanup {
			c.doubled.Set(c.n.Get() * 2)
			return nil
		})
	}
	return dom.Div(
		dom.Span(dom.Textf("doubled: %d", c.doubled.Get())),
		dom.Button(dom.OnClick(func() { c.n.Set(c.n.Peek() + 1) }), dom.Text("go")),
	)
}

func TestSessionEventRoundTrip(t *testing.T) {
	comp := newCounterComp()
	s := newTestSession(t, comp)
	conn := newFakeConn()
	s.attach(conn, 0, false)

	conn.push(t, protocol.NewEvent(1, refByTag(t, s, "button"), "click", nil))

	waitFor(t, func() bool { return hasSetText(sentPatches(t, conn), "count: 1") }, "count update")
	assert.Equal(t, 1, comp.count.Peek())

	batches := sentPatches(t, conn)
	require.NotEmpty(t, batches)
	last := batches[len(batches)-1]
	assert.Equal(t, uint64(1), last.EventSeq, "batch should carry the causing event seq")
	assert.Equal(t, uint64(1), last.Seq)
}

func TestSessionStringPayloadReachesHandler(t *testing.T) {
	comp := &draftComp{}
	s := newTestSession(t, comp)
	conn := newFakeConn()
	s.attach(conn, 0, false)

	ref := refByTag(t, s, "input")
	conn.push(t, protocol.NewEvent(1, ref, "input", json.RawMessage(`"hello"`)))

	waitFor(t, func() bool { return hasSetText(sentPatches(t, conn), "draft: hello") }, "draft update")
	assert.Equal(t, "hello", comp.text.Peek())
}

func TestSessionBadPayloadRejected(t *testing.T) {
	comp := &draftComp{}
	s := newTestSession(t, comp)
	conn := newFakeConn()
	s.attach(conn, 0, false)

	ref := refByTag(t, s, "input")
	conn.push(t, protocol.NewEvent(1, ref, "input", json.RawMessage(`{"nested":true}`)))

	waitFor(t, func() bool { return len(sentErrors(t, conn)) > 0 }, "error reply")
	errs := sentErrors(t, conn)
	assert.Equal(t, protocol.CodeBadMessage, errs[0].Code)
	assert.False(t, errs[0].Fatal)
	assert.Equal(t, "", comp.text.Peek())
}

func TestSessionHandlerNotFound(t *testing.T) {
	s := newTestSession(t, newCounterComp())
	conn := newFakeConn()
	s.attach(conn, 0, false)

	conn.push(t, protocol.NewEvent(1, "r999", "click", nil))

	waitFor(t, func() bool { return len(sentErrors(t, conn)) > 0 }, "error reply")
	assert.Equal(t, protocol.CodeHandlerNotFound, sentErrors(t, conn)[0].Code)
}

func TestSessionHandlerPanicKeepsSessionAlive(t *testing.T) {
	comp := &panicComp{}
	s := newTestSession(t, comp)
	conn := newFakeConn()
	s.attach(conn, 0, false)

	conn.push(t, protocol.NewEvent(1, refByID(t, s, "boom"), "click", nil))
	waitFor(t, func() bool {
		errs := sentErrors(t, conn)
		return len(errs) > 0 && errs[0].Code == protocol.CodeHandlerPanic
	}, "panic error")
	assert.False(t, sentErrors(t, conn)[0].Fatal)

	// The session keeps serving events afterwards.
	conn.push(t, protocol.NewEvent(2, refByID(t, s, "inc"), "click", nil))
	waitFor(t, func() bool { return hasSetText(sentPatches(t, conn), "n=1") }, "counter update after panic")
}

func TestSessionRateLimitsEvents(t *testing.T) {
	comp := newCounterComp()
	s := newBareSession(t, rate.Limit(1), 1)
	s.MountRoot("/", comp)
	s.settle()
	conn := newFakeConn()
	s.attach(conn, 0, false)

	ref := refByTag(t, s, "button")
	for i := 1; i <= 3; i++ {
		conn.push(t, protocol.NewEvent(uint64(i), ref, "click", nil))
	}

	waitFor(t, func() bool {
		n := 0
		for _, e := range sentErrors(t, conn) {
			if e.Code == protocol.CodeRateLimited {
				n++
			}
		}
		return n == 2
	}, "rate limit errors")
	waitFor(t, func() bool { return comp.count.Peek() == 1 }, "first event applied")
}

func TestSessionEffectFlush(t *testing.T) {
	comp := &effectComp{}
	s := newTestSession(t, comp)
	assert.Contains(t, renderContainer(t, s), "doubled: 2")

	conn := newFakeConn()
	s.attach(conn, 0, false)
	conn.push(t, protocol.NewEvent(1, refByTag(t, s, "button"), "click", nil))

	waitFor(t, func() bool { return hasSetText(sentPatches(t, conn), "doubled: 4") }, "derived update")
}

func TestSessionPingPong(t *testing.T) {
	s := newTestSession(t, newCounterComp())
	conn := newFakeConn()
	s.attach(conn, 0, false)

	conn.push(t, protocol.NewPing(12345))

	waitFor(t, func() bool {
		for _, msg := range conn.sent(t) {
			if p, ok := msg.(*protocol.Pong); ok && p.At == 12345 {
				return true
			}
		}
		return false
	}, "pong")
}

func TestSessionDispatch(t *testing.T) {
	comp := newCounterComp()
	s := newTestSession(t, comp)
	conn := newFakeConn()
	s.attach(conn, 0, false)

	s.Dispatch(func() { comp.count.Set(41) })

	waitFor(t, func() bool { return hasSetText(sentPatches(t, conn), "count: 41") }, "dispatched update")
	batches := sentPatches(t, conn)
	assert.Equal(t, uint64(0), batches[len(batches)-1].EventSeq, "server-initiated batches carry no event seq")
}

func TestSessionAttachFullResendsContainer(t *testing.T) {
	s := newTestSession(t, newCounterComp())
	conn := newFakeConn()

	s.attach(conn, 0, true)

	batches := sentPatches(t, conn)
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Patches, 1)
	full := batches[0].Patches[0]
	assert.Equal(t, "replace-node", full.Op)
	assert.Equal(t, s.containerNode().Ref, full.Ref)
	assert.Contains(t, full.HTML, "count: 0")
	assert.Equal(t, uint64(1), batches[0].Seq)
}

func TestSessionReplayAfterReconnect(t *testing.T) {
	s := newTestSession(t, newCounterComp())
	conn1 := newFakeConn()
	s.attach(conn1, 0, false)

	conn1.push(t, protocol.NewEvent(1, refByTag(t, s, "button"), "click", nil))
	waitFor(t, func() bool { return len(sentPatches(t, conn1)) == 1 }, "first batch")

	conn1.Close()
	waitFor(t, func() bool { return !s.Attached() }, "detach")

	// Reconnect claiming nothing applied: the missed batch replays
	// verbatim.
	conn2 := newFakeConn()
	s.attach(conn2, 0, false)
	replayed := sentPatches(t, conn2)
	require.Len(t, replayed, 1)
	assert.Equal(t, uint64(1), replayed[0].Seq)
	assert.Equal(t, sentPatches(t, conn1)[0].Patches, replayed[0].Patches)
}

func TestSessionReattachUpToDateSendsNothing(t *testing.T) {
	s := newTestSession(t, newCounterComp())
	conn1 := newFakeConn()
	s.attach(conn1, 0, false)

	conn1.push(t, protocol.NewEvent(1, refByTag(t, s, "button"), "click", nil))
	waitFor(t, func() bool { return len(sentPatches(t, conn1)) == 1 }, "first batch")

	conn1.Close()
	waitFor(t, func() bool { return !s.Attached() }, "detach")

	conn2 := newFakeConn()
	s.attach(conn2, 1, false)
	assert.Empty(t, conn2.sent(t))
}

func TestSessionFullResendWhenHistoryMissesGap(t *testing.T) {
	s := newTestSession(t, newCounterComp())
	conn1 := newFakeConn()
	s.attach(conn1, 0, false)

	ref := refByTag(t, s, "button")
	conn1.push(t, protocol.NewEvent(1, ref, "click", nil))
	conn1.push(t, protocol.NewEvent(2, ref, "click", nil))
	waitFor(t, func() bool { return len(sentPatches(t, conn1)) == 2 }, "two batches")

	conn1.Close()
	waitFor(t, func() bool { return !s.Attached() }, "detach")
	s.wg.Wait()

	// An ack for batch 1 would have trimmed history to just batch 2.
	// A client that then reconnects claiming nothing applied needs
	// batch 1, which is gone: the whole region is resent instead.
	s.trimHistory(1)
	conn2 := newFakeConn()
	s.attach(conn2, 0, false)

	batches := sentPatches(t, conn2)
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Patches, 1)
	assert.Equal(t, "replace-node", batches[0].Patches[0].Op)
	assert.Contains(t, batches[0].Patches[0].HTML, "count: 2")
	assert.Equal(t, uint64(3), batches[0].Seq, "full resend takes the next seq")
}

func TestSessionHistoryTrim(t *testing.T) {
	s := newTestSession(t, newCounterComp())

	for seq := uint64(1); seq <= 3; seq++ {
		s.pushHistory(&protocol.Patches{Type: protocol.MsgPatches, Seq: seq})
	}
	s.trimHistory(2)
	require.Len(t, s.history, 1)
	assert.Equal(t, uint64(3), s.history[0].Seq)

	s.trimHistory(3)
	assert.Empty(t, s.history)
}

func TestSessionHistoryBounded(t *testing.T) {
	s := newTestSession(t, newCounterComp())

	for seq := uint64(1); seq <= historyLimit+5; seq++ {
		s.pushHistory(&protocol.Patches{Type: protocol.MsgPatches, Seq: seq})
	}
	require.Len(t, s.history, historyLimit)
	assert.Equal(t, uint64(6), s.history[0].Seq)
}

func TestSessionSupersededConnectionCloses(t *testing.T) {
	s := newTestSession(t, newCounterComp())
	conn1 := newFakeConn()
	s.attach(conn1, 0, false)

	conn2 := newFakeConn()
	s.attach(conn2, 0, false)

	select {
	case <-conn1.closed:
	default:
		t.Fatal("superseded connection was not closed")
	}

	conn2.push(t, protocol.NewEvent(1, refByTag(t, s, "button"), "click", nil))
	waitFor(t, func() bool { return hasSetText(sentPatches(t, conn2), "count: 1") }, "event on new connection")
	assert.Empty(t, sentPatches(t, conn1), "old connection saw no patches")
}

func TestSessionSnapshotOnDetach(t *testing.T) {
	comp := &draftComp{}
	s := newTestSession(t, comp)
	conn := newFakeConn()
	s.attach(conn, 0, false)

	ref := refByTag(t, s, "input")
	conn.push(t, protocol.NewEvent(1, ref, "input", json.RawMessage(`"remember me"`)))
	waitFor(t, func() bool { return hasSetText(sentPatches(t, conn), "draft: remember me") }, "draft update")

	conn.Close()
	waitFor(t, func() bool { return !s.Attached() }, "detach")

	var data []byte
	waitFor(t, func() bool {
		d, err := s.store.Load(context.Background(), s.Token())
		if err != nil {
			return false
		}
		data = d
		return true
	}, "snapshot saved")

	snap, err := state.DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Contains(t, snap, "draft")
}

func TestSessionRestoreSnapshot(t *testing.T) {
	// Build a snapshot the way a detaching session would.
	reg := state.NewRegistry()
	sig := weft.NewSignal("restored text", weft.Persist("draft"))
	reg.RegisterPersistable(sig)
	snap, err := reg.Capture()
	require.NoError(t, err)
	data, err := snap.Encode()
	require.NoError(t, err)

	s := newBareSession(t, rate.Limit(1000), 1000)
	require.NoError(t, s.restoreSnapshot(data))
	s.MountRoot("/", &draftComp{})
	s.settle()

	assert.Contains(t, renderContainer(t, s), "draft: restored text")
}

func TestSessionCloseStopsLoops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	store := state.NewMemoryStore()
	id, err := newSessionID()
	require.NoError(t, err)
	s, err := newSession(id, "203.0.113.7", sessionConfig{
		signer:       newTokenSigner([]byte("session-test-secret")),
		store:        store,
		resumeWindow: time.Minute,
		eventRate:    rate.Limit(1000),
		eventBurst:   1000,
	})
	require.NoError(t, err)
	s.MountRoot("/", newCounterComp())
	s.settle()

	conn := newFakeConn()
	s.attach(conn, 0, true)
	s.Close("shutting down")
	s.Close("again")

	assert.False(t, s.Attached())
	require.NoError(t, store.Close())
}

func TestSessionCloseRunsCleanups(t *testing.T) {
	cleanups := 0
	s := newTestSession(t, dom.Func(func() *dom.Node {
		weft.OnCleanup(func() { cleanups++ })
		return dom.Div(dom.Text("x"))
	}))

	s.Close("bye")
	assert.Equal(t, 1, cleanups)
}

func TestSessionSettleFoldsMountEffects(t *testing.T) {
	type loader struct {
		loaded *weft.Signal[bool]
	}
	var c loader
	s := newTestSession(t, dom.Func(func() *dom.Node {
		if c.loaded == nil {
			c.loaded = weft.NewSignal(false)
			weft.OnMount(func() { c.loaded.Set(true) })
		}
		return dom.Span(dom.Textf("loaded: %t", c.loaded.Get()))
	}))

	// The served HTML already reflects the OnMount write; the client
	// never sees the intermediate state.
	assert.Contains(t, renderContainer(t, s), "loaded: true")
}

func TestCollectHandlers(t *testing.T) {
	s := newTestSession(t, newCounterComp())

	ref := refByTag(t, s, "button")
	_, ok := s.handlers[handlerKey(ref, "click")]
	assert.True(t, ok)
	assert.Len(t, s.handlers, 1)
}

func TestHandlerKeyCaseInsensitive(t *testing.T) {
	assert.Equal(t, handlerKey("r1", "click"), handlerKey("r1", "CLICK"))
	assert.NotEqual(t, handlerKey("r1", "click"), handlerKey("r2", "click"))
}

func TestSessionDetachedRenderDefers(t *testing.T) {
	comp := newCounterComp()
	s := newTestSession(t, comp)

	// Never attached: state changes refresh the tree but nothing is
	// sent and nothing is queued as history.
	comp.count.Set(5)
	s.renderDirty(0)
	assert.Contains(t, renderContainer(t, s), "count: 5")
	assert.Empty(t, s.history)

	// The next full attach serves the current state.
	conn := newFakeConn()
	s.attach(conn, 0, true)
	batches := sentPatches(t, conn)
	require.Len(t, batches, 1)
	assert.Contains(t, batches[0].Patches[0].HTML, "count: 5")
}

var _ wsConn = (*fakeConn)(nil)
