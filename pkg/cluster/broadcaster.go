package cluster

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/weft-dev/weft/internal/config"
	"github.com/weft-dev/weft/internal/errors"
	"github.com/weft-dev/weft/internal/log"
	"github.com/weft-dev/weft/pkg/weft"
)

// opTimeout bounds each Redis command issued outside a caller context.
const opTimeout = 2 * time.Second

// Config connects a Broadcaster to Redis.
type Config struct {
	// Addr is the Redis host:port.
	Addr string

	// Password authenticates against Redis when set.
	Password string

	// DB selects the Redis logical database.
	DB int

	// Channel is the pub/sub channel updates travel over. Defaults to
	// config.DefaultChannel. The state hash lives under Channel+":state".
	Channel string

	// NodeID stamps this replica's updates for echo suppression and
	// tie-breaking. Defaults to a random UUID per process.
	NodeID string
}

// FromConfig maps the cluster section of weft.json onto a Config.
func FromConfig(cfg *config.Config) Config {
	return Config{
		Addr:    cfg.Cluster.Redis,
		Channel: cfg.Cluster.Channel,
	}
}

// update is the wire form of one global-signal write. It is published
// on the channel and mirrored into the state hash for joining nodes.
type update struct {
	Key    string          `json:"key"`
	Rev    uint64          `json:"rev"`
	Origin string          `json:"origin"`
	Value  json.RawMessage `json:"value"`
}

// entry is one registered global signal. rev and origin form the
// last-writer-wins clock: every local write bumps rev past the highest
// revision seen for the key, and origin breaks revision ties.
type entry struct {
	key    string
	rev    uint64
	origin string

	// applying suppresses the local-write watch while a remote value is
	// being written into the signal.
	applying atomic.Bool

	encode func() (json.RawMessage, error)
	apply  func(json.RawMessage) error
	watch  *weft.Effect
}

// Broadcaster replicates registered global signals across replicas.
// Lifecycle: Dial (or New), Register each signal, Start, Close.
type Broadcaster struct {
	client     *redis.Client
	ownsClient bool
	channel    string
	stateKey   string
	nodeID     string
	logger     zerolog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	dirty   map[string]struct{}
	started bool
	closed  bool

	pubsub *redis.PubSub
	wake   chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
}

// Dial connects to Redis and returns a stopped broadcaster. Register
// the signals it should replicate, then call Start.
func Dial(ctx context.Context, cfg Config) (*Broadcaster, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.New("W020").
			WithDetail(cfg.Addr + ": " + err.Error()).
			Wrap(err)
	}

	b := New(client, cfg)
	b.ownsClient = true
	b.logger.Info().Str(log.FieldAddr, cfg.Addr).Str("channel", b.channel).Msg("connected to redis")
	return b, nil
}

// New wraps an existing Redis client. The caller keeps ownership of the
// client and closes it after the broadcaster.
func New(client *redis.Client, cfg Config) *Broadcaster {
	channel := cfg.Channel
	if channel == "" {
		channel = config.DefaultChannel
	}
	nodeID := cfg.NodeID
	if nodeID == "" {
		nodeID = uuid.NewString()
	}

	return &Broadcaster{
		client:   client,
		channel:  channel,
		stateKey: channel + ":state",
		nodeID:   nodeID,
		logger:   log.WithComponent("cluster").With().Str(log.FieldNodeID, nodeID).Logger(),
		entries:  make(map[string]*entry),
		dirty:    make(map[string]struct{}),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// NodeID returns the origin ID this replica stamps on its updates.
func (b *Broadcaster) NodeID() string { return b.nodeID }

// Register replicates sig across the cluster under key. Local writes
// publish the new value; writes from other replicas apply to sig when
// their revision wins. Register at startup, outside any session scope,
// so the watch runs synchronously with each write.
func Register[T any](b *Broadcaster, key string, sig *weft.GlobalSignal[T]) error {
	e := &entry{key: key, origin: b.nodeID}
	e.encode = func() (json.RawMessage, error) {
		return json.Marshal(sig.Peek())
	}
	e.apply = func(raw json.RawMessage) error {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		e.applying.Store(true)
		defer e.applying.Store(false)
		sig.Set(v)
		return nil
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errors.New("W022")
	}
	if _, dup := b.entries[key]; dup {
		b.mu.Unlock()
		return errors.New("W021").WithDetail("key " + key + " is already registered")
	}

	// The watch fires once at creation with the current value; applying
	// suppresses it so registering publishes nothing by itself.
	e.applying.Store(true)
	e.watch = weft.Watch[T](sig, func(T) { b.localWrite(e) })
	e.applying.Store(false)

	b.entries[key] = e
	started := b.started
	b.mu.Unlock()

	if started {
		b.syncKey(e)
	}
	return nil
}

// localWrite records a write that originated in this process and wakes
// the publisher. Writes landed by apply are skipped here: replicating
// them is their origin node's job.
func (b *Broadcaster) localWrite(e *entry) {
	if e.applying.Load() {
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	e.rev++
	e.origin = b.nodeID
	b.dirty[e.key] = struct{}{}
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Start subscribes to the update channel, syncs registered keys from
// the state hash, and begins replicating.
func (b *Broadcaster) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errors.New("W022")
	}
	if b.started {
		b.mu.Unlock()
		return nil
	}
	b.started = true
	b.mu.Unlock()

	b.pubsub = b.client.Subscribe(ctx, b.channel)
	if _, err := b.pubsub.Receive(ctx); err != nil {
		b.pubsub.Close()
		b.mu.Lock()
		b.started = false
		b.mu.Unlock()
		return errors.New("W020").
			WithDetail("subscribe " + b.channel + ": " + err.Error()).
			Wrap(err)
	}

	// Sync after subscribing but before consuming the channel: an update
	// racing the sync waits in the subscription buffer and the revision
	// comparison sorts out which one stands.
	b.syncAll(ctx)

	b.wg.Add(2)
	go b.receiveLoop()
	go b.publishLoop()

	b.logger.Info().Str("channel", b.channel).Msg("broadcaster started")
	return nil
}

// Close stops replication and disposes the signal watches. Signals keep
// their last values; only the link between replicas goes away.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	started := b.started
	watches := make([]*entry, 0, len(b.entries))
	for _, e := range b.entries {
		watches = append(watches, e)
	}
	b.mu.Unlock()

	for _, e := range watches {
		e.watch.Dispose()
	}

	close(b.done)
	if started {
		b.pubsub.Close()
	}
	b.wg.Wait()

	if b.ownsClient {
		return b.client.Close()
	}
	return nil
}

// receiveLoop applies channel updates until the subscription closes.
func (b *Broadcaster) receiveLoop() {
	defer b.wg.Done()

	for msg := range b.pubsub.Channel() {
		var u update
		if err := json.Unmarshal([]byte(msg.Payload), &u); err != nil {
			b.logger.Warn().Err(err).Msg("malformed update")
			continue
		}
		if u.Origin == b.nodeID {
			continue
		}
		if b.applyUpdate(u) {
			b.logger.Debug().
				Str(log.FieldSignal, u.Key).
				Uint64(log.FieldRevision, u.Rev).
				Str(log.FieldOrigin, u.Origin).
				Msg("applied remote update")
		}
	}
}

// publishLoop drains dirty keys and ships their current values.
func (b *Broadcaster) publishLoop() {
	defer b.wg.Done()

	for {
		select {
		case <-b.done:
			return
		case <-b.wake:
			b.flush()
		}
	}
}

// flush publishes every dirty key. A key written again mid-flush just
// goes dirty again, and the next pass ships the newer revision.
func (b *Broadcaster) flush() {
	b.mu.Lock()
	batch := make([]*entry, 0, len(b.dirty))
	for key := range b.dirty {
		if e, ok := b.entries[key]; ok {
			batch = append(batch, e)
		}
	}
	b.dirty = make(map[string]struct{})
	b.mu.Unlock()

	for _, e := range batch {
		b.publish(e)
	}
}

// publish ships one entry to the channel and mirrors it into the state
// hash so nodes joining later can sync without waiting for a write.
func (b *Broadcaster) publish(e *entry) {
	b.mu.Lock()
	rev, origin := e.rev, e.origin
	b.mu.Unlock()

	if origin != b.nodeID {
		// A remote write superseded the local one before it shipped; the
		// remote's origin node already published it.
		return
	}

	value, err := e.encode()
	if err != nil {
		b.logger.Warn().Err(err).Str(log.FieldSignal, e.key).Msg("value encode failed")
		return
	}
	payload, err := json.Marshal(update{Key: e.key, Rev: rev, Origin: origin, Value: value})
	if err != nil {
		b.logger.Warn().Err(err).Str(log.FieldSignal, e.key).Msg("update encode failed")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := b.client.HSet(ctx, b.stateKey, e.key, payload).Err(); err != nil {
		b.logger.Warn().Err(err).Str(log.FieldSignal, e.key).Msg("state write failed")
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.logger.Warn().Err(err).Str(log.FieldSignal, e.key).Msg("publish failed")
		return
	}

	b.logger.Debug().
		Str(log.FieldSignal, e.key).
		Uint64(log.FieldRevision, rev).
		Msg("published update")
}

// syncAll applies the state hash to registered keys, bringing a joining
// node up to the cluster's last known values.
func (b *Broadcaster) syncAll(ctx context.Context) {
	state, err := b.client.HGetAll(ctx, b.stateKey).Result()
	if err != nil {
		b.logger.Warn().Err(err).Msg("state sync failed")
		return
	}

	applied := 0
	for key, raw := range state {
		var u update
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			b.logger.Warn().Err(err).Str(log.FieldSignal, key).Msg("malformed state entry")
			continue
		}
		if b.applyUpdate(u) {
			applied++
		}
	}
	if applied > 0 {
		b.logger.Info().Int("keys", applied).Msg("synced global state")
	}
}

// syncKey pulls one key from the state hash, for registrations made
// after Start.
func (b *Broadcaster) syncKey(e *entry) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	raw, err := b.client.HGet(ctx, b.stateKey, e.key).Bytes()
	if err == redis.Nil {
		return
	}
	if err != nil {
		b.logger.Warn().Err(err).Str(log.FieldSignal, e.key).Msg("key sync failed")
		return
	}

	var u update
	if err := json.Unmarshal(raw, &u); err != nil {
		b.logger.Warn().Err(err).Str(log.FieldSignal, e.key).Msg("malformed state entry")
		return
	}
	b.applyUpdate(u)
}

// applyUpdate runs the last-writer-wins comparison and, when the update
// wins, writes its value into the registered signal. Reports whether
// the value was applied. Unlike channel updates, sync reads apply even
// when the origin is this node's own ID: on a restart with a fixed
// NodeID, the hash holds the node's own last state, not an echo.
func (b *Broadcaster) applyUpdate(u update) bool {
	b.mu.Lock()
	e, ok := b.entries[u.Key]
	if !ok {
		b.mu.Unlock()
		b.logger.Debug().Str(log.FieldSignal, u.Key).Msg("update for unregistered key")
		return false
	}
	if !newerWrite(u.Rev, u.Origin, e.rev, e.origin) {
		b.mu.Unlock()
		return false
	}
	e.rev = u.Rev
	e.origin = u.Origin
	b.mu.Unlock()

	if err := e.apply(u.Value); err != nil {
		b.logger.Warn().Err(err).Str(log.FieldSignal, u.Key).Msg("apply failed")
		return false
	}
	return true
}

// newerWrite reports whether the incoming (rev, origin) clock wins over
// the current one: higher revisions win, node IDs break ties.
func newerWrite(rev uint64, origin string, curRev uint64, curOrigin string) bool {
	if rev != curRev {
		return rev > curRev
	}
	return origin > curOrigin
}
