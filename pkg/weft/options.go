package weft

// SignalOption configures a signal at creation time.
type SignalOption func(*signalConfig)

type signalConfig struct {
	name       string
	persistKey string
	transient  bool
}

// Named attaches a diagnostic name to the signal. Names show up in runtime
// logs and in migration reports; they carry no reactive meaning.
func Named(name string) SignalOption {
	return func(c *signalConfig) {
		c.name = name
	}
}

// Persist registers the signal with the session snapshot set under the given
// key. Persisted signals survive reconnects and server restarts when the
// session is restored from its snapshot. Keys must be stable across code
// versions; they are how a restored snapshot finds its signal again.
//
//	query := weft.NewSignal("", weft.Persist("search_query"))
func Persist(key string) SignalOption {
	return func(c *signalConfig) {
		c.persistKey = key
	}
}

// Transient excludes the signal from session snapshots even when a persist
// key was set, for example by a wrapper that persists by default. Use it for
// ephemeral state like hover flags or in-flight indicators.
func Transient() SignalOption {
	return func(c *signalConfig) {
		c.transient = true
	}
}

func applyOptions(opts []SignalOption) signalConfig {
	var cfg signalConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Persistable is implemented by signals that participate in session
// snapshots. The snapshot layer speaks JSON through MarshalValue and
// UnmarshalValue so it never needs the signal's concrete type.
type Persistable interface {
	// PersistKey returns the snapshot key, empty when the signal does not
	// persist.
	PersistKey() string

	// Transient reports whether the signal opted out of snapshots.
	Transient() bool

	// MarshalValue encodes the current value as JSON.
	MarshalValue() ([]byte, error)

	// UnmarshalValue replaces the current value from JSON, notifying
	// subscribers if the value changed.
	UnmarshalValue(data []byte) error
}

// PersistRegistry collects persistable signals as they are created. The
// session runtime installs one on the session's root scope under
// PersistRegistryKey; NewSignal registers qualifying signals with it.
type PersistRegistry interface {
	RegisterPersistable(p Persistable)
}

// PersistRegistryKey is the scope-value key under which the session runtime
// installs its PersistRegistry.
var PersistRegistryKey = &struct{ name string }{"weft.persist-registry"}
