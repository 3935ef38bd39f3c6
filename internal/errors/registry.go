package errors

// Template defines a registered error code.
type Template struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

// registry maps error codes to their templates.
var registry = map[string]Template{
	// Runtime (W001-W059)

	"W010": {
		Category: CategoryRuntime,
		Message:  "Session not found",
		Detail:   "The session ID is unknown or the session has expired and been evicted.",
		DocURL:   "https://weft.dev/docs/errors/W010",
	},
	"W011": {
		Category: CategoryRuntime,
		Message:  "Handler not found",
		Detail:   "No event handler is bound for this ref and event. The tree may have re-rendered without the handler.",
		DocURL:   "https://weft.dev/docs/errors/W011",
	},
	"W012": {
		Category: CategoryRuntime,
		Message:  "Handler panicked",
		Detail:   "An event handler panicked. The session recovered and stays usable; the panicking update was discarded.",
		DocURL:   "https://weft.dev/docs/errors/W012",
	},
	"W013": {
		Category: CategoryRuntime,
		Message:  "Flush budget exceeded",
		Detail:   "Effects kept writing signals for more consecutive flush passes than the scope's budget allows. This usually means two effects write each other's inputs.",
		DocURL:   "https://weft.dev/docs/errors/W013",
	},
	"W020": {
		Category: CategoryRuntime,
		Message:  "Redis connection failed",
		Detail:   "The broadcaster could not reach the Redis instance that replicates global signals.",
		DocURL:   "https://weft.dev/docs/errors/W020",
	},
	"W021": {
		Category: CategoryRuntime,
		Message:  "Global key already registered",
		Detail:   "Another signal is registered under this key on the broadcaster. Keys identify one global signal per process.",
		DocURL:   "https://weft.dev/docs/errors/W021",
	},
	"W022": {
		Category: CategoryRuntime,
		Message:  "Broadcaster closed",
		Detail:   "The broadcaster has been closed and no longer registers keys or replicates values.",
		DocURL:   "https://weft.dev/docs/errors/W022",
	},

	// Protocol (W060-W099)

	"W060": {
		Category: CategoryProtocol,
		Message:  "Message too large",
		Detail:   "The message exceeds the codec's size limit.",
		DocURL:   "https://weft.dev/docs/errors/W060",
	},
	"W061": {
		Category: CategoryProtocol,
		Message:  "Unknown message type",
		Detail:   "The message type is not part of the protocol, or was sent in the wrong direction.",
		DocURL:   "https://weft.dev/docs/errors/W061",
	},

	// Config and tooling (W100-W199)

	"W100": {
		Category: CategoryConfig,
		Message:  "Config file unreadable",
		Detail:   "weft.json exists but could not be read or parsed.",
		DocURL:   "https://weft.dev/docs/errors/W100",
	},
	"W101": {
		Category: CategoryConfig,
		Message:  "Config validation failed",
		Detail:   "One or more config fields hold invalid values.",
		DocURL:   "https://weft.dev/docs/errors/W101",
	},
	"W102": {
		Category: CategoryConfig,
		Message:  "Config file not found",
		Detail:   "No weft.json was found at the project root.",
		DocURL:   "https://weft.dev/docs/errors/W102",
	},
	"W150": {
		Category: CategoryCLI,
		Message:  "weft requirement not found in go.mod",
		Detail:   "The module does not require github.com/weft-dev/weft, so there is nothing to update.",
		DocURL:   "https://weft.dev/docs/errors/W150",
	},
	"W151": {
		Category: CategoryCLI,
		Message:  "Requested version is a downgrade",
		Detail:   "The target version is lower than the one currently required. Pass --force to downgrade anyway.",
		DocURL:   "https://weft.dev/docs/errors/W151",
	},

	// Migrate diagnostics (W200-W299)

	"W200": {
		Category: CategoryMigrate,
		Message:  "Source file failed to parse",
		Detail:   "The file has syntax errors; fix them before running the codemod.",
		DocURL:   "https://weft.dev/docs/errors/W200",
	},
	"W201": {
		Category: CategoryMigrate,
		Message:  "Field written from outside the component",
		Detail:   "A state field is assigned from another package or type, so the rewrite to Signal methods cannot cover every writer.",
		DocURL:   "https://weft.dev/docs/errors/W201",
	},
	"W202": {
		Category: CategoryMigrate,
		Message:  "Address of state field taken",
		Detail:   "The code takes &c.Field. After migration the field is a signal, and the pointer would bypass change tracking.",
		DocURL:   "https://weft.dev/docs/errors/W202",
	},
	"W203": {
		Category: CategoryMigrate,
		Message:  "Unsupported mutation form",
		Detail:   "This assignment shape (multi-assignment, range clause, or method value) is not rewritten automatically.",
		DocURL:   "https://weft.dev/docs/errors/W203",
	},
	"W204": {
		Category: CategoryMigrate,
		Message:  "Rules file invalid",
		Detail:   "The --rules YAML failed to parse or validate.",
		DocURL:   "https://weft.dev/docs/errors/W204",
	},
	"W205": {
		Category: CategoryMigrate,
		Message:  "Report could not be stored",
		Detail:   "The analyzer report failed to reach its destination on disk or in S3.",
		DocURL:   "https://weft.dev/docs/errors/W205",
	},
	"W206": {
		Category: CategoryMigrate,
		Message:  "Unsupported construction",
		Detail:   "The component is built through a positional literal or new(T), so signal initializers cannot be inserted.",
		DocURL:   "https://weft.dev/docs/errors/W206",
	},
}

// Register adds a template at runtime. Later registrations win, which
// lets tests and extensions override built-ins.
func Register(code string, t Template) {
	registry[code] = t
}
