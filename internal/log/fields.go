package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldRequestID = "request_id"
	FieldNodeID    = "node_id"
	FieldOrigin    = "origin"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Live-session fields
	FieldRef        = "ref"
	FieldEventName  = "event_name"
	FieldSeq        = "seq"
	FieldPatchCount = "patch_count"
	FieldSessions   = "sessions"

	// Signal fields
	FieldSignal   = "signal"
	FieldRevision = "revision"

	// Path / route fields
	FieldPath  = "path"
	FieldRoute = "route"
	FieldAddr  = "addr"

	// Outcome fields
	FieldDuration = "duration_ms"
	FieldReason   = "reason"
)
