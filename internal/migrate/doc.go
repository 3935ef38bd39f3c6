// Package migrate rewrites component structs to signal-backed state.
//
// The scanner finds struct types with a Render method returning
// *dom.Node and classifies their fields. The rewriter turns the fields
// classified as state into *weft.Signal[T], rewrites every read and
// write inside the component's methods, and initializes the signals
// wherever the component is constructed. Both halves work from the
// same Report, so what `weft analyze` prints is exactly what
// `weft migrate` applies.
//
// The rewrite is deliberately conservative. A field whose address is
// taken, that is referenced outside the component's methods, or that
// is written through a statement shape the rewriter does not know is
// skipped with a coded diagnostic instead of migrated halfway: a
// partial migration would either not compile or silently stop
// tracking changes.
package migrate
