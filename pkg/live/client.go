package live

import (
	_ "embed"
	"net/http"

	"github.com/weft-dev/weft/pkg/render"
)

// ClientScriptPath is the URL the browser runtime is served from. It
// matches the script tag render.WritePage emits by default.
const ClientScriptPath = render.DefaultClientScript

//go:embed client.js
var clientJS []byte

// handleClientScript serves the embedded browser runtime.
func handleClientScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(clientJS)
}
