// Package guide serves the signal migration guide as a chaptered HTML
// site.
//
// The chapters ship inside the binary, so `weft guide` works offline.
// With a directory given, the server reads Markdown from disk instead:
//
//	srv, err := guide.NewServer(guide.Options{
//	    Addr: ":8090",
//	    Dir:  "./docs",
//	})
//	if err != nil {
//	    return err
//	}
//	return srv.Run(ctx)
//
// In directory mode the server watches for edits and pushes a reload
// message to every open tab over the /weft/reload WebSocket. The
// message is the protocol package's own reload frame:
//
//	{"type": "reload", "reason": "guide updated"}
//
// Chapters carry optional YAML front matter (title, slug, order);
// anything missing is derived from the file name, so a directory of
// numbered files like 01-intro.md works bare.
package guide
