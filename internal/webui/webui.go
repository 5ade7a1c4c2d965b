// Package webui embeds the browser chat client.
package webui

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var files embed.FS

// Handler serves index.html at / and the page's scripts under /assets/.
func Handler() http.Handler {
	sub, err := fs.Sub(files, "static")
	if err != nil {
		// static is compiled in; Sub only fails on an invalid name.
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
