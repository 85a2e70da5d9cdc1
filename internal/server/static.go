package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
)

// spaHandler serves files from dir and falls back to index.html so client
// side routes keep working on reload.
type spaHandler struct {
	dir string
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.dir == "" {
		http.NotFound(w, r)
		return
	}

	clean := path.Clean("/" + r.URL.Path)
	target := filepath.Join(h.dir, filepath.FromSlash(clean))

	info, err := os.Stat(target)
	if err == nil && !info.IsDir() {
		http.ServeFile(w, r, target)
		return
	}

	index := filepath.Join(h.dir, "index.html")
	_, err = os.Stat(index)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, index)
}
