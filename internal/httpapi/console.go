package httpapi

import (
	"io/fs"
	"net/http"
)

// handleConsole serves the embedded single-page operator console from
// staticFS.
func (a *API) handleConsole(staticFS fs.FS) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := fs.ReadFile(staticFS, "static/index.html")
		if err != nil {
			http.Error(w, "console not available", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(data)
	}
}
