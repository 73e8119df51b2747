package webserver

import (
	"net/http"
	"strconv"

	"github.com/agusx1211/usagebar/internal/render"
)

func (srv *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if srv.fetch == nil {
		writeError(w, http.StatusServiceUnavailable, "usage source not configured")
		return
	}
	report := srv.fetch(r.Context(), filterFromQuery(r.URL.Query()))
	writeJSON(w, http.StatusOK, render.View(report))
}

// handleUsageText serves the plain terminal rendering, handy with curl.
func (srv *Server) handleUsageText(w http.ResponseWriter, r *http.Request) {
	if srv.fetch == nil {
		http.Error(w, "usage source not configured", http.StatusServiceUnavailable)
		return
	}
	report := srv.fetch(r.Context(), filterFromQuery(r.URL.Query()))

	width, _ := strconv.Atoi(r.URL.Query().Get("width"))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(render.Text(report, render.Options{Width: width})))
}
