package webserver

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/agusx1211/usagebar/internal/buildinfo"
	"github.com/agusx1211/usagebar/internal/debug"
	"github.com/agusx1211/usagebar/internal/usage"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		debug.LogKV("webserver", "failed to encode json response", "status", status, "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// filterFromQuery reads ?provider= and ?key=. Unknown providers mean no
// provider filter, same as the CLI.
func filterFromQuery(q url.Values) usage.Filter {
	return usage.NewFilter(q.Get("provider"), q.Get("key"))
}

func (srv *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (srv *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	info := buildinfo.Current()
	writeJSON(w, http.StatusOK, map[string]string{
		"version":    info.Version,
		"commit":     info.CommitHash,
		"build_date": info.BuildDate,
	})
}
