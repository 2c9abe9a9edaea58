package recorder

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/presence.report/internal/httputil"
)

// AttachAdminRoutes mounts the debug endpoints for the recorder under
// /debug/ on mux: a tailsql console and a JSON tail of recent signals.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://recorder.db", db.DB, &tailsql.DBOptions{
		Label: "Presence recorder",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.HandleSilentFunc("signals", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		limit := 200
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				httputil.BadRequest(w, "limit must be a positive integer")
				return
			}
			limit = n
		}
		entries, err := db.Signals(r.Context(), Query{
			Source: r.URL.Query().Get("source"),
			Prefix: r.URL.Query().Get("prefix"),
			Limit:  limit,
		})
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, entries)
	})
	return nil
}
