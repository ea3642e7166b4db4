package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/cors"

	"achievements.party/internal/achievements"
	"achievements.party/internal/api"
	"achievements.party/internal/config"
	"achievements.party/internal/persistence/indexdb"
	"achievements.party/internal/session"
	"achievements.party/internal/transport/ws"
)

// adminHTTP is the identity used for loopback admin requests.
var adminHTTP = session.Caller{UserID: "admin-http", Admin: true}

const maxImportBytes = 8 << 20

func newHandler(sess *session.Session, wsSrv *ws.Server, idx *indexdb.SQLiteIndex, cfg config.Config, logger *log.Logger) http.Handler {
	mux := http.NewServeMux()
	admin := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, sess.Metrics())
		if idx != nil {
			writeIndexMetrics(rw, cfg.WorldID, idx.Stats())
		}
	})

	if cfg.EnableAdminHTTP {
		guard := adminGuard(cfg.AdminToken)
		admin.HandleFunc("/admin/v1/state", guard(func(rw http.ResponseWriter, r *http.Request) {
			v := sess.Snapshot()
			writeJSON(rw, http.StatusOK, map[string]any{
				"world_id":   v.WorldID,
				"revision":   v.Revision,
				"updated_at": v.UpdatedAt,
				"online":     v.Online,
				"locked":     v.Locked,
				"pending":    v.Pending,
				"settings":   v.Settings,
				"metrics":    sess.Metrics(),
			})
		}))
		admin.HandleFunc("/admin/v1/export", guard(func(rw http.ResponseWriter, r *http.Request) {
			b, err := sess.Export(r.Context(), adminHTTP)
			if err != nil {
				writeError(rw, err)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_, _ = rw.Write(b)
		}))
		admin.HandleFunc("/admin/v1/import", guard(func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
			if err != nil {
				writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
			defer cancel()
			confirm := r.URL.Query().Get("confirm") == "true"
			n, err := sess.Import(ctx, adminHTTP, data, confirm)
			if err != nil {
				writeError(rw, err)
				return
			}
			logger.Printf("admin import world=%s achievements=%d", sess.ID(), n)
			writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "imported": n})
		}))
	}

	mux.HandleFunc("/v1/ws", wsSrv.Handler())

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})

	// Admin routes stay outside the CORS layer so no browser origin is ever
	// granted access to them.
	root := http.NewServeMux()
	if cfg.EnableAdminHTTP {
		root.Handle("/admin/v1/", admin)
	}
	root.Handle("/", c.Handler(mux))
	return root
}

// adminGuard admits loopback requests that did not come from a browser page
// and, when token is set, carry it as a bearer token.
func adminGuard(token string) func(http.HandlerFunc) http.HandlerFunc {
	return func(h http.HandlerFunc) http.HandlerFunc {
		return func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) || fromBrowser(r) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			if token != "" && !bearerMatches(r.Header.Get("Authorization"), token) {
				rw.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
				http.Error(rw, "unauthorized", http.StatusUnauthorized)
				return
			}
			h(rw, r)
		}
	}
}

// fromBrowser reports whether a page script or form issued the request.
// Command-line clients send neither header.
func fromBrowser(r *http.Request) bool {
	if r.Header.Get("Origin") != "" {
		return true
	}
	site := r.Header.Get("Sec-Fetch-Site")
	return site != "" && site != "none"
}

func bearerMatches(header, token string) bool {
	got, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(token)) == 1
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, achievements.ErrFormat), errors.Is(err, achievements.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, achievements.ErrConfirmationRequired):
		status = http.StatusPreconditionRequired
	case errors.Is(err, session.ErrSessionClosed), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	writeJSON(rw, status, map[string]any{"ok": false, "code": api.CodeFor(err), "error": err.Error()})
}

// writeMetrics renders the Prometheus text exposition format.
func writeMetrics(w io.Writer, m session.MetricsSnapshot) {
	gauge := func(name, help string, v uint64) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s gauge\n", name)
		fmt.Fprintf(w, "%s{world=%q} %d\n", name, m.WorldID, v)
	}
	counter := func(name, help string, v uint64) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s counter\n", name)
		fmt.Fprintf(w, "%s{world=%q} %d\n", name, m.WorldID, v)
	}
	gauge("achievements_revision", "Current state revision.", m.Revision)
	gauge("achievements_defined", "Number of defined achievements.", uint64(m.Achievements))
	gauge("achievements_locked", "Number of locked achievements.", uint64(m.Locked))
	gauge("achievements_pending_awards", "Awards waiting for an offline player.", uint64(m.Pending))
	gauge("achievements_clients", "Connected websocket clients.", uint64(m.Clients))
	counter("achievements_requests_total", "Requests executed by the session.", m.Requests)
	counter("achievements_mutations_total", "Committed mutations.", m.Mutations)
	counter("achievements_awards_total", "Awarded events published.", m.Awards)
	counter("achievements_unawards_total", "Unawarded events published.", m.Unawards)
	counter("achievements_replayed_total", "Pending awards delivered on reconnect.", m.Replayed)
	counter("achievements_dropped_frames_total", "Frames dropped for slow clients.", m.Dropped)
}

func writeIndexMetrics(w io.Writer, worldID string, st indexdb.Stats) {
	fmt.Fprintf(w, "# HELP achievements_index_queue_depth Audit index writes waiting.\n")
	fmt.Fprintf(w, "# TYPE achievements_index_queue_depth gauge\n")
	fmt.Fprintf(w, "achievements_index_queue_depth{world=%q} %d\n", worldID, st.QueueDepth)
	fmt.Fprintf(w, "# HELP achievements_index_dropped_total Audit index writes dropped because the queue was full.\n")
	fmt.Fprintf(w, "# TYPE achievements_index_dropped_total counter\n")
	fmt.Fprintf(w, "achievements_index_dropped_total{world=%q,kind=\"audit\"} %d\n", worldID, st.DropAuditTotal)
	fmt.Fprintf(w, "achievements_index_dropped_total{world=%q,kind=\"event\"} %d\n", worldID, st.DropEventTotal)
}
