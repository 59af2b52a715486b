// Package api assembles the HTTP routes of the service.
package api

import (
	"net/http"
	"time"

	"github.com/kilianp07/teabrew/api/dispatch"
	"github.com/kilianp07/teabrew/api/httpx"
	"github.com/kilianp07/teabrew/api/machines"
	"github.com/kilianp07/teabrew/api/recipes"
	"github.com/kilianp07/teabrew/core/dispatch/logging"
	"github.com/kilianp07/teabrew/core/logger"
)

// MachineService serves the machine routes and resolves the brewing machine.
type MachineService interface {
	machines.Machines
	dispatch.MachineLocator
}

// Deps are the services behind the routes. Logs may be nil, which leaves
// the audit endpoint unmounted.
type Deps struct {
	Recipes    recipes.Recipes
	Votes      recipes.Voter
	Machines   MachineService
	Dispatcher dispatch.Dispatcher
	Logs       logging.LogStore
	LogToken   string
	Log        logger.Logger
}

// NewRouter returns the API handler.
func NewRouter(d Deps) http.Handler {
	user := http.NewServeMux()
	recipes.NewHandler(d.Recipes, d.Votes).Register(user)
	machines.NewHandler(d.Machines).Register(user)
	user.Handle("POST /api/brew", dispatch.NewBrewHandler(d.Dispatcher, d.Machines))

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if d.Logs != nil {
		root.Handle("GET /api/dispatch/logs", dispatch.NewLogHandler(d.Logs, d.LogToken))
	}
	root.Handle("/api/", httpx.WithUser(user))
	if d.Log == nil {
		return root
	}
	return accessLog(d.Log, root)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func accessLog(log logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		log.Debugw("http request", map[string]any{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   sw.status,
			"duration": time.Since(start).String(),
		})
	})
}
