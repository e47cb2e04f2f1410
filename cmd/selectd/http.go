package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/selector/internal/errors"
)

// selectionResponse is the body of GET /selection.
type selectionResponse struct {
	Instance    string `json:"instance"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Pending     bool   `json:"pending"`
	Selection   any    `json:"selection"`
}

// newRouter builds the HTTP surface. ws may be nil.
func newRouter(a *app, ws http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok\n"))
	})

	r.Get("/selection", func(w http.ResponseWriter, _ *http.Request) {
		v, err := a.inst.Get()
		if err != nil {
			a.logger.Error("selection failed", "error", err)
			writeError(w, http.StatusInternalServerError, errors.New("S140").Wrap(err))
			return
		}
		writeJSON(w, http.StatusOK, selectionResponse{
			Instance:    a.inst.ID(),
			Fingerprint: a.poller.Fingerprint(),
			Pending:     a.inst.Pending(),
			Selection:   v,
		})
	})

	r.Get("/selection/server", func(w http.ResponseWriter, req *http.Request) {
		v, ok, err := a.inst.ServerSelection(req.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, errors.New("S140").Wrap(err))
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, errors.New("S141").
				WithSuggestion("Wait for the first successful poll"))
			return
		}
		writeJSON(w, http.StatusOK, selectionResponse{
			Instance:  a.inst.ID(),
			Selection: v,
		})
	})

	if ws != nil {
		r.Handle("/ws", ws)
	}

	if a.cfg.Metrics.Enabled {
		r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, e *errors.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(e.FormatJSON()))
}
