package report

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

type HTTP struct{ rep *Report }

func NewHTTP(r *Report) *HTTP { return &HTTP{rep: r} }

func (h *HTTP) RegisterRoutes(r *mux.Router) {
	// GET /api/v1/report                         summary without entries
	r.HandleFunc("/api/v1/report", h.summary).Methods(http.MethodGet)
	// GET /api/v1/report/events?event=merge&level=warning
	r.HandleFunc("/api/v1/report/events", h.events).Methods(http.MethodGet)
}

type summaryOut struct {
	Started  time.Time                 `json:"started"`
	Finished time.Time                 `json:"finished,omitzero"`
	Result   map[string]int            `json:"result,omitempty"`
	Counts   map[string]map[string]int `json:"counts"`
	Events   []string                  `json:"events"`
}

func (h *HTTP) summary(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(summaryOut{
		Started:  h.rep.Started,
		Finished: h.rep.Finished,
		Result:   h.rep.Result,
		Counts:   h.rep.Counts,
		Events:   h.rep.EventNames(),
	})
}

func (h *HTTP) events(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	q := r.URL.Query()
	_ = json.NewEncoder(w).Encode(h.rep.Events(q.Get("event"), q.Get("level")))
}
