package ipam

import (
	"encoding/json"
	"net/http"
	"strconv"

	"ffconvert/internal/models"

	"github.com/gorilla/mux"
)

type HTTP struct{ repo *Repo }

func NewHTTP(r *Repo) *HTTP { return &HTTP{repo: r} }

func (h *HTTP) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1/ipam").Subrouter()

	// GET /api/v1/ipam/networks            top-level blocks
	api.HandleFunc("/networks", h.listRoots).Methods(http.MethodGet)
	// GET /api/v1/ipam/networks/{id}       one block
	api.HandleFunc("/networks/{id}", h.getNetwork).Methods(http.MethodGet)
	// GET /api/v1/ipam/networks/{id}/children
	api.HandleFunc("/networks/{id}/children", h.listChildren).Methods(http.MethodGet)
}

type networkOut struct {
	ID       uint   `json:"id"`
	CIDR     string `json:"cidr"`
	Family   string `json:"family"`
	ParentID *uint  `json:"parent_id,omitempty"`
	OwnerID  *uint  `json:"owner_id,omitempty"`
	Desc     string `json:"desc,omitempty"`
}

func toOut(ps []models.IPNetwork) []networkOut {
	out := make([]networkOut, 0, len(ps))
	for _, p := range ps {
		out = append(out, networkOut{ID: p.ID, CIDR: p.CIDR, Family: p.Family, ParentID: p.ParentID, OwnerID: p.OwnerID, Desc: p.Desc})
	}
	return out
}

func (h *HTTP) listRoots(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ps, err := h.repo.Roots()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(toOut(ps))
}

func (h *HTTP) getNetwork(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	idU, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil || idU == 0 {
		http.Error(w, "invalid network id", http.StatusBadRequest)
		return
	}
	p, err := h.repo.GetNetwork(uint(idU))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	_ = json.NewEncoder(w).Encode(toOut([]models.IPNetwork{*p})[0])
}

func (h *HTTP) listChildren(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	idU, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil || idU == 0 {
		http.Error(w, "invalid network id", http.StatusBadRequest)
		return
	}
	ps, err := h.repo.Children(uint(idU))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(toOut(ps))
}
