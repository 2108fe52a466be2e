package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"growcycle/internal/core"
)

// GeneticsCatalog lists the named genetics a cultivation can reference.
type GeneticsCatalog interface {
	Known() []string
}

// GeneticsHandler exposes the genetics catalog so clients can offer the
// names that resolve to a curated profile.
type GeneticsHandler struct {
	catalog GeneticsCatalog
}

func NewGeneticsHandler(catalog GeneticsCatalog) *GeneticsHandler {
	return &GeneticsHandler{catalog: catalog}
}

func (h *GeneticsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/genetics", h.HandleList)
}

// GeneticsResponse is the body of GET /genetics. Names are normalized
// (lower case, single spaces) and sorted.
type GeneticsResponse struct {
	Genetics []string `json:"genetics"`
}

func (h *GeneticsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	names := h.catalog.Known()
	if names == nil {
		names = []string{}
	}
	core.JSON(w, r, http.StatusOK, GeneticsResponse{Genetics: names})
}
