package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/pota/internal/core"
	"github.com/JonMunkholm/pota/internal/store"
)

// ParkListResponse is the JSON shape of GET /api/parks.
type ParkListResponse struct {
	Parks  []core.NormalizedPark `json:"parks"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

// handleListParks lists parks. Query parameters: search, country,
// favorites, active, limit, offset.
func (s *Server) handleListParks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.ParkFilter{
		Search:        q.Get("search"),
		Country:       q.Get("country"),
		FavoritesOnly: parseBoolParam(r, "favorites"),
		ActiveOnly:    parseBoolParam(r, "active"),
		Limit:         min(parseIntParam(r, "limit", store.DefaultListLimit), store.MaxListLimit),
		Offset:        parseIntParam(r, "offset", 0),
	}

	parks, err := s.service.ListParks(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if parks == nil {
		parks = []core.NormalizedPark{}
	}

	writeJSON(w, r, http.StatusOK, ParkListResponse{
		Parks:  parks,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// parkReference validates the {reference} URL parameter. ok is false when a
// response was already written.
func parkReference(w http.ResponseWriter, r *http.Request) (core.ParkReference, bool) {
	ref, err := core.ParseParkReference(chi.URLParam(r, "reference"))
	if err != nil {
		respondBadRequest(w, r, err.Error())
		return "", false
	}
	return ref, true
}

func (s *Server) handleGetPark(w http.ResponseWriter, r *http.Request) {
	ref, ok := parkReference(w, r)
	if !ok {
		return
	}

	park, err := s.service.GetPark(r.Context(), ref.String())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if park == nil {
		respondError(w, r, store.ErrNotFound)
		return
	}

	writeJSON(w, r, http.StatusOK, park)
}

type favoriteRequest struct {
	Favorite *bool `json:"favorite"`
}

// handleSetFavorite sets or clears a park's favorite flag from a JSON
// {"favorite": bool} body.
func (s *Server) handleSetFavorite(w http.ResponseWriter, r *http.Request) {
	ref, ok := parkReference(w, r)
	if !ok {
		return
	}

	var req favoriteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, r, err.Error())
		return
	}
	if req.Favorite == nil {
		respondBadRequest(w, r, "favorite is required")
		return
	}

	if err := s.service.SetFavorite(r.Context(), ref.String(), *req.Favorite); err != nil {
		respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
