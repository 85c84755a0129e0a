package api

import (
	"net/http"
	"strconv"

	"buskalo-bff/internal/geo"
	"buskalo-bff/internal/models"
)

func (h *Handler) GeoSearch(w http.ResponseWriter, r *http.Request) {
	loc, err := h.geo.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// GeoReverse never fails upstream: an unknown address comes back as the
// coordinates.
func (h *Handler) GeoReverse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		writeError(w, r, badRequest("invalid lat %q", q.Get("lat")))
		return
	}
	lng, err := strconv.ParseFloat(q.Get("lng"), 64)
	if err != nil {
		writeError(w, r, badRequest("invalid lng %q", q.Get("lng")))
		return
	}
	writeJSON(w, http.StatusOK, models.Location{
		Latitude:  lat,
		Longitude: lng,
		Address:   h.geo.Reverse(r.Context(), lat, lng),
	})
}

func (h *Handler) GeoPick(w http.ResponseWriter, r *http.Request) {
	var req geo.PickRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	loc, err := h.geo.Pick(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}
