package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"buskalo-bff/internal/auth"
	"buskalo-bff/internal/imaging"

	"github.com/gorilla/mux"
)

type dataURLUpload struct {
	Name    string `json:"name"`
	DataURL string `json:"data_url"`
}

// CreateUpload accepts a picked image, either as the multipart field "file"
// or as JSON {name, data_url}.
func (h *Handler) CreateUpload(w http.ResponseWriter, r *http.Request) {
	sid := auth.SessionID(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, 2*h.maxUpload)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		h.createMultipartUpload(w, r, sid)
		return
	}

	var req dataURLUpload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, uploadReadError(err))
		return
	}
	if req.DataURL == "" {
		writeError(w, r, badRequest("data_url: This field is required."))
		return
	}
	u, err := h.media.PutDataURL(r.Context(), sid, req.Name, req.DataURL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u.Info())
}

func (h *Handler) createMultipartUpload(w http.ResponseWriter, r *http.Request, sid string) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, uploadReadError(err))
		return
	}
	defer file.Close()

	if header.Size > h.maxUpload {
		writeError(w, r, imaging.ErrTooLarge)
		return
	}
	if err := imaging.CheckUpload(header.Filename, header.Size); err != nil {
		writeError(w, r, err)
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, uploadReadError(err))
		return
	}

	u, err := h.media.Put(r.Context(), sid, header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u.Info())
}

func uploadReadError(err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return imaging.ErrTooLarge
	}
	return badRequest("invalid upload: %v", err)
}

func (h *Handler) GetUpload(w http.ResponseWriter, r *http.Request) {
	u, err := h.media.Get(r.Context(), auth.SessionID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u.Info())
}

// CropUpload renders the preview for the cropper's current pan, zoom and
// rotation.
func (h *Handler) CropUpload(w http.ResponseWriter, r *http.Request) {
	var params imaging.CropParams
	if err := decodeJSON(w, r, &params); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.media.Crop(r.Context(), auth.SessionID(r.Context()), mux.Vars(r)["id"], params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u.Info())
}

func (h *Handler) PreviewUpload(w http.ResponseWriter, r *http.Request) {
	blob, err := h.media.Preview(r.Context(), auth.SessionID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", blob.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob.Data)
}
