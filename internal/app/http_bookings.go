package app

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"swifthand/api/internal/storage"
	"swifthand/api/internal/store"
)

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var body CreateBookingInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	booking, err := s.service.CreateBooking(r.Context(), sessionFrom(r), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"booking": booking, "message": "Booking request sent successfully!"})
}

func (s *HTTPServer) handleBookingStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	booking, err := s.service.UpdateBookingStatus(r.Context(), sessionFrom(r), chi.URLParam(r, "id"), body.Status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"booking": booking})
}

func (s *HTTPServer) handleDeleteBooking(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteBooking(r.Context(), sessionFrom(r), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleListServices(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.ListServices(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": items})
}

func (s *HTTPServer) handleGetService(w http.ResponseWriter, r *http.Request) {
	item, err := s.service.GetService(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"service": item})
}

func (s *HTTPServer) handleCreateService(w http.ResponseWriter, r *http.Request) {
	var body ServiceInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	item, err := s.service.CreateService(r.Context(), sessionFrom(r), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"service": item})
}

func (s *HTTPServer) handleUpdateService(w http.ResponseWriter, r *http.Request) {
	var body ServiceInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	item, err := s.service.UpdateService(r.Context(), sessionFrom(r), chi.URLParam(r, "id"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"service": item})
}

func (s *HTTPServer) handleDeleteService(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteService(r.Context(), sessionFrom(r), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleServiceImage takes a multipart "image" file of at most storage.MaxUploadSize bytes.
func (s *HTTPServer) handleServiceImage(w http.ResponseWriter, r *http.Request) {
	file, header, ok := s.multipartFile(w, r, "image")
	if !ok {
		return
	}
	defer file.Close()

	item, err := s.service.UploadServiceImage(r.Context(), sessionFrom(r), chi.URLParam(r, "id"), header.Filename, file, header.Size)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// handleAddFleetDoc takes a multipart "document" file with a "name" and
// repeated "item"/"category" pairs for the checks it covers.
func (s *HTTPServer) handleAddFleetDoc(w http.ResponseWriter, r *http.Request) {
	file, header, ok := s.multipartFile(w, r, "document")
	if !ok {
		return
	}
	defer file.Close()

	doc := store.FleetDoc{Name: r.FormValue("name")}
	categories := r.MultipartForm.Value["category"]
	for i, item := range r.MultipartForm.Value["item"] {
		entry := store.FleetDocItem{Item: item}
		if i < len(categories) {
			entry.Category = categories[i]
		}
		doc.Checklist = append(doc.Checklist, entry)
	}
	item, err := s.service.AddFleetDoc(r.Context(), sessionFrom(r), chi.URLParam(r, "id"), doc, header.Filename, file, header.Size)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// handleAddPortfolioItem takes a multipart "image" file with "title" and "description".
func (s *HTTPServer) handleAddPortfolioItem(w http.ResponseWriter, r *http.Request) {
	file, header, ok := s.multipartFile(w, r, "image")
	if !ok {
		return
	}
	defer file.Close()

	project := store.PortfolioItem{Title: r.FormValue("title"), Description: r.FormValue("description")}
	item, err := s.service.AddPortfolioItem(r.Context(), sessionFrom(r), chi.URLParam(r, "id"), project, header.Filename, file, header.Size)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// multipartFile parses an upload form capped at storage.MaxUploadSize and opens
// field. It writes the error response itself and reports false on failure.
func (s *HTTPServer) multipartFile(w http.ResponseWriter, r *http.Request, field string) (multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxUploadSize+64<<10)
	if err := r.ParseMultipartForm(storage.MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(w, r, uploadError(storage.ErrTooLarge))
			return nil, nil, false
		}
		writeError(w, http.StatusBadRequest, "INVALID_BODY", `Expected a multipart form with a "`+field+`" file`, nil)
		return nil, nil, false
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", field+" file is required", nil)
		return nil, nil, false
	}
	return file, header, true
}

func (s *HTTPServer) handleListImages(w http.ResponseWriter, r *http.Request) {
	images, err := s.service.ListImages(r.Context(), sessionFrom(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"images": images})
}

func (s *HTTPServer) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteImage(r.Context(), sessionFrom(r), chi.URLParam(r, "name")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteUser(r.Context(), sessionFrom(r), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
