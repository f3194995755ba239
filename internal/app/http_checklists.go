package app

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

const maxChecklistBody = 1 << 20

func (s *HTTPServer) handleServiceChecklists(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.ListServiceChecklists(r.Context(), chi.URLParam(r, "serviceId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"checklists": items})
}

func (s *HTTPServer) handleLatestChecklist(w http.ResponseWriter, r *http.Request) {
	item, err := s.service.LatestChecklistForUser(r.Context(), chi.URLParam(r, "serviceId"), s.optionalSession(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	// A nil map encodes as null.
	writeJSON(w, http.StatusOK, map[string]any{"checklist": item})
}

func (s *HTTPServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := s.service.Dashboard(r.Context(), sessionFrom(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, map[string]any{"role": dashboard.Role(), "dashboard": dashboard})
}

func (s *HTTPServer) handleChecklistForm(w http.ResponseWriter, r *http.Request) {
	page, err := s.service.ChecklistForm(r.Context(), sessionFrom(r), chi.URLParam(r, "bookingId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeHTML(w, http.StatusOK, page)
}

// handleChecklistSubmit accepts the form urlencoded, as multipart or as JSON.
// Errors use the {message} shape the form script expects.
func (s *HTTPServer) handleChecklistSubmit(w http.ResponseWriter, r *http.Request) {
	input, err := readChecklistInput(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Could not read checklist submission"})
		return
	}
	payload, err := s.service.SubmitChecklist(r.Context(), sessionFrom(r), chi.URLParam(r, "bookingId"), input)
	if err != nil {
		status, _, message, _ := mapError(err)
		if status >= http.StatusInternalServerError {
			s.logError(r, err)
			message = "Server error saving checklist"
		}
		writeJSON(w, status, map[string]any{"message": message})
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func readChecklistInput(w http.ResponseWriter, r *http.Request) (ChecklistInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChecklistBody)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			return ChecklistInput{}, err
		}
		return ChecklistInput{JSON: raw}, nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxChecklistBody); err != nil {
			return ChecklistInput{}, err
		}
	default:
		if err := r.ParseForm(); err != nil {
			return ChecklistInput{}, err
		}
	}
	return ChecklistInput{Form: r.PostForm}, nil
}

func (s *HTTPServer) handleChecklistView(w http.ResponseWriter, r *http.Request) {
	page, err := s.service.ChecklistPage(r.Context(), sessionFrom(r), chi.URLParam(r, "bookingId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeHTML(w, http.StatusOK, page)
}

func (s *HTTPServer) handleChecklistDownload(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.ChecklistPDF(r.Context(), sessionFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.Header().Set("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleChecklistCards(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, raw := range r.URL.Query()["ids"] {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "ids is required", nil)
		return
	}
	page, err := s.service.ChecklistCards(r.Context(), ids)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeHTML(w, http.StatusOK, page)
}
