package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/podiumlabs/podium/internal/store"
)

type createPresentationRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (s *Server) handleCreatePresentation(w http.ResponseWriter, r *http.Request) {
	var req createPresentationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		s.writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	p := &store.Presentation{
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
	}
	if err := s.store.CreatePresentation(r.Context(), p); err != nil {
		s.storeError(w, err)
		return
	}

	s.log.Info("presentation created", "presentation_id", p.ID, "title", p.Title)
	s.writeJSON(w, http.StatusCreated, renderPresentation(p, 0))
}

func (s *Server) handleListPresentations(w http.ResponseWriter, r *http.Request) {
	presentations, err := s.store.ListPresentations(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}

	out := make([]presentationJSON, 0, len(presentations))
	for i := range presentations {
		p := &presentations[i]
		count, err := s.store.CountRecordings(r.Context(), p.ID)
		if err != nil {
			s.storeError(w, err)
			return
		}
		out = append(out, renderPresentation(p, count))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetPresentation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p, err := s.store.GetPresentation(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	count, err := s.store.CountRecordings(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, renderPresentation(p, count))
}
