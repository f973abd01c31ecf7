package api

import (
	"net/http"

	"github.com/podiumlabs/podium/internal/gamify"
	"github.com/podiumlabs/podium/internal/qa"
	"github.com/podiumlabs/podium/pkg/types"
)

// documentJSON is the response to a document upload.
type documentJSON struct {
	KeyPoints     []string `json:"key_points"`
	TotalPages    int      `json:"total_pages"`
	TotalWords    int      `json:"total_words"`
	QuestionCount int      `json:"question_count"`
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	presentationID := r.PathValue("id")
	p, err := s.store.GetPresentation(r.Context(), presentationID)
	if err != nil {
		s.storeError(w, err)
		return
	}

	file, header, ok := s.formFile(w, r, "document")
	if !ok {
		return
	}
	defer file.Close()

	content, err := s.extractor.Extract(r.Context(), file, header.Filename)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "document extraction failed: "+err.Error())
		return
	}

	if err := s.store.SetDocument(r.Context(), presentationID, content.FullText, content.KeyPoints); err != nil {
		s.storeError(w, err)
		return
	}
	s.award(r, presentationID, gamify.EventDocumentUpload)

	// Anticipated audience questions are regenerated from the fresh document.
	questions := s.questions.Generate(r.Context(), qa.Input{
		Title:        p.Title,
		Description:  p.Description,
		DocumentText: content.FullText,
	})
	if err := s.store.SetQuestions(r.Context(), presentationID, questions); err != nil {
		s.storeError(w, err)
		return
	}

	s.log.Info("document processed",
		"presentation_id", presentationID,
		"key_points", len(content.KeyPoints),
		"questions", len(questions),
	)
	s.writeJSON(w, http.StatusOK, documentJSON{
		KeyPoints:     content.KeyPoints,
		TotalPages:    content.TotalPages,
		TotalWords:    content.TotalWords,
		QuestionCount: len(questions),
	})
}

func (s *Server) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetPresentation(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	questions := p.GeneratedQuestions
	if questions == nil {
		questions = []types.QAItem{}
	}
	s.writeJSON(w, http.StatusOK, questions)
}

func (s *Server) handleListBadges(w http.ResponseWriter, r *http.Request) {
	presentationID := r.PathValue("id")
	if _, err := s.store.GetPresentation(r.Context(), presentationID); err != nil {
		s.storeError(w, err)
		return
	}
	badges, err := s.store.ListBadges(r.Context(), presentationID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, renderBadges(badges))
}
