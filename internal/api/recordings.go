package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/podiumlabs/podium/internal/gamify"
	"github.com/podiumlabs/podium/internal/store"
)

// maxUploadBytes bounds a single multipart upload.
const maxUploadBytes = 100 << 20

// audioFormats are the accepted upload container formats, keyed by file
// extension.
var audioFormats = map[string]struct{}{
	"wav": {}, "mp3": {}, "m4a": {}, "ogg": {}, "webm": {}, "flac": {},
}

func (s *Server) handleUploadRecording(w http.ResponseWriter, r *http.Request) {
	presentationID := r.PathValue("id")
	if _, err := s.store.GetPresentation(r.Context(), presentationID); err != nil {
		s.storeError(w, err)
		return
	}

	file, header, ok := s.formFile(w, r, "audio")
	if !ok {
		return
	}
	defer file.Close()

	format, err := audioFormat(header.Filename)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	path, err := s.saveAudio(file, format)
	if err != nil {
		s.log.Error("audio save failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not store audio")
		return
	}

	rec := &store.Recording{
		PresentationID: presentationID,
		AudioPath:      path,
		AudioFormat:    format,
	}
	if err := s.store.CreateRecording(r.Context(), rec); err != nil {
		os.Remove(path)
		s.storeError(w, err)
		return
	}

	event := gamify.EventRecordingUpload
	if rec.IterationNumber == 1 {
		event = gamify.EventFirstRecording
	}
	s.award(r, presentationID, event)

	s.runner.Enqueue(rec.ID)
	s.log.Info("recording uploaded",
		"recording_id", rec.ID,
		"presentation_id", presentationID,
		"iteration", rec.IterationNumber,
		"format", format,
	)
	s.writeJSON(w, http.StatusAccepted, renderRecording(rec))
}

func (s *Server) handleListRecordings(w http.ResponseWriter, r *http.Request) {
	presentationID := r.PathValue("id")
	if _, err := s.store.GetPresentation(r.Context(), presentationID); err != nil {
		s.storeError(w, err)
		return
	}
	recordings, err := s.store.ListRecordings(r.Context(), presentationID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	out := make([]recordingJSON, 0, len(recordings))
	for i := range recordings {
		out = append(out, renderRecording(&recordings[i]))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetRecording(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetRecording(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, renderRecording(rec))
}

func (s *Server) handleReanalyze(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetRecording(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	if rec.Status == store.StatusProcessing {
		s.writeError(w, http.StatusConflict, "analysis already in progress")
		return
	}
	if rec.AudioPath == "" {
		s.writeError(w, http.StatusBadRequest, "recording has no stored audio")
		return
	}

	s.runner.Enqueue(rec.ID)
	s.log.Info("recording reanalysis requested", "recording_id", rec.ID)
	s.writeJSON(w, http.StatusAccepted, renderRecording(rec))
}

// formFile extracts a single named multipart file, writing the error response
// itself when extraction fails.
func (s *Server) formFile(w http.ResponseWriter, r *http.Request, field string) (multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile(field)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("missing %q upload", field))
		return nil, nil, false
	}
	return file, header, true
}

// audioFormat derives the container format from the uploaded filename.
func audioFormat(filename string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return "wav", nil
	}
	if _, ok := audioFormats[ext]; !ok {
		return "", fmt.Errorf("unsupported audio format %q", ext)
	}
	return ext, nil
}

// saveAudio writes the upload to the audio directory under a fresh name.
func (s *Server) saveAudio(file io.Reader, format string) (string, error) {
	dir := s.audioDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "podium-audio")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create audio dir: %w", err)
	}

	path := filepath.Join(dir, uuid.NewString()+"."+format)
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create audio file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write audio file: %w", err)
	}
	return path, nil
}

// award fires one XP event, logging instead of failing the request.
func (s *Server) award(r *http.Request, presentationID string, event gamify.Event) {
	award, err := s.engine.AwardXP(r.Context(), presentationID, event, gamify.FactContext{})
	if err != nil {
		s.log.Error("xp award failed", "presentation_id", presentationID, "event", event, "error", err)
		return
	}
	s.metrics.RecordXPAwarded(r.Context(), string(event), award.XPAwarded)
	for _, badge := range award.BadgesEarned {
		s.metrics.RecordBadgeEarned(r.Context(), string(badge))
	}
}
