package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/podiumlabs/podium/internal/api"
	"github.com/podiumlabs/podium/internal/gamify"
	"github.com/podiumlabs/podium/internal/qa"
	"github.com/podiumlabs/podium/internal/store"
	extractmock "github.com/podiumlabs/podium/pkg/provider/extract/mock"
	"github.com/podiumlabs/podium/pkg/types"
)

// fakeEnqueuer records which recordings were scheduled for analysis.
type fakeEnqueuer struct {
	mu  sync.Mutex
	ids []string
}

func (f *fakeEnqueuer) Enqueue(recordingID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, recordingID)
}

func (f *fakeEnqueuer) enqueued() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ids...)
}

type fixture struct {
	mux       *http.ServeMux
	st        *store.MemStore
	enq       *fakeEnqueuer
	extractor *extractmock.Provider
	hub       *api.Hub
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := store.NewMemStore()
	enq := &fakeEnqueuer{}
	extractor := &extractmock.Provider{}
	hub := api.NewHub(discardLogger())

	srv := api.New(st, enq, extractor,
		qa.New(nil, qa.WithLogger(discardLogger())),
		gamify.NewEngine(st, gamify.WithLogger(discardLogger())),
		hub,
		api.WithLogger(discardLogger()),
		api.WithAudioDir(t.TempDir()),
	)
	mux := http.NewServeMux()
	srv.Register(mux)

	return &fixture{mux: mux, st: st, enq: enq, extractor: extractor, hub: hub}
}

func (f *fixture) do(method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)
	return w
}

func (f *fixture) createPresentation(t *testing.T, title string) *store.Presentation {
	t.Helper()
	p := &store.Presentation{Title: title}
	if err := f.st.CreatePresentation(context.Background(), p); err != nil {
		t.Fatalf("CreatePresentation: %v", err)
	}
	return p
}

func multipartBody(t *testing.T, field, filename string, content []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, w.Body.String())
	}
	return v
}

// ── presentations ────────────────────────────────────────────────────────────

func TestCreatePresentation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/v1/presentations",
		strings.NewReader(`{"title":"Launch pitch","description":"Q3 launch"}`),
		"application/json")
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body: %s)", w.Code, w.Body.String())
	}

	resp := decode[map[string]any](t, w)
	if resp["title"] != "Launch pitch" {
		t.Errorf("title = %v, want Launch pitch", resp["title"])
	}
	if resp["current_level"] != float64(1) {
		t.Errorf("current_level = %v, want 1", resp["current_level"])
	}
	if resp["level_name"] != "Novice" {
		t.Errorf("level_name = %v, want Novice", resp["level_name"])
	}
	if resp["id"] == "" {
		t.Error("id is empty")
	}
}

func TestCreatePresentation_MissingTitle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/v1/presentations",
		strings.NewReader(`{"description":"no title"}`), "application/json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCreatePresentation_InvalidJSON(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/v1/presentations",
		strings.NewReader(`{"title":`), "application/json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetPresentation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	p := f.createPresentation(t, "Demo day")

	w := f.do(http.MethodGet, "/api/v1/presentations/"+p.ID, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	resp := decode[map[string]any](t, w)
	if resp["id"] != p.ID {
		t.Errorf("id = %v, want %v", resp["id"], p.ID)
	}
	if resp["recording_count"] != float64(0) {
		t.Errorf("recording_count = %v, want 0", resp["recording_count"])
	}
}

func TestGetPresentation_NotFound(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/v1/presentations/missing", nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestListPresentations(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.createPresentation(t, "First")
	f.createPresentation(t, "Second")

	w := f.do(http.MethodGet, "/api/v1/presentations", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	resp := decode[[]map[string]any](t, w)
	if len(resp) != 2 {
		t.Errorf("got %d presentations, want 2", len(resp))
	}
}

// ── recording upload ─────────────────────────────────────────────────────────

func TestUploadRecording(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	p := f.createPresentation(t, "Pitch")

	body, contentType := multipartBody(t, "audio", "take1.wav", []byte("RIFF-audio-bytes"))
	w := f.do(http.MethodPost, "/api/v1/presentations/"+p.ID+"/recordings", body, contentType)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body: %s)", w.Code, w.Body.String())
	}

	resp := decode[map[string]any](t, w)
	if resp["status"] != "pending" {
		t.Errorf("status = %v, want pending", resp["status"])
	}
	if resp["iteration_number"] != float64(1) {
		t.Errorf("iteration_number = %v, want 1", resp["iteration_number"])
	}
	recID, _ := resp["id"].(string)
	if recID == "" {
		t.Fatal("response has no recording id")
	}

	// The pipeline run was scheduled.
	if got := f.enq.enqueued(); len(got) != 1 || got[0] != recID {
		t.Errorf("enqueued = %v, want [%s]", got, recID)
	}

	// The audio landed on disk with the uploaded bytes.
	rec, err := f.st.GetRecording(context.Background(), recID)
	if err != nil {
		t.Fatalf("GetRecording: %v", err)
	}
	data, err := os.ReadFile(rec.AudioPath)
	if err != nil {
		t.Fatalf("read stored audio: %v", err)
	}
	if string(data) != "RIFF-audio-bytes" {
		t.Errorf("stored audio = %q, want uploaded bytes", data)
	}
	if rec.AudioFormat != "wav" {
		t.Errorf("AudioFormat = %q, want wav", rec.AudioFormat)
	}

	// First upload awards the first_recording event (50 XP).
	pres, err := f.st.GetPresentation(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("GetPresentation: %v", err)
	}
	if pres.TotalXP != 50 {
		t.Errorf("TotalXP = %d, want 50", pres.TotalXP)
	}
}

func TestUploadRecording_SecondUploadAwardsUploadXP(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	p := f.createPresentation(t, "Pitch")

	for range 2 {
		body, contentType := multipartBody(t, "audio", "take.wav", []byte("bytes"))
		w := f.do(http.MethodPost, "/api/v1/presentations/"+p.ID+"/recordings", body, contentType)
		if w.Code != http.StatusAccepted {
			t.Fatalf("status = %d, want 202", w.Code)
		}
	}

	// 50 for the first recording, 20 for the repeat upload.
	pres, err := f.st.GetPresentation(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("GetPresentation: %v", err)
	}
	if pres.TotalXP != 70 {
		t.Errorf("TotalXP = %d, want 70", pres.TotalXP)
	}
}

func TestUploadRecording_UnsupportedFormat(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	p := f.createPresentation(t, "Pitch")

	body, contentType := multipartBody(t, "audio", "malware.exe", []byte("nope"))
	w := f.do(http.MethodPost, "/api/v1/presentations/"+p.ID+"/recordings", body, contentType)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestUploadRecording_MissingFile(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	p := f.createPresentation(t, "Pitch")

	body, contentType := multipartBody(t, "wrong_field", "take.wav", []byte("bytes"))
	w := f.do(http.MethodPost, "/api/v1/presentations/"+p.ID+"/recordings", body, contentType)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestUploadRecording_UnknownPresentation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	body, contentType := multipartBody(t, "audio", "take.wav", []byte("bytes"))
	w := f.do(http.MethodPost, "/api/v1/presentations/missing/recordings", body, contentType)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// ── recording status and reanalysis ──────────────────────────────────────────

func TestGetRecording(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	p := f.createPresentation(t, "Pitch")
	rec := &store.Recording{PresentationID: p.ID, AudioPath: "/tmp/a.wav", AudioFormat: "wav"}
	if err := f.st.CreateRecording(context.Background(), rec); err != nil {
		t.Fatalf("CreateRecording: %v", err)
	}

	w := f.do(http.MethodGet, "/api/v1/recordings/"+rec.ID, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	resp := decode[map[string]any](t, w)
	if resp["status"] != "pending" {
		t.Errorf("status = %v, want pending", resp["status"])
	}
}

func TestGetRecording_NotFound(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/v1/recordings/missing", nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestReanalyze(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	p := f.createPresentation(t, "Pitch")
	rec := &store.Recording{PresentationID: p.ID, AudioPath: "/tmp/a.wav", AudioFormat: "wav"}
	if err := f.st.CreateRecording(context.Background(), rec); err != nil {
		t.Fatalf("CreateRecording: %v", err)
	}
	rec.Status = store.StatusFailed
	if err := f.st.UpdateRecording(context.Background(), rec); err != nil {
		t.Fatalf("UpdateRecording: %v", err)
	}

	w := f.do(http.MethodPost, "/api/v1/recordings/"+rec.ID+"/reanalyze", nil, "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body: %s)", w.Code, w.Body.String())
	}
	if got := f.enq.enqueued(); len(got) != 1 || got[0] != rec.ID {
		t.Errorf("enqueued = %v, want [%s]", got, rec.ID)
	}
}

func TestReanalyze_AlreadyProcessing(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	p := f.createPresentation(t, "Pitch")
	rec := &store.Recording{PresentationID: p.ID, AudioPath: "/tmp/a.wav", AudioFormat: "wav"}
	if err := f.st.CreateRecording(context.Background(), rec); err != nil {
		t.Fatalf("CreateRecording: %v", err)
	}
	rec.Status = store.StatusProcessing
	if err := f.st.UpdateRecording(context.Background(), rec); err != nil {
		t.Fatalf("UpdateRecording: %v", err)
	}

	w := f.do(http.MethodPost, "/api/v1/recordings/"+rec.ID+"/reanalyze", nil, "")
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
	if got := f.enq.enqueued(); len(got) != 0 {
		t.Errorf("enqueued = %v, want none", got)
	}
}

// ── documents and questions ──────────────────────────────────────────────────

func TestUploadDocument(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	p := f.createPresentation(t, "Pitch")
	f.extractor.Content = &types.DocumentContent{
		FullText:   "Our quarterly revenue grew twenty percent.",
		KeyPoints:  []string{"quarterly revenue growth"},
		TotalPages: 1,
		TotalWords: 6,
	}

	body, contentType := multipartBody(t, "document", "notes.txt", []byte("notes"))
	w := f.do(http.MethodPost, "/api/v1/presentations/"+p.ID+"/document", body, contentType)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", w.Code, w.Body.String())
	}

	resp := decode[map[string]any](t, w)
	// The nil-provider generator falls back to the fixed 8-question list.
	if resp["question_count"] != float64(8) {
		t.Errorf("question_count = %v, want 8", resp["question_count"])
	}

	got, err := f.st.GetPresentation(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("GetPresentation: %v", err)
	}
	if got.DocumentText != "Our quarterly revenue grew twenty percent." {
		t.Errorf("DocumentText = %q, want extracted text", got.DocumentText)
	}
	if len(got.KeyPoints) != 1 || got.KeyPoints[0] != "quarterly revenue growth" {
		t.Errorf("KeyPoints = %v, want the extracted point", got.KeyPoints)
	}
	if len(got.GeneratedQuestions) != 8 {
		t.Errorf("GeneratedQuestions = %d, want 8", len(got.GeneratedQuestions))
	}
	// document_upload awards 30 XP.
	if got.TotalXP != 30 {
		t.Errorf("TotalXP = %d, want 30", got.TotalXP)
	}
}

func TestUploadDocument_ExtractionError(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	p := f.createPresentation(t, "Pitch")
	f.extractor.Err = io.ErrUnexpectedEOF

	body, contentType := multipartBody(t, "document", "notes.bin", []byte{0x1})
	w := f.do(http.MethodPost, "/api/v1/presentations/"+p.ID+"/document", body, contentType)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}

	// Nothing was persisted.
	got, err := f.st.GetPresentation(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("GetPresentation: %v", err)
	}
	if got.DocumentText != "" || got.TotalXP != 0 {
		t.Error("failed extraction must not persist a document or award XP")
	}
}

func TestListQuestions_EmptyBeforeDocument(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	p := f.createPresentation(t, "Pitch")

	w := f.do(http.MethodGet, "/api/v1/presentations/"+p.ID+"/questions", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	resp := decode[[]types.QAItem](t, w)
	if len(resp) != 0 {
		t.Errorf("got %d questions, want 0", len(resp))
	}
}

func TestListBadges(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	p := f.createPresentation(t, "Pitch")

	w := f.do(http.MethodGet, "/api/v1/presentations/"+p.ID+"/badges", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	resp := decode[[]map[string]any](t, w)
	if len(resp) != 0 {
		t.Errorf("got %d badges, want 0", len(resp))
	}
}

func TestListBadges_AfterUpload(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	p := f.createPresentation(t, "Pitch")

	body, contentType := multipartBody(t, "audio", "take.wav", []byte("bytes"))
	if w := f.do(http.MethodPost, "/api/v1/presentations/"+p.ID+"/recordings", body, contentType); w.Code != http.StatusAccepted {
		t.Fatalf("upload status = %d, want 202", w.Code)
	}

	w := f.do(http.MethodGet, "/api/v1/presentations/"+p.ID+"/badges", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	resp := decode[[]map[string]any](t, w)
	found := false
	for _, b := range resp {
		if b["type"] == "first_recording" {
			found = true
		}
	}
	if !found {
		t.Errorf("badges = %v, want first_recording", resp)
	}
}
