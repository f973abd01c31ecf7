package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewRequiresServerURL(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Error("New(\"\") succeeded, want error")
	}
}

func TestTranscribe(t *testing.T) {
	t.Parallel()

	var gotLanguage, gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" {
			t.Errorf("path = %q, want /inference", r.URL.Path)
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotLanguage = r.FormValue("language")
		gotModel = r.FormValue("model")

		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		defer file.Close()

		json.NewEncoder(w).Encode(map[string]string{"text": "  hello world  "})
	}))
	defer srv.Close()

	p, err := New(srv.URL, WithLanguage("en"), WithModel("base.en"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Two seconds of 16 kHz mono silence.
	wav := encodeWAV(make([]byte, 2*16000*2), 16000, 1)
	result, err := p.Transcribe(context.Background(), bytes.NewReader(wav), "wav")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if result.Text != "hello world" {
		t.Errorf("Text = %q, want trimmed %q", result.Text, "hello world")
	}
	if math.Abs(result.DurationSeconds-2.0) > 1e-9 {
		t.Errorf("DurationSeconds = %v, want 2.0", result.DurationSeconds)
	}
	if gotLanguage != "en" {
		t.Errorf("language field = %q, want en", gotLanguage)
	}
	if gotModel != "base.en" {
		t.Errorf("model field = %q, want base.en", gotModel)
	}
}

func TestTranscribeNonWAVHasZeroDuration(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"text": "compressed audio"})
	}))
	defer srv.Close()

	p, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := p.Transcribe(context.Background(), bytes.NewReader([]byte("fake mp3 bytes")), "mp3")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Text != "compressed audio" {
		t.Errorf("Text = %q", result.Text)
	}
	if result.DurationSeconds != 0 {
		t.Errorf("DurationSeconds = %v, want 0", result.DurationSeconds)
	}
}

func TestTranscribeServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Transcribe(context.Background(), bytes.NewReader([]byte{1, 2, 3}), "wav"); err == nil {
		t.Error("Transcribe succeeded against HTTP 500, want error")
	}
}

func TestTranscribeEmptyAudio(t *testing.T) {
	t.Parallel()

	p, err := New("http://localhost:1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Transcribe(context.Background(), bytes.NewReader(nil), "wav"); err == nil {
		t.Error("Transcribe on empty input succeeded, want error")
	}
}
