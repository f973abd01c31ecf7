package whisper

import (
	"math"
	"testing"
)

func TestParseWAVRoundTrip(t *testing.T) {
	t.Parallel()

	// One second of 16 kHz mono silence.
	pcm := make([]byte, 16000*2)
	wav := encodeWAV(pcm, 16000, 1)

	info, err := parseWAV(wav)
	if err != nil {
		t.Fatalf("parseWAV: %v", err)
	}
	if info.sampleRate != 16000 || info.channels != 1 || info.bitsPerSample != 16 {
		t.Errorf("parsed header = %+v, want 16000 Hz mono 16-bit", info)
	}
	if len(info.pcm) != len(pcm) {
		t.Errorf("pcm length = %d, want %d", len(info.pcm), len(pcm))
	}
	if d := info.durationSeconds(); math.Abs(d-1.0) > 1e-9 {
		t.Errorf("duration = %v, want 1.0", d)
	}
}

func TestParseWAVStereoDuration(t *testing.T) {
	t.Parallel()

	// Half a second of 48 kHz stereo.
	pcm := make([]byte, 48000*2*2/2)
	wav := encodeWAV(pcm, 48000, 2)

	info, err := parseWAV(wav)
	if err != nil {
		t.Fatalf("parseWAV: %v", err)
	}
	if d := info.durationSeconds(); math.Abs(d-0.5) > 1e-9 {
		t.Errorf("duration = %v, want 0.5", d)
	}
}

func TestParseWAVRejectsGarbage(t *testing.T) {
	t.Parallel()

	inputs := [][]byte{
		nil,
		[]byte("not audio at all"),
		[]byte("RIFF\x00\x00\x00\x00JUNK"),
	}
	for _, in := range inputs {
		if _, err := parseWAV(in); err == nil {
			t.Errorf("parseWAV(%q) succeeded, want error", in)
		}
	}
}

func TestParseWAVTruncatedData(t *testing.T) {
	t.Parallel()

	wav := encodeWAV(make([]byte, 1000), 16000, 1)
	if _, err := parseWAV(wav[:len(wav)-100]); err == nil {
		t.Error("parseWAV on truncated file succeeded, want error")
	}
}

func TestPCMToFloat32Mono(t *testing.T) {
	t.Parallel()

	// Two stereo frames: (16384, -16384) averages to 0, (8192, 8192) to 0.25.
	pcm := []byte{
		0x00, 0x40, 0x00, 0xC0,
		0x00, 0x20, 0x00, 0x20,
	}
	mono := pcmToFloat32Mono(pcm, 2)
	if len(mono) != 2 {
		t.Fatalf("len = %d, want 2", len(mono))
	}
	if math.Abs(float64(mono[0])) > 1e-6 {
		t.Errorf("mono[0] = %v, want 0", mono[0])
	}
	if math.Abs(float64(mono[1])-0.25) > 1e-6 {
		t.Errorf("mono[1] = %v, want 0.25", mono[1])
	}
}
