// Package analysis implements the deterministic scoring stages of the Podium
// recording pipeline: filler-word detection, pacing and clarity scoring,
// document key-point coverage, score aggregation, and improvement tracking.
//
// Every function in this package is a pure computation over already-extracted
// text or already-known scores. Nothing here performs I/O, and all exported
// types are safe for concurrent use after construction.
package analysis

import (
	"regexp"
	"sort"
	"strings"

	"github.com/podiumlabs/podium/pkg/types"
)

// DefaultLexicon is the ordered list of filler expressions scanned by
// [Detector]. Entries may be single words or short phrases. The order is part
// of the detector contract only in so far as each entry is scanned
// independently; output ordering is always by transcript position.
var DefaultLexicon = []string{
	"um", "uh", "umm", "uhh", "erm", "err",
	"like", "you know", "i mean", "sort of", "kind of",
	"basically", "actually", "literally", "right",
	"okay", "so", "well", "hmm", "ah", "oh",
}

// contextRadius is the number of characters captured on each side of a match
// for the occurrence context window.
const contextRadius = 50

// Detector locates filler expressions in transcript text using
// case-insensitive whole-expression matching. A match never extends a larger
// word: "um" does not match inside "umbrella", and "so" does not match inside
// "sorry".
//
// The zero value is not usable; construct with [NewDetector]. A Detector is
// read-only after construction and safe for concurrent use.
type Detector struct {
	lexicon  []string
	patterns []*regexp.Regexp
}

// DetectorOption is a functional option for configuring a [Detector].
type DetectorOption func(*Detector)

// WithLexicon replaces [DefaultLexicon] with a custom ordered expression list.
// Entries are matched literally (regular-expression metacharacters are quoted).
func WithLexicon(lexicon []string) DetectorOption {
	return func(d *Detector) {
		d.lexicon = lexicon
	}
}

// NewDetector returns a [Detector] with compiled match patterns for each
// lexicon entry.
func NewDetector(opts ...DetectorOption) *Detector {
	d := &Detector{lexicon: DefaultLexicon}
	for _, o := range opts {
		o(d)
	}

	d.patterns = make([]*regexp.Regexp, len(d.lexicon))
	for i, entry := range d.lexicon {
		// Word-boundary anchors keep whole-expression semantics for both
		// single words and phrases ("you know" matches across the space).
		d.patterns[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(entry) + `\b`)
	}
	return d
}

// Detect scans transcript for every lexicon entry and returns all occurrences
// sorted ascending by character offset. Lexicon entries are scanned
// independently over the full text, so overlapping matches from different
// entries (e.g. "know" inside "you know" if both were listed) are all
// reported.
//
// The returned slice is non-nil even when no fillers are found.
func (d *Detector) Detect(transcript string) []types.FillerOccurrence {
	found := []types.FillerOccurrence{}

	for i, pattern := range d.patterns {
		for _, loc := range pattern.FindAllStringIndex(transcript, -1) {
			found = append(found, types.FillerOccurrence{
				Word:     strings.ToLower(d.lexicon[i]),
				Position: loc[0],
				Context:  contextWindow(transcript, loc[0]),
			})
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Position < found[j].Position
	})
	return found
}

// contextWindow returns up to [contextRadius] characters on each side of
// position, clipped at the string bounds and trimmed of surrounding
// whitespace.
func contextWindow(text string, position int) string {
	start := position - contextRadius
	if start < 0 {
		start = 0
	}
	end := position + contextRadius
	if end > len(text) {
		end = len(text)
	}
	return strings.TrimSpace(text[start:end])
}
