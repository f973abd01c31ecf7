// Package plaintext provides an extract.Provider for plain-text and Markdown
// documents.
//
// Key points are derived heuristically: bullet and numbered list items plus
// sentence-length capitalised lines are candidates, near-duplicates are
// suppressed by Jaro-Winkler similarity, and the result is capped. The
// heuristic errs toward fewer, denser points because each one becomes a
// coverage target the speaker is scored against.
package plaintext

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"

	"github.com/podiumlabs/podium/pkg/provider/extract"
	"github.com/podiumlabs/podium/pkg/types"
)

const (
	// maxKeyPoints caps the key-point list so coverage scoring stays
	// meaningful for long outlines.
	maxKeyPoints = 20

	// minPointWords and maxPointWords bound candidate lines to sentence
	// length; shorter lines are headings, longer ones are prose.
	minPointWords = 5
	maxPointWords = 50

	// dupThreshold is the Jaro-Winkler similarity above which two candidate
	// points are considered the same point phrased twice.
	dupThreshold = 0.92
)

// Compile-time assertion that Provider implements extract.Provider.
var _ extract.Provider = (*Provider)(nil)

// Provider implements extract.Provider for .txt and .md files. The zero value
// is ready to use.
type Provider struct{}

// New returns a plain-text extract provider.
func New() *Provider {
	return &Provider{}
}

// Extract implements [extract.Provider.Extract]. Pages are delimited by form
// feed characters; documents without form feeds count as a single page.
func (p *Provider) Extract(ctx context.Context, doc io.Reader, filename string) (*types.DocumentContent, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".txt", ".md", ".markdown", "":
	default:
		return nil, fmt.Errorf("plaintext: unsupported document type %q", ext)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("plaintext: context already cancelled: %w", err)
	}

	data, err := io.ReadAll(doc)
	if err != nil {
		return nil, fmt.Errorf("plaintext: read document: %w", err)
	}

	text := string(data)
	pages := strings.Count(text, "\f") + 1

	return &types.DocumentContent{
		FullText:   text,
		KeyPoints:  KeyPoints(text),
		TotalPages: pages,
		TotalWords: len(strings.Fields(text)),
	}, nil
}

// KeyPoints derives a bounded list of key points from document text. Bullet
// and numbered list items are taken regardless of length; free-standing
// capitalised lines qualify only at sentence length (5 to 50 words).
func KeyPoints(text string) []string {
	points := []string{}
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if len(points) >= maxKeyPoints {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		point, ok := candidate(line)
		if !ok {
			continue
		}
		if isNearDuplicate(point, points) {
			continue
		}
		points = append(points, point)
	}
	return points
}

// candidate reports whether a line qualifies as a key point, returning the
// cleaned point text.
func candidate(line string) (string, bool) {
	if stripped, ok := stripBullet(line); ok {
		if stripped == "" {
			return "", false
		}
		return stripped, true
	}

	runes := []rune(line)
	if !unicode.IsUpper(runes[0]) {
		return "", false
	}
	words := len(strings.Fields(line))
	if words < minPointWords || words > maxPointWords {
		return "", false
	}
	return line, true
}

// stripBullet removes a leading bullet or numbered-list marker. The second
// return value reports whether the line was a list item at all.
func stripBullet(line string) (string, bool) {
	for _, prefix := range []string{"- ", "* ", "• ", "+ "} {
		if rest, ok := strings.CutPrefix(line, prefix); ok {
			return strings.TrimSpace(rest), true
		}
	}

	// Numbered items: "1. ", "2) ", "10. ".
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return strings.TrimSpace(line[i+1:]), true
	}
	return "", false
}

// isNearDuplicate reports whether point is a rephrasing of one already kept.
func isNearDuplicate(point string, kept []string) bool {
	lower := strings.ToLower(point)
	for _, existing := range kept {
		if matchr.JaroWinkler(lower, strings.ToLower(existing), true) >= dupThreshold {
			return true
		}
	}
	return false
}
