package plaintext_test

import (
	"context"
	"strings"
	"testing"

	"github.com/podiumlabs/podium/pkg/provider/extract/plaintext"
)

func TestExtract(t *testing.T) {
	t.Parallel()

	doc := strings.Join([]string{
		"Q3 Results",
		"",
		"- Revenue grew forty percent year over year",
		"- Customer churn dropped below two percent",
		"",
		"The new pricing model landed well with enterprise customers.",
	}, "\n")

	p := plaintext.New()
	content, err := p.Extract(context.Background(), strings.NewReader(doc), "notes.md")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if content.FullText != doc {
		t.Error("FullText must be the verbatim document")
	}
	if content.TotalPages != 1 {
		t.Errorf("TotalPages = %d, want 1", content.TotalPages)
	}
	if content.TotalWords != len(strings.Fields(doc)) {
		t.Errorf("TotalWords = %d, want %d", content.TotalWords, len(strings.Fields(doc)))
	}
	want := []string{
		"Revenue grew forty percent year over year",
		"Customer churn dropped below two percent",
		"The new pricing model landed well with enterprise customers.",
	}
	if len(content.KeyPoints) != len(want) {
		t.Fatalf("KeyPoints = %v, want %v", content.KeyPoints, want)
	}
	for i := range want {
		if content.KeyPoints[i] != want[i] {
			t.Errorf("KeyPoints[%d] = %q, want %q", i, content.KeyPoints[i], want[i])
		}
	}
}

func TestExtractPagesFromFormFeeds(t *testing.T) {
	t.Parallel()

	p := plaintext.New()
	content, err := p.Extract(context.Background(), strings.NewReader("page one\fpage two\fpage three"), "deck.txt")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if content.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", content.TotalPages)
	}
}

func TestExtractRejectsUnknownTypes(t *testing.T) {
	t.Parallel()

	p := plaintext.New()
	if _, err := p.Extract(context.Background(), strings.NewReader("x"), "slides.pptx"); err == nil {
		t.Error("Extract(.pptx) succeeded, want error")
	}
}

func TestKeyPointsBulletVariants(t *testing.T) {
	t.Parallel()

	doc := strings.Join([]string{
		"* star bullet point here",
		"• unicode bullet point here",
		"1. first numbered item here",
		"2) second numbered item here",
	}, "\n")

	points := plaintext.KeyPoints(doc)
	if len(points) != 4 {
		t.Fatalf("KeyPoints = %v, want 4 entries", points)
	}
	if points[0] != "star bullet point here" {
		t.Errorf("points[0] = %q", points[0])
	}
	if points[2] != "first numbered item here" {
		t.Errorf("points[2] = %q", points[2])
	}
}

func TestKeyPointsSentenceLengthBounds(t *testing.T) {
	t.Parallel()

	doc := strings.Join([]string{
		"Short heading line",                     // 3 words: too short
		"This line has five words",               // qualifies, at the lower bound
		"lowercase line with plenty of words in", // no leading capital
		"The " + strings.Repeat("very ", 50) + "long line", // over 50 words
	}, "\n")

	points := plaintext.KeyPoints(doc)
	if len(points) != 1 {
		t.Fatalf("KeyPoints = %v, want only the five-word line", points)
	}
	if points[0] != "This line has five words" {
		t.Errorf("points[0] = %q", points[0])
	}
}

func TestKeyPointsNearDuplicateSuppression(t *testing.T) {
	t.Parallel()

	doc := strings.Join([]string{
		"- Revenue grew forty percent this quarter",
		"- Revenue grew forty percent this quarter!",
		"- Customer churn dropped below two percent",
	}, "\n")

	points := plaintext.KeyPoints(doc)
	if len(points) != 2 {
		t.Fatalf("KeyPoints = %v, want duplicate suppressed", points)
	}
}

func TestKeyPointsCap(t *testing.T) {
	t.Parallel()

	lines := []string{
		"- Revenue grew forty percent year over year",
		"- Customer churn dropped below two percent",
		"- Engineering headcount doubled in the Berlin office",
		"- The mobile app launch slipped to November",
		"- Gross margin improved despite hardware costs",
		"- Support ticket volume fell after the docs rewrite",
		"- Three enterprise logos signed multi-year contracts",
		"- Cloud spend was renegotiated with the vendor",
		"- The security audit closed with zero criticals",
		"- Partner integrations now cover every major CRM",
		"- Onboarding time dropped from weeks to days",
		"- Net promoter score reached an all-time high",
		"- The data pipeline was migrated off the legacy stack",
		"- Localisation shipped for five new markets",
		"- Hiring freezes ended in the sales organisation",
		"- Board approved the acquisition of the analytics startup",
		"- Quarterly planning moved to a six-week cadence",
		"- Infrastructure incidents halved after the SRE push",
		"- The design system reached full component coverage",
		"- Developer productivity tooling got dedicated funding",
		"- Marketing attribution finally matches finance numbers",
		"- The pricing experiment lifted conversion measurably",
		"- Churn analysis pointed at the billing experience",
		"- Accessibility compliance passed the external review",
		"- International revenue overtook domestic for the first time",
	}
	points := plaintext.KeyPoints(strings.Join(lines, "\n"))
	if len(points) != 20 {
		t.Errorf("len(KeyPoints) = %d, want cap of 20", len(points))
	}
}
