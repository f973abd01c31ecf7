// Package types defines the shared types used across all Podium packages.
//
// These types form the lingua franca between providers, the analysis engine,
// the store, and the pipeline. They are intentionally minimal — each package
// defines its own domain types, but cross-cutting data structures live here to
// avoid circular imports.
package types

// TranscriptionResult is the output of a batch speech-to-text request.
type TranscriptionResult struct {
	// Text is the full transcribed speech content.
	Text string

	// DurationSeconds is the length of the source audio in seconds.
	DurationSeconds float64
}

// FillerOccurrence records a single filler-word match inside a transcript.
type FillerOccurrence struct {
	// Word is the lexicon entry that matched (lowercase, as listed in the lexicon).
	Word string `json:"word"`

	// Position is the character offset of the match in the original-case transcript.
	Position int `json:"position"`

	// Context is a window of surrounding transcript text (up to 50 characters on
	// each side of the match, trimmed of surrounding whitespace).
	Context string `json:"context"`
}

// DocumentContent is the output of a document extraction request. It carries
// the raw text plus the candidate key points used for coverage scoring.
type DocumentContent struct {
	// FullText is the complete extracted text of the document.
	FullText string

	// KeyPoints is an ordered list of candidate key-point statements, capped
	// at 20 entries.
	KeyPoints []string

	// TotalPages is the number of pages or slides in the source document.
	TotalPages int

	// TotalWords is the whitespace-separated word count of FullText.
	TotalWords int
}

// QAItem is a single anticipated audience question with a suggested answer
// approach, produced by the text-generation collaborator (or a fixed fallback).
type QAItem struct {
	// Question is the anticipated audience question.
	Question string `json:"question"`

	// AnswerFramework is a short suggestion for how to approach the answer.
	AnswerFramework string `json:"answer_framework"`

	// Difficulty is one of "easy", "medium", or "hard".
	Difficulty string `json:"difficulty"`
}

// Message represents a single message in an LLM conversation.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}
