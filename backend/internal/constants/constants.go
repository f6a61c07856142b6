package constants

import "time"

// Pipeline defaults
const (
	// DefaultMemoryWindow is the maximum number of turns kept per session
	DefaultMemoryWindow = 5

	// DefaultContextTurns is how many recent turns are injected into prompts
	DefaultContextTurns = 3

	// DefaultStageTimeout bounds each network call made by a stage
	DefaultStageTimeout = 30 * time.Second

	// QueryResultLimit caps rows returned by generated queries
	QueryResultLimit = 20

	// FormatterResultSample is how many records the formatter shows the model
	FormatterResultSample = 5
)

// CoTFinalMarker is the chain-of-thought delimiter contract, version 1.
// Prompts ask the model to reason first and finish with a line that starts
// with this marker; the parser takes everything after the last marker as the
// final value, falling back to the last non-empty line.
const CoTFinalMarker = "FINAL ANSWER:"

// Fallback answer texts
const (
	// FallbackAnswer is the last-resort answer when formatting itself fails
	FallbackAnswer = "I'm sorry, I wasn't able to produce an answer for that question. Please try rephrasing it."

	// NoResultsAnswer is returned when a query ran successfully but matched nothing
	NoResultsAnswer = "I didn't find any information for that question. Try asking about genes, diseases, or drugs in our database."
)
