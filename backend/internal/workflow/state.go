package workflow

import (
	"context"
	"time"

	"helix-navigator/backend/internal/adapter"
	"helix-navigator/backend/internal/graph"
	"helix-navigator/backend/internal/memory"
)

// QuestionType is the closed set of question categories the classifier can
// assign. It drives query-template selection.
type QuestionType string

const (
	QuestionTypeGeneDisease      QuestionType = "gene_disease"
	QuestionTypeDrugTreatment    QuestionType = "drug_treatment"
	QuestionTypeProteinFunction  QuestionType = "protein_function"
	QuestionTypeGeneralDB        QuestionType = "general_db"
	QuestionTypeGeneralKnowledge QuestionType = "general_knowledge"
)

// QuestionTypes lists all valid values in classification-priority order
var QuestionTypes = []QuestionType{
	QuestionTypeGeneDisease,
	QuestionTypeDrugTreatment,
	QuestionTypeProteinFunction,
	QuestionTypeGeneralDB,
	QuestionTypeGeneralKnowledge,
}

// IsValid reports whether t is a member of the closed set
func (t QuestionType) IsValid() bool {
	for _, known := range QuestionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Stage identifies one step of the pipeline
type Stage string

const (
	StageClassify Stage = "classify"
	StageExtract  Stage = "extract"
	StageGenerate Stage = "generate"
	StageExecute  Stage = "execute"
	StageFormat   Stage = "format"
)

// StageError tags a captured failure with the stage that produced it. Errors
// are recorded, never raised; the pipeline always runs to completion.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return string(e.Stage) + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ReasoningTrace captures the chain-of-thought text each stage emitted
// before its final value. Diagnostic only.
type ReasoningTrace struct {
	Classify string `json:"classify,omitempty"`
	Extract  string `json:"extract,omitempty"`
	Generate string `json:"generate,omitempty"`
	Format   string `json:"format,omitempty"`
}

// State is the record threaded through one pipeline run. Stages populate
// fields in strict order; a later field is never set before its predecessor
// stage has run.
type State struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`

	QuestionType QuestionType `json:"question_type,omitempty"`
	Entities     []string     `json:"entities,omitempty"`

	// CypherQuery stays empty for general_knowledge questions
	CypherQuery string `json:"cypher_query,omitempty"`

	// queryParams carries the generated parameter bindings to the executor;
	// entities are always bound, never interpolated
	queryParams map[string]any

	// QueryRan distinguishes "executed with zero matches" from "never executed"
	QueryRan      bool           `json:"query_ran"`
	QueryResults  []graph.Record `json:"query_results,omitempty"`
	QueryDuration time.Duration  `json:"query_duration_ns,omitempty"`

	// Answer is always set by pipeline completion, even on failure
	Answer string `json:"answer"`

	Err       *StageError     `json:"-"`
	Reasoning *ReasoningTrace `json:"reasoning,omitempty"`
}

// setError records the first stage failure; later failures do not overwrite
// the original cause
func (s *State) setError(stage Stage, err error) {
	if s.Err == nil {
		s.Err = &StageError{Stage: stage, Err: err}
	}
}

// Completer is the external completion service contract
type Completer interface {
	Complete(ctx context.Context, prompt string, hint adapter.ModelHint) (string, error)
}

// GraphStore is the external graph database contract
type GraphStore interface {
	Execute(ctx context.Context, query string, params map[string]any) ([]graph.Record, error)
	Schema(ctx context.Context) (*graph.Schema, error)
	ValidateQuery(ctx context.Context, query string) bool
}

// Memory is the conversation-history contract the engine depends on
type Memory interface {
	Record(sessionID string, turn memory.Turn) memory.Turn
	FormatContext(sessionID string, maxTurns int) string
}
