package workflow

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"helix-navigator/backend/internal/adapter"
	"helix-navigator/backend/internal/constants"
	"helix-navigator/backend/internal/graph"
	apperrors "helix-navigator/backend/pkg/errors"
)

// Stage 1: map the question onto the closed question-type set
func (e *Engine) classify(ctx context.Context, state *State, builder PromptBuilder, memoryContext string) {
	prompt := builder.Classify(state.Question, memoryContext)

	response, err := e.complete(ctx, prompt, adapter.ModelFast)
	if err != nil {
		state.QuestionType = QuestionTypeGeneralKnowledge
		state.setError(StageClassify, apperrors.NewBaseError(apperrors.ErrorTypeClassification, "classification call failed", err))
		return
	}

	value := response
	if builder.ChainOfThought {
		var reasoning string
		reasoning, value = SplitReasoning(response)
		e.trace(state).Classify = reasoning
	}

	questionType, ok := parseQuestionType(value)
	if !ok {
		// Fall back to the whole response before giving up; CoT models
		// sometimes put the category mid-sentence
		questionType, ok = parseQuestionType(response)
	}
	if !ok {
		state.QuestionType = QuestionTypeGeneralKnowledge
		state.setError(StageClassify, apperrors.NewClassificationFailed(response))
		e.logger.Warn("No valid question type in response", zap.String("response", response))
		return
	}

	state.QuestionType = questionType
	e.logger.Debug("Question classified", zap.String("question_type", string(questionType)))
}

// parseQuestionType scans for the earliest valid enumeration token
func parseQuestionType(response string) (QuestionType, bool) {
	lower := strings.ToLower(response)
	best := -1
	var found QuestionType
	for _, qt := range QuestionTypes {
		if idx := strings.Index(lower, string(qt)); idx >= 0 && (best < 0 || idx < best) {
			best = idx
			found = qt
		}
	}
	if best < 0 {
		return "", false
	}
	return found, true
}

// Stage 2: pull the biomedical terms out of the question
func (e *Engine) extract(ctx context.Context, state *State, builder PromptBuilder, memoryContext string) {
	prompt := builder.Extract(state.Question, memoryContext)

	response, err := e.complete(ctx, prompt, adapter.ModelFast)
	if err != nil {
		state.Entities = []string{}
		state.setError(StageExtract, apperrors.NewExtractionFailed(err))
		return
	}

	value := response
	if builder.ChainOfThought {
		var reasoning string
		reasoning, value = SplitReasoning(response)
		e.trace(state).Extract = reasoning
	}

	state.Entities = parseEntityList(value)
	e.logger.Debug("Entities extracted", zap.Strings("entities", state.Entities))
}

// parseEntityList accepts the comma-delimited form the prompt asks for and
// tolerates bracketed/quoted JSON-ish variants
func parseEntityList(response string) []string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "[")
	response = strings.TrimSuffix(response, "]")

	if response == "" || strings.EqualFold(strings.TrimSpace(response), "none") {
		return []string{}
	}

	parts := strings.FieldsFunc(response, func(r rune) bool {
		return r == ',' || r == '\n'
	})
	entities := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		part = strings.Trim(part, `"'`)
		part = strings.TrimSpace(part)
		if part == "" || strings.EqualFold(part, "none") {
			continue
		}
		entities = append(entities, part)
	}
	return entities
}

// Stage 3: select and validate a query template
func (e *Engine) generate(ctx context.Context, state *State) {
	generated, err := e.generator.Generate(ctx, state.QuestionType, state.Entities, state.Question)
	if err != nil {
		state.setError(StageGenerate, err)
		return
	}

	state.CypherQuery = generated.Query
	state.queryParams = generated.Params
	if generated.SchemaError != nil {
		state.setError(StageGenerate, generated.SchemaError)
	}
}

// Stage 4: run the query. A missing query short-circuits: that is "no query
// to run", not an error.
func (e *Engine) execute(ctx context.Context, state *State) {
	if state.CypherQuery == "" {
		return
	}

	execCtx, cancel := context.WithTimeout(ctx, e.stageTimeout)
	defer cancel()

	start := time.Now()
	results, err := e.store.Execute(execCtx, state.CypherQuery, state.queryParams)
	state.QueryDuration = time.Since(start)
	state.QueryRan = true

	if err != nil {
		state.QueryResults = []graph.Record{}
		state.setError(StageExecute, err)
		e.logger.Warn("Query execution failed",
			zap.Error(err),
			zap.Duration("duration", state.QueryDuration),
		)
		return
	}

	state.QueryResults = results
	e.logger.Debug("Query executed",
		zap.Int("results", len(results)),
		zap.Duration("duration", state.QueryDuration),
	)
}

// Stage 5: always produce an answer, whatever happened upstream
func (e *Engine) format(ctx context.Context, state *State, builder PromptBuilder, memoryContext string) {
	// Execution failures get a plain-language explanation instead of results
	if state.Err != nil && state.Err.Stage == StageExecute {
		state.Answer = executionFailureAnswer(state.Err.Err)
		return
	}

	var prompt string
	hint := adapter.ModelFast
	switch {
	case state.QuestionType == QuestionTypeGeneralKnowledge || !state.QueryRan:
		prompt = builder.FormatGeneral(state.Question, memoryContext)
	case len(state.QueryResults) == 0:
		state.Answer = constants.NoResultsAnswer
		return
	default:
		prompt = builder.FormatResults(state.Question, state.QueryResults, memoryContext)
		hint = adapter.ModelDeep
	}

	response, err := e.complete(ctx, prompt, hint)
	if err != nil {
		state.Answer = constants.FallbackAnswer
		state.setError(StageFormat, apperrors.NewFormattingFailed(err))
		return
	}

	if builder.ChainOfThought {
		reasoning, value := SplitReasoning(response)
		e.trace(state).Format = reasoning
		if value != "" {
			response = value
		}
	}

	if response == "" {
		response = constants.FallbackAnswer
		state.setError(StageFormat, apperrors.NewFormattingFailed(nil))
	}
	state.Answer = response
}

// executionFailureAnswer phrases a degraded outcome for the user without
// leaking raw error codes
func executionFailureAnswer(err error) string {
	switch apperrors.ExecutionKindOf(err) {
	case apperrors.ExecutionKindSyntax:
		return "I generated a database query for your question but it wasn't valid, so I couldn't retrieve any results. Please try rephrasing your question."
	case apperrors.ExecutionKindUnavailable:
		return "I couldn't reach the knowledge database just now, so your question went unanswered. Please try again in a moment."
	default:
		return "I had trouble searching the database for that question, so I couldn't retrieve any results. Please try rephrasing your question."
	}
}
