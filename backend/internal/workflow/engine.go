package workflow

import (
	"context"
	"time"

	"go.uber.org/zap"

	"helix-navigator/backend/internal/adapter"
	"helix-navigator/backend/internal/constants"
	"helix-navigator/backend/internal/memory"
	"helix-navigator/backend/pkg/logger"
)

// Options are the two enhancement flags a pipeline run can carry
type Options struct {
	ConversationMemory bool
	ChainOfThought     bool
}

// Engine sequences the five pipeline stages over one State. Run never
// returns an error: stage failures are captured into the state and the
// pipeline always completes with a non-empty answer.
type Engine struct {
	llm          Completer
	store        GraphStore
	generator    *QueryGenerator
	memory       Memory
	opts         Options
	stageTimeout time.Duration
	contextTurns int
	logger       *zap.Logger
}

// NewEngine creates a workflow engine. mem may be nil when conversation
// memory is disabled.
func NewEngine(llm Completer, store GraphStore, mem Memory, opts Options) *Engine {
	return &Engine{
		llm:          llm,
		store:        store,
		generator:    NewQueryGenerator(store),
		memory:       mem,
		opts:         opts,
		stageTimeout: constants.DefaultStageTimeout,
		contextTurns: constants.DefaultContextTurns,
		logger:       logger.Get(),
	}
}

// SetStageTimeout overrides the per-call timeout
func (e *Engine) SetStageTimeout(timeout time.Duration) {
	if timeout > 0 {
		e.stageTimeout = timeout
	}
}

// Generator exposes the engine's schema cache, for surfaces that introspect
// or refresh the schema directly
func (e *Engine) Generator() *QueryGenerator {
	return e.generator
}

// Options returns the engine's enhancement flags
func (e *Engine) Options() Options {
	return e.opts
}

// Run answers one question inside one session. The returned state always
// carries a non-empty Answer; any stage failure is captured in state.Err.
// When conversation memory is enabled the completed turn is appended to the
// session history, failed turns included, so follow-ups can reference them.
func (e *Engine) Run(ctx context.Context, sessionID, question string) *State {
	state := &State{
		SessionID: sessionID,
		Question:  question,
	}

	memoryContext := ""
	if e.memoryEnabled() {
		memoryContext = e.memory.FormatContext(sessionID, e.contextTurns)
	}
	builder := PromptBuilder{ChainOfThought: e.opts.ChainOfThought}

	e.logger.Debug("Workflow starting",
		zap.String("session_id", sessionID),
		zap.Bool("memory", e.opts.ConversationMemory),
		zap.Bool("chain_of_thought", e.opts.ChainOfThought),
	)

	e.classify(ctx, state, builder, memoryContext)
	e.extract(ctx, state, builder, memoryContext)
	e.generate(ctx, state)
	e.execute(ctx, state)
	e.format(ctx, state, builder, memoryContext)

	if state.Answer == "" {
		state.Answer = constants.FallbackAnswer
	}

	if e.memoryEnabled() {
		e.memory.Record(sessionID, memory.Turn{
			Question:     state.Question,
			QuestionType: string(state.QuestionType),
			Entities:     state.Entities,
			Answer:       state.Answer,
			Failed:       state.Err != nil,
		})
	}

	if state.Err != nil {
		e.logger.Info("Workflow completed with degradation",
			zap.String("session_id", sessionID),
			zap.String("stage", string(state.Err.Stage)),
			zap.Error(state.Err.Err),
		)
	} else {
		e.logger.Debug("Workflow completed",
			zap.String("session_id", sessionID),
			zap.String("question_type", string(state.QuestionType)),
		)
	}
	return state
}

func (e *Engine) memoryEnabled() bool {
	return e.opts.ConversationMemory && e.memory != nil
}

// complete wraps the completion call with the per-stage timeout
func (e *Engine) complete(ctx context.Context, prompt string, hint adapter.ModelHint) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.stageTimeout)
	defer cancel()
	return e.llm.Complete(callCtx, prompt, hint)
}

func (e *Engine) trace(state *State) *ReasoningTrace {
	if state.Reasoning == nil {
		state.Reasoning = &ReasoningTrace{}
	}
	return state.Reasoning
}
