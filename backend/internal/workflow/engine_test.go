package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"helix-navigator/backend/internal/adapter"
	"helix-navigator/backend/internal/constants"
	"helix-navigator/backend/internal/graph"
	"helix-navigator/backend/internal/memory"
	apperrors "helix-navigator/backend/pkg/errors"
)

// Mock implementations for testing

type mockCompleter struct {
	completeFunc func(ctx context.Context, prompt string, hint adapter.ModelHint) (string, error)
	prompts      []string
}

func (m *mockCompleter) Complete(ctx context.Context, prompt string, hint adapter.ModelHint) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.completeFunc != nil {
		return m.completeFunc(ctx, prompt, hint)
	}
	return "", errors.New("no completion scripted")
}

type mockStore struct {
	schema        *graph.Schema
	schemaErr     error
	schemaCalls   int
	records       []graph.Record
	execErr       error
	execCalls     int
	lastQuery     string
	lastParams    map[string]any
	invalidQuery  bool
	validateCalls int
}

func (m *mockStore) Execute(ctx context.Context, query string, params map[string]any) ([]graph.Record, error) {
	m.execCalls++
	m.lastQuery = query
	m.lastParams = params
	if m.execErr != nil {
		return nil, m.execErr
	}
	return m.records, nil
}

func (m *mockStore) ValidateQuery(ctx context.Context, query string) bool {
	m.validateCalls++
	return !m.invalidQuery
}

func (m *mockStore) Schema(ctx context.Context) (*graph.Schema, error) {
	m.schemaCalls++
	if m.schemaErr != nil {
		return nil, m.schemaErr
	}
	if m.schema != nil {
		return m.schema, nil
	}
	return fullSchema(), nil
}

func fullSchema() *graph.Schema {
	return &graph.Schema{
		Labels:            []string{"Gene", "Protein", "Disease", "Drug"},
		RelationshipTypes: []string{"ENCODES", "LINKED_TO", "ASSOCIATED_WITH", "TREATS", "TARGETS"},
	}
}

// scriptByPrompt answers each stage by matching distinctive prompt text
func scriptByPrompt(classification, entities, answer string) func(context.Context, string, adapter.ModelHint) (string, error) {
	return func(ctx context.Context, prompt string, hint adapter.ModelHint) (string, error) {
		switch {
		case strings.Contains(prompt, "Classify this biomedical question"):
			return classification, nil
		case strings.Contains(prompt, "Extract the important biomedical terms"):
			return entities, nil
		default:
			return answer, nil
		}
	}
}

func TestEngine_Run_DrugTreatment(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{
		records: []graph.Record{
			{"drug": "Lisinopril", "disease": "Hypertension", "efficacy": "high", "stage": "approved"},
		},
	}
	llm := &mockCompleter{
		completeFunc: scriptByPrompt(
			"drug_treatment",
			"Hypertension",
			"Lisinopril treats Hypertension with high efficacy. Found 1 result.",
		),
	}

	engine := NewEngine(llm, store, nil, Options{})
	state := engine.Run(ctx, "session-1", "What drugs treat Hypertension?")

	if state.Err != nil {
		t.Fatalf("Run recorded error: %v", state.Err)
	}
	if state.QuestionType != QuestionTypeDrugTreatment {
		t.Errorf("Expected drug_treatment, got %s", state.QuestionType)
	}
	if len(state.Entities) != 1 || state.Entities[0] != "Hypertension" {
		t.Errorf("Expected entities [Hypertension], got %v", state.Entities)
	}
	if !state.QueryRan {
		t.Error("Expected query to run")
	}
	if len(state.QueryResults) != 1 {
		t.Errorf("Expected 1 result, got %d", len(state.QueryResults))
	}
	if !strings.Contains(state.Answer, "Lisinopril") {
		t.Errorf("Expected answer to mention Lisinopril, got %q", state.Answer)
	}
	if term, ok := store.lastParams["term"]; !ok || term != "Hypertension" {
		t.Errorf("Expected term parameter Hypertension, got %v", store.lastParams)
	}
	if strings.Contains(store.lastQuery, "Hypertension") {
		t.Error("Entity must be bound as a parameter, not interpolated into the query")
	}
}

func TestEngine_Run_GeneralKnowledgeSkipsDatabase(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	llm := &mockCompleter{
		completeFunc: scriptByPrompt(
			"general_knowledge",
			"NONE",
			"A gene is a unit of heredity made of DNA.",
		),
	}

	engine := NewEngine(llm, store, nil, Options{})
	state := engine.Run(ctx, "session-1", "What is a gene?")

	if state.Err != nil {
		t.Fatalf("Run recorded error: %v", state.Err)
	}
	if state.CypherQuery != "" {
		t.Errorf("Expected no query, got %q", state.CypherQuery)
	}
	if state.QueryRan {
		t.Error("Expected no query execution")
	}
	if store.execCalls != 0 {
		t.Errorf("Expected 0 store calls, got %d", store.execCalls)
	}
	if store.schemaCalls != 0 {
		t.Errorf("Expected no schema introspection, got %d calls", store.schemaCalls)
	}
	if !strings.Contains(state.Answer, "DNA") {
		t.Errorf("Expected general knowledge answer, got %q", state.Answer)
	}
}

func TestEngine_Run_ClassificationFailureDegrades(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	llm := &mockCompleter{
		completeFunc: func(ctx context.Context, prompt string, hint adapter.ModelHint) (string, error) {
			if strings.Contains(prompt, "Classify this biomedical question") {
				return "", errors.New("gateway timeout")
			}
			return "Here is a general answer.", nil
		},
	}

	engine := NewEngine(llm, store, nil, Options{})
	state := engine.Run(ctx, "session-1", "What drugs treat Hypertension?")

	if state.Err == nil || state.Err.Stage != StageClassify {
		t.Fatalf("Expected classify stage error, got %v", state.Err)
	}
	if state.QuestionType != QuestionTypeGeneralKnowledge {
		t.Errorf("Expected general_knowledge fallback, got %s", state.QuestionType)
	}
	if state.Answer == "" {
		t.Error("Answer must be non-empty even after stage failure")
	}
}

func TestEngine_Run_UnparseableClassification(t *testing.T) {
	ctx := context.Background()
	llm := &mockCompleter{
		completeFunc: scriptByPrompt(
			"I am not sure how to categorize that.",
			"NONE",
			"Here is my best attempt at an answer.",
		),
	}

	engine := NewEngine(llm, &mockStore{}, nil, Options{})
	state := engine.Run(ctx, "session-1", "Tell me something")

	if state.QuestionType != QuestionTypeGeneralKnowledge {
		t.Errorf("Expected general_knowledge default, got %s", state.QuestionType)
	}
	if state.Err == nil || state.Err.Stage != StageClassify {
		t.Fatalf("Expected classify stage error, got %v", state.Err)
	}
	if !apperrors.IsErrorType(state.Err.Err, apperrors.ErrorTypeClassification) {
		t.Errorf("Expected classification error type, got %v", state.Err.Err)
	}
	if state.Answer == "" {
		t.Error("Answer must be non-empty")
	}
}

func TestEngine_Run_SyntaxErrorProducesPoliteAnswer(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{
		execErr: apperrors.NewQueryExecutionFailed(apperrors.ExecutionKindSyntax, "MATCH bogus", errors.New("invalid input")),
	}
	llm := &mockCompleter{
		completeFunc: scriptByPrompt("gene_disease", "Breast Cancer", "unused"),
	}

	engine := NewEngine(llm, store, nil, Options{})
	state := engine.Run(ctx, "session-1", "What genes are linked to Breast Cancer?")

	if state.Err == nil || state.Err.Stage != StageExecute {
		t.Fatalf("Expected execute stage error, got %v", state.Err)
	}
	if apperrors.ExecutionKindOf(state.Err.Err) != apperrors.ExecutionKindSyntax {
		t.Errorf("Expected syntax kind, got %q", apperrors.ExecutionKindOf(state.Err.Err))
	}
	if !state.QueryRan {
		t.Error("QueryRan must be true when execution was attempted")
	}
	if state.QueryResults == nil || len(state.QueryResults) != 0 {
		t.Errorf("Expected empty result slice, got %v", state.QueryResults)
	}
	if !strings.Contains(state.Answer, "rephras") {
		t.Errorf("Expected a polite rephrase suggestion, got %q", state.Answer)
	}
}

func TestEngine_Run_UnavailableDatabaseAnswer(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{
		execErr: apperrors.NewQueryExecutionFailed(apperrors.ExecutionKindUnavailable, "MATCH (n)", errors.New("connection refused")),
	}
	llm := &mockCompleter{
		completeFunc: scriptByPrompt("gene_disease", "Breast Cancer", "unused"),
	}

	engine := NewEngine(llm, store, nil, Options{})
	state := engine.Run(ctx, "session-1", "What genes are linked to Breast Cancer?")

	if apperrors.ExecutionKindOf(state.Err.Err) != apperrors.ExecutionKindUnavailable {
		t.Fatalf("Expected unavailable kind, got %v", state.Err)
	}
	if !strings.Contains(state.Answer, "try again") {
		t.Errorf("Expected a retry suggestion, got %q", state.Answer)
	}
}

func TestEngine_Run_NoResultsAnswer(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{records: []graph.Record{}}
	llm := &mockCompleter{
		completeFunc: scriptByPrompt("gene_disease", "Narcolepsy", "unused"),
	}

	engine := NewEngine(llm, store, nil, Options{})
	state := engine.Run(ctx, "session-1", "What genes are linked to Narcolepsy?")

	if state.Err != nil {
		t.Fatalf("Run recorded error: %v", state.Err)
	}
	if state.Answer != constants.NoResultsAnswer {
		t.Errorf("Expected the no-results answer, got %q", state.Answer)
	}
}

func TestEngine_Run_FormattingFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{
		records: []graph.Record{{"gene": "BRCA1", "disease": "Breast Cancer"}},
	}
	llm := &mockCompleter{
		completeFunc: func(ctx context.Context, prompt string, hint adapter.ModelHint) (string, error) {
			switch {
			case strings.Contains(prompt, "Classify this biomedical question"):
				return "gene_disease", nil
			case strings.Contains(prompt, "Extract the important biomedical terms"):
				return "Breast Cancer", nil
			default:
				return "", errors.New("gateway timeout")
			}
		},
	}

	engine := NewEngine(llm, store, nil, Options{})
	state := engine.Run(ctx, "session-1", "What genes are linked to Breast Cancer?")

	if state.Err == nil || state.Err.Stage != StageFormat {
		t.Fatalf("Expected format stage error, got %v", state.Err)
	}
	if state.Answer != constants.FallbackAnswer {
		t.Errorf("Expected fallback answer, got %q", state.Answer)
	}
}

func TestEngine_Run_MemoryFollowUp(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{
		records: []graph.Record{
			{"drug": "Lisinopril", "disease": "Hypertension", "efficacy": "high", "stage": "approved"},
		},
	}

	turn := 0
	llm := &mockCompleter{
		completeFunc: func(ctx context.Context, prompt string, hint adapter.ModelHint) (string, error) {
			switch {
			case strings.Contains(prompt, "Classify this biomedical question"):
				return "drug_treatment", nil
			case strings.Contains(prompt, "Extract the important biomedical terms"):
				// The follow-up resolves "they" from the conversation context
				if strings.Contains(prompt, "Previous conversation:") {
					return "Lisinopril", nil
				}
				return "Hypertension", nil
			default:
				turn++
				if turn == 1 {
					return "Lisinopril treats Hypertension.", nil
				}
				return "Yes, Lisinopril is approved.", nil
			}
		},
	}

	mem := memory.NewManager(5)
	engine := NewEngine(llm, store, mem, Options{ConversationMemory: true})

	first := engine.Run(ctx, "session-1", "What drugs treat Hypertension?")
	if first.Err != nil {
		t.Fatalf("First turn failed: %v", first.Err)
	}

	second := engine.Run(ctx, "session-1", "Are they approved?")
	if second.Err != nil {
		t.Fatalf("Second turn failed: %v", second.Err)
	}
	if len(second.Entities) != 1 || second.Entities[0] != "Lisinopril" {
		t.Errorf("Expected pronoun resolved to Lisinopril, got %v", second.Entities)
	}

	// The follow-up prompts must carry the first exchange
	found := false
	for _, prompt := range llm.prompts {
		if strings.Contains(prompt, "Q: What drugs treat Hypertension?") {
			found = true
			break
		}
	}
	if !found {
		t.Error("Expected a follow-up prompt to include the previous conversation")
	}

	history := mem.History("session-1")
	if len(history) != 2 {
		t.Fatalf("Expected 2 recorded turns, got %d", len(history))
	}
	if history[1].Question != "Are they approved?" {
		t.Errorf("Unexpected second turn: %+v", history[1])
	}
}

func TestEngine_Run_MemoryDisabledRecordsNothing(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewManager(5)
	llm := &mockCompleter{
		completeFunc: scriptByPrompt("general_knowledge", "NONE", "An answer."),
	}

	engine := NewEngine(llm, &mockStore{}, mem, Options{ConversationMemory: false})
	engine.Run(ctx, "session-1", "What is a gene?")

	if turns := mem.History("session-1"); len(turns) != 0 {
		t.Errorf("Expected no recorded turns, got %d", len(turns))
	}
	for _, prompt := range llm.prompts {
		if strings.Contains(prompt, "Previous conversation:") {
			t.Error("Prompts must not carry conversation context when memory is off")
		}
	}
}

func TestEngine_Run_FailedTurnStillRecorded(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewManager(5)
	llm := &mockCompleter{
		completeFunc: func(ctx context.Context, prompt string, hint adapter.ModelHint) (string, error) {
			return "", errors.New("gateway down")
		},
	}

	engine := NewEngine(llm, &mockStore{}, mem, Options{ConversationMemory: true})
	state := engine.Run(ctx, "session-1", "What drugs treat Hypertension?")

	if state.Err == nil {
		t.Fatal("Expected a recorded error")
	}
	if state.Answer == "" {
		t.Error("Answer must be non-empty")
	}

	history := mem.History("session-1")
	if len(history) != 1 {
		t.Fatalf("Expected the failed turn recorded, got %d turns", len(history))
	}
	if !history[0].Failed {
		t.Error("Expected the turn marked failed")
	}
}

func TestEngine_Run_ChainOfThoughtCapturesReasoning(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{
		records: []graph.Record{{"drug": "Metformin", "disease": "Diabetes"}},
	}
	llm := &mockCompleter{
		completeFunc: func(ctx context.Context, prompt string, hint adapter.ModelHint) (string, error) {
			switch {
			case strings.Contains(prompt, "Classify this biomedical question"):
				return "The question asks about drugs for a disease.\nFINAL ANSWER: drug_treatment", nil
			case strings.Contains(prompt, "Extract the important biomedical terms"):
				return "Diabetes is the disease named.\nFINAL ANSWER: Diabetes", nil
			default:
				return "One drug matched.\nFINAL ANSWER: Metformin treats Diabetes.", nil
			}
		},
	}

	engine := NewEngine(llm, store, nil, Options{ChainOfThought: true})
	state := engine.Run(ctx, "session-1", "What drugs treat Diabetes?")

	if state.Err != nil {
		t.Fatalf("Run recorded error: %v", state.Err)
	}
	if state.QuestionType != QuestionTypeDrugTreatment {
		t.Errorf("Expected drug_treatment, got %s", state.QuestionType)
	}
	if state.Answer != "Metformin treats Diabetes." {
		t.Errorf("Expected the text after the marker, got %q", state.Answer)
	}
	if state.Reasoning == nil {
		t.Fatal("Expected a reasoning trace")
	}
	if !strings.Contains(state.Reasoning.Classify, "asks about drugs") {
		t.Errorf("Unexpected classify reasoning: %q", state.Reasoning.Classify)
	}
	if !strings.Contains(state.Reasoning.Format, "One drug matched") {
		t.Errorf("Unexpected format reasoning: %q", state.Reasoning.Format)
	}
}

func TestParseQuestionType(t *testing.T) {
	tests := []struct {
		response string
		want     QuestionType
		ok       bool
	}{
		{"drug_treatment", QuestionTypeDrugTreatment, true},
		{"  Gene_Disease  ", QuestionTypeGeneDisease, true},
		{"The category is protein_function.", QuestionTypeProteinFunction, true},
		{"general_db", QuestionTypeGeneralDB, true},
		{"general_knowledge", QuestionTypeGeneralKnowledge, true},
		// Earliest token wins when the response mentions several
		{"gene_disease, though drug_treatment is close", QuestionTypeGeneDisease, true},
		{"no category here", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := parseQuestionType(tt.response)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseQuestionType(%q) = (%q, %v), want (%q, %v)", tt.response, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseEntityList(t *testing.T) {
	tests := []struct {
		response string
		want     []string
	}{
		{"diabetes, BRCA1", []string{"diabetes", "BRCA1"}},
		{"NONE", nil},
		{"none", nil},
		{"", nil},
		{`["Hypertension", "Lisinopril"]`, []string{"Hypertension", "Lisinopril"}},
		{"'aspirin'", []string{"aspirin"}},
		{"diabetes\ninsulin", []string{"diabetes", "insulin"}},
		{" Breast Cancer ", []string{"Breast Cancer"}},
	}

	for _, tt := range tests {
		got := parseEntityList(tt.response)
		if len(got) != len(tt.want) {
			t.Errorf("parseEntityList(%q) = %v, want %v", tt.response, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("parseEntityList(%q)[%d] = %q, want %q", tt.response, i, got[i], tt.want[i])
			}
		}
	}
}
