package eval

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helix-navigator/backend/internal/adapter"
	"helix-navigator/backend/internal/graph"
	"helix-navigator/backend/internal/memory"
	"helix-navigator/backend/internal/workflow"
)

// Scripted pipeline dependencies. The completer resolves the follow-up
// pronoun only when the prompt carries conversation context, so the memory
// scenarios measurably outperform the baseline.

type scriptedCompleter struct{}

func (scriptedCompleter) Complete(ctx context.Context, prompt string, hint adapter.ModelHint) (string, error) {
	switch {
	case strings.Contains(prompt, "Classify this biomedical question"):
		return "drug_treatment", nil
	case strings.Contains(prompt, "Extract the important biomedical terms"):
		if strings.Contains(prompt, "Are they approved?") {
			if strings.Contains(prompt, "Previous conversation:") {
				return "Lisinopril", nil
			}
			return "NONE", nil
		}
		return "Hypertension", nil
	default:
		return "Yes, Lisinopril is approved and treats Hypertension.", nil
	}
}

type scriptedStore struct{}

func (scriptedStore) Execute(ctx context.Context, query string, params map[string]any) ([]graph.Record, error) {
	return []graph.Record{
		{"drug": "Lisinopril", "disease": "Hypertension", "stage": "approved"},
	}, nil
}

func (scriptedStore) ValidateQuery(ctx context.Context, query string) bool {
	return true
}

func (scriptedStore) Schema(ctx context.Context) (*graph.Schema, error) {
	return &graph.Schema{
		Labels:            []string{"Gene", "Protein", "Disease", "Drug"},
		RelationshipTypes: []string{"ENCODES", "LINKED_TO", "ASSOCIATED_WITH", "TREATS", "TARGETS"},
	}, nil
}

func chainedBenchmark() []BenchmarkItem {
	return []BenchmarkItem{
		{
			ID:               "q1",
			Question:         "What drugs treat Hypertension?",
			ExpectedType:     "drug_treatment",
			ExpectedEntities: []string{"Hypertension"},
			ExpectedFragment: "Lisinopril",
		},
		{
			ID:               "q2",
			Question:         "Are they approved?",
			ExpectedType:     "drug_treatment",
			ExpectedEntities: []string{"Lisinopril"},
			ExpectedFragment: "approved",
			PriorTurnID:      "q1",
		},
	}
}

func newScriptedHarness() *Harness {
	factory := func(opts workflow.Options) *workflow.Engine {
		return workflow.NewEngine(scriptedCompleter{}, scriptedStore{}, memory.NewManager(5), opts)
	}
	return NewHarness(factory, chainedBenchmark())
}

func TestHarness_Run_MemoryImprovesFollowUps(t *testing.T) {
	results, err := newScriptedHarness().Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 4)

	byName := map[string]Result{}
	for _, r := range results {
		byName[r.Scenario.Name()] = r
	}

	baseline := byName["Baseline (No Enhancements)"]
	withMemory := byName["Conversation Memory ON"]

	// Without memory the follow-up cannot resolve "they"
	assert.InDelta(t, 0.5, baseline.EntityAccuracy, 1e-9)
	assert.InDelta(t, 1.0, withMemory.EntityAccuracy, 1e-9)

	assert.InDelta(t, 1.0, baseline.ClassificationAccuracy, 1e-9)
	assert.InDelta(t, 1.0, baseline.AnswerAccuracy, 1e-9)

	// Item results keep dataset order
	require.Len(t, baseline.Items, 2)
	assert.Equal(t, "q1", baseline.Items[0].ItemID)
	assert.Equal(t, "q2", baseline.Items[1].ItemID)
}

func TestHarness_Run_Idempotent(t *testing.T) {
	ctx := context.Background()
	harness := newScriptedHarness()

	first, err := harness.Run(ctx)
	require.NoError(t, err)
	second, err := harness.Run(ctx)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Scenario, second[i].Scenario)
		assert.Equal(t, first[i].ClassificationAccuracy, second[i].ClassificationAccuracy)
		assert.Equal(t, first[i].EntityAccuracy, second[i].EntityAccuracy)
		assert.Equal(t, first[i].AnswerAccuracy, second[i].AnswerAccuracy)
	}
}

func TestHarness_Run_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newScriptedHarness().Run(ctx)
	assert.Error(t, err)
}
