package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"helix-navigator/backend/internal/graph"
)

func TestQueryGenerator_GeneralKnowledgeEmitsNoQuery(t *testing.T) {
	store := &mockStore{}
	gen := NewQueryGenerator(store)

	out, err := gen.Generate(context.Background(), QuestionTypeGeneralKnowledge, nil, "What is DNA?")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out.Query != "" {
		t.Errorf("Expected empty query, got %q", out.Query)
	}
	if store.schemaCalls != 0 {
		t.Error("general_knowledge must not introspect the schema")
	}
}

func TestQueryGenerator_TemplateSelection(t *testing.T) {
	gen := NewQueryGenerator(&mockStore{})

	tests := []struct {
		questionType QuestionType
		entities     []string
		question     string
		template     string
	}{
		{QuestionTypeGeneDisease, []string{"Breast Cancer"}, "What genes are linked to Breast Cancer?", graph.TemplateGenesForDisease},
		{QuestionTypeDrugTreatment, []string{"Hypertension"}, "What drugs treat Hypertension?", graph.TemplateDrugsForDisease},
		{QuestionTypeProteinFunction, []string{"GENE_ALPHA"}, "What does GENE_ALPHA make?", graph.TemplateProteinForGene},
		{QuestionTypeProteinFunction, []string{"EGFR"}, "What protein does the EGFR gene encode?", graph.TemplateProteinForGene},
		{QuestionTypeProteinFunction, []string{"Metformin"}, "What protein does it target?", graph.TemplateDrugTargets},
		{QuestionTypeProteinFunction, []string{"Erlotinib"}, "Which proteins does Erlotinib target?", graph.TemplateDrugTargets},
		{QuestionTypeProteinFunction, []string{"p53"}, "Which diseases involve p53?", graph.TemplateDiseasesForProtein},
		{QuestionTypeGeneralDB, []string{"Alzheimer Disease"}, "Show the pathway for Alzheimer Disease", graph.TemplatePathwayAnalysis},
		{QuestionTypeGeneralDB, nil, "What is in the database?", graph.TemplateNodeLookup},
	}

	for _, tt := range tests {
		out, err := gen.Generate(context.Background(), tt.questionType, tt.entities, tt.question)
		if err != nil {
			t.Fatalf("Generate(%s) failed: %v", tt.questionType, err)
		}
		if out.Template != tt.template {
			t.Errorf("Generate(%s, %v, %q) picked %s, want %s", tt.questionType, tt.entities, tt.question, out.Template, tt.template)
		}
	}
}

func TestQueryGenerator_NeverEmitsUnknownSchemaElements(t *testing.T) {
	// A schema missing TREATS and Drug entirely
	store := &mockStore{
		schema: &graph.Schema{
			Labels:            []string{"Gene", "Protein", "Disease"},
			RelationshipTypes: []string{"ENCODES", "LINKED_TO", "ASSOCIATED_WITH"},
		},
	}
	gen := NewQueryGenerator(store)

	for _, questionType := range []QuestionType{
		QuestionTypeGeneDisease,
		QuestionTypeDrugTreatment,
		QuestionTypeProteinFunction,
		QuestionTypeGeneralDB,
	} {
		out, err := gen.Generate(context.Background(), questionType, []string{"term"}, "question")
		if err != nil {
			t.Fatalf("Generate(%s) failed: %v", questionType, err)
		}
		if strings.Contains(out.Query, ":Drug") || strings.Contains(out.Query, ":TREATS") {
			t.Errorf("Generate(%s) emitted an element the schema lacks:\n%s", questionType, out.Query)
		}
	}
}

func TestQueryGenerator_SubstitutesNearestElement(t *testing.T) {
	// TREATS is absent, but TREATS_DISEASE contains it
	store := &mockStore{
		schema: &graph.Schema{
			Labels:            []string{"Gene", "Protein", "Disease", "Drug"},
			RelationshipTypes: []string{"ENCODES", "LINKED_TO", "ASSOCIATED_WITH", "TREATS_DISEASE", "TARGETS"},
		},
	}
	gen := NewQueryGenerator(store)

	out, err := gen.Generate(context.Background(), QuestionTypeDrugTreatment, []string{"Hypertension"}, "What drugs treat Hypertension?")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !strings.Contains(out.Query, ":TREATS_DISEASE") {
		t.Errorf("Expected substitution to TREATS_DISEASE:\n%s", out.Query)
	}
	if strings.Contains(out.Query, "[t:TREATS]") {
		t.Errorf("Original relationship must be rewritten:\n%s", out.Query)
	}
	if out.SchemaError == nil {
		t.Error("Substitution must record a non-fatal schema error")
	}
	if out.Template != graph.TemplateDrugsForDisease {
		t.Errorf("Template family must be preserved, got %s", out.Template)
	}
}

func TestQueryGenerator_RejectedSubstitutionFallsBack(t *testing.T) {
	// The substitution looks plausible schema-wise but the database rejects
	// the rewritten query
	store := &mockStore{
		schema: &graph.Schema{
			Labels:            []string{"Gene", "Protein", "Disease", "Drug"},
			RelationshipTypes: []string{"ENCODES", "LINKED_TO", "ASSOCIATED_WITH", "TREATS_DISEASE", "TARGETS"},
		},
		invalidQuery: true,
	}
	gen := NewQueryGenerator(store)

	out, err := gen.Generate(context.Background(), QuestionTypeDrugTreatment, []string{"Hypertension"}, "What drugs treat Hypertension?")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if store.validateCalls != 1 {
		t.Errorf("Expected the rewritten query to be checked once, got %d", store.validateCalls)
	}
	if out.Template != graph.TemplateNodeLookup {
		t.Errorf("Expected node_lookup after rejected substitution, got %s", out.Template)
	}
	if out.SchemaError == nil {
		t.Error("Fallback must record a non-fatal schema error")
	}
}

func TestQueryGenerator_UntouchedTemplateSkipsValidation(t *testing.T) {
	store := &mockStore{}
	gen := NewQueryGenerator(store)

	if _, err := gen.Generate(context.Background(), QuestionTypeGeneDisease, []string{"Breast Cancer"}, "What genes are linked to Breast Cancer?"); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if store.validateCalls != 0 {
		t.Errorf("Vetted templates need no round trip, got %d validation calls", store.validateCalls)
	}
}

func TestQueryGenerator_FallsBackToNodeLookup(t *testing.T) {
	// Nothing resembling Drug or TREATS exists
	store := &mockStore{
		schema: &graph.Schema{
			Labels:            []string{"Compound", "Condition"},
			RelationshipTypes: []string{"RELATED"},
		},
	}
	gen := NewQueryGenerator(store)

	out, err := gen.Generate(context.Background(), QuestionTypeDrugTreatment, []string{"Hypertension"}, "What drugs treat Hypertension?")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out.Template != graph.TemplateNodeLookup {
		t.Errorf("Expected node_lookup fallback, got %s", out.Template)
	}
	if out.SchemaError == nil {
		t.Error("Fallback must record a non-fatal schema error")
	}
	if out.Params["term"] != "Hypertension" {
		t.Errorf("Term must survive the fallback, got %v", out.Params)
	}
}

func TestQueryGenerator_SchemaCached(t *testing.T) {
	store := &mockStore{}
	gen := NewQueryGenerator(store)

	for i := 0; i < 3; i++ {
		if _, err := gen.Generate(context.Background(), QuestionTypeGeneDisease, []string{"x"}, "q"); err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
	}
	if store.schemaCalls != 1 {
		t.Errorf("Expected 1 schema introspection, got %d", store.schemaCalls)
	}

	gen.InvalidateSchema()
	if _, err := gen.Generate(context.Background(), QuestionTypeGeneDisease, []string{"x"}, "q"); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if store.schemaCalls != 2 {
		t.Errorf("Expected re-introspection after invalidation, got %d calls", store.schemaCalls)
	}
}

func TestQueryGenerator_SchemaErrorPropagates(t *testing.T) {
	store := &mockStore{schemaErr: errors.New("connection refused")}
	gen := NewQueryGenerator(store)

	if _, err := gen.Generate(context.Background(), QuestionTypeGeneDisease, []string{"x"}, "q"); err == nil {
		t.Fatal("Expected an error when schema introspection fails")
	}
}

func TestQueryGenerator_TermFromQuestionWhenNoEntities(t *testing.T) {
	gen := NewQueryGenerator(&mockStore{})

	out, err := gen.Generate(context.Background(), QuestionTypeGeneDisease, nil, "What genes cause Hypertension?")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out.Params["term"] != "Hypertension" {
		t.Errorf("Expected the longest question word as term, got %v", out.Params["term"])
	}
}
