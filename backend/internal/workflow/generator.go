package workflow

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"helix-navigator/backend/internal/graph"
	apperrors "helix-navigator/backend/pkg/errors"
	"helix-navigator/backend/pkg/logger"
)

// QueryGenerator turns a classified question into a parameterized Cypher
// query by selecting a vetted template family and reconciling it with the
// live schema. It holds the process-lifetime schema cache: the schema is
// assumed static, so the cache never self-invalidates (known limitation;
// InvalidateSchema forces a refresh).
type QueryGenerator struct {
	store  GraphStore
	logger *zap.Logger

	mu     sync.RWMutex
	cached *graph.Schema
	group  singleflight.Group
}

// NewQueryGenerator creates a generator backed by the given store
func NewQueryGenerator(store GraphStore) *QueryGenerator {
	return &QueryGenerator{
		store:  store,
		logger: logger.Get(),
	}
}

// Schema returns the cached schema, introspecting on first use. Concurrent
// first calls collapse into one round trip.
func (g *QueryGenerator) Schema(ctx context.Context) (*graph.Schema, error) {
	g.mu.RLock()
	cached := g.cached
	g.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	result, err, _ := g.group.Do("schema", func() (any, error) {
		schema, err := g.store.Schema(ctx)
		if err != nil {
			return nil, err
		}
		g.mu.Lock()
		g.cached = schema
		g.mu.Unlock()
		return schema, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*graph.Schema), nil
}

// InvalidateSchema drops the cached schema so the next call re-introspects
func (g *QueryGenerator) InvalidateSchema() {
	g.mu.Lock()
	g.cached = nil
	g.mu.Unlock()
}

// GeneratedQuery is the outcome of query generation. Query is empty for
// general_knowledge questions. SchemaError carries a non-fatal mismatch that
// was recovered by substitution or fallback.
type GeneratedQuery struct {
	Query       string
	Params      map[string]any
	Template    string
	SchemaError error
}

// Generate selects and validates a query for the classified question.
// general_knowledge yields an empty query. Missing entities degrade to a
// generic lookup rather than failing.
func (g *QueryGenerator) Generate(ctx context.Context, questionType QuestionType, entities []string, question string) (*GeneratedQuery, error) {
	if questionType == QuestionTypeGeneralKnowledge {
		return &GeneratedQuery{}, nil
	}

	schema, err := g.Schema(ctx)
	if err != nil {
		return nil, err
	}

	term := firstEntity(entities)
	if term == "" {
		term = longestWord(question)
	}

	tmpl := g.selectTemplate(questionType, entities, question)
	out := g.reconcile(ctx, tmpl, schema)
	out.Params = map[string]any{graph.Templates[out.Template].Param: term}

	g.logger.Debug("Query generated",
		zap.String("question_type", string(questionType)),
		zap.String("template", out.Template),
		zap.String("term", term),
	)
	return out, nil
}

// selectTemplate maps a question type (plus entity and phrasing heuristics
// for protein questions) onto a template family
func (g *QueryGenerator) selectTemplate(questionType QuestionType, entities []string, question string) graph.Template {
	switch questionType {
	case QuestionTypeGeneDisease:
		return graph.Templates[graph.TemplateGenesForDisease]
	case QuestionTypeDrugTreatment:
		return graph.Templates[graph.TemplateDrugsForDisease]
	case QuestionTypeProteinFunction:
		// Target questions name a drug, encode questions name a gene,
		// anything else names a protein and asks about its diseases
		lower := strings.ToLower(question)
		switch {
		case strings.Contains(lower, "target"):
			return graph.Templates[graph.TemplateDrugTargets]
		case strings.Contains(lower, "encode") || strings.HasPrefix(strings.ToUpper(firstEntity(entities)), "GENE"):
			return graph.Templates[graph.TemplateProteinForGene]
		default:
			return graph.Templates[graph.TemplateDiseasesForProtein]
		}
	default:
		if len(entities) > 0 {
			return graph.Templates[graph.TemplatePathwayAnalysis]
		}
		return graph.Templates[graph.TemplateNodeLookup]
	}
}

// reconcile validates the template's labels and relationships against the
// schema. Unknown elements are substituted with the nearest schema element;
// when no substitute exists the template degrades to the generic node
// lookup, which references no fixed schema elements. Either recovery records
// a non-fatal QueryGenerationError. A rewritten query is additionally
// EXPLAIN-checked against the store, and degrades to the generic lookup when
// the substitution produced something the database rejects.
func (g *QueryGenerator) reconcile(ctx context.Context, tmpl graph.Template, schema *graph.Schema) *GeneratedQuery {
	query := tmpl.Cypher
	var schemaErr error
	var substituted string

	for _, label := range tmpl.Labels {
		if schema.HasLabel(label) {
			continue
		}
		if sub := nearestElement(label, schema.Labels); sub != "" {
			query = substituteElement(query, label, sub)
			schemaErr = apperrors.NewQueryGenerationFailed(label)
			substituted = label
			continue
		}
		return g.fallback(label)
	}

	for _, rel := range tmpl.Relationships {
		if schema.HasRelationship(rel) {
			continue
		}
		if sub := nearestElement(rel, schema.RelationshipTypes); sub != "" {
			query = substituteElement(query, rel, sub)
			schemaErr = apperrors.NewQueryGenerationFailed(rel)
			substituted = rel
			continue
		}
		return g.fallback(rel)
	}

	if substituted != "" && !g.store.ValidateQuery(ctx, query) {
		return g.fallback(substituted)
	}

	return &GeneratedQuery{
		Query:       query,
		Template:    tmpl.Name,
		SchemaError: schemaErr,
	}
}

func (g *QueryGenerator) fallback(missing string) *GeneratedQuery {
	g.logger.Warn("Schema element missing, using generic lookup",
		zap.String("element", missing),
	)
	return &GeneratedQuery{
		Query:       graph.Templates[graph.TemplateNodeLookup].Cypher,
		Template:    graph.TemplateNodeLookup,
		SchemaError: apperrors.NewQueryGenerationFailed(missing),
	}
}

// nearestElement picks the closest known schema element: case-insensitive
// equality first, then case-insensitive containment either way
func nearestElement(want string, have []string) string {
	lower := strings.ToLower(want)
	for _, candidate := range have {
		if strings.ToLower(candidate) == lower {
			return candidate
		}
	}
	for _, candidate := range have {
		cl := strings.ToLower(candidate)
		if strings.Contains(cl, lower) || strings.Contains(lower, cl) {
			return candidate
		}
	}
	return ""
}

// substituteElement rewrites every `:old` token in the query. Labels and
// relationship types both appear behind a colon in Cypher.
func substituteElement(query, old, sub string) string {
	return strings.ReplaceAll(query, ":"+old, ":"+sub)
}

func firstEntity(entities []string) string {
	if len(entities) == 0 {
		return ""
	}
	return entities[0]
}

// longestWord gives a best-effort search term when extraction found nothing
func longestWord(question string) string {
	longest := ""
	for _, word := range strings.FieldsFunc(question, func(r rune) bool {
		return !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9' || r == '_' || r == '-')
	}) {
		if len(word) > len(longest) {
			longest = word
		}
	}
	return longest
}
