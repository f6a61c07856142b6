package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	apperrors "helix-navigator/backend/pkg/errors"
	"helix-navigator/backend/pkg/logger"
)

// Record is one row of a query result, keyed by RETURN aliases
type Record = map[string]any

// Schema describes the labels, relationship types, and per-label properties
// present in the graph
type Schema struct {
	Labels            []string            `json:"labels"`
	RelationshipTypes []string            `json:"relationship_types"`
	Properties        map[string][]string `json:"properties"`
}

// HasLabel reports whether the schema contains the label (case-sensitive)
func (s *Schema) HasLabel(name string) bool {
	for _, l := range s.Labels {
		if l == name {
			return true
		}
	}
	return false
}

// HasRelationship reports whether the schema contains the relationship type
func (s *Schema) HasRelationship(name string) bool {
	for _, r := range s.RelationshipTypes {
		if r == name {
			return true
		}
	}
	return false
}

// forbiddenKeywords are Cypher clauses that mutate the graph. Generated
// queries are read-only; anything else is rejected before it reaches the
// database.
var forbiddenKeywords = []string{
	"CREATE", "MERGE", "DELETE", "DETACH", "SET ", "REMOVE", "DROP", "FOREACH", "LOAD CSV",
}

// Store handles all Neo4j database operations
type Store struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// Connect creates a Neo4j driver and verifies connectivity before handing it
// over. Callers own the returned driver and must Close it.
func Connect(ctx context.Context, uri, user, password string) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, apperrors.NewGraphConnectionFailed(uri, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, apperrors.NewGraphConnectionFailed(uri, err)
	}
	return driver, nil
}

// NewStore creates a new graph store
func NewStore(driver neo4j.DriverWithContext) *Store {
	return &Store{
		driver: driver,
		logger: logger.Get(),
	}
}

// Close closes the Neo4j driver connection
func (s *Store) Close() error {
	return s.driver.Close(context.Background())
}

// Execute runs a read-only Cypher query with bound parameters and returns
// the matched records. An empty slice means the query ran and matched
// nothing.
func (s *Store) Execute(ctx context.Context, query string, params map[string]any) ([]Record, error) {
	if keyword := findForbiddenKeyword(query); keyword != "" {
		return nil, apperrors.NewForbiddenQuery(keyword)
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, classifyExecutionError(query, err)
	}

	records := []Record{}
	for result.Next(ctx) {
		rec := result.Record()
		row := make(Record, len(rec.Keys))
		for i, key := range rec.Keys {
			row[key] = rec.Values[i]
		}
		records = append(records, row)
	}
	if err := result.Err(); err != nil {
		return nil, classifyExecutionError(query, err)
	}

	s.logger.Debug("Query executed",
		zap.Int("records", len(records)),
	)
	return records, nil
}

// Schema introspects the database and returns its labels, relationship
// types, and per-label properties. Properties are discovered by sampling one
// node per label, so labels with no instances carry no property list.
func (s *Store) Schema(ctx context.Context) (*Schema, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	labels, err := s.queryStrings(ctx, session,
		"CALL db.labels() YIELD label RETURN collect(label) AS values")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch labels: %w", err)
	}

	relTypes, err := s.queryStrings(ctx, session,
		"CALL db.relationshipTypes() YIELD relationshipType RETURN collect(relationshipType) AS values")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch relationship types: %w", err)
	}

	properties := make(map[string][]string, len(labels))
	for _, label := range labels {
		// Label names come from db.labels(), not user input
		query := fmt.Sprintf("MATCH (n:`%s`) RETURN keys(n) AS values LIMIT 1", label)
		props, err := s.queryStrings(ctx, session, query)
		if err != nil {
			return nil, fmt.Errorf("failed to sample properties for %s: %w", label, err)
		}
		if len(props) > 0 {
			properties[label] = props
		}
	}

	s.logger.Info("Schema introspected",
		zap.Int("labels", len(labels)),
		zap.Int("relationship_types", len(relTypes)),
	)

	return &Schema{
		Labels:            labels,
		RelationshipTypes: relTypes,
		Properties:        properties,
	}, nil
}

// ValidateQuery checks a Cypher query via EXPLAIN without executing it
func (s *Store) ValidateQuery(ctx context.Context, query string) bool {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, "EXPLAIN "+query, nil)
	if err != nil {
		return false
	}
	_, err = result.Consume(ctx)
	return err == nil
}

func (s *Store) queryStrings(ctx context.Context, session neo4j.SessionWithContext, query string) ([]string, error) {
	result, err := session.Run(ctx, query, nil)
	if err != nil {
		return nil, err
	}
	return collectStrings(ctx, result)
}

// rows is the slice of the driver result type schema introspection consumes
type rows interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

// collectStrings decodes the single "values" row of an introspection query.
// Zero rows with a clean stream is a legitimate empty result (property
// sampling on a label with no instances); zero rows because the stream broke
// must surface, or a connection blip would cache an empty schema for the
// life of the process.
func collectStrings(ctx context.Context, result rows) ([]string, error) {
	if !result.Next(ctx) {
		return nil, result.Err()
	}
	raw, _ := result.Record().Get("values")
	list, ok := raw.([]any)
	if !ok {
		return nil, nil
	}
	values := make([]string, 0, len(list))
	for _, v := range list {
		if str, ok := v.(string); ok {
			values = append(values, str)
		}
	}
	return values, nil
}

// findForbiddenKeyword returns the first mutating keyword found in the
// query, or "" when the query is read-only
func findForbiddenKeyword(query string) string {
	upper := strings.ToUpper(query)
	for _, keyword := range forbiddenKeywords {
		idx := strings.Index(upper, keyword)
		for idx >= 0 {
			if isKeywordBoundary(upper, idx, len(keyword)) {
				return strings.TrimSpace(keyword)
			}
			next := strings.Index(upper[idx+1:], keyword)
			if next < 0 {
				break
			}
			idx = idx + 1 + next
		}
	}
	return ""
}

func isKeywordBoundary(upper string, idx, length int) bool {
	if idx > 0 {
		prev := upper[idx-1]
		if prev >= 'A' && prev <= 'Z' || prev == '_' {
			return false
		}
	}
	end := idx + length
	if end < len(upper) {
		next := upper[end]
		if next >= 'A' && next <= 'Z' || next == '_' {
			return false
		}
	}
	return true
}

// classifyExecutionError maps driver errors onto the syntax/unavailable
// split the pipeline cares about
func classifyExecutionError(query string, err error) error {
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) {
		if strings.Contains(neoErr.Code, "SyntaxError") ||
			strings.Contains(neoErr.Code, "Statement") {
			return apperrors.NewQueryExecutionFailed(apperrors.ExecutionKindSyntax, query, err)
		}
	}
	return apperrors.NewQueryExecutionFailed(apperrors.ExecutionKindUnavailable, query, err)
}
