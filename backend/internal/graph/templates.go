package graph

import "context"

// Template is a pre-written, parameterized Cypher query for a common
// biomedical question pattern. Labels and Relationships list the schema
// elements the query depends on, so the query generator can check them
// against the live schema before execution.
type Template struct {
	Name          string
	Cypher        string
	Param         string
	Labels        []string
	Relationships []string
}

// Template names
const (
	TemplateGenesForDisease    = "genes_for_disease"
	TemplateDrugsForDisease    = "drugs_for_disease"
	TemplateProteinForGene     = "protein_encoded_by_gene"
	TemplateDiseasesForProtein = "diseases_for_protein"
	TemplateDrugTargets        = "drug_targets"
	TemplatePathwayAnalysis    = "pathway_analysis"
	TemplateNodeLookup         = "node_lookup"
)

// Templates is the catalog of vetted query patterns. All templates bind user
// terms through $-parameters; none interpolate strings.
var Templates = map[string]Template{
	TemplateGenesForDisease: {
		Name:  TemplateGenesForDisease,
		Param: "term",
		Cypher: `MATCH (g:Gene)-[:LINKED_TO]->(d:Disease)
WHERE toLower(d.disease_name) CONTAINS toLower($term)
RETURN g.gene_name AS gene, d.disease_name AS disease
LIMIT 20`,
		Labels:        []string{"Gene", "Disease"},
		Relationships: []string{"LINKED_TO"},
	},
	TemplateDrugsForDisease: {
		Name:  TemplateDrugsForDisease,
		Param: "term",
		Cypher: `MATCH (dr:Drug)-[t:TREATS]->(d:Disease)
WHERE toLower(d.disease_name) CONTAINS toLower($term)
RETURN dr.drug_name AS drug, d.disease_name AS disease,
       t.efficacy AS efficacy, t.stage AS stage
ORDER BY CASE t.efficacy
    WHEN 'high' THEN 1
    WHEN 'medium' THEN 2
    ELSE 3 END
LIMIT 20`,
		Labels:        []string{"Drug", "Disease"},
		Relationships: []string{"TREATS"},
	},
	TemplateProteinForGene: {
		Name:  TemplateProteinForGene,
		Param: "term",
		Cypher: `MATCH (g:Gene)-[:ENCODES]->(p:Protein)
WHERE toLower(g.gene_name) CONTAINS toLower($term)
RETURN g.gene_name AS gene, p.protein_name AS protein,
       p.molecular_weight AS molecular_weight
LIMIT 20`,
		Labels:        []string{"Gene", "Protein"},
		Relationships: []string{"ENCODES"},
	},
	TemplateDiseasesForProtein: {
		Name:  TemplateDiseasesForProtein,
		Param: "term",
		Cypher: `MATCH (p:Protein)-[a:ASSOCIATED_WITH]->(d:Disease)
WHERE toLower(p.protein_name) CONTAINS toLower($term)
RETURN p.protein_name AS protein, d.disease_name AS disease,
       a.association_type AS association_type,
       a.confidence AS confidence
ORDER BY CASE a.confidence
    WHEN 'high' THEN 1
    WHEN 'medium' THEN 2
    ELSE 3 END
LIMIT 20`,
		Labels:        []string{"Protein", "Disease"},
		Relationships: []string{"ASSOCIATED_WITH"},
	},
	TemplateDrugTargets: {
		Name:  TemplateDrugTargets,
		Param: "term",
		Cypher: `MATCH (dr:Drug)-[t:TARGETS]->(p:Protein)
WHERE toLower(dr.drug_name) CONTAINS toLower($term)
RETURN dr.drug_name AS drug, p.protein_name AS protein,
       t.interaction_type AS interaction_type, t.affinity AS affinity
LIMIT 20`,
		Labels:        []string{"Drug", "Protein"},
		Relationships: []string{"TARGETS"},
	},
	TemplatePathwayAnalysis: {
		Name:  TemplatePathwayAnalysis,
		Param: "term",
		Cypher: `MATCH path = (g:Gene)-[:ENCODES]->(p:Protein)
      -[:ASSOCIATED_WITH]->(d:Disease)<-[:TREATS]-(dr:Drug)
WHERE toLower(d.disease_name) CONTAINS toLower($term)
RETURN g.gene_name AS gene, p.protein_name AS protein,
       d.disease_name AS disease, dr.drug_name AS drug
LIMIT 20`,
		Labels:        []string{"Gene", "Protein", "Disease", "Drug"},
		Relationships: []string{"ENCODES", "ASSOCIATED_WITH", "TREATS"},
	},
	TemplateNodeLookup: {
		Name:  TemplateNodeLookup,
		Param: "term",
		Cypher: `MATCH (n)
WHERE any(key IN keys(n) WHERE toLower(toString(n[key])) CONTAINS toLower($term))
RETURN labels(n) AS labels, properties(n) AS properties
LIMIT 20`,
		Labels:        nil,
		Relationships: nil,
	},
}

// Typed convenience methods over the catalog. These mirror the question
// patterns the HTTP API exposes directly, bypassing the LLM pipeline.

// GenesForDisease finds genes linked to a disease
func (s *Store) GenesForDisease(ctx context.Context, disease string) ([]Record, error) {
	return s.runTemplate(ctx, TemplateGenesForDisease, disease)
}

// DrugsForDisease finds drugs treating a disease, best efficacy first
func (s *Store) DrugsForDisease(ctx context.Context, disease string) ([]Record, error) {
	return s.runTemplate(ctx, TemplateDrugsForDisease, disease)
}

// ProteinForGene finds the protein(s) encoded by a gene
func (s *Store) ProteinForGene(ctx context.Context, gene string) ([]Record, error) {
	return s.runTemplate(ctx, TemplateProteinForGene, gene)
}

// DiseasesForProtein finds diseases associated with a protein
func (s *Store) DiseasesForProtein(ctx context.Context, protein string) ([]Record, error) {
	return s.runTemplate(ctx, TemplateDiseasesForProtein, protein)
}

// DrugTargets finds protein targets of a drug
func (s *Store) DrugTargets(ctx context.Context, drug string) ([]Record, error) {
	return s.runTemplate(ctx, TemplateDrugTargets, drug)
}

// PathwayForDisease finds complete gene/protein/disease/drug pathways
func (s *Store) PathwayForDisease(ctx context.Context, disease string) ([]Record, error) {
	return s.runTemplate(ctx, TemplatePathwayAnalysis, disease)
}

func (s *Store) runTemplate(ctx context.Context, name, term string) ([]Record, error) {
	tmpl := Templates[name]
	return s.Execute(ctx, tmpl.Cypher, map[string]any{tmpl.Param: term})
}
