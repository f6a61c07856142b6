package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"helix-navigator/backend/internal/graph"
	"helix-navigator/backend/pkg/config"
	"helix-navigator/backend/pkg/logger"
)

type gene struct {
	id, name, chromosome, function string
	expressionLevel                string
}

type protein struct {
	id, name      string
	geneID        string
	molWeight     float64
	structureType string
}

type disease struct {
	id, name, category, prevalence, severity string
}

type drug struct {
	id, name, kind, approvalStatus, mechanism string
}

type association struct {
	proteinID, diseaseID, associationType, confidence string
}

type treatment struct {
	drugID, diseaseID, efficacy, stage string
}

type target struct {
	drugID, proteinID, interactionType, affinity string
}

var genes = []gene{
	{"G001", "BRCA1", "17", "DNA repair", "high"},
	{"G002", "TP53", "17", "Tumor suppression", "high"},
	{"G003", "EGFR", "7", "Cell growth signaling", "medium"},
	{"G004", "INS", "11", "Glucose regulation", "high"},
	{"G005", "APP", "21", "Neuronal development", "medium"},
	{"G006", "ACE", "17", "Blood pressure regulation", "medium"},
	{"G007", "PRKAA1", "5", "Energy homeostasis", "medium"},
}

var proteins = []protein{
	{"P001", "BRCA1 protein", "G001", 207.7, "globular"},
	{"P002", "p53", "G002", 43.7, "globular"},
	{"P003", "EGFR receptor", "G003", 134.3, "membrane"},
	{"P004", "Insulin", "G004", 5.8, "globular"},
	{"P005", "Amyloid precursor protein", "G005", 86.9, "membrane"},
	{"P006", "Angiotensin-converting enzyme", "G006", 149.7, "membrane"},
	{"P007", "AMPK", "G007", 62.3, "globular"},
}

var diseases = []disease{
	{"D001", "Breast Cancer", "oncology", "common", "severe"},
	{"D002", "Lung Cancer", "oncology", "common", "severe"},
	{"D003", "Diabetes", "metabolic", "common", "moderate"},
	{"D004", "Alzheimer Disease", "neurology", "common", "severe"},
	{"D005", "Hypertension", "cardiovascular", "very common", "moderate"},
}

var drugs = []drug{
	{"DR001", "Tamoxifen", "small molecule", "approved", "Estrogen receptor modulator"},
	{"DR002", "Erlotinib", "small molecule", "approved", "EGFR tyrosine kinase inhibitor"},
	{"DR003", "Metformin", "small molecule", "approved", "AMPK activator"},
	{"DR004", "Donepezil", "small molecule", "approved", "Acetylcholinesterase inhibitor"},
	{"DR005", "Lisinopril", "small molecule", "approved", "ACE inhibitor"},
}

var associations = []association{
	{"P001", "D001", "causative", "high"},
	{"P002", "D001", "causative", "medium"},
	{"P002", "D002", "causative", "high"},
	{"P003", "D002", "causative", "high"},
	{"P004", "D003", "causative", "high"},
	{"P005", "D004", "causative", "high"},
	{"P006", "D005", "regulatory", "high"},
}

var treatments = []treatment{
	{"DR001", "D001", "high", "approved"},
	{"DR002", "D002", "high", "approved"},
	{"DR003", "D003", "high", "approved"},
	{"DR004", "D004", "medium", "approved"},
	{"DR005", "D005", "high", "approved"},
}

var targets = []target{
	{"DR001", "P001", "inhibition", "high"},
	{"DR002", "P003", "inhibition", "high"},
	{"DR003", "P007", "activation", "medium"},
	{"DR004", "P005", "modulation", "medium"},
	{"DR005", "P006", "inhibition", "high"},
}

func main() {
	clear := flag.Bool("clear", false, "Remove all existing data before seeding")
	flag.Parse()

	// Initialize logger
	if err := logger.Init("development"); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting knowledge graph seeding...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Connect to Neo4j
	ctx := context.Background()
	driver, err := graph.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
	if err != nil {
		log.Fatal("Failed to connect to Neo4j", zap.Error(err))
	}
	defer driver.Close(context.Background())

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	if *clear {
		log.Info("Clearing existing data...")
		if _, err := session.Run(ctx, "MATCH (n) DETACH DELETE n", nil); err != nil {
			log.Fatal("Failed to clear database", zap.Error(err))
		}
	}

	// Create constraints
	log.Info("Creating constraints...")
	if err := createConstraints(ctx, session); err != nil {
		log.Warn("Failed to create some constraints (may already exist)", zap.Error(err))
	}

	// Load entities
	log.Info("Loading genes", zap.Int("count", len(genes)))
	for _, g := range genes {
		_, err := session.Run(ctx, `
			MERGE (g:Gene {gene_id: $gene_id})
			SET g.gene_name = $gene_name,
			    g.chromosome = $chromosome,
			    g.function = $function,
			    g.expression_level = $expression_level
		`, map[string]any{
			"gene_id":          g.id,
			"gene_name":        g.name,
			"chromosome":       g.chromosome,
			"function":         g.function,
			"expression_level": g.expressionLevel,
		})
		if err != nil {
			log.Fatal("Failed to load gene", zap.String("gene", g.name), zap.Error(err))
		}
	}

	log.Info("Loading proteins", zap.Int("count", len(proteins)))
	for _, p := range proteins {
		_, err := session.Run(ctx, `
			MERGE (p:Protein {protein_id: $protein_id})
			SET p.protein_name = $protein_name,
			    p.molecular_weight = $molecular_weight,
			    p.structure_type = $structure_type
			WITH p
			MATCH (g:Gene {gene_id: $gene_id})
			MERGE (g)-[:ENCODES]->(p)
		`, map[string]any{
			"protein_id":       p.id,
			"protein_name":     p.name,
			"molecular_weight": p.molWeight,
			"structure_type":   p.structureType,
			"gene_id":          p.geneID,
		})
		if err != nil {
			log.Fatal("Failed to load protein", zap.String("protein", p.name), zap.Error(err))
		}
	}

	log.Info("Loading diseases", zap.Int("count", len(diseases)))
	for _, d := range diseases {
		_, err := session.Run(ctx, `
			MERGE (d:Disease {disease_id: $disease_id})
			SET d.disease_name = $disease_name,
			    d.category = $category,
			    d.prevalence = $prevalence,
			    d.severity = $severity
		`, map[string]any{
			"disease_id":   d.id,
			"disease_name": d.name,
			"category":     d.category,
			"prevalence":   d.prevalence,
			"severity":     d.severity,
		})
		if err != nil {
			log.Fatal("Failed to load disease", zap.String("disease", d.name), zap.Error(err))
		}
	}

	log.Info("Loading drugs", zap.Int("count", len(drugs)))
	for _, dr := range drugs {
		_, err := session.Run(ctx, `
			MERGE (dr:Drug {drug_id: $drug_id})
			SET dr.drug_name = $drug_name,
			    dr.type = $type,
			    dr.approval_status = $approval_status,
			    dr.mechanism = $mechanism
		`, map[string]any{
			"drug_id":         dr.id,
			"drug_name":       dr.name,
			"type":            dr.kind,
			"approval_status": dr.approvalStatus,
			"mechanism":       dr.mechanism,
		})
		if err != nil {
			log.Fatal("Failed to load drug", zap.String("drug", dr.name), zap.Error(err))
		}
	}

	// Create relationships
	log.Info("Creating protein-disease associations", zap.Int("count", len(associations)))
	for _, a := range associations {
		_, err := session.Run(ctx, `
			MATCH (p:Protein {protein_id: $protein_id})
			MATCH (d:Disease {disease_id: $disease_id})
			MERGE (p)-[r:ASSOCIATED_WITH]->(d)
			SET r.association_type = $association_type,
			    r.confidence = $confidence
		`, map[string]any{
			"protein_id":       a.proteinID,
			"disease_id":       a.diseaseID,
			"association_type": a.associationType,
			"confidence":       a.confidence,
		})
		if err != nil {
			log.Fatal("Failed to create association", zap.Error(err))
		}
	}

	log.Info("Creating drug treatment relationships", zap.Int("count", len(treatments)))
	for _, t := range treatments {
		_, err := session.Run(ctx, `
			MATCH (dr:Drug {drug_id: $drug_id})
			MATCH (d:Disease {disease_id: $disease_id})
			MERGE (dr)-[r:TREATS]->(d)
			SET r.efficacy = $efficacy,
			    r.stage = $stage
		`, map[string]any{
			"drug_id":    t.drugID,
			"disease_id": t.diseaseID,
			"efficacy":   t.efficacy,
			"stage":      t.stage,
		})
		if err != nil {
			log.Fatal("Failed to create treatment", zap.Error(err))
		}
	}

	log.Info("Creating drug-protein target relationships", zap.Int("count", len(targets)))
	for _, t := range targets {
		_, err := session.Run(ctx, `
			MATCH (dr:Drug {drug_id: $drug_id})
			MATCH (p:Protein {protein_id: $protein_id})
			MERGE (dr)-[r:TARGETS]->(p)
			SET r.interaction_type = $interaction_type,
			    r.affinity = $affinity
		`, map[string]any{
			"drug_id":          t.drugID,
			"protein_id":       t.proteinID,
			"interaction_type": t.interactionType,
			"affinity":         t.affinity,
		})
		if err != nil {
			log.Fatal("Failed to create target", zap.Error(err))
		}
	}

	// Derive gene-disease links: a gene encoding a disease-associated
	// protein is linked to that disease
	log.Info("Deriving gene-disease links...")
	result, err := session.Run(ctx, `
		MATCH (g:Gene)-[:ENCODES]->(p:Protein)-[:ASSOCIATED_WITH]->(d:Disease)
		WHERE NOT EXISTS((g)-[:LINKED_TO]->(d))
		CREATE (g)-[:LINKED_TO]->(d)
		RETURN count(*) AS links_created
	`, nil)
	if err != nil {
		log.Fatal("Failed to derive gene-disease links", zap.Error(err))
	}
	if record, err := result.Single(ctx); err == nil {
		if count, ok := record.Get("links_created"); ok {
			log.Info("Derived gene-disease links", zap.Any("links_created", count))
		}
	}

	printSummary(ctx, session, log)
	log.Info("Seed completed. The knowledge graph is ready to query!")
}

// createConstraints creates Neo4j uniqueness constraints for the entity ids
func createConstraints(ctx context.Context, session neo4j.SessionWithContext) error {
	constraints := []string{
		"CREATE CONSTRAINT gene_id_unique IF NOT EXISTS FOR (g:Gene) REQUIRE g.gene_id IS UNIQUE",
		"CREATE CONSTRAINT protein_id_unique IF NOT EXISTS FOR (p:Protein) REQUIRE p.protein_id IS UNIQUE",
		"CREATE CONSTRAINT disease_id_unique IF NOT EXISTS FOR (d:Disease) REQUIRE d.disease_id IS UNIQUE",
		"CREATE CONSTRAINT drug_id_unique IF NOT EXISTS FOR (dr:Drug) REQUIRE dr.drug_id IS UNIQUE",
	}

	for _, constraint := range constraints {
		if _, err := session.Run(ctx, constraint, nil); err != nil {
			// Constraints may already exist
			continue
		}
	}
	return nil
}

// printSummary logs node and relationship counts after loading
func printSummary(ctx context.Context, session neo4j.SessionWithContext, log *zap.Logger) {
	counts := []struct {
		name  string
		query string
	}{
		{"genes", "MATCH (g:Gene) RETURN count(g) AS count"},
		{"proteins", "MATCH (p:Protein) RETURN count(p) AS count"},
		{"diseases", "MATCH (d:Disease) RETURN count(d) AS count"},
		{"drugs", "MATCH (dr:Drug) RETURN count(dr) AS count"},
		{"encodes", "MATCH ()-[r:ENCODES]->() RETURN count(r) AS count"},
		{"linked_to", "MATCH ()-[r:LINKED_TO]->() RETURN count(r) AS count"},
		{"associated_with", "MATCH ()-[r:ASSOCIATED_WITH]->() RETURN count(r) AS count"},
		{"treats", "MATCH ()-[r:TREATS]->() RETURN count(r) AS count"},
		{"targets", "MATCH ()-[r:TARGETS]->() RETURN count(r) AS count"},
	}

	fields := make([]zap.Field, 0, len(counts))
	for _, c := range counts {
		result, err := session.Run(ctx, c.query, nil)
		if err != nil {
			continue
		}
		record, err := result.Single(ctx)
		if err != nil {
			continue
		}
		if count, ok := record.Get("count"); ok {
			fields = append(fields, zap.Any(c.name, count))
		}
	}
	log.Info("Knowledge graph summary", fields...)
}
