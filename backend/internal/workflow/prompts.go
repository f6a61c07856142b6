package workflow

import (
	"encoding/json"
	"fmt"
	"strings"

	"helix-navigator/backend/internal/constants"
	"helix-navigator/backend/internal/graph"
)

// PromptBuilder constructs stage prompts. It is pure string assembly: given
// identical inputs it produces byte-identical output, and it never touches
// the network.
//
// When memoryContext is non-empty it is prepended verbatim before the task
// instructions. When chainOfThought is set, the prompt asks the model to
// reason first and finish with the versioned final-answer marker that
// SplitReasoning understands.
type PromptBuilder struct {
	ChainOfThought bool
}

// Classify builds the closed-set classification prompt
func (b PromptBuilder) Classify(question, memoryContext string) string {
	var sb strings.Builder
	b.writeContext(&sb, memoryContext)

	sb.WriteString(`Classify this biomedical question into one of these categories:
- gene_disease: questions about genes and diseases
- drug_treatment: questions about drugs treating diseases
- protein_function: questions about proteins and their roles
- general_db: other questions answerable from the biomedical database
- general_knowledge: questions needing no database lookup

`)
	fmt.Fprintf(&sb, "Question: %s\n\n", question)

	if b.ChainOfThought {
		b.writeCoTInstructions(&sb, "the category name")
	} else {
		sb.WriteString("Respond with just the category name.")
	}
	return sb.String()
}

// Extract builds the entity extraction prompt
func (b PromptBuilder) Extract(question, memoryContext string) string {
	var sb strings.Builder
	b.writeContext(&sb, memoryContext)

	sb.WriteString(`Extract the important biomedical terms from this question. Look for specific names of:
- Genes (like GENE_ALPHA, BRCA1)
- Diseases (like diabetes, Hypertension)
- Drugs (like aspirin, AlphaCure)
- Proteins (like PROT_BETA, insulin)

If the question refers to earlier answers (for example "they" or "it"), resolve the reference using the previous conversation and extract the term it points to.

`)
	fmt.Fprintf(&sb, "Question: %s\n\n", question)

	if b.ChainOfThought {
		b.writeCoTInstructions(&sb, `a comma-separated list of terms, or NONE if there are no specific terms`)
	} else {
		sb.WriteString("Return just a comma-separated list of terms, like: diabetes, GENE_ALPHA\nIf you don't find any specific terms, return: NONE")
	}
	return sb.String()
}

// FormatResults builds the answer prompt for successful database results
func (b PromptBuilder) FormatResults(question string, results []graph.Record, memoryContext string) string {
	var sb strings.Builder
	b.writeContext(&sb, memoryContext)

	sample := results
	if len(sample) > constants.FormatterResultSample {
		sample = sample[:constants.FormatterResultSample]
	}
	sampleJSON, _ := json.MarshalIndent(sample, "", "  ")

	sb.WriteString("Convert these database results into a clear, informative answer.\n")
	fmt.Fprintf(&sb, "Original question: %s\n", question)
	fmt.Fprintf(&sb, "Database results: %s\n", string(sampleJSON))
	fmt.Fprintf(&sb, "Total results found: %d\n\n", len(results))
	sb.WriteString(`Make the answer:
1. Easy to understand for users
2. Informative about the biomedical relationships
3. Mention how many results were found

Keep it concise but helpful.`)

	if b.ChainOfThought {
		sb.WriteString("\n\n")
		b.writeCoTInstructions(&sb, "the answer text")
	}
	return sb.String()
}

// FormatGeneral builds the answer prompt for questions answered without a
// database lookup
func (b PromptBuilder) FormatGeneral(question, memoryContext string) string {
	var sb strings.Builder
	b.writeContext(&sb, memoryContext)

	sb.WriteString("Answer this biomedical question from general knowledge. Keep the answer concise and note that it did not come from the curated database.\n\n")
	fmt.Fprintf(&sb, "Question: %s", question)

	if b.ChainOfThought {
		sb.WriteString("\n\n")
		b.writeCoTInstructions(&sb, "the answer text")
	}
	return sb.String()
}

func (b PromptBuilder) writeContext(sb *strings.Builder, memoryContext string) {
	if memoryContext == "" {
		return
	}
	sb.WriteString(memoryContext)
	if !strings.HasSuffix(memoryContext, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

func (b PromptBuilder) writeCoTInstructions(sb *strings.Builder, finalValue string) {
	fmt.Fprintf(sb, "Think step by step first. Then finish with one line that starts with %q followed by %s.",
		constants.CoTFinalMarker, finalValue)
}
