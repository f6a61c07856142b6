package eval

import (
	"encoding/json"
	"fmt"
	"os"
)

// BenchmarkItem is one golden-dataset record. PriorTurnID links multi-turn
// items into a conversation chain: the referenced item is replayed into the
// same session first so memory has real history to draw from.
type BenchmarkItem struct {
	ID               string   `json:"id"`
	Question         string   `json:"question"`
	ExpectedType     string   `json:"expected_type"`
	ExpectedEntities []string `json:"expected_entities"`
	ExpectedFragment string   `json:"expected_answer_fragment,omitempty"`
	ExpectedResults  []string `json:"expected_results,omitempty"`
	PriorTurnID      string   `json:"prior_turn_id,omitempty"`
}

// LoadBenchmark reads and validates the golden dataset
func LoadBenchmark(path string) ([]BenchmarkItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read benchmark file: %w", err)
	}

	var items []BenchmarkItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse benchmark file: %w", err)
	}

	if err := ValidateBenchmark(items); err != nil {
		return nil, err
	}
	return items, nil
}

// ValidateBenchmark checks identifiers are unique and prior-turn links
// resolve to earlier items
func ValidateBenchmark(items []BenchmarkItem) error {
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		if item.ID == "" {
			return fmt.Errorf("benchmark item %d has no id", i)
		}
		if item.Question == "" {
			return fmt.Errorf("benchmark item %s has no question", item.ID)
		}
		if seen[item.ID] {
			return fmt.Errorf("duplicate benchmark item id: %s", item.ID)
		}
		if item.PriorTurnID != "" && !seen[item.PriorTurnID] {
			return fmt.Errorf("benchmark item %s references unknown or later prior turn %s", item.ID, item.PriorTurnID)
		}
		seen[item.ID] = true
	}
	return nil
}

// chain is an ordered run of items sharing one conversation
type chain struct {
	rootID string
	items  []indexedItem
}

type indexedItem struct {
	index int
	item  BenchmarkItem
}

// groupChains partitions items into conversation chains by following
// prior_turn_id links to their root. Items without a prior form singleton
// chains; dataset order is preserved within each chain.
func groupChains(items []BenchmarkItem) []chain {
	rootOf := make(map[string]string, len(items))
	for _, item := range items {
		if item.PriorTurnID == "" {
			rootOf[item.ID] = item.ID
			continue
		}
		root, ok := rootOf[item.PriorTurnID]
		if !ok {
			root = item.PriorTurnID
		}
		rootOf[item.ID] = root
	}

	var order []string
	grouped := make(map[string]*chain)
	for i, item := range items {
		root := rootOf[item.ID]
		c, ok := grouped[root]
		if !ok {
			c = &chain{rootID: root}
			grouped[root] = c
			order = append(order, root)
		}
		c.items = append(c.items, indexedItem{index: i, item: item})
	}

	chains := make([]chain, 0, len(order))
	for _, root := range order {
		chains = append(chains, *grouped[root])
	}
	return chains
}
