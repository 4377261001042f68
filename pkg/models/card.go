package models

// PersonalizedCard is a candidate piece of content supplied by the catalog.
// The engine only reads the identifier, type and relevance prior, and writes
// an optimization-score overlay; catalog metadata is never mutated.
type PersonalizedCard struct {
	ID                string   `json:"id"`
	Type              CardType `json:"type"`
	Title             string   `json:"title,omitempty"`
	RelevanceScore    float64  `json:"relevance_score"`
	OptimizationScore float64  `json:"optimization_score,omitempty"`
	Rationale         string   `json:"rationale,omitempty"`
}

// ReorderReason explains one card's position change in a reordering.
// Emitted only for cards whose position actually changed.
type ReorderReason struct {
	CardID   string  `json:"card_id"`
	OldIndex int     `json:"old_index"`
	NewIndex int     `json:"new_index"`
	Score    float64 `json:"score"`
}

// ReorderResult is the full output of a reordering pass.
type ReorderResult struct {
	Cards               []PersonalizedCard `json:"cards"`
	Reasons             []ReorderReason    `json:"reasons"`
	ExpectedImprovement float64            `json:"expected_improvement"`
	Confidence          float64            `json:"confidence"`
}
