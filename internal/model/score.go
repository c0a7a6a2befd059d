package model

// ScoreCategory buckets a confidence score for review.
type ScoreCategory string

const (
	CategoryExcellent ScoreCategory = "excellent" // >= 95
	CategoryReview    ScoreCategory = "review"    // >= 70
	CategoryAttention ScoreCategory = "attention" // < 70
)

// ConfidenceScore is the completeness/quality estimate of an extracted record.
type ConfidenceScore struct {
	Value    int           `json:"value"`
	Category ScoreCategory `json:"category"`
}

// CategoryFor returns the category of a 0-100 score.
func CategoryFor(value int) ScoreCategory {
	switch {
	case value >= 95:
		return CategoryExcellent
	case value >= 70:
		return CategoryReview
	default:
		return CategoryAttention
	}
}
