package models

// PriorityStats aggregates the stored priority scores of active feeds.
// Buckets split at the 0.3 and 0.7 thresholds.
type PriorityStats struct {
	Count       int     `json:"count"`
	Average     float64 `json:"avg_score"`
	Min         float64 `json:"min_score"`
	Max         float64 `json:"max_score"`
	LowCount    int     `json:"low_count"`
	MediumCount int     `json:"medium_count"`
	HighCount   int     `json:"high_count"`
}
