package domain

type GlobalStats struct {
	TotalEvents    int64            `json:"total_events"`
	FailedEvents   int64            `json:"failed_events"`
	SkippedEvents  int64            `json:"skipped_events"`
	FailureRatio   float64          `json:"failure_ratio"`
	TopAgents      map[string]int64 `json:"top_agents"`
	HourlyActivity []ActivityPoint  `json:"hourly_activity"`
}

type ActivityPoint struct {
	Hour  string `json:"hour"`
	Count int64  `json:"count"`
}
