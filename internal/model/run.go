package model

import "time"

// GenerationRun records one persisted synthesis run.
type GenerationRun struct {
	ID             string    `json:"id"`
	Seed           int64     `json:"seed"`
	Tutors         int       `json:"tutors"`
	Days           int       `json:"days"`
	SessionsPerDay int       `json:"sessions_per_day"`
	ReferenceTime  time.Time `json:"reference_time"`
	CreatedAt      time.Time `json:"created_at"`
}

// RunSummary is the read-model served over HTTP for a stored run.
type RunSummary struct {
	Run        GenerationRun  `json:"run"`
	TableRows  map[string]int `json:"table_rows"`
	RiskLevels map[string]int `json:"risk_levels"`
}
