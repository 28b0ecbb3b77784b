package domain

import "time"

// RunType identifies the pipeline a run record belongs to.
type RunType string

// Run types.
const (
	RunTypeChat       RunType = "rag_chat"
	RunTypeQuery      RunType = "text2query"
	RunTypePlan       RunType = "plan"
	RunTypeIndexBuild RunType = "index_build"
)

// Run statuses.
const (
	RunStatusFinished = "FINISHED"
	RunStatusDegraded = "DEGRADED"
	RunStatusFailed   = "FAILED"
)

// RunRecord is an immutable log entry of one pipeline invocation.
type RunRecord struct {
	RunID     string             `json:"run_id"`
	RunName   string             `json:"run_name"`
	Type      RunType            `json:"type"`
	Status    string             `json:"status"`
	Params    map[string]string  `json:"params"`
	Metrics   map[string]float64 `json:"metrics"`
	StartTime time.Time          `json:"start_time"`
}

// Run list limits.
const (
	DefaultRunLimit = 20
	MaxRunLimit     = 100
)
