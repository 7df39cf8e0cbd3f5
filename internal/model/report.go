package model

import "time"

// RunReport summarises a completed run.
// It is printed, never written into the output directory, so outputs stay
// byte-identical across runs.
type RunReport struct {
	Source     string          `json:"source"`
	Rows       int             `json:"rows"`
	Buckets    []BucketSummary `json:"buckets"`
	Unbucketed int             `json:"unbucketed"` // Rows outside every decade range
	Artifacts  []Artifact      `json:"artifacts"`
	Duration   time.Duration   `json:"duration"`
}

// BucketSummary is the per-bucket line of a RunReport
type BucketSummary struct {
	Name  string `json:"name"`
	First int    `json:"first"`
	Last  int    `json:"last"`
	Count int    `json:"count"`
}

// Artifact describes one written output file
type Artifact struct {
	Name  string `json:"name"` // Bucket name or "data"
	Path  string `json:"path"`
	Bytes int64  `json:"bytes"`
	Count int    `json:"count"` // Records serialized
}
