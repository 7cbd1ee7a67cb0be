package history

import "time"

// Status is the lifecycle state of a recorded run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run is one Video Assembly invocation as persisted in the ledger.
type Run struct {
	ID              string
	Topic           string
	TemplateID      string
	SlideCount      int
	Format          string
	Resolution      string
	Quality         string
	Status          Status
	Stage           string
	ProgressPercent float64
	ProgressMessage string
	ArtifactURL     string
	DurationSeconds float64
	SizeBytes       int64
	Provenance      string
	NarrationGaps   int
	ErrorMessage    string
	ErrorCategory   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}

// Artifact is the terminal success record of a run.
type Artifact struct {
	URL             string
	DurationSeconds float64
	SizeBytes       int64
	Provenance      string
	NarrationGaps   int
}

// Failure is the terminal failure record of a run.
type Failure struct {
	Stage    string
	Message  string
	Category string
}

// Summary counts runs by status.
type Summary struct {
	Total     int
	Running   int
	Completed int
	Failed    int
}
