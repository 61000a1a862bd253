package domain

// RunState tracks where an extraction pass is in its lifecycle.
type RunState string

const (
	RunStateIdle       RunState = "idle"
	RunStateRunning    RunState = "running"
	RunStateCommitted  RunState = "committed"
	RunStateRolledBack RunState = "rolled_back"
)

// RunStats accumulates the outcome of one extraction pass. Posts counts posts
// processed, NewComments and NewReactions count rows inserted by this pass,
// and TotalLeads is the lead count after commit. Anomalies records per-item
// failures that were skipped without aborting the pass.
type RunStats struct {
	Posts        int
	NewComments  int
	NewReactions int
	TotalLeads   int64
	Anomalies    []string
}
