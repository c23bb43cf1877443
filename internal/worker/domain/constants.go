package domain

// Job lifecycle statuses as stored on the jobs table. A job moves
// PENDING -> RUNNING on claim and ends in exactly one terminal status.
const (
	JobStatusPending   = "PENDING"
	JobStatusRunning   = "RUNNING"
	JobStatusCompleted = "COMPLETED"
	JobStatusFailed    = "FAILED"
	JobStatusCanceled  = "CANCELED"
)
