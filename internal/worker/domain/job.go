package domain

// ClaimedJob carries the fields a worker needs to run a claimed pipeline job.
type ClaimedJob struct {
	JobID     string
	ClientID  string
	ProjectID string
	Kind      string
	Topic     string
	PostID    int64
	Options   string // JSON
}

// JobMessage represents a job message from RabbitMQ
type JobMessage struct {
	JobID       string `json:"job_id"`
	DeliveryTag uint64 `json:"-"`
}
