package pipeline

// EventType discriminates progress stream events.
type EventType string

const (
	EventProgress EventType = "progress"
	EventError    EventType = "error"
	EventSuccess  EventType = "success"
)

// Event is one element of a job's progress stream. A stream carries zero or
// more progress events followed by exactly one terminal event (error or
// success), after which the channel is closed.
type Event struct {
	Type    EventType
	Message string
	Percent int
	Err     *PipelineError
	Result  *Result
}

// Result summarizes a successfully published job.
type Result struct {
	Title            string  `json:"title"`
	RemoteID         int64   `json:"remote_id"`
	RemoteURL        string  `json:"remote_url"`
	WordCount        int     `json:"word_count"`
	ImageCount       int     `json:"image_count"`
	CreditsUsed      float64 `json:"credits_used"`
	RemainingBalance float64 `json:"remaining_balance"`
	Unlimited        bool    `json:"unlimited"`
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Type == EventError || e.Type == EventSuccess
}

func progressEvent(message string, percent int) Event {
	return Event{Type: EventProgress, Message: message, Percent: percent}
}

func errorEvent(err *PipelineError) Event {
	return Event{Type: EventError, Message: err.Message, Percent: 100, Err: err}
}

func successEvent(result *Result) Event {
	return Event{Type: EventSuccess, Percent: 100, Result: result}
}
