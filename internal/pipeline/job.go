package pipeline

// JobKind selects the pipeline variant.
type JobKind string

const (
	JobKindGenerate JobKind = "generate"
	JobKindRewrite  JobKind = "rewrite"
	JobKindReview   JobKind = "review"
)

// Valid reports whether the kind is one of the supported pipeline variants.
func (k JobKind) Valid() bool {
	switch k {
	case JobKindGenerate, JobKindRewrite, JobKindReview:
		return true
	}
	return false
}

// Options are per-job tuning knobs supplied by the caller.
type Options struct {
	Language        string `json:"language"`
	TargetWordCount int    `json:"target_word_count"`
	IncludeFAQ      bool   `json:"include_faq"`
	IncludeYouTube  bool   `json:"include_youtube"`
	Tone            string `json:"tone"`
	ExtraImages     int    `json:"extra_images"`
}

// JobSpec describes one pipeline execution. Cost is resolved from the static
// cost table before the job starts so the precondition check and the final
// debit always agree on the amount.
type JobSpec struct {
	JobID        string
	ClientID     string
	ProjectID    string
	Kind         JobKind
	Topic        string
	PostID       int64  // remote post id, rewrite jobs only
	Improvements string // rewrite guidance, optional
	Options      Options
	Cost         float64
}
