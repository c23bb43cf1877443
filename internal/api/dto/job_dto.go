package dto

// RunJobRequest starts a streamed pipeline run.
type RunJobRequest struct {
	ClientID     string `json:"client_id" binding:"required"`
	ProjectID    string `json:"project_id" binding:"required"`
	Kind         string `json:"kind" binding:"required"`
	Topic        string `json:"topic"`
	PostID       int64  `json:"post_id"`
	Improvements string `json:"improvements"`

	Language        string `json:"language"`
	TargetWordCount int    `json:"target_word_count"`
	IncludeFAQ      bool   `json:"include_faq"`
	IncludeYouTube  bool   `json:"include_youtube"`
	Tone            string `json:"tone"`
	ExtraImages     int    `json:"extra_images"`
}

// ExecutePlanRequest enqueues one background job per planned topic.
type ExecutePlanRequest struct {
	ClientID  string   `json:"client_id" binding:"required"`
	ProjectID string   `json:"project_id" binding:"required"`
	Kind      string   `json:"kind" binding:"required"`
	Topics    []string `json:"topics" binding:"required,min=1"`

	Language        string `json:"language"`
	TargetWordCount int    `json:"target_word_count"`
	IncludeFAQ      bool   `json:"include_faq"`
	IncludeYouTube  bool   `json:"include_youtube"`
	Tone            string `json:"tone"`
}

// ExecutePlanResponse lists the enqueued job ids in topic order.
type ExecutePlanResponse struct {
	JobIDs []string `json:"job_ids"`
}

type ListJobsRequest struct {
	ClientID  string `form:"client_id"`
	ProjectID string `form:"project_id"`
	Kind      string `form:"kind"`
	Status    string `form:"status"`
	PageSize  int    `form:"page_size"`
	Cursor    string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	JobID        string `json:"job_id"`
	ClientID     string `json:"client_id"`
	ProjectID    string `json:"project_id"`
	Kind         string `json:"kind"`
	Topic        string `json:"topic"`
	Status       string `json:"status"`
	Result       string `json:"result,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// TopUpRequest grants purchased credits to a client account.
type TopUpRequest struct {
	Amount      float64 `json:"amount" binding:"required,gt=0"`
	Description string  `json:"description"`
}

type BalanceResponse struct {
	ClientID            string  `json:"client_id"`
	SubscriptionCredits float64 `json:"subscription_credits"`
	TopUpCredits        float64 `json:"topup_credits"`
	Available           float64 `json:"available"`
	IsUnlimited         bool    `json:"is_unlimited"`
	TotalCreditsUsed    float64 `json:"total_credits_used"`
}

type TransactionDTO struct {
	TransactionID string  `json:"transaction_id"`
	Amount        float64 `json:"amount"`
	Description   string  `json:"description"`
	BalanceAfter  float64 `json:"balance_after"`
	CreatedAt     string  `json:"created_at"`
}
