package model

// CreateJobRequest is the body for POST /api/jobs.
type CreateJobRequest struct {
	Type       JobType `json:"type" validate:"required"`
	TotalSteps int     `json:"totalSteps" validate:"gte=0"`
}

// StartJobResponse is returned by the async generation endpoints.
type StartJobResponse struct {
	JobID  string    `json:"jobId"`
	Status JobStatus `json:"status"`
}

// SynthesizeDialogueResponse is returned by the synchronous single-line path.
type SynthesizeDialogueResponse struct {
	DialogueID string `json:"dialogueId"`
	Page       int    `json:"page"`
	AudioPath  string `json:"audioPath"`
}

// ReorderDialoguesRequest is the body for the dialogue reorder endpoint. IDs
// must be a permutation of the page's current dialogue ids.
type ReorderDialoguesRequest struct {
	DialogueIDs []string `json:"dialogueIds" validate:"required,min=1,dive,required"`
}

// GenerateScriptRequest is the body for the page script generation endpoint.
type GenerateScriptRequest struct {
	SlideText string `json:"slideText" validate:"required"`
}
