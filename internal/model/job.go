package model

import "time"

// Job is one tracked background generation request. Records are owned by the
// registry; everything handed out is a snapshot.
type Job struct {
	ID           string    `json:"id"`
	Type         JobType   `json:"type"`
	Status       JobStatus `json:"status"`
	Progress     float64   `json:"progress"`
	CurrentStep  int       `json:"currentStep"`
	TotalSteps   int       `json:"totalSteps"`
	ErrorMessage *string   `json:"error,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PageAudioJobPayload is the task body for a single-page audio generation job.
type PageAudioJobPayload struct {
	ProjectID string `json:"projectId"`
	Page      int    `json:"page"`
}

// BatchAudioJobPayload is the task body for a whole-project audio generation job.
type BatchAudioJobPayload struct {
	ProjectID string `json:"projectId"`
}

// ScriptJobPayload is the task body for a page script generation job.
type ScriptJobPayload struct {
	ProjectID string `json:"projectId"`
	Page      int    `json:"page"`
	SlideText string `json:"slideText"`
}
