package service

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Asynq task type names.
const (
	TaskTypePageAudio  = "audio:page"
	TaskTypeBatchAudio = "audio:batch"
	TaskTypeScript     = "script:generate"
)

// Enqueuer is the slice of asynq.Client the services need. Tests substitute
// a recorder.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// taskEnvelope is the wire shape of every queued task body.
type taskEnvelope struct {
	JobID   string          `json:"jobId"`
	Payload json.RawMessage `json:"payload"`
}

// newTask wraps a job id and payload into an asynq task.
func newTask(taskType, jobID string, payload interface{}) (*asynq.Task, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	body, err := json.Marshal(taskEnvelope{JobID: jobID, Payload: payloadBytes})
	if err != nil {
		return nil, fmt.Errorf("marshal task envelope: %w", err)
	}
	return asynq.NewTask(taskType, body), nil
}

// DecodeTask unwraps a queued task body into its job id and typed payload.
func DecodeTask(body []byte, payload interface{}) (string, error) {
	var envelope taskEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("unmarshal task envelope: %w", err)
	}
	if err := json.Unmarshal(envelope.Payload, payload); err != nil {
		return envelope.JobID, fmt.Errorf("unmarshal task payload: %w", err)
	}
	return envelope.JobID, nil
}
