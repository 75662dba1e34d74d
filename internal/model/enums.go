package model

// Job types
type JobType string

const (
	JobTypeScriptGeneration   JobType = "script_generation"
	JobTypeAudioGeneration    JobType = "audio_generation"
	JobTypeDocumentConversion JobType = "document_conversion"
)

var ValidJobTypes = []JobType{
	JobTypeScriptGeneration, JobTypeAudioGeneration, JobTypeDocumentConversion,
}

// IsValidJobType reports whether t is one of the known job types.
func IsValidJobType(t JobType) bool {
	for _, v := range ValidJobTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Job status
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether a job in this status accepts no further mutation.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Speech speed tags carried by dialogue lines. The TTS payload maps them to
// numeric rates.
type Speed string

const (
	SpeedSlow   Speed = "slow"
	SpeedNormal Speed = "normal"
	SpeedFast   Speed = "fast"
)

// Emotion tags accepted by the TTS provider. EmotionAuto means "let the
// provider decide" and is never sent on the wire.
type Emotion string

const (
	EmotionAuto      Emotion = "auto"
	EmotionHappy     Emotion = "happy"
	EmotionSad       Emotion = "sad"
	EmotionAngry     Emotion = "angry"
	EmotionFearful   Emotion = "fearful"
	EmotionSurprised Emotion = "surprised"
	EmotionNeutral   Emotion = "neutral"
)
