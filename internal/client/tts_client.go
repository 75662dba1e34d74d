package client

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/slidecast/api/internal/config"
	"github.com/slidecast/api/internal/model"
)

// FailureKind classifies why a synthesis call ultimately failed.
type FailureKind string

const (
	FailureTimeout     FailureKind = "timeout"
	FailureRateLimited FailureKind = "rate_limited"
	FailureServer      FailureKind = "server"
	FailureClient      FailureKind = "client"
	FailureValidation  FailureKind = "validation"
	FailureConfig      FailureKind = "config"
	FailureUnknown     FailureKind = "unknown"
)

// SynthesisError is the explicit failure value returned by the TTS client
// after its retry loop. It never escapes as a panic.
type SynthesisError struct {
	Kind     FailureKind
	Status   int // HTTP status, when one was received
	Attempts int
	Err      error
}

func (e *SynthesisError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("synthesis failed (%s, status %d, %d attempts): %v", e.Kind, e.Status, e.Attempts, e.Err)
	}
	return fmt.Sprintf("synthesis failed (%s, %d attempts): %v", e.Kind, e.Attempts, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// retryable reports whether this failure class is worth another attempt.
// Plain client errors and configuration problems are permanent.
func (e *SynthesisError) retryable() bool {
	return e.Kind != FailureClient && e.Kind != FailureConfig
}

// FailureKindOf extracts the failure classification from an error chain.
func FailureKindOf(err error) FailureKind {
	var serr *SynthesisError
	if errors.As(err, &serr) {
		return serr.Kind
	}
	return FailureUnknown
}

// VoiceResolver supplies the role→voice mapping and the special-group rules.
// It lives in the voice configuration service; the client only consumes it.
type VoiceResolver interface {
	VoiceID(role string) string
	IsSpecialGroup() bool
	IsPropRole(role string) bool
}

// Synthesizer is the outbound TTS contract the orchestrator depends on.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, role string, emotion model.Emotion, speed model.Speed) ([]byte, error)
}

// TTSClient calls the MiniMax-style t2a_v2 endpoint with a bounded
// exponential-backoff retry policy and a fixed post-success throttle. Safe
// for shared use; the throttle paces every caller against provider limits.
type TTSClient struct {
	httpClient *http.Client
	url        string
	apiKey     string
	groupID    string
	model      string
	voices     VoiceResolver

	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	throttle   time.Duration
}

const backoffMultiplier = 2.0

var speedRates = map[model.Speed]float64{
	model.SpeedSlow:   0.8,
	model.SpeedNormal: 1.0,
	model.SpeedFast:   1.25,
}

// NewTTSClient creates a TTS client from configuration.
func NewTTSClient(cfg *config.TTSConfig, voices VoiceResolver) *TTSClient {
	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		// At least one attempt, so Synthesize always has an outcome to report.
		maxRetries = 1
	}
	return &TTSClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		url:        fmt.Sprintf("%s?GroupId=%s", cfg.BaseURL, url.QueryEscape(cfg.GroupID)),
		apiKey:     cfg.APIKey,
		groupID:    cfg.GroupID,
		model:      cfg.Model,
		voices:     voices,
		maxRetries: maxRetries,
		baseDelay:  time.Duration(cfg.BaseDelay) * time.Second,
		maxDelay:   time.Duration(cfg.MaxDelay) * time.Second,
		throttle:   time.Duration(cfg.Throttle) * time.Second,
	}
}

// IsConfigured returns true if the client has valid configuration.
func (c *TTSClient) IsConfigured() bool {
	return c.apiKey != "" && c.groupID != ""
}

// Request/response wire types for t2a_v2.

type ttsTimbreWeight struct {
	VoiceID string `json:"voice_id"`
	Weight  int    `json:"weight"`
}

type ttsVoiceSetting struct {
	VoiceID   string  `json:"voice_id"`
	Speed     float64 `json:"speed"`
	Pitch     int     `json:"pitch"`
	Vol       int     `json:"vol"`
	Emotion   string  `json:"emotion,omitempty"`
	LatexRead bool    `json:"latex_read"`
}

type ttsAudioSetting struct {
	SampleRate int    `json:"sample_rate"`
	Bitrate    int    `json:"bitrate"`
	Format     string `json:"format"`
}

type ttsRequest struct {
	Model         string            `json:"model"`
	Text          string            `json:"text"`
	TimbreWeights []ttsTimbreWeight `json:"timbre_weights"`
	VoiceSetting  ttsVoiceSetting   `json:"voice_setting"`
	AudioSetting  ttsAudioSetting   `json:"audio_setting"`
	LanguageBoost string            `json:"language_boost"`
}

type ttsResponse struct {
	BaseResp *struct {
		StatusCode int    `json:"status_code"`
		StatusMsg  string `json:"status_msg"`
	} `json:"base_resp"`
	Data *struct {
		Audio string `json:"audio"`
	} `json:"data"`
}

// buildPayload assembles the provider request for one dialogue line.
func (c *TTSClient) buildPayload(text, role string, emotion model.Emotion, speed model.Speed) *ttsRequest {
	voiceID := c.voices.VoiceID(role)

	rate, ok := speedRates[speed]
	if !ok {
		rate = 1.0
	}

	setting := ttsVoiceSetting{
		VoiceID:   voiceID,
		Speed:     rate,
		Pitch:     0,
		Vol:       1,
		LatexRead: true,
	}

	if c.voices.IsPropRole(role) && c.voices.IsSpecialGroup() {
		// Prop sound-effect lines: fixed cheerful delivery, no formula reading.
		setting.Emotion = string(model.EmotionHappy)
		setting.LatexRead = false
	} else if emotion != model.EmotionAuto && emotion != "" {
		setting.Emotion = string(emotion)
	}

	return &ttsRequest{
		Model:         c.model,
		Text:          text,
		TimbreWeights: []ttsTimbreWeight{{VoiceID: voiceID, Weight: 100}},
		VoiceSetting:  setting,
		AudioSetting: ttsAudioSetting{
			SampleRate: 32000,
			Bitrate:    128000,
			Format:     "mp3",
		},
		LanguageBoost: "auto",
	}
}

// Synthesize converts one dialogue line to audio bytes. Transient failures
// (timeouts, 5xx, 429, malformed responses) are retried with exponential
// backoff and jitter; other 4xx and missing credentials fail immediately.
// After a successful call it sleeps the configured throttle so the next call
// by any caller respects provider rate limits.
func (c *TTSClient) Synthesize(ctx context.Context, text, role string, emotion model.Emotion, speed model.Speed) ([]byte, error) {
	if !c.IsConfigured() {
		return nil, &SynthesisError{
			Kind:     FailureConfig,
			Attempts: 0,
			Err:      errors.New("TTS credentials not configured"),
		}
	}

	payload := c.buildPayload(text, role, emotion, speed)

	var lastErr *SynthesisError
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		audio, serr := c.attempt(ctx, payload)
		if serr == nil {
			c.throttleWait(ctx)
			return audio, nil
		}

		serr.Attempts = attempt
		log.Printf("[TTS] attempt %d/%d failed (%s): %v", attempt, c.maxRetries, serr.Kind, serr.Err)

		if !serr.retryable() {
			return nil, serr
		}
		lastErr = serr

		if attempt < c.maxRetries {
			if err := c.backoff(ctx, attempt); err != nil {
				lastErr.Err = fmt.Errorf("%v (backoff interrupted: %w)", lastErr.Err, err)
				return nil, lastErr
			}
		}
	}

	log.Printf("[TTS] retries exhausted (%s): %v", lastErr.Kind, lastErr.Err)
	return nil, lastErr
}

// attempt issues one network call and classifies the outcome.
func (c *TTSClient) attempt(ctx context.Context, payload *ttsRequest) ([]byte, *SynthesisError) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &SynthesisError{Kind: FailureUnknown, Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, &SynthesisError{Kind: FailureUnknown, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() || errors.Is(err, context.DeadlineExceeded) {
			return nil, &SynthesisError{Kind: FailureTimeout, Err: err}
		}
		return nil, &SynthesisError{Kind: FailureUnknown, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SynthesisError{Kind: FailureUnknown, Err: fmt.Errorf("read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &SynthesisError{Kind: FailureRateLimited, Status: resp.StatusCode, Err: errors.New("rate limited")}
	case resp.StatusCode >= 500:
		return nil, &SynthesisError{Kind: FailureServer, Status: resp.StatusCode, Err: fmt.Errorf("server error: %s", respBody)}
	case resp.StatusCode >= 400:
		return nil, &SynthesisError{Kind: FailureClient, Status: resp.StatusCode, Err: fmt.Errorf("client error: %s", respBody)}
	}

	var result ttsResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &SynthesisError{Kind: FailureValidation, Status: resp.StatusCode, Err: fmt.Errorf("unmarshal response: %w", err)}
	}
	if verr := validateResponse(&result); verr != nil {
		return nil, &SynthesisError{Kind: FailureValidation, Status: resp.StatusCode, Err: verr}
	}

	audio, err := hex.DecodeString(result.Data.Audio)
	if err != nil {
		return nil, &SynthesisError{Kind: FailureValidation, Status: resp.StatusCode, Err: fmt.Errorf("decode audio payload: %w", err)}
	}
	return audio, nil
}

// validateResponse checks the provider's required-field contract.
func validateResponse(result *ttsResponse) error {
	if result.BaseResp == nil {
		return errors.New("response missing base_resp")
	}
	if result.BaseResp.StatusCode != 0 {
		return fmt.Errorf("provider error %d: %s", result.BaseResp.StatusCode, result.BaseResp.StatusMsg)
	}
	if result.Data == nil || result.Data.Audio == "" {
		return errors.New("response missing audio data")
	}
	return nil
}

// backoff sleeps min(base * 2^(attempt-1), max) plus up to 10% jitter, or
// returns early if the context is cancelled.
func (c *TTSClient) backoff(ctx context.Context, attempt int) error {
	delay := time.Duration(float64(c.baseDelay) * math.Pow(backoffMultiplier, float64(attempt-1)))
	if delay > c.maxDelay {
		delay = c.maxDelay
	}
	delay += time.Duration(rand.Float64() * 0.1 * float64(delay))
	if delay <= 0 {
		return ctx.Err()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// throttleWait paces calls after a success. Cancellation only shortens the
// pause; the synthesized audio is still returned.
func (c *TTSClient) throttleWait(ctx context.Context) {
	if c.throttle <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(c.throttle):
	}
}
