package client

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/slidecast/api/internal/config"
	"github.com/slidecast/api/internal/model"
)

type staticVoices struct {
	special bool
}

func (v staticVoices) VoiceID(role string) string { return "voice-" + role }
func (v staticVoices) IsSpecialGroup() bool       { return v.special }
func (v staticVoices) IsPropRole(role string) bool {
	return role == "prop"
}

func newTestTTSClient(serverURL string) *TTSClient {
	return NewTTSClient(&config.TTSConfig{
		APIKey:     "test-key",
		GroupID:    "test-group",
		BaseURL:    serverURL,
		Model:      "speech-01-turbo",
		Timeout:    5,
		MaxRetries: 3,
		BaseDelay:  0, // no sleeping in tests
		MaxDelay:   0,
		Throttle:   0,
	}, staticVoices{})
}

func okBody(audio []byte) string {
	return fmt.Sprintf(`{"base_resp":{"status_code":0,"status_msg":"success"},"data":{"audio":"%s"}}`,
		hex.EncodeToString(audio))
}

func TestSynthesizeSuccess(t *testing.T) {
	want := []byte("mp3-bytes")
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing auth header")
		}
		fmt.Fprint(w, okBody(want))
	}))
	defer srv.Close()

	c := newTestTTSClient(srv.URL)
	got, err := c.Synthesize(context.Background(), "hello", "teacher", model.EmotionAuto, model.SpeedNormal)
	if err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("audio = %q, want %q", got, want)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetryBoundOnServerError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestTTSClient(srv.URL)
	_, err := c.Synthesize(context.Background(), "hello", "teacher", model.EmotionAuto, model.SpeedNormal)
	if err == nil {
		t.Fatal("expected failure")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want exactly 3", attempts)
	}

	var serr *SynthesisError
	if !errors.As(err, &serr) {
		t.Fatalf("error is not a SynthesisError: %v", err)
	}
	if serr.Kind != FailureServer {
		t.Errorf("kind = %s, want %s", serr.Kind, FailureServer)
	}
	if serr.Attempts != 3 {
		t.Errorf("recorded attempts = %d, want 3", serr.Attempts)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "bad voice id", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestTTSClient(srv.URL)
	_, err := c.Synthesize(context.Background(), "hello", "teacher", model.EmotionAuto, model.SpeedNormal)
	if err == nil {
		t.Fatal("expected failure")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want exactly 1", attempts)
	}
	if FailureKindOf(err) != FailureClient {
		t.Errorf("kind = %s, want %s", FailureKindOf(err), FailureClient)
	}
}

func TestRetryOnRateLimitThenSuccess(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, okBody([]byte("late audio")))
	}))
	defer srv.Close()

	c := newTestTTSClient(srv.URL)
	got, err := c.Synthesize(context.Background(), "hello", "teacher", model.EmotionAuto, model.SpeedNormal)
	if err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}
	if string(got) != "late audio" {
		t.Errorf("audio = %q", got)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryOnValidationFailure(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		// HTTP 200 but a provider-level error code
		fmt.Fprint(w, `{"base_resp":{"status_code":1004,"status_msg":"insufficient balance"},"data":null}`)
	}))
	defer srv.Close()

	c := newTestTTSClient(srv.URL)
	_, err := c.Synthesize(context.Background(), "hello", "teacher", model.EmotionAuto, model.SpeedNormal)
	if err == nil {
		t.Fatal("expected failure")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if FailureKindOf(err) != FailureValidation {
		t.Errorf("kind = %s, want %s", FailureKindOf(err), FailureValidation)
	}
}

func TestZeroMaxRetriesStillAttemptsOnce(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewTTSClient(&config.TTSConfig{
		APIKey: "k", GroupID: "g", BaseURL: srv.URL, Timeout: 5, MaxRetries: 0,
	}, staticVoices{})

	_, err := c.Synthesize(context.Background(), "hello", "teacher", model.EmotionAuto, model.SpeedNormal)
	if err == nil {
		t.Fatal("expected failure")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}

	var serr *SynthesisError
	if !errors.As(err, &serr) {
		t.Fatalf("error is not a SynthesisError: %v", err)
	}
	if serr.Kind != FailureServer || serr.Attempts != 1 {
		t.Errorf("unexpected failure record: %+v", serr)
	}
}

func TestMalformedResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>definitely not json</html>")
	}))
	defer srv.Close()

	c := newTestTTSClient(srv.URL)
	_, err := c.Synthesize(context.Background(), "hello", "teacher", model.EmotionAuto, model.SpeedNormal)
	if FailureKindOf(err) != FailureValidation {
		t.Errorf("kind = %s, want %s", FailureKindOf(err), FailureValidation)
	}
}

func TestUnconfiguredClientFailsFast(t *testing.T) {
	c := NewTTSClient(&config.TTSConfig{Timeout: 5, MaxRetries: 3}, staticVoices{})
	_, err := c.Synthesize(context.Background(), "hello", "teacher", model.EmotionAuto, model.SpeedNormal)
	if err == nil {
		t.Fatal("expected failure")
	}
	var serr *SynthesisError
	if !errors.As(err, &serr) || serr.Kind != FailureConfig {
		t.Errorf("expected config failure, got %v", err)
	}
	if serr.Attempts != 0 {
		t.Errorf("config failure consumed retry budget: %d attempts", serr.Attempts)
	}
}

func TestPayloadConstruction(t *testing.T) {
	var captured ttsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		fmt.Fprint(w, okBody([]byte("x")))
	}))
	defer srv.Close()

	c := newTestTTSClient(srv.URL)
	if _, err := c.Synthesize(context.Background(), "slow down please", "teacher", model.EmotionSad, model.SpeedSlow); err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}

	if captured.Text != "slow down please" {
		t.Errorf("text = %q", captured.Text)
	}
	if captured.VoiceSetting.Speed != 0.8 {
		t.Errorf("speed = %v, want 0.8", captured.VoiceSetting.Speed)
	}
	if captured.VoiceSetting.Emotion != "sad" {
		t.Errorf("emotion = %q, want sad", captured.VoiceSetting.Emotion)
	}
	if captured.VoiceSetting.VoiceID != "voice-teacher" {
		t.Errorf("voice id = %q", captured.VoiceSetting.VoiceID)
	}
	if !captured.VoiceSetting.LatexRead {
		t.Error("latex_read should default to true")
	}
}

func TestPropRolePayloadUnderSpecialGroup(t *testing.T) {
	var captured ttsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		fmt.Fprint(w, okBody([]byte("x")))
	}))
	defer srv.Close()

	c := NewTTSClient(&config.TTSConfig{
		APIKey: "k", GroupID: "g", BaseURL: srv.URL, Timeout: 5, MaxRetries: 1,
	}, staticVoices{special: true})

	if _, err := c.Synthesize(context.Background(), "ding!", "prop", model.EmotionAuto, model.SpeedNormal); err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}
	if captured.VoiceSetting.Emotion != "happy" {
		t.Errorf("prop emotion = %q, want happy", captured.VoiceSetting.Emotion)
	}
	if captured.VoiceSetting.LatexRead {
		t.Error("prop lines should disable latex_read")
	}
}
