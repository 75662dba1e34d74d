package e2e

import (
	"net/http"
	"testing"

	"github.com/slidecast/api/internal/service"
)

func TestStartPageGenerationQueues(t *testing.T) {
	ta := setupApp(t)
	ta.seedScript(t, "proj-1", 1, "hello", "world")

	resp, err := doRequest(ta.app, "POST", "/api/projects/proj-1/pages/1/audio", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)

	body := parseJSON(t, resp)
	jobID, _ := body["jobId"].(string)
	if jobID == "" {
		t.Fatalf("no jobId in response: %v", body)
	}
	if body["status"] != "pending" {
		t.Errorf("status = %v, want pending", body["status"])
	}

	if len(ta.queue.tasks) != 1 || ta.queue.tasks[0].Type() != service.TaskTypePageAudio {
		t.Fatalf("expected one %s task, got %d tasks", service.TaskTypePageAudio, len(ta.queue.tasks))
	}

	job, ok := ta.registry.Get(jobID)
	if !ok {
		t.Fatalf("job %s not in registry", jobID)
	}
	if job.TotalSteps != 2 {
		t.Errorf("total steps = %d, want dialogue count 2", job.TotalSteps)
	}
}

func TestStartPageGenerationUnknownScript(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, "POST", "/api/projects/proj-1/pages/7/audio", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)
}

func TestStartBatchGenerationUnknownProject(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, "POST", "/api/projects/ghost/audio", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)
}

func TestSynchronousSynthesisWithoutCredentials(t *testing.T) {
	ta := setupApp(t)
	ta.seedScript(t, "proj-1", 1, "hello")

	// TTS is unconfigured in tests, so the sync path reports a synthesis
	// failure rather than hanging or retrying.
	resp, err := doRequest(ta.app, "POST", "/api/projects/proj-1/pages/1/dialogues/a/audio", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadGateway)

	body := parseJSON(t, resp)
	if errObj, ok := body["error"].(map[string]interface{}); !ok || errObj["code"] != "SYNTHESIS_ERROR" {
		t.Errorf("expected SYNTHESIS_ERROR envelope, got %v", body)
	}
}

func TestGetPageAudioBeforeGeneration(t *testing.T) {
	ta := setupApp(t)
	ta.seedScript(t, "proj-1", 1, "hello")

	resp, err := doRequest(ta.app, "GET", "/api/projects/proj-1/pages/1/audio", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)
}

func TestGetPageAudioServesBytes(t *testing.T) {
	ta := setupApp(t)
	ta.seedScript(t, "proj-1", 1, "hello")
	if _, err := ta.artifacts.SavePageAudio("proj-1", 1, []byte("MERGED")); err != nil {
		t.Fatalf("seed page audio: %v", err)
	}

	resp, err := doRequest(ta.app, "GET", "/api/projects/proj-1/pages/1/audio", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("content type = %q, want audio/mpeg", ct)
	}
	if body := readBody(t, resp); body != "MERGED" {
		t.Errorf("body = %q, want MERGED", body)
	}
}

func TestPageAudioURLWithoutMirror(t *testing.T) {
	ta := setupApp(t)
	ta.seedScript(t, "proj-1", 1, "hello")

	resp, err := doRequest(ta.app, "GET", "/api/projects/proj-1/pages/1/audio/url", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)
}

func TestInvalidPageNumber(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, "GET", "/api/projects/proj-1/pages/zero/audio", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)

	resp, err = doRequest(ta.app, "GET", "/api/projects/proj-1/pages/0/audio", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}
