package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"github.com/slidecast/api/internal/client"
	"github.com/slidecast/api/internal/config"
	"github.com/slidecast/api/internal/handler"
	"github.com/slidecast/api/internal/model"
	"github.com/slidecast/api/internal/registry"
	"github.com/slidecast/api/internal/service"
	"github.com/slidecast/api/internal/storage"
	"github.com/slidecast/api/internal/voice"
)

// captureQueue records queued tasks instead of dispatching them, so handler
// tests run without Redis.
type captureQueue struct {
	tasks []*asynq.Task
}

func (q *captureQueue) Enqueue(task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: "queued"}, nil
}

// testApp holds all components needed for handler tests.
type testApp struct {
	app       *fiber.App
	queue     *captureQueue
	registry  *registry.Registry
	artifacts *storage.ArtifactStore
	scripts   *storage.ScriptStore
}

// setupApp creates a Fiber app wired like main.go, but with a file-backed job
// store, a capture queue, and unconfigured external clients.
func setupApp(t *testing.T) *testApp {
	t.Helper()
	root := t.TempDir()

	artifacts, err := storage.NewArtifactStore(filepath.Join(root, "projects"))
	if err != nil {
		t.Fatalf("artifact store: %v", err)
	}
	scripts, err := storage.NewScriptStore(filepath.Join(root, "projects"))
	if err != nil {
		t.Fatalf("script store: %v", err)
	}
	jobStore, err := registry.NewFileStore(filepath.Join(root, "jobs"))
	if err != nil {
		t.Fatalf("job store: %v", err)
	}
	reg, err := registry.New(context.Background(), jobStore)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	validate := validator.New()
	queue := &captureQueue{}

	// Unconfigured clients: synthesis fails fast, script jobs still queue.
	voices := voice.NewResolver(config.VoiceConfig{
		Group:        "Default",
		SpecialGroup: "Doraemon",
		PropRole:     "prop",
		DefaultVoice: "narrator",
	})
	ttsClient := client.NewTTSClient(&config.TTSConfig{}, voices)
	llmClient := client.NewLLMClient(&config.LLMConfig{})

	audioService := service.NewAudioService(ttsClient, voices, artifacts, scripts, reg, queue, nil, config.AssetConfig{})
	scriptService := service.NewScriptService(llmClient, scripts, audioService, reg, queue)

	jobHandler := handler.NewJobHandler(reg, validate)
	audioHandler := handler.NewAudioHandler(audioService, artifacts, validate)
	scriptHandler := handler.NewScriptHandler(scriptService, validate)

	app := fiber.New()

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"tts":   ttsClient.IsConfigured(),
				"llm":   llmClient.IsConfigured(),
				"redis": false,
				"r2":    false,
			},
		})
	})

	api := app.Group("/api")

	jobs := api.Group("/jobs")
	jobs.Post("/", jobHandler.Create)
	jobs.Get("/", jobHandler.List)
	jobs.Get("/running", jobHandler.ListRunning)
	jobs.Get("/:jobId", jobHandler.Get)
	jobs.Post("/:jobId/cancel", jobHandler.Cancel)
	jobs.Delete("/:jobId", jobHandler.Delete)

	projects := api.Group("/projects/:projectId")
	projects.Post("/audio", audioHandler.StartBatchGeneration)

	pages := projects.Group("/pages/:page")
	pages.Post("/audio", audioHandler.StartPageGeneration)
	pages.Get("/audio", audioHandler.GetPageAudio)
	pages.Get("/audio/url", audioHandler.GetPageAudioURL)
	pages.Post("/script", scriptHandler.Generate)
	pages.Get("/script", scriptHandler.Get)
	pages.Put("/dialogues/order", scriptHandler.Reorder)
	pages.Post("/dialogues/:dialogueId/audio", audioHandler.SynthesizeDialogue)
	pages.Get("/dialogues/:dialogueId/audio", audioHandler.GetDialogueAudio)
	pages.Delete("/dialogues/:dialogueId", scriptHandler.DeleteDialogue)

	return &testApp{
		app:       app,
		queue:     queue,
		registry:  reg,
		artifacts: artifacts,
		scripts:   scripts,
	}
}

// seedScript persists a page script with one dialogue per text.
func (ta *testApp) seedScript(t *testing.T, projectID string, page int, texts ...string) {
	t.Helper()
	script := &model.Script{Page: page}
	for i, text := range texts {
		script.Dialogues = append(script.Dialogues, model.Dialogue{
			ID:      string(rune('a' + i)),
			Role:    "teacher",
			Content: text,
			Emotion: model.EmotionAuto,
			Speed:   model.SpeedNormal,
		})
	}
	if err := ta.scripts.SaveScript(projectID, script); err != nil {
		t.Fatalf("seed script: %v", err)
	}
}

// doRequest performs an HTTP request against the test app.
func doRequest(app *fiber.App, method, path string, body string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return app.Test(req, -1)
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// unmarshalJSON decodes a JSON document into out.
func unmarshalJSON(body string, out interface{}) error {
	return json.Unmarshal([]byte(body), out)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}
