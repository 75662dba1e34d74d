package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Storage   StorageConfig
	TTS       TTSConfig
	LLM       LLMConfig
	R2        R2Config
	Voices    VoiceConfig
	Assets    AssetConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// StorageConfig locates the on-disk project store (scripts, per-line audio,
// merged page audio).
type StorageConfig struct {
	Root string
}

type TTSConfig struct {
	APIKey     string
	GroupID    string
	BaseURL    string
	Model      string
	Timeout    int // seconds, per request
	MaxRetries int
	BaseDelay  int // seconds, first backoff step
	MaxDelay   int // seconds, backoff cap
	Throttle   int // seconds slept after each successful call
}

type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

// VoiceConfig maps dialogue roles to provider voice ids. Group selects the
// active character set; the special group enables the prop-sound rule.
type VoiceConfig struct {
	Group        string
	SpecialGroup string
	PropRole     string
	DefaultVoice string
	Mapping      map[string]string
}

type RateLimitConfig struct {
	SynthesisPerMin   int
	GenerationPerHour int
}

// AssetConfig points at fixed audio clips shipped with the service.
type AssetConfig struct {
	ColdOpenClip string // prepended to page 1 audio when present
	PropClip     string // prepended to prop-role lines under the special group
	ColdOpen     bool
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("TTS_API_KEY")
	readSecret("TTS_GROUP_ID")
	readSecret("LLM_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("storage.root", "STORAGE_ROOT")
	_ = viper.BindEnv("tts.api_key", "TTS_API_KEY")
	_ = viper.BindEnv("tts.group_id", "TTS_GROUP_ID")
	_ = viper.BindEnv("tts.base_url", "TTS_BASE_URL")
	_ = viper.BindEnv("tts.model", "TTS_MODEL")
	_ = viper.BindEnv("tts.timeout", "TTS_TIMEOUT")
	_ = viper.BindEnv("tts.max_retries", "TTS_MAX_RETRIES")
	_ = viper.BindEnv("tts.base_delay", "TTS_BASE_DELAY")
	_ = viper.BindEnv("tts.max_delay", "TTS_MAX_DELAY")
	_ = viper.BindEnv("tts.throttle", "TTS_THROTTLE")
	_ = viper.BindEnv("llm.api_key", "LLM_API_KEY")
	_ = viper.BindEnv("llm.base_url", "LLM_BASE_URL")
	_ = viper.BindEnv("llm.model", "LLM_MODEL")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("voices.group", "VOICE_GROUP")
	_ = viper.BindEnv("assets.cold_open", "COLD_OPEN")
	_ = viper.BindEnv("ratelimit.synthesis_per_min", "RATELIMIT_SYNTHESIS_PER_MIN")
	_ = viper.BindEnv("ratelimit.generation_per_hour", "RATELIMIT_GENERATION_PER_HOUR")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("storage.root", "storage/projects")

	// TTS defaults
	viper.SetDefault("tts.base_url", "https://api.minimax.chat/v1/t2a_v2")
	viper.SetDefault("tts.model", "speech-01-turbo")
	viper.SetDefault("tts.timeout", 60)
	viper.SetDefault("tts.max_retries", 3)
	viper.SetDefault("tts.base_delay", 5)
	viper.SetDefault("tts.max_delay", 60)
	viper.SetDefault("tts.throttle", 5)

	// LLM defaults
	viper.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("llm.model", "llama-3.3-70b-versatile")

	// Voice defaults
	viper.SetDefault("voices.group", "Default")
	viper.SetDefault("voices.special_group", "Doraemon")
	viper.SetDefault("voices.prop_role", "prop")
	viper.SetDefault("voices.default_voice", "Chinese (Mandarin)_Radio_Host")
	viper.SetDefault("voices.mapping", map[string]string{})

	// Asset defaults
	viper.SetDefault("assets.cold_open_clip", "assets/cues.mp3")
	viper.SetDefault("assets.prop_clip", "assets/gadgets.mp3")
	viper.SetDefault("assets.cold_open", true)

	// Rate limit defaults
	viper.SetDefault("ratelimit.synthesis_per_min", 30)
	viper.SetDefault("ratelimit.generation_per_hour", 60)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Storage: StorageConfig{
			Root: viper.GetString("storage.root"),
		},
		TTS: TTSConfig{
			APIKey:     viper.GetString("tts.api_key"),
			GroupID:    viper.GetString("tts.group_id"),
			BaseURL:    viper.GetString("tts.base_url"),
			Model:      viper.GetString("tts.model"),
			Timeout:    viper.GetInt("tts.timeout"),
			MaxRetries: viper.GetInt("tts.max_retries"),
			BaseDelay:  viper.GetInt("tts.base_delay"),
			MaxDelay:   viper.GetInt("tts.max_delay"),
			Throttle:   viper.GetInt("tts.throttle"),
		},
		LLM: LLMConfig{
			APIKey:  viper.GetString("llm.api_key"),
			BaseURL: viper.GetString("llm.base_url"),
			Model:   viper.GetString("llm.model"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		Voices: VoiceConfig{
			Group:        viper.GetString("voices.group"),
			SpecialGroup: viper.GetString("voices.special_group"),
			PropRole:     viper.GetString("voices.prop_role"),
			DefaultVoice: viper.GetString("voices.default_voice"),
			Mapping:      viper.GetStringMapString("voices.mapping"),
		},
		Assets: AssetConfig{
			ColdOpenClip: viper.GetString("assets.cold_open_clip"),
			PropClip:     viper.GetString("assets.prop_clip"),
			ColdOpen:     viper.GetBool("assets.cold_open"),
		},
		RateLimit: RateLimitConfig{
			SynthesisPerMin:   viper.GetInt("ratelimit.synthesis_per_min"),
			GenerationPerHour: viper.GetInt("ratelimit.generation_per_hour"),
		},
	}

	return cfg, nil
}
