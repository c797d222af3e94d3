package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App     AppConfig
	Gateway GatewayConfig
	Editor  EditorConfig
	MockAPI MockAPIConfig
}

type AppConfig struct {
	Environment   string `validate:"required,oneof=development production test"`
	LogFilePath   string `validate:"required"`
	EventsLogPath string
	NatsURL       string
	RedisURL      string
	OtelEnabled   bool
}

type GatewayConfig struct {
	BaseURL     string        `validate:"required,url"`
	Token       string        // Bearer token forwarded to the backend
	Timeout     time.Duration `validate:"gt=0"`
	Persistence string        `validate:"oneof=http redis"` // "http" or "redis"
	WorkspaceID string
}

type EditorConfig struct {
	TriggerMarker      string        `validate:"required"`
	SaveDebounce       time.Duration `validate:"gt=0"`
	TypingQuiet        time.Duration `validate:"gt=0"`
	AutoTagCountdown   time.Duration `validate:"gt=0"`
	AutoTagPoll        time.Duration `validate:"gt=0"`
	AutoTagPollCap     time.Duration `validate:"gtefield=AutoTagPoll"`
	MinTagChars        int           `validate:"gte=0"`
	MinContextChars    int           `validate:"gte=0"`
	ContextWindowChars int           `validate:"gt=0"`
	MaxContextChars    int           `validate:"gtefield=ContextWindowChars"`
	HeadChars          int           `validate:"gt=0"`
	PopupWidth         int           `validate:"gt=0"`
	PopupHeight        int           `validate:"gt=0"`
	PopupMargin        int           `validate:"gte=0"`
	MaxCandidates      int           `validate:"gt=0"`
	PageCacheTTL       time.Duration `validate:"gt=0"`
}

type MockAPIConfig struct {
	Port      string `validate:"required,numeric"`
	JWTSecret string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Environment:   getEnv("GO_ENV", "development"),
			LogFilePath:   getEnv("LOG_FILE_PATH", "logs/editor.log"),
			EventsLogPath: getEnv("EVENTS_LOG_PATH", "logs/editor-events.log"),
			NatsURL:       getEnv("NATS_URL", ""),
			RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			OtelEnabled:   getEnvAsBool("OTEL_ENABLED", false),
		},
		Gateway: GatewayConfig{
			BaseURL:     getEnv("GATEWAY_BASE_URL", "http://localhost:3000"),
			Token:       getEnv("GATEWAY_TOKEN", ""),
			Timeout:     getEnvAsDuration("GATEWAY_TIMEOUT", 30*time.Second),
			Persistence: getEnv("GATEWAY_PERSISTENCE", "http"),
			WorkspaceID: getEnv("WORKSPACE_ID", ""),
		},
		Editor: EditorConfig{
			TriggerMarker:      getEnv("EDITOR_TRIGGER_MARKER", "@link"),
			SaveDebounce:       getEnvAsDuration("EDITOR_SAVE_DEBOUNCE", time.Second),
			TypingQuiet:        getEnvAsDuration("EDITOR_TYPING_QUIET", time.Second),
			AutoTagCountdown:   getEnvAsDuration("EDITOR_AUTOTAG_COUNTDOWN", 15*time.Second),
			AutoTagPoll:        getEnvAsDuration("EDITOR_AUTOTAG_POLL", 500*time.Millisecond),
			AutoTagPollCap:     getEnvAsDuration("EDITOR_AUTOTAG_POLL_CAP", 10*time.Second),
			MinTagChars:        getEnvAsInt("EDITOR_MIN_TAG_CHARS", 50),
			MinContextChars:    getEnvAsInt("EDITOR_MIN_CONTEXT_CHARS", 3),
			ContextWindowChars: getEnvAsInt("EDITOR_CONTEXT_WINDOW", 250),
			MaxContextChars:    getEnvAsInt("EDITOR_MAX_CONTEXT", 2000),
			HeadChars:          getEnvAsInt("EDITOR_HEAD_CHARS", 500),
			PopupWidth:         getEnvAsInt("EDITOR_POPUP_WIDTH", 360),
			PopupHeight:        getEnvAsInt("EDITOR_POPUP_HEIGHT", 320),
			PopupMargin:        getEnvAsInt("EDITOR_POPUP_MARGIN", 16),
			MaxCandidates:      getEnvAsInt("EDITOR_MAX_CANDIDATES", 8),
			PageCacheTTL:       getEnvAsDuration("EDITOR_PAGE_CACHE_TTL", 5*time.Minute),
		},
		MockAPI: MockAPIConfig{
			Port:      getEnv("MOCKAPI_PORT", "3000"),
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
	}
}

// Validate checks the struct tags above and reports every violation in one error.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		var fields []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go duration strings ("1500ms") or plain integers as milliseconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if d, err := time.ParseDuration(strValue); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}
