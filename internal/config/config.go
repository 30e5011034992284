package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"timed-quiz"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	LogLevel                string        `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Redis     Redis
	Quiz      Quiz
	Questions Questions
	Security  Security
	CORS      CORS
}

// Redis holds cache + result store configuration. An empty address selects the
// in-memory stores.
type Redis struct {
	Addr     string `env:"REDIS_ADDR" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Quiz groups session defaults.
type Quiz struct {
	QuestionCount    int           `env:"QUIZ_QUESTION_COUNT" envDefault:"15"`
	DurationSeconds  int           `env:"QUIZ_DURATION_SECONDS" envDefault:"1800"`
	SessionRetention time.Duration `env:"SESSION_RETENTION" envDefault:"10m"`
	ResultTTL        time.Duration `env:"RESULT_TTL" envDefault:"2h"`
}

// Questions configures the trivia provider.
type Questions struct {
	BaseURL      string        `env:"OPENTDB_BASE_URL" envDefault:"https://opentdb.com"`
	Category     int           `env:"QUESTION_CATEGORY" envDefault:"0"`
	Difficulty   string        `env:"QUESTION_DIFFICULTY" envDefault:""`
	Type         string        `env:"QUESTION_TYPE" envDefault:""`
	FetchTimeout time.Duration `env:"QUESTION_FETCH_TIMEOUT" envDefault:"30s"`
	MaxRetries   int           `env:"QUESTION_MAX_RETRIES" envDefault:"2"`
	RetryDelay   time.Duration `env:"QUESTION_RETRY_DELAY" envDefault:"2s"`
	CacheTTL     time.Duration `env:"QUESTION_CACHE_TTL" envDefault:"30m"`
}

// Security stores secrets for signing session tokens.
type Security struct {
	SessionTokenSecret string `env:"SESSION_TOKEN_SECRET,notEmpty"`
}

// CORS holds Cross-Origin Resource Sharing configuration.
type CORS struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS" envSeparator:"," envDefault:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS" envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE" envDefault:"3600"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *App) validate() error {
	if c.Quiz.QuestionCount < 0 {
		return fmt.Errorf("QUIZ_QUESTION_COUNT must not be negative")
	}
	if c.Questions.MaxRetries < 0 {
		return fmt.Errorf("QUESTION_MAX_RETRIES must not be negative")
	}
	return nil
}
