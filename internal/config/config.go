package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Generation providers.
const (
	ProviderOpenRouter = "openrouter"
	ProviderAnthropic  = "anthropic"
)

type Config struct {
	Port string `validate:"required"`

	// Notebook tree
	TreeRoot   string `validate:"required"`
	ClassSlug  string `validate:"required"`
	CourseName string
	LayoutFile string
	PathLocks  bool

	// Generation capability
	GenerationProvider string `validate:"omitempty,oneof=openrouter anthropic"`
	OpenRouterAPIKey   string
	OpenRouterModel    string
	OpenRouterBaseURL  string `validate:"omitempty,url"`
	AnthropicAPIKey    string
	AnthropicModel     string

	// Search capability
	YouAPIKey         string
	SearchURL         string  `validate:"omitempty,url"`
	SearchResults     int     `validate:"min=1,max=20"`
	SearchRPS         float64 `validate:"gte=0"`
	SearchBurst       int     `validate:"min=1"`
	SearchConcurrency int     `validate:"min=1"`

	// Compilation
	Compiler         string `validate:"required"`
	Indexer          string
	CompileTimeout   time.Duration `validate:"gt=0"`
	DiagnosticBudget int           `validate:"min=1"`
	ArtifactDir      string

	// Enrichment
	CursorBackend   string `validate:"oneof=file redis memory"`
	RedisURL        string `validate:"required_if=CursorBackend redis"`
	RunTTL          time.Duration
	PayloadTokens   int `validate:"min=256"`
	MaxOutputTokens int `validate:"min=1"`

	// Import
	MaxUploadBytes       int64
	ImportReadable       bool
	PDFFallbackPdftotext bool
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8200"),

		TreeRoot:   envOr("TREE_ROOT", "."),
		ClassSlug:  envOr("CLASS_SLUG", "notebook"),
		CourseName: envOr("COURSE_NAME", "the course"),
		LayoutFile: os.Getenv("LAYOUT_FILE"),
		PathLocks:  envBool("PATH_LOCKS", true),

		GenerationProvider: os.Getenv("GENERATION_PROVIDER"),
		OpenRouterAPIKey:   os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:    envOr("OPENROUTER_MODEL", "openai/gpt-4o-mini"),
		OpenRouterBaseURL:  envOr("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		AnthropicAPIKey:    os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:     envOr("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),

		YouAPIKey:         os.Getenv("YOU_API_KEY"),
		SearchURL:         envOr("SEARCH_URL", "https://ydc-index.io"),
		SearchResults:     envInt("SEARCH_RESULTS", 5),
		SearchRPS:         envFloat("SEARCH_RPS", 2),
		SearchBurst:       envInt("SEARCH_BURST", 2),
		SearchConcurrency: envInt("SEARCH_CONCURRENCY", 4),

		Compiler:         envOr("COMPILER", "pdflatex"),
		Indexer:          os.Getenv("INDEXER"),
		CompileTimeout:   envDuration("COMPILE_TIMEOUT", 120*time.Second),
		DiagnosticBudget: envInt("DIAGNOSTIC_BUDGET", 500),
		ArtifactDir:      os.Getenv("ARTIFACT_DIR"),

		CursorBackend:   envOr("CURSOR_BACKEND", "file"),
		RedisURL:        os.Getenv("REDIS_URL"),
		RunTTL:          envDuration("RUN_TTL", 1*time.Hour),
		PayloadTokens:   envInt("PAYLOAD_TOKENS", 12000),
		MaxOutputTokens: envInt("MAX_OUTPUT_TOKENS", 4096),

		MaxUploadBytes:       envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB
		ImportReadable:       envBool("IMPORT_READABLE", true),
		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.SearchResults <= 0 {
		cfg.SearchResults = 5
	}
	if cfg.SearchConcurrency <= 0 {
		cfg.SearchConcurrency = 4
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.RunTTL <= 0 {
		cfg.RunTTL = 1 * time.Hour
	}

	return cfg
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s failed %q", verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	switch c.GenerationProvider {
	case ProviderOpenRouter:
		if c.OpenRouterAPIKey == "" {
			return fmt.Errorf("OPENROUTER_API_KEY is required when GENERATION_PROVIDER=%s", ProviderOpenRouter)
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when GENERATION_PROVIDER=%s", ProviderAnthropic)
		}
	}
	return nil
}

// Generation resolves which generation provider to use. Without an
// explicit choice, OpenRouter wins over Anthropic; an empty result means
// no generation capability is configured.
func (c Config) Generation() string {
	if c.GenerationProvider != "" {
		return c.GenerationProvider
	}
	switch {
	case c.OpenRouterAPIKey != "":
		return ProviderOpenRouter
	case c.AnthropicAPIKey != "":
		return ProviderAnthropic
	}
	return ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
