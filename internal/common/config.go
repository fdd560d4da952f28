package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/receipt-itemizer/constants"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Log      LogConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // postgres | sqlite
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
	AutoMigrate      bool
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr    string
	HTTPAddr    string
	UploadDir   string
	MaxUploadMB int
}

// OCRConfig selects and configures the OCR engine.
type OCRConfig struct {
	Engine string

	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string

	GoogleCredentialsJSON string
	GoogleCredentialsFile string

	AzureEndpoint string
	AzureKey      string

	Tesseract     string // binary for tesseract-cli
	TesseractLang string
	TessdataDir   string
}

// LLMConfig holds extraction-capability configuration
type LLMConfig struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string
	Format string // json | text
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	provider := strings.ToLower(getEnv("LLM_PROVIDER", constants.ProviderGemini))
	return &Config{
		Database: DatabaseConfig{
			Driver:           strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
			AutoMigrate:      getEnvAsBool("DB_AUTO_MIGRATE", false),
		},
		Server: ServerConfig{
			GRPCAddr:    getEnv("GRPC_ADDR", ":8080"),
			HTTPAddr:    getEnv("HTTP_ADDR", ":3000"),
			UploadDir:   getEnv("UPLOAD_DIR", "./uploads"),
			MaxUploadMB: getEnvAsInt("MAX_UPLOAD_MB", constants.MaxUploadMBDefault),
		},
		OCR: OCRConfig{
			Engine:                strings.ToLower(getEnv("OCR_ENGINE", constants.EngineTextract)),
			AWSRegion:             getEnv("AWS_REGION", "us-east-1"),
			AWSAccessKeyID:        getEnv("AWS_ACCESS_KEY_ID", ""),
			AWSSecretAccessKey:    getEnv("AWS_SECRET_ACCESS_KEY", ""),
			GoogleCredentialsJSON: getEnv("GOOGLE_CREDENTIALS", ""),
			GoogleCredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
			AzureEndpoint:         getEnv("AZURE_VISION_ENDPOINT", ""),
			AzureKey:              getEnv("AZURE_VISION_KEY", ""),
			Tesseract:             getEnv("TESSERACT_BIN", "tesseract"),
			TesseractLang:         getEnv("TESSERACT_LANG", "eng"),
			TessdataDir:           getEnv("TESSDATA_PREFIX", ""),
		},
		LLM: LLMConfig{
			Provider:    provider,
			Model:       getEnv("LLM_MODEL", ""),
			APIKey:      llmKey(provider),
			BaseURL:     getEnv("LLM_BASE_URL", ""),
			Temperature: getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("LLM_TIMEOUT", 45*time.Second),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

func llmKey(provider string) string {
	if k := getEnv("LLM_API_KEY", ""); k != "" {
		return k
	}
	switch provider {
	case constants.ProviderOpenAI:
		return getEnv("OPENAI_API_KEY", "")
	default:
		return getEnv("GEMINI_API_KEY", "")
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks the loaded configuration. A missing LLM key is not an
// error: extraction degrades to an empty result.
func (c *Config) Validate() error {
	return c.validate(true)
}

// ValidatePipeline checks only what OCR and extraction need, for runs that
// never touch the database.
func (c *Config) ValidatePipeline() error {
	return c.validate(false)
}

func (c *Config) validate(withDatabase bool) error {
	v := NewValidator().
		Field("OCR_ENGINE", c.OCR.Engine, OneOf(
			constants.EngineTextract, constants.EngineVision, constants.EngineAzure,
			constants.EngineTesseract, constants.EngineTesseractCLI,
		)).
		Field("LLM_PROVIDER", c.LLM.Provider, OneOf(constants.ProviderGemini, constants.ProviderOpenAI))

	if withDatabase {
		v.Field("DB_DRIVER", c.Database.Driver, OneOf("postgres", "sqlite")).
			Field("DB_URL", c.Database.DSN, Required()).
			Field("GRPC_ADDR", c.Server.GRPCAddr, Required())
	}
	if c.OCR.Engine == constants.EngineAzure {
		v.Field("AZURE_VISION_ENDPOINT", c.OCR.AzureEndpoint, Required()).
			Field("AZURE_VISION_KEY", c.OCR.AzureKey, Required())
	}
	if err := v.Error(); err != nil {
		return NewAppError("CONFIG_ERROR", "invalid configuration", err)
	}
	return nil
}
