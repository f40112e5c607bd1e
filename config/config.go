package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultKeyConfigPath = "key_configs.json"
	keyConfigField       = "google"
	dateLayout           = "2006-01-02"
)

// ErrMissingAPIKey is returned when no credential was supplied directly or
// through the key configuration file.
var ErrMissingAPIKey = errors.New("config: no google api key provided")

// Config holds all application configuration loaded from environment variables.
type Config struct {
	APIKey        string
	KeyConfigPath string

	PlacesBaseURL  string
	PlacesLanguage string
	HTTPTimeout    time.Duration

	MaxConcurrency int
	RateLimitMs    int

	DatasetName string
	OutputDir   string
	QueriesFile string
	Append      bool

	PostgresEnabled  bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	ChartFrequency string
	ChartStart     time.Time
	ChartEnd       time.Time
	ChartMinCount  int
	ChartPNG       bool
	ChromeBin      string

	LogLevel string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		APIKey:        getEnv("GOOGLE_API_KEY", ""),
		KeyConfigPath: getEnv("KEY_CONFIG_PATH", defaultKeyConfigPath),

		PlacesBaseURL:  getEnv("PLACES_BASE_URL", "https://maps.googleapis.com/maps/api/place"),
		PlacesLanguage: getEnv("PLACES_LANGUAGE", ""),
		HTTPTimeout:    time.Duration(getEnvInt("HTTP_TIMEOUT_SEC", 15)) * time.Second,

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 1),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 0),

		DatasetName: getEnv("DATASET_NAME", "places"),
		OutputDir:   getEnv("OUTPUT_DIR", "./output"),
		QueriesFile: getEnv("QUERIES_FILE", ""),
		Append:      getEnvBool("APPEND_DATASET", false),

		PostgresEnabled:  getEnvBool("POSTGRES_ENABLED", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "places_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		ChartFrequency: getEnv("CHART_FREQUENCY", "month"),
		ChartStart:     getEnvDate("CHART_START"),
		ChartEnd:       getEnvDate("CHART_END"),
		ChartMinCount:  getEnvInt("CHART_MIN_COUNT", 1),
		ChartPNG:       getEnvBool("CHART_PNG", false),
		ChromeBin:      getEnv("CHROME_BIN", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// ResolveAPIKey returns the directly supplied key, or the "google" entry of
// the key configuration file when no key was given.
func (c *Config) ResolveAPIKey() (string, error) {
	if key := strings.TrimSpace(c.APIKey); key != "" {
		return key, nil
	}

	raw, err := os.ReadFile(c.KeyConfigPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s does not exist", ErrMissingAPIKey, c.KeyConfigPath)
		}
		return "", fmt.Errorf("config: read %s: %w", c.KeyConfigPath, err)
	}

	var keys map[string]string
	if err := json.Unmarshal(raw, &keys); err != nil {
		return "", fmt.Errorf("config: parse %s: %w", c.KeyConfigPath, err)
	}

	key := strings.TrimSpace(keys[keyConfigField])
	if key == "" {
		return "", fmt.Errorf("%w: %s has no %q entry", ErrMissingAPIKey, c.KeyConfigPath, keyConfigField)
	}
	return key, nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

type queriesFile struct {
	Dataset string   `yaml:"dataset"`
	Queries []string `yaml:"queries"`
}

// LoadQueries reads the query list from a YAML file of the form
//
//	dataset: coffee-shops
//	queries:
//	  - Subway, New-York
//
// A non-empty dataset entry overrides DatasetName.
func (c *Config) LoadQueries(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read queries %s: %w", path, err)
	}

	var qf queriesFile
	if err := yaml.Unmarshal(raw, &qf); err != nil {
		return nil, fmt.Errorf("config: parse queries %s: %w", path, err)
	}
	if qf.Dataset != "" {
		c.DatasetName = qf.Dataset
	}
	return qf.Queries, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDate(key string) time.Time {
	val := os.Getenv(key)
	if val == "" {
		return time.Time{}
	}
	t, err := time.Parse(dateLayout, val)
	if err != nil {
		log.Printf("[config] %s=%q is not a YYYY-MM-DD date, ignoring", key, val)
		return time.Time{}
	}
	return t
}
