package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Neo4j     Neo4jConfig
	LLM       LLMConfig
	Retrieval RetrievalConfig
	Session   SessionConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	BodyLimit      int
	AllowedOrigins []string
	Development    bool
}

type Neo4jConfig struct {
	URI             string
	Username        string
	Password        string
	Database        string
	QueryTimeoutSec int
	MaxPoolSize     int
}

type LLMConfig struct {
	// Provider is "ollama" or "openai".
	Provider       string
	BaseURL        string
	APIKey         string
	PrimaryModel   string
	SecondaryModel string
	Temperature    float32
	MaxTokens      int
	TimeoutSec     int
}

type RetrievalConfig struct {
	TranslateQuestion bool
}

type SessionConfig struct {
	// Backend is "memory", "sqlite" or "redis".
	Backend string
	TTLHours int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled              bool
	MaxRequestsPerMinute int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

// Load reads config.yaml (if any) from path or the default search paths and
// overlays KIDNEYQA_* environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/kidneyqa")
	}

	v.SetEnvPrefix("KIDNEYQA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	switch c.LLM.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("unsupported llm provider: %q", c.LLM.Provider)
	}

	switch c.Session.Backend {
	case "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("unsupported session backend: %q", c.Session.Backend)
	}

	if c.LLM.Provider == "openai" && c.LLM.APIKey == "" {
		return fmt.Errorf("llm.apiKey is required for the openai provider")
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 0)
	v.SetDefault("server.bodyLimit", 1048576)
	v.SetDefault("server.allowedOrigins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("server.development", false)

	v.SetDefault("neo4j.uri", "bolt://localhost:7687")
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("neo4j.password", "password")
	v.SetDefault("neo4j.database", "kidneyhealthdatabase")
	v.SetDefault("neo4j.queryTimeoutSec", 15)
	v.SetDefault("neo4j.maxPoolSize", 50)

	v.SetDefault("llm.provider", "ollama")
	v.SetDefault("llm.apiKey", "")
	v.SetDefault("llm.baseURL", "http://localhost:11434")
	v.SetDefault("llm.primaryModel", "llama3.1:8b")
	v.SetDefault("llm.secondaryModel", "kenneth85/llama-3-taiwan")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.maxTokens", 512)
	v.SetDefault("llm.timeoutSec", 120)

	v.SetDefault("retrieval.translateQuestion", false)

	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.ttlHours", 168)

	v.SetDefault("sqlite.path", "./data/kidneyqa.db")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.maxRequestsPerMinute", 30)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
