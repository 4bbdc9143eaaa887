package app

import (
	"strings"

	"github.com/chatlens/chatlens-backend/internal/platform/envutil"
	"github.com/chatlens/chatlens-backend/internal/platform/logger"
)

type Config struct {
	Port        string
	ServiceName string
	Environment string
	Version     string

	AllowOrigins []string

	// AIProvider selects the primary model backend ("ollama" or "openai").
	AIProvider        string
	AIFallbackEnabled bool

	RebuildOnStart bool

	RedisAddr   string
	MetricsAddr string
}

func LoadConfig(log *logger.Logger) Config {
	origins := envutil.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000", log)
	var allowOrigins []string
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowOrigins = append(allowOrigins, o)
		}
	}

	return Config{
		Port:              envutil.GetEnv("PORT", "8080", log),
		ServiceName:       envutil.GetEnv("SERVICE_NAME", "chatlens-backend", log),
		Environment:       envutil.GetEnv("ENVIRONMENT", "development", log),
		Version:           envutil.GetEnv("SERVICE_VERSION", "dev", log),
		AllowOrigins:      allowOrigins,
		AIProvider:        strings.ToLower(envutil.GetEnv("AI_PROVIDER", "ollama", log)),
		AIFallbackEnabled: envutil.GetEnvAsBool("AI_FALLBACK_ENABLED", true, log),
		RebuildOnStart:    envutil.GetEnvAsBool("REBUILD_ON_START", false, log),
		RedisAddr:         envutil.GetEnv("REDIS_ADDR", "", log),
		MetricsAddr:       envutil.GetEnv("METRICS_ADDR", "", log),
	}
}
