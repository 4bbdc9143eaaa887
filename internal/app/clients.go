package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/chatlens/chatlens-backend/internal/ai"
	rediscache "github.com/chatlens/chatlens-backend/internal/clients/redis"
	"github.com/chatlens/chatlens-backend/internal/platform/logger"
	"github.com/chatlens/chatlens-backend/internal/platform/ollama"
	"github.com/chatlens/chatlens-backend/internal/platform/openai"
)

// wireProviders builds the ordered model-provider chain. The primary comes
// from AI_PROVIDER; with fallback enabled the other backend is appended when
// it is configured.
func wireProviders(cfg Config, log *logger.Logger) ([]ai.Provider, error) {
	var providers []ai.Provider

	addOllama := func() error {
		c, err := ollama.NewClient(log)
		if err != nil {
			return err
		}
		providers = append(providers, c)
		return nil
	}
	addOpenAI := func() error {
		c, err := openai.NewClient(log)
		if err != nil {
			return err
		}
		providers = append(providers, c)
		return nil
	}

	openAIConfigured := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")) != ""

	switch cfg.AIProvider {
	case "openai":
		if err := addOpenAI(); err != nil {
			return nil, fmt.Errorf("init openai provider: %w", err)
		}
		if cfg.AIFallbackEnabled {
			if err := addOllama(); err != nil {
				log.Warn("ollama fallback unavailable", "error", err)
			}
		}
	default:
		if err := addOllama(); err != nil {
			return nil, fmt.Errorf("init ollama provider: %w", err)
		}
		if cfg.AIFallbackEnabled && openAIConfigured {
			if err := addOpenAI(); err != nil {
				log.Warn("openai fallback unavailable", "error", err)
			}
		}
	}

	return providers, nil
}

// wireEmbedCache is best-effort: no REDIS_ADDR means no cache, and a failed
// connection degrades to no cache rather than failing startup.
func wireEmbedCache(cfg Config, log *logger.Logger) rediscache.EmbedCache {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	cache, err := rediscache.NewEmbedCache(log)
	if err != nil {
		log.Warn("redis embed cache unavailable, continuing without it", "error", err)
		return nil
	}
	return cache
}
