// Package config loads speakerpipe configuration from defaults, an optional
// YAML file and the environment, and builds the global zap logger.
package config

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ppiankov/speakerpipe/internal/model"
)

// EnvPrefix is the prefix for environment overrides (SPEAKERPIPE_LLM_MODEL, ...).
const EnvPrefix = "SPEAKERPIPE"

// SetDefaults registers every default from model.DefaultConfig on v.
func SetDefaults(v *viper.Viper) {
	d := model.DefaultConfig()

	v.SetDefault("paths.pages_dir", d.Paths.PagesDir)
	v.SetDefault("paths.out_dir", d.Paths.OutDir)
	v.SetDefault("paths.cache_dir", d.Paths.CacheDir)

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", d.LLM.Timeout)
	v.SetDefault("llm.max_tokens", d.LLM.MaxTokens)

	v.SetDefault("search.api_key", "")
	v.SetDefault("search.base_url", d.Search.BaseURL)
	v.SetDefault("search.depth", d.Search.Depth)
	v.SetDefault("search.max_results", d.Search.MaxResults)
	v.SetDefault("search.timeout", d.Search.Timeout)

	v.SetDefault("enrichment.batch_size", d.Enrichment.BatchSize)
	v.SetDefault("enrichment.pause", d.Enrichment.Pause)

	v.SetDefault("pipeline.classify_checkpoint_interval", d.Pipeline.ClassifyCheckpointInterval)
	v.SetDefault("pipeline.generate_checkpoint_interval", d.Pipeline.GenerateCheckpointInterval)
	v.SetDefault("pipeline.classify_concurrency", d.Pipeline.ClassifyConcurrency)
	v.SetDefault("pipeline.generate_concurrency", d.Pipeline.GenerateConcurrency)
	v.SetDefault("pipeline.eligible_categories", d.Pipeline.EligibleCategories)

	v.SetDefault("rate.llm_rps", d.Rate.LLMRequestsPerSecond)
	v.SetDefault("rate.llm_burst", d.Rate.LLMBurst)
	v.SetDefault("rate.search_rps", d.Rate.SearchRequestsPerSecond)
	v.SetDefault("rate.search_burst", d.Rate.SearchBurst)

	v.SetDefault("fetch.user_agent", d.Fetch.UserAgent)
	v.SetDefault("fetch.timeout", d.Fetch.Timeout)
	v.SetDefault("fetch.max_bytes", d.Fetch.MaxBodyBytes)
	v.SetDefault("fetch.rps", d.Fetch.RequestsPerSecond)
	v.SetDefault("fetch.http_proxy", "")
	v.SetDefault("fetch.https_proxy", "")

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load decodes the configuration held by v. Provider API keys fall back to
// their conventional environment variables when not set explicitly.
func Load(v *viper.Viper) (*model.Config, error) {
	SetDefaults(v)

	var cfg model.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	applyEnvKeys(&cfg)
	return &cfg, nil
}

// New returns a viper instance wired for speakerpipe: env prefix, key
// replacer, and the config file search path. A missing config file is not
// an error.
func New(cfgFile string) (*viper.Viper, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("speakerpipe")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.speakerpipe")
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	return v, nil
}

func applyEnvKeys(cfg *model.Config) {
	if cfg.LLM.APIKey == "" {
		switch strings.ToLower(cfg.LLM.Provider) {
		case "openai":
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic", "claude":
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "gemini", "google":
			cfg.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}
	if cfg.LLM.BaseURL == "" && strings.EqualFold(cfg.LLM.Provider, "ollama") {
		cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}
	if cfg.Search.APIKey == "" {
		cfg.Search.APIKey = os.Getenv("TAVILY_API_KEY")
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg model.LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
