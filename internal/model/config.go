package model

import "time"

// Config holds the full speakerpipe configuration
type Config struct {
	Paths      PathsConfig      `yaml:"paths" mapstructure:"paths"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Enrichment EnrichmentConfig `yaml:"enrichment" mapstructure:"enrichment"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Rate       RateConfig       `yaml:"rate" mapstructure:"rate"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// PathsConfig locates inputs, outputs and the enrichment cache
type PathsConfig struct {
	PagesDir string `yaml:"pages_dir" mapstructure:"pages_dir"` // Contains speakers/<slug>/index.html
	OutDir   string `yaml:"out_dir" mapstructure:"out_dir"`
	CacheDir string `yaml:"cache_dir" mapstructure:"cache_dir"`
}

// LLMConfig selects and configures the language model provider
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // openai, anthropic, gemini, ollama
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SearchConfig configures the web search API used for enrichment
type SearchConfig struct {
	APIKey     string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	Depth      string `yaml:"depth" mapstructure:"depth"`
	MaxResults int    `yaml:"max_results" mapstructure:"max_results"`
	Timeout    int    `yaml:"timeout" mapstructure:"timeout"` // seconds
}

// EnrichmentConfig controls the inner enrichment loop of stage 1
type EnrichmentConfig struct {
	BatchSize int           `yaml:"batch_size" mapstructure:"batch_size"`
	Pause     time.Duration `yaml:"pause" mapstructure:"pause"`
}

// PipelineConfig controls chunking and concurrency of the two stages
type PipelineConfig struct {
	ClassifyCheckpointInterval int      `yaml:"classify_checkpoint_interval" mapstructure:"classify_checkpoint_interval"`
	GenerateCheckpointInterval int      `yaml:"generate_checkpoint_interval" mapstructure:"generate_checkpoint_interval"`
	ClassifyConcurrency        int      `yaml:"classify_concurrency" mapstructure:"classify_concurrency"`
	GenerateConcurrency        int      `yaml:"generate_concurrency" mapstructure:"generate_concurrency"`
	EligibleCategories         []string `yaml:"eligible_categories" mapstructure:"eligible_categories"`
}

// RateConfig throttles calls to the external collaborators. A zero RPS
// disables the limiter.
type RateConfig struct {
	LLMRequestsPerSecond    float64 `yaml:"llm_rps" mapstructure:"llm_rps"`
	LLMBurst                int     `yaml:"llm_burst" mapstructure:"llm_burst"`
	SearchRequestsPerSecond float64 `yaml:"search_rps" mapstructure:"search_rps"`
	SearchBurst             int     `yaml:"search_burst" mapstructure:"search_burst"`
}

// FetchConfig configures the page downloader
type FetchConfig struct {
	UserAgent         string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxBodyBytes      int64         `yaml:"max_bytes" mapstructure:"max_bytes"`
	RequestsPerSecond float64       `yaml:"rps" mapstructure:"rps"`
	HTTPProxy         string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy        string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			PagesDir: "in/scraped_pages",
			OutDir:   "out",
			CacheDir: "cache",
		},
		LLM: LLMConfig{
			Provider:  "openai",
			Model:     "",
			Timeout:   60,
			MaxTokens: 1000,
		},
		Search: SearchConfig{
			BaseURL:    "https://api.tavily.com",
			Depth:      "advanced",
			MaxResults: 5,
			Timeout:    30,
		},
		Enrichment: EnrichmentConfig{
			BatchSize: 5,
			Pause:     time.Second,
		},
		Pipeline: PipelineConfig{
			ClassifyCheckpointInterval: 10,
			GenerateCheckpointInterval: 20,
			ClassifyConcurrency:        10,
			GenerateConcurrency:        15,
			EligibleCategories:         []string{string(CategoryBuilder), string(CategoryOwner)},
		},
		Rate: RateConfig{
			LLMRequestsPerSecond:    0,
			LLMBurst:                5,
			SearchRequestsPerSecond: 0,
			SearchBurst:             5,
		},
		Fetch: FetchConfig{
			UserAgent:         "speakerpipe/0.1 (+https://github.com/ppiankov/speakerpipe)",
			Timeout:           30 * time.Second,
			MaxBodyBytes:      2_000_000,
			RequestsPerSecond: 1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// EligibleSet returns the eligible categories as a lookup set. Unknown names
// are dropped rather than coerced to Other so that a typo never makes every
// unclassified record eligible.
func (p PipelineConfig) EligibleSet() map[Category]bool {
	set := make(map[Category]bool, len(p.EligibleCategories))
	for _, name := range p.EligibleCategories {
		c := Category(name)
		if c.Valid() {
			set[c] = true
		}
	}
	return set
}
