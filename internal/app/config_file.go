package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig is the single-file configuration schema. Nested sections map
// naturally onto flags and env vars. Durations are strings in Go duration
// syntax ("24h", "90s") so hand-written files stay readable.
type FileConfig struct {
	Question  string `yaml:"question" json:"question"`
	Output    string `yaml:"output" json:"output"`
	OutputPDF string `yaml:"outputPDF" json:"outputPDF"`
	Trace     string `yaml:"trace" json:"trace"`
	Archive   string `yaml:"archive" json:"archive"`

	LLM struct {
		BaseURL string `yaml:"base" json:"base"`
		Model   string `yaml:"model" json:"model"`
		APIKey  string `yaml:"key" json:"key"`
		Legacy  bool   `yaml:"legacyCompletions" json:"legacyCompletions"`
	} `yaml:"llm" json:"llm"`

	Searx struct {
		URL string `yaml:"url" json:"url"`
		Key string `yaml:"key" json:"key"`
	} `yaml:"searx" json:"searx"`

	Search struct {
		File     string `yaml:"file" json:"file"`
		BraveKey string `yaml:"braveKey" json:"braveKey"`
	} `yaml:"search" json:"search"`

	Max struct {
		Sources   int `yaml:"sources" json:"sources"`
		PerDomain int `yaml:"perDomain" json:"perDomain"`
	} `yaml:"max" json:"max"`

	Min struct {
		SnippetChars int `yaml:"snippetChars" json:"snippetChars"`
	} `yaml:"min" json:"min"`

	Budget struct {
		Context int `yaml:"context" json:"context"`
		Answer  int `yaml:"answer" json:"answer"`
	} `yaml:"budget" json:"budget"`

	Fetch struct {
		Concurrency int    `yaml:"concurrency" json:"concurrency"`
		Timeout     string `yaml:"timeout" json:"timeout"`
		UserAgent   string `yaml:"userAgent" json:"userAgent"`
	} `yaml:"fetch" json:"fetch"`

	Language string `yaml:"language" json:"language"`
	Style    string `yaml:"style" json:"style"`
	DryRun   bool   `yaml:"dryRun" json:"dryRun"`
	Verbose  bool   `yaml:"verbose" json:"verbose"`

	// Verification defaults on; enable=false turns it off.
	Verify *struct {
		Enable *bool `yaml:"enable" json:"enable"`
	} `yaml:"verify" json:"verify"`

	Cache struct {
		Dir         string `yaml:"dir" json:"dir"`
		MaxAge      string `yaml:"maxAge" json:"maxAge"`
		MaxBytes    int64  `yaml:"maxBytes" json:"maxBytes"`
		MaxCount    int    `yaml:"maxCount" json:"maxCount"`
		Clear       bool   `yaml:"clear" json:"clear"`
		StrictPerms bool   `yaml:"strictPerms" json:"strictPerms"`
	} `yaml:"cache" json:"cache"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Unknown extension: try YAML then JSON.
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays FileConfig values into cfg for fields still unset
// or left at their flag defaults. Flags must already be parsed, so explicit
// flag values survive the overlay.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}

	if cfg.Question == "" && fc.Question != "" {
		cfg.Question = fc.Question
	}
	if cfg.OutputPath == "" && fc.Output != "" {
		cfg.OutputPath = fc.Output
	}
	if cfg.OutputPDFPath == "" && fc.OutputPDF != "" {
		cfg.OutputPDFPath = fc.OutputPDF
	}
	if cfg.TracePath == "" && fc.Trace != "" {
		cfg.TracePath = fc.Trace
	}
	if cfg.ArchivePath == "" && fc.Archive != "" {
		cfg.ArchivePath = fc.Archive
	}

	if cfg.LLMBaseURL == "" && fc.LLM.BaseURL != "" {
		cfg.LLMBaseURL = fc.LLM.BaseURL
	}
	if cfg.Model == "" && fc.LLM.Model != "" {
		cfg.Model = fc.LLM.Model
	}
	if cfg.LLMAPIKey == "" && fc.LLM.APIKey != "" {
		cfg.LLMAPIKey = fc.LLM.APIKey
	}
	if !cfg.LegacyCompletions && fc.LLM.Legacy {
		cfg.LegacyCompletions = true
	}

	if cfg.SearxURL == "" && fc.Searx.URL != "" {
		cfg.SearxURL = fc.Searx.URL
	}
	if cfg.SearxKey == "" && fc.Searx.Key != "" {
		cfg.SearxKey = fc.Searx.Key
	}
	if cfg.FileSearchPath == "" && fc.Search.File != "" {
		cfg.FileSearchPath = fc.Search.File
	}
	if cfg.BraveKey == "" && fc.Search.BraveKey != "" {
		cfg.BraveKey = fc.Search.BraveKey
	}

	if cfg.MaxSources == 0 && fc.Max.Sources > 0 {
		cfg.MaxSources = fc.Max.Sources
	}
	if cfg.PerDomainCap == 0 && fc.Max.PerDomain > 0 {
		cfg.PerDomainCap = fc.Max.PerDomain
	}
	if cfg.MinSnippetChars == 0 && fc.Min.SnippetChars > 0 {
		cfg.MinSnippetChars = fc.Min.SnippetChars
	}
	if cfg.TokenBudget == 0 && fc.Budget.Context > 0 {
		cfg.TokenBudget = fc.Budget.Context
	}
	if cfg.MaxAnswerTokens == 0 && fc.Budget.Answer > 0 {
		cfg.MaxAnswerTokens = fc.Budget.Answer
	}

	if (cfg.FetchConcurrency == 0 || cfg.FetchConcurrency == DefaultFetchConcurrency) && fc.Fetch.Concurrency > 0 {
		cfg.FetchConcurrency = fc.Fetch.Concurrency
	}
	if (cfg.RunTimeout == 0 || cfg.RunTimeout == DefaultRunTimeout) && fc.Fetch.Timeout != "" {
		if d, err := time.ParseDuration(fc.Fetch.Timeout); err == nil && d > 0 {
			cfg.RunTimeout = d
		}
	}
	if (cfg.UserAgent == "" || cfg.UserAgent == DefaultUserAgent) && fc.Fetch.UserAgent != "" {
		cfg.UserAgent = fc.Fetch.UserAgent
	}

	if cfg.Lang == "" && fc.Language != "" {
		cfg.Lang = fc.Language
	}
	if cfg.Style == "" && fc.Style != "" {
		cfg.Style = fc.Style
	}
	if !cfg.DryRun && fc.DryRun {
		cfg.DryRun = true
	}
	if !cfg.Verbose && fc.Verbose {
		cfg.Verbose = true
	}
	if fc.Verify != nil && fc.Verify.Enable != nil {
		cfg.SkipVerify = !*fc.Verify.Enable
	}

	if (cfg.CacheDir == "" || cfg.CacheDir == DefaultCacheDir) && fc.Cache.Dir != "" {
		cfg.CacheDir = fc.Cache.Dir
	}
	if cfg.CacheMaxAge == 0 && fc.Cache.MaxAge != "" {
		if d, err := time.ParseDuration(fc.Cache.MaxAge); err == nil && d > 0 {
			cfg.CacheMaxAge = d
		}
	}
	if cfg.CacheMaxBytes == 0 && fc.Cache.MaxBytes > 0 {
		cfg.CacheMaxBytes = fc.Cache.MaxBytes
	}
	if cfg.CacheMaxCount == 0 && fc.Cache.MaxCount > 0 {
		cfg.CacheMaxCount = fc.Cache.MaxCount
	}
	if !cfg.CacheClear && fc.Cache.Clear {
		cfg.CacheClear = true
	}
	if !cfg.CacheStrictPerms && fc.Cache.StrictPerms {
		cfg.CacheStrictPerms = true
	}
}

// ValidateConfig rejects configurations that cannot produce a run.
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Question) == "" {
		return errors.New("config: question is required")
	}
	if cfg.FileSearchPath == "" && cfg.SearxURL == "" && cfg.BraveKey == "" {
		return errors.New("config: no search provider (set searx.url, search.braveKey, or search.file)")
	}
	if cfg.MaxSources < 0 || cfg.PerDomainCap < 0 || cfg.MinSnippetChars < 0 ||
		cfg.TokenBudget < 0 || cfg.MaxAnswerTokens < 0 || cfg.FetchConcurrency < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	if cfg.RunTimeout < 0 || cfg.CacheMaxAge < 0 {
		return errors.New("config: negative durations are not allowed")
	}
	return nil
}
