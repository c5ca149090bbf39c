package app

import "time"

// Defaults shared by the CLI and the config overlay logic. Flag defaults in
// cmd/goanswer must match these so ApplyFileConfig can tell "left at default"
// apart from "set explicitly".
const (
	DefaultUserAgent        = "goanswer/1.0 (+https://github.com/hyperifyio/goanswer)"
	DefaultCacheDir         = ".goanswer-cache"
	DefaultFetchConcurrency = 8
	DefaultRunTimeout       = 90 * time.Second
)

// Config holds runtime configuration for one answering run.
type Config struct {
	// Question is the user's query text.
	Question string

	// Answer shaping. Zero values fall back to the query package defaults.
	Model           string
	Style           string
	Lang            string
	MaxSources      int
	TokenBudget     int
	MaxAnswerTokens int

	// Search provider selection: a results file wins over SearxNG, which
	// wins over Brave.
	SearxURL        string
	SearxKey        string
	BraveKey        string
	FileSearchPath  string
	PerDomainCap    int
	MinSnippetChars int

	// LLM transport
	LLMBaseURL        string
	LLMAPIKey         string
	LegacyCompletions bool

	// Fetch politeness and bounds
	UserAgent         string
	FetchConcurrency  int
	RunTimeout        time.Duration
	AllowPrivateHosts bool

	// Outputs. Empty OutputPath keeps the answer on stdout only. TracePath
	// empty derives a sidecar next to OutputPath when one is written.
	OutputPath    string
	OutputPDFPath string
	TracePath     string

	// ArchivePath enables the SQLite run history when non-empty.
	ArchivePath string

	// Cache
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheMaxBytes    int64
	CacheMaxCount    int
	CacheClear       bool
	CacheStrictPerms bool

	// Behavior
	SkipVerify bool
	DryRun     bool
	Verbose    bool
}
