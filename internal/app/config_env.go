package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvToConfig populates unset fields of cfg from environment variables.
// Explicit cfg values take precedence over env.
func ApplyEnvToConfig(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.LLMBaseURL == "" {
		cfg.LLMBaseURL = os.Getenv("LLM_BASE_URL")
	}
	if cfg.Model == "" {
		cfg.Model = os.Getenv("LLM_MODEL")
	}
	if cfg.LLMAPIKey == "" {
		cfg.LLMAPIKey = os.Getenv("LLM_API_KEY")
	}

	if cfg.SearxURL == "" {
		// Both spellings are in the wild; SEARX_URL wins when set.
		v := os.Getenv("SEARX_URL")
		if v == "" {
			v = os.Getenv("SEARXNG_URL")
		}
		cfg.SearxURL = v
	}
	if cfg.SearxKey == "" {
		v := os.Getenv("SEARX_KEY")
		if v == "" {
			v = os.Getenv("SEARXNG_KEY")
		}
		cfg.SearxKey = v
	}
	if cfg.BraveKey == "" {
		cfg.BraveKey = os.Getenv("BRAVE_KEY")
	}

	if cfg.CacheDir == "" {
		cfg.CacheDir = os.Getenv("CACHE_DIR")
	}
	if cfg.ArchivePath == "" {
		cfg.ArchivePath = os.Getenv("ARCHIVE_DB")
	}
	if cfg.Lang == "" {
		cfg.Lang = os.Getenv("LANGUAGE")
	}
	if cfg.Style == "" {
		cfg.Style = os.Getenv("ANSWER_STYLE")
	}

	// SOURCE_CAPS can be "<max>" or "<max>,<perDomain>"
	if cfg.MaxSources == 0 || cfg.PerDomainCap == 0 {
		if caps := strings.TrimSpace(os.Getenv("SOURCE_CAPS")); caps != "" {
			parts := strings.Split(caps, ",")
			if len(parts) >= 1 && cfg.MaxSources == 0 {
				if n, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil && n > 0 {
					cfg.MaxSources = n
				}
			}
			if len(parts) >= 2 && cfg.PerDomainCap == 0 {
				if n, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil && n > 0 {
					cfg.PerDomainCap = n
				}
			}
		}
	}

	if cfg.TokenBudget == 0 {
		if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv("TOKEN_BUDGET"))); err == nil && n > 0 {
			cfg.TokenBudget = n
		}
	}

	if cfg.CacheMaxAge == 0 {
		if s := os.Getenv("CACHE_MAX_AGE"); s != "" {
			if d, err := time.ParseDuration(s); err == nil {
				cfg.CacheMaxAge = d
			}
		}
	}

	setBool := func(dst *bool, envKey string) {
		if *dst {
			return
		}
		switch strings.ToLower(strings.TrimSpace(os.Getenv(envKey))) {
		case "1", "true", "yes", "on":
			*dst = true
		}
	}
	setBool(&cfg.DryRun, "DRY_RUN")
	setBool(&cfg.Verbose, "VERBOSE")
	setBool(&cfg.CacheClear, "CACHE_CLEAR")
	setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")
	setBool(&cfg.SkipVerify, "SKIP_VERIFY")
	setBool(&cfg.LegacyCompletions, "LLM_LEGACY_COMPLETIONS")
}

// ApplyEnvOverrides forcefully overrides cfg fields from environment variables
// when set. Used to let env take precedence over a config file while flags
// stay highest precedence.
func ApplyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLMBaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLMAPIKey = v
	}

	if v := os.Getenv("SEARX_URL"); v != "" {
		cfg.SearxURL = v
	}
	if v := os.Getenv("SEARXNG_URL"); v != "" {
		cfg.SearxURL = v
	}
	if v := os.Getenv("SEARX_KEY"); v != "" {
		cfg.SearxKey = v
	}
	if v := os.Getenv("SEARXNG_KEY"); v != "" {
		cfg.SearxKey = v
	}
	if v := os.Getenv("BRAVE_KEY"); v != "" {
		cfg.BraveKey = v
	}

	if v := os.Getenv("CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("ARCHIVE_DB"); v != "" {
		cfg.ArchivePath = v
	}
	if v := os.Getenv("LANGUAGE"); v != "" {
		cfg.Lang = v
	}
	if v := os.Getenv("ANSWER_STYLE"); v != "" {
		cfg.Style = v
	}

	if v := strings.TrimSpace(os.Getenv("SOURCE_CAPS")); v != "" {
		parts := strings.Split(v, ",")
		if len(parts) >= 1 {
			if n, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil && n > 0 {
				cfg.MaxSources = n
			}
		}
		if len(parts) >= 2 {
			if n, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil && n > 0 {
				cfg.PerDomainCap = n
			}
		}
	}

	if s := strings.TrimSpace(os.Getenv("TOKEN_BUDGET")); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			cfg.TokenBudget = n
		}
	}

	if s := os.Getenv("CACHE_MAX_AGE"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			cfg.CacheMaxAge = d
		}
	}

	setBool := func(dst *bool, envKey string) {
		switch strings.ToLower(strings.TrimSpace(os.Getenv(envKey))) {
		case "1", "true", "yes", "on":
			*dst = true
		case "0", "false", "no", "off":
			*dst = false
		}
	}
	setBool(&cfg.DryRun, "DRY_RUN")
	setBool(&cfg.Verbose, "VERBOSE")
	setBool(&cfg.CacheClear, "CACHE_CLEAR")
	setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")
	setBool(&cfg.SkipVerify, "SKIP_VERIFY")
	setBool(&cfg.LegacyCompletions, "LLM_LEGACY_COMPLETIONS")
}
