package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: NYEIN_[SECTION]_[KEY] (e.g., NYEIN_BUNDLE_OUT_DIR).
func ApplyEnvOverrides(cfg *Config) {
	// Bundle
	setEnvString(&cfg.Bundle.OutDir, "NYEIN_BUNDLE_OUT_DIR")
	setEnvString(&cfg.Bundle.TSConfig, "NYEIN_BUNDLE_TSCONFIG")
	setEnvBool(&cfg.Bundle.RenameDuplicates, "NYEIN_BUNDLE_RENAME_DUPLICATES")
	setEnvBoolPtr(&cfg.Bundle.BannerEnabled, "NYEIN_BUNDLE_BANNER_ENABLED")
	setEnvBoolPtr(&cfg.Bundle.TypeCheck, "NYEIN_BUNDLE_TYPE_CHECK")

	// Compiler
	setEnvString(&cfg.Compiler.Command, "NYEIN_COMPILER_COMMAND")
	setEnvDuration(&cfg.Compiler.Timeout, "NYEIN_COMPILER_TIMEOUT")

	// Npm
	setEnvString(&cfg.Npm.OutDir, "NYEIN_NPM_OUT_DIR")
	setEnvInt(&cfg.Npm.Concurrency, "NYEIN_NPM_CONCURRENCY")

	// History
	setEnvBool(&cfg.History.Enabled, "NYEIN_HISTORY_ENABLED")
	setEnvString(&cfg.History.Path, "NYEIN_HISTORY_PATH")

	// Observability
	setEnvString(&cfg.Observability.MetricsAddr, "NYEIN_OBSERVABILITY_METRICS_ADDR")
	setEnvBool(&cfg.Observability.EnableTracing, "NYEIN_OBSERVABILITY_ENABLE_TRACING")
	setEnvString(&cfg.Observability.OTLPEndpoint, "NYEIN_OBSERVABILITY_OTLP_ENDPOINT")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvBoolPtr(target **bool, key string) {
	var b bool
	if _, ok := os.LookupEnv(key); !ok {
		return
	}
	if *target != nil {
		b = **target
	}
	setEnvBool(&b, key)
	*target = &b
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
