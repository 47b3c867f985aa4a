package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all environment overrides.
const EnvPrefix = "CALLINTEL_"

// Analysis holds the named numeric parameters used by the analysis stages.
type Analysis struct {
	WordsPerMinute         float64 `yaml:"words_per_minute"`
	InterruptionShortWords int     `yaml:"interruption_short_words"`
	InterruptionMaxGapSec  float64 `yaml:"interruption_max_gap_sec"`
	SilenceThresholdSec    float64 `yaml:"silence_threshold_sec"`
	EmotionSampleCap       int     `yaml:"emotion_sample_cap"`
	DominanceShare         float64 `yaml:"dominance_share"`
	InfluenceDensityScale  float64 `yaml:"influence_density_scale"`
	StrengthThreshold      float64 `yaml:"strength_threshold"`
	ImprovementThreshold   float64 `yaml:"improvement_threshold"`
	HandlingWindow         int     `yaml:"handling_window"`
	KeyMomentMinImpact     int     `yaml:"key_moment_min_impact"`
	MaxKeyMoments          int     `yaml:"max_key_moments"`
}

type Config struct {
	DBDriver      string `yaml:"db_driver"`
	DBDSN         string `yaml:"db_dsn"`
	RulesPath     string `yaml:"rules_path"`
	ListenAddr    string `yaml:"listen_addr"`
	AMQPURL       string `yaml:"amqp_url"`
	AMQPQueue     string `yaml:"amqp_queue"`
	TranscribeURL string `yaml:"transcribe_url"`
	TranscriptDir string `yaml:"transcript_dir"`
	Workers       int    `yaml:"workers"`
	// CoachingThreshold is on the 0-100 quality scale.
	CoachingThreshold float64  `yaml:"coaching_threshold"`
	RetryMaxElapsed   string   `yaml:"retry_max_elapsed"`
	Analysis          Analysis `yaml:"analysis"`
}

func DefaultAnalysis() Analysis {
	return Analysis{
		WordsPerMinute:         150,
		InterruptionShortWords: 3,
		InterruptionMaxGapSec:  1,
		SilenceThresholdSec:    3,
		EmotionSampleCap:       20,
		DominanceShare:         0.6,
		InfluenceDensityScale:  5,
		StrengthThreshold:      80,
		ImprovementThreshold:   60,
		HandlingWindow:         2,
		KeyMomentMinImpact:     8,
		MaxKeyMoments:          10,
	}
}

func defaults() Config {
	return Config{
		DBDriver:          "sqlite",
		DBDSN:             "data/call-intel.db",
		ListenAddr:        ":8080",
		AMQPQueue:         "recording-completed",
		Workers:           4,
		CoachingThreshold: 70,
		RetryMaxElapsed:   "15s",
		Analysis:          DefaultAnalysis(),
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides and validates the result. It returns
// the config, any validation warnings, and an error if the file exists
// but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// ParsedRetryMaxElapsed falls back to 15s if the value is invalid.
func (c *Config) ParsedRetryMaxElapsed() time.Duration {
	d, err := time.ParseDuration(c.RetryMaxElapsed)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

func applyEnvOverrides(cfg *Config) {
	str := map[string]*string{
		"DB_DRIVER":         &cfg.DBDriver,
		"DB_DSN":            &cfg.DBDSN,
		"RULES_PATH":        &cfg.RulesPath,
		"LISTEN_ADDR":       &cfg.ListenAddr,
		"AMQP_URL":          &cfg.AMQPURL,
		"AMQP_QUEUE":        &cfg.AMQPQueue,
		"TRANSCRIBE_URL":    &cfg.TranscribeURL,
		"TRANSCRIPT_DIR":    &cfg.TranscriptDir,
		"RETRY_MAX_ELAPSED": &cfg.RetryMaxElapsed,
	}
	for key, dst := range str {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	if v := os.Getenv(EnvPrefix + "WORKERS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.Workers = n
		}
	}
	if v := os.Getenv(EnvPrefix + "COACHING_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			cfg.CoachingThreshold = f
		}
	}
	floats := map[string]*float64{
		"WORDS_PER_MINUTE":         &cfg.Analysis.WordsPerMinute,
		"INTERRUPTION_MAX_GAP_SEC": &cfg.Analysis.InterruptionMaxGapSec,
		"SILENCE_THRESHOLD_SEC":    &cfg.Analysis.SilenceThresholdSec,
		"DOMINANCE_SHARE":          &cfg.Analysis.DominanceShare,
		"INFLUENCE_DENSITY_SCALE":  &cfg.Analysis.InfluenceDensityScale,
		"STRENGTH_THRESHOLD":       &cfg.Analysis.StrengthThreshold,
		"IMPROVEMENT_THRESHOLD":    &cfg.Analysis.ImprovementThreshold,
	}
	for key, dst := range floats {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				*dst = f
			}
		}
	}
	ints := map[string]*int{
		"INTERRUPTION_SHORT_WORDS": &cfg.Analysis.InterruptionShortWords,
		"EMOTION_SAMPLE_CAP":       &cfg.Analysis.EmotionSampleCap,
		"HANDLING_WINDOW":          &cfg.Analysis.HandlingWindow,
		"KEY_MOMENT_MIN_IMPACT":    &cfg.Analysis.KeyMomentMinImpact,
		"MAX_KEY_MOMENTS":          &cfg.Analysis.MaxKeyMoments,
	}
	for key, dst := range ints {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}
}

func validate(cfg *Config) []string {
	var warnings []string

	switch cfg.DBDriver {
	case "sqlite", "postgres":
	default:
		warnings = append(warnings, fmt.Sprintf("Unknown db_driver %q, using sqlite.", cfg.DBDriver))
		cfg.DBDriver = "sqlite"
	}
	if cfg.Workers < 1 {
		warnings = append(warnings, fmt.Sprintf("Invalid workers %d, using 4.", cfg.Workers))
		cfg.Workers = 4
	}

	// Older deployments configured the threshold as a 0-1 fraction.
	switch t := cfg.CoachingThreshold; {
	case t > 0 && t <= 1:
		cfg.CoachingThreshold = t * 100
		warnings = append(warnings, fmt.Sprintf("coaching_threshold %.2f looks like a fraction, using %.0f on the 0-100 scale.", t, cfg.CoachingThreshold))
	case t <= 0 || t > 100:
		warnings = append(warnings, fmt.Sprintf("coaching_threshold %.2f out of range, using 70.", t))
		cfg.CoachingThreshold = 70
	}

	if d, err := time.ParseDuration(cfg.RetryMaxElapsed); err != nil || d <= 0 {
		warnings = append(warnings, fmt.Sprintf("Invalid retry_max_elapsed %q, using 15s.", cfg.RetryMaxElapsed))
		cfg.RetryMaxElapsed = "15s"
	}
	if cfg.AMQPURL == "" {
		warnings = append(warnings, "AMQP URL not configured, event intake is disabled. Set "+EnvPrefix+"AMQP_URL.")
	}

	warnings = append(warnings, validateAnalysis(&cfg.Analysis)...)
	return warnings
}

func validateAnalysis(a *Analysis) []string {
	var warnings []string
	def := DefaultAnalysis()

	fixFloat := func(name string, v *float64, d float64) {
		if *v <= 0 {
			warnings = append(warnings, fmt.Sprintf("analysis.%s must be positive, using %g.", name, d))
			*v = d
		}
	}
	fixInt := func(name string, v *int, d int) {
		if *v <= 0 {
			warnings = append(warnings, fmt.Sprintf("analysis.%s must be positive, using %d.", name, d))
			*v = d
		}
	}

	fixFloat("words_per_minute", &a.WordsPerMinute, def.WordsPerMinute)
	fixInt("interruption_short_words", &a.InterruptionShortWords, def.InterruptionShortWords)
	fixFloat("interruption_max_gap_sec", &a.InterruptionMaxGapSec, def.InterruptionMaxGapSec)
	fixFloat("silence_threshold_sec", &a.SilenceThresholdSec, def.SilenceThresholdSec)
	fixInt("emotion_sample_cap", &a.EmotionSampleCap, def.EmotionSampleCap)
	fixFloat("influence_density_scale", &a.InfluenceDensityScale, def.InfluenceDensityScale)
	fixInt("handling_window", &a.HandlingWindow, def.HandlingWindow)
	fixInt("key_moment_min_impact", &a.KeyMomentMinImpact, def.KeyMomentMinImpact)
	fixInt("max_key_moments", &a.MaxKeyMoments, def.MaxKeyMoments)

	if a.DominanceShare <= 0.5 || a.DominanceShare >= 1 {
		warnings = append(warnings, fmt.Sprintf("analysis.dominance_share %.2f must be in (0.5,1), using %.2f.", a.DominanceShare, def.DominanceShare))
		a.DominanceShare = def.DominanceShare
	}
	if a.ImprovementThreshold <= 0 || a.StrengthThreshold > 100 || a.ImprovementThreshold >= a.StrengthThreshold {
		warnings = append(warnings, "analysis strength/improvement thresholds invalid, using 80/60.")
		a.StrengthThreshold = def.StrengthThreshold
		a.ImprovementThreshold = def.ImprovementThreshold
	}
	return warnings
}
