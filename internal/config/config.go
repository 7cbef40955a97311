package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/tabsight/internal/pipeline"
)

// Global configuration structure.
type Global struct {
	Seed                 int64   `mapstructure:"seed" yaml:"seed"`
	SampleSize           int     `mapstructure:"sample_size" yaml:"sample_size"`
	CorrelationThreshold float64 `mapstructure:"correlation_threshold" yaml:"correlation_threshold"`
	Workers              int     `mapstructure:"workers" yaml:"workers"`
	MaxRows              int     `mapstructure:"max_rows" yaml:"max_rows"`

	// Anomaly ensemble
	ZScoreThreshold      float64 `mapstructure:"zscore_threshold" yaml:"zscore_threshold"`
	AnomalyContamination float64 `mapstructure:"anomaly_contamination" yaml:"anomaly_contamination"`
	AnomalyEstimators    int     `mapstructure:"anomaly_estimators" yaml:"anomaly_estimators"`

	// Insight ranking
	InsightTopK           int     `mapstructure:"insight_top_k" yaml:"insight_top_k"`
	InsightRanking        string  `mapstructure:"insight_ranking" yaml:"insight_ranking"`
	SuppressLowConfidence bool    `mapstructure:"suppress_low_confidence" yaml:"suppress_low_confidence"`
	MinConfidence         float64 `mapstructure:"min_confidence" yaml:"min_confidence"`
	NarrativeSeed         int64   `mapstructure:"narrative_seed" yaml:"narrative_seed"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// HTTP server
	ServeAddr       string `mapstructure:"serve_addr" yaml:"serve_addr"`
	ServeTimeoutSec int    `mapstructure:"serve_timeout_sec" yaml:"serve_timeout_sec"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
}

// Keys lists every configuration key in display order.
var Keys = []string{
	"seed", "sample_size", "correlation_threshold", "workers", "max_rows",
	"zscore_threshold", "anomaly_contamination", "anomaly_estimators",
	"insight_top_k", "insight_ranking", "suppress_low_confidence", "min_confidence", "narrative_seed",
	"log_level", "serve_addr", "serve_timeout_sec", "max_upload_mb",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("seed", 42)
	v.SetDefault("sample_size", 1000)
	v.SetDefault("correlation_threshold", 0.7)
	v.SetDefault("workers", 0)
	v.SetDefault("max_rows", 0)
	v.SetDefault("zscore_threshold", 3.0)
	v.SetDefault("anomaly_contamination", 0.1)
	v.SetDefault("anomaly_estimators", 100)
	v.SetDefault("insight_top_k", 0)
	v.SetDefault("insight_ranking", "confidence")
	v.SetDefault("suppress_low_confidence", false)
	v.SetDefault("min_confidence", 0.5)
	v.SetDefault("narrative_seed", 42)
	v.SetDefault("log_level", "warn")
	v.SetDefault("serve_addr", "127.0.0.1:8080")
	v.SetDefault("serve_timeout_sec", 60)
	v.SetDefault("max_upload_mb", 32)
}

// Default returns the built-in configuration without reading files or env.
func Default() *Global {
	v := viper.New()
	setDefaults(v)
	var c Global
	_ = v.Unmarshal(&c)
	return &c
}

func defaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".tabsight", "config.yaml"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.tabsight/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		p, err := defaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (applied by callers) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("TABSIGHT")
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		path, err := defaultPath()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(filepath.Dir(path))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		// a missing file is fine; a broken one is not
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects values no stage can run with.
func (c *Global) Validate() error {
	switch {
	case c.SampleSize <= 0:
		return fmt.Errorf("invalid sample_size: %d (must be > 0)", c.SampleSize)
	case c.CorrelationThreshold < 0 || c.CorrelationThreshold > 1:
		return fmt.Errorf("invalid correlation_threshold: %v (use 0..1)", c.CorrelationThreshold)
	case c.ZScoreThreshold <= 0:
		return fmt.Errorf("invalid zscore_threshold: %v (must be > 0)", c.ZScoreThreshold)
	case c.AnomalyContamination <= 0 || c.AnomalyContamination >= 0.5:
		return fmt.Errorf("invalid anomaly_contamination: %v (use 0..0.5 exclusive)", c.AnomalyContamination)
	case c.AnomalyEstimators <= 0:
		return fmt.Errorf("invalid anomaly_estimators: %d (must be > 0)", c.AnomalyEstimators)
	case c.InsightTopK < 0:
		return fmt.Errorf("invalid insight_top_k: %d (must be >= 0)", c.InsightTopK)
	case c.InsightRanking != "confidence" && c.InsightRanking != "priority":
		return fmt.Errorf("invalid insight_ranking: %s (use confidence or priority)", c.InsightRanking)
	case c.MinConfidence < 0 || c.MinConfidence > 1:
		return fmt.Errorf("invalid min_confidence: %v (use 0..1)", c.MinConfidence)
	case c.MaxRows < 0:
		return fmt.Errorf("invalid max_rows: %d (must be >= 0)", c.MaxRows)
	}
	return nil
}

// Set parses val for key and stores it. The result is validated.
func (c *Global) Set(key, val string) error {
	val = strings.TrimSpace(val)
	atoi := func() (int, error) { return strconv.Atoi(val) }
	atof := func() (float64, error) { return strconv.ParseFloat(val, 64) }
	next := *c
	var err error
	switch key {
	case "seed":
		next.Seed, err = strconv.ParseInt(val, 10, 64)
	case "narrative_seed":
		next.NarrativeSeed, err = strconv.ParseInt(val, 10, 64)
	case "sample_size":
		next.SampleSize, err = atoi()
	case "workers":
		next.Workers, err = atoi()
	case "max_rows":
		next.MaxRows, err = atoi()
	case "anomaly_estimators":
		next.AnomalyEstimators, err = atoi()
	case "insight_top_k":
		next.InsightTopK, err = atoi()
	case "serve_timeout_sec":
		next.ServeTimeoutSec, err = atoi()
	case "max_upload_mb":
		next.MaxUploadMB, err = atoi()
	case "correlation_threshold":
		next.CorrelationThreshold, err = atof()
	case "zscore_threshold":
		next.ZScoreThreshold, err = atof()
	case "anomaly_contamination":
		next.AnomalyContamination, err = atof()
	case "min_confidence":
		next.MinConfidence, err = atof()
	case "suppress_low_confidence":
		next.SuppressLowConfidence, err = strconv.ParseBool(val)
	case "insight_ranking":
		next.InsightRanking = strings.ToLower(val)
	case "log_level":
		next.LogLevel = strings.ToLower(val)
	case "serve_addr":
		next.ServeAddr = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %v", key, val)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

// Get returns the display form of key.
func (c *Global) Get(key string) (string, error) {
	switch key {
	case "seed":
		return strconv.FormatInt(c.Seed, 10), nil
	case "narrative_seed":
		return strconv.FormatInt(c.NarrativeSeed, 10), nil
	case "sample_size":
		return strconv.Itoa(c.SampleSize), nil
	case "workers":
		return strconv.Itoa(c.Workers), nil
	case "max_rows":
		return strconv.Itoa(c.MaxRows), nil
	case "anomaly_estimators":
		return strconv.Itoa(c.AnomalyEstimators), nil
	case "insight_top_k":
		return strconv.Itoa(c.InsightTopK), nil
	case "serve_timeout_sec":
		return strconv.Itoa(c.ServeTimeoutSec), nil
	case "max_upload_mb":
		return strconv.Itoa(c.MaxUploadMB), nil
	case "correlation_threshold":
		return strconv.FormatFloat(c.CorrelationThreshold, 'g', -1, 64), nil
	case "zscore_threshold":
		return strconv.FormatFloat(c.ZScoreThreshold, 'g', -1, 64), nil
	case "anomaly_contamination":
		return strconv.FormatFloat(c.AnomalyContamination, 'g', -1, 64), nil
	case "min_confidence":
		return strconv.FormatFloat(c.MinConfidence, 'g', -1, 64), nil
	case "suppress_low_confidence":
		return strconv.FormatBool(c.SuppressLowConfidence), nil
	case "insight_ranking":
		return c.InsightRanking, nil
	case "log_level":
		return c.LogLevel, nil
	case "serve_addr":
		return c.ServeAddr, nil
	}
	return "", fmt.Errorf("unknown key: %s", key)
}

// Pipeline maps the configuration onto a pipeline run.
func (c *Global) Pipeline() pipeline.Config {
	pc := pipeline.DefaultConfig()
	pc.Seed = c.Seed
	pc.SampleSize = c.SampleSize
	pc.CorrelationThreshold = c.CorrelationThreshold
	pc.Workers = c.Workers
	pc.Anomaly.ZThreshold = c.ZScoreThreshold
	pc.Anomaly.Contamination = c.AnomalyContamination
	pc.Anomaly.Estimators = c.AnomalyEstimators
	pc.Anomaly.Seed = c.Seed
	pc.Insight.Ranking = c.InsightRanking
	pc.Insight.TopK = c.InsightTopK
	pc.Insight.SuppressLowConfidence = c.SuppressLowConfidence
	pc.Insight.MinConfidence = c.MinConfidence
	pc.Insight.NarrativeSeed = c.NarrativeSeed
	return pc
}
