package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/genricoloni/reelkeeper/internal/domain"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	defaultDBPath             = "~/.local/state/reelkeeper/states.db"
	defaultReleaseAction      = domain.ReleasePause
	defaultDebounce           = 250 * time.Millisecond
	defaultCheckpointInterval = 5 * time.Second
)

// Values holds every tunable. Zero values are replaced by defaults; a
// negative Debounce or CheckpointInterval disables the feature.
type Values struct {
	ReleaseAction      domain.ReleaseAction `yaml:"release_action"`
	ClearOnUnregister  bool                 `yaml:"clear_on_unregister"`
	StoreCapacity      int                  `yaml:"store_capacity"`
	MinScore           float64              `yaml:"min_score"`
	Debounce           time.Duration        `yaml:"debounce"`
	CheckpointInterval time.Duration        `yaml:"checkpoint_interval"`
	DBPath             string               `yaml:"db_path"`
	PlayerPriority     []string             `yaml:"player_priority"`
}

// AppConfig holds application configuration
type AppConfig struct {
	logger *zap.Logger
	values Values
}

// NewAppConfig creates a new application configuration instance.
// Values come from the YAML file named by REELKEEPER_CONFIG (optional),
// then REELKEEPER_* environment variables, then defaults.
func NewAppConfig(logger *zap.Logger) (*AppConfig, error) {
	var v Values

	if path := os.Getenv("REELKEEPER_CONFIG"); path != "" {
		data, err := os.ReadFile(expandPath(path))
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		logger.Info("Configuration file read", zap.String("path", path))
	}

	if err := applyEnv(&v); err != nil {
		return nil, err
	}

	cfg := FromValues(logger, v)
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger.Info("Configuration loaded",
		zap.String("releaseAction", string(cfg.values.ReleaseAction)),
		zap.Bool("clearOnUnregister", cfg.values.ClearOnUnregister),
		zap.Int("storeCapacity", cfg.values.StoreCapacity),
		zap.Float64("minScore", cfg.values.MinScore),
		zap.Duration("debounce", cfg.values.Debounce),
		zap.Duration("checkpointInterval", cfg.values.CheckpointInterval),
		zap.String("dbPath", cfg.values.DBPath),
		zap.Strings("playerPriority", cfg.values.PlayerPriority))

	return cfg, nil
}

// FromValues builds a configuration from explicit values, filling defaults
func FromValues(logger *zap.Logger, v Values) *AppConfig {
	if v.ReleaseAction == "" {
		v.ReleaseAction = defaultReleaseAction
	}
	if v.Debounce == 0 {
		v.Debounce = defaultDebounce
	}
	if v.CheckpointInterval == 0 {
		v.CheckpointInterval = defaultCheckpointInterval
	}
	if v.DBPath == "" {
		v.DBPath = defaultDBPath
	}
	v.DBPath = expandPath(v.DBPath)

	return &AppConfig{logger: logger, values: v}
}

func applyEnv(v *Values) error {
	if s := os.Getenv("REELKEEPER_RELEASE_ACTION"); s != "" {
		v.ReleaseAction = domain.ReleaseAction(strings.ToLower(s))
	}
	if s := os.Getenv("REELKEEPER_CLEAR_ON_UNREGISTER"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("invalid REELKEEPER_CLEAR_ON_UNREGISTER: %w", err)
		}
		v.ClearOnUnregister = b
	}
	if s := os.Getenv("REELKEEPER_STORE_CAPACITY"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid REELKEEPER_STORE_CAPACITY: %w", err)
		}
		v.StoreCapacity = n
	}
	if s := os.Getenv("REELKEEPER_MIN_SCORE"); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid REELKEEPER_MIN_SCORE: %w", err)
		}
		v.MinScore = f
	}
	if s := os.Getenv("REELKEEPER_DEBOUNCE"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid REELKEEPER_DEBOUNCE: %w", err)
		}
		v.Debounce = d
	}
	if s := os.Getenv("REELKEEPER_CHECKPOINT_INTERVAL"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid REELKEEPER_CHECKPOINT_INTERVAL: %w", err)
		}
		v.CheckpointInterval = d
	}
	if s := os.Getenv("REELKEEPER_DB_PATH"); s != "" {
		v.DBPath = s
	}
	if s := os.Getenv("REELKEEPER_PLAYER_PRIORITY"); s != "" {
		v.PlayerPriority = strings.Split(s, ",")
		for i := range v.PlayerPriority {
			v.PlayerPriority[i] = strings.TrimSpace(v.PlayerPriority[i])
		}
	}
	return nil
}

func (c *AppConfig) validate() error {
	switch c.values.ReleaseAction {
	case domain.ReleasePause, domain.ReleaseStop:
	default:
		return fmt.Errorf("unknown release action %q (want pause or stop)", c.values.ReleaseAction)
	}
	if c.values.MinScore < 0 || c.values.MinScore > 1 {
		return fmt.Errorf("min score %v out of range [0,1]", c.values.MinScore)
	}
	if c.values.StoreCapacity < 0 {
		return fmt.Errorf("store capacity must not be negative, got %d", c.values.StoreCapacity)
	}
	return nil
}

// expandPath expands environment variables and a leading ~
func expandPath(path string) string {
	path = os.ExpandEnv(path)
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return path
}

// GetReleaseAction returns what to do with a player losing arbitration
func (c *AppConfig) GetReleaseAction() domain.ReleaseAction {
	return c.values.ReleaseAction
}

// GetClearOnUnregister reports whether saved states are dropped on teardown
func (c *AppConfig) GetClearOnUnregister() bool {
	return c.values.ClearOnUnregister
}

// GetStoreCapacity returns the saved state bound, 0 for unbounded
func (c *AppConfig) GetStoreCapacity() int {
	return c.values.StoreCapacity
}

// GetMinScore returns the minimum visibility score to be eligible
func (c *AppConfig) GetMinScore() float64 {
	return c.values.MinScore
}

// GetDebounce returns the window used to collapse candidate updates
func (c *AppConfig) GetDebounce() time.Duration {
	return c.values.Debounce
}

// GetCheckpointInterval returns how often active progress is saved
func (c *AppConfig) GetCheckpointInterval() time.Duration {
	return c.values.CheckpointInterval
}

// GetDBPath returns the path of the state database
func (c *AppConfig) GetDBPath() string {
	return c.values.DBPath
}

// GetPlayerPriority returns MPRIS player names, most preferred first
func (c *AppConfig) GetPlayerPriority() []string {
	return c.values.PlayerPriority
}
