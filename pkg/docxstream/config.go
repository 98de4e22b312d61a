package docxstream

import (
	"errors"
	"os"
	"strconv"
	"sync"
)

// Config contains all configuration options for a generation pass
type Config struct {
	// DPI converts image pixels to EMU. Must be positive.
	DPI float64
	// MaxImageEMU caps the larger side of an embedded image (1800000 = 5cm).
	MaxImageEMU float64
	// DefaultImageWidth and DefaultImageHeight are used, in EMU, when an
	// image's pixel size cannot be read.
	DefaultImageWidth  float64
	DefaultImageHeight float64
	// LogLevel controls the verbosity of logging (debug, info, warn, error, off)
	LogLevel string
	// TempDir holds the buffered document body. Empty means os.TempDir().
	TempDir string
}

const (
	defaultDPI            = 96
	defaultMaxImageEMU    = 1800000
	defaultImageWidthEMU  = 720000
	defaultImageHeightEMU = 900000
	defaultLogLevel       = "info"
	envPrefix             = "DOCXSTREAM_"
)

var (
	globalConfig      *Config
	globalConfigMutex sync.RWMutex
	configOnce        sync.Once
)

func init() {
	// Initialize global config from environment on first use
	configOnce.Do(func() {
		globalConfig = ConfigFromEnvironment()
	})
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		DPI:                defaultDPI,
		MaxImageEMU:        defaultMaxImageEMU,
		DefaultImageWidth:  defaultImageWidthEMU,
		DefaultImageHeight: defaultImageHeightEMU,
		LogLevel:           defaultLogLevel,
	}
}

// ConfigFromEnvironment creates a configuration from environment variables
func ConfigFromEnvironment() *Config {
	config := DefaultConfig()

	// DOCXSTREAM_DPI
	if val := os.Getenv(envPrefix + "DPI"); val != "" {
		if dpi, err := strconv.ParseFloat(val, 64); err == nil {
			config.DPI = dpi
		}
	}

	// DOCXSTREAM_MAX_IMAGE_EMU
	if val := os.Getenv(envPrefix + "MAX_IMAGE_EMU"); val != "" {
		if emu, err := strconv.ParseFloat(val, 64); err == nil {
			config.MaxImageEMU = emu
		}
	}

	// DOCXSTREAM_LOG_LEVEL
	if val := os.Getenv(envPrefix + "LOG_LEVEL"); val != "" {
		config.LogLevel = val
	}

	// DOCXSTREAM_TEMP_DIR
	if val := os.Getenv(envPrefix + "TEMP_DIR"); val != "" {
		config.TempDir = val
	}

	return config
}

// NewConfigWithDefaults creates a new configuration with defaults applied to unset fields
func NewConfigWithDefaults(overrides *Config) *Config {
	defaults := DefaultConfig()

	if overrides == nil {
		return defaults
	}

	config := *overrides

	if config.DPI == 0 {
		config.DPI = defaults.DPI
	}
	if config.MaxImageEMU == 0 {
		config.MaxImageEMU = defaults.MaxImageEMU
	}
	if config.DefaultImageWidth == 0 {
		config.DefaultImageWidth = defaults.DefaultImageWidth
	}
	if config.DefaultImageHeight == 0 {
		config.DefaultImageHeight = defaults.DefaultImageHeight
	}
	if config.LogLevel == "" {
		config.LogLevel = defaults.LogLevel
	}

	return &config
}

// Validate checks if the configuration is valid. Every problem is reported,
// not just the first.
func (c *Config) Validate() error {
	errs := NewMultiError()

	if c.DPI <= 0 {
		errs.Add(errors.New("dpi must be positive"))
	}

	if c.MaxImageEMU <= 0 {
		errs.Add(errors.New("max image size must be positive"))
	}

	if c.DefaultImageWidth <= 0 || c.DefaultImageHeight <= 0 {
		errs.Add(errors.New("default image size must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"off":   true,
	}

	if !validLogLevels[c.LogLevel] {
		errs.Add(errors.New("invalid log level: " + c.LogLevel))
	}

	return errs.Err()
}

// GetGlobalConfig returns the global configuration
func GetGlobalConfig() *Config {
	globalConfigMutex.RLock()
	defer globalConfigMutex.RUnlock()

	if globalConfig == nil {
		return DefaultConfig()
	}

	// Return a copy to prevent modification
	configCopy := *globalConfig
	return &configCopy
}

// SetGlobalConfig sets the global configuration
func SetGlobalConfig(config *Config) {
	globalConfigMutex.Lock()
	globalConfig = config
	globalConfigMutex.Unlock()

	// Update logger based on new config (outside the lock to avoid deadlock)
	UpdateLoggerFromConfig()
}
