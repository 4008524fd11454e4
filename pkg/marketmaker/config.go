package marketmaker

import (
	"fmt"
	"time"
)

// Config holds all configuration for the market maker
type Config struct {
	// Market making parameters
	NumLevels         int
	BaseSpreadPercent float64
	PriceStepPercent  float64
	OrderSize         int64
	UpdateInterval    time.Duration

	// Tick is the price grid quotes are rounded to
	Tick float64
	// FallbackPrice is quoted around while the book has no price at all
	FallbackPrice float64
}

// DefaultConfig returns a three-level market maker quoting every second
func DefaultConfig() *Config {
	return &Config{
		NumLevels:         3,
		BaseSpreadPercent: 1,
		PriceStepPercent:  0.5,
		OrderSize:         10,
		UpdateInterval:    time.Second,
		Tick:              0.5,
		FallbackPrice:     100,
	}
}

func validateConfig(cfg *Config) error {
	if cfg.NumLevels <= 0 {
		return fmt.Errorf("NumLevels must be positive")
	}
	if cfg.BaseSpreadPercent <= 0 {
		return fmt.Errorf("BaseSpreadPercent must be positive")
	}
	if cfg.PriceStepPercent <= 0 {
		return fmt.Errorf("PriceStepPercent must be positive")
	}
	if cfg.OrderSize <= 0 {
		return fmt.Errorf("OrderSize must be positive")
	}
	if cfg.UpdateInterval <= 0 {
		return fmt.Errorf("UpdateInterval must be positive")
	}
	if cfg.Tick <= 0 {
		return fmt.Errorf("Tick must be positive")
	}
	return nil
}
