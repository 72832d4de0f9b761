package browser

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
)

// Browser context defaults.
const (
	UserAgent      = "AgentWeb/0.2 (ai-agent-browser)"
	ViewportWidth  = 1280
	ViewportHeight = 900

	DefaultTimeout   = 30 * time.Second
	DefaultWaitUntil = "networkidle"

	// textWaitTimeout bounds the post-navigation wait for visible text.
	textWaitTimeout = 5 * time.Second
	// textWaitMinChars is the visible-text size that ends the wait early.
	textWaitMinChars = 200
)

// Config holds the browser renderer configuration.
type Config struct {
	// Concurrency is "auto" or a positive integer string. It bounds how many
	// tabs render at once.
	Concurrency string
}

// DefaultConfig returns the standard browser configuration.
func DefaultConfig() *Config {
	return &Config{Concurrency: "auto"}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Concurrency != "auto" {
		n, err := strconv.Atoi(c.Concurrency)
		if err != nil {
			return fmt.Errorf("concurrency must be 'auto' or a valid integer")
		}
		if n <= 0 {
			return fmt.Errorf("concurrency must be positive")
		}
	}
	return nil
}

// CalculateConcurrency resolves the tab concurrency limit. "auto" sizes from
// system RAM: (total - 2GB reserved) / 500MB per rendering tab.
func (c *Config) CalculateConcurrency() int {
	if c.Concurrency != "auto" {
		if n, err := strconv.Atoi(c.Concurrency); err == nil && n > 0 {
			return n
		}
	}
	return autoConcurrency()
}

func autoConcurrency() int {
	var totalRAMBytes int64
	if v, err := mem.VirtualMemory(); err != nil {
		totalRAMBytes = 8 * 1024 * 1024 * 1024
	} else {
		totalRAMBytes = int64(v.Total)
	}

	reservedBytes := int64(2 * 1024 * 1024 * 1024)
	perTabBytes := int64(500 * 1024 * 1024)

	n := int((totalRAMBytes - reservedBytes) / perTabBytes)
	if n < 2 {
		n = 2
	}
	if n > 16 {
		n = 16
	}
	return n
}

// Options controls one browser render call.
type Options struct {
	Timeout    time.Duration
	WaitUntil  string
	BlockMedia bool
}

// DefaultOptions returns the standard per-call options.
func DefaultOptions() Options {
	return Options{
		Timeout:    DefaultTimeout,
		WaitUntil:  DefaultWaitUntil,
		BlockMedia: true,
	}
}
