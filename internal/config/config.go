// Package config reads the service settings from the environment. A .env
// file in the working directory is loaded first.
//
// Expected outputs:
//   - every setting has a default, so an empty environment is valid
//   - malformed values are reported by Load, never silently replaced
//
// Usage:
//
//	cfg, err := config.Load()
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	Port            int
	UploadDir       string
	OutputDir       string
	SessionTTL      time.Duration
	CleanupInterval time.Duration
	MaxUploadBytes  int64
	MaxImageBytes   int64
	CanvasMaxWidth  float64
	CanvasMaxHeight float64
	RenderYield     time.Duration
	SignatureScale  float64
	TextSize        int
	TextWidth       float64
	FrontendURL     string
}

func Default() Config {
	return Config{
		Port:            8080,
		UploadDir:       "uploads",
		OutputDir:       "output",
		SessionTTL:      30 * time.Minute,
		CleanupInterval: 10 * time.Minute,
		MaxUploadBytes:  50 << 20,
		MaxImageBytes:   5 << 20,
		CanvasMaxWidth:  1600,
		CanvasMaxHeight: 2000,
		RenderYield:     20 * time.Millisecond,
		SignatureScale:  0.18,
		TextSize:        14,
		TextWidth:       140,
	}
}

// Load returns the defaults overridden by any variables that are set.
func Load() (Config, error) {
	return FromLookup(os.LookupEnv)
}

// FromLookup is Load with a custom variable source.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	p := parser{lookup: lookup}

	p.int("PORT", &cfg.Port)
	p.str("UPLOAD_DIR", &cfg.UploadDir)
	p.str("OUTPUT_DIR", &cfg.OutputDir)
	p.duration("SESSION_TTL", &cfg.SessionTTL)
	p.duration("CLEANUP_INTERVAL", &cfg.CleanupInterval)
	p.megabytes("MAX_UPLOAD_MB", &cfg.MaxUploadBytes)
	p.megabytes("MAX_SIGNATURE_MB", &cfg.MaxImageBytes)
	p.float("CANVAS_MAX_W", &cfg.CanvasMaxWidth)
	p.float("CANVAS_MAX_H", &cfg.CanvasMaxHeight)
	p.duration("RENDER_YIELD", &cfg.RenderYield)
	p.float("SIGNATURE_SCALE", &cfg.SignatureScale)
	p.int("TEXT_SIZE", &cfg.TextSize)
	p.float("TEXT_WIDTH", &cfg.TextWidth)
	p.str("FRONTEND_URL", &cfg.FrontendURL)

	if cfg.SignatureScale <= 0 || cfg.SignatureScale > 1 {
		p.fail("SIGNATURE_SCALE", fmt.Errorf("%v is not in (0, 1]", cfg.SignatureScale))
	}
	if cfg.SessionTTL <= 0 {
		p.fail("SESSION_TTL", errors.New("must be positive"))
	}
	if cfg.CleanupInterval <= 0 {
		p.fail("CLEANUP_INTERVAL", errors.New("must be positive"))
	}
	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type parser struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (p *parser) fail(key string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
}

func (p *parser) get(key string) (string, bool) {
	v, ok := p.lookup(key)
	return v, ok && v != ""
}

func (p *parser) str(key string, dst *string) {
	if v, ok := p.get(key); ok {
		*dst = v
	}
}

func (p *parser) int(key string, dst *int) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		p.fail(key, fmt.Errorf("invalid number %q", v))
		return
	}
	*dst = n
}

func (p *parser) float(key string, dst *float64) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		p.fail(key, fmt.Errorf("invalid number %q", v))
		return
	}
	*dst = f
}

func (p *parser) megabytes(key string, dst *int64) {
	var mb int
	p.int(key, &mb)
	if mb > 0 {
		*dst = int64(mb) << 20
	}
}

func (p *parser) duration(key string, dst *time.Duration) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, err)
		return
	}
	*dst = d
}

// Addr is the listen address for the configured port.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
