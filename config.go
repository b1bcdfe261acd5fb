package asyncloop

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/strgat/go-asyncloop/core"
)

// Recognized backend identifiers.
const (
	// BackendBuiltin selects the default cooperative scheduler.
	BackendBuiltin = "builtin"

	// BackendRing selects the ring-buffer scheduler. It does not support
	// the process-wide shared loop.
	BackendRing = "ring"
)

// Config is the construction-time configuration surface. It is validated
// eagerly by New; an invalid value fails construction with *core.ConfigError
// and is never retried.
type Config struct {
	// Backend identifies the loop implementation to construct. Empty means
	// builtin; unrecognized values fail construction.
	Backend string `mapstructure:"backend"`

	// UseGlobalLoop reuses the process-wide shared loop instance instead of
	// creating a private one. Ignored with a warning when the selected
	// backend does not support sharing.
	UseGlobalLoop bool `mapstructure:"use_global_loop"`

	// StopTimeout bounds the shutdown drain. The zero value waits
	// indefinitely; see core.StopTimeout.
	StopTimeout core.StopTimeout `mapstructure:"-"`
}

// DefaultConfig returns the configuration used when a key is absent.
func DefaultConfig() Config {
	return Config{Backend: BackendBuiltin}
}

// ParseConfig decodes a flat string-keyed settings map into a Config.
// Booleans accept the usual spellings ("true", "True", "1", ...);
// stop_timeout accepts a duration ("1s", "250ms"), the literal "0"
// (abandon immediately) or ""/"none" (wait indefinitely). Unknown keys are
// ignored.
func ParseConfig(settings map[string]string) (Config, error) {
	cfg := DefaultConfig()

	// stop_timeout is parsed by hand: its sentinel grammar does not fit a
	// decode hook without losing the typed error on the way out.
	if raw, ok := settings["stop_timeout"]; ok {
		st, err := parseStopTimeout(raw)
		if err != nil {
			return Config{}, err
		}
		cfg.StopTimeout = st
		settings = withoutKey(settings, "stop_timeout")
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Config{}, fmt.Errorf("asyncloop: build config decoder: %w", err)
	}
	if err := dec.Decode(settings); err != nil {
		return Config{}, fmt.Errorf("asyncloop: parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func withoutKey(settings map[string]string, key string) map[string]string {
	rest := make(map[string]string, len(settings))
	for k, v := range settings {
		if k != key {
			rest[k] = v
		}
	}
	return rest
}

func (c *Config) validate() error {
	switch c.Backend {
	case "":
		c.Backend = BackendBuiltin
	case BackendBuiltin, BackendRing:
	default:
		return &core.ConfigError{Key: "backend", Value: c.Backend, Reason: "unrecognized backend"}
	}
	return nil
}

func parseStopTimeout(raw string) (core.StopTimeout, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "none":
		return core.StopWait(), nil
	case "0":
		return core.StopAfter(0), nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return core.StopTimeout{}, &core.ConfigError{
			Key: "stop_timeout", Value: raw, Reason: "not a duration",
		}
	}
	if d < 0 {
		return core.StopTimeout{}, &core.ConfigError{
			Key: "stop_timeout", Value: raw, Reason: "must not be negative",
		}
	}
	return core.StopAfter(d), nil
}
