// Package hostconfig loads a declarative description of the external
// effect handlers a host should install (the capabilities available to a
// function's suspensions, §4.5's non-catalog effect names) from a YAML
// document, following the pack's config-from-YAML idiom
// (`sigs.k8s.io/yaml`, which round-trips YAML through encoding/json).
package hostconfig

import (
	"context"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/arcanum-run/arcanum/internal/host"
	"github.com/arcanum-run/arcanum/internal/value"
)

// Kind names one of the built-in handler shapes hostconfig knows how to
// install. Interactive handlers (the "console" kind) are not installable
// from a config file alone — see internal/cli/cmd's "attach" command, which
// wires them against a live terminal instead.
type Kind string

const (
	KindFile Kind = "file"
	KindEnv  Kind = "env"
)

// Effect describes one named capability a host should expose.
type Effect struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`

	// Path is the file kind's source file; its full contents are returned
	// as a Blob on every invocation, regardless of the effect's arguments.
	Path string `json:"path,omitempty"`

	// Var is the env kind's environment variable name.
	Var string `json:"var,omitempty"`
}

// Config is the top-level document shape.
type Config struct {
	Effects []Effect `json:"effects"`
}

// Load reads and parses a host configuration document.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("hostconfig: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("hostconfig: %w", err)
	}

	return &cfg, nil
}

// Install registers every declared effect on h. It fails if an effect names
// an unknown kind or one that requires a live attachment (e.g. "console").
func (c *Config) Install(h *host.Host) error {
	for _, e := range c.Effects {
		handler, err := e.handler()
		if err != nil {
			return err
		}

		h.Register(e.Name, handler)
	}

	return nil
}

func (e Effect) handler() (host.Handler, error) {
	switch e.Kind {
	case KindFile:
		return e.fileHandler(), nil
	case KindEnv:
		return e.envHandler(), nil
	default:
		return nil, fmt.Errorf("hostconfig: effect %q: unsupported kind %q", e.Name, e.Kind)
	}
}

func (e Effect) fileHandler() host.Handler {
	return func(_ context.Context, _ []value.Value) (value.Value, error) {
		data, err := os.ReadFile(e.Path)
		if err != nil {
			return nil, fmt.Errorf("hostconfig: effect %q: %w", e.Name, err)
		}

		return value.NewBlob(data), nil
	}
}

func (e Effect) envHandler() host.Handler {
	return func(_ context.Context, _ []value.Value) (value.Value, error) {
		return value.NewBlob([]byte(os.Getenv(e.Var))), nil
	}
}
