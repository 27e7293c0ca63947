// Package config loads rhi settings from YAML or TOML files and RHI_*
// environment variables.
//
// A file only needs the keys it changes:
//
//	backend: wgpu-noop
//	width: 640
//	height: 480
//	frames: 120
//	render_thread_frames: 2
//	pools:
//	  command_buffers: 4096
//
// Environment variables override the file. Variables are read through
// envy, so a .env file in the working directory is honored too.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gobuffalo/envy"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/recording"
)

// Format is the syntax of a configuration file.
type Format int

const (
	FormatYAML Format = iota
	FormatTOML
)

// Errors returned by Load and Validate.
var (
	ErrUnknownFormat = errors.New("config: unknown file format")
	ErrInvalid       = errors.New("config: invalid value")
)

// Pools mirrors rhi.PoolSizes with file keys. Zero keeps the default.
type Pools struct {
	VertexBuffers      int `yaml:"vertex_buffers" toml:"vertex_buffers"`
	IndexBuffers       int `yaml:"index_buffers" toml:"index_buffers"`
	Textures           int `yaml:"textures" toml:"textures"`
	ConstBuffers       int `yaml:"const_buffers" toml:"const_buffers"`
	PipelineStates     int `yaml:"pipeline_states" toml:"pipeline_states"`
	DepthStencilStates int `yaml:"depth_stencil_states" toml:"depth_stencil_states"`
	SamplerStates      int `yaml:"sampler_states" toml:"sampler_states"`
	QueryBuffers       int `yaml:"query_buffers" toml:"query_buffers"`
	SyncObjects        int `yaml:"sync_objects" toml:"sync_objects"`
	Passes             int `yaml:"passes" toml:"passes"`
	CommandBuffers     int `yaml:"command_buffers" toml:"command_buffers"`
}

// Config holds every tunable of a context and the program driving it.
type Config struct {
	// Backend is the registered backend name.
	Backend string `yaml:"backend" toml:"backend"`

	// Width and Height size the backend's default render target.
	Width  uint32 `yaml:"width" toml:"width"`
	Height uint32 `yaml:"height" toml:"height"`

	// Frames is the number of frames a driver program submits.
	Frames int `yaml:"frames" toml:"frames"`

	// RenderThreadFrames is the render thread queue depth. Zero executes
	// frames on the presenting goroutine.
	RenderThreadFrames uint32 `yaml:"render_thread_frames" toml:"render_thread_frames"`

	ConstRingSize         int    `yaml:"const_ring_size" toml:"const_ring_size"`
	ImmediatePollInterval int    `yaml:"immediate_poll_interval" toml:"immediate_poll_interval"`
	DebugChecks           bool   `yaml:"debug_checks" toml:"debug_checks"`
	LogLevel              string `yaml:"log_level" toml:"log_level"`

	Pools Pools `yaml:"pools" toml:"pools"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Backend:               "trace",
		Width:                 recording.DefaultTarget.Width,
		Height:                recording.DefaultTarget.Height,
		Frames:                60,
		ConstRingSize:         rhi.DefaultConstRingSize,
		ImmediatePollInterval: rhi.DefaultImmediatePollInterval,
		LogLevel:              "warn",
	}
}

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, path)
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		format, err := FormatOf(path)
		if err != nil {
			return cfg, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		if err := cfg.Decode(data, format); err != nil {
			return cfg, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Decode merges data in the given format into c.
func (c *Config) Decode(data []byte, format Format) error {
	switch format {
	case FormatYAML:
		return yaml.Unmarshal(data, c)
	case FormatTOML:
		return toml.Unmarshal(data, c)
	default:
		return ErrUnknownFormat
	}
}

// LoadEnvFiles loads additional .env files for ApplyEnv.
func LoadEnvFiles(files ...string) error {
	if err := envy.Load(files...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from RHI_* variables.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(envy.Get)
}

func (c *Config) applyEnv(get func(key, def string) string) error {
	var errs []error
	str := func(key string, dst *string) {
		if v := get(key, ""); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := get(key, ""); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s=%q", ErrInvalid, key, v))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v := get(key, ""); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s=%q", ErrInvalid, key, v))
				return
			}
			*dst = b
		}
	}

	str("RHI_BACKEND", &c.Backend)
	str("RHI_LOG_LEVEL", &c.LogLevel)
	num("RHI_FRAMES", &c.Frames)
	num("RHI_CONST_RING_SIZE", &c.ConstRingSize)
	num("RHI_IMMEDIATE_POLL_INTERVAL", &c.ImmediatePollInterval)
	num("RHI_COMMAND_BUFFERS", &c.Pools.CommandBuffers)
	flag("RHI_DEBUG_CHECKS", &c.DebugChecks)

	unsigned := func(key string, dst *uint32) {
		n := int(*dst)
		num(key, &n)
		if n < 0 {
			errs = append(errs, fmt.Errorf("%w: %s=%d", ErrInvalid, key, n))
			return
		}
		*dst = uint32(n) // #nosec G115 -- checked above
	}
	unsigned("RHI_RENDER_THREAD_FRAMES", &c.RenderThreadFrames)
	unsigned("RHI_WIDTH", &c.Width)
	unsigned("RHI_HEIGHT", &c.Height)
	return errors.Join(errs...)
}

// Validate reports values no context accepts.
func (c *Config) Validate() error {
	switch {
	case c.Backend == "":
		return fmt.Errorf("%w: empty backend", ErrInvalid)
	case c.Width == 0 || c.Height == 0:
		return fmt.Errorf("%w: target size %dx%d", ErrInvalid, c.Width, c.Height)
	case c.Frames < 0:
		return fmt.Errorf("%w: frames %d", ErrInvalid, c.Frames)
	case c.ConstRingSize < 0:
		return fmt.Errorf("%w: const ring size %d", ErrInvalid, c.ConstRingSize)
	case c.ImmediatePollInterval < 0:
		return fmt.Errorf("%w: immediate poll interval %d", ErrInvalid, c.ImmediatePollInterval)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel. An empty level means warn.
func (c *Config) Level() (slog.Level, error) {
	if c.LogLevel == "" {
		return slog.LevelWarn, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalid, c.LogLevel)
	}
	return l, nil
}

// Target returns the default render target to open the backend with.
func (c *Config) Target() recording.Target {
	return recording.Target{Width: c.Width, Height: c.Height}
}

// Options converts c into context options.
func (c *Config) Options() []rhi.Option {
	p := c.Pools
	return []rhi.Option{
		rhi.WithPoolSizes(rhi.PoolSizes{
			VertexBuffers:      p.VertexBuffers,
			IndexBuffers:       p.IndexBuffers,
			Textures:           p.Textures,
			ConstBuffers:       p.ConstBuffers,
			PipelineStates:     p.PipelineStates,
			DepthStencilStates: p.DepthStencilStates,
			SamplerStates:      p.SamplerStates,
			QueryBuffers:       p.QueryBuffers,
			SyncObjects:        p.SyncObjects,
			Passes:             p.Passes,
			CommandBuffers:     p.CommandBuffers,
		}),
		rhi.WithConstRingSize(c.ConstRingSize),
		rhi.WithImmediatePollInterval(c.ImmediatePollInterval),
		rhi.WithDebugChecks(c.DebugChecks),
	}
}
