// Package config loads troto settings from a YAML file and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/mstoykov/envconfig"
	"github.com/spf13/afero"
	"gopkg.in/guregu/null.v3"
	"gopkg.in/yaml.v3"

	"github.com/jptrs93/troto/internal/wellknown"
)

const (
	DefaultFile   = "troto.yaml"
	DefaultIgnore = ".trotoignore"
)

type Config struct {
	// Root is the project root; source paths and module names are relative
	// to it.
	Root null.String `yaml:"root" envconfig:"TROTO_ROOT"`
	// Out is the output directory. When unset, IDL is written next to the
	// sources.
	Out        null.String `yaml:"out" envconfig:"TROTO_OUT"`
	ProtoPaths []string    `yaml:"proto_paths" envconfig:"TROTO_PROTO_PATH"`
	Check      null.Bool   `yaml:"check" envconfig:"TROTO_CHECK"`
	// Ignore names the gitignore-style file consulted while expanding
	// directories, relative to Root.
	Ignore null.String `yaml:"ignore" envconfig:"TROTO_IGNORE"`

	// Types are extra external types, added to the well-known ones.
	Types []wellknown.Type `yaml:"types" ignored:"true"`
}

// NewConfig returns the defaults. None of the fields are marked valid, so any
// layer applied on top overrides them.
func NewConfig() Config {
	return Config{
		Root:   null.NewString(".", false),
		Check:  null.NewBool(false, false),
		Ignore: null.NewString(DefaultIgnore, false),
	}
}

// Apply returns c with every field set in cfg copied over it.
func (c Config) Apply(cfg Config) Config {
	if cfg.Root.Valid {
		c.Root = cfg.Root
	}
	if cfg.Out.Valid {
		c.Out = cfg.Out
	}
	if len(cfg.ProtoPaths) > 0 {
		c.ProtoPaths = cfg.ProtoPaths
	}
	if cfg.Check.Valid {
		c.Check = cfg.Check
	}
	if cfg.Ignore.Valid {
		c.Ignore = cfg.Ignore
	}
	if len(cfg.Types) > 0 {
		c.Types = append(c.Types[:len(c.Types):len(c.Types)], cfg.Types...)
	}
	return c
}

func (c Config) Validate() error {
	var errs []error
	for i, ty := range c.Types {
		if ty.Module == "" || ty.Name == "" || ty.FullName == "" || ty.ImportPath == "" {
			errs = append(errs, fmt.Errorf("types[%d]: module, name, proto and import are all required", i))
		}
	}
	return errors.Join(errs...)
}

// TypeTable returns the well-known types extended with c.Types.
func (c Config) TypeTable() *wellknown.Table {
	t := wellknown.Default()
	for _, ty := range c.Types {
		t.Add(ty)
	}
	return t
}

// Load reads a YAML config file. A missing file yields an empty Config unless
// required is set.
func Load(fsys afero.Fs, path string, required bool) (Config, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var conf Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&conf); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return conf, nil
}

// FromEnv reads the TROTO_* variables through lookup.
func FromEnv(lookup func(key string) (string, bool)) (Config, error) {
	var conf Config
	if err := envconfig.Process("", &conf, lookup); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	return conf, nil
}

// Consolidate layers defaults, the config file, the environment and flags,
// later layers taking precedence.
func Consolidate(fsys afero.Fs, path string, required bool, lookup func(string) (string, bool), flags Config) (Config, error) {
	fileConf, err := Load(fsys, path, required)
	if err != nil {
		return Config{}, err
	}
	envConf, err := FromEnv(lookup)
	if err != nil {
		return Config{}, err
	}
	result := NewConfig().Apply(fileConf).Apply(envConf).Apply(flags)
	if err := result.Validate(); err != nil {
		return Config{}, err
	}
	return result, nil
}
