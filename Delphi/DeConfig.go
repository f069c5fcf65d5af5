/*
** Copyright (C) 2025 The MultiDelphi Authors
**
** This file is part of the MultiDelphi language project.
**
**
** GNU Lesser General Public License Usage
** This file may be used under the terms of the GNU Lesser
** General Public License version 2.1 or version 3 as published by the Free
** Software Foundation and appearing in the file LICENSE.LGPLv21 and
** LICENSE.LGPLv3 included in the packaging of this file. Please review the
** following information to ensure the GNU Lesser General Public License
** requirements will be met: https://www.gnu.org/licenses/lgpl.html and
** http://www.gnu.org/licenses/old-licenses/lgpl-2.1.html.
 */

package Delphi

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var ErrConfig = errors.New("invalid configuration")

// Feature names a language construct which only exists from some compiler
// version on
type Feature string

const (
	FeatureForIn            Feature = "for-in"
	FeatureStrictVisibility Feature = "strict-visibility"
	FeatureRecordMethods    Feature = "record-methods"
	FeatureInline           Feature = "inline"
	FeatureUnicodeString    Feature = "unicode-string"
)

// compiler versions as used by CompilerVersion; 17 is Delphi 2005,
// 18 is 2006, 20 is 2009
var featureConstraints = map[Feature]string{
	FeatureForIn:            ">= 17",
	FeatureStrictVisibility: ">= 18",
	FeatureRecordMethods:    ">= 18",
	FeatureInline:           ">= 17",
	FeatureUnicodeString:    ">= 20",
}

type DialectConfig struct {
	Version string `toml:"version" yaml:"version"`
}

type PlatformConfig struct {
	Target string `toml:"target" yaml:"target"`
}

type ParserConfig struct {
	Extensions []string `toml:"extensions" yaml:"extensions"`
	// Strict makes names the binder cannot resolve an error
	Strict bool `toml:"strict" yaml:"strict"`
}

// Config is passed to the parser, the registry and the binder at
// construction time
type Config struct {
	Verbosity string         `toml:"verbosity" yaml:"verbosity"`
	Dialect   DialectConfig  `toml:"dialect" yaml:"dialect"`
	Platform  PlatformConfig `toml:"platform" yaml:"platform"`
	Parser    ParserConfig   `toml:"parser" yaml:"parser"`

	Logger *slog.Logger `toml:"-" yaml:"-"`

	version *semver.Version
}

func DefaultConfig() *Config {
	return &Config{
		Verbosity: "warn",
		Dialect:   DialectConfig{Version: "36.0.0"},
		Platform:  PlatformConfig{Target: "win32"},
		Parser:    ParserConfig{Extensions: []string{".pas", ".dpr", ".dpk", ".inc"}},
		Logger:    discardLogger,
	}
}

// LoadConfig reads a TOML or YAML file, chosen by extension. Missing
// fields keep their defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown config format %q", ErrConfig, filepath.Ext(path))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	v, err := semver.NewVersion(c.Dialect.Version)
	if err != nil {
		return fmt.Errorf("%w: dialect version %q: %v", ErrConfig, c.Dialect.Version, err)
	}
	c.version = v
	if c.PointerSize() == 0 {
		return fmt.Errorf("%w: unknown platform %q", ErrConfig, c.Platform.Target)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Supports reports whether the dialect version satisfies the constraint of f.
// Unknown features are always supported.
func (c *Config) Supports(f Feature) bool {
	cs, ok := featureConstraints[f]
	if !ok {
		return true
	}
	if c.version == nil {
		v, err := semver.NewVersion(c.Dialect.Version)
		if err != nil {
			return false
		}
		c.version = v
	}
	con, err := semver.NewConstraint(cs)
	if err != nil {
		panic(internalf("bad constraint %q for %s", cs, f))
	}
	return con.Check(c.version)
}

// CompilerVersion is the major dialect version, as seen by source code
func (c *Config) CompilerVersion() float64 {
	if c.version == nil {
		if v, err := semver.NewVersion(c.Dialect.Version); err == nil {
			c.version = v
		} else {
			return 0
		}
	}
	return float64(c.version.Major()) + float64(c.version.Minor())/10
}

// PointerSize is the size of a pointer on the target platform in bytes, or 0
// for an unknown platform
func (c *Config) PointerSize() int {
	switch strings.ToLower(c.Platform.Target) {
	case "win32", "linux32", "osx32", "android32", "ios32":
		return 4
	case "win64", "linux64", "osx64", "android64", "ios64", "osxarm64":
		return 8
	}
	return 0
}

func (c *Config) Level() (slog.Level, error) {
	switch strings.ToLower(c.Verbosity) {
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("%w: verbosity %q", ErrConfig, c.Verbosity)
}

// NewLogger installs a text logger writing to w at the configured level
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	lvl, err := c.Level()
	if err != nil {
		lvl = slog.LevelWarn
	}
	c.Logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	return c.Logger
}

// Log returns the logger of a component
func (c *Config) Log(component string) *slog.Logger {
	l := c.Logger
	if l == nil {
		l = discardLogger
	}
	return l.With(slog.String("component", component))
}

// IsSourceFile checks the file extension against the configured ones
func (c *Config) IsSourceFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range c.Parser.Extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}
