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
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigToml(t *testing.T) {
	path := writeConfig(t, "delphi.toml", `
verbosity = "debug"

[dialect]
version = "15.0"

[platform]
target = "win64"

[parser]
strict = true
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Parser.Strict || cfg.PointerSize() != 8 || cfg.CompilerVersion() != 15 {
		t.Errorf("config %+v", cfg)
	}
	if cfg.Supports(FeatureForIn) || cfg.Supports(FeatureUnicodeString) {
		t.Error("version 15 has neither for-in nor unicode strings")
	}
	// defaults survive
	if !cfg.IsSourceFile("Main.DPR") || cfg.IsSourceFile("notes.txt") {
		t.Error("extensions")
	}
}

func TestLoadConfigYaml(t *testing.T) {
	path := writeConfig(t, "delphi.yaml", `
dialect:
  version: "18.5.0"
parser:
  extensions: [".pas"]
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Supports(FeatureStrictVisibility) || cfg.Supports(FeatureUnicodeString) {
		t.Error("feature gates for 18.5")
	}
	if cfg.CompilerVersion() != 18.5 {
		t.Errorf("compiler version %v", cfg.CompilerVersion())
	}
	if cfg.IsSourceFile("x.dpr") {
		t.Error("extensions were replaced")
	}
	if cfg.Platform.Target != "win32" {
		t.Errorf("platform default lost: %q", cfg.Platform.Target)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	cases := map[string]string{
		"a.ini":  "x=1",
		"b.toml": "[dialect]\nversion = \"next\"\n",
		"c.toml": "[platform]\ntarget = \"amiga\"\n",
		"d.yaml": "verbosity: loud\n",
	}
	for name, content := range cases {
		_, err := LoadConfig(writeConfig(t, name, content))
		if !errors.Is(err, ErrConfig) {
			t.Errorf("%s: got %v", name, err)
		}
	}
	if _, err := LoadConfig(writeConfig(t, "e.toml", "verbosity = ")); err == nil || errors.Is(err, ErrConfig) {
		t.Errorf("syntax error: %v", err)
	}
}

func TestConfigLogger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Verbosity = "info"
	var buf bytes.Buffer
	cfg.NewLogger(&buf)
	cfg.Log("binder").Debug("hidden")
	cfg.Log("binder").Info("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "component=binder") {
		t.Errorf("log output %q", out)
	}
}
