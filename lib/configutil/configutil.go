// Package configutil loads json5 configuration files with local overrides.
// A file named <name>.local.<ext> next to <name>.<ext> is merged on top of
// it, so credentials stay out of the checked-in config.
package configutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// localVariant turns "config.json5" into "config.local.json5". A name
// without an extension gets ".local" appended.
func localVariant(name string) string {
	dir := filepath.Dir(name)
	base := filepath.Base(name)
	dot := strings.LastIndexByte(base, '.')
	if dot < 0 {
		return filepath.Join(dir, base+".local")
	}
	return filepath.Join(dir, base[:dot]+".local"+base[dot:])
}

func readLayer(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json5.Unmarshal(data, out)
}

// ReadConfig parses <name> and merges <name>.local.<ext> over it, the
// local file winning on conflicts. When neither file exists the error is
// os.ErrNotExist.
func ReadConfig[T any](name string) (T, error) {
	var out T

	found, err := readLayer(name, &out)
	if err != nil {
		return out, err
	}

	localPath := localVariant(name)
	var override T
	foundLocal, err := readLayer(localPath, &override)
	if err != nil {
		return out, err
	}
	if foundLocal {
		if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
			return out, err
		}
		slog.Info("merging config with local overrides", "local", localPath)
	}

	if !found && !foundLocal {
		return out, os.ErrNotExist
	}
	return out, nil
}

// ReadRecursively looks for the named config in the working directory and
// every parent up to the filesystem root.
func ReadRecursively[T any](name string) (T, error) {
	var zero T

	dir, err := os.Getwd()
	if err != nil {
		return zero, err
	}

	for {
		config, err := ReadConfig[T](filepath.Join(dir, name))
		if !os.IsNotExist(err) {
			return config, err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return zero, os.ErrNotExist
		}
		dir = parent
	}
}
