package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownKey is returned when saving a key the resolver does not read.
var ErrUnknownKey = errors.New("unknown config key")

// SetKey writes key=value into the YAML file at path, creating it when
// missing. Files that may hold secrets are written owner-only.
func SetKey(path, key, value string) error {
	if !IsKey(key) {
		return fmt.Errorf("%w: %s\n\nValid keys: %s", ErrUnknownKey, key, strings.Join(Keys(), ", "))
	}
	existing, err := readFile(path)
	if err != nil {
		return err
	}
	existing[key] = parseValue(value)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return writeFile(path, existing)
}

// UnsetKey removes key from the file at path. A missing file is not an error.
func UnsetKey(path, key string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	existing, err := readFile(path)
	if err != nil {
		return err
	}
	if _, ok := existing[key]; !ok {
		return nil
	}
	delete(existing, key)
	return writeFile(path, existing)
}

func readFile(path string) (map[string]any, error) {
	existing := make(map[string]any)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return existing, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &existing); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if existing == nil {
		existing = make(map[string]any)
	}
	return existing, nil
}

func writeFile(path string, values map[string]any) error {
	data, err := yaml.Marshal(values)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// parseValue stores booleans as YAML booleans.
func parseValue(value string) any {
	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	}
	return value
}
