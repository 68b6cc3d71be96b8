package dynamic

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EmbeddedFS holds the saved searches compiled into the binary. Paths are
// expected under "config/<category>/".
var EmbeddedFS fs.FS

// WalkConfigDirectory loads all YAML saved searches. The embedded filesystem
// wins when it holds any; configDir on disk is the fallback.
func WalkConfigDirectory(configDir string) ([]*SearchConfig, error) {
	if EmbeddedFS != nil {
		configs, err := walkFS(EmbeddedFS, ".")
		if err != nil {
			return nil, fmt.Errorf("failed to walk embedded configs: %w", err)
		}
		if len(configs) > 0 {
			slog.Info("loaded saved searches from embedded filesystem", "count", len(configs))
			return configs, nil
		}
	}

	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		slog.Warn("config directory does not exist", "dir", configDir)
		return nil, nil
	}

	configs, err := walkFS(os.DirFS(configDir), ".")
	if err != nil {
		return nil, fmt.Errorf("failed to walk config directory: %w", err)
	}
	slog.Info("loaded saved searches from filesystem", "count", len(configs), "dir", configDir)
	return configs, nil
}

func walkFS(fsys fs.FS, root string) ([]*SearchConfig, error) {
	var configs []*SearchConfig
	names := make(map[string]string)

	err := fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".yaml") && !strings.HasSuffix(d.Name(), ".yml") {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			slog.Error("failed to read config file", "path", path, "error", err)
			return err
		}

		config, err := parseSearchConfig(data, path)
		if err != nil {
			slog.Error("failed to parse saved search", "path", path, "error", err)
			return err
		}

		if other, ok := names[config.Name]; ok {
			return fmt.Errorf("saved search %q defined in both %s and %s", config.Name, other, path)
		}
		names[config.Name] = path

		configs = append(configs, config)
		slog.Debug("loaded saved search", "tool", config.Name, "category", config.Category, "path", path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return configs, nil
}

// parseSearchConfig parses and validates a YAML saved search
func parseSearchConfig(data []byte, path string) (*SearchConfig, error) {
	var config SearchConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.Category = deriveCategoryFromPath(path)

	if config.Name == "" {
		return nil, fmt.Errorf("search name is required in config file: %s", path)
	}
	if config.Description == "" {
		return nil, fmt.Errorf("search description is required in config file: %s", path)
	}
	if config.Limit < 0 {
		return nil, fmt.Errorf("limit must not be negative in config file: %s", path)
	}

	if err := validateParameters(config.Parameters); err != nil {
		return nil, fmt.Errorf("invalid parameters in %s: %w", path, err)
	}

	for _, n := range []*yaml.Node{&config.Where, &config.Aggregate, &config.OrderBy} {
		for _, name := range placeholders(n) {
			if _, ok := config.parameter(name); !ok {
				return nil, fmt.Errorf("undeclared parameter %q in %s", name, path)
			}
		}
	}

	return &config, nil
}

// validateParameters validates parameter definitions
func validateParameters(params []ParameterConfig) error {
	validTypes := map[string]bool{
		"string": true, "integer": true, "number": true,
		"boolean": true, "array": true, "object": true,
	}
	reserved := map[string]bool{"skip": true, "limit": true}
	names := make(map[string]bool)

	for i, param := range params {
		if param.Name == "" {
			return fmt.Errorf("parameter[%d] name is required", i)
		}
		if reserved[param.Name] {
			return fmt.Errorf("parameter name '%s' is reserved", param.Name)
		}

		if names[param.Name] {
			return fmt.Errorf("duplicate parameter name '%s'", param.Name)
		}
		names[param.Name] = true

		if param.Type != "" && !validTypes[param.Type] {
			return fmt.Errorf("parameter '%s' has invalid type '%s'", param.Name, param.Type)
		}
	}

	return nil
}

// deriveCategoryFromPath extracts the category from the file path
// Example: "config/people/by-city.yaml" -> "people"
func deriveCategoryFromPath(path string) string {
	parts := strings.Split(filepath.ToSlash(path), "/")

	for i, part := range parts {
		if part == "config" && i+2 < len(parts) {
			return parts[i+1]
		}
	}

	if len(parts) >= 2 && parts[0] != "config" {
		if parts[0] == "tools" && len(parts) >= 3 {
			return parts[1]
		}
		return parts[0]
	}

	return "general"
}
