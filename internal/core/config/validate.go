package config

import (
	"fmt"
	"net/url"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hay-kot/criterio"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// ValidateDeep performs comprehensive validation of the configuration
// including backend URL syntax, glob patterns, and file accessibility. The
// configPath argument specifies the config file location to validate (empty
// string skips the config file check). This calls Validate() first for basic
// structural validation, then adds I/O checks.
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		validateConfigFile(configPath),
		criterio.Run("data_dir", c.DataDir, isDirectoryOrNotExist),
		criterio.Run("backend.url", c.Backend.URL, isValidBackendURL),
		c.validatePromptGlobs(),
	)
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if c.Backend.URL == "" && c.Backend.Sync != nil && *c.Backend.Sync {
		warnings = append(warnings, ValidationWarning{
			Category: "Backend",
			Item:     "sync",
			Message:  "sync is enabled but no backend url is configured",
		})
	}

	return warnings
}

func validateConfigFile(configPath string) error {
	if configPath == "" {
		return nil
	}

	info, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		return nil // not found is fine, using defaults
	}
	if err != nil {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("cannot access: %w", err))
	}
	if info.IsDir() {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
	}
	return nil
}

// isDirectoryOrNotExist validates that a path is a directory or doesn't exist.
func isDirectoryOrNotExist(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil // will be created
	}
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}

// isValidBackendURL validates the optimizer backend URL when one is set.
func isValidBackendURL(raw string) error {
	if raw == "" {
		return nil // offline mode
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url is missing a host")
	}
	return nil
}

// validatePromptGlobs checks that prompt include patterns are valid globs.
func (c *Config) validatePromptGlobs() error {
	var errs criterio.FieldErrorsBuilder
	for i, pattern := range c.Prompts.Include {
		if !doublestar.ValidatePattern(pattern) {
			errs = errs.Append(fmt.Sprintf("prompts.include[%d]", i), fmt.Errorf("invalid glob pattern %q", pattern))
		}
	}
	return errs.ToError()
}
