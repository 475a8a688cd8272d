package catalog

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader reads the catalog file. Both YAML and JSON are accepted.
type Loader struct {
	filePath string
}

// NewLoader creates a new catalog loader
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Path returns the file the loader reads.
func (l *Loader) Path() string { return l.filePath }

// Load reads, decodes and validates the catalog file. The returned
// fingerprint changes whenever the file content does.
func (l *Loader) Load() (File, string, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read catalog file: %w", err)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, "", err
	}

	return f, Fingerprint(data), nil
}

// Parse decodes and validates a catalog payload. A payload starting with
// '[' or '{' is decoded as JSON, anything else as YAML. Any malformed input
// yields a *ValidationError.
func Parse(data []byte) (File, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &ValidationError{Violations: []string{"catalog: empty payload, expected a list of groups"}}
	}

	var (
		f   File
		err error
	)
	if trimmed[0] == '[' || trimmed[0] == '{' {
		f, err = decodeJSON(trimmed)
	} else {
		f, err = decodeYAML(data)
	}
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, &ValidationError{Violations: []string{"catalog: expected a list of groups"}}
	}

	if err := Validate(f); err != nil {
		return nil, err
	}
	return f, nil
}

func decodeJSON(data []byte) (File, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			field := typeErr.Field
			if field == "" {
				field = "catalog"
			}
			return nil, &ValidationError{Violations: []string{
				fmt.Sprintf("%s: cannot use %s as %s", field, typeErr.Value, typeErr.Type),
			}}
		}
		return nil, &ValidationError{Violations: []string{fmt.Sprintf("syntax: %v", err)}}
	}
	return f, nil
}

func decodeYAML(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) {
			return nil, &ValidationError{Violations: typeErr.Errors}
		}
		return nil, &ValidationError{Violations: []string{fmt.Sprintf("syntax: %v", err)}}
	}
	return f, nil
}

// Fingerprint returns a stable digest of raw catalog bytes.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
