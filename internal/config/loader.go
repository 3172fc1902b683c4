package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load parses a configuration document (spec.md §6) from YAML bytes, applies
// environment variable overrides, and validates every broker entry. It
// mirrors the teacher's loader.go → loader_environment.go → loader_validation.go
// pipeline, collapsed into one function since this document has no CLI-flag
// layer (spec.md's config surface is YAML document + env vars only).
func Load(data []byte) (Document, error) {
	doc := Document{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parse document: %w", err)
	}
	ApplyEnvironment(doc)
	if err := validateDocument(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadFile reads and loads a configuration document from a file path.
func LoadFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Load(data)
}

func validateDocument(doc Document) error {
	for name, b := range doc {
		if b == nil {
			return fieldErr(name, "broker entry must not be empty")
		}
		if err := ValidateConnection(b.ClientConfig()); err != nil {
			return err
		}
		if err := ValidatePool(b.Pool); err != nil {
			return err
		}
		for _, t := range b.Topics {
			if err := ValidateTopic(t); err != nil {
				return err
			}
		}
	}
	return nil
}
