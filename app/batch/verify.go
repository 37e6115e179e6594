package batch

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"
)

//go:embed schema.json
var embeddedSchemaData []byte

// Verify validates the plan config against the embedded JSON schema rules
func (c *PlanConfig) Verify() error {
	// parse embedded schema to catch a broken build early
	var schema map[string]interface{}
	if err := json.Unmarshal(embeddedSchemaData, &schema); err != nil {
		return fmt.Errorf("parse embedded schema: %w", err)
	}

	if err := validateRequiredFields(c); err != nil {
		return fmt.Errorf("plan validation failed: %w", err)
	}
	return nil
}

// validateRequiredFields performs basic validation of required fields
func validateRequiredFields(cfg *PlanConfig) error {
	if cfg.CSVFilename == "" {
		return fmt.Errorf("csv_filename is required")
	}

	if len(cfg.Batches) == 0 {
		return fmt.Errorf("at least one batch is required")
	}

	// proxy credentials come as a set, username without dns is a config mistake
	if cfg.Proxy.Username != "" && cfg.Proxy.DNS == "" {
		return fmt.Errorf("proxy username set but proxy dns is missing")
	}

	seen := map[string]struct{}{}
	for i, b := range cfg.Batches {
		if b.Number == "" {
			return fmt.Errorf("batch %d: number is required", i+1)
		}
		if _, err := strconv.Atoi(b.Number); err != nil {
			return fmt.Errorf("batch %d: number %q is not numeric", i+1, b.Number)
		}
		if _, dup := seen[b.Number]; dup {
			return fmt.Errorf("batch %d: duplicate number %q", i+1, b.Number)
		}
		seen[b.Number] = struct{}{}

		if len(b.Links) == 0 {
			return fmt.Errorf("batch %d: at least one link is required", i+1)
		}
		for j, l := range b.Links {
			if strings.TrimSpace(l) == "" {
				return fmt.Errorf("batch %d: blank link at position %d", i+1, j)
			}
		}
	}
	return nil
}

// GenerateSchema generates a JSON schema for the PlanConfig struct
func GenerateSchema() (*jsonschema.Schema, error) {
	return jsonschema.Reflect(&PlanConfig{}), nil
}
