package batch

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PlanConfig is the YAML batch plan - shared settings plus a list of batches.
// Used to drive multiple batches from a single file instead of one-shot flags.
type PlanConfig struct {
	ParentURL   string      `yaml:"parent_url" json:"parent_url" jsonschema:"description=listing page the links were discovered from"`
	CSVFilename string      `yaml:"csv_filename" json:"csv_filename" jsonschema:"required,description=source csv name used to derive result file names"`
	Proxy       Proxy       `yaml:"proxy" json:"proxy" jsonschema:"description=upstream proxy credentials"`
	Batches     []PlanBatch `yaml:"batches" json:"batches" jsonschema:"required,description=list of batches to execute"`
}

// PlanBatch is a single batch entry in the plan
type PlanBatch struct {
	Number string   `yaml:"number" json:"number" jsonschema:"required,description=batch sequence number"`
	Links  []string `yaml:"links" json:"links" jsonschema:"required,description=profile links for this batch"`
}

// LoadPlan reads and validates the YAML plan file
func LoadPlan(file string) (*PlanConfig, error) {
	data, err := os.ReadFile(file) // nolint gosec // file path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("can't read plan file %s: %w", file, err)
	}

	var cfg PlanConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("can't parse plan file %s: %w", file, err)
	}

	if err := cfg.Verify(); err != nil {
		return nil, fmt.Errorf("invalid plan file %s: %w", file, err)
	}
	return &cfg, nil
}

// Specs expands the plan into executable batch specs, each with its own run uuid
func (c *PlanConfig) Specs() []Spec {
	res := make([]Spec, 0, len(c.Batches))
	for _, b := range c.Batches {
		res = append(res, Spec{
			ParentURL:   c.ParentURL,
			BatchNumber: b.Number,
			Links:       b.Links,
			CSVFilename: c.CSVFilename,
			RunUUID:     newRunUUID(),
			Proxy:       c.Proxy,
		})
	}
	return res
}
