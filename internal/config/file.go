package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile overlays the YAML job file at path onto j. Keys absent from the
// file keep their current values.
func LoadFile(path string, j *Job) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read job file: %w", err)
	}
	if err := yaml.Unmarshal(data, j); err != nil {
		return fmt.Errorf("parse job file %s: %w", path, err)
	}
	return nil
}

// Marshal renders the job as YAML.
func (j Job) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}
	return data, nil
}
