package parser

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

func ParseYAMLTask(reader io.Reader) (*TaskFile, error) {
	var data TaskFile
	decoder := yaml.NewDecoder(reader)

	if err := decoder.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse YAML task: %w", err)
	}

	return &data, nil
}

func ParseYAMLMap(reader io.Reader) (map[string]any, error) {
	var data map[string]any
	decoder := yaml.NewDecoder(reader)

	if err := decoder.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse YAML document: %w", err)
	}

	return data, nil
}
