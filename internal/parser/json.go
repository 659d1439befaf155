package parser

import (
	"encoding/json"
	"fmt"
	"io"
)

func ParseJSONTask(reader io.Reader) (*TaskFile, error) {
	var data TaskFile
	decoder := json.NewDecoder(reader)

	if err := decoder.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse JSON task: %w", err)
	}

	return &data, nil
}

func ParseJSONMap(reader io.Reader) (map[string]any, error) {
	var data map[string]any
	decoder := json.NewDecoder(reader)

	if err := decoder.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse JSON document: %w", err)
	}

	return data, nil
}
