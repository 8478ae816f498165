// Package report renders simulation results as JSON and HTML.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/wesleyorama2/gcscope/internal/sim"
)

// WriteJSON writes result as indented JSON.
func WriteJSON(w io.Writer, result *sim.Result) error {
	if result == nil {
		return fmt.Errorf("result cannot be nil")
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}

// GenerateJSON writes result to outputPath.
func GenerateJSON(result *sim.Result, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}

	if err := WriteJSON(f, result); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}
	return nil
}

// LoadJSON reads a result written by GenerateJSON.
func LoadJSON(path string) (*sim.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	var result sim.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &result, nil
}
