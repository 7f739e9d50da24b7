package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// RunFile is a run request loaded from a YAML or JSON file.
type RunFile struct {
	Kind             string         `json:"kind" yaml:"kind"`
	Params           map[string]any `json:"params" yaml:"params"`
	Seed             int64          `json:"seed" yaml:"seed"`
	Steps            int            `json:"steps" yaml:"steps"`
	CollectionPeriod int            `json:"collection_period" yaml:"collection_period"`
}

// BatchFile is a sweep request loaded from a YAML or JSON file. Parameter
// values may be scalars or lists; lists are enumerated into the sweep's
// Cartesian product.
type BatchFile struct {
	Kind             string         `json:"kind" yaml:"kind"`
	Params           map[string]any `json:"params" yaml:"params"`
	Iterations       int            `json:"iterations" yaml:"iterations"`
	Steps            int            `json:"steps" yaml:"steps"`
	CollectionPeriod int            `json:"collection_period" yaml:"collection_period"`
	BaseSeed         int64          `json:"base_seed" yaml:"base_seed"`
	Workers          int            `json:"workers" yaml:"workers"`
	Notes            string         `json:"notes" yaml:"notes"`
}

func loadRunFile(path string) (RunFile, error) {
	var req RunFile
	if err := loadRequestFile(path, &req); err != nil {
		return RunFile{}, err
	}
	if req.Kind == "" {
		return RunFile{}, fmt.Errorf("%s: kind is required", path)
	}
	return req, nil
}

func loadBatchFile(path string) (BatchFile, error) {
	var req BatchFile
	if err := loadRequestFile(path, &req); err != nil {
		return BatchFile{}, err
	}
	if req.Kind == "" {
		return BatchFile{}, fmt.Errorf("%s: kind is required", path)
	}
	return req, nil
}

func loadRequestFile(path string, out any) error {
	if path == "" {
		return fmt.Errorf("request file path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, out); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported request file format: %s", path)
	}
	return nil
}

// paramFlags collects repeated -param name=value flags into a parameter
// bag. Values parse as int, float, or bool before falling back to string.
type paramFlags map[string]any

func (p paramFlags) String() string {
	parts := make([]string, 0, len(p))
	for name, value := range p {
		parts = append(parts, fmt.Sprintf("%s=%v", name, value))
	}
	return strings.Join(parts, ",")
}

func (p paramFlags) Set(raw string) error {
	name, value, ok := strings.Cut(raw, "=")
	if !ok || name == "" {
		return fmt.Errorf("expected name=value, got %q", raw)
	}
	p[name] = parseParamValue(value)
	return nil
}

func parseParamValue(raw string) any {
	if v, err := strconv.Atoi(raw); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseBool(raw); err == nil {
		return v
	}
	return raw
}
