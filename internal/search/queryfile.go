// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"
)

// QueryFile is the on-disk representation of a search and its PMIDs. A
// search can be saved to a file and replayed later without re-querying
// the API.
type QueryFile struct {
	Query   string       `yaml:"query"`
	Max     int          `yaml:"max"`
	PMIDs   []string     `yaml:"pmids"`
	Summary QuerySummary `yaml:"summary"`
}

// QuerySummary stores result statistics and a timestamp.
type QuerySummary struct {
	Count     int       `yaml:"count"`
	Timestamp time.Time `yaml:"timestamp"`
}

// WriteQueryFile saves a query and its result PMIDs to a YAML file.
func WriteQueryFile(path, query string, max int, pmids []string) error {
	qf := QueryFile{
		Query: query,
		Max:   max,
		PMIDs: pmids,
		Summary: QuerySummary{
			Count:     len(pmids),
			Timestamp: time.Now(),
		},
	}
	data, err := yaml.Marshal(&qf)
	if err != nil {
		return fmt.Errorf("marshaling query file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadQueryFile loads a previously saved query file from disk.
func ReadQueryFile(path string) (*QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	var qf QueryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("parsing query file: %w", err)
	}
	if qf.Query == "" {
		return nil, fmt.Errorf("query file %s has no query", path)
	}
	return &qf, nil
}
