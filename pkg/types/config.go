// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that talk to NCBI.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "pm-tools/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// EutilsConfig holds settings for the E-utilities clients (search, fetch,
// cite, download).
type EutilsConfig struct {
	HTTPConfig `yaml:",inline"`

	// APIKey is an optional NCBI API key. Without one NCBI allows about
	// 3 requests per second; with one, 10.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Email is sent to APIs that request a contact address (ID converter,
	// Unpaywall).
	Email string `json:"email,omitempty" yaml:"email,omitempty"`

	// BatchSize is the number of PMIDs per API request (default 200).
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// RequestsPerSecond caps the outbound request rate (default 3).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`

	// MaxResults is the maximum number of search results (default 10000).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// DefaultEutils returns the E-utilities defaults used when no config file
// overrides them.
func DefaultEutils() EutilsConfig {
	return EutilsConfig{
		HTTPConfig: HTTPConfig{
			Timeout:   30 * time.Second,
			UserAgent: "pm-tools/0.1",
		},
		BatchSize:         200,
		RequestsPerSecond: 3,
		MaxResults:        10000,
	}
}

// ParseConfig holds settings for the XML-to-JSONL stage.
type ParseConfig struct {
	// Workers is the number of goroutines extracting blocks concurrently.
	// Zero or one means sequential.
	Workers int `json:"workers" yaml:"workers"`

	// Ordered preserves input order on output when Workers > 1. Keyed
	// consumers do not need it; reproducible diffs do.
	Ordered bool `json:"ordered" yaml:"ordered"`

	// Verbose logs per-record progress to stderr.
	Verbose bool `json:"verbose" yaml:"verbose"`
}

// DiffConfig holds settings for the collection diff stage.
type DiffConfig struct {
	// IgnoreFields are excluded from the field comparison.
	IgnoreFields []string `json:"ignore_fields,omitempty" yaml:"ignore_fields,omitempty"`

	// MaxExamples bounds the number of example differences in the
	// summary report (default 10).
	MaxExamples int `json:"max_examples" yaml:"max_examples"`
}

// DownloadConfig holds settings for full-text PDF retrieval.
type DownloadConfig struct {
	// OutputDir is where downloaded PDFs are written.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// Overwrite re-downloads PDFs that already exist on disk.
	Overwrite bool `json:"overwrite" yaml:"overwrite"`

	// PMCOnly restricts source lookup to PubMed Central.
	PMCOnly bool `json:"pmc_only" yaml:"pmc_only"`

	// UnpaywallOnly restricts source lookup to Unpaywall.
	UnpaywallOnly bool `json:"unpaywall_only" yaml:"unpaywall_only"`
}
