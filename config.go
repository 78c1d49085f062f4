package gohomework

import "path/filepath"

// Config holds all configuration for the homework processor.
type Config struct {
	// HomeworkDir is the watched folder for incoming documents. The
	// processing/ and results/ subfolders live inside it unless
	// overridden below.
	HomeworkDir string `json:"homework_dir" yaml:"homework_dir"`

	// ResultsDir is where result files and finished documents land.
	// If empty, defaults to <HomeworkDir>/results.
	ResultsDir string `json:"results_dir" yaml:"results_dir"`

	// ProcessingDir is where documents are parked while a run is
	// active. If empty, defaults to <HomeworkDir>/processing.
	ProcessingDir string `json:"processing_dir" yaml:"processing_dir"`

	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to <HomeworkDir>/gohomework.db.
	DBPath string `json:"db_path" yaml:"db_path"`

	// Oracle is the multimodal model endpoint both pipeline calls go
	// through.
	Oracle LLMConfig `json:"oracle" yaml:"oracle"`

	// Temperature controls sampling on oracle calls.
	Temperature float64 `json:"temperature" yaml:"temperature"`

	// OracleAttempts is the number of attempts per oracle call.
	OracleAttempts int `json:"oracle_attempts" yaml:"oracle_attempts"`

	// OracleRetryDelay is the pause between failed attempts, in
	// seconds.
	OracleRetryDelay int `json:"oracle_retry_delay" yaml:"oracle_retry_delay"`

	// ImageMaxDim caps both sides of extracted images, in pixels.
	ImageMaxDim int `json:"image_max_dim" yaml:"image_max_dim"`

	// ImageQuality is the JPEG quality for re-encoded images (1-100).
	ImageQuality int `json:"image_quality" yaml:"image_quality"`

	// Formats lists the file extensions the watcher picks up,
	// dot included.
	Formats []string `json:"formats" yaml:"formats"`

	// Concurrency is the number of problems answered in parallel.
	// 1 answers sequentially.
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// Rasterizer is the external tool used to snapshot PDF pages that
	// carry no embedded images. Empty uses pdftoppm from PATH; "none"
	// disables page snapshots.
	Rasterizer string `json:"rasterizer" yaml:"rasterizer"`
}

// LLMConfig configures the oracle's model endpoint.
type LLMConfig struct {
	Provider string `json:"provider" yaml:"provider"` // qwen, openai, ollama, gemini, custom
	Model    string `json:"model" yaml:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key"`
}

// DefaultConfig returns a Config with the stock processing settings.
// The watch folder defaults to ./homework; the API key still has to
// come from the config file or environment.
func DefaultConfig() Config {
	return Config{
		HomeworkDir: "homework",
		Oracle: LLMConfig{
			Provider: "qwen",
			Model:    "qwen-vl-max",
		},
		Temperature:      0.3,
		OracleAttempts:   3,
		OracleRetryDelay: 2,
		ImageMaxDim:      512,
		ImageQuality:     80,
		Formats:          []string{".pdf"},
		Concurrency:      1,
	}
}

// ResultsPath returns the folder where results and finished documents
// land.
func (c Config) ResultsPath() string {
	if c.ResultsDir != "" {
		return c.ResultsDir
	}
	return filepath.Join(c.HomeworkDir, "results")
}

// ProcessingPath returns the folder documents are parked in mid-run.
func (c Config) ProcessingPath() string {
	if c.ProcessingDir != "" {
		return c.ProcessingDir
	}
	return filepath.Join(c.HomeworkDir, "processing")
}

// DatabasePath returns the SQLite database location.
func (c Config) DatabasePath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(c.HomeworkDir, "gohomework.db")
}
