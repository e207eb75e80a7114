package config

import "github.com/lab/mwp-encoder/internal/logging"

type Config struct {
	Data         *DataConfig            `json:"data"`
	Labeling     *LabelingConfig        `json:"labeling"`
	Tokenizer    *TokenizerConfig       `json:"tokenizer"`
	Verification *VerificationConfig    `json:"verification"`
	Build        *BuildConfig           `json:"build"`
	Collate      *CollateConfig         `json:"collate"`
	Logging      *logging.LoggingConfig `json:"logging"`
	Server       *ServerConfig          `json:"server"`
}

type DataConfig struct {
	Input  string `json:"input"`
	Output string `json:"output"`
	// Format is "math23k", "complex", or empty to detect it from the input file name.
	Format       string `json:"format"`
	Limit        int    `json:"limit"`
	MaxTestSteps int    `json:"max_test_steps"`
	StepFilter   []int  `json:"step_filter"`
	// TestSplit and CheckDuplicateSteps are detected from the input path ("test",
	// "nodup") when unset.
	TestSplit           *bool `json:"test_split,omitempty"`
	CheckDuplicateSteps *bool `json:"check_duplicate_steps,omitempty"`
}

type LabelingConfig struct {
	Mode             string         `json:"mode"`
	Constants        map[string]int `json:"constants"`
	ConstantValues   []float64      `json:"constant_values"`
	AllowReplacement bool           `json:"allow_replacement"`
}

type TokenizerConfig struct {
	Kind          string   `json:"kind"`
	VocabPath     string   `json:"vocab_path"`
	Encoding      string   `json:"encoding"`
	Lowercase     bool     `json:"lowercase"`
	PadTokenID    int      `json:"pad_token_id"`
	Marker        string   `json:"marker"`
	MarkerPattern []string `json:"marker_pattern"`
	Collapse      bool     `json:"collapse"`
	NewToken      string   `json:"new_token"`
}

type VerificationConfig struct {
	Policy    string  `json:"policy"`
	Small     float64 `json:"small_tolerance"`
	Large     float64 `json:"large_tolerance"`
	Threshold float64 `json:"threshold"`
}

type BuildConfig struct {
	Workers     int    `json:"workers"`
	CachePath   string `json:"cache_path"`
	MaxWarnings int    `json:"max_warnings"`
	Progress    bool   `json:"progress"`
	WriteLabels bool   `json:"write_labels"`
}

type CollateConfig struct {
	BatchSize int   `json:"batch_size"`
	Shuffle   bool  `json:"shuffle"`
	Seed      int64 `json:"seed"`
	DropLast  bool  `json:"drop_last"`
	Dense     bool  `json:"dense"`
}

type ServerConfig struct {
	Addr    string `json:"addr"`
	GinMode string `json:"gin_mode"`
}
