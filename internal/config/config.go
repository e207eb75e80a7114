// Package config loads the JSON configuration, .env file and MWP_* overrides shared by the
// commands.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/lab/mwp-encoder/internal/logging"
	"github.com/lab/mwp-encoder/pkg/cache"
	"github.com/lab/mwp-encoder/pkg/equation"
	"github.com/lab/mwp-encoder/pkg/feature"
	"github.com/lab/mwp-encoder/pkg/schema"
	"github.com/lab/mwp-encoder/pkg/tokenizer"
)

// MaxWorkers caps the default worker count.
const MaxWorkers = 16

// DefaultWorkers returns the logical core count capped at MaxWorkers.
func DefaultWorkers() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		return 1
	}
	if n > MaxWorkers {
		n = MaxWorkers
	}
	return n
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Data: &DataConfig{
			Output:       "features.parquet",
			MaxTestSteps: feature.DefaultMaxTestSteps,
		},
		Labeling: &LabelingConfig{
			Mode:             equation.ModeIncremental.String(),
			Constants:        map[string]int{"1": 0, "PI": 1},
			ConstantValues:   []float64{1.0, 3.14},
			AllowReplacement: false,
		},
		Tokenizer: &TokenizerConfig{
			Kind:     tokenizer.KindWordPiece,
			Encoding: tokenizer.DefaultEncoding,
			Marker:   feature.DefaultMarker,
			NewToken: feature.DefaultNewToken,
		},
		Verification: &VerificationConfig{
			Policy:    feature.PolicyWarn.String(),
			Small:     equation.DefaultTolerance.Small,
			Large:     equation.DefaultTolerance.Large,
			Threshold: equation.DefaultTolerance.Threshold,
		},
		Build: &BuildConfig{
			Workers:     DefaultWorkers(),
			MaxWarnings: 10,
			Progress:    true,
			WriteLabels: true,
		},
		Collate: &CollateConfig{
			BatchSize: 16,
			Seed:      42,
		},
		Logging: &logging.LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Server: &ServerConfig{
			Addr:    ":8080",
			GinMode: "release",
		},
	}
}

// LoadEnv loads KEY=VALUE pairs from the given .env files (".env" when none are given).
// Missing files are not an error; existing environment variables win.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads filename over the defaults and then applies MWP_* overrides. A missing or
// empty filename yields the defaults.
func Load(filename string) (*Config, error) {
	cfg := Default()

	if filename != "" {
		data, err := os.ReadFile(filename)
		switch {
		case err == nil:
			if replacesConstants(data) {
				cfg.Labeling.Constants = nil
			}
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, err
		}
	}

	cfg.fillSections()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// replacesConstants reports whether data sets labeling.constants. json.Unmarshal merges
// into an existing map, so the default table must be dropped first.
func replacesConstants(data []byte) bool {
	var probe struct {
		Labeling *struct {
			Constants json.RawMessage `json:"constants"`
		} `json:"labeling"`
	}
	if json.Unmarshal(data, &probe) != nil || probe.Labeling == nil {
		return false
	}
	return probe.Labeling.Constants != nil
}

// fillSections restores sections a config file set to null.
func (c *Config) fillSections() {
	d := Default()
	if c.Data == nil {
		c.Data = d.Data
	}
	if c.Labeling == nil {
		c.Labeling = d.Labeling
	}
	if c.Tokenizer == nil {
		c.Tokenizer = d.Tokenizer
	}
	if c.Verification == nil {
		c.Verification = d.Verification
	}
	if c.Build == nil {
		c.Build = d.Build
	}
	if c.Collate == nil {
		c.Collate = d.Collate
	}
	if c.Logging == nil {
		c.Logging = d.Logging
	}
	if c.Server == nil {
		c.Server = d.Server
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"MWP_INPUT":      &c.Data.Input,
		"MWP_OUTPUT":     &c.Data.Output,
		"MWP_FORMAT":     &c.Data.Format,
		"MWP_MODE":       &c.Labeling.Mode,
		"MWP_TOKENIZER":  &c.Tokenizer.Kind,
		"MWP_VOCAB":      &c.Tokenizer.VocabPath,
		"MWP_ENCODING":   &c.Tokenizer.Encoding,
		"MWP_POLICY":     &c.Verification.Policy,
		"MWP_CACHE":      &c.Build.CachePath,
		"MWP_LOG_LEVEL":  &c.Logging.Level,
		"MWP_LOG_OUTPUT": &c.Logging.Output,
		"MWP_ADDR":       &c.Server.Addr,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"MWP_WORKERS":    &c.Build.Workers,
		"MWP_LIMIT":      &c.Data.Limit,
		"MWP_BATCH_SIZE": &c.Collate.BatchSize,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = n
	}
	return nil
}

// Validate checks enumerations and the constant table.
func (c *Config) Validate() error {
	if _, err := equation.ParseMode(c.Labeling.Mode); err != nil {
		return err
	}
	if _, err := feature.ParsePolicy(c.Verification.Policy); err != nil {
		return err
	}
	if c.Data.Format != "" {
		if _, err := schema.ParseFormat(c.Data.Format); err != nil {
			return err
		}
	}
	switch strings.ToLower(c.Tokenizer.Kind) {
	case "", tokenizer.KindWordPiece, tokenizer.KindTiktoken:
	default:
		return fmt.Errorf("unknown tokenizer kind %q", c.Tokenizer.Kind)
	}
	if _, err := c.ConstantTable(); err != nil {
		return err
	}
	if c.Build.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Build.Workers)
	}
	if c.Collate.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.Collate.BatchSize)
	}
	v := c.Verification
	if v.Small < 0 || v.Large < 0 || v.Threshold < 0 {
		return fmt.Errorf("tolerances must not be negative")
	}
	switch c.Server.GinMode {
	case "", "debug", "release", "test":
	default:
		return fmt.Errorf("unknown gin mode %q", c.Server.GinMode)
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	if !logging.ValidFormat(c.Logging.Format) {
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}

// Mode returns the parsed labeling mode.
func (c *Config) Mode() (equation.Mode, error) {
	return equation.ParseMode(c.Labeling.Mode)
}

// ConstantTable builds the table from the labeling section; nil when no constants are set.
func (c *Config) ConstantTable() (*equation.ConstantTable, error) {
	if len(c.Labeling.Constants) == 0 && len(c.Labeling.ConstantValues) == 0 {
		return nil, nil
	}
	return equation.NewConstantTable(c.Labeling.Constants, c.Labeling.ConstantValues)
}

// Tolerance returns the verification tolerance.
func (c *Config) Tolerance() equation.Tolerance {
	return equation.Tolerance{
		Small:     c.Verification.Small,
		Large:     c.Verification.Large,
		Threshold: c.Verification.Threshold,
	}
}

// TokenizerOptions maps the tokenizer section to tokenizer.Options.
func (c *Config) TokenizerOptions() tokenizer.Options {
	t := c.Tokenizer
	return tokenizer.Options{
		Kind:       t.Kind,
		VocabPath:  t.VocabPath,
		Encoding:   t.Encoding,
		Lowercase:  t.Lowercase,
		PadTokenID: t.PadTokenID,
	}
}

// Format resolves the record format, detecting it from the input path when unset.
func (c *Config) Format() (schema.Format, error) {
	if c.Data.Format == "" {
		return schema.DetectFormat(c.Data.Input), nil
	}
	return schema.ParseFormat(c.Data.Format)
}

// AssemblerOptions maps the data, tokenizer and verification sections to feature.Options.
func (c *Config) AssemblerOptions() (feature.Options, error) {
	format, err := c.Format()
	if err != nil {
		return feature.Options{}, err
	}
	policy, err := feature.ParsePolicy(c.Verification.Policy)
	if err != nil {
		return feature.Options{}, err
	}
	return feature.Options{
		Format:              format,
		Marker:              c.Tokenizer.Marker,
		MarkerPattern:       c.Tokenizer.MarkerPattern,
		Collapse:            c.Tokenizer.Collapse,
		NewToken:            c.Tokenizer.NewToken,
		Policy:              policy,
		Tolerance:           c.Tolerance(),
		TestSplit:           c.TestSplit(),
		MaxTestSteps:        c.Data.MaxTestSteps,
		StepFilter:          c.Data.StepFilter,
		CheckDuplicateSteps: c.CheckDuplicateSteps(),
	}, nil
}

// TestSplit reports whether the test-split step limit applies, detecting it from the input
// path when unset.
func (c *Config) TestSplit() bool {
	if c.Data.TestSplit != nil {
		return *c.Data.TestSplit
	}
	return schema.IsTestSplit(c.Data.Input)
}

// CheckDuplicateSteps reports whether records are checked for repeated steps, detecting it
// from the input path when unset.
func (c *Config) CheckDuplicateSteps() bool {
	if c.Data.CheckDuplicateSteps != nil {
		return *c.Data.CheckDuplicateSteps
	}
	return schema.IsDeduplicated(c.Data.Input)
}

// Fingerprint identifies every setting and input file that changes an assembled outcome.
// The dataset and vocabulary contents are digested, so editing either in place
// invalidates cached outcomes.
func (c *Config) Fingerprint() ([]string, error) {
	b, err := json.Marshal(struct {
		Data         *DataConfig
		Labeling     *LabelingConfig
		Tokenizer    *TokenizerConfig
		Verification *VerificationConfig
		TestSplit    bool
		Duplicates   bool
	}{c.Data, c.Labeling, c.Tokenizer, c.Verification, c.TestSplit(), c.CheckDuplicateSteps()})
	if err != nil {
		return nil, err
	}
	parts := []string{string(b)}
	for _, path := range []string{c.Data.Input, c.Tokenizer.VocabPath} {
		if path == "" {
			parts = append(parts, "")
			continue
		}
		digest, err := cache.FileDigest(path)
		if err != nil {
			return nil, err
		}
		parts = append(parts, digest)
	}
	return parts, nil
}
