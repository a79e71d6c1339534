// Package config holds the tunables of a generator run.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xyproto/env/v2"
	"go.yaml.in/yaml/v3"

	"github.com/sarchlab/armspecgen/decoder"
	"github.com/sarchlab/armspecgen/emit"
	"github.com/sarchlab/armspecgen/insts"
)

// EnvPrefix starts the names of the environment overrides.
const EnvPrefix = "ARMSPECGEN_"

// Config holds the decoder search tunables and the output settings.
type Config struct {
	// MaxSeedMasks is the number of most common fixed masks tried as seeds
	// at every node. Default: 8.
	MaxSeedMasks int `json:"max_seed_masks" yaml:"max_seed_masks"`

	// MaxMaskRuns limits the contiguous runs of a dispatch mask.
	// Default: 3.
	MaxMaskRuns int `json:"max_mask_runs" yaml:"max_mask_runs"`

	// LeafCheckCost is charged for every leaf that re-checks its encoding.
	// Default: 16.
	LeafCheckCost int `json:"leaf_check_cost" yaml:"leaf_check_cost"`

	// DepthWeight is charged per table times its depth. Default: 0.
	DepthWeight int `json:"depth_weight" yaml:"depth_weight"`

	// TableSizeWeight is charged per table times its index width.
	// Default: 0.
	TableSizeWeight int `json:"table_size_weight" yaml:"table_size_weight"`

	// MaxCandidatesPerSeed bounds the sub-masks tried per seed. Default: 64.
	MaxCandidatesPerSeed int `json:"max_candidates_per_seed" yaml:"max_candidates_per_seed"`

	// MaxFuseWidth is the widest field whose `!=` tests are folded into the
	// encoding. Default: 8.
	MaxFuseWidth int `json:"max_fuse_width" yaml:"max_fuse_width"`

	// MemoSets and MemoWays shape the memo of solved sub-problems.
	// Defaults: 1024 sets of 8 ways.
	MemoSets int `json:"memo_sets" yaml:"memo_sets"`
	MemoWays int `json:"memo_ways" yaml:"memo_ways"`

	// PackageName is the package of the generated Go decoder.
	PackageName string `json:"package_name" yaml:"package_name"`

	// LineWidth is where generated table entries wrap. Default: 100.
	LineWidth int `json:"line_width" yaml:"line_width"`
}

// Default returns a Config with the default tunables.
func Default() *Config {
	p := decoder.DefaultParams()
	o := emit.DefaultOptions()
	return &Config{
		MaxSeedMasks:         p.MaxSeedMasks,
		MaxMaskRuns:          p.MaxMaskRuns,
		LeafCheckCost:        p.LeafCheckCost,
		DepthWeight:          p.DepthWeight,
		TableSizeWeight:      p.TableSizeWeight,
		MaxCandidatesPerSeed: p.MaxCandidatesPerSeed,
		MaxFuseWidth:         insts.DefaultMaxFuseWidth,
		MemoSets:             p.MemoSets,
		MemoWays:             p.MemoWays,
		PackageName:          o.PackageName,
		LineWidth:            o.LineWidth,
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load reads a JSON or YAML file, chosen by extension, over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return config, nil
}

// Save writes the config as JSON or YAML, chosen by extension.
func (c *Config) Save(path string) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides fields from ARMSPECGEN_* variables, e.g.
// ARMSPECGEN_MAX_SEED_MASKS=16. Unset or malformed variables leave the
// field unchanged.
func (c *Config) ApplyEnv() {
	ints := []struct {
		name  string
		field *int
	}{
		{"MAX_SEED_MASKS", &c.MaxSeedMasks},
		{"MAX_MASK_RUNS", &c.MaxMaskRuns},
		{"LEAF_CHECK_COST", &c.LeafCheckCost},
		{"DEPTH_WEIGHT", &c.DepthWeight},
		{"TABLE_SIZE_WEIGHT", &c.TableSizeWeight},
		{"MAX_CANDIDATES_PER_SEED", &c.MaxCandidatesPerSeed},
		{"MAX_FUSE_WIDTH", &c.MaxFuseWidth},
		{"MEMO_SETS", &c.MemoSets},
		{"MEMO_WAYS", &c.MemoWays},
		{"LINE_WIDTH", &c.LineWidth},
	}
	for _, v := range ints {
		*v.field = env.Int(EnvPrefix+v.name, *v.field)
	}
	c.PackageName = env.Str(EnvPrefix+"PACKAGE_NAME", c.PackageName)
}

// Validate checks that the tunables are usable.
func (c *Config) Validate() error {
	if err := c.DecoderParams().Validate(); err != nil {
		return err
	}
	if c.MaxFuseWidth < 1 || c.MaxFuseWidth > 16 {
		return fmt.Errorf("max_fuse_width must be between 1 and 16, got %d", c.MaxFuseWidth)
	}
	if c.PackageName == "" {
		return fmt.Errorf("package_name must not be empty")
	}
	if c.LineWidth < 20 {
		return fmt.Errorf("line_width must be >= 20, got %d", c.LineWidth)
	}
	return nil
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// DecoderParams returns the search tunables.
func (c *Config) DecoderParams() decoder.Params {
	return decoder.Params{
		MaxSeedMasks:         c.MaxSeedMasks,
		MaxMaskRuns:          c.MaxMaskRuns,
		MaxCandidatesPerSeed: c.MaxCandidatesPerSeed,
		LeafCheckCost:        c.LeafCheckCost,
		DepthWeight:          c.DepthWeight,
		TableSizeWeight:      c.TableSizeWeight,
		MemoSets:             c.MemoSets,
		MemoWays:             c.MemoWays,
	}
}

// EmitOptions returns the settings of the Go emitter.
func (c *Config) EmitOptions() emit.Options {
	return emit.Options{PackageName: c.PackageName, LineWidth: c.LineWidth}
}
