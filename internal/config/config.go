// Package config defines difgo's persisted configuration snapshot: the
// task-file options table from spec.md §3, loaded from YAML on start and
// rewritten by the orchestrator at every state transition.
package config

import (
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Progress is the orchestrator's persisted state enum (spec.md §4.7, §GLOSSARY).
type Progress string

// Recognized Progress values, in the order the orchestrator advances
// through them.
const (
	Init                     Progress = "INIT"
	Indexed                  Progress = "INDEXED"
	FirstLoopInProgress      Progress = "FIRST_LOOP_IN_PROGRESS"
	FirstLoopDone            Progress = "FIRST_LOOP_DONE"
	SecondLoopInProgress     Progress = "SECOND_LOOP_IN_PROGRESS"
	SecondLoopDone           Progress = "SECOND_LOOP_DONE"
)

// FirstLoopConfig controls the preprocessing (thumbnail + hash) pass.
type FirstLoopConfig struct {
	ComputeHash bool `yaml:"computeHash"`
	// ShiftAmount quantizes each channel before hashing; must be in [-7,7].
	ShiftAmount int `yaml:"shiftAmount"`
	// BatchSize is the claim-batch size; 0 means "auto" (see DefaultBatchSize).
	BatchSize int  `yaml:"batchSize"`
	Parallel  bool `yaml:"parallel"`
}

// DefaultFirstLoopConfig returns the teacher-style defaults.
func DefaultFirstLoopConfig() FirstLoopConfig {
	return FirstLoopConfig{
		ComputeHash: true,
		ShiftAmount: 0,
		BatchSize:   0,
		Parallel:    true,
	}
}

// SecondLoopConfig controls the all-pairs comparison pass.
type SecondLoopConfig struct {
	// BatchSize is the block edge B.
	BatchSize        int  `yaml:"batchSize"`
	SkipMatchingHash bool `yaml:"skipMatchingHash"`
	// MatchAspectBy is the aspect-ratio tolerance. The short-circuit runs
	// only when MatchAspectByEnabled is true; the tolerance value itself
	// never disables it.
	MatchAspectBy          float64 `yaml:"matchAspectBy"`
	MatchAspectByEnabled   bool    `yaml:"matchAspectByEnabled"`
	DiffThreshold          float32 `yaml:"diffThreshold"`
	KeepNonMatchingAspects bool    `yaml:"keepNonMatchingAspects"`
	GPUProc                int     `yaml:"gpuProc"`
	CPUProc                int     `yaml:"cpuProc"`
	PreloadCount           int     `yaml:"preloadCount"`
	// GroupDistanceThreshold, when > 0, enables a fuzzier pre-check ahead
	// of the pixel diff: pairs whose goimagehash difference-hash Hamming
	// distance falls within this threshold are treated as a hash match
	// even when their stored rotation-hash strings differ. 0 disables it.
	GroupDistanceThreshold int `yaml:"groupDistanceThreshold"`
}

// DefaultSecondLoopConfig returns the teacher-style defaults.
func DefaultSecondLoopConfig() SecondLoopConfig {
	return SecondLoopConfig{
		BatchSize:              64,
		SkipMatchingHash:       true,
		MatchAspectBy:          0,
		MatchAspectByEnabled:   false,
		DiffThreshold:          200,
		KeepNonMatchingAspects: false,
		GPUProc:                0,
		CPUProc:                runtime.NumCPU(),
		PreloadCount:           2,
		GroupDistanceThreshold: 0,
	}
}

// Config is the full persisted task-file snapshot (spec.md §3 Configuration table).
type Config struct {
	PartA string `yaml:"partA"`
	PartB string `yaml:"partB"`

	Recurse           bool     `yaml:"recurse"`
	AllowedExtensions []string `yaml:"allowedExtensions"`
	IgnoreNames       []string `yaml:"ignoreNames"`
	IgnorePaths       []string `yaml:"ignorePaths"`

	CompressionTarget int  `yaml:"compressionTarget"`
	Rotate            bool `yaml:"rotate"`

	FirstLoop  FirstLoopConfig  `yaml:"firstLoop"`
	SecondLoop SecondLoopConfig `yaml:"secondLoop"`

	State Progress `yaml:"state"`

	RetainProgress bool `yaml:"retainProgress"`
	DeleteDB       bool `yaml:"deleteDb"`
	DeleteThumb    bool `yaml:"deleteThumb"`

	DBFile    string `yaml:"dbFile"`
	ThumbDir  string `yaml:"thumbDir"`
	TaskFile  string `yaml:"-"`
}

// Default returns a Config with the teacher-style conservative defaults.
func Default() *Config {
	return &Config{
		Recurse:           true,
		AllowedExtensions: []string{".jpg", ".jpeg", ".png", ".gif", ".bmp"},
		CompressionTarget: 64,
		Rotate:            false,
		FirstLoop:         DefaultFirstLoopConfig(),
		SecondLoop:        DefaultSecondLoopConfig(),
		State:             Init,
		RetainProgress:    true,
		DeleteDB:          false,
		DeleteThumb:       false,
		DBFile:            ".fast_diff.db",
		ThumbDir:          ".temp_thumb",
	}
}

// Load reads a task file snapshot from disk, following the teacher's
// FileReader/Parser split (core/config/defaultfilereader.go,
// core/config/yamlparser.go) collapsed into a single function since
// difgo has only one config shape to load.
func Load(taskFile string) (*Config, error) {
	data, err := os.ReadFile(taskFile)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.TaskFile = taskFile
	return cfg, nil
}

// Save serializes the current configuration to its task file. Called by
// the orchestrator at every state transition (spec.md §2).
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(c.TaskFile, data, 0o644)
}

// DefaultBatchSize computes the first-loop claim size when
// FirstLoop.BatchSize is 0 ("auto"): min(maxBatch, totalFiles/4/cpuCount),
// per spec.md §4.5.
func DefaultBatchSize(totalFiles, cpuCount, maxBatch int) int {
	if cpuCount < 1 {
		cpuCount = 1
	}
	size := totalFiles / 4 / cpuCount
	if size < 1 {
		size = 1
	}
	if size > maxBatch {
		size = maxBatch
	}
	return size
}
