package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"strconv"

	"mythra/pkg/constants"
	"mythra/pkg/errors"

	"github.com/spf13/afero"
)

// Config represents the configuration loaded from the JSON file
type Config struct {
	Seed     string `json:"seed"`      // Seed as hex string
	Nonce    uint32 `json:"nonce"`     // First nonce
	Count    int    `json:"count"`     // Number of consecutive programs
	Workers  int    `json:"workers"`   // Parallel generators, 0 for GOMAXPROCS
	DataPath string `json:"data_path"` // Pebble program cache, empty to disable
	DumpDir  string `json:"dump_dir"`  // Directory for binary dumps, empty to disable
	Trace    bool   `json:"trace"`     // Log the generator trace
}

func defaultConfig() Config {
	return Config{Count: 1}
}

func loadConfig(fs afero.Fs, path string) (Config, error) {
	config := defaultConfig()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return config, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// flagValues holds the command line flags; applyFlags copies the ones that
// were set explicitly over the config.
type flagValues struct {
	seed     *string
	nonce    *uint32
	count    *int
	workers  *int
	dataPath *string
	dumpDir  *string
	trace    *bool
}

func registerFlags(fset *flag.FlagSet) (configPath *string, fv flagValues) {
	configPath = fset.String("config-path", "", "Path to a JSON configuration file")
	fv.seed = fset.String("seed", "", "Seed as hex string")
	fv.nonce = new(uint32)
	fset.Func("nonce", "First nonce (32-bit)", func(s string) error {
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return fmt.Errorf("nonce must be a 32-bit unsigned integer: %w", err)
		}
		*fv.nonce = uint32(n)
		return nil
	})
	fv.count = fset.Int("count", 1, "Number of consecutive programs to generate")
	fv.workers = fset.Int("workers", 0, "Parallel generators (0 for GOMAXPROCS)")
	fv.dataPath = fset.String("data-path", "", "Path to the program cache directory")
	fv.dumpDir = fset.String("dump-dir", "", "Directory to write binary program dumps to")
	fv.trace = fset.Bool("trace", false, "Log the generator trace")
	return configPath, fv
}

func (fv flagValues) applyFlags(fset *flag.FlagSet, config *Config) {
	fset.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			config.Seed = *fv.seed
		case "nonce":
			config.Nonce = *fv.nonce
		case "count":
			config.Count = *fv.count
		case "workers":
			config.Workers = *fv.workers
		case "data-path":
			config.DataPath = *fv.dataPath
		case "dump-dir":
			config.DumpDir = *fv.dumpDir
		case "trace":
			config.Trace = *fv.trace
		}
	})
}

func (c Config) seedBytes() ([]byte, error) {
	seed, err := hex.DecodeString(c.Seed)
	if err != nil {
		return nil, errors.WrapPreconditionError(err, "invalid seed hex")
	}
	if len(seed) > constants.GeneratorMaxSeedSize {
		return nil, errors.PreconditionErrorf("seed must be at most %d bytes, got %d", constants.GeneratorMaxSeedSize, len(seed))
	}
	return seed, nil
}

func (c Config) validate() error {
	if c.Count < 1 {
		return fmt.Errorf("count must be positive, got %d", c.Count)
	}
	if uint64(c.Nonce)+uint64(c.Count) > 1<<32 {
		return fmt.Errorf("nonce range %d+%d overflows 32 bits", c.Nonce, c.Count)
	}
	_, err := c.seedBytes()
	return err
}
