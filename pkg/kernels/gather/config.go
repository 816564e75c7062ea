// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gather

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/gather/internal/workerspool"
	"github.com/gomlx/gather/pkg/support/sets"
	"github.com/pkg/errors"
)

// ConfigEnvVar is the environment variable with the configuration used by Default.
const ConfigEnvVar = "GOMLX_GATHER"

// Configuration keys accepted by ParseConfig.
const (
	ConfigParallelism = "parallelism"
	ConfigGrain       = "grain"
	ConfigSequential  = "sequential"
)

var knownConfigKeys = sets.MakeWith(ConfigParallelism, ConfigGrain, ConfigSequential)

// Config of a Kernel.
type Config struct {
	// Parallelism is the soft limit of workers: 0 disables parallelism, -1 makes it unlimited.
	// It defaults to runtime.NumCPU().
	Parallelism int

	// Grain is the target number of bytes copied by each parallel task. Defaults to 32KiB.
	Grain uint64

	// Sequential forces all the copying to happen in the calling goroutine.
	Sequential bool
}

// DefaultConfig returns the configuration used for an empty config string.
func DefaultConfig() Config {
	return Config{
		Parallelism: runtime.NumCPU(),
		Grain:       workerspool.DefaultTargetCostPerTask,
	}
}

// ParseConfig parses a comma-separated list of "key=value" options on top of DefaultConfig.
//
// Keys:
//
//   - parallelism=<int>: soft limit on the number of workers; 0 disables parallelism, -1 is unlimited.
//   - grain=<bytes>: target bytes copied per task, e.g. "65536" or "64KiB".
//   - sequential[=<bool>]: run all copies in the calling goroutine.
//
// Example: "parallelism=4,grain=128KiB".
func ParseConfig(config string) (Config, error) {
	c := DefaultConfig()
	for _, part := range strings.Split(config, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, hasValue := strings.Cut(part, "=")
		key = strings.TrimSpace(strings.ToLower(key))
		value = strings.TrimSpace(value)
		if !knownConfigKeys.Has(key) {
			return c, errors.Errorf("unknown gather configuration key %q in %q, valid keys are %q",
				key, config, sets.Sorted(knownConfigKeys))
		}
		if !hasValue && key != ConfigSequential {
			return c, errors.Errorf("gather configuration key %q requires a value, e.g. %q", key, key+"=...")
		}
		var err error
		switch key {
		case ConfigParallelism:
			c.Parallelism, err = strconv.Atoi(value)
			if err == nil && c.Parallelism < -1 {
				err = errors.Errorf("must be >= -1, got %d", c.Parallelism)
			}
		case ConfigGrain:
			c.Grain, err = humanize.ParseBytes(value)
			if err == nil && c.Grain == 0 {
				err = errors.New("must be > 0")
			}
		case ConfigSequential:
			c.Sequential = true
			if hasValue {
				c.Sequential, err = strconv.ParseBool(value)
			}
		}
		if err != nil {
			return c, errors.Wrapf(err, "invalid value for gather configuration %q", part)
		}
	}
	return c, nil
}

// String returns the config in the format accepted by ParseConfig.
func (c Config) String() string {
	s := fmt.Sprintf("%s=%d,%s=%d", ConfigParallelism, c.Parallelism, ConfigGrain, c.Grain)
	if c.Sequential {
		s += "," + ConfigSequential
	}
	return s
}
