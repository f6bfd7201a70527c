/*
Package config handles the optional TOML configuration file.  A sample file:

	[logging]
	logfile = "/var/log/lmt2labels.log"
	max_log_size = 500 # MB
	max_log_age = 30   # days

	[cache]
	max_mb = 1024
	max_chunks = 0     # no limit on the number of cached chunks

	[transcode]
	workers = 1
	missing_blocks = "invalid"  # or "error"
	compression = ""            # raw, gzip, zlib, zstd or empty for source compression
	progress_interval = 1000
*/
package config

import (
	"fmt"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/janelia-flyem/lmtconvert/cache"
	"github.com/janelia-flyem/lmtconvert/convert"
	"github.com/janelia-flyem/lmtconvert/core"
)

// Config is the contents of a configuration file.
type Config struct {
	Logging   core.LogConfig
	Cache     CacheConfig
	Transcode TranscodeConfig
}

type CacheConfig struct {
	MaxMB     uint64 `toml:"max_mb"`
	MaxChunks int    `toml:"max_chunks"`
}

type TranscodeConfig struct {
	Workers          int
	MissingBlocks    string `toml:"missing_blocks"`
	Compression      string
	ProgressInterval int64 `toml:"progress_interval"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			MaxMB: 1024,
		},
		Transcode: TranscodeConfig{
			Workers:          1,
			MissingBlocks:    "invalid",
			ProgressInterval: convert.DefaultProgressInterval,
		},
	}
}

// Load reads a TOML configuration file over the defaults.
func Load(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("no TOML configuration file provided")
	}
	c := Default()
	if _, err := toml.DecodeFile(filename, c); err != nil {
		return nil, fmt.Errorf("could not decode TOML config: %v", err)
	}
	if err := c.convertPathsToAbsolute(filename); err != nil {
		return nil, fmt.Errorf("could not convert relative paths to absolute paths in TOML config: %v", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) convertPathsToAbsolute(configPath string) error {
	var err error
	configDir := filepath.Dir(configPath)

	// [logging].logfile
	if c.Logging.Logfile != "" {
		c.Logging.Logfile, err = core.ConvertToAbsolute(c.Logging.Logfile, configDir)
		if err != nil {
			return fmt.Errorf("error converting logfile setting to absolute path")
		}
	}
	return nil
}

// Validate checks settings that can't be checked by decoding.
func (c *Config) Validate() error {
	if c.Cache.MaxChunks < 0 {
		return fmt.Errorf("[cache] max_chunks must be >= 0, got %d", c.Cache.MaxChunks)
	}
	if c.Transcode.Workers < 0 {
		return fmt.Errorf("[transcode] workers must be >= 0, got %d", c.Transcode.Workers)
	}
	if c.Transcode.ProgressInterval < 0 {
		return fmt.Errorf("[transcode] progress_interval must be >= 0, got %d", c.Transcode.ProgressInterval)
	}
	if _, err := convert.ParseMissingBlockPolicy(c.Transcode.MissingBlocks); err != nil {
		return fmt.Errorf("[transcode] %v", err)
	}
	if c.Transcode.Compression != "" {
		if _, err := convert.ParseCompression(c.Transcode.Compression); err != nil {
			return fmt.Errorf("[transcode] %v", err)
		}
	}
	return nil
}

// ChunkCache returns the chunk cache bounds.
func (c *Config) ChunkCache() cache.Config {
	return cache.Config{
		MaxBytes:   c.Cache.MaxMB * core.Mega,
		MaxEntries: c.Cache.MaxChunks,
	}
}

// Options returns conversion options for the given containers and datasets.
func (c *Config) Options(inputRef, inputDataset, outputRef, outputDataset string) (convert.Options, error) {
	missing, err := convert.ParseMissingBlockPolicy(c.Transcode.MissingBlocks)
	if err != nil {
		return convert.Options{}, err
	}
	return convert.Options{
		InputRef:         inputRef,
		InputDataset:     inputDataset,
		OutputRef:        outputRef,
		OutputDataset:    outputDataset,
		Workers:          c.Transcode.Workers,
		ProgressInterval: c.Transcode.ProgressInterval,
		Missing:          missing,
		Compression:      c.Transcode.Compression,
		Cache:            c.ChunkCache(),
	}, nil
}
