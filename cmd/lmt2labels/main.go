package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/janelia-flyem/lmtconvert/config"
	"github.com/janelia-flyem/lmtconvert/convert"
	"github.com/janelia-flyem/lmtconvert/core"
)

const helpMessage = `
lmt2labels converts an N5 label multiset dataset into a uint64 label dataset with the
same dimensions and block size.  Each voxel gets the first label of its multiset.

Usage: lmt2labels [options]

	-i, -input-n5         =string   Input N5 container (path, file://, s3:// or gs:// reference)
	-id, -input-dataset   =string   Label multiset dataset within the input container
	-o, -output-n5        =string   Output N5 container, created if necessary
	-od, -output-dataset  =string   Output dataset (default: same as input dataset)

	-config        =string   TOML configuration file
	-workers       =number   Number of blocks converted concurrently (default 1)
	-cache-mb      =number   Memory budget in MB for cached source chunks (default 1024)
	-compression   =string   Output compression: raw, gzip, zlib, zstd (default: source compression)
	-missing       =string   Treatment of absent source blocks: "invalid" (default) or "error"

	-verbose    (flag)    Run in verbose mode.
	-h, -help   (flag)    Show help message
`

type params struct {
	inputN5, inputDataset   string
	outputN5, outputDataset string

	configFile  string
	workers     int
	cacheMB     uint64
	compression string
	missing     string

	verbose bool
	help    bool
}

// returns nil params if the arguments can't be parsed, after printing usage.
func parseArgs(args []string, output io.Writer) (*params, *flag.FlagSet) {
	var p params
	fs := flag.NewFlagSet("lmt2labels", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprint(output, helpMessage)
	}
	fs.StringVar(&p.inputN5, "i", "", "")
	fs.StringVar(&p.inputN5, "input-n5", "", "")
	fs.StringVar(&p.inputDataset, "id", "", "")
	fs.StringVar(&p.inputDataset, "input-dataset", "", "")
	fs.StringVar(&p.outputN5, "o", "", "")
	fs.StringVar(&p.outputN5, "output-n5", "", "")
	fs.StringVar(&p.outputDataset, "od", "", "")
	fs.StringVar(&p.outputDataset, "output-dataset", "", "")
	fs.StringVar(&p.configFile, "config", "", "")
	fs.IntVar(&p.workers, "workers", 1, "")
	fs.Uint64Var(&p.cacheMB, "cache-mb", 1024, "")
	fs.StringVar(&p.compression, "compression", "", "")
	fs.StringVar(&p.missing, "missing", "", "")
	fs.BoolVar(&p.verbose, "verbose", false, "")
	fs.BoolVar(&p.help, "h", false, "")
	fs.BoolVar(&p.help, "help", false, "")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return &params{help: true}, fs
		}
		return nil, fs
	}
	return &p, fs
}

// loadConfig reads the config file if given and applies any command line overrides.
func loadConfig(p *params, fs *flag.FlagSet) (*config.Config, error) {
	cfg := config.Default()
	if p.configFile != "" {
		var err error
		if cfg, err = config.Load(p.configFile); err != nil {
			return nil, err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "workers":
			cfg.Transcode.Workers = p.workers
		case "cache-mb":
			cfg.Cache.MaxMB = p.cacheMB
		case "compression":
			cfg.Transcode.Compression = p.compression
		case "missing":
			cfg.Transcode.MissingBlocks = p.missing
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	p, fs := parseArgs(args, stdout)
	if p == nil {
		return 2
	}
	if p.help {
		fs.Usage()
		return 0
	}
	if p.inputN5 == "" || p.inputDataset == "" || p.outputN5 == "" {
		fmt.Fprintf(stderr, "Must specify -input-n5, -input-dataset and -output-n5.\n")
		fs.Usage()
		return 2
	}

	cfg, err := loadConfig(p, fs)
	if err != nil {
		fmt.Fprintf(stderr, "Bad configuration: %v\n", err)
		fs.Usage()
		return 2
	}
	if p.verbose {
		core.SetLogMode(core.DebugMode)
	}
	cfg.Logging.SetLogger()
	defer core.Shutdown()

	opts, err := cfg.Options(p.inputN5, p.inputDataset, p.outputN5, p.outputDataset)
	if err != nil {
		fmt.Fprintf(stderr, "Bad configuration: %v\n", err)
		return 2
	}

	timedLog := core.NewTimeLog()
	if err := convert.Run(context.Background(), opts); err != nil {
		if coord, found := convert.BlockCoord(err); found {
			fmt.Fprintf(stderr, "Conversion failed at block %s: %v\n", coord, err)
		} else {
			fmt.Fprintf(stderr, "Conversion failed: %v\n", err)
		}
		timedLog.Errorf("Conversion failed: %v", err)
		return 1
	}
	timedLog.Infof("Converted %s:%s", p.inputN5, p.inputDataset)
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
