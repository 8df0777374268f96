// Command views renders a view from a template directory to stdout.
//
//	views --views ./templates --data title=Home pages/home
//	views --config views.yaml --cache /tmp/views --ttl 10m pages/home
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/dangdungcntt/go-views"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "views:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("views", pflag.ContinueOnError)
	var (
		configPath string
		viewsDir   string
		cacheDir   string
		ttl        time.Duration
		cacheKey   string
		dataPairs  map[string]string
		dataFile   string
		debug      bool
		verbose    bool
	)
	flags.StringVarP(&configPath, "config", "c", "", "YAML config file")
	flags.StringVar(&viewsDir, "views", "", "directory holding the templates")
	flags.StringVar(&cacheDir, "cache", "", "cache rendered output in this directory")
	flags.DurationVar(&ttl, "ttl", views.DefaultCacheTTL, "cache time to live")
	flags.StringVar(&cacheKey, "key", "", "cache key (defaults to the view path)")
	flags.StringToStringVarP(&dataPairs, "data", "d", nil, "view data as key=value pairs")
	flags.StringVar(&dataFile, "data-file", "", "YAML file with view data")
	flags.BoolVar(&debug, "debug-templates", false, "print the translated templates instead of rendering")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log debug information to stderr")
	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: views [flags] <view path>")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg := &views.Config{}
	if configPath != "" {
		loaded, err := views.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if viewsDir != "" {
		cfg.Views = viewsDir
	}
	if cacheDir != "" {
		cfg.Cache.Dir = cacheDir
	}
	if flags.Changed("ttl") || cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = ttl
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	level, err := cfg.Level()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if debug {
		engine := views.NewEngine(cfg.Views)
		if err := engine.Load(); err != nil {
			return err
		}
		return engine.WriteDebug(os.Stdout)
	}

	if flags.NArg() != 1 {
		flags.Usage()
		return errors.New("expected exactly one view path")
	}

	data, err := loadData(dataFile, dataPairs)
	if err != nil {
		return err
	}

	factory, err := cfg.NewFactory(logger)
	if err != nil {
		return err
	}
	view := factory.View(flags.Arg(0))
	if cfg.Cache.Dir != "" {
		view.Cache(cfg.Cache.TTL, cacheKey)
	}
	content, err := view.Render(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, content)
	return err
}

// loadData reads the data file, then lets key=value pairs override it.
func loadData(dataFile string, pairs map[string]string) (views.Data, error) {
	data := views.Data{}
	if dataFile != "" {
		raw, err := os.ReadFile(dataFile)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("parse %s: %w", dataFile, err)
		}
	}
	for key, value := range pairs {
		data[key] = value
	}
	return data, nil
}
