package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	cfgPkg "github.com/xhad/askpdf/pkg/config"
	"github.com/xhad/askpdf/pkg/gateway"
	"github.com/xhad/askpdf/pkg/loader"
	"github.com/xhad/askpdf/pkg/logger"
	"github.com/xhad/askpdf/pkg/session"
	"github.com/xhad/askpdf/pkg/watcher"
)

type Config struct {
	ConfigPath string
	APIURL     string
	TopK       int
	Streaming  bool
	WatchDir   string
	LogFile    string
	Files      []string
}

func main() {
	flags := parseFlags()

	cfg, err := cfgPkg.LoadConfig(flags.ConfigPath)
	if err != nil {
		log.Fatal(err)
	}
	applyFlags(cfg, flags)

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %v", e)
		}
		os.Exit(2)
	}

	if err := run(cfg, flags.Files); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() Config {
	var config Config

	flag.StringVar(&config.ConfigPath, "config", "", "Path to config file")
	flag.StringVar(&config.APIURL, "api-url", "", "Backend API base URL, including /api")
	flag.IntVar(&config.TopK, "top-k", 0, "Retrieval chunks per query (1-10)")
	flag.BoolVar(&config.Streaming, "stream", true, "Stream answers as they are generated")
	flag.StringVar(&config.WatchDir, "watch", "", "Directory to watch for new PDFs")
	flag.StringVar(&config.LogFile, "log-file", "", "Log file path")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [file.pdf|dir ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	config.Files = flag.Args()

	return config
}

// applyFlags overrides config values with the flags given on the command line.
func applyFlags(cfg *cfgPkg.Config, flags Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "api-url":
			cfg.API.BaseURL = flags.APIURL
		case "top-k":
			cfg.Session.TopK = flags.TopK
		case "stream":
			cfg.Session.Streaming = flags.Streaming
		case "watch":
			cfg.Watch.Dir = flags.WatchDir
		case "log-file":
			cfg.Log.File = flags.LogFile
		}
	})
}

func run(cfg *cfgPkg.Config, files []string) error {
	zl := logger.NewWithConfig(logger.LoggerConfig{
		FilePath:   cfg.Log.File,
		Level:      cfg.Log.Level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer zl.Sync()

	backend, err := gateway.NewWithConfig(gateway.GatewayConfig{
		BaseURL:        cfg.API.BaseURL,
		HealthPath:     cfg.API.HealthPath,
		HealthTimeout:  cfg.API.HealthTimeout,
		RequestTimeout: cfg.API.RequestTimeout,
		Logger:         zl,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize gateway: %w", err)
	}

	controller, err := session.NewWithConfig(backend, session.ControllerConfig{
		TopK:       cfg.Session.TopK,
		Streaming:  cfg.Session.Streaming,
		UploadRate: cfg.API.UploadRate,
		Logger:     zl,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize session: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app := &App{
		controller: controller,
		loader:     loader.NewWithConfig(loader.LoaderConfig{Extensions: cfg.Watch.Extensions}),
		status:     newStatusCache(controller, cfg.UI.StatusTTL),
		showSource: cfg.UI.ShowSources,
		out:        color.Output,
	}

	app.printHeader(ctx, cfg.API.BaseURL)

	if len(files) > 0 {
		app.upload(ctx, files)
	}

	if cfg.Watch.Dir != "" {
		w, err := watcher.NewWithConfig(watcher.WatcherConfig{Extensions: cfg.Watch.Extensions, Logger: zl})
		if err != nil {
			return fmt.Errorf("failed to initialize watcher: %w", err)
		}
		defer w.Stop()

		paths, err := w.Watch(ctx, cfg.Watch.Dir)
		if err != nil {
			return fmt.Errorf("failed to watch %s: %w", cfg.Watch.Dir, err)
		}
		color.Blue("Watching %s for new documents", cfg.Watch.Dir)
		go app.autoUpload(ctx, paths)
	}

	return app.repl(ctx, os.Stdin)
}

// interruptible returns a context cancelled by Ctrl-C. Once stop is called
// Ctrl-C goes back to ending the program.
func interruptible(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt)
}

func isExit(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "exit", "quit", "/exit", "/quit":
		return true
	}
	return false
}
