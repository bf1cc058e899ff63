// vision runs the colour-target tracker: frames in, target bearings out to
// the robot controller, annotated JPEG stream on stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/teslashibe/go-vision/internal/config"
	"github.com/teslashibe/go-vision/internal/log"
	"github.com/teslashibe/go-vision/pkg/pipeline"
	"github.com/teslashibe/go-vision/pkg/settings"
	"github.com/teslashibe/go-vision/pkg/web"
)

type flags struct {
	configPath string
	logLevel   string
	noStream   bool
	web        bool
	webAddr    string
	check      bool
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "Configuration document (overrides VISION_CONFIG)")
	flag.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL and log.level)")
	flag.BoolVar(&f.noStream, "no-stream", false, "Do not write the JPEG stream to stdout")
	flag.BoolVar(&f.web, "web", false, "Serve the dashboard even if web.enabled is false")
	flag.StringVar(&f.webAddr, "web-addr", "", "Dashboard listen address (overrides web.addr)")
	flag.BoolVar(&f.check, "check", false, "Validate the configuration and exit")
	flag.Parse()
	return f
}

func main() {
	f := parseFlags()

	path := f.configPath
	if path == "" {
		path = config.ConfigPathRequired(config.ConfigPath(""))
	}
	vc, err := settings.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vision: %v\n", err)
		os.Exit(1)
	}

	level := f.logLevel
	if level == "" {
		level = config.LogLevel(vc.LogLevel)
	}
	log.Init(level)
	logger := log.L()

	if server := config.NTServer(); server != "" {
		vc.Doc.Set("output.networktable.server", server)
	}
	if f.check {
		os.Exit(check(vc))
	}

	if err := run(vc, f); err != nil {
		logger.Error("vision stopped", "error", err)
		os.Exit(1)
	}
}

// check prints the resolved pipeline and reports unknown variants.
func check(vc *settings.VisionConfig) int {
	names := vc.Pipeline
	fmt.Fprintf(os.Stderr, "input:     %s", names.Input)
	if names.Fallback != "" {
		fmt.Fprintf(os.Stderr, " (fallback %s)", names.Fallback)
	}
	fmt.Fprintf(os.Stderr, "\nthreshold: %s\nfilters:   %s\noutput:    %s\ntracked:   %d\n",
		names.Threshold, strings.Join(names.Filters, ", "), names.Output, vc.Tracking.NumTracked)
	if err := pipeline.Default.Check(names); err != nil {
		fmt.Fprintf(os.Stderr, "vision: %v\n", err)
		return 1
	}
	fmt.Fprintln(os.Stderr, "ok")
	return 0
}

func run(vc *settings.VisionConfig, f flags) error {
	logger := log.L()
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	p, err := pipeline.Build(ctx, vc, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.Warn("close pipeline", "error", err)
		}
	}()

	var opts pipeline.Options
	if vc.Stream.Enabled && !f.noStream {
		opts.Stream = os.Stdout
	}
	if vc.Web.Enabled || f.web {
		addr := vc.Web.Addr
		if f.webAddr != "" {
			addr = f.webAddr
		}
		srv := web.NewServer(addr, vc, logger)
		srv.StartAsync(ctx)
		defer srv.Shutdown()
		opts.Observer = srv
	}

	return pipeline.NewRunner(p, vc, opts, logger).Run(ctx)
}
