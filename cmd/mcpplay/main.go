// Command mcpplay is the MCP Play coordination daemon.
//
// Launched with --stdio it is a proxy candidate: it finds a live primary
// (launching one if needed) and bridges the agent's stdio to the primary's
// HTTP endpoint. Launched without --stdio it is a primary candidate: it
// claims the published record and serves the MCP tool surface over HTTP.
// Stdout is reserved for RPC traffic in proxy mode, so diagnostics go to
// the log file and, on fatal errors, a single line on stderr.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/whitneyland/mcpplay-core/bridge"
	"github.com/whitneyland/mcpplay-core/config"
	"github.com/whitneyland/mcpplay-core/discovery"
	"github.com/whitneyland/mcpplay-core/logger"
	"github.com/whitneyland/mcpplay-core/mcp"
	"github.com/whitneyland/mcpplay-core/music"
	"github.com/whitneyland/mcpplay-core/paths"
	"github.com/whitneyland/mcpplay-core/scores"
)

const shutdownGrace = 5 * time.Second

type options struct {
	Stdio    bool   `long:"stdio" description:"bridge stdio to the primary (proxy mode)"`
	Host     string `long:"host" description:"host to bind or dial (overrides settings)"`
	Port     int    `long:"port" description:"port to bind or dial (overrides settings)"`
	LogLevel string `long:"log-level" description:"log level" choice:"debug" choice:"info" choice:"warn" choice:"error"`
	Version  bool   `long:"version" description:"print version and exit"`
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts := &options{}
	if _, err := flags.ParseArgs(opts, args); err != nil {
		if flags.WroteHelp(err) {
			return 0
		}
		// go-flags already printed the problem to stderr.
		return 1
	}
	if opts.Version {
		fmt.Printf("mcpplay %s\n", mcp.ServerVersion)
		return 0
	}

	settings, err := config.Load()
	if err != nil {
		return fatal(err)
	}
	if err := applyFlags(settings, opts); err != nil {
		return fatal(err)
	}

	if err := initLogging(opts.Stdio, settings.LogLevel); err != nil {
		return fatal(err)
	}
	defer logger.Close()

	if opts.Stdio {
		return runProxy(settings)
	}
	return runPrimary(settings)
}

// fatal prints the single stderr diagnostic line and returns the failure
// exit code.
func fatal(err error) int {
	fmt.Fprintf(os.Stderr, "mcpplay: %v\n", err)
	return 1
}

// applyFlags layers explicit flag values over the loaded settings.
func applyFlags(s *config.Settings, opts *options) error {
	if opts.Host != "" {
		s.Host = opts.Host
	}
	if opts.Port != 0 {
		s.Port = opts.Port
	}
	if opts.LogLevel != "" {
		s.LogLevel = opts.LogLevel
	}
	return s.Validate()
}

// initLogging sends logs to the proxy or primary log file. The two modes
// log to separate files so a proxy and the primary it launched do not
// interleave.
func initLogging(proxy bool, level string) error {
	path, err := logger.DefaultLogPath()
	if proxy {
		path, err = logger.ProxyLogPath()
	}
	if err != nil {
		return err
	}
	if err := logger.Init(path); err != nil {
		return err
	}
	logger.SetLevel(logLevel(level))
	return nil
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// runProxy finds or launches a primary, then bridges stdio to it until the
// agent closes stdin.
func runProxy(settings *config.Settings) int {
	log := logger.WithComponent("main")

	store, err := discovery.NewStore()
	if err != nil {
		return fatal(err)
	}
	candidate := discovery.NewCandidate(store, settings.Host, settings.Port,
		settings.PollInterval(), settings.DiscoveryTimeout())

	rec, err := candidate.EnsurePrimary()
	if err != nil {
		log.Error("primary discovery failed", "error", err)
		return fatal(err)
	}
	log.Info("bridging stdio to primary", "endpoint", rec.Endpoint(), "primary_pid", rec.PID)

	if err := bridge.New(os.Stdin, os.Stdout, rec.Endpoint()).Run(); err != nil {
		log.Error("bridge failed", "error", err)
		return fatal(err)
	}
	log.Info("proxy exiting")
	return 0
}

// runPrimary claims the primary record, serves HTTP until a signal, then
// shuts down and withdraws the record.
func runPrimary(settings *config.Settings) int {
	log := logger.WithComponent("main")

	store, err := discovery.NewStore()
	if err != nil {
		return fatal(err)
	}
	candidate := discovery.NewCandidate(store, settings.Host, settings.Port,
		settings.PollInterval(), settings.DiscoveryTimeout())

	if err := candidate.ClaimPrimary(); err != nil {
		if errors.Is(err, discovery.ErrPrimaryRunning) {
			// Redundant launch. Yield to the live primary.
			log.Info("yielding to live primary", "reason", err.Error())
			fmt.Fprintf(os.Stderr, "mcpplay: %v\n", err)
			return 0
		}
		return fatal(err)
	}

	imagesDir, err := paths.ImagesDir()
	if err != nil {
		return fatal(err)
	}
	if err := os.MkdirAll(imagesDir, 0755); err != nil {
		return fatal(fmt.Errorf("failed to create images directory: %w", err))
	}

	cache := scores.NewCache(settings.CacheCapacity)
	server := mcp.NewServer(cache,
		mcp.WithPlayer(music.NewPlayer()),
		mcp.WithEngraver(music.NewEngraver(imagesDir)),
	)
	httpServer := mcp.NewHTTPServer(server, imagesDir)

	port, err := httpServer.Listen(settings.Host, settings.Port)
	if err != nil {
		return fatal(err)
	}

	rec, err := store.Write(settings.Host, port)
	if err != nil {
		if errors.Is(err, discovery.ErrRecordConflict) {
			// Another primary won the record between our claim check and
			// the verify read. Yield.
			log.Info("lost the record race, yielding")
			fmt.Fprintf(os.Stderr, "mcpplay: %v\n", err)
			return 0
		}
		return fatal(err)
	}
	log.Info("primary serving", "host", settings.Host, "port", port, "instance", rec.Instance)

	serveErr := make(chan error, 1)
	go func() { serveErr <- httpServer.Serve() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		<-serveErr
		store.RemoveIfOwned(rec.Instance)
		log.Info("primary stopped")
		return 0
	case err := <-serveErr:
		store.RemoveIfOwned(rec.Instance)
		if err != nil {
			log.Error("http server failed", "error", err)
			return fatal(err)
		}
		return 0
	}
}
