// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main implements the sift CLI, which turns local files and the
// repositories of a hosted account into records in a local collection.
//
// Usage:
//
//	sift init                     Write ~/.sift/config.yaml
//	sift local [dir]              Ingest a directory tree (default: home dir)
//	sift github [owner]           Ingest every repository of an owner
//	sift repos [owner]            List the repositories of an owner
//	sift status                   Show collections and checkpoints
//	sift version                  Print version information
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/sift/internal/output"
	"github.com/kraklabs/sift/internal/ui"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GlobalFlags are accepted before the command name.
type GlobalFlags struct {
	ConfigPath  string
	JSON        bool
	Quiet       bool
	NoColor     bool
	Debug       bool
	MetricsAddr string
}

func main() {
	var globals GlobalFlags
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.StringVar(&globals.ConfigPath, "config", "", "Path to config file (default: ~/.sift/config.yaml)")
	flag.BoolVar(&globals.JSON, "json", false, "Print results as JSON")
	flag.BoolVarP(&globals.Quiet, "quiet", "q", false, "Suppress progress output")
	flag.BoolVar(&globals.NoColor, "no-color", false, "Disable colored output")
	flag.BoolVar(&globals.Debug, "debug", false, "Enable debug logging")
	flag.StringVar(&globals.MetricsAddr, "metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")

	// Everything after the command name belongs to the command.
	flag.CommandLine.SetInterspersed(false)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `sift - personal content ingestion

sift collects the files under a directory and the files of every
repository an account owns, and stores each one as a record with
its content and metadata in a local collection.

Usage:
  sift [global options] <command> [options]

Commands:
  init      Write a config file with defaults
  local     Ingest a local directory tree
  github    Ingest the repositories of a hosted account
  repos     List the repositories of an account
  status    Show stored collections and checkpoints
  version   Print version information

Global Options:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  sift local                       Ingest your home directory
  sift local ~/notes --workers 4   Ingest one directory with 4 workers
  sift github octocat              Ingest every repository of octocat
  sift --json status               Collection counts as JSON

Configuration:
  ~/.sift/config.yaml, overridden by SIFT_GITHUB_TOKEN (or GITHUB_TOKEN)
  and SIFT_GITHUB_USER.

For detailed command help: sift <command> --help

`)
	}

	flag.Parse()

	if *showVersion {
		runVersion(nil, globals)
		return
	}

	if globals.JSON {
		globals.Quiet = true
	}
	ui.InitColors(globals.NoColor)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "init":
		runInit(cmdArgs, globals)
	case "local":
		runLocal(cmdArgs, globals)
	case "github":
		runGitHub(cmdArgs, globals)
	case "repos":
		runRepos(cmdArgs, globals)
	case "status":
		runStatus(cmdArgs, globals)
	case "version":
		runVersion(cmdArgs, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

// newLogger builds the process logger. Logs go to stderr so stdout stays
// clean for --json output.
func newLogger(globals GlobalFlags) *slog.Logger {
	level := slog.LevelInfo
	if globals.Debug {
		level = slog.LevelDebug
	} else if globals.Quiet {
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// startMetrics serves /metrics on addr until ctx is done. An empty addr
// disables the endpoint.
func startMetrics(ctx context.Context, addr string, logger *slog.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("metrics.http.start", "addr", addr, "path", "/metrics")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics.http.error", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("shutdown.signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

func runVersion(_ []string, globals GlobalFlags) {
	if globals.JSON {
		_ = output.JSON(map[string]string{"version": version, "commit": commit, "built": date})
		return
	}
	fmt.Printf("sift version %s\n", version)
	fmt.Printf("commit: %s\n", commit)
	fmt.Printf("built: %s\n", date)
}
