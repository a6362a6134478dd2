// Command hassmon watches entity state changes on a hub.
//
// It connects to the hub's websocket API, subscribes to the entities
// named in the configuration file and prints every state change,
// reconnecting automatically when the connection drops.
//
// Usage:
//
//	hassmon [flags]
//
// Flags:
//
//	-config string     Configuration file path (default "hassmon.yaml")
//	-discover          Browse the local network for hubs and exit
//	-interactive       Start an interactive prompt alongside the monitor
//	-trace string      Append trace records to this file
//	-log-level string  Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Find hubs on the local network
//	hassmon -discover
//
//	# Watch the entities from hassmon.yaml
//	HASSMON_TOKEN=... hassmon -config hassmon.yaml
//
//	# Watch with an interactive prompt and a trace file
//	hassmon -config hassmon.yaml -interactive -trace run.hlog
package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hassmon/hassmon-go/pkg/config"
	"github.com/hassmon/hassmon-go/pkg/discovery"
	"github.com/hassmon/hassmon-go/pkg/log"
	"github.com/hassmon/hassmon-go/pkg/model"
	"github.com/hassmon/hassmon-go/pkg/monitor"
)

const stopTimeout = 5 * time.Second

var (
	configPath  = flag.String("config", "hassmon.yaml", "Configuration file path")
	discover    = flag.Bool("discover", false, "Browse the local network for hubs and exit")
	interactive = flag.Bool("interactive", false, "Start an interactive prompt alongside the monitor")
	tracePath   = flag.String("trace", "", "Append trace records to this file")
	logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
)

func main() {
	flag.Parse()
	stdlog.SetFlags(stdlog.Ltime | stdlog.Lmicroseconds)

	if *discover {
		if err := runDiscover(); err != nil {
			stdlog.Fatalf("Discovery failed: %v", err)
		}
		return
	}

	if err := run(); err != nil {
		stdlog.Fatalf("Error: %v", err)
	}
}

func runDiscover() error {
	fmt.Println("Browsing for hubs (10s)...")

	ctx, cancel := context.WithTimeout(context.Background(), discovery.DefaultFindTimeout)
	defer cancel()

	hubs, err := discovery.NewBrowser(discovery.Config{}).Browse(ctx)
	if err != nil {
		return err
	}

	found := 0
	for hub := range hubs {
		found++
		fmt.Printf("%s\n", hub.InstanceName)
		fmt.Printf("  URL:      %s\n", hub.BaseURL)
		fmt.Printf("  Version:  %s\n", hub.Version)
		if len(hub.Addresses) > 0 {
			fmt.Printf("  Addresses: %v\n", hub.Addresses)
		}
	}
	if found == 0 {
		fmt.Println("No hubs found.")
	}
	return nil
}

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	monCfg, err := cfg.MonitorConfig()
	if err != nil {
		return err
	}
	monCfg.Logger = newLogger(*logLevel)

	if *tracePath == "" {
		*tracePath = cfg.TraceFile
	}
	if *tracePath != "" {
		trace, err := log.NewFileLogger(*tracePath)
		if err != nil {
			return fmt.Errorf("opening trace file: %w", err)
		}
		defer trace.Close()
		monCfg.Trace = trace
	}

	tracker := newTracker()
	monCfg.Callback = func(ev model.StateChangeEvent) {
		tracker.record(ev)
		stdlog.Printf("%s: %s -> %s", ev.EntityID, ev.OldState, ev.NewState)
	}

	m, err := monitor.New(monCfg)
	if err != nil {
		return err
	}
	if err := m.Start(); err != nil {
		return err
	}
	stdlog.Printf("Monitoring %d entities on %s", len(monCfg.Entities), monCfg.URL)

	if *interactive {
		runPrompt(m, tracker)
	} else {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		stdlog.Printf("Received signal: %v", sig)
	}

	stdlog.Println("Shutting down...")
	if err := m.Stop(stopTimeout); err != nil {
		return fmt.Errorf("stopping monitor: %w", err)
	}
	stats := m.Stats()
	stdlog.Printf("Done. %d changes dispatched, %d reconnects.", stats.Dispatched, stats.Reconnects)
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
