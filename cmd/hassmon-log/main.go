// Command hassmon-log views and analyzes trace files written by
// hassmon's -trace flag.
//
// Usage:
//
//	hassmon-log <command> [flags] <file.hlog>
//
// Commands:
//
//	view     Print events in human-readable format
//	stats    Show per-category and per-entity counts
//
// Examples:
//
//	# View all events
//	hassmon-log view run.hlog
//
//	# View only state changes of one entity
//	hassmon-log view -category change -entity sensor.temperature run.hlog
//
//	# Summarize a trace
//	hassmon-log stats run.hlog
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/hassmon/hassmon-go/pkg/log"
)

const usage = `hassmon-log - trace file analyzer

Usage:
  hassmon-log <command> [flags] <file.hlog>

Commands:
  view     Print events in human-readable format
  stats    Show per-category and per-entity counts

Use "hassmon-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	var err error
	switch cmd := os.Args[1]; cmd {
	case "view":
		err = runView(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runView(args []string) error {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	connID := fs.String("conn", "", "Filter by connection id")
	direction := fs.String("direction", "", "Filter by direction: in, out")
	category := fs.String("category", "", "Filter by category: connection, auth, subscription, change, error")
	entity := fs.String("entity", "", "Filter by entity id")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("view requires exactly one trace file")
	}

	filter, err := buildFilter(*connID, *direction, *category, *entity)
	if err != nil {
		return err
	}

	r, err := log.NewFilteredReader(fs.Arg(0), filter)
	if err != nil {
		return err
	}
	defer r.Close()

	for {
		event, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Println(formatEvent(event))
	}
}

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("stats requires exactly one trace file")
	}

	r, err := log.NewReader(fs.Arg(0))
	if err != nil {
		return err
	}
	defer r.Close()

	var (
		total       int
		first, last time.Time
		byCategory  = make(map[string]int)
		byEntity    = make(map[string]int)
		connections = make(map[string]struct{})
	)
	for {
		event, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		total++
		if first.IsZero() || event.Timestamp.Before(first) {
			first = event.Timestamp
		}
		if event.Timestamp.After(last) {
			last = event.Timestamp
		}
		byCategory[event.Category.String()]++
		if event.ConnectionID != "" {
			connections[event.ConnectionID] = struct{}{}
		}
		if event.Change != nil {
			byEntity[event.Change.EntityID]++
		}
	}

	fmt.Printf("Events:      %d\n", total)
	fmt.Printf("Sessions:    %d\n", len(connections))
	if total > 0 {
		fmt.Printf("Time range:  %s .. %s\n",
			first.Format(time.RFC3339), last.Format(time.RFC3339))
	}

	fmt.Println("\nBy category:")
	for _, name := range sortedKeys(byCategory) {
		fmt.Printf("  %-14s %d\n", name, byCategory[name])
	}

	if len(byEntity) > 0 {
		fmt.Println("\nChanges by entity:")
		for _, name := range sortedKeys(byEntity) {
			fmt.Printf("  %-40s %d\n", name, byEntity[name])
		}
	}
	return nil
}

func buildFilter(connID, direction, category, entity string) (log.Filter, error) {
	filter := log.Filter{ConnectionID: connID, EntityID: entity}

	switch strings.ToLower(direction) {
	case "":
	case "in":
		d := log.DirectionIn
		filter.Direction = &d
	case "out":
		d := log.DirectionOut
		filter.Direction = &d
	default:
		return filter, fmt.Errorf("unknown direction: %s", direction)
	}

	switch strings.ToLower(category) {
	case "":
	case "connection":
		c := log.CategoryConnection
		filter.Category = &c
	case "auth":
		c := log.CategoryAuth
		filter.Category = &c
	case "subscription":
		c := log.CategorySubscription
		filter.Category = &c
	case "change":
		c := log.CategoryChange
		filter.Category = &c
	case "error":
		c := log.CategoryError
		filter.Category = &c
	default:
		return filter, fmt.Errorf("unknown category: %s", category)
	}

	return filter, nil
}

func formatEvent(event log.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-3s %-12s",
		event.Timestamp.Format("15:04:05.000"), event.Direction, event.Category)
	if event.ConnectionID != "" && len(event.ConnectionID) >= 8 {
		fmt.Fprintf(&b, " [%s]", event.ConnectionID[:8])
	}

	switch {
	case event.Conn != nil:
		fmt.Fprintf(&b, " %s", event.Conn.NewState)
		if event.Conn.Reason != "" {
			fmt.Fprintf(&b, " (%s)", event.Conn.Reason)
		}
	case event.Auth != nil:
		if event.Auth.Success {
			fmt.Fprintf(&b, " ok, hub version %s", event.Auth.HAVersion)
		} else {
			fmt.Fprintf(&b, " failed: %s", event.Auth.Message)
		}
	case event.Subscription != nil:
		sub := event.Subscription
		if !sub.Acked {
			fmt.Fprintf(&b, " %s (id %d)", sub.EntityID, sub.SubscriptionID)
		} else if sub.Success {
			fmt.Fprintf(&b, " %s confirmed", sub.EntityID)
		} else {
			fmt.Fprintf(&b, " %s rejected: %s", sub.EntityID, sub.Error)
		}
	case event.Change != nil:
		fmt.Fprintf(&b, " %s: %q -> %q",
			event.Change.EntityID, event.Change.OldState, event.Change.NewState)
	case event.Error != nil:
		fmt.Fprintf(&b, " %s", event.Error.Message)
		if event.Error.Context != "" {
			fmt.Fprintf(&b, " (%s)", event.Error.Context)
		}
	}
	return b.String()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
