package main

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/hassmon/hassmon-go/pkg/model"
	"github.com/hassmon/hassmon-go/pkg/monitor"
)

// tracker keeps the most recent change per entity for the prompt.
type tracker struct {
	mu   sync.Mutex
	last map[string]model.StateChangeEvent
	seen map[string]time.Time
}

func newTracker() *tracker {
	return &tracker{
		last: make(map[string]model.StateChangeEvent),
		seen: make(map[string]time.Time),
	}
}

func (t *tracker) record(ev model.StateChangeEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[ev.EntityID] = ev
	t.seen[ev.EntityID] = time.Now()
}

func (t *tracker) lastChange(entityID string) (model.StateChangeEvent, time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ev, ok := t.last[entityID]
	return ev, t.seen[entityID], ok
}

// runPrompt runs the interactive command loop until quit or EOF.
func runPrompt(m *monitor.Monitor, tr *tracker) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "hassmon> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		fmt.Printf("Failed to create prompt: %v\n", err)
		return
	}
	defer rl.Close()

	printPromptHelp(rl)

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			return // EOF
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			printPromptHelp(rl)

		case "status", "s":
			stats := m.Stats()
			fmt.Fprintf(rl.Stdout(), "State:       %s\n", m.State())
			fmt.Fprintf(rl.Stdout(), "Dispatched:  %d\n", stats.Dispatched)
			fmt.Fprintf(rl.Stdout(), "Reconnects:  %d\n", stats.Reconnects)
			fmt.Fprintf(rl.Stdout(), "Conv. fails: %d\n", stats.ConversionFailures)

		case "entities", "e":
			entities := m.Entities()
			sort.Strings(entities)
			for _, entityID := range entities {
				if ev, when, ok := tr.lastChange(entityID); ok {
					fmt.Fprintf(rl.Stdout(), "%-40s %s (at %s)\n",
						entityID, ev.NewState, when.Format(time.TimeOnly))
				} else {
					fmt.Fprintf(rl.Stdout(), "%-40s (no change seen)\n", entityID)
				}
			}

		case "last", "l":
			if len(args) != 1 {
				fmt.Fprintln(rl.Stdout(), "Usage: last <entity_id>")
				continue
			}
			ev, when, ok := tr.lastChange(args[0])
			if !ok {
				fmt.Fprintf(rl.Stdout(), "No change seen for %s\n", args[0])
				continue
			}
			fmt.Fprintf(rl.Stdout(), "Entity:   %s\n", ev.EntityID)
			fmt.Fprintf(rl.Stdout(), "Change:   %s -> %s\n", ev.OldState, ev.NewState)
			fmt.Fprintf(rl.Stdout(), "Raw:      %q -> %q\n", ev.OldStateRaw, ev.NewStateRaw)
			fmt.Fprintf(rl.Stdout(), "Type:     %s\n", ev.DataType)
			fmt.Fprintf(rl.Stdout(), "Seen:     %s\n", when.Format(time.RFC3339))
			if ev.ForDuration != "" {
				fmt.Fprintf(rl.Stdout(), "Held for: %s\n", ev.ForDuration)
			}

		case "quit", "q", "exit":
			return

		default:
			fmt.Fprintf(rl.Stdout(), "Unknown command: %s (try \"help\")\n", cmd)
		}
	}
}

func printPromptHelp(rl *readline.Instance) {
	fmt.Fprintln(rl.Stdout(), "Commands:")
	fmt.Fprintln(rl.Stdout(), "  status (s)           Monitor state and counters")
	fmt.Fprintln(rl.Stdout(), "  entities (e)         Monitored entities with their last state")
	fmt.Fprintln(rl.Stdout(), "  last (l) <entity>    Details of the last change of one entity")
	fmt.Fprintln(rl.Stdout(), "  quit (q)             Stop and exit")
}
