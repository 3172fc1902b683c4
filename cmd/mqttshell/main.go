// Package main is the companion interactive client of spec.md §4.11: it
// dials a running daemon's Debug Tap socket, feeds every arriving Debug
// Message through internal/debugshell's filter/history/step machinery, and
// reads simple line commands from stdin to drive it. Grounded on the
// teacher's cmd/consumer/main.go run()-returns-exit-code idiom; no teacher
// file models a REPL, so the command loop itself follows no prior example.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ibs-source/mqttpool/internal/debugshell"
	"github.com/ibs-source/mqttpool/internal/debugtap"
)

func main() {
	os.Exit(run())
}

func run() int {
	socketPath := flag.String("socket", "/tmp/mqttpool-debug.sock", "path to the daemon's Debug Tap socket")
	historySize := flag.Int("history", 1024, "message history capacity")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tap, err := debugshell.DialTap(ctx, *socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mqttshell: %v\n", err)
		return 1
	}
	defer tap.Close()

	shell := debugshell.NewShell(*historySize)
	format := debugshell.FormatCompact

	incoming := make(chan tapRead, 64)
	go pump(tap, incoming)

	stdin := bufio.NewScanner(os.Stdin)
	inputLines := make(chan string)
	go scanLines(stdin, inputLines)

	fmt.Println("mqttshell connected. Type 'help' for commands.")
	for {
		select {
		case em, ok := <-incoming:
			if !ok {
				fmt.Println("mqttshell: tap connection closed")
				return 0
			}
			if em.Err != nil {
				fmt.Fprintf(os.Stderr, "mqttshell: read error: %v\n", em.Err)
				return 1
			}
			if entry, show := shell.Ingest(em.Message); show {
				printEntry(shell, entry, format)
			}
		case line, ok := <-inputLines:
			if !ok {
				return 0
			}
			if strings.TrimSpace(line) == "quit" || strings.TrimSpace(line) == "exit" {
				return 0
			}
			format = handleCommand(shell, tap, format, line)
		}
	}
}

// tapRead pairs one Debug Message read off the tap socket with the error
// that ended the stream, if any.
type tapRead struct {
	Message debugtap.Message
	Err     error
}

func pump(tap *debugshell.TapClient, out chan<- tapRead) {
	defer close(out)
	for {
		m, err := tap.ReadMessage()
		out <- tapRead{Message: m, Err: err}
		if err != nil {
			return
		}
	}
}

func scanLines(s *bufio.Scanner, out chan<- string) {
	defer close(out)
	for s.Scan() {
		out <- s.Text()
	}
}

func printEntry(shell *debugshell.Shell, entry debugshell.Entry, format debugshell.Format) {
	out, err := shell.RenderMessage(entry.Message, format, debugshell.JSONOptions{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "mqttshell: render error: %v\n", err)
		return
	}
	fmt.Printf("#%d %s\n", entry.ID, out)
}

func handleCommand(shell *debugshell.Shell, tap *debugshell.TapClient, format debugshell.Format, line string) debugshell.Format {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return format
	}

	switch fields[0] {
	case "help":
		printHelp()
	case "filter":
		if err := shell.SetFilter(strings.TrimSpace(strings.TrimPrefix(line, "filter"))); err != nil {
			fmt.Fprintf(os.Stderr, "mqttshell: %v\n", err)
		}
	case "format":
		if len(fields) >= 2 {
			return parseFormat(fields[1], format)
		}
	case "step":
		shell.Step.Step()
	case "continue":
		shell.Step.Continue()
	case "next":
		out, err := shell.Next(format, debugshell.JSONOptions{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "mqttshell: %v\n", err)
			return format
		}
		fmt.Println(out)
	case "bookmark":
		if name, ok := shell.Bookmarks.AddLast(); ok {
			fmt.Printf("bookmarked as %s\n", name)
		}
	case "bookmarks":
		for _, l := range shell.Bookmarks.List() {
			if l.Stale {
				fmt.Printf("%s -> #%d (stale)\n", l.Name, l.ID)
				continue
			}
			fmt.Printf("%s -> #%d %s\n", l.Name, l.ID, l.Summary)
		}
	case "stats":
		printStats(shell)
	case "ping":
		if err := tap.Ping(); err != nil {
			fmt.Fprintf(os.Stderr, "mqttshell: %v\n", err)
		}
	case "command":
		runCommand(tap, fields[1:])
	default:
		fmt.Printf("unrecognized command: %s\n", fields[0])
	}
	return format
}

func printHelp() {
	fmt.Println(`commands:
  filter <expr>       set the active filter (no expression clears it)
  format <name>       compact|table|vertical|json|hex
  step                switch to step mode
  continue            resume streaming mode
  next                display the next queued message (step mode)
  bookmark            bookmark the newest message
  bookmarks           list bookmarks
  stats                show topic/direction/latency statistics
  ping                send a ping frame to the tap
  command <name> k=v  delegate a named command to the daemon
  quit                exit`)
}

func parseFormat(name string, fallback debugshell.Format) debugshell.Format {
	switch name {
	case "compact":
		return debugshell.FormatCompact
	case "table":
		return debugshell.FormatTable
	case "vertical":
		return debugshell.FormatVertical
	case "json":
		return debugshell.FormatJSON
	case "hex":
		return debugshell.FormatHex
	default:
		fmt.Printf("unknown format %q\n", name)
		return fallback
	}
}

func printStats(shell *debugshell.Shell) {
	stats := shell.Stats()
	fmt.Println("by topic:")
	for topic, count := range stats.ByTopic {
		fmt.Printf("  %s: %d\n", topic, count)
	}
	fmt.Println("by direction:")
	for dir, count := range stats.ByDirection {
		fmt.Printf("  %s: %d\n", dir, count)
	}
	fmt.Println("latency:")
	for bucket, count := range stats.Latency.Buckets {
		fmt.Printf("  %s: %d\n", bucket, count)
	}
	fmt.Println("topic tree:")
	fmt.Println(stats.Tree.Render())
}

func runCommand(tap *debugshell.TapClient, args []string) {
	if len(args) == 0 {
		fmt.Println("usage: command <name> [key=value ...]")
		return
	}
	name := args[0]
	kv := make(map[string]any, len(args)-1)
	for _, pair := range args[1:] {
		k, v, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			kv[k] = n
			continue
		}
		kv[k] = v
	}
	if err := tap.Command(name, kv); err != nil {
		fmt.Fprintf(os.Stderr, "mqttshell: %v\n", err)
	}
}
