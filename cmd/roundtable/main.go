package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

func main() {
	args := os.Args[1:]
	cmd := "run"
	if len(args) > 0 && args[0][0] != '-' {
		cmd = args[0]
		args = args[1:]
	}

	var err error
	switch cmd {
	case "run":
		err = runSimulate(args)
	case "serve":
		err = runServe(args)
	case "help", "--help", "-h":
		printHelp()
		return
	default:
		printHelp()
		err = fmt.Errorf("unknown command: %s", cmd)
	}

	if err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Fprintln(os.Stderr, `Usage: roundtable <command> [options]

Commands:
  run     Run a single consensus issue to FINALIZE and print its ledger
  serve   Start the HTTP action API and tick scheduler for a single issue
  help    Show this help message`)
}

// writeLedgerJSON prints v as indented JSON to stdout.
func writeLedgerJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
