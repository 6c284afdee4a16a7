package main

import (
	"fmt"
	"io"
	"strings"
	"time"
)

func devUsage() string {
	return strings.Join([]string{
		"Usage: raise-cli dev <subcommand> [flags]",
		"",
		"Subcommands:",
		"  advance --by DURATION   move the manual clock forward (e.g. 72h, 30d)",
		"  now                     print the ledger time",
	}, "\n")
}

func runDevCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, devUsage())
		return 1
	}
	switch args[0] {
	case "advance":
		fs := newFlagSet("dev advance", stderr, devUsage())
		var by string
		fs.StringVar(&by, "by", "", "duration to advance")
		if !parseFlags(fs, args[1:], stderr) {
			return 1
		}
		d, err := parseDuration(by)
		if err != nil {
			return printError(stderr, err.Error())
		}
		return invoke("dev_increaseTime", map[string]interface{}{"seconds": int64(d / time.Second)}, stdout, stderr)
	case "now":
		fs := newFlagSet("dev now", stderr, devUsage())
		if !parseFlags(fs, args[1:], stderr) {
			return 1
		}
		return invoke("dev_now", nil, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown dev subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, devUsage())
		return 1
	}
}

// parseDuration accepts Go durations plus a whole-day "Nd" form.
func parseDuration(raw string) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, fmt.Errorf("--by is required")
	}
	if strings.HasSuffix(trimmed, "d") {
		var days int
		if _, err := fmt.Sscanf(strings.TrimSuffix(trimmed, "d"), "%d", &days); err != nil || days < 0 {
			return 0, fmt.Errorf("invalid --by %q", raw)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(trimmed)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid --by %q", raw)
	}
	if d%time.Second != 0 {
		return 0, fmt.Errorf("--by must be a whole number of seconds")
	}
	return d, nil
}
