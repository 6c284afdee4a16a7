package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"raisemoney/indexer"
)

func runExport(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("export", stderr, "Usage: raise-cli export --dsn DSN --out FILE [--campaign ID]")
	var (
		dsn        string
		out        string
		campaignID uint64
	)
	fs.StringVar(&dsn, "dsn", "", "event index DSN (sqlite path or postgres:// URL)")
	fs.StringVar(&out, "out", "", "parquet file to write")
	fs.Uint64Var(&campaignID, "campaign", 0, "restrict to one campaign (0 exports every event)")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	dsn, out = strings.TrimSpace(dsn), strings.TrimSpace(out)
	if dsn == "" {
		return printError(stderr, "--dsn is required")
	}
	if out == "" {
		return printError(stderr, "--out is required")
	}
	db, err := indexer.Open(dsn)
	if err != nil {
		return printError(stderr, fmt.Sprintf("open index: %v", err))
	}
	ix, err := indexer.New(db, slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
	if err != nil {
		return printError(stderr, fmt.Sprintf("open index: %v", err))
	}
	defer ix.Close()
	count, err := ix.ExportParquet(context.Background(), out, campaignID)
	if err != nil {
		return printError(stderr, fmt.Sprintf("export: %v", err))
	}
	fmt.Fprintf(stdout, "Exported %d events to %s\n", count, out)
	return 0
}
