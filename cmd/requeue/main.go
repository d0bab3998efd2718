package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"media-pipeline/internal/catalog"
)

const (
	// Default timeout for catalog operations
	defaultTimeout = 30 * time.Second
	// Default database directory path
	defaultDatabaseDir = "/database"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	// Create a context that cancels on interrupt signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	// Get database directory from env or default
	databaseDir := os.Getenv("DATABASE_DIR")
	if databaseDir == "" {
		databaseDir = defaultDatabaseDir
	}
	dbPath := filepath.Join(databaseDir, "pipeline.db")

	cat, err := catalog.New(ctx, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to open catalog: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure DATABASE_DIR is set correctly (current: %s)\n", databaseDir)
		os.Exit(1)
	}
	defer func() {
		if err := cat.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close catalog: %v\n", err)
		}
	}()

	switch command {
	case "requeue":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Error: requeue needs at least one file id")
			printUsage()
			os.Exit(1)
		}
		if !requeueFiles(ctx, cat, os.Args[2:]) {
			os.Exit(1)
		}
	case "status":
		showStatus(ctx, cat)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage()
		os.Exit(1)
	}
}

// sanitizeCommand returns a safe representation of a command string for
// display, replacing anything outside [a-zA-Z0-9_-] with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage() {
	fmt.Println("Media Pipeline Queue Management")
	fmt.Println("")
	fmt.Println("Usage: requeue <command>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  requeue <id> [id...]  - Move FAILED files back to QUEUED")
	fmt.Println("  status                - Show queue counts")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Printf("  DATABASE_DIR - Path to database directory (default: %s)\n", defaultDatabaseDir)
	fmt.Println("")
	fmt.Println("Requeued files are picked up the next time the pipeline checks its")
	fmt.Println("queue. The source must be re-supplied to the intake directory first;")
	fmt.Println("processing consumes the intake artifact even on failure.")
}

func requeueFiles(ctx context.Context, cat *catalog.Catalog, ids []string) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	ok := true
	for _, id := range ids {
		file, err := cat.GetFile(ctx, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", id, err)
			ok = false
			continue
		}
		if file.Status != catalog.StatusFailed {
			fmt.Fprintf(os.Stderr, "Error: %s is %s, only FAILED files can be requeued\n", id, file.Status)
			ok = false
			continue
		}
		if err := cat.Requeue(ctx, id); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to requeue %s: %v\n", id, err)
			ok = false
			continue
		}
		fmt.Printf("Requeued %s (was: %s)\n", id, file.Notes)
	}
	return ok
}

func showStatus(ctx context.Context, cat *catalog.Catalog) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	depth, err := cat.CountQueued(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to query queue: %v\n", err)
		return
	}
	fmt.Printf("Status: %d file(s) queued\n", depth)
}
