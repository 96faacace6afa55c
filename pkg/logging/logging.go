// Package logging wires up the process-wide slog handler and prints
// the end-of-run summary.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"github.com/baycat-io/baycat/pkg/executor"
)

// Setup installs a tinted slog handler on stderr as the default
// logger. quiet raises the level so only warnings and errors surface;
// verbose lowers it to debug.
func Setup(quiet, verbose bool) {
	level := slog.LevelInfo
	if quiet {
		level = slog.LevelWarn
	}
	if verbose {
		level = slog.LevelDebug
	}

	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})
	slog.SetDefault(slog.New(handler))
}

// PrintSummary writes the human-readable end-of-run report to stdout.
// In quiet mode only failures are shown.
func PrintSummary(r *executor.Report, duration time.Duration, quiet bool) {
	if quiet && !r.Failed() {
		return
	}

	fmt.Println()
	fmt.Printf("Uploaded: %d files (%s)\n", r.Uploaded, humanize.IBytes(uint64(r.BytesUploaded)))
	if r.Recorded > 0 {
		fmt.Printf("Recorded: %d directory/symlink entries\n", r.Recorded)
	}
	fmt.Printf("Updated metadata: %d\n", r.Updated)
	fmt.Printf("Deleted: %d\n", r.Deleted)
	if len(r.Failures) > 0 {
		fmt.Printf("Failed: %d\n", len(r.Failures))
		for _, f := range r.Failures {
			fmt.Printf("  %s %s: %v\n", f.Kind, f.Path, f.Err)
		}
	}
	if r.CommitErr != nil {
		fmt.Printf("Manifest commit FAILED: %v\n", r.CommitErr)
		fmt.Println("The remote manifest may be stale relative to bucket contents; run with --reconcile to recover.")
	}
	fmt.Printf("Duration: %s\n", duration.Round(time.Millisecond))
}
