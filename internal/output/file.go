package output

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/torosent/casebench/internal/runner"
	"github.com/torosent/casebench/internal/threshold"
)

// Report file formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatHTML = "html"
)

// lockTimeout bounds the wait for another writer of the same report file.
const lockTimeout = 10 * time.Second

// FileOptions controls WriteReportFile.
type FileOptions struct {
	// Format overrides the format derived from the file extension.
	Format   string
	Metadata ReportMetadata
}

// FormatForPath returns the report format implied by a file extension,
// falling back to text.
func FormatForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	case ".html", ".htm":
		return FormatHTML
	default:
		return FormatText
	}
}

// WriteReportFile writes the run report to path while holding an exclusive
// lock on path+".lock", so concurrent runs sharing a report path do not
// interleave their output.
func WriteReportFile(ctx context.Context, path string, report runner.RunReport, results []threshold.Result, opts FileOptions) error {
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = FormatForPath(path)
	}

	lock := flock.New(path + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	locked, err := lock.TryLockContext(lockCtx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to lock report file: %w", err)
	}
	if !locked {
		return fmt.Errorf("report file %s is locked by another writer", path)
	}
	defer lock.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	w := bufio.NewWriter(f)

	switch format {
	case FormatJSON:
		err = PrintJSONReport(w, NewDocument(report, results))
	case FormatYAML, "yml":
		err = PrintYAMLReport(w, NewDocument(report, results))
	case FormatHTML:
		err = GenerateHTMLReport(w, report, results, opts.Metadata)
	case FormatText:
		PrintRunSummary(w, report)
		PrintThresholdResults(w, results)
	default:
		err = fmt.Errorf("unsupported report format %q", format)
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
