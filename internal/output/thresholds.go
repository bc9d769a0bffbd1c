package output

import (
	"fmt"
	"io"

	"github.com/torosent/casebench/internal/threshold"
)

// PrintThresholdResults writes one line per threshold result followed by a
// pass/fail tally. Nothing is written when there are no results.
func PrintThresholdResults(w io.Writer, results []threshold.Result) {
	if len(results) == 0 {
		return
	}
	fmt.Fprintln(w, "\n--- Thresholds ---")
	passed := 0
	for _, r := range results {
		fmt.Fprintln(w, r.Message)
		if r.Pass {
			passed++
		}
	}
	fmt.Fprintf(w, "%d/%d passed\n", passed, len(results))
}
