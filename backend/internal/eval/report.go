package eval

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// WriteReport renders the scenario results as a plain-text comparison. The
// first result is treated as the baseline and every later scenario reports
// its deltas against it.
func WriteReport(w io.Writer, results []Result) error {
	if len(results) == 0 {
		return fmt.Errorf("no results to report")
	}

	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintln(w, "EVALUATION RESULTS")
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintln(w)

	baseline := results[0]
	for i, result := range results {
		fmt.Fprintf(w, "%s\n", result.Scenario.Name())
		fmt.Fprintln(w, strings.Repeat("-", 60))
		fmt.Fprintf(w, "  Classification accuracy: %s\n", percent(result.ClassificationAccuracy))
		fmt.Fprintf(w, "  Entity accuracy:         %s\n", percent(result.EntityAccuracy))
		fmt.Fprintf(w, "  Answer accuracy:         %s\n", percent(result.AnswerAccuracy))
		fmt.Fprintf(w, "  Avg query duration:      %s\n", duration(result.AvgQueryDuration))
		fmt.Fprintf(w, "  Items evaluated:         %d\n", len(result.Items))

		if i > 0 {
			fmt.Fprintln(w, "  Improvement over baseline:")
			fmt.Fprintf(w, "    Classification: %s\n", delta(result.ClassificationAccuracy-baseline.ClassificationAccuracy))
			fmt.Fprintf(w, "    Entities:       %s\n", delta(result.EntityAccuracy-baseline.EntityAccuracy))
			fmt.Fprintf(w, "    Answers:        %s\n", delta(result.AnswerAccuracy-baseline.AnswerAccuracy))
		}
		fmt.Fprintln(w)
	}

	failures := collectFailures(results)
	if len(failures) > 0 {
		fmt.Fprintln(w, "Failed items:")
		for _, line := range failures {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	return nil
}

// collectFailures lists every item that missed a metric, tagged with its
// scenario, so a failing run points straight at the offending questions
func collectFailures(results []Result) []string {
	var lines []string
	for _, result := range results {
		for _, item := range result.Items {
			if item.ClassificationPass && item.EntityPass && item.AnswerPass {
				continue
			}
			line := fmt.Sprintf("[%s] %s:", result.Scenario.Name(), item.ItemID)
			if !item.ClassificationPass {
				line += " classification"
			}
			if !item.EntityPass {
				line += " entities"
			}
			if !item.AnswerPass {
				line += " answer"
			}
			if item.Error != "" {
				line += " (" + item.Error + ")"
			}
			lines = append(lines, line)
		}
	}
	return lines
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

func delta(v float64) string {
	return fmt.Sprintf("%+.1f%%", v*100)
}

func duration(d time.Duration) string {
	if d == 0 {
		return "n/a"
	}
	return d.Round(time.Millisecond).String()
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
