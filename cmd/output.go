package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/medsim/case-eval/grader"
	"github.com/medsim/case-eval/grader/engine"
	"github.com/medsim/case-eval/grader/report"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
)

// Output formats
const (
	formatJSON = "json"
	formatText = "text"
)

func setColor(disabled bool) {
	if disabled {
		color.NoColor = true
	}
}

// scoreColor shades a composite: green for 4-5, yellow for 2-3, red below.
func scoreColor(v int) string {
	s := fmt.Sprintf("%d/%d", v, grader.CompositeMax)
	switch {
	case v >= 4:
		return green(s)
	case v >= 2:
		return yellow(s)
	default:
		return red(s)
	}
}

// writeResult writes one evaluation in the requested format.
func writeResult(w io.Writer, id string, res *engine.Result, format string) error {
	switch format {
	case formatJSON:
		return res.Report.WriteJSON(w)
	case formatText:
		return writeColoredText(w, id, res.Report)
	default:
		return fmt.Errorf("unknown format %q; valid: json, text", format)
	}
}

func writeColoredText(w io.Writer, id string, r *report.ScoreReport) error {
	if id != "" {
		fmt.Fprintln(w, bold("Session "+id))
	}
	fmt.Fprintf(w, "%s %s   %s %s\n",
		bold("Communication"), scoreColor(r.CommunicationScore),
		bold("Medical Decision Making"), scoreColor(r.MDMScore))
	if r.ZeroOverride {
		fmt.Fprintln(w, red("No clinical action units: both composites forced to 0."))
	}
	if r.RubricVersion != "" {
		fmt.Fprintln(w, gray("rubric version "+r.RubricVersion))
	}
	fmt.Fprintln(w)
	return r.WriteText(w)
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
