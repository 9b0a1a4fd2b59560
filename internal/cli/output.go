package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/JonMunkholm/coach/internal/core"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// maxFailuresShown caps the FailedRows listed in text output.
const maxFailuresShown = 20

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeResult(w io.Writer, r *core.ImportResult, format OutputFormat) error {
	if format == FormatJSON {
		return writeJSON(w, r)
	}

	fmt.Fprintf(w, "Imported %s for meet %s (%s)\n", r.Dataset, r.MeetID, r.ImportID)
	if len(r.Files) > 0 {
		fmt.Fprintf(w, "  Files:     %s\n", strings.Join(r.Files, ", "))
	}
	fmt.Fprintf(w, "  Rows:      %d\n", r.Rows)
	fmt.Fprintf(w, "  Swimmers:  %d (%d new)\n", r.Swimmers, r.SwimmersInserted)
	fmt.Fprintf(w, "  Times:     %d new, %d already loaded\n", r.TimesInserted, r.TimesExisting)
	fmt.Fprintf(w, "  Skipped:   %d\n", r.Skipped())
	fmt.Fprintf(w, "  Duration:  %s\n", r.Duration.Round(time.Millisecond))
	if r.History != nil {
		fmt.Fprintf(w, "  Ledger id: %d\n", r.History.ID)
	}

	if len(r.FailedRows) == 0 {
		return nil
	}
	fmt.Fprintln(w, "\nSkipped records:")
	for i, f := range r.FailedRows {
		if i == maxFailuresShown {
			fmt.Fprintf(w, "  ... and %d more\n", len(r.FailedRows)-maxFailuresShown)
			break
		}
		loc := f.FileName
		if f.LineNumber > 0 {
			loc = fmt.Sprintf("%s:%d", f.FileName, f.LineNumber)
		}
		if f.Swimmer != "" {
			loc += " [" + f.Swimmer + "]"
		}
		fmt.Fprintf(w, "  %s: %s\n", loc, f.Reason)
	}
	return nil
}

func writeHistory(w io.Writer, meetID string, rows []core.ImportHistory, format OutputFormat) error {
	if format == FormatJSON {
		if rows == nil {
			rows = []core.ImportHistory{}
		}
		return writeJSON(w, struct {
			MeetID  string               `json:"meetId"`
			Imports []core.ImportHistory `json:"imports"`
		}{meetID, rows})
	}

	if len(rows) == 0 {
		fmt.Fprintf(w, "No imports for meet %s.\n", meetID)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLOADED\tDATASET\tSWIMMERS\tROWS\tDURATION")
	for _, h := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\n",
			h.ID,
			h.LoadTime.Format(time.RFC3339),
			h.Dataset,
			h.NumSwimmers,
			h.NumEntries,
			time.Duration(h.DurationMs)*time.Millisecond,
		)
	}
	return tw.Flush()
}

func writeMeet(w io.Writer, m core.Meet, format OutputFormat) error {
	if format == FormatJSON {
		return writeJSON(w, m)
	}
	fmt.Fprintf(w, "%s  %s  %s to %s  %s\n",
		m.ID, m.Name,
		m.StartDate.Format(meetDateLayout), m.EndDate.Format(meetDateLayout),
		m.Course,
	)
	return nil
}

func writeMeets(w io.Writer, meets []core.Meet, format OutputFormat) error {
	if format == FormatJSON {
		if meets == nil {
			meets = []core.Meet{}
		}
		return writeJSON(w, meets)
	}
	if len(meets) == 0 {
		fmt.Fprintln(w, "No meets with results.")
		return nil
	}
	for _, m := range meets {
		if err := writeMeet(w, m, format); err != nil {
			return err
		}
	}
	return nil
}

func writeTimes(w io.Writer, meetID string, dataset core.Dataset, rows []core.MeetTime, format OutputFormat) error {
	if format == FormatJSON {
		if rows == nil {
			rows = []core.MeetTime{}
		}
		return writeJSON(w, struct {
			MeetID  string          `json:"meetId"`
			Dataset core.Dataset    `json:"dataset"`
			Times   []core.MeetTime `json:"times"`
		}{meetID, dataset, rows})
	}

	if len(rows) == 0 {
		fmt.Fprintf(w, "No %s times for meet %s.\n", dataset, meetID)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SWIMMER\tNAME\tEVENT\tCOURSE\tTIME\tDATE")
	for _, t := range rows {
		date := ""
		if !t.TimeDate.IsZero() {
			date = t.TimeDate.Format(meetDateLayout)
		}
		fmt.Fprintf(tw, "%s\t%s %s\t%d %s\t%s\t%s\t%s\n",
			t.SwimmerID,
			t.FirstName, t.LastName,
			t.Distance, t.Style,
			t.Course,
			formatSwimTime(t.TimeMs),
			date,
		)
	}
	return tw.Flush()
}

// formatSwimTime renders milliseconds as MM:SS.CC.
func formatSwimTime(ms int) string {
	if ms <= 0 {
		return "-"
	}
	return fmt.Sprintf("%02d:%02d.%02d", ms/60000, ms/1000%60, ms%1000/10)
}
