package format

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"statsvault/internal/models"
)

// Formatter abstracts output formatting.
type Formatter interface {
	Write(w io.Writer, payload any) error
}

// JSONFormatter writes JSON output.
type JSONFormatter struct {
	Indent bool
}

// Write writes JSON payload to a writer.
func (f JSONFormatter) Write(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	if f.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(payload)
}

// EntryTable renders entries as aligned columns.
func EntryTable(w io.Writer, entries []models.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "ID\tREMAINING\tBUDGET\tPAYLOAD\tLAST FETCH"); err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n",
			e.ID, e.Remaining, e.Budget, yesNo(e.HasPayload), lastFetch(e.LastFetchedAt)); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// Time formats t as RFC3339 in UTC.
func Time(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func lastFetch(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return Time(*t)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "-"
}
