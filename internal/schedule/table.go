package schedule

import (
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

const tableTimeFormat = "2006-01-02 15:04:05 MST"

// RenderTable formats a job snapshot as an ASCII table for logs and the
// schedule API. Jobs without an alias show a truncated id instead.
func RenderTable(jobs []JobInfo, now time.Time) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Alias", "Tags", "Time Left", "Next Run", "Previous Run"})

	for _, j := range jobs {
		alias := j.Alias
		if alias == "" {
			alias = shortID(j.ID)
		}
		prev := "-"
		if !j.PrevRun.IsZero() {
			prev = j.PrevRun.Format(tableTimeFormat)
		}
		t.AppendRow(table.Row{
			alias,
			strings.Join(j.Tags, ", "),
			j.DueAt.Sub(now).Round(time.Second).String(),
			j.DueAt.Format(tableTimeFormat),
			prev,
		})
	}

	return t.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
