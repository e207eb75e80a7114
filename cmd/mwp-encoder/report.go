package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"

	"github.com/lab/mwp-encoder/pkg/feature"
)

var (
	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#000000")).
			Background(lipgloss.Color("#FFFF00")).
			Padding(0, 1)

	noteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9CA3AF"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))
)

func heading(w io.Writer, title string) {
	fmt.Fprintln(w, headingStyle.Render(title))
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

func renderBuild(w io.Writer, run *buildRun) {
	s := run.stats

	heading(w, "BUILD")
	table := newTable(w, "RECORDS", "KEPT", "DISCARDED", "MISMATCHES", "CACHE HITS", "MAX STEPS")
	table.Append([]string{
		strconv.Itoa(s.Total),
		strconv.Itoa(s.Kept),
		strconv.Itoa(s.DiscardedTotal()),
		strconv.Itoa(s.Mismatches),
		strconv.Itoa(s.CacheHits),
		strconv.Itoa(s.MaxSteps),
	})
	table.Render()

	if s.DiscardedTotal() > 0 {
		fmt.Fprintln(w)
		heading(w, "DISCARDED")
		table = newTable(w, "REASON", "COUNT")
		for _, r := range feature.Reasons() {
			if n := s.Discarded[r]; n > 0 {
				table.Append([]string{r.String(), strconv.Itoa(n)})
			}
		}
		table.Render()
	}

	fmt.Fprintln(w)
	heading(w, "STEPS")
	table = newTable(w, "STEPS", "RECORDS")
	for _, sc := range s.StepHistogram() {
		table.Append([]string{strconv.Itoa(sc.Steps), strconv.Itoa(sc.Count)})
	}
	table.Render()

	if run.manifest != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, noteStyle.Render(fmt.Sprintf("run %s: %s", run.manifest.RunID, run.manifest.Files["features"])))
	}
	if s.Mismatches > 0 {
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("%d kept features do not reproduce their answer", s.Mismatches)))
	}
}
