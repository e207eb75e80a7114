package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lab/mwp-encoder/pkg/dataset"
	"github.com/lab/mwp-encoder/pkg/equation"
	"github.com/lab/mwp-encoder/pkg/feature"
	"github.com/lab/mwp-encoder/pkg/schema"
)

func newInspectCmd(a *app) *cobra.Command {
	var index int
	cmd := &cobra.Command{
		Use:   "inspect [record-id]",
		Short: "Label one record and print its steps",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Data.Input == "" {
				return fmt.Errorf("no input dataset given (use --input or data.input)")
			}
			asm, _, err := a.assembler()
			if err != nil {
				return err
			}
			records, _, err := dataset.LoadRecords(a.cfg.Data.Input, 0)
			if err != nil {
				return err
			}
			rec, err := pickRecord(records, args, index)
			if err != nil {
				return err
			}
			renderInspect(cmd.OutOrStdout(), rec, asm.Assemble(rec))
			return nil
		},
	}
	cmd.Flags().IntVar(&index, "index", 0, "record position when no id is given")
	return cmd
}

func pickRecord(records []schema.Record, args []string, index int) (schema.Record, error) {
	if len(args) == 1 {
		for _, r := range records {
			if r.ID == args[0] {
				return r, nil
			}
		}
		return schema.Record{}, fmt.Errorf("record %q not found", args[0])
	}
	if index < 0 || index >= len(records) {
		return schema.Record{}, fmt.Errorf("index %d outside [0,%d)", index, len(records))
	}
	return records[index], nil
}

func renderInspect(w io.Writer, rec schema.Record, res feature.Result) {
	heading(w, "RECORD "+rec.ID)
	fmt.Fprintf(w, "quantities: %v\nanswer:     %g\n", rec.NumList, rec.Answer)
	if !res.Kept() {
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("discarded (%s): %v", res.Reason, res.Err)))
		return
	}

	f := res.Feature
	fmt.Fprintf(w, "tokens:     %d, spans: %v\n", len(f.Common().InputIDs), f.Common().SpanStarts)
	fmt.Fprintln(w)

	layers := rec.Chains
	if layers == nil {
		layers = []equation.Layer{rec.Layer}
	}
	steps := equation.Layer{}
	for _, l := range layers {
		steps = append(steps, l...)
	}

	heading(w, "LABELS ("+f.Mode().String()+")")
	table := newTable(w, "HEIGHT", "STEP", "LEFT", "RIGHT", "OP", "LABEL")
	n := 0
	for h, group := range f.Heights() {
		for _, l := range group {
			row := []string{strconv.Itoa(h), strconv.Itoa(n), "", "", "", l.String()}
			if n < len(steps) {
				row[2], row[3], row[4] = steps[n].Left, steps[n].Right, steps[n].Op
			}
			table.Append(row)
			n++
		}
	}
	table.Render()

	fmt.Fprintln(w)
	if res.Mismatch {
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("labels evaluate to %g: %v", res.Value, res.Err)))
		return
	}
	fmt.Fprintln(w, noteStyle.Render(fmt.Sprintf("labels evaluate to %g", res.Value)))
}
