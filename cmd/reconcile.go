/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	conciliacion "github.com/Dussand/conciliacion-Gmoney"
	"github.com/Dussand/conciliacion-Gmoney/model"
)

type reconcileFlags struct {
	ledger   string
	provider string
	operator string
	out      string
}

// reconcileCommands compares two local exports and prints both views. Nothing is
// stored; --out also writes the report workbook.
func reconcileCommands(app *conciliacionInstance) *cobra.Command {
	var flags reconcileFlags
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "reconcile two local exports without storing the run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOffline(cmd.Context(), app, flags, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&flags.ledger, "ledger", "", "Metabase operations export (xlsx, csv or json)")
	cmd.Flags().StringVar(&flags.provider, "provider", "", "GMoney movements export (xlsx, csv, json or txt)")
	cmd.Flags().StringVar(&flags.operator, "operator", os.Getenv("USER"), "Name recorded as the run operator")
	cmd.Flags().StringVar(&flags.out, "out", "", "Write the report workbook to this path")
	_ = cmd.MarkFlagRequired("ledger")
	_ = cmd.MarkFlagRequired("provider")
	return cmd
}

func runOffline(ctx context.Context, app *conciliacionInstance, flags reconcileFlags, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := conciliacion.NewOffline(app.cnf)
	if err != nil {
		return err
	}

	ledger, err := os.Open(flags.ledger)
	if err != nil {
		return err
	}
	defer ledger.Close()
	provider, err := os.Open(flags.provider)
	if err != nil {
		return err
	}
	defer provider.Close()

	report, err := c.Preview(ctx, conciliacion.RunInput{
		Operator:     flags.operator,
		LedgerFile:   filepath.Base(flags.ledger),
		Ledger:       ledger,
		ProviderFile: filepath.Base(flags.provider),
		Provider:     provider,
	})
	if err != nil {
		return err
	}

	if err := printReport(w, report); err != nil {
		return err
	}
	if flags.out == "" {
		return nil
	}

	data, err := c.Workbook(report)
	if err != nil {
		return err
	}
	if err := os.WriteFile(flags.out, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nReport written to %s\n", flags.out)
	return nil
}

func printReport(w io.Writer, report *model.Report) error {
	run := report.Run
	if run.Window != nil {
		fmt.Fprintf(w, "Window: %s - %s\n", run.Window.Start.Format("2006-01-02 15:04"), run.Window.End.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(w, "Rows: metabase %d, gmoney %d\n\n", run.LedgerRows, run.ProviderRows)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "fecha\ttotal_metabase\ttotal_gmoney\tdiferencias\testado")
	for _, c := range run.Comparisons {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.Date, amount(c.TotalLedger.Decimal.String(), c.TotalLedger.Valid),
			amount(c.TotalProvider.Decimal.String(), c.TotalProvider.Valid), amount(c.Difference.Decimal.String(), c.Difference.Valid), c.State)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "\n%s\n", warning.Message)
	}

	view := report.Differences
	fmt.Fprintf(w, "\nDiscrepancies: %d\n", len(view.Rows))
	if len(view.Rows) == 0 {
		return nil
	}
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, col := range view.Columns {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, col)
	}
	fmt.Fprintln(tw)
	for _, row := range view.Rows {
		for i, cell := range row {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			if cell != nil {
				fmt.Fprint(tw, cell)
			}
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

func amount(s string, valid bool) string {
	if !valid {
		return "-"
	}
	return s
}
