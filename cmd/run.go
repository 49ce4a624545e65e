package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/cribs1908/specpipe/internal/model"
	"github.com/cribs1908/specpipe/internal/store"
)

var (
	runWorkspace string
	runDomain    string
	runJSON      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Submit and inspect comparison runs",
}

// -- run submit --

var runSubmitCmd = &cobra.Command{
	Use:   "submit <spec1.pdf> [spec2.pdf ...]",
	Short: "Compare spec sheet PDFs end to end",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		for _, path := range args {
			if _, err := os.Stat(path); err != nil {
				return eris.Wrapf(err, "document %s", path)
			}
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		p, err := initPipeline(st)
		if err != nil {
			return err
		}

		run, err := p.Submit(ctx, runWorkspace, runDomain, args)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Run %s submitted (%d documents)\n", run.ID, len(args))

		tbl, err := p.Process(ctx, run.ID)
		if err != nil {
			return eris.Wrapf(err, "run %s", run.ID)
		}

		if runJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(tbl)
		}
		formatTable(os.Stdout, tbl)
		return nil
	},
}

// -- run status --

var runStatusCmd = &cobra.Command{
	Use:   "status <run-id>",
	Short: "Show a run's status and documents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "run status")
		}
		docs, err := st.ListDocuments(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "run status")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			*model.Run
			Documents []model.Document `json:"documents"`
		}{run, docs})
	},
}

// -- run list --

var runListCmd = &cobra.Command{
	Use:   "list",
	Short: "List comparison runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		workspace, _ := cmd.Flags().GetString("workspace")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			WorkspaceID: workspace,
			Status:      model.RunStatus(status),
			Limit:       limit,
		})
		if err != nil {
			return eris.Wrap(err, "run list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}
		formatRunList(os.Stdout, runs)
		return nil
	},
}

// -- run result --

var runResultCmd = &cobra.Command{
	Use:   "result <run-id>",
	Short: "Show the comparison table of a completed run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		tbl, err := st.GetResultTable(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "run result")
		}
		if tbl == nil {
			return eris.Errorf("run %s has no result table", args[0])
		}

		if runJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(tbl)
		}
		formatTable(os.Stdout, tbl)
		return nil
	},
}

func init() {
	runSubmitCmd.Flags().StringVarP(&runWorkspace, "workspace", "w", "", "workspace ID (required)")
	runSubmitCmd.Flags().StringVarP(&runDomain, "domain", "d", "AUTO", "domain profile (SaaS, API, Chip) or AUTO to detect")
	runSubmitCmd.Flags().BoolVar(&runJSON, "json", false, "emit the full result table as JSON")
	_ = runSubmitCmd.MarkFlagRequired("workspace")

	runListCmd.Flags().String("workspace", "", "filter by workspace ID")
	runListCmd.Flags().String("status", "", "filter by run status (queued, processing, ready, error)")
	runListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runResultCmd.Flags().BoolVar(&runJSON, "json", false, "emit the full result table as JSON")

	runCmd.AddCommand(runSubmitCmd)
	runCmd.AddCommand(runStatusCmd)
	runCmd.AddCommand(runListCmd)
	runCmd.AddCommand(runResultCmd)
	rootCmd.AddCommand(runCmd)
}

func formatRunList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tWORKSPACE\tDOMAIN\tSTATUS\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t---------\t------\t------\t-------\t--------")

	for _, r := range runs {
		dur := r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			r.WorkspaceID,
			r.Domain,
			r.Status,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// formatTable renders the comparison table with one row per field and one
// column per document. Cells show value plus unit; a best-value cell is
// marked with a star.
func formatTable(out io.Writer, tbl *model.ResultTable) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	header := ""
	for i, col := range tbl.Columns {
		if i > 0 {
			header += "\t"
		}
		header += col.Name
	}
	_, _ = fmt.Fprintln(w, header)

	for _, row := range tbl.Rows {
		line := row.FieldName
		for _, col := range tbl.Columns {
			if col.Type == model.ColumnTypeSpec {
				continue
			}
			line += "\t" + formatCell(row, col, tbl.Highlights)
		}
		_, _ = fmt.Fprintln(w, line)
	}
	_ = w.Flush()

	if len(tbl.Insights) > 0 {
		_, _ = fmt.Fprintln(out)
		for _, insight := range tbl.Insights {
			_, _ = fmt.Fprintf(out, "  * %s\n", insight)
		}
	}
	printExports(out, tbl.Exports)
}

func formatCell(row model.TableRow, col model.TableColumn, hl model.Highlights) string {
	cell, ok := row.Values[col.ID]
	if !ok || cell.Value == "" {
		return "-"
	}
	s := cell.Value
	if cell.Unit != "" {
		s += " " + cell.Unit
	}
	if hl.BestValues[row.FieldID] == col.ID {
		s += " *"
	}
	return s
}

func printExports(out io.Writer, exports model.ExportSet) {
	links := map[string]*model.ExportLink{
		"CSV":  exports.CSV,
		"JSON": exports.JSON,
		"XLSX": exports.XLSX,
	}
	printed := false
	for _, name := range []string{"CSV", "JSON", "XLSX"} {
		link := links[name]
		if link == nil {
			continue
		}
		if !printed {
			_, _ = fmt.Fprintln(out)
			printed = true
		}
		_, _ = fmt.Fprintf(out, "  %s: %s\n", name, link.URL)
	}
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
