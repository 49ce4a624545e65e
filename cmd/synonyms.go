package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/cribs1908/specpipe/internal/synonym"
)

var synWorkspace string

var synonymsCmd = &cobra.Command{
	Use:   "synonyms",
	Short: "Inspect and correct the synonym map",
	Long:  "The synonym map links spec sheet labels to canonical profile fields. It learns per workspace; proven entries are promoted to the global tier.",
}

// -- synonyms list --

var synonymsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a workspace's merged synonym entries",
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

		wsEntries, err := st.ListWorkspaceSynonyms(ctx, synWorkspace)
		if err != nil {
			return eris.Wrap(err, "synonyms list")
		}
		globalEntries, err := st.ListGlobalSynonyms(ctx)
		if err != nil {
			return eris.Wrap(err, "synonyms list")
		}

		if len(wsEntries)+len(globalEntries) == 0 {
			fmt.Fprintln(os.Stderr, "No synonym entries found.")
			return nil
		}
		formatSynonyms(os.Stdout, wsEntries, globalEntries)
		return nil
	},
}

// -- synonyms lookup --

var synonymsLookupCmd = &cobra.Command{
	Use:   "lookup <term>",
	Short: "Resolve a label to its canonical field",
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

		m := synonym.New(st, synWorkspace)
		if err := m.LoadSnapshot(ctx); err != nil {
			return eris.Wrap(err, "synonyms lookup")
		}

		if fieldID, ok := m.FindCanonicalField(args[0]); ok {
			fmt.Printf("%s -> %s\n", args[0], fieldID)
			return nil
		}

		suggestions := m.SuggestFields(args[0], 5)
		if len(suggestions) == 0 {
			fmt.Fprintf(os.Stderr, "No match for %q.\n", args[0])
			return nil
		}
		fmt.Fprintf(os.Stderr, "No exact match for %q. Did you mean:\n", args[0])
		for _, s := range suggestions {
			fmt.Fprintf(os.Stderr, "  %s (%.2f)\n", s.FieldID, s.Score)
		}
		return nil
	},
}

// -- synonyms override --

var synonymsOverrideCmd = &cobra.Command{
	Use:   "override <field-id> <term>",
	Short: "Record a manual label-to-field correction",
	Long:  "Adds the term as a variant of the field in this workspace and boosts its score. Overrides are the strongest reinforcement signal and can trigger global promotion.",
	Args:  cobra.ExactArgs(2),
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

		m := synonym.New(st, synWorkspace)
		if err := m.LoadSnapshot(ctx); err != nil {
			return eris.Wrap(err, "synonyms override")
		}
		if err := m.RecordOverride(ctx, args[0], args[1]); err != nil {
			return eris.Wrap(err, "synonyms override")
		}
		fmt.Printf("Recorded %q as a variant of %s\n", args[1], args[0])
		return nil
	},
}

func init() {
	synonymsCmd.PersistentFlags().StringVarP(&synWorkspace, "workspace", "w", "", "workspace ID (required)")
	_ = synonymsCmd.MarkPersistentFlagRequired("workspace")

	synonymsCmd.AddCommand(synonymsListCmd)
	synonymsCmd.AddCommand(synonymsLookupCmd)
	synonymsCmd.AddCommand(synonymsOverrideCmd)
	rootCmd.AddCommand(synonymsCmd)
}

func formatSynonyms(out io.Writer, wsEntries, globalEntries []synonym.Entry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TIER\tFIELD\tSCORE\tVARIANTS")

	for _, e := range globalEntries {
		_, _ = fmt.Fprintf(w, "global\t%s\t%.2f\t%s\n", e.FieldID, e.Score, joinVariants(e.Variants))
	}
	for _, e := range wsEntries {
		_, _ = fmt.Fprintf(w, "workspace\t%s\t%.2f\t%s\n", e.FieldID, e.Score, joinVariants(e.Variants))
	}
	_ = w.Flush()
}

func joinVariants(variants []string) string {
	s := strings.Join(variants, ", ")
	if len(s) > 60 {
		s = s[:57] + "..."
	}
	return s
}
