package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/cribs1908/specpipe/internal/profile"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Inspect builtin domain profiles",
}

// -- profiles list --

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available domain profiles",
	RunE: func(cmd *cobra.Command, _ []string) error {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "DOMAIN\tVERSION\tFIELDS\tREQUIRED")
		for _, domain := range profile.Domains() {
			p := profile.GetProfile(domain)
			_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\n",
				p.Domain, p.Version, len(p.Fields), len(p.RequiredFields()))
		}
		return w.Flush()
	},
}

// -- profiles show --

var profilesShowCmd = &cobra.Command{
	Use:   "show <domain>",
	Short: "Show a domain profile's field schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := profile.GetProfile(args[0])
		if p == nil {
			return eris.Errorf("unknown domain %q (available: %s)",
				args[0], strings.Join(profile.Domains(), ", "))
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		}
		formatProfile(os.Stdout, p)
		return nil
	},
}

// -- profiles check --

var profilesCheckCmd = &cobra.Command{
	Use:   "check <domain> <field-id> <value> [unit]",
	Short: "Validate a value against a profile field",
	Args:  cobra.RangeArgs(3, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := profile.GetProfile(args[0])
		if p == nil {
			return eris.Errorf("unknown domain %q", args[0])
		}
		unit := ""
		if len(args) == 4 {
			unit = args[3]
		}

		result := profile.ValidateFieldValue(p, args[1], args[2], unit)
		if result.Valid {
			fmt.Println("OK")
			return nil
		}
		for _, e := range result.Errors {
			fmt.Fprintln(os.Stderr, e)
		}
		return eris.Errorf("%d validation error(s)", len(result.Errors))
	},
}

func init() {
	profilesShowCmd.Flags().Bool("json", false, "emit the full profile as JSON")

	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesShowCmd)
	profilesCmd.AddCommand(profilesCheckCmd)
	rootCmd.AddCommand(profilesCmd)
}

func formatProfile(out io.Writer, p *profile.DomainProfile) {
	_, _ = fmt.Fprintf(out, "%s (version %s)\n\n", p.Domain, p.Version)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FIELD\tNAME\tTYPE\tREQUIRED\tUNITS")
	for _, f := range p.Fields {
		req := ""
		if f.Required {
			req = "yes"
		}
		units := strings.Join(p.AcceptedUnits(f.ID), ", ")
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", f.ID, f.Name, f.Type, req, units)
	}
	_ = w.Flush()
}
