package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/bigrise-data/bigrise/internal/collect"
	"github.com/bigrise-data/bigrise/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show collector freshness and recent match results",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("status"); err != nil {
			return err
		}
		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		reg := collect.NewRegistry(cfg, initClients())

		fmt.Println("Collectors:")
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tLAST SUCCESS")
		for _, name := range reg.AllNames() {
			last, err := st.LastCollectSuccess(ctx, name)
			if err != nil {
				return eris.Wrapf(err, "status: last success for %s", name)
			}
			when := "never"
			if last != nil {
				when = last.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(tw, "%s\t%s\n", name, when)
		}
		tw.Flush() //nolint:errcheck

		entries, err := st.ListCollects(ctx, 10)
		if err != nil {
			return eris.Wrap(err, "status: list collects")
		}
		if len(entries) > 0 {
			fmt.Println("\nRecent collects:")
			tw = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "COLLECTOR\tDATE\tSTATUS\tROWS\tOUTPUT")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
					e.Collector, e.TargetDate, e.Status, e.Rows, e.OutputPath)
			}
			tw.Flush() //nolint:errcheck
		}

		summaries, err := st.ListMatchSummaries(ctx, 5)
		if err != nil {
			return eris.Wrap(err, "status: list match summaries")
		}
		if len(summaries) > 0 {
			fmt.Println("\nRecent matches:")
			tw = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tHOLDINGS\tMATCHED\tRECENT\tOUTPUT")
			for _, s := range summaries {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n",
					s.TargetDate, s.Holdings, s.Matched, s.Recent, s.FullPath)
			}
			tw.Flush() //nolint:errcheck
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
