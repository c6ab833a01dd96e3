package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"resume-matcher/internal/bootstrap"
	"resume-matcher/internal/sources"
)

func newSourcesCmd(c *cli) *cobra.Command {
	var (
		term     string
		location string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Probe each enabled job source and report status, count and a sample posting",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			agg := sources.Build(bootstrap.SourceOptions(cfg), c.logger())
			defer agg.Close()

			results := agg.Probe(cmd.Context(), term, location, limit)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SOURCE\tSTATUS\tJOBS\tTIME\tSAMPLE")
			for _, r := range results {
				sample := r.Error
				if r.Sample != nil {
					sample = fmt.Sprintf("%s @ %s", r.Sample.Title, r.Sample.Company)
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", r.Source, r.Status, r.Count, r.Duration.Round(time.Millisecond), sample)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&term, "term", "python", "search term")
	cmd.Flags().StringVar(&location, "location", "", "location hint")
	cmd.Flags().IntVar(&limit, "limit", 3, "postings requested per source")
	return cmd
}
