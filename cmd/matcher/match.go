package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"resume-matcher/internal/bootstrap"
	"resume-matcher/internal/extract"
	"resume-matcher/internal/filters"
	"resume-matcher/internal/pipeline"
)

type matchFlags struct {
	locations  []string
	jobTypes   []string
	remoteOnly bool
	minSalary  int
	maxSalary  int
	progress   bool
}

func newMatchCmd(c *cli) *cobra.Command {
	var f matchFlags
	cmd := &cobra.Command{
		Use:   "match <resume-file>",
		Short: "Run the matching pipeline on a local résumé and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runMatch(ctx, cmd, c, f, args[0])
		},
	}
	cmd.Flags().StringSliceVar(&f.locations, "location", nil, "preferred location (repeatable)")
	cmd.Flags().StringSliceVar(&f.jobTypes, "job-type", nil, "accepted job type (repeatable)")
	cmd.Flags().BoolVar(&f.remoteOnly, "remote-only", false, "keep remote postings only")
	cmd.Flags().IntVar(&f.minSalary, "min-salary", 0, "minimum salary")
	cmd.Flags().IntVar(&f.maxSalary, "max-salary", 0, "maximum salary")
	cmd.Flags().BoolVar(&f.progress, "progress", false, "print stage progress to stderr")
	return cmd
}

func runMatch(ctx context.Context, cmd *cobra.Command, c *cli, f matchFlags, path string) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read résumé: %w", err)
	}

	orch := bootstrap.BuildPipeline(cfg, c.logger())

	in := pipeline.Input{
		Document: extract.Document{
			Data:      data,
			MediaType: extract.NormalizeMediaType("", path, data),
			Filename:  path,
		},
		Filters: criteria(cmd, f),
	}
	if c.v.IsSet("similarity-threshold") {
		v := c.v.GetFloat64("similarity-threshold")
		in.Threshold = &v
	}
	if c.v.IsSet("max-jobs") {
		v := c.v.GetInt("max-jobs")
		in.MaxJobs = &v
	}
	if err := in.Validate(); err != nil {
		return err
	}

	var sink pipeline.ProgressSink = pipeline.ProgressFunc(func(pipeline.Stage, int) {})
	if f.progress {
		sink = pipeline.ProgressFunc(func(stage pipeline.Stage, pct int) {
			fmt.Fprintf(cmd.ErrOrStderr(), "%3d%% %s\n", pct, stage.Message())
		})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	result, err := orch.Run(ctx, in, sink)
	if err != nil {
		var perr *pipeline.Error
		if errors.As(err, &perr) {
			_ = enc.Encode(perr.Failure())
		}
		return err
	}
	return enc.Encode(result)
}

func criteria(cmd *cobra.Command, f matchFlags) filters.Criteria {
	c := filters.Criteria{
		PreferredLocations: f.locations,
		JobTypes:           f.jobTypes,
		RemoteOnly:         f.remoteOnly,
	}
	if cmd.Flags().Changed("min-salary") {
		v := f.minSalary
		c.MinSalary = &v
	}
	if cmd.Flags().Changed("max-salary") {
		v := f.maxSalary
		c.MaxSalary = &v
	}
	return c
}
