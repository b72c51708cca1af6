package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/bonjohen/hubqueue/internal/ci"
	"github.com/bonjohen/hubqueue/internal/monitor"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Dispatch and monitor GitHub Actions workflow runs",
}

var workflowRunCmd = &cobra.Command{
	Use:   "run [workflow-file]",
	Short: "Dispatch a workflow and optionally wait for it",
	Long: `Triggers a workflow_dispatch event for the workflow file in --repo and
prints the id of the run it created.

Example:
  hubqueue workflow run hubqueue-release.yml --input increment=minor --wait`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := GetLogger()
		ctx := cmd.Context()
		workflowFile := args[0]

		ref := stringSetting(cmd, "ref", "workflow.ref")
		raw, _ := cmd.Flags().GetStringToString("input")
		wait, _ := cmd.Flags().GetBool("wait")

		client, err := newCIClient(ctx)
		if err != nil {
			logger.Error("failed to create GitHub client", "error", err)
			return err
		}

		inputs := make(map[string]interface{}, len(raw))
		for k, v := range raw {
			inputs[k] = v
		}

		d, err := client.Dispatch(ctx, workflowFile, ref, inputs)
		if err != nil {
			logger.Error("failed to dispatch workflow", "error", err)
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "dispatched run %d: %s\n", d.RunID, d.URL)

		if !wait {
			fmt.Fprintf(cmd.OutOrStdout(), "Run 'hubqueue workflow watch %d' to follow it\n", d.RunID)
			return nil
		}
		return watchRun(ctx, cmd, client, d.RunID, workflowFile)
	},
}

var workflowWatchCmd = &cobra.Command{
	Use:          "watch [run-id]",
	Short:        "Wait for a workflow run to finish",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		runID, err := parseRunID(args[0])
		if err != nil {
			return err
		}
		client, err := newCIClient(cmd.Context())
		if err != nil {
			return err
		}
		workflowRef, _ := cmd.Flags().GetString("workflow")
		return watchRun(cmd.Context(), cmd, client, runID, workflowRef)
	},
}

var workflowCancelCmd = &cobra.Command{
	Use:          "cancel [run-id]",
	Short:        "Cancel a workflow run",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		runID, err := parseRunID(args[0])
		if err != nil {
			return err
		}
		client, err := newCIClient(cmd.Context())
		if err != nil {
			return err
		}
		if err := client.CancelRun(cmd.Context(), runID); err != nil {
			GetLogger().Error("failed to cancel run", "run_id", runID, "error", err)
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cancellation requested for run %d\n", runID)
		return nil
	},
}

var workflowInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a GitHub Actions workflow that runs hubqueue releases",
	Long: `Writes a workflow_dispatch workflow that checks out the repository and runs
'hubqueue release create'. Commit the file to the default branch, then start
releases with 'hubqueue workflow run'.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := GetLogger()

		path := stringSetting(cmd, "path", "workflow.path")
		force, _ := cmd.Flags().GetBool("force")

		if err := ci.WriteReleaseWorkflow(afero.NewOsFs(), path, force); err != nil {
			logger.Error("failed to write workflow file", "error", err)
			return err
		}

		logger.Info("workflow file created successfully", "path", path)
		fmt.Fprintln(cmd.OutOrStdout(), "Please commit this file to the default branch of your repository.")
		return nil
	},
}

var workflowRerunCmd = &cobra.Command{
	Use:          "rerun [run-id]",
	Short:        "Re-run every job of a completed workflow run",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		runID, err := parseRunID(args[0])
		if err != nil {
			return err
		}
		client, err := newCIClient(cmd.Context())
		if err != nil {
			return err
		}
		if err := client.RerunRun(cmd.Context(), runID); err != nil {
			GetLogger().Error("failed to rerun", "run_id", runID, "error", err)
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "rerun requested for run %d\n", runID)

		wait, _ := cmd.Flags().GetBool("wait")
		if !wait {
			return nil
		}
		return watchRun(cmd.Context(), cmd, client, runID, "")
	},
}

var workflowRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent workflow runs",
	Long: `Lists the most recent workflow runs of --repo, newest first.

Example:
  hubqueue workflow runs --workflow hubqueue-release.yml --status failure`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		var filter ci.RunFilter
		filter.Workflow, _ = cmd.Flags().GetString("workflow")
		filter.Branch, _ = cmd.Flags().GetString("branch")
		filter.Status, _ = cmd.Flags().GetString("status")
		filter.Limit, _ = cmd.Flags().GetInt("limit")

		client, err := newCIClient(cmd.Context())
		if err != nil {
			return err
		}
		runs, err := client.ListRuns(cmd.Context(), filter)
		if err != nil {
			GetLogger().Error("failed to list runs", "error", err)
			return err
		}
		printRuns(cmd.OutOrStdout(), runs)
		return nil
	},
}

var workflowShowCmd = &cobra.Command{
	Use:          "show [run-id]",
	Short:        "Show a workflow run with its jobs and steps",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		runID, err := parseRunID(args[0])
		if err != nil {
			return err
		}
		client, err := newCIClient(cmd.Context())
		if err != nil {
			return err
		}
		detail, err := client.GetRun(cmd.Context(), runID)
		if err != nil {
			GetLogger().Error("failed to get run", "run_id", runID, "error", err)
			return err
		}
		printRunDetail(cmd.OutOrStdout(), detail)
		return nil
	},
}

func printRuns(w io.Writer, runs []ci.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs found")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWORKFLOW\tBRANCH\tEVENT\tSTATUS\tCREATED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Name, r.Branch, r.Event, outcome(r.Status, r.Conclusion), r.CreatedAt.Format(time.RFC3339))
	}
	tw.Flush()
}

func printRunDetail(w io.Writer, d *ci.RunDetail) {
	fmt.Fprintf(w, "run %d %s #%d on %s: %s\n", d.ID, d.Name, d.Number, d.Branch, outcome(d.Status, d.Conclusion))
	if d.URL != "" {
		fmt.Fprintf(w, "  %s\n", d.URL)
	}
	for _, j := range d.Jobs {
		fmt.Fprintf(w, "job %s: %s", j.Name, outcome(j.Status, j.Conclusion))
		if !j.StartedAt.IsZero() && !j.CompletedAt.IsZero() {
			fmt.Fprintf(w, " (%s)", j.CompletedAt.Sub(j.StartedAt).Round(time.Second))
		}
		fmt.Fprintln(w)
		for _, s := range j.Steps {
			fmt.Fprintf(w, "  %d. %s: %s\n", s.Number, s.Name, outcome(s.Status, s.Conclusion))
		}
	}
}

// outcome shows the conclusion once a run, job or step has completed.
func outcome(status, conclusion string) string {
	if status == string(monitor.StatusCompleted) && conclusion != "" {
		return conclusion
	}
	return status
}

func parseRunID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid run id %q", s)
	}
	return id, nil
}

func monitorConfig(cmd *cobra.Command) monitor.Config {
	return monitor.Config{
		Interval:        durationSetting(cmd, "interval", "monitor.interval"),
		Timeout:         durationSetting(cmd, "timeout", "monitor.timeout"),
		MaxQueryRetries: intSetting(cmd, "max-retries", "monitor.max-query-retries"),
	}
}

func watchRun(ctx context.Context, cmd *cobra.Command, query monitor.StatusQuery, runID int64, workflowRef string) error {
	cfg := monitorConfig(cmd)
	m := monitor.New(query, GetLogger())
	run, err := m.Watch(ctx, runID, workflowRef, cfg)
	return reportRun(cmd.OutOrStdout(), run, cfg, err)
}

// reportRun prints the outcome of a watch. A client-side timeout is worded
// differently from a failed run.
func reportRun(w io.Writer, run *monitor.Run, cfg monitor.Config, err error) error {
	if err != nil {
		var merr *monitor.Error
		switch {
		case errors.Is(err, monitor.ErrTimeout):
			fmt.Fprintf(w, "stopped waiting for run %d after %s; last observed status: %s\n",
				run.ID, cfg.Timeout, run.LastObserved())
			fmt.Fprintln(w, "the run has not failed and may still complete")
		case errors.Is(err, monitor.ErrInterrupted):
			fmt.Fprintf(w, "interrupted while watching run %d; last observed status: %s\n", run.ID, run.LastObserved())
		case errors.Is(err, monitor.ErrStatusQueryFailed) && errors.As(err, &merr):
			fmt.Fprintf(w, "could not query run %d; last observed status: %s\n", merr.Run.ID, merr.Run.LastObserved())
		}
		return err
	}

	elapsed := time.Duration(0)
	if n := len(run.Transitions); n > 0 {
		elapsed = run.Transitions[n-1].ObservedAt.Sub(run.StartedAt).Round(time.Second)
	}
	fmt.Fprintf(w, "run %d %s: %s (%s)\n", run.ID, run.Status, run.Conclusion, elapsed)
	if !run.Succeeded() {
		return fmt.Errorf("%w: run %d concluded %s", errRunFailed, run.ID, run.Conclusion)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(workflowCmd)
	workflowCmd.AddCommand(workflowRunCmd, workflowWatchCmd, workflowCancelCmd, workflowInitCmd,
		workflowRerunCmd, workflowRunsCmd, workflowShowCmd)

	workflowRunCmd.Flags().String("ref", "main", "git ref the workflow runs on")
	workflowRunCmd.Flags().StringToStringP("input", "i", nil, "workflow input as key=value, repeatable")
	workflowRunCmd.Flags().Bool("wait", false, "wait for the run to finish")

	workflowRerunCmd.Flags().Bool("wait", false, "wait for the new attempt to finish")

	for _, c := range []*cobra.Command{workflowRunCmd, workflowWatchCmd, workflowRerunCmd} {
		c.Flags().Duration("interval", 10*time.Second, "poll interval")
		c.Flags().Duration("timeout", 30*time.Minute, "give up waiting after this long")
		c.Flags().Int("max-retries", monitor.MaxQueryRetries, "failed status queries tolerated in a row, -1 disables retries")
	}
	workflowWatchCmd.Flags().String("workflow", "", "workflow file, for log context only")

	workflowRunsCmd.Flags().String("workflow", "", "only runs of this workflow file")
	workflowRunsCmd.Flags().String("branch", "", "only runs on this branch")
	workflowRunsCmd.Flags().String("status", "", "only runs with this status or conclusion, e.g. in_progress or failure")
	workflowRunsCmd.Flags().Int("limit", ci.DefaultRunLimit, "maximum number of runs to list")

	workflowInitCmd.Flags().String("path", ".github/workflows/hubqueue-release.yml", "path to write the workflow file")
	workflowInitCmd.Flags().Bool("force", false, "overwrite an existing file")
}
