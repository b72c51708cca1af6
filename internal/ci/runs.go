package ci

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-github/v58/github"
)

// DefaultRunLimit is the number of runs ListRuns returns when no limit is set.
const DefaultRunLimit = 20

// RunFilter narrows ListRuns. Empty fields match everything. Workflow is a
// workflow file name such as "release.yml".
type RunFilter struct {
	Workflow string
	Branch   string
	Status   string
	Limit    int
}

// RunSummary is one row of a run listing.
type RunSummary struct {
	ID         int64
	Name       string
	Number     int
	Branch     string
	Event      string
	Status     string
	Conclusion string
	URL        string
	CreatedAt  time.Time
}

// RunDetail is a run together with its jobs.
type RunDetail struct {
	RunSummary
	Jobs []Job
}

type Job struct {
	ID          int64
	Name        string
	Status      string
	Conclusion  string
	StartedAt   time.Time
	CompletedAt time.Time
	Steps       []Step
}

type Step struct {
	Number     int64
	Name       string
	Status     string
	Conclusion string
}

// ListRuns returns the most recent runs of the repository, newest first as
// GitHub orders them.
func (c *Client) ListRuns(ctx context.Context, filter RunFilter) ([]RunSummary, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultRunLimit
	}
	if limit > 100 {
		limit = 100
	}
	opts := &github.ListWorkflowRunsOptions{
		Branch:      filter.Branch,
		Status:      filter.Status,
		ListOptions: github.ListOptions{PerPage: limit},
	}

	var (
		runs *github.WorkflowRuns
		err  error
	)
	if filter.Workflow != "" {
		runs, _, err = c.client.Actions.ListWorkflowRunsByFileName(ctx, c.owner, c.repo, filter.Workflow, opts)
	} else {
		runs, _, err = c.client.Actions.ListRepositoryWorkflowRuns(ctx, c.owner, c.repo, opts)
	}
	if err != nil {
		if notFound(err) && filter.Workflow != "" {
			return nil, fmt.Errorf("%w: %s in %s", ErrWorkflowNotFound, filter.Workflow, c.Repo())
		}
		return nil, fmt.Errorf("list workflow runs: %w", err)
	}

	out := make([]RunSummary, 0, len(runs.WorkflowRuns))
	for _, run := range runs.WorkflowRuns {
		if len(out) == limit {
			break
		}
		out = append(out, summarize(run))
	}
	c.logger.Debug("listed workflow runs", "repo", c.Repo(), "count", len(out), "total", runs.GetTotalCount())
	return out, nil
}

// GetRun returns a run with its jobs and their steps.
func (c *Client) GetRun(ctx context.Context, runID int64) (*RunDetail, error) {
	run, _, err := c.client.Actions.GetWorkflowRunByID(ctx, c.owner, c.repo, runID)
	if err != nil {
		return nil, fmt.Errorf("get workflow run %d: %w", runID, err)
	}
	jobs, _, err := c.client.Actions.ListWorkflowJobs(ctx, c.owner, c.repo, runID, &github.ListWorkflowJobsOptions{
		Filter:      "latest",
		ListOptions: github.ListOptions{PerPage: 100},
	})
	if err != nil {
		return nil, fmt.Errorf("list jobs of run %d: %w", runID, err)
	}

	detail := &RunDetail{RunSummary: summarize(run)}
	for _, j := range jobs.Jobs {
		job := Job{
			ID:          j.GetID(),
			Name:        j.GetName(),
			Status:      j.GetStatus(),
			Conclusion:  j.GetConclusion(),
			StartedAt:   j.GetStartedAt().Time,
			CompletedAt: j.GetCompletedAt().Time,
		}
		for _, s := range j.Steps {
			job.Steps = append(job.Steps, Step{
				Number:     s.GetNumber(),
				Name:       s.GetName(),
				Status:     s.GetStatus(),
				Conclusion: s.GetConclusion(),
			})
		}
		detail.Jobs = append(detail.Jobs, job)
	}
	return detail, nil
}

// RerunRun re-runs every job of a completed run. GitHub refuses runs that
// are still in progress.
func (c *Client) RerunRun(ctx context.Context, runID int64) error {
	err := c.retryWithBackoff(ctx, "rerun workflow run", c.retryAttempts, c.retryDelay, transient, func() error {
		_, err := c.client.Actions.RerunWorkflowByID(ctx, c.owner, c.repo, runID)
		return err
	})
	if err != nil {
		return fmt.Errorf("rerun workflow run %d: %w", runID, err)
	}
	c.logger.Info("rerun requested", "run_id", runID)
	return nil
}

func summarize(run *github.WorkflowRun) RunSummary {
	return RunSummary{
		ID:         run.GetID(),
		Name:       run.GetName(),
		Number:     run.GetRunNumber(),
		Branch:     run.GetHeadBranch(),
		Event:      run.GetEvent(),
		Status:     run.GetStatus(),
		Conclusion: run.GetConclusion(),
		URL:        run.GetHTMLURL(),
		CreatedAt:  run.GetCreatedAt().Time,
	}
}
