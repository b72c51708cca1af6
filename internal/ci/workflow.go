package ci

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bonjohen/hubqueue/internal/monitor"
	"github.com/google/go-github/v58/github"
)

var (
	ErrWorkflowNotFound = errors.New("workflow not found")
	errRunNotVisible    = errors.New("dispatched run not visible yet")
)

// Dispatched identifies a run created by Dispatch.
type Dispatched struct {
	RunID       int64
	WorkflowRef string
	URL         string
}

// Dispatch triggers workflowFile on ref and waits until the created run can
// be found. The dispatch API does not return the run, so the newest
// workflow_dispatch run created after the request is taken.
func (c *Client) Dispatch(ctx context.Context, workflowFile, ref string, inputs map[string]interface{}) (*Dispatched, error) {
	// GitHub truncates created_at to seconds
	since := time.Now().UTC().Truncate(time.Second).Add(-time.Second)

	c.logger.Info("dispatching workflow", "repo", c.Repo(), "workflow", workflowFile, "ref", ref)
	opts := github.CreateWorkflowDispatchEventRequest{
		Ref:    ref,
		Inputs: inputs,
	}
	resp, err := c.client.Actions.CreateWorkflowDispatchEventByFileName(ctx, c.owner, c.repo, workflowFile, opts)
	if err != nil {
		if notFound(err) {
			c.logger.Error("workflow not found, ensure it is on the default branch", "workflow", workflowFile)
			return nil, fmt.Errorf("%w: %s in %s", ErrWorkflowNotFound, workflowFile, c.Repo())
		}
		return nil, fmt.Errorf("failed to dispatch workflow %s: %w", workflowFile, err)
	}
	c.logger.Info("workflow dispatched", "response_status", resp.Status)

	var found *github.WorkflowRun
	err = c.retryWithBackoff(ctx, "locate dispatched run", c.lookupAttempts, c.lookupDelay,
		func(err error) bool { return errors.Is(err, errRunNotVisible) || transient(err) },
		func() error {
			run, err := c.latestDispatchedRun(ctx, workflowFile, since)
			if err != nil {
				return err
			}
			found = run
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to locate run for %s: %w", workflowFile, err)
	}

	c.logger.Info("located dispatched run", "run_id", found.GetID(), "url", found.GetHTMLURL())
	return &Dispatched{
		RunID:       found.GetID(),
		WorkflowRef: workflowFile,
		URL:         found.GetHTMLURL(),
	}, nil
}

func (c *Client) latestDispatchedRun(ctx context.Context, workflowFile string, since time.Time) (*github.WorkflowRun, error) {
	runs, _, err := c.client.Actions.ListWorkflowRunsByFileName(ctx, c.owner, c.repo, workflowFile, &github.ListWorkflowRunsOptions{
		Event:       "workflow_dispatch",
		Created:     ">=" + since.Format(time.RFC3339),
		ListOptions: github.ListOptions{PerPage: 20},
	})
	if err != nil {
		return nil, err
	}

	var newest *github.WorkflowRun
	for _, run := range runs.WorkflowRuns {
		if run.GetCreatedAt().Time.Before(since) {
			continue
		}
		if newest == nil || run.GetCreatedAt().Time.After(newest.GetCreatedAt().Time) {
			newest = run
		}
	}
	if newest == nil {
		return nil, errRunNotVisible
	}
	return newest, nil
}

// RunStatus performs a single status query. It does not retry; the monitor
// decides how to handle failures.
func (c *Client) RunStatus(ctx context.Context, runID int64) (monitor.QueryResult, error) {
	run, _, err := c.client.Actions.GetWorkflowRunByID(ctx, c.owner, c.repo, runID)
	if err != nil {
		return monitor.QueryResult{}, fmt.Errorf("get workflow run %d: %w", runID, err)
	}
	return monitor.QueryResult{
		Status:     run.GetStatus(),
		Conclusion: run.GetConclusion(),
	}, nil
}

// CancelRun asks GitHub to cancel a run.
func (c *Client) CancelRun(ctx context.Context, runID int64) error {
	_, err := c.client.Actions.CancelWorkflowRunByID(ctx, c.owner, c.repo, runID)
	var accepted *github.AcceptedError
	if err != nil && !errors.As(err, &accepted) {
		return fmt.Errorf("cancel workflow run %d: %w", runID, err)
	}
	c.logger.Info("cancellation requested", "run_id", runID)
	return nil
}
