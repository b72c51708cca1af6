package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/bonjohen/hubqueue/internal/git"
	"github.com/bonjohen/hubqueue/internal/release"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Build release notes and publish releases",
}

var releaseNotesCmd = &cobra.Command{
	Use:   "notes [tag]",
	Short: "Render categorized release notes for a tag",
	Long: `Collects the commits since the previous version tag and renders them as
Markdown grouped into Features, Bug Fixes, Documentation and Other Changes.
When the tag does not exist yet the notes cover history up to HEAD.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := GetLogger()
		tag := args[0]

		dir, _ := cmd.Flags().GetString("dir")
		previous, _ := cmd.Flags().GetString("previous")
		to, _ := cmd.Flags().GetString("to")
		output, _ := cmd.Flags().GetString("output")

		repo, err := git.Open(dir, logger)
		if err != nil {
			return err
		}

		r := release.New(afero.NewOsFs(), repo, logger)
		notes, err := r.Notes(tag, previous, to)
		if err != nil && to == "" && errors.Is(err, git.ErrRevisionNotFound) {
			logger.Info("tag not found, using HEAD", "tag", tag)
			notes, err = r.Notes(tag, previous, "HEAD")
		}
		if err != nil {
			logger.Error("failed to build release notes", "error", err)
			return err
		}

		if output == "" || output == "-" {
			fmt.Fprint(cmd.OutOrStdout(), notes.Render())
			return nil
		}
		if err := afero.WriteFile(afero.NewOsFs(), output, []byte(notes.Render()), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", output, err)
		}
		logger.Info("release notes written", "file", output, "commits", notes.Len())
		return nil
	},
}

var releaseCreateCmd = &cobra.Command{
	Use:   "create [plan-file]",
	Short: "Run a release plan",
	Long: `Runs a release plan: bump the version, optionally tag, write release notes
and publish a GitHub release with assets. Committing and pushing the bumped
files is left to the caller; a published release targets the local HEAD,
which must already exist on GitHub.

Paths in the plan are relative to the repository root.

Example plan:
  kind: Release
  apiVersion: hubqueue/v1
  spec:
    repo: owner/name
    increment: patch
    tag: true
    publish: true
    notesFile: dist/RELEASE_NOTES.md
    assets: [dist/app-linux-amd64.tar.gz]`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := GetLogger()
		ctx := cmd.Context()
		planFile := args[0]

		logger.Info("running release plan", "file", planFile)

		plan, err := release.LoadFromFile(afero.NewOsFs(), planFile)
		if err != nil {
			logger.Error("failed to load release plan", "error", err)
			return err
		}

		if increment, _ := cmd.Flags().GetString("increment"); increment != "" {
			plan.Spec.Increment = increment
		}
		if explicit, _ := cmd.Flags().GetString("set"); explicit != "" {
			plan.Spec.Version = explicit
		}
		if plan.Spec.Repo == "" {
			plan.Spec.Repo = viper.GetString("repo")
		}
		dir, _ := cmd.Flags().GetString("dir")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		repo, err := git.Open(dir, logger)
		if err != nil {
			return err
		}
		root := repo.Root()
		for i, a := range plan.Spec.Assets {
			if !filepath.IsAbs(a) {
				plan.Spec.Assets[i] = filepath.Join(root, a)
			}
		}

		opts := []release.Option{
			release.WithRecorder(repo),
			release.WithDryRun(dryRun),
		}
		if plan.Spec.Publish && !dryRun {
			client, err := newCIClient(ctx)
			if err != nil {
				return err
			}
			opts = append(opts, release.WithPublisher(client))
		}

		r := release.New(afero.NewBasePathFs(afero.NewOsFs(), root), repo, logger, opts...)
		report, err := r.Run(ctx, plan)
		if report != nil {
			printReport(cmd.OutOrStdout(), report)
		}
		if err != nil {
			logger.Error("release failed", "error", err)
			return err
		}

		logger.Info("release completed", "tag", report.Tag)
		return nil
	},
}

func printReport(w io.Writer, r *release.Report) {
	if r.Bump != nil {
		printBump(w, r.Bump, r.DryRun)
	}
	if r.Tag == "" {
		return
	}
	if r.Tagged {
		fmt.Fprintf(w, "tagged %s\n", r.Tag)
	}
	if r.Notes != nil {
		prev := r.PreviousTag
		if prev == "" {
			prev = "start of history"
		}
		fmt.Fprintf(w, "notes: %d commits since %s\n", r.Notes.Len(), prev)
	}
	if r.NotesPath != "" {
		fmt.Fprintf(w, "notes written to %s\n", r.NotesPath)
	}
	if r.Published != nil {
		fmt.Fprintf(w, "published %s\n", r.Published.URL)
		for _, a := range r.Published.Assets {
			fmt.Fprintf(w, "  asset %s\n", a.Name)
		}
		for _, f := range r.Published.Failures {
			fmt.Fprintf(w, "  asset failed %s: %v\n", f.Path, f.Err)
		}
		if len(r.Published.Failures) > 0 {
			fmt.Fprintf(w, "partial: release exists, %d of %d assets failed\n",
				len(r.Published.Failures), len(r.Published.Failures)+len(r.Published.Assets))
		}
	}
	if r.DryRun {
		fmt.Fprintln(w, "dry run: nothing was written")
	}
}

func init() {
	rootCmd.AddCommand(releaseCmd)
	releaseCmd.AddCommand(releaseNotesCmd)
	releaseCmd.AddCommand(releaseCreateCmd)

	releaseNotesCmd.Flags().String("dir", ".", "path inside the git repository")
	releaseNotesCmd.Flags().String("previous", "", "previous tag (default: highest version tag below the tag)")
	releaseNotesCmd.Flags().String("to", "", "end of the range (default: the tag, or HEAD if it does not exist)")
	releaseNotesCmd.Flags().StringP("output", "o", "", "write to a file instead of stdout")

	releaseCreateCmd.Flags().String("dir", ".", "path inside the git repository")
	releaseCreateCmd.Flags().String("increment", "", "override spec.increment")
	releaseCreateCmd.Flags().String("set", "", "override spec.version")
	releaseCreateCmd.Flags().Bool("dry-run", false, "compute the release without writing, tagging or publishing")
}
