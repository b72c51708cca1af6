package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/bonjohen/hubqueue/internal/version"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Inspect and update project version strings",
}

var versionBumpCmd = &cobra.Command{
	Use:   "bump [files...]",
	Short: "Rewrite the version in project files",
	Long: `Finds the first version string in each file and replaces it with the next
version. Without files the usual manifests (setup.cfg, pyproject.toml,
package.json, Chart.yaml, VERSION, ...) are discovered in --dir.

The current version is taken from the first file that contains one; every
file is rewritten to the same new version.

Example:
  hubqueue version bump --increment minor
  hubqueue version bump --set 2.0.0-rc1 setup.cfg pkg/__about__.py
  hubqueue version bump --pattern 'version: (\d+)\.(\d+)\.(\d+)' Chart.yaml`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := GetLogger()

		increment, _ := cmd.Flags().GetString("increment")
		explicit, _ := cmd.Flags().GetString("set")
		pattern, _ := cmd.Flags().GetString("pattern")
		dir, _ := cmd.Flags().GetString("dir")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		policy, err := version.ParsePolicy(increment, explicit)
		if err != nil {
			return err
		}
		matcher, err := version.NewMatcher(pattern)
		if err != nil {
			return err
		}

		// BasePathFs rejects every path under a relative base such as "."
		root, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", dir, err)
		}
		var fsys afero.Fs = afero.NewBasePathFs(afero.NewOsFs(), root)
		if dryRun {
			fsys = afero.NewCopyOnWriteFs(afero.NewReadOnlyFs(fsys), afero.NewMemMapFs())
		}

		result, err := version.NewRewriter(fsys, matcher, logger).Rewrite(cmd.Context(), args, policy)
		if result != nil {
			printBump(cmd.OutOrStdout(), result, dryRun)
		}
		if err != nil {
			var partial *version.PartialError
			if errors.As(err, &partial) {
				logger.Error("version bump incomplete", "failed", len(partial.Failures), "updated", partial.Updated)
			}
			return err
		}
		return nil
	},
}

func printBump(w io.Writer, res *version.Result, dryRun bool) {
	verb := "updated"
	if dryRun {
		verb = "would update"
	}
	if len(res.Updated) > 0 {
		fmt.Fprintf(w, "%s -> %s\n", res.OldVersion, res.NewVersion)
	}
	for _, m := range res.Updated {
		fmt.Fprintf(w, "  %s %s:%d (%s)\n", verb, m.Path, m.Line, m.Text)
	}
	for _, m := range res.Divergent() {
		fmt.Fprintf(w, "  note: %s had %s\n", m.Path, m.Found)
	}
	for _, p := range res.Skipped {
		fmt.Fprintf(w, "  skipped %s: no version found\n", p)
	}
	for _, f := range res.Failures {
		fmt.Fprintf(w, "  failed %s: %v\n", f.Path, f.Err)
	}
	if res.Outcome() == version.OutcomePartial {
		fmt.Fprintf(w, "partial: %d updated, %d failed\n", len(res.Updated), len(res.Failures))
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.AddCommand(versionBumpCmd)

	versionBumpCmd.Flags().String("increment", "patch", "part to increment (major, minor, patch)")
	versionBumpCmd.Flags().String("set", "", "explicit new version, overrides --increment")
	versionBumpCmd.Flags().String("pattern", "", "regular expression with major, minor and patch groups")
	versionBumpCmd.Flags().String("dir", ".", "directory the files are relative to")
	versionBumpCmd.Flags().Bool("dry-run", false, "show what would change without writing")
}
