package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/bonjohen/hubqueue/internal/ci"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newCIClient(ctx context.Context) (*ci.Client, error) {
	repo := viper.GetString("repo")
	if repo == "" {
		return nil, fmt.Errorf("--repo or GITHUB_REPOSITORY is required")
	}
	var opts []ci.Option
	if u := viper.GetString("github-url"); u != "" {
		opts = append(opts, ci.WithBaseURL(u))
	}
	return ci.New(ctx, viper.GetString("github-token"), repo, GetLogger(), opts...)
}

// durationSetting prefers an explicitly set flag over the config value.
func durationSetting(cmd *cobra.Command, flag, key string) time.Duration {
	if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
		d, _ := cmd.Flags().GetDuration(flag)
		return d
	}
	return viper.GetDuration(key)
}

func stringSetting(cmd *cobra.Command, flag, key string) string {
	if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
		s, _ := cmd.Flags().GetString(flag)
		return s
	}
	return viper.GetString(key)
}

func intSetting(cmd *cobra.Command, flag, key string) int {
	if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
		n, _ := cmd.Flags().GetInt(flag)
		return n
	}
	return viper.GetInt(key)
}
