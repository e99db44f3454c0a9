package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/reuse/internal/app"
	"go.trai.ch/reuse/internal/core/domain"
)

func (c *CLI) newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [units...]",
		Short: "Build units, reusing cached outputs where their inputs allow",
		Long: "Build the given units and everything they depend on. " +
			"Without arguments every unit of the workspace is built.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			noCache, _ := cmd.Flags().GetBool("no-cache")
			cacheMode, _ := cmd.Flags().GetString("cache-mode")
			parallelism, _ := cmd.Flags().GetInt("jobs")
			logFile, _ := cmd.Flags().GetString("log-file")

			return c.app.Build(cmd.Context(), args, app.BuildOptions{
				NoCache:     noCache,
				CacheMode:   domain.CacheMode(cacheMode),
				Parallelism: parallelism,
				LogFile:     logFile,
			})
		},
	}
	cmd.Flags().BoolP("no-cache", "n", false, "Skip every cache tier and rebuild; results are still written")
	cmd.Flags().String("cache-mode", "", "Override the cache mode: readwrite, readonly or off")
	cmd.Flags().IntP("jobs", "j", 0, "Number of units resolved in parallel (default: workspace setting or CPU count)")
	cmd.Flags().String("log-file", "", "Write unit outcomes as JSON lines to this file (default: .reuse/log/build.jsonl)")
	return cmd
}
