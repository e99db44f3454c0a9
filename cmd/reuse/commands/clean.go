package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/reuse/internal/app"
)

func (c *CLI) newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove materialized outputs and build logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			withCache, _ := cmd.Flags().GetBool("cache")
			return c.app.Clean(cmd.Context(), app.CleanOptions{Cache: withCache})
		},
	}

	cmd.Flags().Bool("cache", false, "Also remove the local artifact cache")

	return cmd
}
