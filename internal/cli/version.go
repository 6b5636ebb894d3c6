package cli

import (
	"fmt"

	"leadgate/internal/version"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Long:        "Print version information for leadgate",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			info := version.GetInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "leadgate version %s\n", info.Version)
			fmt.Fprintf(cmd.OutOrStdout(), "Git commit: %s\n", info.GitCommit)
			fmt.Fprintf(cmd.OutOrStdout(), "Build date: %s\n", info.BuildDate)
		},
	}
}
