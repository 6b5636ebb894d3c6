package cli

import (
	"fmt"

	"leadgate/internal/config"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}

	var out string
	exampleCmd := &cobra.Command{
		Use:         "example",
		Short:       "Write an example configuration file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.SaveExample(out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Example configuration written to %s\n", out)
			return nil
		},
	}
	exampleCmd.Flags().StringVarP(&out, "out", "o", "configs/config.example.yaml", "Destination path")

	configCmd.AddCommand(exampleCmd)
	return configCmd
}
