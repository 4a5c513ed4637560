package main

import (
	"github.com/spf13/cobra"

	"github.com/go-i2p/go-onionpath/lib/config"
)

func configCmd() *cobra.Command {
	var defaults bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			if defaults {
				return config.WriteDefaultConfig(cmd.OutOrStdout())
			}
			return config.WriteConfig(cmd.OutOrStdout(), config.CurrentConfig())
		},
	}
	cmd.Flags().BoolVar(&defaults, "defaults", false, "print built-in defaults instead of the loaded config")
	return cmd
}
