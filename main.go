package main

import (
	"os"

	"github.com/go-i2p/logger"
	"github.com/spf13/cobra"

	"github.com/go-i2p/go-onionpath/lib/config"
	"github.com/go-i2p/go-onionpath/lib/util"
	"github.com/go-i2p/go-onionpath/lib/util/signals"
)

var log = logger.GetGoI2PLogger()

func main() {
	if err := rootCmd().Execute(); err != nil {
		log.WithError(err).Error("command failed")
		util.CloseAll()
		os.Exit(1)
	}
	util.CloseAll()
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "go-onionpath",
		Short:         "Onion path building and relaying",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.InitConfig(); err != nil {
				return err
			}
			go signals.Handle()
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			signals.StopHandle()
		},
	}
	root.PersistentFlags().StringVar(&config.CfgFile, "config", "", "config file (default ~/"+config.BASE_DIR+"/config.yaml)")
	root.AddCommand(simulateCmd(), configCmd(), keygenCmd())
	return root
}
