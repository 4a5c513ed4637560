package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-i2p/go-onionpath/lib/config"
	"github.com/go-i2p/go-onionpath/lib/keys"
)

func keygenCmd() *cobra.Command {
	var dir, name string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create or load router keys and print the router ID",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = config.CurrentConfig().Router.WorkingDir
			}
			ks, err := keys.NewRouterKeystore(dir, name)
			if err != nil {
				return err
			}
			if err := ks.StoreKeys(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "router id:      %s\n", ks.RouterID())
			fmt.Fprintf(out, "encryption key: %s\n", ks.EncryptionKeypair().Public)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "key directory (default router.working_dir)")
	cmd.Flags().StringVar(&name, "name", "router", "key file name without extension")
	return cmd
}
