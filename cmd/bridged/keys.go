package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weisyn/bridge-go/wallet"
)

func newKeysCmd() *cobra.Command {
	var keys keyFlags

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage encrypted validator keys",
	}
	cmd.PersistentFlags().StringVar(&keys.keystoreDir, "keystore", "", "keystore directory")
	cmd.PersistentFlags().StringVar(&keys.password, "password", "", "keystore password (or BRIDGE_KEYSTORE_PASSWORD)")
	cmd.PersistentFlags().StringVar(&keys.passwordFile, "password-file", "", "file containing the keystore password")

	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Generate a key and store it encrypted",
		RunE: func(cmd *cobra.Command, args []string) error {
			km, password, err := openKeystore(&keys)
			if err != nil {
				return err
			}
			var w wallet.Wallet
			if keys.key != "" {
				w, err = wallet.NewWalletFromPrivateKey(keys.key)
			} else {
				w, err = wallet.NewWallet()
			}
			if err != nil {
				return err
			}
			path, err := km.Save(w, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", w.Address().Hex(), path)
			return nil
		},
	}
	newCmd.Flags().StringVar(&keys.key, "import", "", "import this hex private key instead of generating one")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List addresses in the keystore",
		RunE: func(cmd *cobra.Command, args []string) error {
			if keys.keystoreDir == "" {
				return fmt.Errorf("--keystore is required")
			}
			km, err := wallet.NewKeystoreManager(keys.keystoreDir)
			if err != nil {
				return err
			}
			addrs, err := km.List()
			if err != nil {
				return err
			}
			for _, addr := range addrs {
				fmt.Fprintln(cmd.OutOrStdout(), addr.Hex())
			}
			return nil
		},
	}

	cmd.AddCommand(newCmd, listCmd)
	return cmd
}

func openKeystore(keys *keyFlags) (*wallet.KeystoreManager, string, error) {
	if keys.keystoreDir == "" {
		return nil, "", fmt.Errorf("--keystore is required")
	}
	password, err := keys.resolvePassword()
	if err != nil {
		return nil, "", err
	}
	if password == "" {
		return nil, "", fmt.Errorf("a keystore password is required")
	}
	km, err := wallet.NewKeystoreManager(keys.keystoreDir)
	if err != nil {
		return nil, "", err
	}
	return km, password, nil
}
