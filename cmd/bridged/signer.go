package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/weisyn/bridge-go/utils"
	"github.com/weisyn/bridge-go/wallet"
)

// keyFlags 私钥来源：--key 十六进制私钥，或 --keystore + --address + 口令
type keyFlags struct {
	key          string
	keystoreDir  string
	address      string
	password     string
	passwordFile string
}

func (k *keyFlags) bind(fs *pflag.FlagSet) {
	fs.StringVar(&k.key, "key", "", "hex private key (prefer --keystore)")
	fs.StringVar(&k.keystoreDir, "keystore", "", "keystore directory")
	fs.StringVar(&k.address, "address", "", "account address inside the keystore")
	fs.StringVar(&k.password, "password", "", "keystore password (or BRIDGE_KEYSTORE_PASSWORD)")
	fs.StringVar(&k.passwordFile, "password-file", "", "file containing the keystore password")
}

// resolvePassword 口令优先级：--password-file → --password → BRIDGE_KEYSTORE_PASSWORD
func (k *keyFlags) resolvePassword() (string, error) {
	if k.passwordFile != "" {
		data, err := os.ReadFile(k.passwordFile)
		if err != nil {
			return "", fmt.Errorf("read password file: %w", err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}
	if k.password != "" {
		return k.password, nil
	}
	return os.Getenv("BRIDGE_KEYSTORE_PASSWORD"), nil
}

func (k *keyFlags) wallet() (wallet.Wallet, error) {
	switch {
	case k.key != "":
		return wallet.NewWalletFromPrivateKey(k.key)
	case k.keystoreDir != "":
		addr, err := utils.ParseAddress(k.address)
		if err != nil {
			return nil, fmt.Errorf("address: %w", err)
		}
		password, err := k.resolvePassword()
		if err != nil {
			return nil, err
		}
		km, err := wallet.NewKeystoreManager(k.keystoreDir)
		if err != nil {
			return nil, err
		}
		return km.Load(addr, password)
	default:
		return nil, fmt.Errorf("either --key or --keystore is required")
	}
}
