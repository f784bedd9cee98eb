// bridged 跨链桥结算节点
package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
)

const helpDescription = `
Bridge settlement node: validator-signed batch settlement with collateral limits and replay protection.

Commands:
  serve    run the node (JSON-RPC / WebSocket / gRPC / metrics)
  sign     sign a settlement batch with a validator key
  domain   print the signing domain separator
  keys     manage encrypted validator keys
`

var exampleUsage = strings.TrimSpace(`
  bridged serve --config $HOME/.bridge/config.toml
  bridged domain --chain-id 1 --verifying-contract 0x...
  bridged sign --keystore ./keys --address 0x... --token 0x... --recipients 0xa,0xb --amounts 10,20 --batch-id 1
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bridged",
		Short:         "Bridge batch settlement node",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCmd(),
		newSignCmd(),
		newDomainCmd(),
		newKeysCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
