package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weisyn/bridge-go/config"
	"github.com/weisyn/bridge-go/services/quorum"
	"github.com/weisyn/bridge-go/types"
	"github.com/weisyn/bridge-go/utils"
)

// signOutput sign 命令输出
type signOutput struct {
	Signer    string `json:"signer"`
	BatchHash string `json:"batchHash"`
	Signature string `json:"signature"`
}

func newSignCmd() *cobra.Command {
	cfg := config.DefaultConfig()
	var (
		cfgPath    string
		keys       keyFlags
		token      string
		recipients []string
		amounts    []string
		batchID    string
	)

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a settlement batch with a validator key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Resolve(&cfg, cmd.Flags(), cfgPath); err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			domain, err := cfg.Domain()
			if err != nil {
				return err
			}

			batch, err := parseBatch(token, recipients, amounts, batchID)
			if err != nil {
				return err
			}
			w, err := keys.wallet()
			if err != nil {
				return err
			}

			ds := domain.Separator()
			sig, err := quorum.SignBatch(w, ds, batch)
			if err != nil {
				return err
			}
			hash := quorum.BatchHash(ds, batch)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(signOutput{
				Signer:    w.Address().Hex(),
				BatchHash: hash.Hex(),
				Signature: utils.EncodeHex(sig),
			})
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", "", "config file supplying the [domain] section")
	keys.bind(cmd.Flags())
	cmd.Flags().StringVar(&token, "token", "", "token address")
	cmd.Flags().StringSliceVar(&recipients, "recipients", nil, "recipient addresses")
	cmd.Flags().StringSliceVar(&amounts, "amounts", nil, "amounts (decimal or 0x hex), one per recipient")
	cmd.Flags().StringVar(&batchID, "batch-id", "", "batch id")
	bindDomainFlags(cmd, &cfg)
	return cmd
}

func parseBatch(token string, recipients, amounts []string, batchID string) (*types.Batch, error) {
	tokenAddr, err := utils.ParseAddress(token)
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}
	addrs, err := utils.ParseAddresses(recipients)
	if err != nil {
		return nil, fmt.Errorf("recipients: %w", err)
	}
	values, err := utils.ParseAmounts(amounts)
	if err != nil {
		return nil, fmt.Errorf("amounts: %w", err)
	}
	if len(addrs) != len(values) {
		return nil, types.ErrLengthMismatch.WithDetail("%d recipients, %d amounts", len(addrs), len(values))
	}
	id, err := utils.ParseAmount(batchID)
	if err != nil {
		return nil, fmt.Errorf("batch id: %w", err)
	}
	return &types.Batch{Token: tokenAddr, Recipients: addrs, Amounts: values, ID: id}, nil
}
