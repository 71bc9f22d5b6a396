package main

import (
	"github.com/spf13/cobra"

	"github.com/uhyunpark/escrowdex/pkg/app/core/transaction"
	"github.com/uhyunpark/escrowdex/pkg/crypto"
)

// KeygenCmd prints a fresh key pair
var KeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new key pair",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		signer, err := crypto.GenerateKey()
		if err != nil {
			return err
		}
		cmd.Printf("Address: %s\n", signer.Address().Hex())
		cmd.Printf("Private Key: %s (KEEP SECRET!)\n", signer.PrivateKeyHex())
		return nil
	},
}

// actionCmd wires a cobra command that builds one action from its
// positional args with the sender's wallet
func actionCmd(use, short string, nargs int, build func(w *transaction.Wallet, args []string) ([]byte, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := wallet()
			if err != nil {
				return err
			}
			raw, err := build(w, args)
			if err != nil {
				return err
			}
			return emit(cmd, raw)
		},
	}
}

var DepositNativeCmd = actionCmd("deposit-native <value>", "Deposit native currency into the exchange", 1,
	func(w *transaction.Wallet, args []string) ([]byte, error) {
		v, err := parseAmount("value", args[0])
		if err != nil {
			return nil, err
		}
		return w.DepositNative(v)
	})

var WithdrawNativeCmd = actionCmd("withdraw-native <amount>", "Withdraw native currency from the exchange", 1,
	func(w *transaction.Wallet, args []string) ([]byte, error) {
		v, err := parseAmount("amount", args[0])
		if err != nil {
			return nil, err
		}
		return w.WithdrawNative(v)
	})

var DepositAssetCmd = actionCmd("deposit-asset <token> <amount>", "Deposit an approved token into the exchange", 2,
	func(w *transaction.Wallet, args []string) ([]byte, error) {
		asset, err := parseAddress("token", args[0])
		if err != nil {
			return nil, err
		}
		v, err := parseAmount("amount", args[1])
		if err != nil {
			return nil, err
		}
		return w.DepositAsset(asset, v)
	})

var WithdrawAssetCmd = actionCmd("withdraw-asset <token> <amount>", "Withdraw a token from the exchange", 2,
	func(w *transaction.Wallet, args []string) ([]byte, error) {
		asset, err := parseAddress("token", args[0])
		if err != nil {
			return nil, err
		}
		v, err := parseAmount("amount", args[1])
		if err != nil {
			return nil, err
		}
		return w.WithdrawAsset(asset, v)
	})

var MakeOrderCmd = actionCmd("make-order <asset-offered> <amount-offered> <asset-wanted> <amount-wanted>",
	"Post an order; the zero address is the native asset", 4,
	func(w *transaction.Wallet, args []string) ([]byte, error) {
		offered, err := parseAddress("asset-offered", args[0])
		if err != nil {
			return nil, err
		}
		amountOffered, err := parseAmount("amount-offered", args[1])
		if err != nil {
			return nil, err
		}
		wanted, err := parseAddress("asset-wanted", args[2])
		if err != nil {
			return nil, err
		}
		amountWanted, err := parseAmount("amount-wanted", args[3])
		if err != nil {
			return nil, err
		}
		return w.MakeOrder(offered, amountOffered, wanted, amountWanted)
	})

var CancelOrderCmd = actionCmd("cancel-order <id>", "Cancel one of your open orders", 1,
	func(w *transaction.Wallet, args []string) ([]byte, error) {
		id, err := parseOrderID(args[0])
		if err != nil {
			return nil, err
		}
		return w.CancelOrder(id)
	})

var FillOrderCmd = actionCmd("fill-order <id>", "Fill an open order in full", 1,
	func(w *transaction.Wallet, args []string) ([]byte, error) {
		id, err := parseOrderID(args[0])
		if err != nil {
			return nil, err
		}
		return w.FillOrder(id)
	})

var TokenTransferCmd = actionCmd("transfer <token> <to> <amount>", "Transfer tokens you hold", 3,
	func(w *transaction.Wallet, args []string) ([]byte, error) {
		asset, err := parseAddress("token", args[0])
		if err != nil {
			return nil, err
		}
		to, err := parseAddress("to", args[1])
		if err != nil {
			return nil, err
		}
		v, err := parseAmount("amount", args[2])
		if err != nil {
			return nil, err
		}
		return w.TokenTransfer(asset, to, v)
	})

var TokenApproveCmd = actionCmd("approve <token> <spender> <amount>", "Set a spender's allowance", 3,
	func(w *transaction.Wallet, args []string) ([]byte, error) {
		asset, err := parseAddress("token", args[0])
		if err != nil {
			return nil, err
		}
		spender, err := parseAddress("spender", args[1])
		if err != nil {
			return nil, err
		}
		v, err := parseAmount("amount", args[2])
		if err != nil {
			return nil, err
		}
		return w.TokenApprove(asset, spender, v)
	})

var TokenTransferFromCmd = actionCmd("transfer-from <token> <owner> <to> <amount>", "Spend an allowance", 4,
	func(w *transaction.Wallet, args []string) ([]byte, error) {
		asset, err := parseAddress("token", args[0])
		if err != nil {
			return nil, err
		}
		owner, err := parseAddress("owner", args[1])
		if err != nil {
			return nil, err
		}
		to, err := parseAddress("to", args[2])
		if err != nil {
			return nil, err
		}
		v, err := parseAmount("amount", args[3])
		if err != nil {
			return nil, err
		}
		return w.TokenTransferFrom(asset, owner, to, v)
	})

var NativeTransferCmd = actionCmd("native-transfer <to> <amount>", "Send native currency outside the exchange", 2,
	func(w *transaction.Wallet, args []string) ([]byte, error) {
		to, err := parseAddress("to", args[0])
		if err != nil {
			return nil, err
		}
		v, err := parseAmount("amount", args[1])
		if err != nil {
			return nil, err
		}
		return w.NativeTransfer(to, v)
	})
