package main

import (
	"os"
)

func init() {
	RootCmd.AddCommand(KeygenCmd,
		DepositNativeCmd, WithdrawNativeCmd, DepositAssetCmd, WithdrawAssetCmd,
		MakeOrderCmd, CancelOrderCmd, FillOrderCmd,
		TokenTransferCmd, TokenApproveCmd, TokenTransferFromCmd, NativeTransferCmd)
}

func main() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
