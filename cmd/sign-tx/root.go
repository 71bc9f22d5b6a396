package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"github.com/uhyunpark/escrowdex/pkg/app/core/ledger"
	"github.com/uhyunpark/escrowdex/pkg/app/core/transaction"
	"github.com/uhyunpark/escrowdex/pkg/crypto"
)

// global flags
var (
	keyHex    string
	lastNonce uint64
	exchange  string
	chainID   int64
	submitURL string
)

var RootCmd = &cobra.Command{
	Use:   "sign-tx",
	Short: "Sign EscrowDEX transactions with EIP-712 and optionally submit them",
	Long: `sign-tx builds one signed transaction per invocation and prints it as JSON.

The nonce is last+1, where last is the account's current nonce
(GET /api/v1/accounts/{addr}/nonce). With --submit the transaction is
POSTed to {url}/api/v1/txs.`,
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&keyHex, "key", "", "Hex private key of the sender (required)")
	RootCmd.PersistentFlags().Uint64Var(&lastNonce, "nonce", 0, "Last nonce the chain has seen from the sender")
	RootCmd.PersistentFlags().StringVar(&exchange, "exchange", "", "Exchange address (EIP-712 verifying contract, required)")
	RootCmd.PersistentFlags().Int64Var(&chainID, "chain-id", 1337, "Chain id of the EIP-712 domain")
	RootCmd.PersistentFlags().StringVar(&submitURL, "submit", "", "Node API base URL, e.g. http://localhost:8080")
}

// wallet builds the sender's wallet from the global flags
func wallet() (*transaction.Wallet, error) {
	if keyHex == "" {
		return nil, errors.New("--key is required")
	}
	signer, err := crypto.FromPrivateKeyHex(keyHex)
	if err != nil {
		return nil, err
	}
	exch, err := parseAddress("exchange", exchange)
	if err != nil {
		return nil, err
	}
	domain := crypto.DefaultDomain(exch)
	domain.ChainID.SetInt64(chainID)
	return transaction.NewWallet(domain, signer, lastNonce), nil
}

func parseAddress(name, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.Newf("%s: invalid address %q", name, s)
	}
	return common.HexToAddress(s), nil
}

func parseAmount(name, s string) (*uint256.Int, error) {
	v, err := ledger.ParseAmount(s)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", name)
	}
	return v, nil
}

func parseOrderID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "order id %q", s)
	}
	return id, nil
}

// emit prints raw and submits it when --submit is set
func emit(cmd *cobra.Command, raw []byte) error {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), pretty.String())
	fmt.Fprintf(cmd.OutOrStdout(), "tx hash: %s\n", transaction.HashRaw(raw).Hex())

	if submitURL == "" {
		return nil
	}
	return submit(cmd.OutOrStdout(), submitURL, raw)
}

func submit(out io.Writer, baseURL string, raw []byte) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(baseURL+"/api/v1/txs", "application/json", bytes.NewReader(raw))
	if err != nil {
		return errors.Wrap(err, "submit")
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusAccepted {
		return errors.Newf("submit: %s: %s", resp.Status, bytes.TrimSpace(body))
	}
	fmt.Fprintf(out, "submitted: %s\n", bytes.TrimSpace(body))
	return nil
}
