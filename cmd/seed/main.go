package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/uhyunpark/escrowdex/pkg/crypto"
	"github.com/uhyunpark/escrowdex/pkg/util"
)

var errNoToken = errors.New("exchange has no registered token")

// second well-known ganache key; the first is the devnet deployer
const defaultUser2Key = "6370fd033278c143179d81c5526140625662b8daa446c22ee2d73db3707e620c"

var (
	nodeURL  string
	user1Key string
	user2Key string
	chainID  int64
	pause    time.Duration
)

var RootCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate a running node with sample deposits, orders and trades",
	Long: `seed drives a fresh exchange through a short scripted session.

user1 must be the genesis deployer (it holds the token supply) and must
have a native allocation of at least 1 unit (NATIVE_ALLOC).`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runSeed,
}

func init() {
	RootCmd.Flags().StringVar(&nodeURL, "node", "http://localhost:8080", "Node API base URL")
	RootCmd.Flags().StringVar(&user1Key, "user1-key", os.Getenv("DEPLOYER_KEY"), "Deployer private key (defaults to $DEPLOYER_KEY)")
	RootCmd.Flags().StringVar(&user2Key, "user2-key", defaultUser2Key, "Counterparty private key")
	RootCmd.Flags().Int64Var(&chainID, "chain-id", 1337, "Chain id of the EIP-712 domain")
	RootCmd.Flags().DurationVar(&pause, "pause", time.Second, "Pause between trades, spreads their timestamps")
}

func runSeed(cmd *cobra.Command, args []string) error {
	if user1Key == "" {
		return errors.New("--user1-key or DEPLOYER_KEY is required")
	}
	key1, err := crypto.FromPrivateKeyHex(user1Key)
	if err != nil {
		return errors.Wrap(err, "user1")
	}
	key2, err := crypto.FromPrivateKeyHex(user2Key)
	if err != nil {
		return errors.Wrap(err, "user2")
	}

	logger := util.NewLogger(false)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newSeeder(ctx, newNodeClient(nodeURL), key1, key2, chainID, logger.Sugar())
	if err != nil {
		return err
	}
	s.pause = pause
	if err := s.run(ctx); err != nil {
		return err
	}
	logger.Sugar().Infow("seed_complete", "user1", key1.Address().Hex(), "user2", key2.Address().Hex())
	return nil
}

func main() {
	if err := RootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
