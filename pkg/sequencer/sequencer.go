package sequencer

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/escrowdex/pkg/abci"
	"github.com/uhyunpark/escrowdex/pkg/app/core/eventlog"
	"github.com/uhyunpark/escrowdex/pkg/storage"
	"github.com/uhyunpark/escrowdex/pkg/util"
)

// DefaultBlockTime paces block production when MinBlockTime is unset
const DefaultBlockTime = 200 * time.Millisecond

// ErrAppHashMismatch means replaying a stored block did not reproduce the
// state hash recorded when it was first executed.
var ErrAppHashMismatch = errors.New("app hash mismatch")

// Sequencer is the single writer of the chain: it drains the mempool into
// blocks, executes them, persists them and fans committed events out.
type Sequencer struct {
	App        abci.Application
	Store      storage.Store
	Journal    storage.Journal
	Publishers []eventlog.Publisher
	Clock      util.Clock

	Logger         *zap.SugaredLogger
	VerboseLogging bool // if false, only log non-empty blocks and errors

	MinBlockTime time.Duration
	MaxTxBytes   int64 // per block; 0 = unlimited

	// OnBlockCommit runs after a block is stored and published
	OnBlockCommit func(height int64)

	height    int64
	blockTime int64
	parent    common.Hash
}

func New(app abci.Application, store storage.Store, clock util.Clock, logger *zap.SugaredLogger) *Sequencer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if clock == nil {
		clock = util.RealClock{}
	}
	return &Sequencer{
		App:          app,
		Store:        store,
		Journal:      storage.NewNopJournal(),
		Clock:        clock,
		Logger:       logger,
		MinBlockTime: DefaultBlockTime,
	}
}

// Height is the last block this sequencer executed
func (s *Sequencer) Height() int64 { return s.height }

// Replay re-executes every stored block in height order and checks that
// each one reproduces its recorded app hash. Must run before Run.
func (s *Sequencer) Replay(ctx context.Context) error {
	start := time.Now()
	err := s.Store.BlocksFrom(1, func(b storage.Block) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if b.Height != s.height+1 {
			return errors.Newf("replay: expected height %d, found %d", s.height+1, b.Height)
		}
		if b.ParentHash != s.parent {
			return errors.Newf("replay: block %d parent %s does not chain", b.Height, b.ParentHash.Hex())
		}
		resp := s.App.FinalizeBlock(abci.RequestFinalizeBlock{Height: b.Height, Timestamp: b.Time, Txs: b.Txs})
		if resp.AppHash != b.AppHash {
			return errors.Wrapf(ErrAppHashMismatch, "height %d: stored %s, replayed %s",
				b.Height, b.AppHash.Hex(), resp.AppHash.Hex())
		}
		s.advance(b)
		return nil
	})
	if err != nil {
		return err
	}
	s.Logger.Infow("replay_complete", "height", s.height, "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// Run produces a block every MinBlockTime until ctx is cancelled
func (s *Sequencer) Run(ctx context.Context) error {
	interval := s.MinBlockTime
	if interval <= 0 {
		interval = DefaultBlockTime
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.Clock.After(interval):
		}
		if _, _, err := s.ProduceBlock(ctx); err != nil {
			return err
		}
	}
}

// ProduceBlock pulls pending transactions and commits them as the next
// block. It reports false without touching state when nothing is pending.
func (s *Sequencer) ProduceBlock(ctx context.Context) (storage.Block, bool, error) {
	height := s.height + 1
	prep := s.App.PrepareProposal(abci.RequestPrepareProposal{Height: height, MaxTxBytes: s.MaxTxBytes})
	if len(prep.Txs) == 0 {
		if s.VerboseLogging {
			s.Logger.Debugw("block_skip_empty", "height", height)
		}
		return storage.Block{}, false, nil
	}

	if !s.App.ProcessProposal(abci.RequestProcessProposal{Height: height, Txs: prep.Txs}).Accept {
		// only malformed (empty) payloads get here; drop them with the block
		s.Logger.Warnw("proposal_rejected", "height", height, "txs", len(prep.Txs))
		return storage.Block{}, false, nil
	}

	ts := util.BlockTime(s.Clock, s.blockTime)

	resp := s.App.FinalizeBlock(abci.RequestFinalizeBlock{Height: height, Timestamp: ts, Txs: prep.Txs})
	b := storage.Block{
		Height:     height,
		Time:       ts,
		ParentHash: s.parent,
		Txs:        prep.Txs,
		AppHash:    resp.AppHash,
	}
	if err := s.Store.SaveBlock(b, resp.Results, resp.Records); err != nil {
		return storage.Block{}, false, errors.Wrapf(err, "save block %d", height)
	}
	s.advance(b)

	s.Journal.Append(fmt.Sprintf("commit height=%d txs=%d apphash=%s", height, len(b.Txs), b.AppHash.Hex()))
	s.Logger.Infow("block_committed",
		"height", height,
		"txs", len(b.Txs),
		"events", len(resp.Records),
		"app_hash", b.AppHash.Hex(),
	)

	s.publish(ctx, resp.Records)
	if s.OnBlockCommit != nil {
		s.OnBlockCommit(height)
	}
	return b, true, nil
}

func (s *Sequencer) advance(b storage.Block) {
	s.height = b.Height
	s.blockTime = b.Time
	s.parent = storage.HashOfBlock(b)
}

// publish is best effort: the block is already durable, so a failing
// publisher only loses its own copy.
func (s *Sequencer) publish(ctx context.Context, records []eventlog.Record) {
	if len(records) == 0 {
		return
	}
	for _, p := range s.Publishers {
		if err := p.Publish(ctx, records); err != nil {
			s.Logger.Warnw("publish_failed", "publisher", fmt.Sprintf("%T", p), "records", len(records), "err", err)
		}
	}
}
