package p2p

import (
	"context"
	"io"
	"sync"

	"github.com/cockroachdb/errors"
	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"

	"github.com/uhyunpark/escrowdex/pkg/app/core/eventlog"
	"github.com/uhyunpark/escrowdex/pkg/crypto"
)

const (
	topicEvents = "escrowdex-events"
	topicBlocks = "escrowdex-blocks"
	protocolTx  = protocol.ID("/escrowdex/tx/1.0.0")

	// maxTxSize bounds a forwarded transaction read from a stream
	maxTxSize = 64 << 10
)

// Handlers are the callbacks for inbound gossip. Any may be nil.
type Handlers struct {
	OnEvents func(ctx context.Context, from peer.ID, records []eventlog.Record)
	OnBlock  func(ctx context.Context, from peer.ID, b BlockAnnounce)
	// OnTx receives a transaction forwarded by a peer; its error is sent
	// back to the forwarder.
	OnTx func(raw []byte) error
}

// Libp2pNet gossips committed blocks and events from the sequencer to
// observer nodes, and carries transactions from observers back to it.
type Libp2pNet struct {
	h   host.Host
	ps  *pubsub.PubSub
	log *zap.SugaredLogger

	tEvents, tBlocks     *pubsub.Topic
	subEvents, subBlocks *pubsub.Subscription

	signer *crypto.BLSSigner
	seqKey *crypto.BLSPubKey

	muH      sync.RWMutex
	handlers Handlers
}

type Libp2pConfig struct {
	ListenAddr string
	Bootstrap  []string
	Logger     *zap.SugaredLogger
	// BlockSigner signs outgoing block announcements (sequencer only)
	BlockSigner *crypto.BLSSigner
	// SequencerKey, when set, drops announcements not signed by it
	SequencerKey *crypto.BLSPubKey
}

func NewLibp2pNet(ctx context.Context, cfg Libp2pConfig) (*Libp2pNet, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	var opts []libp2p.Option
	if cfg.ListenAddr != "" {
		maddr, err := ma.NewMultiaddr(cfg.ListenAddr)
		if err != nil {
			return nil, errors.Wrapf(err, "listen addr %q", cfg.ListenAddr)
		}
		opts = append(opts, libp2p.ListenAddrs(maddr))
	}
	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, err
	}
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		return nil, err
	}

	n := &Libp2pNet{h: h, ps: ps, log: cfg.Logger, signer: cfg.BlockSigner, seqKey: cfg.SequencerKey}

	for _, bs := range cfg.Bootstrap {
		if err := n.Connect(ctx, bs); err != nil {
			cfg.Logger.Warnw("bootstrap_connect_failed", "addr", bs, "err", err)
		}
	}

	if err := n.joinTopics(); err != nil {
		h.Close()
		return nil, err
	}

	h.SetStreamHandler(protocolTx, n.handleTxStream)

	go n.handleEvents(ctx)
	go n.handleBlocks(ctx)

	cfg.Logger.Infow("libp2p_ready", "peer", h.ID().String(), "listen", cfg.ListenAddr)
	return n, nil
}

// Connect dials a full /p2p/ multiaddr
func (n *Libp2pNet) Connect(ctx context.Context, addr string) error {
	m, err := ma.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	info, err := peer.AddrInfoFromP2pAddr(m)
	if err != nil {
		return err
	}
	return n.h.Connect(ctx, *info)
}

func (n *Libp2pNet) joinTopics() error {
	var err error
	if n.tEvents, err = n.ps.Join(topicEvents); err != nil {
		return err
	}
	if n.tBlocks, err = n.ps.Join(topicBlocks); err != nil {
		return err
	}
	if n.subEvents, err = n.tEvents.Subscribe(); err != nil {
		return err
	}
	if n.subBlocks, err = n.tBlocks.Subscribe(); err != nil {
		return err
	}
	return nil
}

func (n *Libp2pNet) SetHandlers(h Handlers) { n.muH.Lock(); n.handlers = h; n.muH.Unlock() }

func (n *Libp2pNet) Host() host.Host { return n.h }

// Addrs lists the dialable /p2p/ addresses of this node
func (n *Libp2pNet) Addrs() []string {
	self, err := ma.NewMultiaddr("/p2p/" + n.h.ID().String())
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(n.h.Addrs()))
	for _, a := range n.h.Addrs() {
		out = append(out, a.Encapsulate(self).String())
	}
	return out
}

func (n *Libp2pNet) Close() error {
	n.subEvents.Cancel()
	n.subBlocks.Cancel()
	return n.h.Close()
}

// Publish gossips committed records; it satisfies eventlog.Publisher
func (n *Libp2pNet) Publish(ctx context.Context, records []eventlog.Record) error {
	if len(records) == 0 {
		return nil
	}
	data, err := encodeEvents(records)
	if err != nil {
		return err
	}
	return n.tEvents.Publish(ctx, data)
}

// AnnounceBlock signs (when the node has a block key) and gossips a
// committed block header
func (n *Libp2pNet) AnnounceBlock(ctx context.Context, b BlockAnnounce) error {
	if n.signer != nil {
		b.Signature = n.signer.Sign(b.SigningBytes())
	}
	data, err := gobEncode(b)
	if err != nil {
		return err
	}
	return n.tBlocks.Publish(ctx, data)
}

// ForwardTx sends a raw signed transaction to peer over a stream and
// waits for its verdict.
func (n *Libp2pNet) ForwardTx(ctx context.Context, to peer.ID, raw []byte) error {
	s, err := n.h.NewStream(ctx, to, protocolTx)
	if err != nil {
		return errors.Wrapf(err, "open tx stream to %s", to)
	}
	defer s.Close()

	if _, err := s.Write(raw); err != nil {
		return err
	}
	if err := s.CloseWrite(); err != nil {
		return err
	}
	reply, err := io.ReadAll(io.LimitReader(s, maxTxSize))
	if err != nil {
		return err
	}
	var ack TxAck
	if err := gobDecode(reply, &ack); err != nil {
		return errors.Wrap(err, "decode tx ack")
	}
	if !ack.Accepted {
		return errors.Newf("peer rejected tx: %s", ack.Error)
	}
	return nil
}

// inbound

func (n *Libp2pNet) currentHandlers() Handlers {
	n.muH.RLock()
	defer n.muH.RUnlock()
	return n.handlers
}

func (n *Libp2pNet) handleEvents(ctx context.Context) {
	for {
		msg, err := n.subEvents.Next(ctx)
		if err != nil {
			return
		}
		if msg.ReceivedFrom == n.h.ID() {
			continue
		}
		records, err := decodeEvents(msg.Data)
		if err != nil {
			n.log.Debugw("gossip_events_decode_failed", "from", msg.ReceivedFrom.String(), "err", err)
			continue
		}
		if h := n.currentHandlers(); h.OnEvents != nil {
			h.OnEvents(ctx, msg.ReceivedFrom, records)
		}
	}
}

func (n *Libp2pNet) handleBlocks(ctx context.Context) {
	for {
		msg, err := n.subBlocks.Next(ctx)
		if err != nil {
			return
		}
		if msg.ReceivedFrom == n.h.ID() {
			continue
		}
		var b BlockAnnounce
		if err := gobDecode(msg.Data, &b); err != nil {
			continue
		}
		if !n.acceptBlock(b) {
			n.log.Warnw("gossip_block_bad_signature", "from", msg.ReceivedFrom.String(), "height", b.Height)
			continue
		}
		if h := n.currentHandlers(); h.OnBlock != nil {
			h.OnBlock(ctx, msg.ReceivedFrom, b)
		}
	}
}

// acceptBlock checks an announcement against the sequencer key, if any
func (n *Libp2pNet) acceptBlock(b BlockAnnounce) bool {
	if n.seqKey == nil {
		return true
	}
	return crypto.VerifyBLS(n.seqKey, b.Signature, b.SigningBytes())
}

func (n *Libp2pNet) handleTxStream(s network.Stream) {
	defer s.Close()

	raw, err := io.ReadAll(io.LimitReader(s, maxTxSize))
	if err != nil {
		return
	}

	ack := TxAck{Accepted: true}
	h := n.currentHandlers()
	switch {
	case h.OnTx == nil:
		ack = TxAck{Error: "node does not accept transactions"}
	default:
		if err := h.OnTx(raw); err != nil {
			ack = TxAck{Error: err.Error()}
		}
	}

	data, err := gobEncode(ack)
	if err != nil {
		return
	}
	_, _ = s.Write(data)
}

var _ eventlog.Publisher = (*Libp2pNet)(nil)
