// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package node

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/luxfi/log"
	"golang.org/x/sync/errgroup"

	"github.com/openmina/openmina-go/config"
	"github.com/openmina/openmina-go/frontier"
	"github.com/openmina/openmina-go/frontier/candidates"
	"github.com/openmina/openmina-go/ledger"
	ledgersync "github.com/openmina/openmina-go/ledger/sync"
	"github.com/openmina/openmina-go/p2p"
	"github.com/openmina/openmina-go/p2p/kad"
	"github.com/openmina/openmina-go/rpc"
	"github.com/openmina/openmina-go/snarkpool"
	"github.com/openmina/openmina-go/snarkpool/worker"
	"github.com/openmina/openmina-go/stats"
	"github.com/openmina/openmina-go/store"
	"github.com/openmina/openmina-go/txpool"
)

// tickInterval paces the timeout sweep.
const tickInterval = time.Second

// Node owns the store and the event loop feeding it.
type Node struct {
	Log   log.Logger
	Store *store.Store[*State]
	Queue *store.EventQueue

	effects *Effects
	stats   *stats.SyncStats

	status atomic.Pointer[rpc.Status]
}

// New assembles a node from config, services and a hasher.
func New(
	cfg config.Config,
	logger log.Logger,
	clock store.Clock,
	queue *store.EventQueue,
	svcs Services,
	hasher ledger.Hasher,
	syncStats *stats.SyncStats,
	rec store.Recorder,
) (*Node, error) {
	state, err := NewState(cfg, hasher)
	if err != nil {
		return nil, err
	}

	if queue == nil {
		queue = store.NewEventQueue(1024)
	}
	n := &Node{
		Log:   logger,
		Queue: queue,
		stats: syncStats,
	}
	n.effects = NewEffects(logger, svcs, syncStats, cfg.Snarker.PublicKey)

	n.Store = store.New(
		state,
		clock,
		IsEnabled,
		Reduce,
		func(d store.Dispatcher, s *State, a store.WithMeta) {
			n.effects.Apply(d, s, a)
		},
		rec,
	)
	n.status.Store(&rpc.Status{})
	return n, nil
}

// Status implements rpc.StatusSource from the latest published snapshot.
func (n *Node) Status() rpc.Status {
	return *n.status.Load()
}

func (n *Node) publishStatus() {
	s := n.Store.State()
	n.status.Store(&rpc.Status{
		Healthy:    true,
		Synced:     s.Frontier.Sync.Phase == frontier.SyncSynced,
		SyncPhase:  s.Frontier.Sync.Phase.String(),
		ReadyPeers: s.P2P.ReadyCount(),
	})
}

// DispatchEvent converts a service completion into its action and runs it.
func (n *Node) DispatchEvent(ev store.Event) {
	if a := n.eventToAction(ev); a != nil {
		n.Store.Dispatch(a)
	}
	n.publishStatus()
}

// Run consumes events and ticks until the context ends. The loop is the
// only goroutine touching the store.
func (n *Node) Run(ctx context.Context) error {
	n.Store.Dispatch(Init{})
	n.publishStatus()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ev := <-n.Queue.C():
				n.DispatchEvent(ev)
			case <-ticker.C:
				n.Store.Dispatch(Tick{})
				n.publishStatus()
			}
		}
	})
	return g.Wait()
}

// eventToAction maps each completion event onto the owning subsystem's
// action. Events that no longer correlate fall through to nil and are
// dropped.
func (n *Node) eventToAction(ev store.Event) store.Action {
	s := n.Store.State()
	switch e := ev.(type) {
	case p2p.ConnectionEstablishedEvent:
		if p, known := s.P2P.Peer(e.Peer); !known || p.Status == p2p.PeerDisconnected {
			// inbound connection from a peer we were not dialing
			n.Store.Dispatch(p2p.ConnectionIncomingInit{Peer: e.Peer, Transport: e.Transport})
		}
		return p2p.ConnectionFinalized{Peer: e.Peer}

	case p2p.ConnectionClosedEvent:
		return p2p.Disconnected{Peer: e.Peer, Error: e.Error}

	case p2p.IncomingOfferEvent:
		return p2p.ConnectionIncomingInit{Peer: e.Peer, Transport: p2p.TransportWebRTC, Offer: e.Offer}

	case p2p.ChannelOpenedEvent:
		// the open handshake acknowledges then completes
		n.Store.Dispatch(p2p.ChannelPending{Peer: e.Peer, Channel: e.Channel})
		return p2p.ChannelReady{Peer: e.Peer, Channel: e.Channel}

	case p2p.ChannelMessageEvent:
		return n.channelMessageToAction(e)

	case p2p.PubsubMessageEvent:
		return p2p.PubsubMessageReceived{Message: e.Message}

	case p2p.KadStreamEvent:
		switch {
		case e.Closed:
			return p2p.KadRemoteClose{Peer: e.Peer}
		case e.Request != nil:
			if _, ok := s.P2P.Kad.Streams[e.Peer]; !ok {
				n.Store.Dispatch(p2p.KadStreamNew{Peer: e.Peer, Kind: kad.Incoming})
			}
			return p2p.KadRequestReceived{Peer: e.Peer, Request: *e.Request}
		case e.Reply != nil:
			return p2p.KadReplyReceived{Peer: e.Peer, Reply: *e.Reply}
		}
		return nil

	case BlockVerifyResultEvent:
		if e.OK {
			return candidates.SnarkVerifySuccessAction{Hash: e.Hash, VerifyID: e.ID}
		}
		return candidates.SnarkVerifyErrorAction{Hash: e.Hash, VerifyID: e.ID}

	case WorkVerifyResultEvent:
		if e.OK {
			return snarkpool.CandidateVerifySuccess{Peer: e.Peer, JobID: e.JobID, VerifyID: e.ID}
		}
		return snarkpool.CandidateVerifyError{Peer: e.Peer, JobID: e.JobID, VerifyID: e.ID}

	case GossipValidityEvent:
		n.Store.Dispatch(p2p.PubsubValidated{ID: e.ID, Accepted: e.OK})
		if e.OK && e.Block != nil {
			return candidates.BlockReceived{Block: e.Block}
		}
		return nil

	case TxVerifyResultEvent:
		if e.OK {
			return txpool.TxVerifySuccess{ID: e.TxID, VerifyID: e.ID}
		}
		return txpool.TxVerifyError{ID: e.TxID, VerifyID: e.ID}

	case BlockApplyResultEvent:
		if e.Error != "" {
			n.Log.Warn("block apply failed", "block", e.Hash, "error", e.Error)
			return nil
		}
		return frontier.BlockApplySuccess{Hash: e.Hash}

	case ReconstructResultEvent:
		if e.Error != "" {
			return ledgersync.ReconstructError{Error: e.Error}
		}
		return ledgersync.ReconstructSuccess{}

	case WorkerEvent:
		switch {
		case e.Started:
			return worker.Started{}
		case e.Result != nil:
			return worker.WorkResult{Snark: *e.Result}
		case e.Cancelled:
			return worker.WorkCancelled{}
		case e.Killed:
			return worker.Killed{}
		case e.Error != "":
			return worker.WorkError{Error: e.Error, Permanent: e.Permanent}
		}
		return nil
	}
	return nil
}

func (n *Node) channelMessageToAction(e p2p.ChannelMessageEvent) store.Action {
	switch msg := e.Msg.(type) {
	case p2p.RpcRequestMsg:
		return p2p.RpcRequestReceived{Peer: e.Peer, ID: msg.ID, Request: msg.Request}
	case p2p.RpcResponseMsg:
		return p2p.RpcResponseReceived{Peer: e.Peer, ID: msg.ID, Response: msg.Response}
	case p2p.PropagationRequestMsg:
		return p2p.PropagationRequestReceived{Peer: e.Peer, Channel: msg.Channel, Limit: msg.Limit}
	case p2p.PropagationItemMsg:
		return p2p.PropagationReceived{Peer: e.Peer, Channel: msg.Channel, Payload: msg.Payload}
	default:
		return nil
	}
}
