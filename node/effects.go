// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package node

import (
	"bytes"
	"sort"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/openmina/openmina-go/frontier"
	"github.com/openmina/openmina-go/frontier/candidates"
	ledgersync "github.com/openmina/openmina-go/ledger/sync"
	"github.com/openmina/openmina-go/p2p"
	"github.com/openmina/openmina-go/p2p/channels"
	"github.com/openmina/openmina-go/snarkpool"
	"github.com/openmina/openmina-go/snarkpool/worker"
	"github.com/openmina/openmina-go/stats"
	"github.com/openmina/openmina-go/store"
	"github.com/openmina/openmina-go/txpool"
	"github.com/openmina/openmina-go/types"
)

// Effects is the node-level coordination layer: it owns the subsystem
// effect structs and the glue between them.
type Effects struct {
	Log      log.Logger
	Services Services
	Stats    *stats.SyncStats

	p2pFx      *p2p.Effects
	frontierFx *frontier.Effects
	poolFx     *snarkpool.Effects
	workerFx   *worker.Effects

	// verifySeq mints verifier correlation ids deterministically from the
	// dispatch sequence.
	verifySeq uint64
}

// NewEffects wires the subsystem effect structs.
func NewEffects(logger log.Logger, svcs Services, syncStats *stats.SyncStats, localSnarker string) *Effects {
	return &Effects{
		Log:        logger,
		Services:   svcs,
		Stats:      syncStats,
		p2pFx:      &p2p.Effects{Service: svcs.P2P, Log: logger},
		frontierFx: &frontier.Effects{Log: logger, Ledger: ledgerApplier{svcs.Ledger}},
		poolFx:     &snarkpool.Effects{Log: logger, LocalSnarker: localSnarker},
		workerFx:   &worker.Effects{Service: svcs.Worker, Log: logger},
	}
}

type ledgerApplier struct{ svc Ledger }

func (l ledgerApplier) ApplyBlock(b *types.Block) { l.svc.ApplyBlock(b) }

// Apply runs the effect phase for one reduced action.
func (e *Effects) Apply(d store.Dispatcher, s *State, a store.WithMeta) {
	if e.Stats != nil {
		e.Stats.ActionDispatched()
	}
	switch act := a.Action.(type) {
	case p2p.Action:
		e.p2pFx.Apply(d, s.P2P, act, a.Meta)
		e.afterP2P(d, s, act, a.Meta)

	case frontier.Action:
		e.frontierFx.Apply(d, s.Frontier, act, a.Meta)
		e.afterFrontier(d, s, act, a.Meta)

	case candidates.Action:
		e.afterCandidates(d, s, act, a.Meta)

	case snarkpool.Action:
		e.poolFx.Apply(d, s.SnarkPool, s.Worker, act, a.Meta)
		e.afterPool(d, s, act, a.Meta)

	case worker.Action:
		e.workerFx.Apply(d, s.Worker, act, a.Meta)
		e.afterWorker(d, s, act, a.Meta)

	case txpool.Action:
		e.afterTxPool(d, s, act, a.Meta)

	case ledgersync.SnarkedAction:
		e.afterSnarkedSync(d, s, act, a.Meta)

	case ledgersync.StagedAction:
		e.afterStagedSync(d, s, act, a.Meta)

	case Action:
		e.applyNodeAction(d, s, act, a.Meta)
	}
}

func (e *Effects) applyNodeAction(d store.Dispatcher, s *State, a Action, meta store.ActionMeta) {
	switch a.(type) {
	case Init:
		d.Dispatch(frontier.InitSync{})
		d.Dispatch(frontier.BootstrapStart{Peers: readyPeersSorted(s)})

	case Tick:
		// timeout-style actions: enabling conditions drop the inert ones
		d.Dispatch(frontier.BootstrapTimeout{})
		d.Dispatch(worker.StartTimeout{})
		d.Dispatch(worker.WorkTimeout{})
		s.SnarkPool.Range(func(j *snarkpool.JobState) bool {
			if j.Commitment != nil {
				d.Dispatch(snarkpool.CommitmentTimeout{JobID: j.Job.ID})
			}
			return true
		})
		for _, peer := range readyPeersSorted(s) {
			p, _ := s.P2P.ReadyPeer(peer)
			if id, busy := p.Channels.Rpc.PendingRequestID(); busy {
				d.Dispatch(p2p.RpcTimeout{Peer: peer, ID: id})
			}
		}
		// restart the sync if it fell back to init
		if s.Frontier.Sync.Phase == frontier.SyncInit {
			d.Dispatch(frontier.BootstrapStart{Peers: readyPeersSorted(s)})
		}
		e.driveLedgerSync(d, s, meta)
		e.driveBlockFetch(d, s, meta)
		e.driveSnarker(d, s, meta)
	}
}

// driveBlockFetch requests the ancestor-chain plan and then block bodies
// from idle peers during catch-up.
func (e *Effects) driveBlockFetch(d store.Dispatcher, s *State, meta store.ActionMeta) {
	sync := &s.Frontier.Sync
	if sync.Phase != frontier.SyncBlocksFetchPending {
		return
	}
	for _, peerID := range readyPeersSorted(s) {
		p, _ := s.P2P.ReadyPeer(peerID)
		if _, busy := p.Channels.Rpc.PendingRequestID(); busy {
			continue
		}
		// first obtain the hash plan from a peer that holds the chain
		if len(sync.FetchOrder) <= 1 && sync.Target.BestTip.Height > sync.Target.Root.Height+1 {
			d.Dispatch(p2p.RpcRequestSend{Peer: peerID, Request: p2p.AncestorChainGet{
				RootHash: sync.Target.Root.Hash,
				TipHash:  sync.Target.BestTip.Hash,
			}})
			continue
		}
		for _, hash := range sync.FetchOrder {
			bf := sync.Blocks[hash]
			if bf.Block != nil {
				continue
			}
			if !d.Dispatch(frontier.BlockFetchInit{Hash: hash, Peer: peerID}) {
				continue
			}
			break
		}
	}
}

func (e *Effects) afterP2P(d store.Dispatcher, s *State, a p2p.Action, meta store.ActionMeta) {
	switch act := a.(type) {
	case p2p.ConnectionFinalized:
		// first peers arriving while idle kick the sync off
		if s.Frontier.Sync.Phase == frontier.SyncIdle {
			d.Dispatch(Init{})
		}

	case p2p.Disconnected:
		d.Dispatch(snarkpool.PeerPruned{Peer: act.Peer})

	case p2p.PeerBan:
		d.Dispatch(snarkpool.PeerPruned{Peer: act.Peer})

	case p2p.RpcResponseReceived:
		e.routeRpcResponse(d, s, act, meta)

	case p2p.PropagationRequestReceived:
		e.servePropagationRequest(d, s, act)

	case p2p.PropagationReceived:
		e.routePropagationItem(d, s, act)

	case p2p.PubsubMessageReceived:
		// the message is parked in the dedup cache until the external
		// validator's verdict comes back as a GossipValidityEvent
		msg := act.Message
		e.Services.Verifier.ValidateGossip(msg.ID, msg.Topic, msg.Data)

	case p2p.RpcTimeout:
		// a timed-out ledger query surfaces as an attempt error
		if s.SnarkedSync != nil {
			if addr, isAccounts, ok := s.SnarkedSync.FindPendingByRpc(act.Peer, act.ID); ok {
				d.Dispatch(ledgersync.QueryError{
					Peer: act.Peer, Addr: addr, IsAccounts: isAccounts, Error: "rpc timeout",
				})
			}
		}
		if s.StagedSync != nil {
			if att, ok := s.StagedSync.Attempts[act.Peer]; ok &&
				att.Phase == ledgersync.StagedAttemptPending && att.RpcID == act.ID {
				d.Dispatch(ledgersync.PartsFetchError{Peer: act.Peer, Error: "rpc timeout"})
			}
		}
	}
}

// routeRpcResponse converts a correlated rpc response into the owning
// subsystem's action.
func (e *Effects) routeRpcResponse(d store.Dispatcher, s *State, act p2p.RpcResponseReceived, meta store.ActionMeta) {
	switch resp := act.Response.(type) {
	case p2p.BestTipResponse:
		d.Dispatch(frontier.BestTipReceived{Peer: act.Peer, Tip: resp.Block, Root: resp.Root})

	case p2p.LedgerNumAccountsResponse:
		if s.SnarkedSync != nil && s.SnarkedSync.NumAccountsPendingBy(act.Peer, act.ID) {
			d.Dispatch(ledgersync.NumAccountsReceived{
				Peer: act.Peer, Count: resp.Count, ContentsHash: resp.ContentsHash,
			})
		}

	case p2p.LedgerChildHashesResponse:
		if s.SnarkedSync != nil {
			if addr, isAccounts, ok := s.SnarkedSync.FindPendingByRpc(act.Peer, act.ID); ok && !isAccounts {
				d.Dispatch(ledgersync.ChildHashesReceived{
					Peer: act.Peer, Addr: addr, Left: resp.Left, Right: resp.Right,
				})
			}
		}

	case p2p.LedgerAccountsResponse:
		if s.SnarkedSync != nil {
			if addr, isAccounts, ok := s.SnarkedSync.FindPendingByRpc(act.Peer, act.ID); ok && isAccounts {
				d.Dispatch(ledgersync.AccountsReceived{
					Peer: act.Peer, Addr: addr, Accounts: resp.Accounts,
				})
			}
		}

	case p2p.StagedLedgerPartsResponse:
		if s.StagedSync != nil {
			d.Dispatch(ledgersync.PartsReceived{Peer: act.Peer, Parts: resp.Parts})
		}

	case p2p.AncestorChainResponse:
		d.Dispatch(frontier.FetchPlanReceived{Hashes: resp.Hashes})

	case p2p.BlockGetResponse:
		if resp.Block != nil {
			d.Dispatch(frontier.BlockFetched{Peer: act.Peer, Block: resp.Block})
		}
	}
}

// routePropagationItem hands an inbound pool item to its owning pool's
// candidate pipeline.
func (e *Effects) routePropagationItem(d store.Dispatcher, s *State, act p2p.PropagationReceived) {
	switch payload := act.Payload.(type) {
	case *types.Snark:
		if _, known := s.SnarkPool.Candidates.Get(payload.JobID, act.Peer); !known {
			d.Dispatch(snarkpool.CandidateInfoReceived{
				Peer: act.Peer, JobID: payload.JobID,
				Fee: payload.Fee, Prover: payload.Prover,
			})
		}
		d.Dispatch(snarkpool.CandidateWorkReceived{Peer: act.Peer, Snark: *payload})

	case *types.UserCommand:
		d.Dispatch(txpool.CandidateInfoReceived{Peer: act.Peer, ID: payload.ID})
		d.Dispatch(txpool.CandidateFetchInit{Peer: act.Peer, ID: payload.ID})
		d.Dispatch(txpool.CandidateReceived{Peer: act.Peer, Command: *payload})
	}
}

// servePropagationRequest answers a peer's pool request from the owning
// pool, honoring the send index.
func (e *Effects) servePropagationRequest(d store.Dispatcher, s *State, act p2p.PropagationRequestReceived) {
	peer, ok := s.P2P.ReadyPeer(act.Peer)
	if !ok {
		return
	}
	prop := peer.Channels.Propagation(act.Channel)
	if prop == nil {
		return
	}
	switch act.Channel {
	case channels.ChannelSnark:
		start, limit := prop.NextSendRange(uint64(s.SnarkPool.Len()))
		snarks, last := s.SnarkPool.ItemsFrom(start, limit)
		for _, snark := range snarks {
			e.Services.P2P.Send(act.Peer, p2p.PropagationItemMsg{Channel: act.Channel, Payload: snark})
		}
		d.Dispatch(p2p.PropagationResponseSend{
			Peer: act.Peer, Channel: act.Channel,
			Count: uint8(len(snarks)), LastIndex: last,
		})

	case channels.ChannelTransaction:
		start, limit := prop.NextSendRange(uint64(s.TxPool.Len()))
		cmds, last := s.TxPool.Verified(start, limit)
		for i := range cmds {
			e.Services.P2P.Send(act.Peer, p2p.PropagationItemMsg{Channel: act.Channel, Payload: &cmds[i]})
		}
		d.Dispatch(p2p.PropagationResponseSend{
			Peer: act.Peer, Channel: act.Channel,
			Count: uint8(len(cmds)), LastIndex: last,
		})
	}
}

func (e *Effects) afterFrontier(d store.Dispatcher, s *State, a frontier.Action, meta store.ActionMeta) {
	switch a.(type) {
	case frontier.BootstrapQuorumReached:
		if e.Stats != nil {
			e.Stats.PhaseStarted(stats.PhaseSnarkedHashes, meta.Time)
		}
		// an already-held ledger completes instantly
		if s.SnarkedSync != nil && s.SnarkedSync.Phase == ledgersync.SnarkedSuccess {
			d.Dispatch(frontier.LedgerSnarkedSynced{})
			return
		}
		e.driveLedgerSync(d, s, meta)

	case frontier.LedgerSnarkedSynced:
		if e.Stats != nil {
			e.Stats.PhaseDone(stats.PhaseSnarkedAccounts, meta.Time)
			e.Stats.PhaseStarted(stats.PhaseStagedParts, meta.Time)
		}
		if s.StagedSync == nil {
			// staged equals snarked: nothing to reconstruct
			d.Dispatch(frontier.LedgerStagedSynced{})
			return
		}
		e.driveLedgerSync(d, s, meta)

	case frontier.LedgerStagedSynced:
		if e.Stats != nil {
			e.Stats.PhaseDone(stats.PhaseReconstruct, meta.Time)
		}
		e.driveBlockFetch(d, s, meta)

	case frontier.FetchPlanReceived, frontier.BlockFetched:
		e.driveBlockFetch(d, s, meta)

	case frontier.BlockApplySuccess:
		// commands committed by the applied block leave the tx pool
		evictAppliedCommands(d, s.Frontier.BestTip())
		if s.Frontier.Sync.Phase == frontier.SyncSynced {
			e.Log.Info("transition frontier synced",
				"best_tip", s.Frontier.BestTip().Hash,
				"height", s.Frontier.BestTip().Height)
			return
		}
		e.driveBlockFetch(d, s, meta)

	case frontier.BestTipUpdate:
		tip := s.Frontier.BestTip()
		d.Dispatch(candidates.PruneAction{Best: tip})
		evictAppliedCommands(d, tip)
		// announce the adopted tip on the gossip mesh
		e.Services.P2P.PublishBlock(gossipTopics[0], tip)
	}
}

// evictAppliedCommands drops a freshly applied block's commands from the
// transaction pool.
func evictAppliedCommands(d store.Dispatcher, b *types.Block) {
	if b == nil || len(b.Diff.Commands) == 0 {
		return
	}
	applied := make([]ids.ID, 0, len(b.Diff.Commands))
	for _, cmd := range b.Diff.Commands {
		applied = append(applied, cmd.ID)
	}
	d.Dispatch(txpool.BestTipApplied{Applied: applied})
}

func (e *Effects) afterCandidates(d store.Dispatcher, s *State, a candidates.Action, meta store.ActionMeta) {
	switch act := a.(type) {
	case candidates.BlockReceived:
		d.Dispatch(candidates.BlockPrevalidated{Hash: act.Block.Hash})

	case candidates.BlockPrevalidated:
		e.verifySeq++
		id := e.verifySeq
		c, ok := s.Candidates.Get(act.Hash)
		if !ok {
			return
		}
		d.Dispatch(candidates.SnarkVerifyPendingAction{Hash: act.Hash, VerifyID: id})
		e.Services.Verifier.VerifyBlock(id, act.Hash, c.Block.Proof)

	case candidates.SnarkVerifySuccessAction:
		tip := s.Frontier.BestTip()
		var tipHash ids.ID
		if tip != nil {
			tipHash = tip.Hash
		}
		d.Dispatch(candidates.ForkResolve{Hash: act.Hash, Tip: tip, TipHash: tipHash})

	case candidates.ForkResolve:
		c, ok := s.Candidates.Get(act.Hash)
		if !ok || !c.Decision.UseAsBestTip() {
			return
		}
		if s.Frontier.Sync.Phase == frontier.SyncSynced {
			d.Dispatch(frontier.BestTipUpdate{Block: c.Block})
		}
	}
}

func (e *Effects) afterPool(d store.Dispatcher, s *State, a snarkpool.Action, meta store.ActionMeta) {
	switch act := a.(type) {
	case snarkpool.SnarkAdd:
		e.broadcastSnark(d, s, act.Snark.JobID)

	case snarkpool.CandidateWorkReceived:
		e.verifySeq++
		id := e.verifySeq
		d.Dispatch(snarkpool.CandidateVerifyPending{
			Peer: act.Peer, JobID: act.Snark.JobID, VerifyID: id,
		})
		e.Services.Verifier.VerifyWork(id, act.Peer, []types.Snark{act.Snark})

	case snarkpool.CandidateVerifySuccess:
		c, ok := s.SnarkPool.Candidates.Get(act.JobID, act.Peer)
		if ok && c.Snark != nil {
			d.Dispatch(snarkpool.SnarkAdd{Snark: *c.Snark})
		}
	}
}

func (e *Effects) afterTxPool(d store.Dispatcher, s *State, a txpool.Action, meta store.ActionMeta) {
	if act, ok := a.(txpool.CandidateReceived); ok {
		e.verifySeq++
		id := e.verifySeq
		d.Dispatch(txpool.TxVerifyPendingAction{ID: act.Command.ID, Peer: act.Peer, VerifyID: id})
		e.Services.Verifier.VerifyCommands(id, []types.UserCommand{act.Command})
	}
}

// broadcastSnark pushes a fresh snark to every ready peer with an open
// request window on the snark channel.
func (e *Effects) broadcastSnark(d store.Dispatcher, s *State, jobID types.JobID) {
	j, ok := s.SnarkPool.Get(jobID)
	if !ok || j.Snark == nil {
		return
	}
	for _, peerID := range readyPeersSorted(s) {
		p, _ := s.P2P.ReadyPeer(peerID)
		if p.Channels.Snark.Remote.Phase != channels.PhaseRequested {
			continue
		}
		e.Services.P2P.Send(peerID, p2p.PropagationItemMsg{
			Channel: channels.ChannelSnark, Payload: j.Snark,
		})
		d.Dispatch(p2p.PropagationResponseSend{
			Peer: peerID, Channel: channels.ChannelSnark,
			Count: 1, LastIndex: j.Order,
		})
	}
}

func (e *Effects) afterWorker(d store.Dispatcher, s *State, a worker.Action, meta store.ActionMeta) {
	switch act := a.(type) {
	case worker.WorkResult:
		if s.Worker.Result != nil {
			d.Dispatch(snarkpool.SnarkAdd{Snark: *s.Worker.Result, Local: true})
		}
		d.Dispatch(worker.ResultConsumed{})

	case worker.WorkError:
		// transient errors return the worker to idle so the next tick
		// can resubmit; permanent ones are already killing it
		if !act.Permanent {
			d.Dispatch(worker.ResultConsumed{})
		}

	case worker.Killed:
		if cfg := s.Config.Snarker; cfg.PublicKey != "" {
			d.Dispatch(worker.Start{Path: cfg.WorkerPath, PublicKey: cfg.PublicKey, Fee: cfg.Fee})
		}
	}
}

func (e *Effects) afterSnarkedSync(d store.Dispatcher, s *State, a ledgersync.SnarkedAction, meta store.ActionMeta) {
	if s.SnarkedSync == nil {
		return
	}
	if forged := s.SnarkedSync.LastForged; forged != nil {
		d.Dispatch(p2p.PeerBan{Peer: *forged, Reason: "forged ledger data"})
	}
	if _, ok := a.(ledgersync.NumAccountsReceived); ok && e.Stats != nil &&
		s.SnarkedSync.Phase == ledgersync.SnarkedTreeSyncPending {
		e.Stats.PhaseDone(stats.PhaseSnarkedHashes, meta.Time)
		e.Stats.PhaseStarted(stats.PhaseSnarkedAccounts, meta.Time)
	}
	if s.SnarkedSync.Phase == ledgersync.SnarkedSuccess {
		d.Dispatch(frontier.LedgerSnarkedSynced{})
		return
	}
	e.driveLedgerSync(d, s, meta)
}

func (e *Effects) afterStagedSync(d store.Dispatcher, s *State, a ledgersync.StagedAction, meta store.ActionMeta) {
	if s.StagedSync == nil {
		return
	}
	switch a.(type) {
	case ledgersync.PartsReceived:
		if s.StagedSync.Phase == ledgersync.StagedReconstructPending {
			if e.Stats != nil {
				e.Stats.PhaseDone(stats.PhaseStagedParts, meta.Time)
				e.Stats.PhaseStarted(stats.PhaseReconstruct, meta.Time)
			}
			e.Services.Ledger.StagedLedgerReconstruct(s.StagedSync.Parts)
		} else {
			// invalid parts: try the next peer
			e.driveLedgerSync(d, s, meta)
		}

	case ledgersync.ReconstructSuccess:
		d.Dispatch(frontier.LedgerStagedSynced{})

	case ledgersync.ReconstructError, ledgersync.PartsFetchError:
		e.driveLedgerSync(d, s, meta)
	}
}

// driveLedgerSync hands idle peers the next outstanding ledger queries.
func (e *Effects) driveLedgerSync(d store.Dispatcher, s *State, meta store.ActionMeta) {
	now := meta.Time
	for _, peerID := range readyPeersSorted(s) {
		p, _ := s.P2P.ReadyPeer(peerID)
		if _, busy := p.Channels.Rpc.PendingRequestID(); busy {
			continue
		}

		if sync := s.SnarkedSync; sync != nil {
			switch sync.Phase {
			case ledgersync.SnarkedNumAccountsPending:
				if sync.NumAccounts.RetryableBy(peerID, now, sync.RetryCooldownMS) && !sync.PeerBusy(peerID) {
					if d.Dispatch(p2p.RpcRequestSend{Peer: peerID, Request: p2p.LedgerNumAccountsGet{LedgerHash: sync.Target}}) {
						if id, ok := p.Channels.Rpc.PendingRequestID(); ok {
							d.Dispatch(ledgersync.NumAccountsQueryInit{Peer: peerID, RpcID: id})
						}
					}
				}
			case ledgersync.SnarkedTreeSyncPending:
				if addr, ok := sync.NextHashQuery(peerID, now); ok {
					if d.Dispatch(p2p.RpcRequestSend{Peer: peerID, Request: p2p.LedgerChildHashesGet{LedgerHash: sync.Target, Addr: addr}}) {
						if id, rok := p.Channels.Rpc.PendingRequestID(); rok {
							d.Dispatch(ledgersync.HashesQueryInit{Peer: peerID, Addr: addr, RpcID: id})
						}
					}
					continue
				}
				if addr, ok := sync.NextAccountQuery(peerID, now); ok {
					if d.Dispatch(p2p.RpcRequestSend{Peer: peerID, Request: p2p.LedgerAccountsGet{LedgerHash: sync.Target, Addr: addr}}) {
						if id, rok := p.Channels.Rpc.PendingRequestID(); rok {
							d.Dispatch(ledgersync.AccountsQueryInit{Peer: peerID, Addr: addr, RpcID: id})
						}
					}
				}
			}
			continue
		}

		if sync := s.StagedSync; sync != nil && sync.Phase == ledgersync.StagedPartsFetchPending && !sync.FetchInFlight() {
			if d.Dispatch(p2p.RpcRequestSend{Peer: peerID, Request: p2p.StagedLedgerPartsGet{StagedLedgerHash: sync.Target}}) {
				if id, ok := p.Channels.Rpc.PendingRequestID(); ok {
					d.Dispatch(ledgersync.PartsFetchInit{Peer: peerID, RpcID: id})
				}
			}
		}
	}
}

// driveSnarker commits the idle local worker to the next auctionable job.
func (e *Effects) driveSnarker(d store.Dispatcher, s *State, meta store.ActionMeta) {
	cfg := s.Config.Snarker
	if cfg.PublicKey == "" {
		return
	}
	if s.Worker.Phase == worker.PhaseNone {
		d.Dispatch(worker.Start{Path: cfg.WorkerPath, PublicKey: cfg.PublicKey, Fee: cfg.Fee})
		return
	}
	if s.Worker.Phase != worker.PhaseIdle {
		return
	}
	strategy := snarkpool.StrategySequential
	if cfg.Strategy == "random" {
		strategy = snarkpool.StrategyRandom
	}
	j, ok := s.SnarkPool.NextToCommit(strategy, uint64(meta.Time))
	if !ok {
		return
	}
	d.Dispatch(snarkpool.CommitmentAdd{
		Commitment: snarkpool.Commitment{
			JobID:     j.Job.ID,
			Fee:       cfg.Fee,
			Snarker:   cfg.PublicKey,
			Timestamp: meta.Time,
		},
		Local: true,
	})
}

// readyPeersSorted returns ready peer ids in deterministic order.
func readyPeersSorted(s *State) []ids.NodeID {
	peers := s.P2P.ReadyPeers()
	sort.Slice(peers, func(i, j int) bool {
		return bytes.Compare(peers[i][:], peers[j][:]) < 0
	})
	return peers
}
