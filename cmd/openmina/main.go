// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// The openmina command boots the node: config, services, store, HTTP
// surface.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/openmina/openmina-go/config"
	"github.com/openmina/openmina-go/ledger"
	"github.com/openmina/openmina-go/node"
	"github.com/openmina/openmina-go/p2p"
	"github.com/openmina/openmina-go/p2p/channels"
	"github.com/openmina/openmina-go/p2p/pubsub"
	"github.com/openmina/openmina-go/p2p/service/libp2psvc"
	"github.com/openmina/openmina-go/recorder"
	"github.com/openmina/openmina-go/rpc"
	"github.com/openmina/openmina-go/stats"
	"github.com/openmina/openmina-go/store"
	"github.com/openmina/openmina-go/types"
)

func main() {
	root := &cobra.Command{
		Use:   "openmina",
		Short: "Openmina-style Mina protocol node",
	}
	root.AddCommand(runCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the node",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				var err error
				if cfg, err = config.Load(configPath); err != nil {
					return err
				}
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a yaml config file")
	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := log.New("component", "openmina")
	queue := store.NewEventQueue(1024)

	registry := prometheus.NewRegistry()
	syncStats, err := stats.New(registry)
	if err != nil {
		return err
	}

	p2pSvc, err := libp2psvc.New(ctx, cfg.P2P.ListenAddrs, []string{"coda/consensus-messages/0.0.1"}, queue, jsonCodec{}, logger)
	if err != nil {
		return err
	}
	defer func() { _ = p2pSvc.Close() }()

	rec, err := recorder.New(memdb.New())
	if err != nil {
		return err
	}

	svcs := node.Services{
		P2P:      p2pSvc,
		Worker:   noopWorker{queue: queue},
		Verifier: optimisticVerifier{queue: queue},
		Ledger:   devLedger{queue: queue},
	}
	n, err := node.New(cfg, logger, store.NewSystemClock(), queue, svcs, ledger.DevHasher{}, syncStats, rec)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: rpc.NewServer(n, syncStats, registry, cfg.HTTP.ReadyMinPeers).Routes(),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return n.Run(ctx) })
	g.Go(func() error {
		err := httpSrv.ListenAndServe()
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		return httpSrv.Close()
	})

	logger.Info("node started", "http", cfg.HTTP.Addr)
	return g.Wait()
}

// jsonCodec is the development wire codec; the production codec is the
// bit-exact binprot bridge, which is an external collaborator.
type jsonCodec struct{}

type frame struct {
	Kind string          `json:"kind"`
	Body json.RawMessage `json:"body"`
}

func (jsonCodec) Encode(msg p2p.Msg) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(frame{Kind: fmt.Sprintf("%T", msg), Body: body})
}

func (jsonCodec) Decode(ch channels.ID, b []byte) (p2p.Msg, error) {
	var f frame
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	switch ch {
	case channels.ChannelRpc:
		var req p2p.RpcRequestMsg
		if f.Kind == "p2p.RpcRequestMsg" {
			return req, json.Unmarshal(f.Body, &req)
		}
		var resp p2p.RpcResponseMsg
		return resp, json.Unmarshal(f.Body, &resp)
	default:
		var item p2p.PropagationItemMsg
		if f.Kind == "p2p.PropagationItemMsg" {
			item.Channel = ch
			return item, json.Unmarshal(f.Body, &item)
		}
		req := p2p.PropagationRequestMsg{Channel: ch}
		return req, json.Unmarshal(f.Body, &req)
	}
}

// noopWorker stands in until an external prover binary is configured.
type noopWorker struct {
	queue *store.EventQueue
}

func (w noopWorker) Start(string, string, uint64) {
	w.queue.Push(node.WorkerEvent{Started: true})
}
func (w noopWorker) Submit(jobID types.JobID, _ []byte) {
	w.queue.Push(node.WorkerEvent{Error: "no prover binary configured", Permanent: true})
}
func (w noopWorker) Cancel() { w.queue.Push(node.WorkerEvent{Cancelled: true}) }
func (w noopWorker) Kill()   { w.queue.Push(node.WorkerEvent{Killed: true}) }

// optimisticVerifier accepts everything; the production verifier is the
// external SNARK checker.
type optimisticVerifier struct {
	queue *store.EventQueue
}

func (v optimisticVerifier) VerifyBlock(id uint64, hash ids.ID, _ []byte) {
	v.queue.Push(node.BlockVerifyResultEvent{ID: id, Hash: hash, OK: true})
}

func (v optimisticVerifier) VerifyWork(id uint64, peer ids.NodeID, snarks []types.Snark) {
	for _, s := range snarks {
		v.queue.Push(node.WorkVerifyResultEvent{ID: id, Peer: peer, JobID: s.JobID, OK: true})
	}
}

func (v optimisticVerifier) VerifyCommands(id uint64, cmds []types.UserCommand) {
	for _, c := range cmds {
		v.queue.Push(node.TxVerifyResultEvent{ID: id, TxID: c.ID, OK: true})
	}
}

func (v optimisticVerifier) ValidateGossip(id pubsub.MessageID, _ string, data []byte) {
	var f frame
	var block *types.Block
	if err := json.Unmarshal(data, &f); err == nil && f.Kind == "p2p.GossipBlockMsg" {
		var msg p2p.GossipBlockMsg
		if json.Unmarshal(f.Body, &msg) == nil {
			block = msg.Block
		}
	}
	v.queue.Push(node.GossipValidityEvent{ID: id, Block: block, OK: true})
}

// devLedger acknowledges ledger work; the production ledger service owns
// the Merkle store.
type devLedger struct {
	queue *store.EventQueue
}

func (l devLedger) ApplyBlock(b *types.Block) {
	l.queue.Push(node.BlockApplyResultEvent{Hash: b.Hash})
}

func (l devLedger) StagedLedgerReconstruct(*types.StagedLedgerParts) {
	l.queue.Push(node.ReconstructResultEvent{})
}
