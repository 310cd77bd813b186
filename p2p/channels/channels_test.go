// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package channels

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func readyPropagation() *Propagation {
	p := &Propagation{}
	p.Enable()
	_ = p.Init()
	_ = p.Pending()
	_ = p.Ready()
	return p
}

func TestLifecycleOrder(t *testing.T) {
	require := require.New(t)

	p := &Propagation{}
	require.ErrorIs(p.Init(), ErrNotEnabled)
	p.Enable()
	require.ErrorIs(p.Pending(), ErrNotInit)
	require.NoError(p.Init())
	require.ErrorIs(p.Ready(), ErrNotPending)
	require.NoError(p.Pending())
	require.NoError(p.Ready())
	require.True(p.Status.IsReady())
}

func TestPropagationRequiresReady(t *testing.T) {
	require := require.New(t)

	p := &Propagation{}
	require.ErrorIs(p.RequestSend(10), ErrNotReady)
	require.ErrorIs(p.RequestReceived(10), ErrNotReady)
}

func TestPropagationLocalFlow(t *testing.T) {
	require := require.New(t)

	p := readyPropagation()
	require.NoError(p.RequestSend(2))
	require.ErrorIs(p.RequestSend(2), ErrRequestOutstanding)

	require.NoError(p.Received())
	require.Equal(PhaseRequested, p.Local.Phase)
	require.NoError(p.Received())
	// limit reached, back to responded
	require.Equal(PhaseResponded, p.Local.Phase)
	require.ErrorIs(p.Received(), ErrNoRequest)
}

func TestPropagationSendIndexAdvances(t *testing.T) {
	require := require.New(t)

	p := readyPropagation()
	require.NoError(p.RequestReceived(3))
	start, limit := p.NextSendRange(100)
	require.Equal(uint64(0), start)
	require.Equal(uint8(3), limit)

	require.NoError(p.ResponseSend(3, 41))
	require.Equal(uint64(42), p.SendIndex)

	// empty response leaves the cursor in place
	require.NoError(p.RequestReceived(5))
	require.NoError(p.ResponseSend(0, 0))
	require.Equal(uint64(42), p.SendIndex)
}

func TestPropagationOverLimitRefused(t *testing.T) {
	require := require.New(t)

	p := readyPropagation()
	require.NoError(p.RequestReceived(1))
	require.ErrorIs(p.ResponseSend(2, 0), ErrOverLimit)
}

func readyRpc() *Rpc {
	r := &Rpc{}
	r.Enable()
	_ = r.Init()
	_ = r.Pending()
	_ = r.Ready()
	return r
}

func TestRpcRequestIDsMonotonic(t *testing.T) {
	require := require.New(t)

	r := readyRpc()
	id0, err := r.RequestSend()
	require.NoError(err)
	require.NoError(r.ResponseReceived(id0))
	id1, err := r.RequestSend()
	require.NoError(err)
	require.Greater(id1, id0)
}

func TestRpcStaleResponseIgnored(t *testing.T) {
	require := require.New(t)

	r := readyRpc()
	id, err := r.RequestSend()
	require.NoError(err)
	require.ErrorIs(r.ResponseReceived(id+1), ErrRpcIDMismatch)
	require.NoError(r.ResponseReceived(id))
	require.ErrorIs(r.ResponseReceived(id), ErrRpcIdle)
}

func TestRpcRemoteConcurrencyCap(t *testing.T) {
	require := require.New(t)

	r := readyRpc()
	for i := 0; i < MaxConcurrentRemoteRpcs; i++ {
		require.NoError(r.RequestReceived(RpcID(i)))
	}
	require.ErrorIs(r.RequestReceived(99), ErrRemoteRpcRefused)

	require.NoError(r.ResponseSend(RpcID(0)))
	require.NoError(r.RequestReceived(99))
	require.ErrorIs(r.ResponseSend(RpcID(1234)), ErrUnknownRemoteRpc)
}

func TestSignalingExchange(t *testing.T) {
	require := require.New(t)

	s := &SignalingExchange{}
	s.Enable()
	require.NoError(s.Init())
	require.NoError(s.Pending())
	require.NoError(s.Ready())

	require.NoError(s.OfferSend())
	require.ErrorIs(s.OfferSend(), ErrOfferOutstanding)
	require.NoError(s.AnswerReceived())

	require.NoError(s.OfferReceived())
	require.NoError(s.AnswerSend())

	s.Reset()
	require.Equal(SignalingIdle, s.Local)
	require.Equal(SignalingIdle, s.Remote)
}
