// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package channels

import "errors"

var (
	ErrOfferOutstanding = errors.New("signaling offer already relayed")
	ErrNoOffer          = errors.New("no signaling offer outstanding")
)

// SignalingPhase tracks one WebRTC offer/answer exchange relayed through
// this peer.
type SignalingPhase uint8

const (
	SignalingIdle SignalingPhase = iota
	SignalingOfferSent
	SignalingAnswerReceived
)

// SignalingExchange relays connection offers between WebRTC peers that have
// no direct signaling path.
type SignalingExchange struct {
	lifecycle
	Local  SignalingPhase
	Remote SignalingPhase
}

// OfferSend relays an offer through this peer.
func (s *SignalingExchange) OfferSend() error {
	if !s.Status.IsReady() {
		return ErrNotReady
	}
	if s.Local == SignalingOfferSent {
		return ErrOfferOutstanding
	}
	s.Local = SignalingOfferSent
	return nil
}

// AnswerReceived completes the local exchange.
func (s *SignalingExchange) AnswerReceived() error {
	if s.Local != SignalingOfferSent {
		return ErrNoOffer
	}
	s.Local = SignalingAnswerReceived
	return nil
}

// OfferReceived registers an exchange initiated by the peer.
func (s *SignalingExchange) OfferReceived() error {
	if !s.Status.IsReady() {
		return ErrNotReady
	}
	if s.Remote == SignalingOfferSent {
		return ErrOfferOutstanding
	}
	s.Remote = SignalingOfferSent
	return nil
}

// AnswerSend completes the remote exchange.
func (s *SignalingExchange) AnswerSend() error {
	if s.Remote != SignalingOfferSent {
		return ErrNoOffer
	}
	s.Remote = SignalingAnswerReceived
	return nil
}

// Reset clears both sides for the next exchange.
func (s *SignalingExchange) Reset() {
	s.Local = SignalingIdle
	s.Remote = SignalingIdle
}
