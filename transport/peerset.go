// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
)

// iceGatherTimeout is the maximum time to wait for ICE candidate
// gathering to complete before publishing the SDP.
const iceGatherTimeout = 15 * time.Second

// dataChannelLabel names the single chat data channel on each link.
const dataChannelLabel = "parley"

// Signal kinds passed to signalFunc.
const (
	signalOffer  = "offer"
	signalAnswer = "answer"
)

// signalFunc delivers a complete SDP to remoteID through whatever
// signaling path the owning adapter uses (the board or the broker).
type signalFunc func(ctx context.Context, kind, remoteID, sdp string) error

// peerSet manages the direct links of one mesh or relay-peer handle: one
// PeerConnection and one ordered data channel per remote peer. The peer
// with the lexicographically smaller ID makes the offer.
//
// Inbound frames are delivered through the handle's dispatcher, so once
// the handle shuts the dispatcher down no further callbacks run even if
// pion still has data in flight.
type peerSet struct {
	localID  string
	ice      ICEConfig
	dispatch *dispatcher
	signal   signalFunc
	logger   *slog.Logger

	// ctx bounds signaling work started by the set; cancelled on close.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	peers  map[string]*peerLink
	closed bool
}

// peerLink is the state for one remote peer. channel is set once the
// data channel opens. Fields other than remoteID, connection and
// offerer are guarded by peerSet.mu.
type peerLink struct {
	remoteID   string
	connection *webrtc.PeerConnection
	offerer    bool
	channel    *webrtc.DataChannel
}

func newPeerSet(localID string, ice ICEConfig, dispatch *dispatcher, signal signalFunc, logger *slog.Logger) *peerSet {
	ctx, cancel := context.WithCancel(context.Background())
	return &peerSet{
		localID:  localID,
		ice:      ice,
		dispatch: dispatch,
		signal:   signal,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		peers:    make(map[string]*peerLink),
	}
}

// connect starts a link to remoteID if this side is the canonical
// offerer and no link exists yet. Otherwise it waits for remoteID's
// offer to arrive through handleOffer.
func (ps *peerSet) connect(remoteID string) {
	if remoteID == "" || remoteID == ps.localID || ps.localID > remoteID {
		return
	}

	ps.mu.Lock()
	if ps.closed {
		ps.mu.Unlock()
		return
	}
	if _, exists := ps.peers[remoteID]; exists {
		ps.mu.Unlock()
		return
	}
	pc, err := newPeerConnection(ps.ice)
	if err != nil {
		ps.mu.Unlock()
		ps.logger.Error("creating PeerConnection failed", "peer", remoteID, "error", err)
		return
	}
	link := &peerLink{remoteID: remoteID, connection: pc, offerer: true}
	ps.peers[remoteID] = link
	ps.wg.Add(1)
	ps.mu.Unlock()

	go func() {
		defer ps.wg.Done()
		if err := ps.offer(link); err != nil {
			ps.logFailure("offering to peer failed", remoteID, err)
			ps.drop(link)
		}
	}()
}

// offer creates the data channel, gathers candidates and signals the
// complete offer.
func (ps *peerSet) offer(link *peerLink) error {
	pc := link.connection
	ps.watch(link)

	ordered := true
	dc, err := pc.CreateDataChannel(dataChannelLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return fmt.Errorf("creating data channel: %w", err)
	}
	ps.wireChannel(link, dc)

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("creating SDP offer: %w", err)
	}
	sdp, err := ps.gather(pc, offer)
	if err != nil {
		return err
	}
	if err := ps.signal(ps.ctx, signalOffer, link.remoteID, sdp); err != nil {
		return fmt.Errorf("signaling SDP offer: %w", err)
	}

	ps.logger.Debug("WebRTC offer sent", "peer", link.remoteID)
	return nil
}

// handleOffer answers an offer from remoteID. If both sides offered at
// once, the offer from the larger ID is ignored; the smaller ID is the
// canonical offerer. An offer replacing an answered link means the
// remote restarted its side, so the old link is dropped.
func (ps *peerSet) handleOffer(remoteID, sdp string) {
	if remoteID == "" || remoteID == ps.localID {
		return
	}

	ps.mu.Lock()
	if ps.closed {
		ps.mu.Unlock()
		return
	}
	var stale *peerLink
	if existing, ok := ps.peers[remoteID]; ok {
		if existing.offerer && ps.localID < remoteID {
			ps.mu.Unlock()
			ps.logger.Debug("ignoring offer from peer we are offering to", "peer", remoteID)
			return
		}
		stale = existing
		delete(ps.peers, remoteID)
	}
	pc, err := newPeerConnection(ps.ice)
	if err != nil {
		ps.mu.Unlock()
		ps.logger.Error("creating PeerConnection failed", "peer", remoteID, "error", err)
		return
	}
	link := &peerLink{remoteID: remoteID, connection: pc}
	ps.peers[remoteID] = link
	ps.wg.Add(1)
	ps.mu.Unlock()

	if stale != nil {
		stale.connection.Close()
	}

	go func() {
		defer ps.wg.Done()
		if err := ps.answer(link, sdp); err != nil {
			ps.logFailure("answering peer offer failed", remoteID, err)
			ps.drop(link)
		}
	}()
}

func (ps *peerSet) answer(link *peerLink, offerSDP string) error {
	pc := link.connection
	ps.watch(link)
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != dataChannelLabel {
			dc.Close()
			return
		}
		ps.wireChannel(link, dc)
	})

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offerSDP,
	}); err != nil {
		return fmt.Errorf("setting remote description: %w", err)
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("creating SDP answer: %w", err)
	}
	sdp, err := ps.gather(pc, answer)
	if err != nil {
		return err
	}
	if err := ps.signal(ps.ctx, signalAnswer, link.remoteID, sdp); err != nil {
		return fmt.Errorf("signaling SDP answer: %w", err)
	}

	ps.logger.Debug("WebRTC offer answered", "peer", link.remoteID)
	return nil
}

// handleAnswer applies remoteID's answer to our pending offer.
// Duplicate or unexpected answers are ignored.
func (ps *peerSet) handleAnswer(remoteID, sdp string) {
	ps.mu.Lock()
	link, ok := ps.peers[remoteID]
	ps.mu.Unlock()
	if !ok || !link.offerer {
		return
	}
	if link.connection.SignalingState() != webrtc.SignalingStateHaveLocalOffer {
		return
	}
	if err := link.connection.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  sdp,
	}); err != nil {
		ps.logFailure("applying peer answer failed", remoteID, err)
		ps.drop(link)
	}
}

// gather sets description as the local description and waits for ICE
// gathering to complete, returning the SDP with all candidates.
func (ps *peerSet) gather(pc *webrtc.PeerConnection, description webrtc.SessionDescription) (string, error) {
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(description); err != nil {
		return "", fmt.Errorf("setting local description: %w", err)
	}

	timer := time.NewTimer(iceGatherTimeout)
	defer timer.Stop()
	select {
	case <-gatherComplete:
	case <-timer.C:
		return "", fmt.Errorf("ICE gathering timed out after %s", iceGatherTimeout)
	case <-ps.ctx.Done():
		return "", ps.ctx.Err()
	}
	return pc.LocalDescription().SDP, nil
}

// watch drops the link when its PeerConnection fails or closes.
func (ps *peerSet) watch(link *peerLink) {
	link.connection.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		ps.logger.Debug("peer connection state change", "peer", link.remoteID, "state", state.String())
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			ps.drop(link)
		}
	})
}

// wireChannel routes a data channel's messages to the dispatcher and
// makes it the link's send path once open.
func (ps *peerSet) wireChannel(link *peerLink, dc *webrtc.DataChannel) {
	dc.OnOpen(func() {
		ps.mu.Lock()
		current := !ps.closed && ps.peers[link.remoteID] == link
		if current {
			link.channel = dc
		}
		ps.mu.Unlock()
		if current {
			ps.logger.Info("peer link open", "peer", link.remoteID)
		}
	})
	dc.OnMessage(func(message webrtc.DataChannelMessage) {
		ps.dispatch.deliverData(message.Data, link.remoteID)
	})
	dc.OnClose(func() {
		ps.mu.Lock()
		if link.channel == dc {
			link.channel = nil
		}
		ps.mu.Unlock()
	})
}

// drop removes link from the set, if still current, and closes it.
func (ps *peerSet) drop(link *peerLink) {
	ps.mu.Lock()
	if current, ok := ps.peers[link.remoteID]; ok && current == link {
		delete(ps.peers, link.remoteID)
	}
	link.channel = nil
	ps.mu.Unlock()
	link.connection.Close()
}

// remove drops the link to remoteID, if any.
func (ps *peerSet) remove(remoteID string) {
	ps.mu.Lock()
	link, ok := ps.peers[remoteID]
	ps.mu.Unlock()
	if ok {
		ps.drop(link)
	}
}

// broadcast sends data on every open data channel. Send failures on
// individual links are logged and otherwise ignored.
func (ps *peerSet) broadcast(data []byte) error {
	ps.mu.Lock()
	if ps.closed {
		ps.mu.Unlock()
		return ErrHandleClosed
	}
	channels := make(map[string]*webrtc.DataChannel, len(ps.peers))
	for remoteID, link := range ps.peers {
		if link.channel != nil {
			channels[remoteID] = link.channel
		}
	}
	ps.mu.Unlock()

	for remoteID, channel := range channels {
		if err := channel.Send(data); err != nil {
			ps.logger.Debug("data channel send failed", "peer", remoteID, "error", err)
		}
	}
	return nil
}

// known returns the IDs of every peer with a link, open or pending.
func (ps *peerSet) known() []string {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ids := make([]string, 0, len(ps.peers))
	for remoteID := range ps.peers {
		ids = append(ids, remoteID)
	}
	sort.Strings(ids)
	return ids
}

// open returns the IDs of peers whose data channel is open.
func (ps *peerSet) open() []string {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	var ids []string
	for remoteID, link := range ps.peers {
		if link.channel != nil {
			ids = append(ids, remoteID)
		}
	}
	sort.Strings(ids)
	return ids
}

// close tears down every link and waits for in-flight signaling.
func (ps *peerSet) close() {
	ps.mu.Lock()
	if ps.closed {
		ps.mu.Unlock()
		return
	}
	ps.closed = true
	links := make([]*peerLink, 0, len(ps.peers))
	for _, link := range ps.peers {
		links = append(links, link)
	}
	ps.peers = make(map[string]*peerLink)
	ps.mu.Unlock()

	ps.cancel()
	for _, link := range links {
		link.connection.Close()
	}
	ps.wg.Wait()
}

func (ps *peerSet) logFailure(message, remoteID string, err error) {
	if ps.ctx.Err() != nil {
		ps.logger.Debug(message, "peer", remoteID, "error", err)
		return
	}
	ps.logger.Warn(message, "peer", remoteID, "error", err)
}
