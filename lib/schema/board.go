// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// BoardSDP is the request body for publishing an offer or answer.
type BoardSDP struct {
	SDP string `json:"sdp"`
}

// BoardSignal is one published offer or answer. From is always the
// publisher; To is the recipient. Timestamp is RFC 3339 with
// nanoseconds and increases each time the same From/To pair publishes.
type BoardSignal struct {
	From      string `json:"from"`
	To        string `json:"to"`
	SDP       string `json:"sdp"`
	Timestamp string `json:"timestamp"`
}

// BoardSignals is the response body for polling offers or answers.
type BoardSignals struct {
	Signals []BoardSignal `json:"signals"`
}

// BoardMembers is the response body for listing a namespace.
type BoardMembers struct {
	Members []string `json:"members"`
}
