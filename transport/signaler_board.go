// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bureau-foundation/parley/lib/netutil"
	"github.com/bureau-foundation/parley/lib/schema"
)

// Compile-time interface check.
var _ Signaler = (*BoardSignaler)(nil)

// BoardSignaler implements Signaler against the relay server's board
// endpoints:
//
//	PUT    /board/{ns}/members/{peer}
//	DELETE /board/{ns}/members/{peer}
//	GET    /board/{ns}/members
//	PUT    /board/{ns}/offers/{offerer}/{target}
//	PUT    /board/{ns}/answers/{answerer}/{offerer}
//	GET    /board/{ns}/offers?target={peer}
//	GET    /board/{ns}/answers?offerer={peer}
//
// The board returns every stored signal on each poll; BoardSignaler
// remembers the newest timestamp it has returned per key and filters
// the rest. Withdraw forgets what the withdrawn peer has seen.
type BoardSignaler struct {
	baseURL    string
	httpClient *http.Client

	mu       sync.Mutex
	lastSeen map[seenScope]map[string]time.Time
}

// seenScope is one polling peer in one namespace.
type seenScope struct {
	namespace string
	peerID    string
}

// NewBoardSignaler returns a signaler for the board at baseURL (for
// example "http://localhost:7600"). A nil httpClient uses
// http.DefaultClient.
func NewBoardSignaler(baseURL string, httpClient *http.Client) (*BoardSignaler, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing board URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("board URL %q: scheme must be http or https", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &BoardSignaler{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		lastSeen:   make(map[seenScope]map[string]time.Time),
	}, nil
}

func (s *BoardSignaler) Announce(ctx context.Context, namespace, peerID string) error {
	_, err := s.doRequest(ctx, http.MethodPut, boardPath(namespace, "members", peerID), nil, nil)
	return err
}

func (s *BoardSignaler) Withdraw(ctx context.Context, namespace, peerID string) error {
	s.mu.Lock()
	delete(s.lastSeen, seenScope{namespace: namespace, peerID: peerID})
	s.mu.Unlock()

	_, err := s.doRequest(ctx, http.MethodDelete, boardPath(namespace, "members", peerID), nil, nil)
	return err
}

func (s *BoardSignaler) Members(ctx context.Context, namespace string) ([]string, error) {
	body, err := s.doRequest(ctx, http.MethodGet, boardPath(namespace, "members"), nil, nil)
	if err != nil {
		return nil, err
	}
	var members schema.BoardMembers
	if err := json.Unmarshal(body, &members); err != nil {
		return nil, fmt.Errorf("board: decoding member list: %w", err)
	}
	return members.Members, nil
}

func (s *BoardSignaler) PublishOffer(ctx context.Context, namespace, offererID, targetID, sdp string) error {
	_, err := s.doRequest(ctx, http.MethodPut, boardPath(namespace, "offers", offererID, targetID), schema.BoardSDP{SDP: sdp}, nil)
	return err
}

func (s *BoardSignaler) PublishAnswer(ctx context.Context, namespace, offererID, answererID, sdp string) error {
	_, err := s.doRequest(ctx, http.MethodPut, boardPath(namespace, "answers", answererID, offererID), schema.BoardSDP{SDP: sdp}, nil)
	return err
}

func (s *BoardSignaler) PollOffers(ctx context.Context, namespace, peerID string) ([]SignalMessage, error) {
	return s.pollSignals(ctx, namespace, peerID, "offers", url.Values{"target": {peerID}})
}

func (s *BoardSignaler) PollAnswers(ctx context.Context, namespace, peerID string) ([]SignalMessage, error) {
	return s.pollSignals(ctx, namespace, peerID, "answers", url.Values{"offerer": {peerID}})
}

func (s *BoardSignaler) pollSignals(ctx context.Context, namespace, peerID, store string, query url.Values) ([]SignalMessage, error) {
	body, err := s.doRequest(ctx, http.MethodGet, boardPath(namespace, store), nil, query)
	if err != nil {
		return nil, err
	}
	var signals schema.BoardSignals
	if err := json.Unmarshal(body, &signals); err != nil {
		return nil, fmt.Errorf("board: decoding %s: %w", store, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	scope := seenScope{namespace: namespace, peerID: peerID}
	seen, ok := s.lastSeen[scope]
	if !ok {
		seen = make(map[string]time.Time)
		s.lastSeen[scope] = seen
	}

	var messages []SignalMessage
	for _, signal := range signals.Signals {
		timestamp, err := time.Parse(time.RFC3339Nano, signal.Timestamp)
		if err != nil {
			continue
		}
		seenKey := store + ":" + signal.From + signalingSeparator + signal.To
		if last, ok := seen[seenKey]; ok && !timestamp.After(last) {
			continue
		}
		seen[seenKey] = timestamp
		messages = append(messages, SignalMessage{
			PeerID:    signal.From,
			SDP:       signal.SDP,
			Timestamp: signal.Timestamp,
		})
	}
	return messages, nil
}

// doRequest performs one board request and returns the response body.
// Non-2xx responses become errors carrying the status and body.
func (s *BoardSignaler) doRequest(ctx context.Context, method, path string, requestBody any, query url.Values) ([]byte, error) {
	requestURL := s.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("board: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("board: creating request: %w", err)
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := s.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("board: %s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, &BoardError{
			StatusCode: response.StatusCode,
			Method:     method,
			Path:       path,
			Body:       strings.TrimSpace(netutil.ErrorBody(response.Body)),
		}
	}

	responseBody, err := netutil.ReadBody(response.Body)
	if err != nil {
		return nil, fmt.Errorf("board: reading response to %s %s: %w", method, path, err)
	}
	return responseBody, nil
}

// BoardError is a non-2xx response from the board.
type BoardError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *BoardError) Error() string {
	return fmt.Sprintf("board: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Unwrap makes a board refusal classify as ReasonRejected.
func (e *BoardError) Unwrap() error { return errRejected }

// boardPath builds "/board/{namespace}/..." with every segment escaped.
func boardPath(namespace string, segments ...string) string {
	var builder strings.Builder
	builder.WriteString("/board/")
	builder.WriteString(url.PathEscape(namespace))
	for _, segment := range segments {
		builder.WriteByte('/')
		builder.WriteString(url.PathEscape(segment))
	}
	return builder.String()
}
