// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"github.com/pion/webrtc/v4"
)

// ICEConfig holds ICE server configuration for WebRTC PeerConnections.
type ICEConfig struct {
	// Servers is the list of ICE servers (STUN + TURN) to use during
	// candidate gathering. An empty list gathers host candidates only,
	// which is enough for same-machine and same-LAN rooms.
	Servers []webrtc.ICEServer
}

// ICEServer describes one STUN or TURN server.
type ICEServer struct {
	URLs       []string
	Username   string
	Credential string
}

// NewICEConfig converts server descriptions into an ICEConfig. Servers
// without URLs are skipped.
func NewICEConfig(servers []ICEServer) ICEConfig {
	var config ICEConfig
	for _, server := range servers {
		if len(server.URLs) == 0 {
			continue
		}
		config.Servers = append(config.Servers, webrtc.ICEServer{
			URLs:       server.URLs,
			Username:   server.Username,
			Credential: server.Credential,
		})
	}
	return config
}

// newPeerConnection creates a pion PeerConnection for config. Loopback
// candidates are included so peers on one machine (and tests) can link.
func newPeerConnection(config ICEConfig) (*webrtc.PeerConnection, error) {
	settingEngine := webrtc.SettingEngine{}
	settingEngine.SetIncludeLoopbackCandidate(true)

	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))
	return api.NewPeerConnection(webrtc.Configuration{
		ICEServers: config.Servers,
	})
}
