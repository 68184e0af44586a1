// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bureau-foundation/parley/lib/config"
	"github.com/bureau-foundation/parley/transport"
)

// buildAdapters constructs one adapter per enabled transport, in the
// configured priority order. A non-nil network replaces every real
// transport with an in-process one reporting the same method.
func buildAdapters(cfg *config.Config, network *transport.MemoryNetwork, logger *slog.Logger) ([]transport.Adapter, []transport.Method, error) {
	servers := make([]transport.ICEServer, len(cfg.Transports.ICE.Servers))
	for index, server := range cfg.Transports.ICE.Servers {
		servers[index] = transport.ICEServer{
			URLs:       server.URLs,
			Username:   server.Username,
			Credential: server.Credential,
		}
	}
	ice := transport.NewICEConfig(servers)

	var adapters []transport.Adapter
	var priority []transport.Method
	for _, name := range cfg.Transports.Enabled {
		method, err := transport.ParseMethod(name)
		if err != nil {
			return nil, nil, err
		}
		adapterLogger := logger.With("component", "transport", "method", method)

		var adapter transport.Adapter
		switch {
		case network != nil:
			adapter = transport.NewMemoryAdapter(network, method, adapterLogger)

		case method == transport.MethodMesh:
			mesh := cfg.Transports.Mesh
			signaler, err := transport.NewBoardSignaler(mesh.BoardURL, &http.Client{Timeout: mesh.OpenTimeout.Std()})
			if err != nil {
				return nil, nil, fmt.Errorf("configuring mesh board: %w", err)
			}
			adapter = transport.NewMeshAdapter(transport.MeshConfig{
				AppID:        cfg.AppID,
				Signaler:     signaler,
				ICE:          ice,
				PollInterval: mesh.PollInterval.Std(),
				OpenTimeout:  mesh.OpenTimeout.Std(),
				Logger:       adapterLogger,
			})

		case method == transport.MethodRelayPeer:
			adapter = transport.NewRelayPeerAdapter(transport.RelayPeerConfig{
				BrokerURL:   cfg.Transports.RelayPeer.BrokerURL,
				ICE:         ice,
				OpenTimeout: cfg.Transports.RelayPeer.OpenTimeout.Std(),
				Logger:      adapterLogger,
			})

		case method == transport.MethodServerRelay:
			adapter = transport.NewServerRelayAdapter(transport.ServerRelayConfig{
				ServerURL:    cfg.Transports.ServerRelay.ServerURL,
				OpenTimeout:  cfg.Transports.ServerRelay.OpenTimeout.Std(),
				WriteTimeout: cfg.Transports.ServerRelay.WriteTimeout.Std(),
				Logger:       adapterLogger,
			})
		}
		adapters = append(adapters, adapter)
		priority = append(priority, method)
	}
	return adapters, priority, nil
}
