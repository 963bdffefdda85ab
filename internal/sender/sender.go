// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sender

import (
	"context"

	"github.com/ManuGH/pagecast/internal/log"
	"github.com/ManuGH/pagecast/internal/metrics"
)

// Receiver is a discovered FCast endpoint.
type Receiver struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// DiscoveryClient resolves receiver names to network endpoints. It is a
// capability: deployments without a discovery backend use Unavailable and
// sessions address receivers by explicit host instead.
type DiscoveryClient interface {
	// Receivers lists currently known receivers.
	Receivers(ctx context.Context) ([]Receiver, error)
	// Resolve maps a receiver name to a host and port. ok is false when the
	// name is unknown.
	Resolve(ctx context.Context, name string) (host string, port int, ok bool)
}

// Unavailable is the null discovery capability: no receivers are ever known.
type Unavailable struct{}

// Receivers always returns an empty list.
func (Unavailable) Receivers(context.Context) ([]Receiver, error) { return nil, nil }

// Resolve never resolves.
func (Unavailable) Resolve(context.Context, string) (string, int, bool) { return "", 0, false }

// Sender plays and stops media on FCast receivers, resolving names through
// the discovery capability first and falling back to an explicit host.
type Sender struct {
	Discovery DiscoveryClient
}

// New creates a Sender. A nil discovery client degrades to Unavailable.
func New(discovery DiscoveryClient) *Sender {
	if discovery == nil {
		discovery = Unavailable{}
	}
	return &Sender{Discovery: discovery}
}

// Discover lists known receivers. Without a discovery backend the list is
// empty, never an error.
func (s *Sender) Discover(ctx context.Context) ([]Receiver, error) {
	return s.Discovery.Receivers(ctx)
}

// Play starts playback of mediaURL on the receiver. The receiver is addressed
// by discovered name when the discovery backend knows it, otherwise by the
// explicit host. Returns false when the receiver cannot be reached or
// commanded.
func (s *Sender) Play(ctx context.Context, name, host string, port int, mediaURL string) bool {
	logger := log.WithComponent("sender")
	host, port, ok := s.endpoint(ctx, name, host, port)
	if !ok {
		metrics.IncSenderPlay("unresolved")
		logger.Warn().Str(log.FieldReceiver, name).Msg("receiver not resolvable, play skipped")
		return false
	}

	conn, err := Dial(ctx, host, port)
	if err != nil {
		metrics.IncSenderPlay("error")
		logger.Warn().Err(err).Str(log.FieldReceiver, name).Msg("receiver unreachable")
		return false
	}
	defer func() { _ = conn.Close() }()

	if err := conn.Play(mediaURL); err != nil {
		metrics.IncSenderPlay("error")
		logger.Warn().Err(err).Str(log.FieldReceiver, name).Msg("play command failed")
		return false
	}
	metrics.IncSenderPlay("ok")
	logger.Info().
		Str(log.FieldReceiver, name).
		Str(log.FieldMediaURL, mediaURL).
		Msg("play sent")
	return true
}

// Stop halts playback on the receiver. Best effort: returns false when the
// receiver cannot be reached.
func (s *Sender) Stop(ctx context.Context, name, host string, port int) bool {
	logger := log.WithComponent("sender")
	host, port, ok := s.endpoint(ctx, name, host, port)
	if !ok {
		return false
	}

	conn, err := Dial(ctx, host, port)
	if err != nil {
		logger.Debug().Err(err).Str(log.FieldReceiver, name).Msg("receiver unreachable on stop")
		return false
	}
	defer func() { _ = conn.Close() }()

	if err := conn.Stop(); err != nil {
		logger.Debug().Err(err).Str(log.FieldReceiver, name).Msg("stop command failed")
		return false
	}
	logger.Info().Str(log.FieldReceiver, name).Msg("stop sent")
	return true
}

func (s *Sender) endpoint(ctx context.Context, name, host string, port int) (string, int, bool) {
	if h, p, ok := s.Discovery.Resolve(ctx, name); ok {
		return h, p, true
	}
	if host != "" {
		if port <= 0 {
			port = DefaultPort
		}
		return host, port, true
	}
	return "", 0, false
}
