// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagecast_sessions_started_total",
		Help: "Total number of cast sessions created",
	})

	SessionsStopped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagecast_sessions_stopped_total",
		Help: "Total number of cast sessions stopped by request",
	})

	sessionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagecast_session_failures_total",
		Help: "Total number of cast sessions that ended in error",
	}, []string{"reason"})

	encoderStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagecast_encoder_start_total",
		Help: "Total number of encoder process starts",
	}, []string{"result"})

	encoderExits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagecast_encoder_exit_total",
		Help: "Total number of encoder process exits",
	}, []string{"reason"})

	senderPlays = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagecast_sender_play_total",
		Help: "Total number of receiver play commands issued",
	}, []string{"result"})

	fileRequestsDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagecast_file_requests_denied_total",
		Help: "Total number of denied segment/playlist file requests",
	}, []string{"reason"})
)

func IncSessionFailure(reason string)    { sessionFailures.WithLabelValues(reason).Inc() }
func IncEncoderStart(result string)      { encoderStarts.WithLabelValues(result).Inc() }
func IncEncoderExit(reason string)       { encoderExits.WithLabelValues(reason).Inc() }
func IncSenderPlay(result string)        { senderPlays.WithLabelValues(result).Inc() }
func IncFileRequestDenied(reason string) { fileRequestsDenied.WithLabelValues(reason).Inc() }
