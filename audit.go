package jwtgate

import (
	"io"
	"log/slog"

	"github.com/MrEthical07/jwtgate/internal/audit"
)

// AuditEvent is one record of a token lifecycle operation.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink drops every event.
type NoOpSink = audit.NoOpSink

// ChannelSink forwards events to a buffered channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON document per line.
type JSONWriterSink = audit.JSONWriterSink

// SlogSink logs events through a structured logger.
type SlogSink = audit.SlogSink

func NewChannelSink(buffer int) *ChannelSink { return audit.NewChannelSink(buffer) }

func NewJSONWriterSink(w io.Writer) *JSONWriterSink { return audit.NewJSONWriterSink(w) }

func NewSlogSink(logger *slog.Logger) *SlogSink { return audit.NewSlogSink(logger) }
