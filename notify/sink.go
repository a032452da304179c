// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"context"
	"log/slog"

	"github.com/danielhkuo/quickly-agree/models"
)

// Notice is one event addressed to one participant.
type Notice struct {
	Recipient string
	Event     models.Event
	Priority  Priority
}

// Sink delivers notices. Push, email and other wire formats live behind it.
type Sink interface {
	Deliver(ctx context.Context, notices []Notice) error
}

// LogSink writes each notice as a structured log record.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Deliver(ctx context.Context, notices []Notice) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, n := range notices {
		logger.InfoContext(ctx, "notification",
			"recipient", n.Recipient,
			"event", string(n.Event.Type),
			"decision_id", n.Event.DecisionID,
			"option_id", n.Event.OptionID,
			"priority", n.Priority.String(),
		)
	}
	return nil
}
