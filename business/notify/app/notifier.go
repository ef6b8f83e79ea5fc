package app

import (
	"context"
	"strings"

	"github.com/cryptoking82/evm-arbitrage-bot/internal/logger"
)

// Notifier dispatches events to one or more senders. It holds a set of
// allowed event types; Publish drops events outside the set. An empty set
// allows everything. Sender failures are absorbed and logged, never
// propagated into the engine loops.
type Notifier struct {
	senders []Sender
	events  map[EventType]bool
	logger  logger.LoggerInterface
}

// NewNotifier creates a Notifier delivering to the given senders, forwarding
// only the listed event types. An empty events list allows all.
func NewNotifier(senders []Sender, events []string, log logger.LoggerInterface) *Notifier {
	allowed := make(map[EventType]bool, len(events))
	for _, e := range events {
		allowed[EventType(strings.TrimSpace(e))] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  log.With("component", "notifier"),
	}
}

// Publish delivers the event to all senders if its type is allowed.
func (n *Notifier) Publish(ctx context.Context, event Event) {
	if len(n.events) > 0 && !n.events[event.Type] {
		n.logger.Debug(ctx, "event filtered out", "event", string(event.Type))
		return
	}

	for _, s := range n.senders {
		if err := s.Send(ctx, event); err != nil {
			n.logger.Error(ctx, "sender failed",
				"sender", s.Name(),
				"event", string(event.Type),
				"error", err,
			)
			continue
		}
		n.logger.Debug(ctx, "notification sent",
			"sender", s.Name(),
			"event", string(event.Type),
		)
	}
}

// Senders returns the number of configured channels, used for startup logs.
func (n *Notifier) Senders() string {
	names := make([]string, 0, len(n.senders))
	for _, s := range n.senders {
		names = append(names, s.Name())
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}
