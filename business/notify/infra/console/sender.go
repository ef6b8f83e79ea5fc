// Package console logs notifications through the structured logger. Default
// channel for development and dry runs.
package console

import (
	"context"

	"github.com/cryptoking82/evm-arbitrage-bot/business/notify/app"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/logger"
)

// Ensure Sender implements the port.
var _ app.Sender = (*Sender)(nil)

// Sender writes events to the application log.
type Sender struct {
	logger logger.LoggerInterface
}

// New creates a console sender.
func New(log logger.LoggerInterface) *Sender {
	return &Sender{logger: log.With("component", "notify-console")}
}

// Send logs the event.
func (s *Sender) Send(ctx context.Context, event app.Event) error {
	s.logger.Info(ctx, event.Title(),
		"event", string(event.Type),
		"route", event.DetectionKey,
		"opportunity", event.OpportunityID,
		"tx", event.TxHash,
		"profit", event.Profit.String(),
		"reason", event.Reason,
	)
	return nil
}

// Name returns the sender identifier.
func (s *Sender) Name() string {
	return "console"
}
