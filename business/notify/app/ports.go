// Package app contains the notification service and sender port.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EventType classifies the structured events the engine emits.
type EventType string

const (
	EventOpportunityDetected EventType = "opportunity_detected"
	EventOpportunityExpired  EventType = "opportunity_expired"
	EventExecutionStarted    EventType = "execution_started"
	EventExecutionCompleted  EventType = "execution_completed"
	EventExecutionFailed     EventType = "execution_failed"
	EventVenueUnhealthy      EventType = "venue_unhealthy"
	EventSettlementStuck     EventType = "settlement_stuck"
)

// Event is one structured notification. Formatting for a specific channel
// happens in the sender.
type Event struct {
	Type          EventType
	OpportunityID string
	DetectionKey  string
	Network       string
	ProfitPct     decimal.Decimal
	Profit        decimal.Decimal
	TxHash        string
	Reason        string
	Timestamp     time.Time
}

// Title returns a short single-line headline for the event.
func (e Event) Title() string {
	switch e.Type {
	case EventOpportunityDetected:
		return fmt.Sprintf("Opportunity detected (%s%%)", e.ProfitPct.StringFixed(2))
	case EventOpportunityExpired:
		return "Opportunity expired"
	case EventExecutionStarted:
		return "Execution started"
	case EventExecutionCompleted:
		return fmt.Sprintf("Execution completed (+%s)", e.Profit.String())
	case EventExecutionFailed:
		return "Execution failed"
	case EventVenueUnhealthy:
		return "Venue unhealthy"
	case EventSettlementStuck:
		return "Settlement stuck"
	}
	return string(e.Type)
}

// Body returns a multi-line plain text rendering of the event.
func (e Event) Body() string {
	var b strings.Builder
	if e.DetectionKey != "" {
		fmt.Fprintf(&b, "route: %s\n", e.DetectionKey)
	}
	if e.OpportunityID != "" {
		fmt.Fprintf(&b, "opportunity: %s\n", e.OpportunityID)
	}
	if e.TxHash != "" {
		fmt.Fprintf(&b, "tx: %s\n", e.TxHash)
	}
	if !e.Profit.IsZero() {
		fmt.Fprintf(&b, "profit: %s\n", e.Profit.String())
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, "reason: %s\n", e.Reason)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Sender is the interface each notification channel implements.
type Sender interface {
	// Send delivers one event.
	Send(ctx context.Context, event Event) error
	// Name returns a human-readable identifier for the sender.
	Name() string
}
