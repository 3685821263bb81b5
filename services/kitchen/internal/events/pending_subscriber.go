package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/appetiteclub/comanda/pkg/event"
	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
)

// Withdrawer drops orders finished by another kitchen view.
type Withdrawer interface {
	Withdraw(id int64, reason string) bool
}

// PendingOrderSubscriber turns pending-order announcements into
// reconciliation signals. Payloads are hints; the store stays the source of
// truth.
type PendingOrderSubscriber struct {
	subscriber events.Subscriber
	display    Withdrawer
	source     string
	signals    chan struct{}
	logger     aqm.Logger
}

// NewPendingOrderSubscriber builds a subscriber. Events carrying source are
// ignored, since they were published by this process.
func NewPendingOrderSubscriber(
	subscriber events.Subscriber,
	display Withdrawer,
	source string,
	logger aqm.Logger,
) *PendingOrderSubscriber {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &PendingOrderSubscriber{
		subscriber: subscriber,
		display:    display,
		source:     source,
		signals:    make(chan struct{}, 1),
		logger:     logger,
	}
}

// SetWithdrawer sets the display told about orders finished elsewhere.
func (s *PendingOrderSubscriber) SetWithdrawer(w Withdrawer) {
	s.display = w
}

// Signals delivers one value per burst of submitted orders.
func (s *PendingOrderSubscriber) Signals() <-chan struct{} {
	return s.signals
}

func (s *PendingOrderSubscriber) Start(ctx context.Context) error {
	s.logger.Infof("Starting PendingOrderSubscriber for topic: %s", event.PendingOrdersTopic)

	if err := s.subscriber.Subscribe(ctx, event.PendingOrdersTopic, s.handleEvent); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", event.PendingOrdersTopic, err)
	}

	s.logger.Info("PendingOrderSubscriber started successfully")
	return nil
}

func (s *PendingOrderSubscriber) Stop(ctx context.Context) error {
	return nil
}

func (s *PendingOrderSubscriber) handleEvent(ctx context.Context, msg []byte) error {
	var evt event.PendingOrderEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		s.logger.Errorf("Failed to unmarshal event: %v", err)
		return nil
	}

	if s.source != "" && evt.Source == s.source {
		return nil
	}

	switch evt.EventType {
	case event.EventOrderSubmitted:
		s.signal()
	case event.EventOrderRemoved:
		if s.display != nil && s.display.Withdraw(evt.OrderID, evt.Reason) {
			s.logger.Infof("Order %d %s elsewhere", evt.OrderID, evt.Reason)
		}
	default:
		s.logger.Infof("Unknown event type: %s", evt.EventType)
	}

	return nil
}

func (s *PendingOrderSubscriber) signal() {
	select {
	case s.signals <- struct{}{}:
	default:
	}
}
