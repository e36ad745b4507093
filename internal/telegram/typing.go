package telegram

import (
	"context"
	"time"
)

// DefaultTypingInterval refreshes the indicator before Telegram's ~5s decay.
const DefaultTypingInterval = 5 * time.Second

// TypingSender is the one transport call the heartbeat needs.
type TypingSender interface {
	SendTyping(ctx context.Context, chatID int64) error
}

// TypingManager keeps a "typing..." heartbeat alive for the duration of a
// long-running invocation. Delivery failures never interrupt the heartbeat;
// the indicator is cosmetic.
type TypingManager struct {
	sender   TypingSender
	interval time.Duration
}

// NewTypingManager creates a manager with the given refresh interval.
func NewTypingManager(sender TypingSender, interval time.Duration) *TypingManager {
	if interval <= 0 {
		interval = DefaultTypingInterval
	}
	return &TypingManager{sender: sender, interval: interval}
}

// Start sends an immediate typing indicator and keeps refreshing it until the
// returned stop function runs or ctx ends. Callers must defer stop so the
// heartbeat lifetime never outlives its invocation.
func (m *TypingManager) Start(ctx context.Context, chatID int64) (stop func()) {
	hbCtx, cancel := context.WithCancel(ctx)
	go m.run(hbCtx, chatID)
	return cancel
}

func (m *TypingManager) run(ctx context.Context, chatID int64) {
	if err := m.sender.SendTyping(ctx, chatID); err != nil && ctx.Err() == nil {
		logSendFailure("typing", chatID, err)
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.sender.SendTyping(ctx, chatID); err != nil && ctx.Err() == nil {
				logSendFailure("typing", chatID, err)
			}
		}
	}
}
