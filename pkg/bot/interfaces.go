package bot

import (
	"context"
	"time"
)

// Publisher is the boundary to the social platform.
type Publisher interface {
	Publish(ctx context.Context, text string) (string, error)
}

// Metrics receives cycle events. *metrics.Metrics implements it.
type Metrics interface {
	CycleFinished(outcome string, d time.Duration)
	GenerationAttempt()
	DuplicateRejected()
}

type nopMetrics struct{}

func (nopMetrics) CycleFinished(string, time.Duration) {}
func (nopMetrics) GenerationAttempt()                  {}
func (nopMetrics) DuplicateRejected()                  {}
