package bot

import "rileybot/pkg/store"

// Outcome is how a cycle ended. Fatal problems (configuration, storage) are
// returned as errors instead.
type Outcome int

const (
	OutcomeNone Outcome = iota
	// Posted: stored and published.
	Posted
	// SkippedDuplicate: every attempt was too close to a recent post. Nothing
	// was stored. This is a normal outcome, not an error.
	SkippedDuplicate
	// GenerationFailed: the provider errored, timed out or returned nothing
	// usable. Nothing was stored.
	GenerationFailed
	// PublishFailed: the post was stored but the platform refused it. It is
	// not retried.
	PublishFailed
)

func (o Outcome) String() string {
	switch o {
	case Posted:
		return "posted"
	case SkippedDuplicate:
		return "skipped_duplicate"
	case GenerationFailed:
		return "generation_failed"
	case PublishFailed:
		return "publish_failed"
	default:
		return "error"
	}
}

// PostResult describes one finished cycle.
type PostResult struct {
	Outcome  Outcome
	PostID   string
	Post     store.Post // set once a candidate was accepted
	Attempts int
	Err      error
}
