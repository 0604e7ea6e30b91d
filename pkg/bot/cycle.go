package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"rileybot/pkg/config"
	"rileybot/pkg/generator"
	"rileybot/pkg/persona"
	"rileybot/pkg/selector"
	"rileybot/pkg/similarity"
	"rileybot/pkg/store"

	"github.com/rs/zerolog/log"
)

type Options struct {
	MaxAttempts   int
	MaxPostLength int
	Timeout       time.Duration // per generation and per publish call
	Window        int
	PostsPerPhase int
}

// Deps are the collaborators of a Bot. Metrics and Now are optional.
type Deps struct {
	Profile   *persona.Profile
	Generator generator.TextGenerator
	Publisher Publisher
	Store     store.Store
	Selector  *selector.Selector
	Filter    *similarity.Filter
	Metrics   Metrics
	Now       func() time.Time
}

// Bot runs posting cycles. Cycles on one Bot never overlap.
type Bot struct {
	profile   *persona.Profile
	generator generator.TextGenerator
	publisher Publisher
	store     store.Store
	selector  *selector.Selector
	filter    *similarity.Filter
	metrics   Metrics
	now       func() time.Time
	opts      Options

	mu sync.Mutex
}

func New(d Deps, opts Options) (*Bot, error) {
	switch {
	case d.Profile == nil:
		return nil, &config.ConfigurationError{Field: "persona", Reason: "no profile loaded"}
	case d.Generator == nil:
		return nil, &config.ConfigurationError{Field: "ai.provider", Reason: "no text generator"}
	case d.Publisher == nil:
		return nil, &config.ConfigurationError{Field: "platform.kind", Reason: "no publisher"}
	case d.Store == nil:
		return nil, &config.ConfigurationError{Field: "storage.backend", Reason: "no store"}
	case d.Selector == nil:
		return nil, &config.ConfigurationError{Field: "selector.topics", Reason: "no selector"}
	case d.Filter == nil:
		return nil, &config.ConfigurationError{Field: "similarity.threshold", Reason: "no similarity filter"}
	}
	if opts.MaxAttempts < 1 {
		return nil, &config.ConfigurationError{Field: "generation.max_attempts", Reason: "must be at least 1"}
	}
	if opts.MaxPostLength < 1 {
		return nil, &config.ConfigurationError{Field: "generation.max_post_length", Reason: "must be at least 1"}
	}
	if opts.Timeout <= 0 {
		return nil, &config.ConfigurationError{Field: "generation.timeout", Reason: "must be positive"}
	}
	if opts.Window < 1 {
		return nil, &config.ConfigurationError{Field: "similarity.window", Reason: "must be at least 1"}
	}

	b := &Bot{
		profile:   d.Profile,
		generator: d.Generator,
		publisher: d.Publisher,
		store:     d.Store,
		selector:  d.Selector,
		filter:    d.Filter,
		metrics:   d.Metrics,
		now:       d.Now,
		opts:      opts,
	}
	if b.metrics == nil {
		b.metrics = nopMetrics{}
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b, nil
}

// plan is what a cycle is about to write.
type plan struct {
	prompt generator.Prompt
	topic  string
	phase  string
	intro  bool
}

func (b *Bot) plan(ctx context.Context, state persona.State) (plan, error) {
	hasIntro, err := b.store.HasTopic(ctx, store.TopicIntroduction)
	if err != nil {
		return plan{}, fmt.Errorf("failed to read store: %w", err)
	}
	if !hasIntro {
		return plan{
			prompt: generator.BuildIntroPrompt(b.profile, b.opts.MaxPostLength),
			topic:  store.TopicIntroduction,
			intro:  true,
		}, nil
	}

	count, err := b.store.Count(ctx)
	if err != nil {
		return plan{}, fmt.Errorf("failed to read store: %w", err)
	}
	sel, err := b.selector.Select(state, count)
	if err != nil {
		return plan{}, err
	}
	return plan{
		prompt: generator.BuildPostPrompt(b.profile, sel.Topic, sel.Games, sel.Phase, b.opts.MaxPostLength),
		topic:  sel.Topic,
		phase:  sel.Phase,
	}, nil
}

// RunCycle writes, checks, stores and publishes one post. The state passed
// in is never modified; the returned state is advanced only when a regular
// post was stored. A non-nil error means the cycle hit a configuration or
// storage problem and nothing was published.
func (b *Bot) RunCycle(ctx context.Context, state persona.State) (result PostResult, next persona.State, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := b.now()
	next = state
	defer func() {
		b.metrics.CycleFinished(result.Outcome.String(), b.now().Sub(start))
	}()

	p, err := b.plan(ctx, state)
	if err != nil {
		return PostResult{}, state, err
	}

	recent, err := b.store.Recent(ctx, b.opts.Window)
	if err != nil {
		return PostResult{}, state, fmt.Errorf("failed to read recent posts: %w", err)
	}
	window := store.Texts(recent)

	logger := log.With().Str("topic", p.topic).Str("phase", p.phase).Logger()

	var (
		accepted string
		rejected []string
		attempts int
	)
	prompt := p.prompt
	for attempts < b.opts.MaxAttempts {
		attempts++
		b.metrics.GenerationAttempt()

		text, err := b.generate(ctx, prompt)
		if err != nil {
			logger.Error().Err(err).Int("attempt", attempts).Msg("Generation failed")
			return PostResult{Outcome: GenerationFailed, Attempts: attempts, Err: err}, state, nil
		}

		match := b.filter.MostSimilar(text, window)
		if b.filter.Rejects(match) {
			b.metrics.DuplicateRejected()
			logger.Info().
				Int("attempt", attempts).
				Float64("score", match.Score).
				Str("similar_to", match.Text).
				Msg("Candidate too similar to a recent post")
			rejected = append(rejected, text)
			prompt = p.prompt.Avoiding(rejected...)
			continue
		}

		accepted = text
		break
	}

	if accepted == "" {
		logger.Info().Int("attempts", attempts).Msg("Skipping cycle, every candidate was a duplicate")
		return PostResult{Outcome: SkippedDuplicate, Attempts: attempts}, state, nil
	}

	post := store.Post{Text: accepted, Topic: p.topic, Phase: p.phase, CreatedAt: b.now().UTC()}
	if err := b.store.Append(ctx, post); err != nil {
		if !store.IsWriteError(err) {
			err = &store.WriteError{Backend: "unknown", Err: err}
		}
		logger.Error().Err(err).Msg("Failed to store post, not publishing")
		return PostResult{}, state, err
	}

	if !p.intro {
		next = b.profile.Advance(state, b.opts.PostsPerPhase)
		if next.Phase != state.Phase {
			logger.Info().Str("next_phase", next.Phase).Msg("Story arc advanced")
		}
	}

	pubCtx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()
	id, err := b.publisher.Publish(pubCtx, accepted)
	if err != nil {
		logger.Warn().Err(err).Msg("Post stored but publishing failed")
		return PostResult{Outcome: PublishFailed, Post: post, Attempts: attempts, Err: err}, next, nil
	}

	logger.Info().Str("id", id).Int("attempts", attempts).Msg("Posted")
	return PostResult{Outcome: Posted, PostID: id, Post: post, Attempts: attempts}, next, nil
}

func (b *Bot) generate(ctx context.Context, prompt generator.Prompt) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	raw, err := b.generator.Generate(genCtx, prompt)
	if err != nil {
		if errors.Is(genCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return "", err
	}
	return generator.PostProcess(raw, b.opts.MaxPostLength)
}

// Window returns the texts the duplicate check compares against.
func (b *Bot) Window(ctx context.Context) ([]string, error) {
	recent, err := b.store.Recent(ctx, b.opts.Window)
	if err != nil {
		return nil, err
	}
	return store.Texts(recent), nil
}

// Check scores text against the current window without generating anything.
func (b *Bot) Check(ctx context.Context, text string) (similarity.Match, bool, error) {
	window, err := b.Window(ctx)
	if err != nil {
		return similarity.Match{}, false, err
	}
	m := b.filter.MostSimilar(text, window)
	return m, b.filter.Rejects(m), nil
}
