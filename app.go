package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"rileybot/pkg/bot"
	"rileybot/pkg/cache"
	"rileybot/pkg/config"
	"rileybot/pkg/discord"
	"rileybot/pkg/gemini"
	"rileybot/pkg/generator"
	"rileybot/pkg/logging"
	"rileybot/pkg/metrics"
	"rileybot/pkg/openaichat"
	"rileybot/pkg/persona"
	"rileybot/pkg/selector"
	"rileybot/pkg/session"
	"rileybot/pkg/similarity"
	"rileybot/pkg/store"
	"rileybot/pkg/surreal"
	"rileybot/pkg/twitter"

	"github.com/rs/zerolog/log"
)

const (
	postsTable  = "posts"
	cachePrefix = "rileybot"
)

type globalFlags struct {
	configPath string
	envPath    string
}

type appOptions struct {
	feature string // log file name
	full    bool   // validate provider and platform settings too
}

// app holds everything one command needs. Commands that only read history
// skip provider and platform validation.
type app struct {
	cfg     *config.Config
	secrets *config.Secrets
	store   store.Store
	metrics *metrics.Metrics

	logCloser io.Closer
}

func newApp(ctx context.Context, flags *globalFlags, opts appOptions) (*app, error) {
	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return nil, &config.ConfigurationError{Field: "config", Reason: err.Error(), Err: err}
	}
	secrets, err := config.LoadSecrets(flags.envPath)
	if err != nil {
		return nil, &config.ConfigurationError{Field: "env", Reason: err.Error(), Err: err}
	}
	if opts.full {
		if err := cfg.Validate(secrets); err != nil {
			return nil, err
		}
	}

	closer, err := logging.Setup(logging.Options{Level: cfg.Log.Level, Dir: cfg.Log.Dir, Name: opts.feature})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	st, err := openStore(ctx, cfg, secrets)
	if err != nil {
		closer.Close()
		return nil, err
	}

	return &app{
		cfg:       cfg,
		secrets:   secrets,
		store:     st,
		metrics:   metrics.New(),
		logCloser: closer,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close store")
	}
	a.logCloser.Close()
}

func openStore(ctx context.Context, cfg *config.Config, secrets *config.Secrets) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Storage.Backend {
	case "file":
		st, err = store.NewFileStore(cfg.Storage.Path)
	case "sqlite":
		st, err = store.OpenSQLite(cfg.Storage.Path)
	case "surreal":
		var client *surreal.Client
		client, err = surreal.NewClient(ctx, surreal.Options{
			Host:      secrets.SurrealHost,
			User:      secrets.SurrealUser,
			Pass:      secrets.SurrealPass,
			Namespace: secrets.SurrealNamespace,
			Database:  secrets.SurrealDatabase,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
		}
		st, err = store.NewSurrealStore(ctx, client, postsTable)
	default:
		return nil, &config.ConfigurationError{Field: "storage.backend", Reason: fmt.Sprintf("unknown backend %q", cfg.Storage.Backend)}
	}
	if err != nil {
		return nil, err
	}
	log.Debug().Str("backend", cfg.Storage.Backend).Msg("Store opened")

	if cfg.Storage.RedisURL == "" {
		return st, nil
	}
	rc, err := cache.NewRedisCache(ctx, cfg.Storage.RedisURL, cachePrefix)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, reading history from the store directly")
		return st, nil
	}
	return store.NewCachedStore(st, rc, cfg.Similarity.Window, historyScope(cfg, secrets)...), nil
}

// historyScope identifies the configured post history in cache keys.
func historyScope(cfg *config.Config, secrets *config.Secrets) []string {
	if cfg.Storage.Backend == "surreal" {
		return []string{"surreal", secrets.SurrealHost, secrets.SurrealNamespace, secrets.SurrealDatabase}
	}
	return []string{cfg.Storage.Backend, cfg.Storage.Path}
}

func newGenerator(cfg *config.Config, secrets *config.Secrets) (generator.TextGenerator, error) {
	switch cfg.AI.Provider {
	case "gemini":
		if a := gemini.NewAdapter(secrets.GeminiAPIKey, cfg.AI.Model, cfg.AI.Temperature, cfg.AI.TopP); a != nil {
			return a, nil
		}
		return nil, &config.ConfigurationError{Field: "GEMINI_API_KEY", Reason: "missing required environment variable"}
	case "openai":
		return openaichat.NewClient(secrets.OpenAIAPIKey, cfg.AI.BaseURL, cfg.AI.Model, cfg.AI.Temperature, cfg.AI.TopP), nil
	}
	return nil, &config.ConfigurationError{Field: "ai.provider", Reason: fmt.Sprintf("unknown provider %q", cfg.AI.Provider)}
}

// newSessionProvider returns where Twitter access tokens come from. Anything
// but static tokens goes through the PIN flow once and is then cached on disk.
func newSessionProvider(cfg *config.Config, secrets *config.Secrets) (session.Provider, error) {
	var verifier session.VerifierSource
	switch cfg.Platform.Session {
	case "static":
		return session.Static{Creds: session.Credentials{Token: secrets.AccessToken, Secret: secrets.AccessTokenSecret}}, nil
	case "browser":
		verifier = &session.BrowserVerifier{
			Username: secrets.TwitterUsername,
			Password: secrets.TwitterPassword,
			Email:    secrets.TwitterEmail,
			Headless: cfg.Platform.Headless,
			Timeout:  cfg.Platform.LoginTimeout,
		}
	case "prompt":
		verifier = session.PromptVerifier{In: os.Stdin, Out: os.Stdout}
	default:
		return nil, &config.ConfigurationError{Field: "platform.session", Reason: fmt.Sprintf("unknown session provider %q", cfg.Platform.Session)}
	}
	flow := session.NewPINFlow(secrets.ConsumerKey, secrets.ConsumerSecret, verifier)
	return session.NewCached(cfg.Platform.TokenCache, flow), nil
}

// newPublisher builds the platform client. Interactive sessions are resolved
// here, under the login timeout, so the first publish does not have to.
func newPublisher(ctx context.Context, cfg *config.Config, secrets *config.Secrets, dryRun bool) (bot.Publisher, error) {
	if dryRun {
		return dryRunPublisher{}, nil
	}

	switch cfg.Platform.Kind {
	case "twitter":
		sessions, err := newSessionProvider(cfg, secrets)
		if err != nil {
			return nil, err
		}
		if cfg.Platform.Session != "static" {
			loginCtx, cancel := context.WithTimeout(ctx, cfg.Platform.LoginTimeout)
			defer cancel()
			if _, err := sessions.Credentials(loginCtx); err != nil {
				return nil, fmt.Errorf("failed to obtain session: %w", err)
			}
		}
		return twitter.NewPublisher(secrets.ConsumerKey, secrets.ConsumerSecret, sessions), nil
	case "discord":
		return discord.NewPublisher(secrets.DiscordWebhookURL, cfg.Platform.DiscordName)
	}
	return nil, &config.ConfigurationError{Field: "platform.kind", Reason: fmt.Sprintf("unknown platform %q", cfg.Platform.Kind)}
}

// dryRunPublisher logs posts instead of sending them.
type dryRunPublisher struct{}

func (dryRunPublisher) Publish(ctx context.Context, text string) (string, error) {
	id := "dry-run-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	log.Info().Str("id", id).Str("text", text).Msg("Dry run, not publishing")
	return id, nil
}

func newSelector(cfg *config.Config) (*selector.Selector, error) {
	topics := cfg.Selector.Topics
	if topics == nil {
		topics = selector.DefaultTopics
	}
	return selector.New(topics, selector.Policy(cfg.Selector.Policy), cfg.Selector.Seed)
}

func (a *app) newFilter() *similarity.Filter {
	return similarity.NewFilter(a.cfg.Similarity.Threshold)
}

func (a *app) botOptions() bot.Options {
	return bot.Options{
		MaxAttempts:   a.cfg.Generation.MaxAttempts,
		MaxPostLength: a.cfg.Generation.MaxPostLength,
		Timeout:       a.cfg.Generation.Timeout,
		Window:        a.cfg.Similarity.Window,
		PostsPerPhase: a.cfg.Persona.PostsPerPhase,
	}
}

// checker is a Bot that can score text against history but never posts.
func (a *app) checker() (*bot.Bot, error) {
	sel, err := newSelector(a.cfg)
	if err != nil {
		return nil, err
	}
	return bot.New(bot.Deps{
		Profile:   &persona.Profile{},
		Generator: nopGenerator{},
		Publisher: dryRunPublisher{},
		Store:     a.store,
		Selector:  sel,
		Filter:    a.newFilter(),
	}, a.botOptions())
}

type nopGenerator struct{}

func (nopGenerator) Generate(ctx context.Context, p generator.Prompt) (string, error) {
	return "", generator.ErrEmptyCandidate
}

// dryRunStore reads the real history but never adds to it, so a dry run
// leaves the introduction and the duplicate window untouched.
type dryRunStore struct {
	store.Store
}

func (dryRunStore) Append(ctx context.Context, p store.Post) error {
	log.Info().Str("topic", p.Topic).Msg("Dry run, not storing")
	return nil
}

// poster owns the persona state between cycles and writes it back to the
// persona file whenever a cycle moves it. A dry-run poster writes nothing.
type poster struct {
	bot     *bot.Bot
	path    string
	profile *persona.Profile
	dryRun  bool
}

func (a *app) newPoster(ctx context.Context, dryRun bool) (*poster, error) {
	profile, err := persona.Load(a.cfg.Persona.Path)
	if err != nil {
		return nil, err
	}
	gen, err := newGenerator(a.cfg, a.secrets)
	if err != nil {
		return nil, err
	}
	sel, err := newSelector(a.cfg)
	if err != nil {
		return nil, err
	}
	pub, err := newPublisher(ctx, a.cfg, a.secrets, dryRun)
	if err != nil {
		return nil, err
	}
	var st store.Store = a.store
	if dryRun {
		st = dryRunStore{Store: a.store}
	}

	b, err := bot.New(bot.Deps{
		Profile:   profile,
		Generator: gen,
		Publisher: pub,
		Store:     st,
		Selector:  sel,
		Filter:    a.newFilter(),
		Metrics:   a.metrics,
	}, a.botOptions())
	if err != nil {
		return nil, err
	}
	return &poster{bot: b, path: a.cfg.Persona.Path, profile: profile, dryRun: dryRun}, nil
}

func (p *poster) cycle(ctx context.Context) (bot.PostResult, error) {
	state := p.profile.State()
	res, next, err := p.bot.RunCycle(ctx, state)
	if p.dryRun {
		if next != state {
			log.Info().Str("phase", next.Phase).Int("posts_in_phase", next.PostsInPhase).Msg("Dry run, not saving persona state")
		}
		return res, err
	}
	if next != state {
		p.profile = p.profile.WithState(next)
		if saveErr := persona.Save(p.path, p.profile); saveErr != nil {
			log.Error().Err(saveErr).Str("path", p.path).Msg("Failed to save persona state")
		}
	}
	return res, err
}
