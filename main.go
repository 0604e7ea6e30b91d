package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rileybot/pkg/bot"
	"rileybot/pkg/config"
	"rileybot/pkg/scheduler"
	"rileybot/pkg/session"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	exitOK        = 0
	exitFailure   = 1
	exitBadConfig = 2
)

func main() {
	os.Exit(execute(os.Args[1:]))
}

func execute(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
	}
	return exitCode(err)
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case config.IsConfigurationError(err):
		return exitBadConfig
	default:
		return exitFailure
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "rileybot",
		Short:         "Riley - a persona bot that posts about games",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "config.yml", "path to the YAML config")
	root.PersistentFlags().StringVar(&flags.envPath, "env", ".env", "optional .env file with secrets")

	root.AddCommand(runCmd(flags))
	root.AddCommand(serveCmd(flags))
	root.AddCommand(historyCmd(flags))
	root.AddCommand(checkCmd(flags))
	root.AddCommand(loginCmd(flags))
	return root
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
}

// cycleError turns a finished cycle into the command's error. Skipping a
// duplicate is a normal outcome.
func cycleError(res bot.PostResult) error {
	switch res.Outcome {
	case bot.Posted, bot.SkippedDuplicate:
		return nil
	}
	if res.Err != nil {
		return fmt.Errorf("cycle %s: %w", res.Outcome, res.Err)
	}
	return fmt.Errorf("cycle %s", res.Outcome)
}

func runCmd(flags *globalFlags) *cobra.Command {
	var debug, dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one posting cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := newApp(ctx, flags, appOptions{feature: "run", full: true})
			if err != nil {
				return err
			}
			defer a.Close()
			if debug {
				a.cfg.Platform.Headless = false
			}

			p, err := a.newPoster(ctx, dryRun)
			if err != nil {
				return err
			}

			res, err := p.cycle(ctx)
			if url := a.cfg.Metrics.PushgatewayURL; url != "" {
				if pushErr := a.metrics.Push(ctx, url); pushErr != nil {
					log.Warn().Err(pushErr).Str("url", url).Msg("Failed to push metrics")
				}
			}
			if err != nil {
				return err
			}

			printResult(res)
			return cycleError(res)
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "show the browser during login")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log the post instead of publishing it")
	return cmd
}

func printResult(res bot.PostResult) {
	switch res.Outcome {
	case bot.Posted:
		fmt.Printf("%s %s\n  %s\n", color.GreenString("posted"), color.CyanString(res.PostID), res.Post.Text)
	case bot.SkippedDuplicate:
		fmt.Printf("%s after %d attempts\n", color.YellowString("skipped duplicate"), res.Attempts)
	case bot.PublishFailed:
		fmt.Printf("%s (stored locally)\n  %s\n", color.YellowString("publish failed"), res.Post.Text)
	default:
		fmt.Println(color.RedString(res.Outcome.String()))
	}
}

func serveCmd(flags *globalFlags) *cobra.Command {
	var now bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Post on the configured cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := newApp(ctx, flags, appOptions{feature: "serve", full: true})
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.newPoster(ctx, false)
			if err != nil {
				return err
			}

			sched, err := scheduler.New(a.cfg.Schedule.Cron, func(ctx context.Context) {
				if _, err := p.cycle(ctx); err != nil {
					log.Error().Err(err).Msg("Cycle failed")
				}
			})
			if err != nil {
				return err
			}

			if addr := a.cfg.Metrics.ListenAddr; addr != "" {
				srv := &http.Server{Addr: addr, Handler: metricsMux(a), ReadHeaderTimeout: 5 * time.Second}
				go func() {
					log.Info().Str("addr", addr).Msg("Serving metrics")
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.Error().Err(err).Msg("Metrics server stopped")
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
			}

			sched.Start(ctx)
			if now {
				sched.TriggerNow(ctx)
			}

			<-ctx.Done()
			log.Info().Msg("Shutting down")
			sched.Stop()
			return nil
		},
	}

	cmd.Flags().BoolVar(&now, "now", false, "run one cycle immediately on start")
	return cmd
}

func metricsMux(a *app) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	return mux
}

func historyCmd(flags *globalFlags) *cobra.Command {
	var n int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the most recent stored posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags, appOptions{feature: "history"})
			if err != nil {
				return err
			}
			defer a.Close()

			posts, err := a.store.Recent(cmd.Context(), n)
			if err != nil {
				return err
			}
			if len(posts) == 0 {
				fmt.Println("No posts yet.")
				return nil
			}
			for _, p := range posts {
				header := color.New(color.FgCyan).Sprint(p.CreatedAt.Local().Format("2006-01-02 15:04"))
				topic := color.New(color.FgHiMagenta).Sprintf("[%s]", p.Topic)
				if p.Phase != "" {
					topic += color.New(color.FgHiBlack).Sprintf(" %s", p.Phase)
				}
				fmt.Printf("%s %s\n  %s\n", header, topic, p.Text)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&n, "number", "n", 10, "how many posts to show")
	return cmd
}

func checkCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check TEXT",
		Short: "Score TEXT against recent posts with the duplicate filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags, appOptions{feature: "check"})
			if err != nil {
				return err
			}
			defer a.Close()

			b, err := a.checker()
			if err != nil {
				return err
			}
			m, dup, err := b.Check(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if m.Index < 0 {
				fmt.Println("No stored posts to compare against.")
				return nil
			}
			verdict := color.GreenString("ok")
			if dup {
				verdict = color.RedString("duplicate")
			}
			fmt.Printf("%s score=%.3f threshold=%.2f\n  closest: %s\n", verdict, m.Score, a.cfg.Similarity.Threshold, m.Text)
			return nil
		},
	}
}

func loginCmd(flags *globalFlags) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Obtain Twitter access tokens through the configured session flow",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := newApp(ctx, flags, appOptions{feature: "login", full: true})
			if err != nil {
				return err
			}
			defer a.Close()
			if debug {
				a.cfg.Platform.Headless = false
			}
			if a.cfg.Platform.Kind != "twitter" {
				return &config.ConfigurationError{Field: "platform.kind", Reason: "login only applies to twitter"}
			}

			sessions, err := newSessionProvider(a.cfg, a.secrets)
			if err != nil {
				return err
			}
			loginCtx, cancel := context.WithTimeout(ctx, a.cfg.Platform.LoginTimeout)
			defer cancel()
			creds, err := sessions.Credentials(loginCtx)
			if err != nil {
				return err
			}

			printCredentials(creds)
			return nil
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "show the browser during login")
	return cmd
}

func printCredentials(creds session.Credentials) {
	fmt.Println(color.GreenString("Logged in."))
	fmt.Printf("ACCESS_TOKEN=%s\n", creds.Token)
	fmt.Printf("ACCESS_TOKEN_SECRET=%s\n", creds.Masked())
}
