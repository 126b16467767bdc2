// Package main provides the vidfeed CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"gopkg.in/yaml.v3"

	"github.com/gauthierbraillon/vidfeed/internal/config"
	"github.com/gauthierbraillon/vidfeed/internal/display"
	"github.com/gauthierbraillon/vidfeed/internal/feed"
	"github.com/gauthierbraillon/vidfeed/internal/graph"
	"github.com/gauthierbraillon/vidfeed/internal/resolver"
	"github.com/gauthierbraillon/vidfeed/internal/server"
	"github.com/gauthierbraillon/vidfeed/internal/walker"
	"github.com/gauthierbraillon/vidfeed/pkg/browser"
	"github.com/gauthierbraillon/vidfeed/pkg/oauth"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

// accessTokenEnv skips interactive sign-in, for scripted runs and tests.
const accessTokenEnv = "VIDFEED_ACCESS_TOKEN"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveVersion prefers the ldflags version and falls back to the module
// version recorded by go install.
func resolveVersion(ldflags string, info *debug.BuildInfo) string {
	if ldflags != "dev" {
		return ldflags
	}
	if info == nil || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "dev"
	}
	return info.Main.Version
}

func currentVersion() string {
	info, _ := debug.ReadBuildInfo()
	return resolveVersion(version, info)
}

// app carries what every command needs once configuration is loaded.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
}

type rootFlags struct {
	configPath string
	envFile    string
	logLevel   string
}

// newRootCmd creates the root command for vidfeed CLI.
func newRootCmd() *cobra.Command {
	var flags rootFlags

	rootCmd := &cobra.Command{
		Use:          "vidfeed",
		Short:        "Publish OneDrive home videos as yearly podcast feeds",
		Long:         "Vidfeed walks the Videos folder of your OneDrive and writes one RSS feed per year, with share links and thumbnails for every video.",
		Version:      currentVersion(),
		SilenceUsage: true,
	}

	rootCmd.SetVersionTemplate("vidfeed version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to the YAML config file (default "+config.DefaultFile+")")
	rootCmd.PersistentFlags().StringVar(&flags.envFile, "env-file", "", "path to a .env file (default "+config.DefaultDotEnv+")")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override logging.level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(newGenerateCmd(&flags))
	rootCmd.AddCommand(newTokenCmd(&flags))
	rootCmd.AddCommand(newEventsCmd(&flags))
	rootCmd.AddCommand(newServeCmd(&flags))
	rootCmd.AddCommand(newConfigCmd(&flags))

	return rootCmd
}

func (f *rootFlags) load(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(f.configPath, f.envFile)
	if err != nil {
		return nil, err
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	return &app{cfg: cfg, logger: setupLogger(cfg.Logging, cmd.ErrOrStderr())}, nil
}

func setupLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// tokenSource signs the user in with the device code flow, printing the
// verification page and code to out.
func (a *app) tokenSource(ctx context.Context, out io.Writer) (oauth2.TokenSource, error) {
	if tok := os.Getenv(accessTokenEnv); tok != "" {
		a.logger.Debug().Msg("using access token from environment")
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tok, TokenType: "Bearer"}), nil
	}

	oc := oauth.MicrosoftOAuthConfig(a.cfg.App.ID, a.cfg.App.Tenant, a.cfg.App.Scopes)
	flow := oauth.NewFlow(oc, oauth.WithPrompt(func(uri, code string) {
		fmt.Fprintf(out, "To sign in, open %s and enter the code %s\n", uri, code)
		if err := browser.Open(uri); err != nil {
			a.logger.Debug().Err(err).Msg("could not open browser")
		}
	}))

	token, err := flow.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	return flow.TokenSource(ctx, token), nil
}

func (a *app) graphClient(tokens oauth2.TokenSource) *graph.Client {
	return graph.NewClient(tokens,
		graph.WithBaseURL(a.cfg.Graph.BaseURL),
		graph.WithTimeout(a.cfg.Graph.RequestTimeout),
		graph.WithRateLimit(a.cfg.Graph.RequestsPerSecond),
		graph.WithChildrenCap(a.cfg.Graph.ChildrenCap),
		graph.WithLogger(a.logger.With().Str("component", "graph").Logger()),
	)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newGenerateCmd creates the generate subcommand.
func newGenerateCmd(flags *rootFlags) *cobra.Command {
	var years []string
	var outDir string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write one RSS feed per year from the OneDrive Videos folder",
		Long: "Generate walks Videos/<YYYY>-* folders on OneDrive and writes <YYYY>.rss for each year.\n" +
			"Every video gets an anonymous share link and a thumbnail. Existing feeds are overwritten.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("year") {
				a.cfg.Output.Years = years
			}
			if outDir != "" {
				a.cfg.Output.Dir = outDir
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			out := cmd.OutOrStdout()
			tokens, err := a.tokenSource(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			client := a.graphClient(tokens)
			formatter := display.NewTerminalFormatter()

			user, err := client.Me(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch user: %w", err)
			}
			fmt.Fprint(out, formatter.FormatWelcome(user))

			policy := a.cfg.Retry.Policy()
			links := resolver.NewLinkResolver(client, policy, a.logger.With().Str("component", "links").Logger())
			thumbs := resolver.NewThumbnailResolver(client, policy, a.cfg.Feed.FallbackThumbnail, a.logger.With().Str("component", "thumbnails").Logger())
			feeds := feed.NewRegistry(a.cfg.Output.Dir, a.cfg.Feed)

			w := walker.New(client, links, thumbs, feeds, a.logger, walker.WithRetry(policy))
			rep, runErr := w.Run(ctx, walker.MatchYears(a.cfg.Output.Years...))
			if rep != nil {
				fmt.Fprint(out, formatter.FormatReport(rep))
			}
			if runErr != nil {
				if errors.Is(runErr, graph.ErrUnauthorized) {
					return fmt.Errorf("credentials were rejected, feeds written so far are complete documents: %w", runErr)
				}
				return runErr
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&years, "year", "y", nil, "only generate these years (repeatable; default every year)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "directory for the .rss files (default output.dir)")

	return cmd
}

// newTokenCmd creates the token subcommand.
func newTokenCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Sign in and print the access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.load(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			tokens, err := a.tokenSource(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			token, err := tokens.Token()
			if err != nil {
				return fmt.Errorf("%w: %v", oauth.ErrAuthentication, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Access token: %s\n", token.AccessToken)
			return nil
		},
	}
}

// newEventsCmd creates the events subcommand.
func newEventsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "List calendar events, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.load(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			tokens, err := a.tokenSource(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			events, err := a.graphClient(tokens).ListEvents(ctx)
			if err != nil {
				return fmt.Errorf("failed to list events: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), display.NewTerminalFormatter().FormatEvents(events))
			return nil
		},
	}
}

// newServeCmd creates the serve subcommand.
func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr, dir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve generated feeds over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.load(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				a.cfg.Serve.Addr = addr
			}
			if dir != "" {
				a.cfg.Output.Dir = dir
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			srv := server.New(a.cfg.Serve.Addr, a.cfg.Output.Dir, currentVersion(), a.logger)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				return srv.Shutdown(context.Background())
			}
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (default serve.addr)")
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "directory holding the .rss files (default output.dir)")

	return cmd
}

// newConfigCmd creates the config subcommand.
func newConfigCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.load(cmd)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(a.cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}
