// Package cli contains the blogportal commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	goBlog "github.com/MrEthical07/goBlog"
	"github.com/MrEthical07/goBlog/api"
	"github.com/MrEthical07/goBlog/internal/config"
	"github.com/MrEthical07/goBlog/internal/output"
)

// BuildInfo is stamped at link time by cmd/blogportal.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Options wires the command tree to its environment.
type Options struct {
	In    io.Reader
	Out   io.Writer
	Err   io.Writer
	Build BuildInfo
}

type app struct {
	opts Options

	cfgFile   string
	envFile   string
	colorFlag string
	verbose   bool
	quiet     bool

	cfg     *config.Config
	logger  *slog.Logger
	printer *output.Printer
	portal  *goBlog.Portal
	text    *api.Sanitizer
}

// NewRootCmd returns the blogportal command tree.
func NewRootCmd(opts Options) *cobra.Command {
	return newApp(opts).rootCmd()
}

func newApp(opts Options) *app {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	if opts.Build.Version == "" {
		opts.Build.Version = "dev"
	}
	return &app{opts: opts, text: api.NewSanitizer()}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "blogportal",
		Short: "Read, search and discuss blog posts from the terminal",
		Long: `blogportal is a terminal client for the blog API.

It keeps one viewer session between runs, checks the stored token before
showing protected content, and sends you to login when the token is missing
or expired.

Example usage:
  blogportal login --email me@example.com   # Sign in (password read from stdin)
  blogportal latest                         # Your feed (requires login)
  blogportal search goroutines              # Search posts
  blogportal blog <id>                      # Read a post with comments
  blogportal status                         # Show what the session guard decides`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	root.SetIn(a.opts.In)
	root.SetOut(a.opts.Out)
	root.SetErr(a.opts.Err)

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is .blogportal.yaml)")
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading BLOGPORTAL_* variables")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	pf.BoolVarP(&a.quiet, "quiet", "q", false, "suppress non-error output")
	pf.StringVar(&a.colorFlag, "color", "auto", "color output: auto, always, or never")
	root.SetFlagErrorFunc(usageError)

	root.AddCommand(
		a.loginCmd(),
		a.signupCmd(),
		a.logoutCmd(),
		a.statusCmd(),
		a.latestCmd(),
		a.searchCmd(),
		a.categoriesCmd(),
		a.subcategoriesCmd(),
		a.browseCmd(),
		a.blogCmd(),
		a.commentCmd(),
		a.rateCmd(),
		a.versionCmd(),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context, opts Options, args []string) int {
	a := newApp(opts)
	root := a.rootCmd()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	// PersistentPostRunE is skipped when a command fails.
	if cerr := a.close(); err == nil {
		err = cerr
	}
	if err == nil {
		return output.ExitSuccess
	}

	cliErr := classify(err)
	printer := a.printer
	if printer == nil {
		printer = output.NewPrinterWithOptions(output.PrinterOptions{
			Out:       a.opts.Out,
			Err:       a.opts.Err,
			ColorMode: output.ColorNever,
		})
	}
	printer.FormatError(cliErr)
	return cliErr.ExitCode
}

// initConfig reads in config file and ENV variables if set.
func (a *app) initConfig() error {
	mode, err := output.ParseColorMode(a.colorFlag)
	if err != nil {
		return &output.CLIError{
			Summary:  err.Error(),
			ExitCode: output.ExitUsageError,
		}
	}

	a.cfg, err = config.Load(config.Options{ConfigFile: a.cfgFile, EnvFile: a.envFile})
	if err != nil {
		return &output.CLIError{
			Summary:    "could not load configuration",
			Detail:     err.Error(),
			Suggestion: "Check .blogportal.yaml and BLOGPORTAL_* environment variables",
			ExitCode:   output.ExitConfigError,
			Err:        err,
		}
	}

	level := slog.LevelInfo
	_ = level.UnmarshalText([]byte(a.cfg.Logging.Level))
	if a.verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if a.cfg.Logging.Format == "json" {
		a.logger = slog.New(slog.NewJSONHandler(a.opts.Err, handlerOpts))
	} else {
		a.logger = slog.New(slog.NewTextHandler(a.opts.Err, handlerOpts))
	}

	a.printer = output.NewPrinterWithOptions(output.PrinterOptions{
		Out:          a.opts.Out,
		Err:          a.opts.Err,
		ColorMode:    mode,
		ConfigColors: a.cfg.Output.Colors,
		Quiet:        a.quiet,
	})

	a.logger.Debug("configuration loaded",
		slog.String("api", a.cfg.API.BaseURL),
		slog.String("storage", a.cfg.Storage.Backend),
		slog.String("expired_policy", a.cfg.Guard.Expired),
	)
	return nil
}

// open builds the portal and loads the persisted session. Commands that talk
// to the API call it; version and help do not.
func (a *app) open(ctx context.Context) (*goBlog.Portal, error) {
	if a.portal != nil {
		return a.portal, nil
	}
	pc, err := a.cfg.Portal()
	if err != nil {
		return nil, err
	}
	for _, w := range pc.Lint() {
		a.logger.Warn("config: "+w.Message, slog.String("code", w.Code))
	}

	b := goBlog.New().WithConfig(pc).WithLogger(a.logger)
	if pc.Audit.Enabled {
		b = b.WithAuditSink(goBlog.NewSlogSink(a.logger))
	}
	p, err := b.Build()
	if err != nil {
		return nil, err
	}
	if err := p.Bootstrap(ctx); err != nil {
		a.logger.Warn("session: persisted storage partly unreadable", slog.String("error", err.Error()))
	}
	a.portal = p
	return p, nil
}

func (a *app) close() error {
	if a.portal == nil {
		return nil
	}
	err := a.portal.Close()
	a.portal = nil
	return err
}

func classify(err error) *output.CLIError {
	var cliErr *output.CLIError
	if errors.As(err, &cliErr) {
		return cliErr
	}
	switch {
	case errors.Is(err, goBlog.ErrLoginRequired):
		return &output.CLIError{
			Summary:    "login required",
			Detail:     "no valid session token was found",
			Suggestion: "Run 'blogportal login --email <address>'",
			ExitCode:   output.ExitAuthError,
			Err:        err,
		}
	case errors.Is(err, goBlog.ErrInvalidCredentials):
		return &output.CLIError{
			Summary:    "sign-in rejected",
			Detail:     err.Error(),
			Suggestion: "Check your email and password",
			ExitCode:   output.ExitAuthError,
			Err:        err,
		}
	case errors.Is(err, goBlog.ErrInvalidConfig):
		return &output.CLIError{
			Summary:    "invalid configuration",
			Detail:     err.Error(),
			Suggestion: "Run 'blogportal --help' for the BLOGPORTAL_* settings",
			ExitCode:   output.ExitConfigError,
			Err:        err,
		}
	case errors.Is(err, goBlog.ErrInvalidRating), errors.Is(err, goBlog.ErrEmptyComment):
		return &output.CLIError{Summary: err.Error(), ExitCode: output.ExitUsageError, Err: err}
	case errors.Is(err, goBlog.ErrStorageUnavailable):
		return &output.CLIError{
			Summary:    "session storage unavailable",
			Detail:     err.Error(),
			Suggestion: "Check storage.backend and its path or Redis address",
			ExitCode:   output.ExitGeneral,
			Err:        err,
		}
	}

	var statusErr *api.StatusError
	if errors.As(err, &statusErr) {
		return &output.CLIError{
			Summary:  fmt.Sprintf("blog API returned %d", statusErr.StatusCode),
			Detail:   err.Error(),
			ExitCode: output.ExitAPIError,
			Err:      err,
		}
	}
	if strings.HasPrefix(err.Error(), "unknown command") {
		return &output.CLIError{
			Summary:    err.Error(),
			Suggestion: "Run 'blogportal --help' to list commands",
			ExitCode:   output.ExitUsageError,
			Err:        err,
		}
	}
	return &output.CLIError{Summary: err.Error(), ExitCode: output.ExitGeneral, Err: err}
}

func usageError(cmd *cobra.Command, err error) error {
	return &output.CLIError{
		Summary:    err.Error(),
		Suggestion: fmt.Sprintf("Run '%s --help'", cmd.CommandPath()),
		ExitCode:   output.ExitUsageError,
		Err:        err,
	}
}

// exactArgs is cobra.ExactArgs reporting a usage exit code.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError(cmd, err)
		}
		return nil
	}
}
