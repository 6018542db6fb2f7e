package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-console-session/auth"
	"github.com/jrsteele09/go-console-session/internal/config"
	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
	"github.com/jrsteele09/go-console-session/internal/logging"
	"github.com/jrsteele09/go-console-session/rbac"
	"github.com/jrsteele09/go-console-session/transport"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

const passwordEnvVar = "CONSOLE_PASSWORD"

type options struct {
	configPath  string
	baseURL     string
	storage     string
	storageFile string
	email       string
	password    string
	checks      []string
	serverCheck bool
	get         string
	logout      bool
	quiet       bool
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Error().Err(err).Msg("console failed")
		os.Exit(1)
	}
}

func run(args []string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logging.Setup(cfg.GetLogLevel(), cfg.GetEnv())
	if !opts.quiet {
		displayAppname(cfg.GetAppName())
	}

	storage, closeStorage, err := auth.OpenStorage(cfg, log.Logger)
	if err != nil {
		return err
	}
	defer closeStorage()

	svc, err := auth.New(cfg, storage,
		auth.WithRequestLogging(cfg.GetEnv() == "DEV"),
		auth.WithRedirector(transport.RedirectFunc(func(reason apperrors.Reason) {
			log.Warn().Str("reason", string(reason)).Msg("login required")
		})),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return session(ctx, svc, opts)
}

func parseFlags(args []string) (options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("console", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "YAML config file (overrides environment)")
	flagSet.StringVar(&opts.baseURL, "base-url", "", "backend base URL")
	flagSet.StringVar(&opts.storage, "storage", "", "session storage: memory, file or redis")
	flagSet.StringVar(&opts.storageFile, "session-file", "", "session file when --storage=file")
	flagSet.StringVarP(&opts.email, "email", "e", "", "sign in with this email")
	flagSet.StringVarP(&opts.password, "password", "p", "", "password (default $"+passwordEnvVar+")")
	flagSet.StringSliceVar(&opts.checks, "check", nil, "resource:action permission to evaluate (repeatable)")
	flagSet.BoolVar(&opts.serverCheck, "server-check", false, "also ask the backend for each --check")
	flagSet.StringVar(&opts.get, "get", "", "GET this backend path with the session and print the status")
	flagSet.BoolVar(&opts.logout, "logout", false, "end the session when done")
	flagSet.BoolVarP(&opts.quiet, "quiet", "q", false, "skip the banner")

	if err := flagSet.Parse(args); err != nil {
		return opts, err
	}
	if flagSet.NArg() > 0 {
		return opts, fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}
	if opts.password == "" {
		opts.password = os.Getenv(passwordEnvVar)
	}
	return opts, nil
}

func loadConfig(opts options) (config.Config, error) {
	values, err := config.LoadValues(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.baseURL != "" {
		values.BaseURL = opts.baseURL
	}
	if opts.storage != "" {
		values.Storage = opts.storage
	}
	if opts.storageFile != "" {
		values.StorageFile = opts.storageFile
	}
	return config.FromValues(values)
}

func session(ctx context.Context, svc *auth.Service, opts options) error {
	out := os.Stdout

	switch {
	case opts.email != "":
		if opts.password == "" {
			return fmt.Errorf("--password or $%s is required with --email", passwordEnvVar)
		}
		if _, err := svc.Login(ctx, opts.email, opts.password); err != nil {
			return fmt.Errorf("login: %w", err)
		}
	case svc.IsAuthenticated():
		if _, err := svc.Cache().FetchMyPermissions(ctx); err != nil {
			log.Warn().Err(err).Msg("using permissions from the stored token")
		}
	default:
		return errors.New("not signed in; pass --email")
	}

	printSession(out, svc)

	for _, check := range opts.checks {
		req, ok := rbac.ParsePermission(check)
		if !ok {
			return fmt.Errorf("--check %q is not resource:action", check)
		}
		line := fmt.Sprintf("%-32s local=%t", check, svc.Cache().HasPermission(req.Resource, req.Action))
		if opts.serverCheck {
			allowed, err := svc.CheckPermission(ctx, req.Resource, req.Action)
			if err != nil {
				return fmt.Errorf("check %s: %w", check, err)
			}
			line += fmt.Sprintf(" server=%t", allowed)
		}
		fmt.Fprintln(out, line)
	}

	if opts.get != "" {
		if err := get(ctx, out, svc, opts.get); err != nil {
			return err
		}
	}

	if opts.logout {
		svc.Logout(ctx)
		fmt.Fprintln(out, "signed out")
	}
	return nil
}

func printSession(out io.Writer, svc *auth.Service) {
	snap := svc.Cache().Snapshot()
	fmt.Fprintf(out, "user:        %s\n", svc.CurrentUser().DisplayName())
	fmt.Fprintf(out, "role:        %s\n", snap.Role)
	if snap.SuperAdmin {
		fmt.Fprintln(out, "permissions: all (super admin)")
		return
	}
	fmt.Fprintf(out, "permissions: %s\n", strings.Join(snap.Permissions, ", "))
}

func get(ctx context.Context, out io.Writer, svc *auth.Service, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, svc.URL(path), nil)
	if err != nil {
		return err
	}
	resp, err := svc.HTTPClient().Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	n, _ := io.Copy(io.Discard, resp.Body)
	fmt.Fprintf(out, "GET %s: %s (%d bytes)\n", path, resp.Status, n)
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
