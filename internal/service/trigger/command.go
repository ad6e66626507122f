package trigger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/covid-projections/covid-data-public/internal/config"
	"github.com/covid-projections/covid-data-public/internal/github"
	"github.com/covid-projections/covid-data-public/internal/logger"
	"github.com/covid-projections/covid-data-public/internal/version"
)

// ErrMissingToken is returned when no GitHub token can be found.
var ErrMissingToken = errors.New("GitHub token is not set")

// tokenHelp explains how to obtain a token; %s is the variable name.
const tokenHelp = `create a personal access token with the "repo" scope at ` +
	`https://github.com/settings/tokens and export it as %s`

// Options are inputs accepted by the trigger entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// EventType overrides the configured event type.
	EventType string
	// DryRun prints the request instead of sending it.
	DryRun bool
	// Out receives user-facing messages, os.Stdout when nil.
	Out io.Writer
	// LookupEnv reads the process environment, os.LookupEnv when nil.
	LookupEnv func(key string) (string, bool)
	// HTTPClient overrides the HTTP client used for the dispatch call.
	HTTPClient *http.Client
}

// Run fires one repository_dispatch event.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "trigger-update")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	return Dispatch(ctx, &cfg.Dispatch, opts)
}

// Dispatch resolves the token and sends the event described by settings.
func Dispatch(ctx context.Context, settings *config.Dispatch, opts *Options) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	token, err := resolveToken(ctx, settings, opts.LookupEnv)
	if err != nil {
		return err
	}

	eventType := settings.EventType
	if opts.EventType != "" {
		eventType = strings.TrimSpace(opts.EventType)
	}

	client, err := github.NewClient(
		settings.URL,
		token,
		github.WithTimeout(settings.Timeout),
		github.WithHTTPClient(opts.HTTPClient),
		github.WithUserAgent(version.UserAgent()),
	)
	if err != nil {
		return err
	}

	payload := &github.DispatchRequest{
		EventType:     eventType,
		ClientPayload: settings.ClientPayload,
	}

	if opts.DryRun {
		return printDryRun(ctx, out, client, payload)
	}

	logger.InfoKV(ctx, "Sending repository dispatch", "url", settings.URL, "event_type", eventType)

	resp, err := client.Dispatch(ctx, payload)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Repository dispatch answered", "status", resp.Status)

	if err = github.CheckStatus(resp); err != nil {
		if settings.ShouldRequireSuccess() {
			return err
		}

		logger.WarnKV(ctx, "Ignoring dispatch failure", "error", err)
	}

	_, _ = fmt.Fprintf(out, "Update triggered. Check %s for progress.\n", settings.MonitorURL)

	return nil
}

// resolveToken reads the token from the environment, then from the dotenv
// file when one is configured.
func resolveToken(ctx context.Context, settings *config.Dispatch, lookupEnv func(string) (string, bool)) (string, error) {
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}

	if token, ok := lookupEnv(settings.TokenEnv); ok && strings.TrimSpace(token) != "" {
		return strings.TrimSpace(token), nil
	}

	missing := fmt.Errorf("%w: %s", ErrMissingToken, fmt.Sprintf(tokenHelp, settings.TokenEnv))

	if settings.EnvFile == "" {
		return "", missing
	}

	values, err := godotenv.Read(settings.EnvFile)
	switch {
	case err == nil:
		if token := strings.TrimSpace(values[settings.TokenEnv]); token != "" {
			logger.DebugKV(ctx, "Token read from env file", "path", settings.EnvFile)
			return token, nil
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		logger.WarnKV(ctx, "Unable to read env file", "path", settings.EnvFile, "error", err)
	}

	return "", missing
}

// printDryRun writes the request that would be sent, with the token redacted.
func printDryRun(ctx context.Context, out io.Writer, client *github.Client, payload *github.DispatchRequest) error {
	req, err := client.NewRequest(ctx, payload)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "token <redacted>")

	dump, err := httputil.DumpRequestOut(req, true)
	if err != nil {
		return fmt.Errorf("dump dispatch request: %w", err)
	}

	_, _ = fmt.Fprintf(out, "Dry run, not sending:\n%s\n", dump)

	return nil
}
