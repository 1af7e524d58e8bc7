// Command postwatch-replay runs a platform extractor over a saved HTML page
// and prints the resulting envelope. It needs no browser, which makes it the
// quickest way to check selectors against a captured page.
//
// Usage:
//
//	postwatch-replay <platform> <file.html|-> --url <landed url>
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/use-agent/postwatch/htmlpage"
	"github.com/use-agent/postwatch/platform"
	"github.com/use-agent/postwatch/readiness"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type replayOptions struct {
	landedURL string
	timeout   time.Duration
	timezone  string
	now       string
	verbose   bool
}

func newRootCmd(stdin io.Reader, stdout io.Writer) *cobra.Command {
	opts := &replayOptions{}
	cmd := &cobra.Command{
		Use:   "postwatch-replay <platform> <file.html|->",
		Short: "Extract post fields from a saved page without a browser",
		Long: `postwatch-replay parses a captured page, runs the platform's readiness
probes and field reads against it, and prints the envelope the service
would return for that page.

Examples:
  postwatch-replay xhs note.html --url https://www.xiaohongshu.com/explore/6911a4c3
  curl -s https://example.com/saved.html | postwatch-replay douyin - --url https://www.douyin.com/video/1`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), stdin, stdout, args[0], args[1], opts)
		},
	}

	cmd.Flags().StringVar(&opts.landedURL, "url", "", "URL the page was captured from (required)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 2*time.Second, "readiness timeout")
	cmd.Flags().StringVar(&opts.timezone, "timezone", "Asia/Shanghai", "zone publish times are read in")
	cmd.Flags().StringVar(&opts.now, "now", "", `reference time for relative dates, "2006-01-02 15:04:05" (default: current time)`)
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log probe activity to stderr")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func runReplay(ctx context.Context, stdin io.Reader, stdout io.Writer, name, path string, opts *replayOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	level := slog.LevelError
	if opts.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	loc, err := time.LoadLocation(opts.timezone)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", opts.timezone, err)
	}
	now := time.Now
	if opts.now != "" {
		t, err := time.ParseInLocation("2006-01-02 15:04:05", opts.now, loc)
		if err != nil {
			return fmt.Errorf("--now: %w", err)
		}
		now = func() time.Time { return t }
	}

	html, err := readSource(stdin, path)
	if err != nil {
		return err
	}
	pg, err := htmlpage.New(opts.landedURL, string(html))
	if err != nil {
		return err
	}

	registry, err := platform.NewRegistry(&platform.Runner{
		Poller:   readiness.Poller{Interval: 50 * time.Millisecond, Timeout: opts.timeout},
		Location: loc,
		Now:      func() time.Time { return now().In(loc) },
	})
	if err != nil {
		return err
	}
	ex, ok := registry.Get(name)
	if !ok {
		return fmt.Errorf("unknown platform %q (known: %v)", name, registry.Names())
	}

	env := ex.Extract(ctx, pg, opts.landedURL, false)

	enc := json.NewEncoder(stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}

func readSource(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("page file %s does not exist", path)
	}
	return b, err
}
