package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hamchapman/mockingjay"
	"github.com/hamchapman/mockingjay/internal/config"
	"github.com/hamchapman/mockingjay/internal/sse"
	"github.com/hamchapman/mockingjay/journal"
	"github.com/hamchapman/mockingjay/stubfile"
	"github.com/spf13/afero"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const version = "0.1.0"

// env is everything a command needs from the outside world.
type env struct {
	cfg    config.Config
	fs     afero.Fs
	logger *zap.Logger
	stdout io.Writer
}

var errUsage = errors.New("missing argument")

var (
	replayFlags = []cli.Flag{
		cli.StringFlag{
			Name:  "method, X",
			Value: http.MethodGet,
			Usage: "HTTP method of the replayed request",
		},
		cli.StringFlag{
			Name:  "url, u",
			Usage: "URL of the replayed request",
		},
		cli.StringSliceFlag{
			Name:  "header, H",
			Usage: "request header as 'Key: Value', may be repeated",
		},
		cli.BoolFlag{
			Name:  "sse",
			Usage: "parse the response body as Server-Sent Events",
		},
		cli.DurationFlag{
			Name:  "timeout",
			Value: 30 * time.Second,
			Usage: "give up if the response has not completed after this long",
		},
	}

	journalFlags = []cli.Flag{
		cli.BoolFlag{
			Name:  "json",
			Usage: "print one JSON object per entry",
		},
	}
)

func newApp(e env) *cli.App {
	app := cli.NewApp()
	app.Name = "mockingjay"
	app.HelpName = "mockingjay"
	app.Usage = "check and replay HTTP stub files"
	app.UsageText = "mockingjay <command> [arguments...]"
	app.Version = version
	app.Writer = e.stdout
	app.Commands = []cli.Command{
		{
			Name:      "validate",
			Aliases:   []string{"v"},
			Usage:     "load stub files and report how many stubs each registers",
			ArgsUsage: "FILE...",
			Action:    e.validate,
		},
		{
			Name:      "replay",
			Aliases:   []string{"r"},
			Usage:     "send one request through the stubs and print every chunk",
			ArgsUsage: "FILE",
			Flags:     replayFlags,
			Action:    e.replay,
		},
		{
			Name:      "journal",
			Aliases:   []string{"j"},
			Usage:     "list the requests recorded in a journal",
			ArgsUsage: "[FILE]",
			Flags:     journalFlags,
			Action:    e.journal,
		},
	}
	return app
}

func (e env) validate(ctx *cli.Context) error {
	paths := []string(ctx.Args())
	if len(paths) == 0 {
		return fmt.Errorf("validate: %w: FILE", errUsage)
	}

	counts := make([]int, len(paths))

	var g errgroup.Group
	for i, path := range paths {
		g.Go(func() error {
			f, err := stubfile.Load(e.fs, path)
			if err != nil {
				return err
			}

			reg := mockingjay.NewRegistry(mockingjay.WithRegistryLogger(e.logger))
			if _, err := f.Register(reg); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			counts[i] = reg.Len()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, path := range paths {
		fmt.Fprintf(e.stdout, "%s: %d stubs\n", path, counts[i])
	}
	return nil
}

func (e env) replay(ctx *cli.Context) error {
	path := ctx.Args().First()
	if path == "" {
		return fmt.Errorf("replay: %w: FILE", errUsage)
	}
	url := ctx.String("url")
	if url == "" {
		return fmt.Errorf("replay: %w: --url", errUsage)
	}

	f, err := stubfile.Load(e.fs, path)
	if err != nil {
		return err
	}

	reg := mockingjay.NewRegistry(mockingjay.WithRegistryLogger(e.logger))
	if _, err := f.Register(reg); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	j, err := e.cfg.OpenJournal()
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	client := mockingjay.NewClient(reg,
		mockingjay.WithLogger(e.logger),
		mockingjay.WithJournal(j),
	)

	reqCtx, cancel := context.WithTimeout(context.Background(), ctx.Duration("timeout"))
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, ctx.String("method"), url, nil)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	for _, h := range ctx.StringSlice("header") {
		k, v, ok := strings.Cut(h, ":")
		if !ok {
			return fmt.Errorf("replay: malformed header %q", h)
		}
		req.Header.Add(strings.TrimSpace(k), strings.TrimSpace(v))
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	defer resp.Body.Close()

	fmt.Fprintf(e.stdout, "%s\n", resp.Status)

	elapsed := func() time.Duration {
		return time.Since(start).Round(time.Millisecond)
	}

	if ctx.Bool("sse") {
		return e.printEvents(resp.Body, elapsed)
	}
	return e.printChunks(resp.Body, elapsed)
}

func (e env) printChunks(body io.Reader, elapsed func() time.Duration) error {
	buf := make([]byte, 1<<20)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			fmt.Fprintf(e.stdout, "%8s %q\n", elapsed(), buf[:n])
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintf(e.stdout, "%8s complete\n", elapsed())
			return nil
		}
		if err != nil {
			return fmt.Errorf("replay: read body: %w", err)
		}
	}
}

func (e env) printEvents(body io.Reader, elapsed func() time.Duration) error {
	p := sse.NewParser(body)
	for {
		ev, err := p.Next()
		if errors.Is(err, io.EOF) {
			fmt.Fprintf(e.stdout, "%8s complete\n", elapsed())
			return nil
		}
		if err != nil {
			return fmt.Errorf("replay: read events: %w", err)
		}
		fmt.Fprintf(e.stdout, "%8s %s %q\n", elapsed(), ev.Type, ev.Data)
	}
}

// journalEntry is the JSON form of a journal entry.
type journalEntry struct {
	ID      string    `json:"id"`
	Time    time.Time `json:"time"`
	Method  string    `json:"method"`
	URL     string    `json:"url"`
	Matched bool      `json:"matched"`
	StubID  string    `json:"stubId,omitempty"`
}

func (e env) journal(ctx *cli.Context) error {
	path := ctx.Args().First()
	if path == "" {
		path = e.cfg.Journal
	}
	if path == "" {
		return fmt.Errorf("journal: %w: FILE (or set MOCKINGJAY_JOURNAL)", errUsage)
	}

	j, err := journal.NewBboltJournal(path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	entries, err := j.Entries()
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}

	enc := json.NewEncoder(e.stdout)
	for _, entry := range entries {
		if ctx.Bool("json") {
			je := journalEntry{
				ID:      entry.ID.String(),
				Time:    entry.Time,
				Method:  entry.Method,
				URL:     entry.URL,
				Matched: entry.Matched,
			}
			if entry.Matched {
				je.StubID = entry.StubID.String()
			}
			if err := enc.Encode(je); err != nil {
				return err
			}
			continue
		}

		status := "unmatched"
		if entry.Matched {
			status = "stub " + entry.StubID.String()
		}
		fmt.Fprintf(e.stdout, "%s %s %s %s\n",
			entry.Time.Format(time.RFC3339), entry.Method, entry.URL, status)
	}

	if len(entries) == 0 {
		fmt.Fprintln(e.stdout, "no requests recorded")
	}
	return nil
}
