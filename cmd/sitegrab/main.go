// Command sitegrab asks the scraping service to archive a website and saves
// the resulting zip.
//
//	sitegrab [-o dir] [-preview] <url>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/sitegrab/config"
	"github.com/use-agent/sitegrab/models"
	"github.com/use-agent/sitegrab/orchestrator"
	"github.com/use-agent/sitegrab/saver"
	"github.com/use-agent/sitegrab/session"
	"github.com/use-agent/sitegrab/webhook"
)

var version = "0.1.0"

// Exit codes.
const (
	exitOK      = 0
	exitFailed  = 1
	exitUsage   = 2
	exitInvalid = 3
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load(version)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	fs := flag.NewFlagSet("sitegrab", flag.ContinueOnError)
	fs.SetOutput(stderr)
	outDir := fs.String("o", cfg.Output.Dir, "directory to save the archive in")
	preview := fs.Bool("preview", cfg.Output.Preview, "print a summary of the archive contents")
	verbose := fs.Bool("v", false, "log progress to stderr")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: sitegrab [-o dir] [-preview] [-v] <url>\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitUsage
	}

	logCfg := cfg.Log
	if *verbose {
		logCfg.Level = "debug"
	} else if logCfg.Level == "info" {
		logCfg.Level = "warn"
	}
	initLogger(logCfg, stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collab := orchestrator.NewHTTPCollaborator(cfg.Service.URL, orchestrator.HTTPOptions{
		Timeout:   cfg.Service.Timeout,
		MaxBytes:  cfg.Service.MaxArchiveBytes,
		UserAgent: cfg.Service.UserAgent,
	})
	orch := orchestrator.New(collab,
		orchestrator.WithLogger(slog.Default()),
		orchestrator.OnChange(func(s orchestrator.Snapshot) {
			if s.State == models.StateSubmitting {
				fmt.Fprintf(stderr, "Archiving %s ...\n", fs.Arg(0))
			}
		}),
	)

	sess := &session.Session{Orch: orch, Preview: *preview}
	if cfg.Webhook.URL != "" {
		sess.Notifier = webhook.New(cfg.Webhook.URL, cfg.Webhook.Secret, cfg.Service.UserAgent)
		defer sess.Notifier.Wait()
	}

	res := sess.Submit(ctx, fs.Arg(0))
	out := res.Outcome
	if !out.Succeeded() {
		fmt.Fprintf(stderr, "sitegrab: %s\n", out.Failure.UserMessage())
		if out.Failure.Kind == models.KindValidation {
			return exitInvalid
		}
		return exitFailed
	}

	var saved *saver.Result
	err = orch.HandOffHandle(out.Download.Handle, func(h *orchestrator.Handle) error {
		r, err := saver.Save(*outDir, h)
		saved = r
		return err
	})
	if err != nil {
		if errors.Is(err, orchestrator.ErrNoArchive) {
			fmt.Fprintln(stderr, "sitegrab: the archive was released before it could be saved")
		} else {
			fmt.Fprintf(stderr, "sitegrab: save failed: %v\n", err)
		}
		return exitFailed
	}

	fmt.Fprintf(stdout, "Saved %s (%d bytes) in %s\n", saved.Path, saved.BytesWritten, res.Duration.Round(time.Millisecond))
	if res.Manifest != nil {
		fmt.Fprintln(stdout)
		fmt.Fprint(stdout, session.Describe(res.Manifest))
	}
	return exitOK
}

// initLogger configures slog based on the LogConfig. Logs go to w so that
// stdout stays reserved for results.
func initLogger(cfg config.LogConfig, w io.Writer) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}
