package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/sitegrab/config"
	"github.com/use-agent/sitegrab/history"
	"github.com/use-agent/sitegrab/orchestrator"
	"github.com/use-agent/sitegrab/saver"
	"github.com/use-agent/sitegrab/session"
	"github.com/use-agent/sitegrab/webhook"
)

var version = "0.1.0"

func main() {
	cfg, err := config.Load(version)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// stdout carries the MCP protocol, so logs go to stderr.
	initLogger(cfg.Log, os.Stderr)

	collab := orchestrator.NewHTTPCollaborator(cfg.Service.URL, orchestrator.HTTPOptions{
		Timeout:   cfg.Service.Timeout,
		MaxBytes:  cfg.Service.MaxArchiveBytes,
		UserAgent: cfg.Service.UserAgent,
	})

	store := history.New(cfg.History.MaxEntries, cfg.History.TTL)

	sess := &session.Session{
		Orch:    orchestrator.New(collab, orchestrator.WithLogger(slog.Default())),
		History: store,
		Preview: cfg.Output.Preview,
	}
	if cfg.Webhook.URL != "" {
		sess.Notifier = webhook.New(cfg.Webhook.URL, cfg.Webhook.Secret, cfg.Service.UserAgent)
	}

	s := server.NewMCPServer(
		"sitegrab",
		version,
		server.WithToolCapabilities(false),
	)

	archiveSiteTool := mcp.NewTool("archive_site",
		mcp.WithDescription("Download a website (its HTML page with stylesheets, scripts, images and fonts) as a zip archive via the scraping service, save it locally, and summarise its contents."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The http or https URL of the page to archive"),
		),
		mcp.WithString("output_dir",
			mcp.Description("Directory to save the archive in (default: SITEGRAB_OUTPUT_DIR or the working directory)"),
		),
		mcp.WithBoolean("preview",
			mcp.Description("Summarise the archive contents: title, excerpt, asset counts and missing assets (default: true)"),
		),
	)
	s.AddTool(archiveSiteTool, handleArchiveSite(sess, cfg.Output))

	serveErr := server.ServeStdio(s)

	sess.Orch.Revoke()
	if sess.Notifier != nil {
		sess.Notifier.Wait()
	}
	store.Close()

	if serveErr != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", serveErr)
		os.Exit(1)
	}
}

// initLogger configures slog based on the LogConfig, writing to w.
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

func handleArchiveSite(sess *session.Session, out config.OutputConfig) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}
		dir := request.GetString("output_dir", out.Dir)
		preview := request.GetBool("preview", out.Preview)

		res := sess.SubmitWith(ctx, url, preview)
		if !res.Outcome.Succeeded() {
			f := res.Outcome.Failure
			return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", f.Kind, f.UserMessage())), nil
		}

		var saved *saver.Result
		err = sess.Orch.HandOffHandle(res.Outcome.Download.Handle, func(h *orchestrator.Handle) error {
			r, err := saver.Save(dir, h)
			saved = r
			return err
		})
		if errors.Is(err, orchestrator.ErrNoArchive) {
			return mcp.NewToolResultError("the archive was superseded by a newer request before it could be saved"), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to save archive: %v", err)), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Saved: %s\nSize: %d bytes\nSource: %s\n", saved.Path, saved.BytesWritten, res.URL)
		if res.ContentChanged {
			b.WriteString("Content changed since the previous archive of this URL.\n")
		}
		if res.LayoutChanged {
			b.WriteString("Page layout changed since the previous archive of this URL.\n")
		}
		if res.Manifest != nil {
			b.WriteString("\n")
			b.WriteString(session.Describe(res.Manifest))
			if idx := res.Manifest.Index; idx != nil && idx.Markdown != "" {
				b.WriteString("\n---\n")
				b.WriteString(idx.Markdown)
			}
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}
