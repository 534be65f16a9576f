package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/deixis/sift/internal/auth"
	"github.com/deixis/sift/internal/config"
	"github.com/deixis/sift/internal/discovery"
	siftmcp "github.com/deixis/sift/internal/mcp"
	"github.com/deixis/sift/internal/report"
)

func newMCPCmd(g *globals) *cobra.Command {
	var (
		instructions bool
		httpAddr     string
	)
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server",
		Long: `Start the MCP server on stdio, or on streamable HTTP with --http.
When server.jwt_secret is configured, HTTP requests must carry a bearer
token; create one with "sift mcp token".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if instructions {
				fmt.Fprint(cmd.OutOrStdout(), siftmcp.Instructions)
				return nil
			}
			return g.serve(cmd.Context(), httpAddr)
		},
	}
	cmd.Flags().BoolVar(&instructions, "instructions", false, "print model instructions and exit")
	cmd.Flags().StringVar(&httpAddr, "http", "", "start HTTP server on address (e.g. :9090)")
	cmd.AddCommand(newTokenCmd(g))
	return cmd
}

func (g *globals) serve(ctx context.Context, httpAddr string) error {
	// The stdout queue kind must not write into the stdio transport.
	e, cfg, closeEngine, err := g.newEngine(ctx, os.Stderr)
	if err != nil {
		return err
	}
	defer closeEngine()

	store := report.NewLRUStore(5, report.NewDiskStore(cfg.RunsDir()))
	loader := func(ctx context.Context, workspace string) (*discovery.Engine, func() error, error) {
		loaded, err := config.Load(workspace)
		if err != nil {
			return nil, nil, fmt.Errorf("loading config: %w", err)
		}
		return discovery.FromConfig(ctx, loaded.Config, discovery.Setup{Stdout: os.Stderr, Logger: g.logger})
	}

	server, closer := siftmcp.NewServer(e, store,
		siftmcp.WithEngineLoader(loader),
		siftmcp.WithLogger(g.logger),
	)
	defer closer.Close()

	if httpAddr != "" {
		return g.serveHTTP(ctx, server, httpAddr, cfg.JWTSecret())
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func (g *globals) serveHTTP(ctx context.Context, server *mcpsdk.Server, addr, secret string) error {
	var handler http.Handler = mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)
	handler = withLogging(g.logger, handler)
	if secret != "" {
		handler = auth.Middleware([]byte(secret), g.logger, handler)
	} else {
		g.logger.Warn("server.jwt_secret is not set, HTTP requests are not authenticated")
	}

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	g.logger.Info("listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// withLogging logs each request once it has been served, with the token
// subject when the request was authenticated.
func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", fmt.Sprintf("%dms", time.Since(start).Milliseconds()),
		}
		if sub, ok := auth.Subject(r.Context()); ok {
			attrs = append(attrs, "subject", sub)
		}
		logger.Info("http request", attrs...)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps server-sent event streams working through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func newTokenCmd(g *globals) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the HTTP MCP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			secret := cfg.JWTSecret()
			if secret == "" {
				return errors.New("server.jwt_secret is not configured")
			}
			token, err := auth.Issue([]byte(secret), subject, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "sift", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
