package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kayz/deepsearch/internal/chat"
	"github.com/kayz/deepsearch/internal/completion"
	"github.com/kayz/deepsearch/internal/logger"
	"github.com/kayz/deepsearch/internal/webui"
	"github.com/spf13/cobra"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the deepsearch HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	session, err := chat.NewSession(cmd.Context(), a.store)
	if err != nil {
		return fmt.Errorf("open chat session: %w", err)
	}

	if a.cfg.Completion.APIKey == "" {
		logger.Warn("No completion API key configured; requests need the nebula-api-key header or a key saved in settings")
	}

	port := a.cfg.Server.Port
	if servePort != 0 {
		port = servePort
	}

	server := webui.NewServer(webui.Options{
		Search:      a.aggregator,
		Proxy:       completion.NewProxy(a.client),
		Assistant:   a.assistant,
		Store:       a.store,
		Session:     session,
		APIKey:      a.cfg.Completion.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateBurst:   a.cfg.Server.RateBurst,
		SearchStats: a.aggregator.Stats,
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("deepsearch listening on http://127.0.0.1:%d (search: %s, model: %s)", port, a.aggregator.EngineName(), a.client.Model())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-sigCh:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("Shutting down")
	return httpServer.Shutdown(ctx)
}
