package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/caffeineduck/hotlua/network"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a development hotfix peer",
	Long: `Start a WebSocket peer for local development. Every hotfix package a
client sends is echoed back to it; core packages are logged and dropped.

Endpoints:
  GET /hotfix   WebSocket upgrade
  GET /health   Health check`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8765, "Port to listen on")
	rootCmd.AddCommand(serveCmd)
}

// echoServer answers hotfix packages on each connection.
type echoServer struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader
	echoed   atomic.Int64
}

func newEchoServer(logger *zap.Logger) *echoServer {
	return &echoServer{logger: logger}
}

func (s *echoServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/hotfix", s.serveHotfix)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

func (s *echoServer) serveHotfix(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", zap.Error(err))
		return
	}
	ws := network.NewWebSocket(conn)
	defer ws.Close()

	peer := r.RemoteAddr
	s.logger.Info("peer connected", zap.String("peer", peer))
	err = ws.Run(r.Context(), func(frame []byte) {
		p, err := network.Decode(frame)
		if err != nil {
			s.logger.Warn("dropping malformed frame", zap.String("peer", peer), zap.Error(err))
			return
		}
		if !p.IsHotfixPackage {
			s.logger.Debug("ignoring core package", zap.Int32("msg_id", p.MsgID))
			return
		}
		if err := ws.Send(frame); err != nil {
			s.logger.Warn("echo failed", zap.Int32("msg_id", p.MsgID), zap.Error(err))
			return
		}
		s.echoed.Add(1)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("peer stopped", zap.String("peer", peer), zap.Error(err))
	}
	s.logger.Info("peer disconnected", zap.String("peer", peer))
}

func runServe(cmd *cobra.Command, args []string) error {
	port, _ := cmd.Flags().GetInt("port")
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := newEchoServer(logger)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	fmt.Fprintf(cmd.ErrOrStderr(), "hotlua peer listening on ws://localhost:%d/hotfix\n", port)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped", zap.Int64("echoed", s.echoed.Load()))
	return nil
}
