package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AnyUserName/imgfit/internal/quality"
	"github.com/AnyUserName/imgfit/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	serveAddr        string
	serveOutDir      string
	serveMaxUploadMB int
	servePreset      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the resize pipeline over HTTP",
	Long: `Starts an HTTP server:

  POST /api/v1/images?percent=-50&target_kb=200&filename=out.jpg&save=true
       multipart field "file"; responds with the exported image
  GET  /healthz

With --out-dir, requests may set save=true to also write the export
there (base filename only).`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringVar(&serveOutDir, "out-dir", "", "directory for save=true exports (empty disables)")
	serveCmd.Flags().IntVar(&serveMaxUploadMB, "max-upload-mb", 32, "maximum upload size in MB")
	serveCmd.Flags().StringVarP(&servePreset, "preset", "p", "default", "preset supplying quality bounds")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	p := presets.Get(servePreset)
	svc := server.NewService(server.Config{
		OutDir:         serveOutDir,
		MaxUploadBytes: int64(serveMaxUploadMB) << 20,
		Bounds:         quality.Bounds{Low: p.QualityMin, High: p.QualityMax},
		DefaultQuality: p.DefaultQuality,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           server.NewRouter(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", serveAddr), zap.String("preset", p.Name))
		fmt.Fprintf(os.Stderr, "[imgfit] listening on %s\n", serveAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
