package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/photo-map/internal/config"
	"github.com/kozaktomas/photo-map/internal/constants"
	"github.com/kozaktomas/photo-map/internal/logger"
	"github.com/kozaktomas/photo-map/internal/mapsync"
	"github.com/kozaktomas/photo-map/internal/normalize"
	"github.com/kozaktomas/photo-map/internal/watch"
	"github.com/kozaktomas/photo-map/internal/web"
	"github.com/kozaktomas/photo-map/internal/web/handlers"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Photo Map web server.
Photos uploaded through the API are ingested in the background and the map
follows the collection over a server-sent event stream. With --watch, image
files dropped into a directory are ingested as well.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().String("watch", "", "Directory to watch for new photos (defaults to WATCH_DIR)")
}

// applyServeFlags lets explicitly set flags win over environment variables.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("port") {
		cfg.Web.Port = mustGetInt(cmd, "port")
	}
	if cmd.Flags().Changed("host") {
		cfg.Web.Host = mustGetString(cmd, "host")
	}
	if dir := mustGetString(cmd, "watch"); dir != "" {
		cfg.WatchDir = dir
	}
}

// startWatcher ingests files dropped into dir as single-file batches.
func startWatcher(ctx context.Context, dir string, a *app, log zerolog.Logger) error {
	w, err := watch.New(dir, constants.WatchSettleDelay, func(path string) {
		f, err := normalize.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("skipping dropped file")
			return
		}
		a.pipeline.Start(ctx, []normalize.File{f})
	}, log)
	if err != nil {
		return err
	}
	go w.Run(ctx)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyServeFlags(cmd, cfg)
	log := logger.New(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	stream := handlers.NewMapStream()
	sync := mapsync.New(a.store, stream, mapsync.Options{
		FocusZoom:   cfg.Map.FocusZoom,
		FlyDuration: constants.FlyDuration,
	})
	sync.Start()
	defer sync.Stop()

	if cfg.WatchDir != "" {
		if err := startWatcher(ctx, cfg.WatchDir, a, log); err != nil {
			return fmt.Errorf("starting watcher: %w", err)
		}
	}

	server := web.NewServer(cfg, web.Deps{
		BaseCtx:  ctx,
		Store:    a.store,
		Ingester: a.pipeline,
		Locator:  a.enricher,
		Previews: a.previews,
		Markers:  sync,
		Stream:   stream,
		Oracle:   a.locator.Name(),
		Gatherer: a.registry,
	}, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("error during shutdown")
		}
		cancel()
	}()

	fmt.Printf("Starting Photo Map on http://%s:%d (oracle: %s)\n", cfg.Web.Host, cfg.Web.Port, a.locator.Name())
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	cancel()

	usage := a.locator.GetUsage()
	log.Info().
		Int("input_tokens", usage.InputTokens).
		Int("output_tokens", usage.OutputTokens).
		Float64("cost_usd", usage.TotalCost).
		Msg("geocoder usage")
	return nil
}
