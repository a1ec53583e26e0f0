// Package main provides the RadioSync CLI application entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/kaianolevine/spotify-playlist-generator-dev/internal/core"
	"github.com/kaianolevine/spotify-playlist-generator-dev/internal/drive"
	httpserver "github.com/kaianolevine/spotify-playlist-generator-dev/internal/http"
	"github.com/kaianolevine/spotify-playlist-generator-dev/internal/sheets"
	"github.com/kaianolevine/spotify-playlist-generator-dev/internal/spotify"
	"github.com/kaianolevine/spotify-playlist-generator-dev/internal/store"
	"github.com/kaianolevine/spotify-playlist-generator-dev/internal/throttle"
	"github.com/kaianolevine/spotify-playlist-generator-dev/pkg/m3u"
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "radiosync",
	Short: "RadioSync - Radio Play History to Spotify",
	Long: `RadioSync watches a Google Drive folder of radio play-history files,
resolves newly played songs on Spotify, keeps a rolling playlist and
per-date history playlists up to date, and logs every outcome to a
Google Sheets spreadsheet.`,
	RunE: runSync,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a single sync pass and exit",
	RunE:  runSync,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run continuously, syncing on an interval with a metrics endpoint",
	RunE:  runServe,
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Run the Spotify OAuth flow and save the token",
	RunE:  runAuth,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("google-credentials-file", "", "Google service account credentials file")
	rootCmd.PersistentFlags().String("google-history-folder-id", "", "Drive folder ID holding history files")
	rootCmd.PersistentFlags().String("google-spreadsheet-id", "", "logging spreadsheet ID (located or created when empty)")
	rootCmd.PersistentFlags().String("google-spreadsheet-name", "", "logging spreadsheet name")
	rootCmd.PersistentFlags().String("spotify-client-id", "", "Spotify client ID")
	rootCmd.PersistentFlags().String("spotify-client-secret", "", "Spotify client secret")
	rootCmd.PersistentFlags().String("spotify-rolling-playlist-id", "", "rolling playlist ID")
	rootCmd.PersistentFlags().Int("spotify-playlist-limit", 0, "rolling playlist track limit")
	rootCmd.PersistentFlags().String("cache-path", "", "track resolution cache path")
	rootCmd.PersistentFlags().Int("server-port", 8080, "HTTP server port")
	rootCmd.PersistentFlags().Duration("sync-interval", 0, "interval between sync passes in serve mode")
	rootCmd.PersistentFlags().Int("search-per-minute", 0, "Spotify search rate limit per minute")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(syncCmd, serveCmd, authCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(".env")
		viper.SetConfigType("env")
	}

	viper.SetEnvPrefix("RADIOSYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}

	config = buildConfig()
	logger = buildLogger(config.Log.Level)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	if v := viper.GetString("google-credentials-file"); v != "" {
		cfg.Google.CredentialsFile = v
	}
	cfg.Google.HistoryFolderID = viper.GetString("google-history-folder-id")
	cfg.Google.SpreadsheetID = viper.GetString("google-spreadsheet-id")
	if v := viper.GetString("google-spreadsheet-name"); v != "" {
		cfg.Google.SpreadsheetName = v
	}

	cfg.Spotify.ClientID = viper.GetString("spotify-client-id")
	cfg.Spotify.ClientSecret = viper.GetString("spotify-client-secret")
	if v := viper.GetString("spotify-redirect-url"); v != "" {
		cfg.Spotify.RedirectURL = v
	}
	cfg.Spotify.RollingPlaylistID = viper.GetString("spotify-rolling-playlist-id")
	if v := viper.GetInt("spotify-playlist-limit"); v > 0 {
		cfg.Spotify.PlaylistLimit = v
	}
	if v := viper.GetString("spotify-token-path"); v != "" {
		cfg.Spotify.TokenPath = v
	}

	cfg.Store.CachePath = viper.GetString("cache-path")
	if v := viper.GetInt("dedup-capacity"); v > 0 {
		cfg.Store.DedupCapacity = v
	}

	if v := viper.GetString("server-host"); v != "" {
		cfg.Server.Host = v
	}
	cfg.Server.Port = viper.GetInt("server-port")

	cfg.Log.Level = viper.GetString("log-level")

	if v := viper.GetDuration("sync-interval"); v > 0 {
		cfg.App.SyncInterval = v
	}
	if v := viper.GetInt("search-per-minute"); v > 0 {
		cfg.App.SearchPerMinute = v
	}
	cfg.App.WorkDir = viper.GetString("work-dir")

	return cfg
}

func buildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func runSync(_ *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := validateConfig(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	syncer, cleanup, err := buildSyncer(ctx, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	summary, err := syncer.Run(ctx)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	logger.Info("Sync completed",
		zap.Int("filesSeen", summary.FilesSeen),
		zap.Int("filesProcessed", summary.FilesProcessed),
		zap.Int("songsProcessed", summary.SongsProcessed),
		zap.Int("found", summary.Found),
		zap.Int("unfound", summary.Unfound),
		zap.Int("errors", summary.Errors))

	return nil
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := validateConfig(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logger.Info("Starting RadioSync",
		zap.Duration("syncInterval", config.App.SyncInterval),
		zap.String("rollingPlaylist", config.Spotify.RollingPlaylistID))

	httpServer := httpserver.NewServer(&config.Server, logger.Named("http"))

	syncer, cleanup, err := buildSyncer(ctx, httpServer)
	if err != nil {
		return err
	}
	defer cleanup()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return httpServer.Start(gCtx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(config.App.SyncInterval)
		defer ticker.Stop()

		for {
			start := time.Now()
			summary, err := syncer.Run(gCtx)
			httpServer.RecordSyncDuration(time.Since(start))
			if err != nil {
				logger.Error("Sync pass failed", zap.Error(err))
				httpServer.RecordError("syncer", "run")
			} else {
				httpServer.RecordFiles("processed", summary.FilesProcessed)
				httpServer.RecordFiles("error", summary.Errors)
				httpServer.RecordTracks("found", summary.Found)
				httpServer.RecordTracks("unfound", summary.Unfound)
				httpServer.RecordSearches("cache", summary.CacheHits)
				httpServer.RecordSearches("api", summary.ApiSearches)
				if summary.RollingSize >= 0 {
					httpServer.SetPlaylistSize(summary.RollingSize)
				}
				httpServer.MarkSyncSuccess(time.Now())
				logger.Info("Sync pass completed",
					zap.Int("filesProcessed", summary.FilesProcessed),
					zap.Int("found", summary.Found),
					zap.Int("unfound", summary.Unfound))
			}

			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	logger.Info("RadioSync started successfully",
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	if err := g.Wait(); err != nil {
		logger.Error("RadioSync stopped with error", zap.Error(err))
		return err
	}

	logger.Info("RadioSync stopped gracefully")
	return nil
}

func runAuth(_ *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if config.Spotify.ClientID == "" || config.Spotify.ClientSecret == "" {
		return fmt.Errorf("spotify client ID and secret are required")
	}

	spotifyClient := spotify.NewClient(&config.Spotify, logger.Named("spotify"))
	return spotifyClient.StartOAuthFlow(ctx)
}

// buildSyncer wires the full pipeline: Drive listing, sheet logging,
// Spotify resolution with cache and rate limiting, and the syncer on
// top. The returned cleanup closes the cache and stops the gate. A nil
// recorder leaves sheet operation counting off.
func buildSyncer(ctx context.Context, recorder sheets.OpRecorder) (*core.Syncer, func(), error) {
	driveClient, err := drive.NewClient(ctx, config.Google.CredentialsFile,
		config.Google.HistoryFolderID, logger.Named("drive"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Drive client: %w", err)
	}

	sheetsClient, err := sheets.NewClient(ctx, config.Google.CredentialsFile,
		config.App.ReadyRetries, config.App.ReadyRetryDelay, logger.Named("sheets"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Sheets client: %w", err)
	}

	spreadsheetID, err := sheets.EnsureSpreadsheet(ctx, driveClient, sheetsClient,
		&config.Google, logger.Named("sheets"))
	if err != nil {
		return nil, nil, err
	}

	results := sheets.NewLogger(sheetsClient, spreadsheetID, logger.Named("results"))
	results.SetRecorder(recorder)

	spotifyClient := spotify.NewClient(&config.Spotify, logger.Named("spotify"))
	if err := spotifyClient.Authenticate(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to authenticate with Spotify: %w", err)
	}

	var cache core.TrackCache
	if config.Store.CachePath != "" {
		trackCache, err := store.NewTrackCache(config.Store.CachePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open track cache: %w", err)
		}
		cache = trackCache
	}

	dedup := store.NewDedupStore(config.Store.DedupCapacity, 0.001)
	gate := throttle.New(config.App.SearchPerMinute)

	syncer := core.NewSyncer(
		config,
		driveClient,
		m3u.NewParser(),
		spotifyClient,
		results,
		cache,
		dedup,
		gate,
		logger.Named("syncer"),
	)

	cleanup := func() {
		gate.Stop()
		if cache != nil {
			if err := cache.Close(); err != nil {
				logger.Warn("Failed to close track cache", zap.Error(err))
			}
		}
	}

	return syncer, cleanup, nil
}

func validateConfig() error {
	if config.Google.HistoryFolderID == "" {
		return fmt.Errorf("google history folder ID is required")
	}

	if config.Spotify.ClientID == "" {
		return fmt.Errorf("spotify client ID is required")
	}

	if config.Spotify.ClientSecret == "" {
		return fmt.Errorf("spotify client secret is required")
	}

	if config.Spotify.RollingPlaylistID == "" {
		return fmt.Errorf("spotify rolling playlist ID is required")
	}

	return nil
}
