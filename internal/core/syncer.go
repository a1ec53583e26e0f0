package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// RunSummary aggregates one sync run across all files.
type RunSummary struct {
	FilesSeen      int
	FilesProcessed int
	SongsProcessed int
	Found          int
	Unfound        int
	Errors         int
	CacheHits      int
	ApiSearches    int
	RollingSize    int // rolling playlist size after the last trim, -1 if unknown
}

// Syncer drives one synchronization run: list history files, diff each
// against its processed cursor, resolve the new entries on Spotify,
// update the playlists, and record the outcome in the spreadsheet.
// Files are handled one at a time in name order; records within a file
// in file order.
type Syncer struct {
	config  *Config
	drive   DriveClient
	parser  PlaylistParser
	spotify SpotifyClient
	results ResultLogger
	cache   TrackCache
	dedup   DedupStore
	gate    SearchGate
	logger  *zap.Logger
}

func NewSyncer(
	config *Config,
	drive DriveClient,
	parser PlaylistParser,
	spotify SpotifyClient,
	results ResultLogger,
	cache TrackCache,
	dedup DedupStore,
	gate SearchGate,
	logger *zap.Logger,
) *Syncer {
	return &Syncer{
		config:  config,
		drive:   drive,
		parser:  parser,
		spotify: spotify,
		results: results,
		cache:   cache,
		dedup:   dedup,
		gate:    gate,
		logger:  logger,
	}
}

// Run performs one full sync pass. A failure to list files or load the
// processed map aborts the run; everything past that point is isolated
// per file so one bad file cannot block the rest.
func (s *Syncer) Run(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{RollingSize: -1}

	s.results.LogInfo(ctx, "Starting radio history sync")

	files, err := s.drive.ListHistoryFiles(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to list history files: %w", err)
	}
	summary.FilesSeen = len(files)

	if len(files) == 0 {
		s.logger.Info("No history files found")
		s.results.LogInfo(ctx, "No .m3u files found")
		return summary, nil
	}

	processed, err := s.results.LoadProcessedMap(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to load processed map: %w", err)
	}

	for _, file := range files {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		if err := s.processFile(ctx, file, processed, summary); err != nil {
			summary.Errors++
			s.logger.Error("Failed to process file",
				zap.String("file", file.Name),
				zap.Error(err))
			s.results.LogInfo(ctx, fmt.Sprintf("Error processing %s: %v", file.Name, err))
			continue
		}
		summary.FilesProcessed++
	}

	s.results.LogInfo(ctx, "Sync complete")
	s.logger.Info("Sync run finished",
		zap.Int("filesSeen", summary.FilesSeen),
		zap.Int("filesProcessed", summary.FilesProcessed),
		zap.Int("found", summary.Found),
		zap.Int("unfound", summary.Unfound))

	return summary, nil
}

func (s *Syncer) processFile(ctx context.Context, file HistoryFile, processed map[string]string, summary *RunSummary) error {
	s.results.LogInfo(ctx, "Processing file: "+file.Name)

	songs, err := s.fetchAndParse(ctx, file)
	if err != nil {
		return err
	}

	if dups := DuplicateMarkers(songs); len(dups) > 0 {
		s.logger.Warn("Duplicate markers in history file, cursor may anchor early",
			zap.String("file", file.Name),
			zap.Int("duplicates", len(dups)))
	}

	lastMarker := processed[file.Name]
	newSongs := NewSongs(songs, lastMarker)
	if skipped := len(songs) - len(newSongs); skipped > 0 {
		s.logger.Debug("Skipping already-processed songs",
			zap.String("file", file.Name),
			zap.Int("skipped", skipped))
	}
	if len(newSongs) == 0 {
		s.logger.Debug("No new songs", zap.String("file", file.Name))
		return nil
	}

	resolutions := s.resolveAll(ctx, newSongs, summary)

	var uris []string
	outcome := &FileOutcome{
		Filename:   file.Name,
		Date:       DateFromFilename(file.Name),
		LastMarker: newSongs[len(newSongs)-1].Marker,
		Processed:  len(newSongs),
	}
	for _, r := range resolutions {
		if r.Found() {
			uris = append(uris, r.URI)
			outcome.Added = append(outcome.Added, r.Song)
		} else {
			outcome.Unfound = append(outcome.Unfound, r.Song)
		}
	}
	summary.SongsProcessed += len(newSongs)
	summary.Found += len(outcome.Added)
	summary.Unfound += len(outcome.Unfound)

	s.updateRollingPlaylist(ctx, uris, summary)
	outcome.PlaylistID = s.updatePeriodPlaylist(ctx, file.Name, uris)

	s.results.LogOutcome(ctx, outcome)
	processed[file.Name] = outcome.LastMarker

	return nil
}

func (s *Syncer) fetchAndParse(ctx context.Context, file HistoryFile) ([]Song, error) {
	workDir := s.config.App.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	dest := filepath.Join(workDir, filepath.Base(file.Name))

	if err := s.drive.Download(ctx, file.ID, dest); err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer func() {
		if err := os.Remove(dest); err != nil {
			s.logger.Warn("Failed to remove temp file",
				zap.String("path", dest),
				zap.Error(err))
		}
	}()

	songs, err := s.parser.ParseFile(dest)
	if err != nil {
		return nil, fmt.Errorf("parse failed: %w", err)
	}
	return songs, nil
}

// resolveAll looks up every new song in order. Lookups are independent:
// an error on one record degrades that record to unfound and the batch
// continues.
func (s *Syncer) resolveAll(ctx context.Context, songs []Song, summary *RunSummary) []Resolution {
	resolutions := make([]Resolution, 0, len(songs))
	for _, song := range songs {
		uri := s.resolve(ctx, song, summary)
		resolutions = append(resolutions, Resolution{Song: song, URI: uri})
	}
	return resolutions
}

func (s *Syncer) resolve(ctx context.Context, song Song, summary *RunSummary) string {
	if s.cache != nil {
		uri, hit, err := s.cache.Lookup(ctx, song.Artist, song.Title)
		if err != nil {
			s.logger.Warn("Cache lookup failed",
				zap.String("artist", song.Artist),
				zap.String("title", song.Title),
				zap.Error(err))
		} else if hit {
			summary.CacheHits++
			return uri
		}
	}

	if s.gate != nil {
		if err := s.gate.Wait(ctx, "spotify-search"); err != nil {
			s.logger.Warn("Search gate interrupted", zap.Error(err))
			return ""
		}
	}

	summary.ApiSearches++
	uri, err := s.spotify.SearchTrack(ctx, song.Artist, song.Title)
	if err != nil {
		s.logger.Warn("Track search failed, treating as unfound",
			zap.String("artist", song.Artist),
			zap.String("title", song.Title),
			zap.Error(err))
		return ""
	}

	s.logger.Debug("Searched for track",
		zap.String("artist", song.Artist),
		zap.String("title", song.Title),
		zap.String("uri", uri))

	if s.cache != nil {
		if err := s.cache.Store(ctx, song.Artist, song.Title, uri); err != nil {
			s.logger.Warn("Cache store failed", zap.Error(err))
		}
	}
	return uri
}

func (s *Syncer) updateRollingPlaylist(ctx context.Context, uris []string, summary *RunSummary) {
	if len(uris) == 0 || s.config.Spotify.RollingPlaylistID == "" {
		return
	}

	playlistID := s.config.Spotify.RollingPlaylistID
	if err := s.spotify.AddTracksToPlaylist(ctx, playlistID, uris); err != nil {
		s.logger.Error("Failed to update rolling playlist", zap.Error(err))
		return
	}
	if err := s.spotify.TrimPlaylist(ctx, playlistID, s.config.Spotify.PlaylistLimit); err != nil {
		s.logger.Error("Failed to trim rolling playlist", zap.Error(err))
		return
	}
	tracks, err := s.spotify.GetPlaylistTracks(ctx, playlistID)
	if err != nil {
		s.logger.Warn("Failed to read rolling playlist size", zap.Error(err))
		return
	}
	summary.RollingSize = len(tracks)
}

// updatePeriodPlaylist appends the found tracks to the per-period
// playlist derived from the filename, creating it when missing. Tracks
// already in the playlist, and repeats within the batch, are dropped
// while preserving first-occurrence order. Returns the playlist ID, or
// an empty string when the update could not be completed.
func (s *Syncer) updatePeriodPlaylist(ctx context.Context, filename string, uris []string) string {
	if len(uris) == 0 {
		return ""
	}

	name := PeriodPlaylistName(filename)

	playlist, err := s.findPlaylistByName(ctx, name)
	if err != nil {
		s.logger.Error("Failed to look up period playlist",
			zap.String("name", name),
			zap.Error(err))
		return ""
	}

	s.dedup.Clear()
	if playlist == nil {
		playlist, err = s.spotify.CreatePlaylist(ctx, name)
		if err != nil {
			s.logger.Error("Failed to create period playlist",
				zap.String("name", name),
				zap.Error(err))
			return ""
		}
		s.logger.Info("Created period playlist",
			zap.String("name", name),
			zap.String("playlistID", playlist.ID))
	} else {
		existing, err := s.spotify.GetPlaylistTracks(ctx, playlist.ID)
		if err != nil {
			s.logger.Warn("Failed to read period playlist tracks, skipping dedup against existing",
				zap.String("playlistID", playlist.ID),
				zap.Error(err))
		} else {
			s.dedup.Load(existing)
		}
	}

	var fresh []string
	for _, uri := range uris {
		if s.dedup.Has(uri) {
			continue
		}
		s.dedup.Add(uri)
		fresh = append(fresh, uri)
	}

	if len(fresh) == 0 {
		return playlist.ID
	}

	if err := s.spotify.AddTracksToPlaylist(ctx, playlist.ID, fresh); err != nil {
		s.logger.Error("Failed to add tracks to period playlist",
			zap.String("playlistID", playlist.ID),
			zap.Error(err))
		return playlist.ID
	}

	return playlist.ID
}

func (s *Syncer) findPlaylistByName(ctx context.Context, name string) (*Playlist, error) {
	playlists, err := s.spotify.ListPlaylists(ctx)
	if err != nil {
		return nil, err
	}
	for i := range playlists {
		if strings.EqualFold(playlists[i].Name, name) {
			return &playlists[i], nil
		}
	}
	return nil, nil
}
