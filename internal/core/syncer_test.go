package core

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap"
)

// Mock implementations for testing

type mockDriveClient struct {
	files     []HistoryFile
	listErr   error
	downloads []string
}

func (m *mockDriveClient) ListHistoryFiles(_ context.Context) ([]HistoryFile, error) {
	return m.files, m.listErr
}

func (m *mockDriveClient) Download(_ context.Context, fileID, _ string) error {
	m.downloads = append(m.downloads, fileID)
	return nil
}

type mockParser struct {
	songs map[string][]Song
}

func (m *mockParser) ParseFile(path string) ([]Song, error) {
	for name, songs := range m.songs {
		if len(path) >= len(name) && path[len(path)-len(name):] == name {
			return songs, nil
		}
	}
	return nil, nil
}

type mockSpotifyClient struct {
	searchResults   map[string]string
	searchErrs      map[string]error
	playlists       []Playlist
	playlistTracks  map[string][]string
	addedTracks     map[string][]string
	trimmed         map[string]int
	createdPlaylist []string
	nextPlaylistID  int
}

func searchKey(artist, title string) string {
	return artist + "|" + title
}

func (m *mockSpotifyClient) SearchTrack(_ context.Context, artist, title string) (string, error) {
	key := searchKey(artist, title)
	if err, ok := m.searchErrs[key]; ok {
		return "", err
	}
	return m.searchResults[key], nil
}

func (m *mockSpotifyClient) ListPlaylists(_ context.Context) ([]Playlist, error) {
	return m.playlists, nil
}

func (m *mockSpotifyClient) CreatePlaylist(_ context.Context, name string) (*Playlist, error) {
	m.nextPlaylistID++
	p := Playlist{ID: fmt.Sprintf("pl-%d", m.nextPlaylistID), Name: name}
	m.playlists = append(m.playlists, p)
	m.createdPlaylist = append(m.createdPlaylist, name)
	return &p, nil
}

func (m *mockSpotifyClient) AddTracksToPlaylist(_ context.Context, playlistID string, uris []string) error {
	if m.addedTracks == nil {
		m.addedTracks = make(map[string][]string)
	}
	m.addedTracks[playlistID] = append(m.addedTracks[playlistID], uris...)
	return nil
}

func (m *mockSpotifyClient) TrimPlaylist(_ context.Context, playlistID string, limit int) error {
	if m.trimmed == nil {
		m.trimmed = make(map[string]int)
	}
	m.trimmed[playlistID] = limit
	return nil
}

func (m *mockSpotifyClient) GetPlaylistTracks(_ context.Context, playlistID string) ([]string, error) {
	return m.playlistTracks[playlistID], nil
}

type mockResultLogger struct {
	infos     []string
	outcomes  []*FileOutcome
	processed map[string]string
}

func (m *mockResultLogger) LogInfo(_ context.Context, message string) {
	m.infos = append(m.infos, message)
}

func (m *mockResultLogger) LogOutcome(_ context.Context, outcome *FileOutcome) {
	m.outcomes = append(m.outcomes, outcome)
	if m.processed == nil {
		m.processed = make(map[string]string)
	}
	m.processed[outcome.Filename] = outcome.LastMarker
}

func (m *mockResultLogger) LoadProcessedMap(_ context.Context) (map[string]string, error) {
	if m.processed == nil {
		return map[string]string{}, nil
	}
	return m.processed, nil
}

type mapDedupStore struct {
	uris map[string]bool
}

func (m *mapDedupStore) Has(uri string) bool { return m.uris[uri] }
func (m *mapDedupStore) Add(uri string)      { m.uris[uri] = true }
func (m *mapDedupStore) Load(uris []string) {
	m.uris = make(map[string]bool)
	for _, u := range uris {
		m.uris[u] = true
	}
}
func (m *mapDedupStore) Size() int { return len(m.uris) }
func (m *mapDedupStore) Clear()    { m.uris = make(map[string]bool) }

type mapTrackCache struct {
	entries map[string]string
	stored  map[string]string
}

func (m *mapTrackCache) Lookup(_ context.Context, artist, title string) (string, bool, error) {
	uri, ok := m.entries[searchKey(artist, title)]
	return uri, ok, nil
}

func (m *mapTrackCache) Store(_ context.Context, artist, title, uri string) error {
	if m.stored == nil {
		m.stored = make(map[string]string)
	}
	m.stored[searchKey(artist, title)] = uri
	return nil
}

func (m *mapTrackCache) Close() error { return nil }

func newTestSyncer(drive *mockDriveClient, parser *mockParser, spotify *mockSpotifyClient, results *mockResultLogger) *Syncer {
	cfg := DefaultConfig()
	cfg.Spotify.RollingPlaylistID = "rolling"
	cfg.Spotify.PlaylistLimit = 100
	return NewSyncer(
		cfg,
		drive,
		parser,
		spotify,
		results,
		nil,
		&mapDedupStore{uris: make(map[string]bool)},
		nil,
		zap.NewNop(),
	)
}

func TestSyncer_FirstRunMixedResults(t *testing.T) {
	drive := &mockDriveClient{
		files: []HistoryFile{{ID: "f1", Name: "2024-06-01 History.m3u"}},
	}
	parser := &mockParser{
		songs: map[string][]Song{
			"2024-06-01 History.m3u": {
				{Artist: "A", Title: "T1", Marker: "m1"},
				{Artist: "B", Title: "T2", Marker: "m2"},
			},
		},
	}
	spotify := &mockSpotifyClient{
		searchResults: map[string]string{
			searchKey("A", "T1"): "spotify:track:aaa",
		},
	}
	results := &mockResultLogger{}

	syncer := newTestSyncer(drive, parser, spotify, results)

	summary, err := syncer.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if summary.FilesProcessed != 1 {
		t.Errorf("expected 1 processed file, got %d", summary.FilesProcessed)
	}
	if summary.Found != 1 || summary.Unfound != 1 {
		t.Errorf("expected 1 found and 1 unfound, got %d/%d", summary.Found, summary.Unfound)
	}

	if got := spotify.addedTracks["rolling"]; len(got) != 1 || got[0] != "spotify:track:aaa" {
		t.Errorf("rolling playlist got %v, want exactly the found URI", got)
	}
	if spotify.trimmed["rolling"] != 100 {
		t.Errorf("rolling playlist not trimmed to limit, got %v", spotify.trimmed)
	}

	if len(spotify.createdPlaylist) != 1 || spotify.createdPlaylist[0] != "2024-06-01 History Set" {
		t.Errorf("expected period playlist creation, got %v", spotify.createdPlaylist)
	}

	if len(results.outcomes) != 1 {
		t.Fatalf("expected 1 logged outcome, got %d", len(results.outcomes))
	}
	outcome := results.outcomes[0]
	if len(outcome.Added) != 1 || outcome.Added[0].Title != "T1" {
		t.Errorf("unexpected added rows: %v", outcome.Added)
	}
	if len(outcome.Unfound) != 1 || outcome.Unfound[0].Title != "T2" {
		t.Errorf("unexpected unfound rows: %v", outcome.Unfound)
	}
	if outcome.LastMarker != "m2" {
		t.Errorf("cursor should advance to the last record's marker, got %q", outcome.LastMarker)
	}
	if outcome.PlaylistID == "" {
		t.Error("outcome should carry the period playlist ID")
	}
}

func TestSyncer_SkipsAlreadyProcessed(t *testing.T) {
	drive := &mockDriveClient{
		files: []HistoryFile{{ID: "f1", Name: "2024-06-01 History.m3u"}},
	}
	parser := &mockParser{
		songs: map[string][]Song{
			"2024-06-01 History.m3u": {
				{Artist: "A", Title: "T1", Marker: "m1"},
				{Artist: "B", Title: "T2", Marker: "m2"},
				{Artist: "C", Title: "T3", Marker: "m3"},
			},
		},
	}
	spotify := &mockSpotifyClient{
		searchResults: map[string]string{
			searchKey("C", "T3"): "spotify:track:ccc",
		},
	}
	results := &mockResultLogger{
		processed: map[string]string{"2024-06-01 History.m3u": "m2"},
	}

	syncer := newTestSyncer(drive, parser, spotify, results)

	summary, err := syncer.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if summary.SongsProcessed != 1 {
		t.Errorf("expected only the new record to be processed, got %d", summary.SongsProcessed)
	}
	if results.processed["2024-06-01 History.m3u"] != "m3" {
		t.Errorf("cursor not advanced, got %q", results.processed["2024-06-01 History.m3u"])
	}
}

func TestSyncer_FullyCaughtUpLeavesCursorAlone(t *testing.T) {
	drive := &mockDriveClient{
		files: []HistoryFile{{ID: "f1", Name: "2024-06-01 History.m3u"}},
	}
	parser := &mockParser{
		songs: map[string][]Song{
			"2024-06-01 History.m3u": {
				{Artist: "A", Title: "T1", Marker: "m1"},
			},
		},
	}
	spotify := &mockSpotifyClient{}
	results := &mockResultLogger{
		processed: map[string]string{"2024-06-01 History.m3u": "m1"},
	}

	syncer := newTestSyncer(drive, parser, spotify, results)

	summary, err := syncer.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if summary.SongsProcessed != 0 {
		t.Errorf("expected no records processed, got %d", summary.SongsProcessed)
	}
	if len(results.outcomes) != 0 {
		t.Errorf("no outcome should be logged for a caught-up file, got %d", len(results.outcomes))
	}
	if len(spotify.addedTracks) != 0 {
		t.Errorf("no playlist updates expected, got %v", spotify.addedTracks)
	}
}

func TestSyncer_SearchErrorDegradesToUnfound(t *testing.T) {
	drive := &mockDriveClient{
		files: []HistoryFile{{ID: "f1", Name: "2024-06-01 History.m3u"}},
	}
	parser := &mockParser{
		songs: map[string][]Song{
			"2024-06-01 History.m3u": {
				{Artist: "A", Title: "T1", Marker: "m1"},
				{Artist: "B", Title: "T2", Marker: "m2"},
			},
		},
	}
	spotify := &mockSpotifyClient{
		searchResults: map[string]string{
			searchKey("B", "T2"): "spotify:track:bbb",
		},
		searchErrs: map[string]error{
			searchKey("A", "T1"): fmt.Errorf("rate limited"),
		},
	}
	results := &mockResultLogger{}

	syncer := newTestSyncer(drive, parser, spotify, results)

	summary, err := syncer.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if summary.Found != 1 || summary.Unfound != 1 {
		t.Errorf("search error should degrade single record, got found=%d unfound=%d",
			summary.Found, summary.Unfound)
	}
	if results.processed["2024-06-01 History.m3u"] != "m2" {
		t.Error("cursor should still advance past the failed record")
	}
}

func TestSyncer_PeriodPlaylistDedup(t *testing.T) {
	drive := &mockDriveClient{
		files: []HistoryFile{{ID: "f1", Name: "2024-06-01 History.m3u"}},
	}
	parser := &mockParser{
		songs: map[string][]Song{
			"2024-06-01 History.m3u": {
				{Artist: "A", Title: "T1", Marker: "m1"},
				{Artist: "B", Title: "T2", Marker: "m2"},
			},
		},
	}
	spotify := &mockSpotifyClient{
		searchResults: map[string]string{
			searchKey("A", "T1"): "spotify:track:aaa",
			searchKey("B", "T2"): "spotify:track:bbb",
		},
		playlists: []Playlist{
			{ID: "existing", Name: "2024-06-01 History Set"},
		},
		playlistTracks: map[string][]string{
			"existing": {"spotify:track:aaa"},
		},
	}
	results := &mockResultLogger{}

	syncer := newTestSyncer(drive, parser, spotify, results)

	if _, err := syncer.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if len(spotify.createdPlaylist) != 0 {
		t.Errorf("existing playlist should be reused, created %v", spotify.createdPlaylist)
	}
	got := spotify.addedTracks["existing"]
	if len(got) != 1 || got[0] != "spotify:track:bbb" {
		t.Errorf("only the new URI should be appended to the period playlist, got %v", got)
	}
}

func TestSyncer_SummaryCountsLookupsAndPlaylistSize(t *testing.T) {
	drive := &mockDriveClient{
		files: []HistoryFile{{ID: "f1", Name: "2024-06-01 History.m3u"}},
	}
	parser := &mockParser{
		songs: map[string][]Song{
			"2024-06-01 History.m3u": {
				{Artist: "A", Title: "T1", Marker: "m1"},
				{Artist: "B", Title: "T2", Marker: "m2"},
			},
		},
	}
	spotify := &mockSpotifyClient{
		searchResults: map[string]string{
			searchKey("B", "T2"): "spotify:track:bbb",
		},
		playlistTracks: map[string][]string{
			"rolling": {"spotify:track:aaa", "spotify:track:bbb"},
		},
	}
	results := &mockResultLogger{}
	cache := &mapTrackCache{
		entries: map[string]string{
			searchKey("A", "T1"): "spotify:track:aaa",
		},
	}

	cfg := DefaultConfig()
	cfg.Spotify.RollingPlaylistID = "rolling"
	cfg.Spotify.PlaylistLimit = 100
	syncer := NewSyncer(
		cfg,
		drive,
		parser,
		spotify,
		results,
		cache,
		&mapDedupStore{uris: make(map[string]bool)},
		nil,
		zap.NewNop(),
	)

	summary, err := syncer.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if summary.CacheHits != 1 {
		t.Errorf("expected 1 cache hit, got %d", summary.CacheHits)
	}
	if summary.ApiSearches != 1 {
		t.Errorf("expected 1 API search, got %d", summary.ApiSearches)
	}
	if summary.Found != 2 {
		t.Errorf("expected both records found, got %d", summary.Found)
	}
	if summary.RollingSize != 2 {
		t.Errorf("expected rolling size 2 after trim, got %d", summary.RollingSize)
	}
	if cache.stored[searchKey("B", "T2")] != "spotify:track:bbb" {
		t.Error("API result should be written back to the cache")
	}
}

func TestSyncer_RollingSizeUnknownWithoutUpdate(t *testing.T) {
	drive := &mockDriveClient{}
	results := &mockResultLogger{}

	syncer := newTestSyncer(drive, &mockParser{}, &mockSpotifyClient{}, results)

	summary, err := syncer.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if summary.RollingSize != -1 {
		t.Errorf("rolling size should stay -1 when nothing was added, got %d", summary.RollingSize)
	}
}

func TestSyncer_NoFiles(t *testing.T) {
	drive := &mockDriveClient{}
	results := &mockResultLogger{}

	syncer := newTestSyncer(drive, &mockParser{}, &mockSpotifyClient{}, results)

	summary, err := syncer.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if summary.FilesSeen != 0 {
		t.Errorf("expected no files, got %d", summary.FilesSeen)
	}

	found := false
	for _, msg := range results.infos {
		if msg == "No .m3u files found" {
			found = true
		}
	}
	if !found {
		t.Error("missing no-files info message")
	}
}
