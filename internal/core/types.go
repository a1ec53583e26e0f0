package core

import (
	"context"
)

// Song is one entry parsed from a history file. Marker is the verbatim
// source line the entry was extracted from and serves as the resumption
// cursor. Duplicate markers resolve to the first occurrence.
type Song struct {
	Artist string
	Title  string
	Marker string
}

// HistoryFile is a play-history file listed from the Drive folder.
type HistoryFile struct {
	ID   string
	Name string
}

type Playlist struct {
	ID         string
	Name       string
	TrackCount int
}

// Resolution is the outcome of looking up one Song on Spotify.
// An empty URI means the track was not found.
type Resolution struct {
	Song Song
	URI  string
}

func (r Resolution) Found() bool {
	return r.URI != ""
}

// FileOutcome aggregates everything the result logger needs to record
// about one processed file.
type FileOutcome struct {
	Filename   string
	Date       string
	PlaylistID string // per-period playlist, empty if none was touched
	LastMarker string // cursor value to persist for this file
	Processed  int    // number of new records handled this run
	Added      []Song
	Unfound    []Song
}

// PlaylistParser turns one downloaded history file into ordered Songs.
// An empty slice is a valid "no tracks" result.
type PlaylistParser interface {
	ParseFile(path string) ([]Song, error)
}

type DriveClient interface {
	ListHistoryFiles(ctx context.Context) ([]HistoryFile, error)
	Download(ctx context.Context, fileID, destPath string) error
}

// SpreadsheetLocator finds or creates the logging spreadsheet inside a
// Drive folder.
type SpreadsheetLocator interface {
	FindSpreadsheet(ctx context.Context, folderID, name string) (id string, ok bool, err error)
	CreateSpreadsheet(ctx context.Context, folderID, name string) (string, error)
}

// PlaylistSource is the single fixed capability for enumerating the
// user's playlists. Consumers must not type-assert for extra methods.
type PlaylistSource interface {
	ListPlaylists(ctx context.Context) ([]Playlist, error)
}

type SpotifyClient interface {
	PlaylistSource

	// SearchTrack returns the best-matching track URI for (artist, title),
	// or an empty string when nothing acceptable was found.
	SearchTrack(ctx context.Context, artist, title string) (string, error)
	AddTracksToPlaylist(ctx context.Context, playlistID string, uris []string) error
	TrimPlaylist(ctx context.Context, playlistID string, limit int) error
	CreatePlaylist(ctx context.Context, name string) (*Playlist, error)
	GetPlaylistTracks(ctx context.Context, playlistID string) ([]string, error)
}

type SheetsClient interface {
	ReadRange(ctx context.Context, spreadsheetID, readRange string) ([][]string, error)
	AppendRows(ctx context.Context, spreadsheetID, rangeName string, rows [][]string) error
	UpdateRange(ctx context.Context, spreadsheetID, rangeName string, rows [][]string) error
	SortSheet(ctx context.Context, spreadsheetID, sheetName string, columnIndex int, descending bool) error
	EnsureSheet(ctx context.Context, spreadsheetID, sheetName string, headers []string) error
	DeleteSheet(ctx context.Context, spreadsheetID, sheetName string) error
	ListSheetTitles(ctx context.Context, spreadsheetID string) ([]string, error)

	// WaitReady polls spreadsheet metadata until it is fetchable. It reports
	// readiness explicitly instead of surfacing the last transient error.
	WaitReady(ctx context.Context, spreadsheetID string) bool
}

// ResultLogger records run outcomes in the logging spreadsheet. All
// methods are best-effort: failures are logged, never propagated.
type ResultLogger interface {
	LogInfo(ctx context.Context, message string)
	LogOutcome(ctx context.Context, outcome *FileOutcome)
	LoadProcessedMap(ctx context.Context) (map[string]string, error)
}

// TrackCache caches track resolutions across runs. A stored empty URI is
// a negative entry: the track is known to be unfindable.
type TrackCache interface {
	Lookup(ctx context.Context, artist, title string) (uri string, hit bool, err error)
	Store(ctx context.Context, artist, title, uri string) error
	Close() error
}

type DedupStore interface {
	Has(uri string) bool
	Add(uri string)
	Load(uris []string)
	Size() int
	Clear()
}

// SearchGate paces outbound search calls. Wait blocks until a call slot
// is available or the context is done.
type SearchGate interface {
	Wait(ctx context.Context, key string) error
}
