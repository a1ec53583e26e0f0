package core

import (
	"time"
)

type Config struct {
	Google  GoogleConfig
	Spotify SpotifyConfig
	Store   StoreConfig
	Server  ServerConfig
	Log     LogConfig
	App     AppConfig
}

type GoogleConfig struct {
	CredentialsFile string
	HistoryFolderID string
	SpreadsheetID   string
	SpreadsheetName string
}

type SpotifyConfig struct {
	ClientID          string
	ClientSecret      string
	RedirectURL       string
	RollingPlaylistID string
	PlaylistLimit     int
	TokenPath         string
}

type StoreConfig struct {
	CachePath     string
	DedupCapacity int
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level string
}

type AppConfig struct {
	SyncInterval    time.Duration
	SearchPerMinute int
	WorkDir         string
	ReadyRetries    int
	ReadyRetryDelay time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Google: GoogleConfig{
			CredentialsFile: "./service_account.json",
			SpreadsheetName: "Radio Sync Log",
		},
		Spotify: SpotifyConfig{
			RedirectURL:   "http://localhost:8080/callback",
			PlaylistLimit: 200,
			TokenPath:     "./spotify_token.json",
		},
		Store: StoreConfig{
			DedupCapacity: 10000,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		App: AppConfig{
			SyncInterval:    30 * time.Minute,
			SearchPerMinute: 60,
			WorkDir:         "",
			ReadyRetries:    5,
			ReadyRetryDelay: time.Second,
		},
	}
}
