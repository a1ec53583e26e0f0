// Package spotify provides Spotify Web API integration for track search
// and playlist management.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/kaianolevine/spotify-playlist-generator-dev/internal/core"
	"github.com/kaianolevine/spotify-playlist-generator-dev/pkg/fuzzy"
)

const (
	// FilePermission is the permission for token files
	FilePermission = 0600
	// MaxSearchResults limits track search results considered per lookup
	MaxSearchResults = 10
	// MinMatchScore is the relevance score below which a search result is
	// rejected as "not the requested track"
	MinMatchScore = 0.55
	// playlistPageSize is the Spotify API maximum for playlist item pages
	playlistPageSize = 100
	// addChunkSize is the Spotify API maximum for a single add call
	addChunkSize = 100

	trackURIPrefix = "spotify:track:"
)

type Client struct {
	config     *core.SpotifyConfig
	logger     *zap.Logger
	client     *spotify.Client
	normalizer *fuzzy.Normalizer
	auth       *spotifyauth.Authenticator
	userID     string
}

type TokenData struct {
	Token *oauth2.Token `json:"token"`
}

func NewClient(config *core.SpotifyConfig, logger *zap.Logger) *Client {
	auth := spotifyauth.New(
		spotifyauth.WithRedirectURL(config.RedirectURL),
		spotifyauth.WithScopes(
			spotifyauth.ScopePlaylistModifyPublic,
			spotifyauth.ScopePlaylistModifyPrivate,
			spotifyauth.ScopePlaylistReadPrivate,
		),
		spotifyauth.WithClientID(config.ClientID),
		spotifyauth.WithClientSecret(config.ClientSecret),
	)

	return &Client{
		config:     config,
		logger:     logger,
		normalizer: fuzzy.NewNormalizer(),
		auth:       auth,
	}
}

// Authenticate restores the saved token, falling back to the
// interactive OAuth flow when the token is missing or rejected.
func (c *Client) Authenticate(ctx context.Context) error {
	token, err := c.loadToken()
	if err != nil {
		c.logger.Info("No saved token found, starting OAuth flow")
		return c.StartOAuthFlow(ctx)
	}

	client := spotify.New(c.auth.Client(ctx, token))
	c.client = client

	user, err := client.CurrentUser(ctx)
	if err != nil {
		c.logger.Warn("Saved token invalid, starting OAuth flow", zap.Error(err))
		return c.StartOAuthFlow(ctx)
	}
	c.userID = user.ID

	c.logger.Info("Authenticated successfully", zap.String("user", user.DisplayName))
	return nil
}

// SearchTrack looks up (artist, title) and returns the best-matching
// track URI, or an empty string when no result scores acceptably.
func (c *Client) SearchTrack(ctx context.Context, artist, title string) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("client not authenticated")
	}

	normArtist := c.normalizer.NormalizeArtist(artist)
	normTitle := c.normalizer.NormalizeTitle(title)
	query := buildSearchQuery(normArtist, normTitle)
	if query == "" {
		return "", nil
	}

	results, err := c.client.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(MaxSearchResults))
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}

	if results.Tracks == nil || len(results.Tracks.Tracks) == 0 {
		return "", nil
	}

	candidates := make([]candidate, 0, len(results.Tracks.Tracks))
	for i := range results.Tracks.Tracks {
		track := &results.Tracks.Tracks[i]
		candidates = append(candidates, candidate{
			uri:    trackURIPrefix + string(track.ID),
			title:  track.Name,
			artist: joinArtists(track.Artists),
		})
	}

	best, score := c.pickBest(candidates, normArtist, normTitle)
	if score < MinMatchScore {
		c.logger.Debug("Best search result rejected",
			zap.String("artist", artist),
			zap.String("title", title),
			zap.Float64("score", score))
		return "", nil
	}

	return best.uri, nil
}

// ListPlaylists returns all of the current user's playlists.
func (c *Client) ListPlaylists(ctx context.Context) ([]core.Playlist, error) {
	if c.client == nil {
		return nil, fmt.Errorf("client not authenticated")
	}

	var playlists []core.Playlist
	offset := 0
	for {
		page, err := c.client.CurrentUsersPlaylists(ctx,
			spotify.Limit(50), spotify.Offset(offset))
		if err != nil {
			return nil, fmt.Errorf("failed to list playlists: %w", err)
		}

		for i := range page.Playlists {
			p := &page.Playlists[i]
			playlists = append(playlists, core.Playlist{
				ID:         string(p.ID),
				Name:       p.Name,
				TrackCount: int(p.Tracks.Total),
			})
		}

		if len(page.Playlists) < 50 {
			break
		}
		offset += 50
	}

	return playlists, nil
}

// CreatePlaylist creates a private playlist for the current user.
func (c *Client) CreatePlaylist(ctx context.Context, name string) (*core.Playlist, error) {
	if c.client == nil {
		return nil, fmt.Errorf("client not authenticated")
	}
	if c.userID == "" {
		return nil, fmt.Errorf("current user unknown, authenticate first")
	}

	playlist, err := c.client.CreatePlaylistForUser(ctx, c.userID, name, "", false, false)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist %q: %w", name, err)
	}

	return &core.Playlist{ID: string(playlist.ID), Name: playlist.Name}, nil
}

// AddTracksToPlaylist appends the given track URIs in order, chunked to
// the API limit.
func (c *Client) AddTracksToPlaylist(ctx context.Context, playlistID string, uris []string) error {
	if c.client == nil {
		return fmt.Errorf("client not authenticated")
	}

	ids := make([]spotify.ID, 0, len(uris))
	for _, uri := range uris {
		ids = append(ids, spotify.ID(trackIDFromURI(uri)))
	}

	for start := 0; start < len(ids); start += addChunkSize {
		end := start + addChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		if _, err := c.client.AddTracksToPlaylist(ctx, spotify.ID(playlistID), ids[start:end]...); err != nil {
			return fmt.Errorf("failed to add tracks to playlist: %w", err)
		}
	}

	c.logger.Info("Tracks added to playlist",
		zap.String("playlistID", playlistID),
		zap.Int("count", len(ids)))

	return nil
}

// TrimPlaylist drops the oldest entries beyond limit, keeping the most
// recently appended tracks.
func (c *Client) TrimPlaylist(ctx context.Context, playlistID string, limit int) error {
	if c.client == nil {
		return fmt.Errorf("client not authenticated")
	}
	if limit <= 0 {
		return nil
	}

	uris, err := c.GetPlaylistTracks(ctx, playlistID)
	if err != nil {
		return err
	}
	if len(uris) <= limit {
		return nil
	}

	excess := uris[:len(uris)-limit]
	ids := make([]spotify.ID, 0, len(excess))
	for _, uri := range excess {
		ids = append(ids, spotify.ID(trackIDFromURI(uri)))
	}

	if _, err := c.client.RemoveTracksFromPlaylist(ctx, spotify.ID(playlistID), ids...); err != nil {
		return fmt.Errorf("failed to trim playlist: %w", err)
	}

	c.logger.Info("Trimmed playlist to limit",
		zap.String("playlistID", playlistID),
		zap.Int("removed", len(ids)),
		zap.Int("limit", limit))

	return nil
}

// GetPlaylistTracks returns the playlist's track URIs in playlist order.
func (c *Client) GetPlaylistTracks(ctx context.Context, playlistID string) ([]string, error) {
	if c.client == nil {
		return nil, fmt.Errorf("client not authenticated")
	}

	var uris []string
	offset := 0
	for {
		items, err := c.client.GetPlaylistItems(ctx, spotify.ID(playlistID),
			spotify.Limit(playlistPageSize), spotify.Offset(offset))
		if err != nil {
			return nil, fmt.Errorf("failed to get playlist items: %w", err)
		}

		for i := range items.Items {
			if items.Items[i].Track.Track != nil {
				uris = append(uris, trackURIPrefix+string(items.Items[i].Track.Track.ID))
			}
		}

		if len(items.Items) < playlistPageSize {
			break
		}
		offset += playlistPageSize
	}

	return uris, nil
}

type candidate struct {
	uri    string
	title  string
	artist string
}

// pickBest scores each candidate against the normalized request and
// returns the highest scorer. Title similarity dominates; the artist
// check keeps covers and karaoke versions out.
func (c *Client) pickBest(candidates []candidate, normArtist, normTitle string) (candidate, float64) {
	var best candidate
	bestScore := -1.0

	for _, cand := range candidates {
		candTitle := c.normalizer.NormalizeTitle(cand.title)
		candArtist := c.normalizer.NormalizeArtist(cand.artist)

		titleScore := c.normalizer.Similarity(candTitle, normTitle)
		artistScore := c.normalizer.Similarity(candArtist, normArtist)

		score := 0.6*titleScore + 0.4*artistScore
		if score > bestScore {
			best = cand
			bestScore = score
		}
	}

	return best, bestScore
}

func buildSearchQuery(normArtist, normTitle string) string {
	switch {
	case normArtist == "" && normTitle == "":
		return ""
	case normArtist == "":
		return fmt.Sprintf("track:%s", normTitle)
	case normTitle == "":
		return fmt.Sprintf("artist:%s", normArtist)
	}
	return fmt.Sprintf("track:%s artist:%s", normTitle, normArtist)
}

func trackIDFromURI(uri string) string {
	return strings.TrimPrefix(uri, trackURIPrefix)
}

func joinArtists(artists []spotify.SimpleArtist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// StartOAuthFlow walks the user through the authorization-code flow on
// the terminal and persists the resulting token.
func (c *Client) StartOAuthFlow(ctx context.Context) error {
	state := "radiosync-auth-state"
	authURL := c.auth.AuthURL(state)

	fmt.Printf("Please visit the following URL to authorize the application:\n%s\n", authURL)
	fmt.Print("Enter the authorization code: ")

	var code string
	if _, err := fmt.Scanln(&code); err != nil {
		return fmt.Errorf("failed to read authorization code: %w", err)
	}

	token, err := c.auth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange code for token: %w", err)
	}

	if saveErr := c.saveToken(token); saveErr != nil {
		c.logger.Warn("Failed to save token", zap.Error(saveErr))
	}

	client := spotify.New(c.auth.Client(ctx, token))
	c.client = client

	user, err := client.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	c.userID = user.ID

	c.logger.Info("OAuth flow completed successfully", zap.String("user", user.DisplayName))
	return nil
}

func (c *Client) loadToken() (*oauth2.Token, error) {
	file, err := os.Open(c.config.TokenPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	var tokenData TokenData
	if err := json.Unmarshal(data, &tokenData); err != nil {
		return nil, err
	}

	return tokenData.Token, nil
}

func (c *Client) saveToken(token *oauth2.Token) error {
	tokenData := TokenData{Token: token}

	data, err := json.MarshalIndent(tokenData, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(c.config.TokenPath, data, FilePermission)
}
