package spotify

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kaianolevine/spotify-playlist-generator-dev/internal/core"
)

func newTestClient() *Client {
	return NewClient(&core.SpotifyConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:8888/callback",
	}, zap.NewNop())
}

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		artist   string
		title    string
		expected string
	}{
		{
			name:     "artist and title",
			artist:   "daft punk",
			title:    "one more time",
			expected: "track:one more time artist:daft punk",
		},
		{
			name:     "title only",
			artist:   "",
			title:    "one more time",
			expected: "track:one more time",
		},
		{
			name:     "artist only",
			artist:   "daft punk",
			title:    "",
			expected: "artist:daft punk",
		},
		{
			name:     "both empty",
			artist:   "",
			title:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := buildSearchQuery(tt.artist, tt.title)
			if result != tt.expected {
				t.Errorf("buildSearchQuery(%q, %q) = %q, want %q",
					tt.artist, tt.title, result, tt.expected)
			}
		})
	}
}

func TestTrackIDFromURI(t *testing.T) {
	tests := []struct {
		uri      string
		expected string
	}{
		{"spotify:track:4uLU6hMCjMI75M1A2tKUQC", "4uLU6hMCjMI75M1A2tKUQC"},
		{"4uLU6hMCjMI75M1A2tKUQC", "4uLU6hMCjMI75M1A2tKUQC"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := trackIDFromURI(tt.uri); got != tt.expected {
			t.Errorf("trackIDFromURI(%q) = %q, want %q", tt.uri, got, tt.expected)
		}
	}
}

func TestPickBestPrefersExactMatch(t *testing.T) {
	client := newTestClient()

	candidates := []candidate{
		{uri: "spotify:track:cover", title: "One More Time (Karaoke Version)", artist: "Karaoke Hits"},
		{uri: "spotify:track:original", title: "One More Time", artist: "Daft Punk"},
		{uri: "spotify:track:unrelated", title: "Something Else", artist: "Somebody"},
	}

	best, score := client.pickBest(candidates,
		client.normalizer.NormalizeArtist("Daft Punk"),
		client.normalizer.NormalizeTitle("One More Time"))

	if best.uri != "spotify:track:original" {
		t.Errorf("expected original track to win, got %q", best.uri)
	}
	if score < MinMatchScore {
		t.Errorf("exact match scored %f, below acceptance threshold %f", score, MinMatchScore)
	}
}

func TestPickBestRejectsUnrelatedResults(t *testing.T) {
	client := newTestClient()

	candidates := []candidate{
		{uri: "spotify:track:wrong", title: "Completely Different Song", artist: "Unknown Band"},
	}

	_, score := client.pickBest(candidates,
		client.normalizer.NormalizeArtist("Daft Punk"),
		client.normalizer.NormalizeTitle("One More Time"))

	if score >= MinMatchScore {
		t.Errorf("unrelated result scored %f, expected below %f", score, MinMatchScore)
	}
}

func TestSearchTrackRequiresAuthentication(t *testing.T) {
	client := newTestClient()

	if _, err := client.SearchTrack(context.Background(), "Daft Punk", "One More Time"); err == nil {
		t.Error("expected error when client is not authenticated")
	}
}
