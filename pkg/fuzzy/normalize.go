// Package fuzzy normalizes artist and title strings for search queries
// and scores how well search results match the requested track.
package fuzzy

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	featRegex       = regexp.MustCompile(`(?i)\s*[\(\[]?\s*\b(?:featuring|feat\.?|ft\.?)\s+[^\)\]]*[\)\]]?\s*`)
	versionRegex    = regexp.MustCompile(`(?i)\s*[\(\[]\s*(remaster|remastered|deluxe|extended|radio edit|clean|explicit|live|original mix)[^\)\]]*[\)\]]\s*`)
	punctRegex      = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// NormalizeArtist strips accents and punctuation and lowercases the
// artist name. DJ software often lists several artists joined by
// featuring credits; those are dropped so the leading artist carries
// the search.
func (n *Normalizer) NormalizeArtist(artist string) string {
	artist = featRegex.ReplaceAllString(artist, " ")
	return n.basicNormalize(artist)
}

// NormalizeTitle drops featuring credits and edition/version suffixes
// that rarely appear in the streaming catalog's canonical title.
func (n *Normalizer) NormalizeTitle(title string) string {
	title = featRegex.ReplaceAllString(title, " ")
	title = versionRegex.ReplaceAllString(title, " ")
	return n.basicNormalize(title)
}

func (n *Normalizer) basicNormalize(text string) string {
	text = norm.NFKD.String(text)

	var b strings.Builder
	for _, r := range text {
		if !unicode.IsMark(r) {
			b.WriteRune(r)
		}
	}
	text = b.String()

	text = punctRegex.ReplaceAllString(text, " ")
	text = whitespaceRegex.ReplaceAllString(text, " ")

	return strings.TrimSpace(strings.ToLower(text))
}

// Similarity scores two normalized strings in [0, 1] by longest common
// subsequence over the longer length. Equal strings score 1.
func (n *Normalizer) Similarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}
	if len(s1) == 0 || len(s2) == 0 {
		return 0.0
	}

	longest := len(s1)
	if len(s2) > longest {
		longest = len(s2)
	}
	return float64(lcs(s1, s2)) / float64(longest)
}

func lcs(s1, s2 string) int {
	m, n := len(s1), len(s2)
	prev := make([]int, n+1)
	cur := make([]int, n+1)

	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			switch {
			case s1[i-1] == s2[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}

	return prev[n]
}
