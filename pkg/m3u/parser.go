// Package m3u parses DJ-software play-history playlists into ordered
// track entries.
package m3u

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/kaianolevine/spotify-playlist-generator-dev/internal/core"
)

const (
	extVDJPrefix = "#EXTVDJ:"
	extInfPrefix = "#EXTINF:"
)

var (
	artistTagRegex = regexp.MustCompile(`<artist>(.*?)</artist>`)
	titleTagRegex  = regexp.MustCompile(`<title>(.*?)</title>`)
)

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// ParseFile parses one history file into ordered Songs. Each Song's
// Marker is the verbatim metadata line it was extracted from, which
// callers use as a resumption cursor. Lines that carry no usable
// artist/title pair are skipped. An empty file yields an empty result,
// not an error.
func (p *Parser) ParseFile(path string) ([]core.Song, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return p.Parse(file)
}

// Parse reads extended-M3U content from r. See ParseFile.
func (p *Parser) Parse(r io.Reader) ([]core.Song, error) {
	var songs []core.Song

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if song, ok := parseLine(line); ok {
			songs = append(songs, song)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return songs, nil
}

func parseLine(line string) (core.Song, bool) {
	switch {
	case strings.HasPrefix(line, extVDJPrefix):
		return parseVDJLine(line)
	case strings.HasPrefix(line, extInfPrefix):
		return parseExtInfLine(line)
	}
	return core.Song{}, false
}

// parseVDJLine extracts artist and title from a VirtualDJ history line,
// e.g. #EXTVDJ:<time>21:10</time><artist>Daft Punk</artist><title>One More Time</title>
func parseVDJLine(line string) (core.Song, bool) {
	artist := tagValue(artistTagRegex, line)
	title := tagValue(titleTagRegex, line)
	if artist == "" || title == "" {
		return core.Song{}, false
	}
	return core.Song{Artist: artist, Title: title, Marker: line}, true
}

// parseExtInfLine handles the plain M3U form "#EXTINF:217,Artist - Title".
func parseExtInfLine(line string) (core.Song, bool) {
	body := strings.TrimPrefix(line, extInfPrefix)
	comma := strings.Index(body, ",")
	if comma < 0 {
		return core.Song{}, false
	}

	info := body[comma+1:]
	parts := strings.SplitN(info, " - ", 2)
	if len(parts) != 2 {
		return core.Song{}, false
	}

	artist := strings.TrimSpace(parts[0])
	title := strings.TrimSpace(parts[1])
	if artist == "" || title == "" {
		return core.Song{}, false
	}
	return core.Song{Artist: artist, Title: title, Marker: line}, true
}

func tagValue(re *regexp.Regexp, line string) string {
	if m := re.FindStringSubmatch(line); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return ""
}
