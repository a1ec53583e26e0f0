package core

// NewSongs returns the suffix of songs that has not been processed yet,
// given the marker of the last entry handled on a previous run.
//
// An empty lastMarker means the file has never been processed: everything
// is new. If lastMarker matches no entry the cursor cannot be trusted
// (the file changed upstream, or the sheet row is stale) and the whole
// file is returned rather than silently skipping content. Matching is
// exact string equality on Marker, first occurrence wins, and the
// original file order is preserved. The function is pure.
func NewSongs(songs []Song, lastMarker string) []Song {
	if len(songs) == 0 {
		return nil
	}
	if lastMarker == "" {
		return songs
	}
	for i := range songs {
		if songs[i].Marker == lastMarker {
			return songs[i+1:]
		}
	}
	return songs
}

// DuplicateMarkers returns the markers that occur more than once in
// songs. Duplicates undermine the cursor: NewSongs anchors on the first
// occurrence, so a repeated marker can hide entries between the
// occurrences. Callers surface duplicates as a warning.
func DuplicateMarkers(songs []Song) []string {
	seen := make(map[string]int, len(songs))
	var dups []string
	for _, s := range songs {
		seen[s.Marker]++
		if seen[s.Marker] == 2 {
			dups = append(dups, s.Marker)
		}
	}
	return dups
}
