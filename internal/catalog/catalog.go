// Package catalog owns the song list and the lazy parse-on-play cache.
// Song text lives on disk (or, for the one generated slot, in memory)
// for the life of the process; only the parsed note tracks are cached,
// and only one ordinary song's tracks plus the one reserved generated
// slot are ever held at a time.
package catalog

import (
	"fmt"
	"io/ioutil"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"code.musicbuzzer.dev/buzzer/internal/apperr"
	"code.musicbuzzer.dev/buzzer/internal/mml"
	"code.musicbuzzer.dev/buzzer/internal/notes"
	"code.musicbuzzer.dev/buzzer/internal/rtttl"
)

// Notation identifies which parser a SongEntry's raw text requires.
type Notation int

const (
	RTTTL Notation = iota
	MML
)

// SongEntry describes one catalog slot as discovered at startup. Raw text
// stays resident; TrackCount is precomputed cheaply (a comma scan, not a
// full parse) so the manifest endpoint never has to parse anything.
type SongEntry struct {
	Name       string
	Raw        string
	Notation   Notation
	TrackCount int
}

// parsedSlot is the single cached result for either the ordinary song
// currently playing or the one generated song. index == -1 means empty.
type parsedSlot struct {
	index  int
	tracks []notes.Track
}

// Catalog holds the manifest plus the two lazy parse slots.
type Catalog struct {
	mu               sync.Mutex
	entries          []SongEntry
	ordinary         parsedSlot
	gen              parsedSlot
	maxNotesPerTrack int
	maxTracksPerSong int
}

// New builds an empty catalog bounded by maxNotes notes per track and
// maxTracks tracks per song — the same scratch-buffer sizing the
// firmware's config exposes as BUZZER_MAX_NOTES/BUZZER_MAX_TRACKS.
// Load populates it.
func New(maxNotes, maxTracks int) *Catalog {
	return &Catalog{
		ordinary:         parsedSlot{index: -1},
		gen:              parsedSlot{index: -1},
		maxNotesPerTrack: maxNotes,
		maxTracksPerSong: maxTracks,
	}
}

// Load walks dir for *.rtttl and *.mml files, recording each as a
// SongEntry sorted by filename. It never parses note bodies — only the
// cheap track count needed for the manifest.
func (c *Catalog) Load(dir string) error {
	files, err := ioutil.ReadDir(dir)
	if err != nil {
		return apperr.Newf(apperr.Allocation, "read catalog dir %s: %v", dir, err)
	}

	var entries []SongEntry
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		name := f.Name()
		var notation Notation
		switch {
		case strings.HasSuffix(name, ".rtttl"):
			notation = RTTTL
		case strings.HasSuffix(name, ".mml"):
			notation = MML
		default:
			continue
		}

		raw, err := ioutil.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return apperr.Newf(apperr.Allocation, "read song %s: %v", name, err)
		}
		text := string(raw)

		trackCount := 1
		if notation == MML {
			trackCount = mml.CountTracks(text)
		}

		entries = append(entries, SongEntry{
			Name:       strings.TrimSuffix(name, filepath.Ext(name)),
			Raw:        text,
			Notation:   notation,
			TrackCount: trackCount,
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	return nil
}

// Manifest returns the catalog's entries, minus their raw text, for the
// /songs.json endpoint.
func (c *Catalog) Manifest() []SongEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SongEntry, len(c.entries))
	copy(out, c.entries)
	for i := range out {
		out[i].Raw = ""
	}
	return out
}

// Len reports how many ordinary songs are in the catalog.
func (c *Catalog) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Name returns the display name for an ordinary song index.
func (c *Catalog) Name(index int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.entries) {
		return "", false
	}
	return c.entries[index].Name, true
}

// Play returns the parsed tracks for ordinary song index, parsing on
// first access and evicting whatever the ordinary slot held before.
// Re-requesting the same index that is already cached is a no-op.
func (c *Catalog) Play(index int) ([]notes.Track, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.entries) {
		return nil, "", apperr.Newf(apperr.ParseBound, "song index %d out of range", index)
	}

	if c.ordinary.index == index {
		return c.ordinary.tracks, c.entries[index].Name, nil
	}

	// evict before parsing the next one — at most one ordinary slot live.
	c.ordinary = parsedSlot{index: -1}

	entry := c.entries[index]
	tracks := c.parse(entry)
	if len(tracks) == 0 || allEmpty(tracks) {
		return nil, "", apperr.Newf(apperr.ParseBound, "song %q produced no notes", entry.Name)
	}

	c.ordinary = parsedSlot{index: index, tracks: tracks}
	return tracks, entry.Name, nil
}

// PlayGenerated installs freshly generated MML text into the reserved
// generated slot, evicting whatever it held before, and returns its
// parsed tracks. The ordinary slot is untouched.
func (c *Catalog) PlayGenerated(text string) ([]notes.Track, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen = parsedSlot{index: -1}

	entry := SongEntry{Name: "generated", Raw: text, Notation: MML}
	tracks := c.parse(entry)
	if len(tracks) == 0 || allEmpty(tracks) {
		return nil, apperr.New(apperr.ParseBound, "generated song produced no notes")
	}

	c.gen = parsedSlot{index: 0, tracks: tracks}
	return tracks, nil
}

// EvictOrdinary frees the ordinary slot's tracks without parsing a
// replacement, used when stopping playback.
func (c *Catalog) EvictOrdinary() {
	c.mu.Lock()
	c.ordinary = parsedSlot{index: -1}
	c.mu.Unlock()
}

// EvictGenerated frees the generated slot's tracks.
func (c *Catalog) EvictGenerated() {
	c.mu.Lock()
	c.gen = parsedSlot{index: -1}
	c.mu.Unlock()
}

func (c *Catalog) parse(entry SongEntry) []notes.Track {
	switch entry.Notation {
	case RTTTL:
		return []notes.Track{rtttl.Parse(entry.Raw, c.maxNotesPerTrack)}
	case MML:
		return mml.Parse(entry.Raw, c.maxTracksPerSong, c.maxNotesPerTrack)
	default:
		return nil
	}
}

func allEmpty(tracks []notes.Track) bool {
	for _, t := range tracks {
		if len(t) > 0 {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer for Notation, mostly for log lines.
func (n Notation) String() string {
	switch n {
	case RTTTL:
		return "rtttl"
	case MML:
		return "mml"
	default:
		return fmt.Sprintf("notation(%d)", int(n))
	}
}
