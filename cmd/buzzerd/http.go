package main

import (
	"encoding/json"
	"net/http"
)

// routes wires the /ws control channel, the /songs.json manifest, and a
// plain file server over the configured web directory for the PWA's
// static assets (index.html, manifest.json, icon.svg, app bundle).
// Authoring that frontend content is out of scope here — this only
// routes to whatever is on disk.
func (a *app) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", a.dev.Hub())
	mux.HandleFunc("/songs.json", a.handleSongs)
	mux.Handle("/", http.FileServer(http.Dir(a.cfg.WebDir)))
	return mux
}

type songView struct {
	Index      int    `json:"i"`
	Name       string `json:"n"`
	Notation   string `json:"notation"`
	TrackCount int    `json:"t"`
}

func (a *app) handleSongs(w http.ResponseWriter, r *http.Request) {
	entries := a.dev.Catalog().Manifest()
	out := make([]songView, len(entries))
	for i, e := range entries {
		out[i] = songView{Index: i, Name: e.Name, Notation: e.Notation.String(), TrackCount: e.TrackCount}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		logger.Warningf("encoding /songs.json response: %v", err)
	}
}
