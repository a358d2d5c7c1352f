package rpc

import "time"

// SearchRequest is the request body for POST /search. Zero fields take the
// daemon's configured defaults.
type SearchRequest struct {
	Query          string `json:"query"`
	MaxResults     int    `json:"max_results,omitempty"`
	ScoreThreshold *int   `json:"score_threshold,omitempty"`
	ShowDeprecated *bool  `json:"show_deprecated,omitempty"`
}

// SearchResponse is the response body for POST /search.
type SearchResponse struct {
	Version string   `json:"version"`
	Results []Result `json:"results"`
}

// Result is one launcher entry.
type Result struct {
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle"`
	URL      string   `json:"url"`
	IconPath string   `json:"icon_path,omitempty"`
	CopyText string   `json:"copy_text"`
	Score    int      `json:"score"`       // fuzzy score, 0-100
	Rank     int      `json:"rank"`        // max_results minus position
	Kind     string   `json:"kind"`
	Tags     []string `json:"tags,omitempty"`
	Summary  string   `json:"summary,omitempty"` // first sentence-ish of the description
}

// ReloadResponse is the response body for POST /reload.
type ReloadResponse struct {
	Version    string `json:"version"`
	Active     int    `json:"active"`
	Deprecated int    `json:"deprecated"`
}

// GetDocRequest is the request body for POST /get-doc.
type GetDocRequest struct {
	Name string `json:"name"` // full dotted name, e.g. "Part.Anchored"
}

// GetDocResponse is the response body for POST /get-doc.
type GetDocResponse struct {
	Markdown string `json:"markdown"`
}

// BuildInfo summarises one build attempt.
type BuildInfo struct {
	ID         string    `json:"id"`
	Version    string    `json:"version,omitempty"`
	Active     int       `json:"active"`
	Deprecated int       `json:"deprecated"`
	Started    time.Time `json:"started"`
	Finished   time.Time `json:"finished"`
	Error      string    `json:"error,omitempty"`
}

// StatusResponse is the response body for GET /status.
type StatusResponse struct {
	Loaded     bool        `json:"loaded"`
	Building   bool        `json:"building"`
	Version    string      `json:"version,omitempty"`
	Active     int         `json:"active"`
	Deprecated int         `json:"deprecated"`
	DataTypes  int         `json:"data_types"`
	BuiltAt    *time.Time  `json:"built_at,omitempty"`
	LastError  string      `json:"last_error,omitempty"`
	History    []BuildInfo `json:"history,omitempty"`
	// LastSuccess is the newest successful build on record, which may predate
	// this daemon process.
	LastSuccess *BuildInfo `json:"last_success,omitempty"`
}

// VersionResponse is the response body for GET /version.
type VersionResponse struct {
	Loaded  string `json:"loaded,omitempty"`  // version of the published record set
	Current string `json:"current,omitempty"` // version currently served upstream
	Stale   bool   `json:"stale"`
}

// ClearCacheRequest is the request body for POST /clear-cache. An empty body
// clears only the dump cache.
type ClearCacheRequest struct {
	History bool `json:"history,omitempty"` // also delete the build history
}

// ClearCacheResponse is the response body for POST /clear-cache.
type ClearCacheResponse struct {
	Removed       int   `json:"removed"`
	BuildsRemoved int64 `json:"builds_removed,omitempty"`
}
