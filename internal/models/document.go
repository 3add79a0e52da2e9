// Package models defines the domain types for ansuz.
package models

import "time"

// Document is the normalized record extracted from one .norg file.
// It carries no identity until the index persists it.
type Document struct {
	Path        string   `json:"path"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Categories  []string `json:"categories"`
	Authors     []string `json:"authors"`
	// Created and Updated are author-supplied and stored verbatim.
	Created string `json:"created,omitempty"`
	Updated string `json:"updated,omitempty"`
	Tasks   []Task `json:"tasks"`
}

// DocumentSummary is one row of a category query.
type DocumentSummary struct {
	Path        string `json:"path"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Created     string `json:"created,omitempty"`
	Updated     string `json:"updated,omitempty"`
}

// FileMeta is a lightweight representation returned by workspace listings.
type FileMeta struct {
	Path    string    `json:"path"` // absolute
	ModTime time.Time `json:"mod_time"`
	Size    int64     `json:"size"`
}
