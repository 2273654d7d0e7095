package api

import (
	"github.com/starford/moewiki/internal/diff"
	"github.com/starford/moewiki/internal/models"
	"github.com/starford/moewiki/internal/paste"
	"github.com/starford/moewiki/internal/store"
	"github.com/starford/moewiki/internal/wiki"
)

// SavePageRequest is the request body for saving a page.
type SavePageRequest struct {
	Title string `json:"title" example:"Start page" validate:"required"`
	Body  string `json:"body" example:"# Welcome\nSee [[Other page]]."`
	Note  string `json:"note" example:"Fix typo"`
	// Section, when set, replaces only that section of the page.
	Section *int `json:"section,omitempty" example:"1"`
	// Version is the revision the section was edited from.
	Version string `json:"version,omitempty" example:"latest"`
}

// PageView is a page revision response (aliased from the domain layer).
type PageView = wiki.PageView

// SaveResult is the page save response (aliased from the domain layer).
type SaveResult = wiki.EditResult

// EditForm is the editor prefill response (aliased from the domain layer).
type EditForm = wiki.EditForm

// HistoryResponse is one page of revisions (aliased from the domain layer).
type HistoryResponse = wiki.History

// PageListResponse is one page of a listing (aliased from the domain layer).
type PageListResponse = wiki.PageList

// DiffResponse is a revision diff (aliased from the domain layer).
type DiffResponse = diff.View

// SearchResult is a single search hit in the API response.
type SearchResult = store.SearchResult

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// BacklinksResponse lists the pages linking to a page.
type BacklinksResponse struct {
	Path      string   `json:"path" example:"other-page/" validate:"required"`
	Backlinks []string `json:"backlinks" validate:"required"`
}

// AreasResponse lists the wiki areas.
type AreasResponse struct {
	Areas []models.Area `json:"areas" validate:"required"`
}

// CreatePasteRequest is the request body for creating a paste.
type CreatePasteRequest struct {
	Code     string `json:"code" example:"package main" validate:"required"`
	Language string `json:"language" example:"go"`
}

// PasteResponse is a stored paste.
type PasteResponse struct {
	models.Paste
	Lines int `json:"lines" example:"12"`
}

// PasteListResponse is one page of pastes (aliased from the domain layer).
type PasteListResponse = paste.List

// LanguagesResponse lists the paste languages.
type LanguagesResponse struct {
	Languages []string `json:"languages" validate:"required"`
}
