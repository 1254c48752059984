package scryfall

import (
	"fmt"
	"time"
)

// SearchCard is the slice of a Scryfall search result this client
// cares about.
type SearchCard struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SearchResult represents one page of search results from Scryfall.
type SearchResult struct {
	Object     string       `json:"object"`
	TotalCards int          `json:"total_cards"`
	HasMore    bool         `json:"has_more"`
	NextPage   string       `json:"next_page,omitempty"`
	Data       []SearchCard `json:"data"`
}

// BulkDataList represents the list of bulk data files.
type BulkDataList struct {
	Object  string     `json:"object"`
	HasMore bool       `json:"has_more"`
	Data    []BulkData `json:"data"`
}

// BulkData represents a bulk data file download.
type BulkData struct {
	ID              string    `json:"id"`
	Object          string    `json:"object"`
	Type            string    `json:"type"`
	UpdatedAt       time.Time `json:"updated_at"`
	URI             string    `json:"uri"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	CompressedSize  int       `json:"compressed_size"`
	DownloadURI     string    `json:"download_uri"`
	ContentType     string    `json:"content_type"`
	ContentEncoding string    `json:"content_encoding"`
}

// BulkTypeDefaultCards is the bulk file holding one record per
// printing, the feed the catalog importer consumes.
const BulkTypeDefaultCards = "default_cards"

// DefaultCards returns the default-cards entry of the list, nil when
// absent.
func (l *BulkDataList) DefaultCards() *BulkData {
	for i := range l.Data {
		if l.Data[i].Type == BulkTypeDefaultCards {
			return &l.Data[i]
		}
	}
	return nil
}

// APIError represents an error response from the Scryfall API.
type APIError struct {
	Object   string   `json:"object"`
	Code     string   `json:"code"`
	Status   int      `json:"status"`
	Details  string   `json:"details"`
	Type     string   `json:"type,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("Scryfall API error (HTTP %d): %s", e.Status, e.Details)
	}
	return fmt.Sprintf("Scryfall API error (HTTP %d): %s", e.Status, e.Code)
}

// NotFoundError represents a 404 error from the API.
type NotFoundError struct {
	URL string
}

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource not found: %s", e.URL)
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}
