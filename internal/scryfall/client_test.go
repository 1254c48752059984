package scryfall

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetBulkDataFindsDefaultCards(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bulk-data" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		fmt.Fprint(w, `{
			"object": "list",
			"has_more": false,
			"data": [
				{"type": "oracle_cards", "download_uri": "https://example.com/oracle.json"},
				{"type": "default_cards", "download_uri": "https://example.com/default.json"}
			]
		}`)
	}))
	defer server.Close()

	client := NewClientWithBaseURL(server.URL)
	list, err := client.GetBulkData(context.Background())
	if err != nil {
		t.Fatalf("Failed to get bulk data: %v", err)
	}

	bulk := list.DefaultCards()
	if bulk == nil {
		t.Fatal("Expected a default_cards entry")
	}
	if bulk.DownloadURI != "https://example.com/default.json" {
		t.Errorf("Unexpected download URI: %s", bulk.DownloadURI)
	}
}

func TestDownloadBulkData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"name": "Lightning Bolt"}]`)
	}))
	defer server.Close()

	client := NewClientWithBaseURL(server.URL)
	body, err := client.DownloadBulkData(context.Background(), &BulkData{DownloadURI: server.URL + "/default.json"})
	if err != nil {
		t.Fatalf("Failed to download bulk data: %v", err)
	}
	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("Failed to read bulk body: %v", err)
	}
	if string(data) != `[{"name": "Lightning Bolt"}]` {
		t.Errorf("Unexpected bulk body: %s", data)
	}
}

func TestSearchCardNamesPaginates(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `{
				"object": "list",
				"has_more": false,
				"data": [{"id": "3", "name": "Shock"}, {"id": "4", "name": "Lightning Bolt"}]
			}`)
			return
		}
		fmt.Fprintf(w, `{
			"object": "list",
			"has_more": true,
			"next_page": %q,
			"data": [{"id": "1", "name": "Lightning Bolt"}, {"id": "2", "name": "Lava Spike"}]
		}`, server.URL+"/cards/search?q=burn&page=2")
	}))
	defer server.Close()

	client := NewClientWithBaseURL(server.URL)
	names, err := client.SearchCardNames(context.Background(), "burn")
	if err != nil {
		t.Fatalf("Failed to search card names: %v", err)
	}

	want := []string{"Lightning Bolt", "Lava Spike", "Shock"}
	if len(names) != len(want) {
		t.Fatalf("Expected %d names, got %d: %v", len(want), len(names), names)
	}
	for i, name := range want {
		if names[i] != name {
			t.Errorf("Expected names[%d] = %q, got %q", i, name, names[i])
		}
	}
}

func TestSearchCardNamesEmptyOn404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"object": "error", "code": "not_found", "status": 404, "details": "No cards found"}`)
	}))
	defer server.Close()

	client := NewClientWithBaseURL(server.URL)
	names, err := client.SearchCardNames(context.Background(), "nonsense")
	if err != nil {
		t.Fatalf("Expected empty result for no matches, got error: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("Expected no names, got %v", names)
	}
}

func TestAPIErrorSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"object": "error", "code": "bad_request", "status": 400, "details": "Invalid search syntax"}`)
	}))
	defer server.Close()

	client := NewClientWithBaseURL(server.URL)
	_, err := client.GetBulkData(context.Background())
	if err == nil {
		t.Fatal("Expected an error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.Details != "Invalid search syntax" {
		t.Errorf("Unexpected details: %q", apiErr.Details)
	}
}
