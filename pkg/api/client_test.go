package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientListProjects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/project" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"objects": []map[string]string{
				{"id": "p1", "name": "alpha"},
				{"id": "p2", "name": "beta"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, APIKey: "test-key"})
	projects, err := client.ListProjects(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(projects) != 2 || projects[1].Name != "beta" {
		t.Errorf("unexpected projects: %v", projects)
	}
}

func TestClientListEntitiesBuildsQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/experiment" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("project_id"); got != "proj 1" {
			t.Errorf("project_id = %q, want %q", got, "proj 1")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"objects": []map[string]string{{"id": "e1", "name": "run"}},
		})
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, APIKey: "k"})
	entities, err := client.ListEntities(context.Background(), KindExperiment, "proj 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entities) != 1 || entities[0].ID != "e1" {
		t.Errorf("unexpected entities: %v", entities)
	}
}

func TestClientFetchPageSendsLimitAndCursor(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v1/dataset/ds1/fetch" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"events": []map[string]any{{"id": "r1"}},
			"cursor": "tok",
		})
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, APIKey: "k", PageLimit: 500})
	page, err := client.FetchPage(context.Background(), KindDataset, "ds1", "prev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotBody["limit"] != float64(500) {
		t.Errorf("limit = %v, want 500", gotBody["limit"])
	}
	if gotBody["cursor"] != "prev" {
		t.Errorf("cursor = %v, want prev", gotBody["cursor"])
	}
	if page.Cursor != "tok" || len(page.Records) != 1 {
		t.Errorf("unexpected page: %+v", page)
	}
}

func TestClientFetchPageOmitsEmptyCursor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if _, present := body["cursor"]; present {
			t.Error("first page request must not carry a cursor")
		}
		json.NewEncoder(w).Encode(map[string]any{"events": []map[string]any{}})
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, APIKey: "k"})
	if _, err := client.FetchPage(context.Background(), KindExperiment, "e1", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClientSurfacesStatusAndHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("slow down"))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, APIKey: "k"})
	_, err := client.ListProjects(context.Background())

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected *RequestError, got %T", err)
	}
	if reqErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", reqErr.StatusCode)
	}
	if reqErr.RetryAfter() != 7*time.Second {
		t.Errorf("RetryAfter = %v, want 7s", reqErr.RetryAfter())
	}
	if reqErr.Message != "slow down" {
		t.Errorf("Message = %q, want body text", reqErr.Message)
	}
}

func TestClientDecodeFailureIsNotARequestError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected":"shape"}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, APIKey: "k"})
	_, err := client.ListProjects(context.Background())

	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected *DecodeError, got %v", err)
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		t.Error("decode failures must not classify as request errors")
	}
}

func TestClientTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	client := NewClient(ClientConfig{BaseURL: server.URL, APIKey: "k"})
	_, err := client.ListProjects(context.Background())

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected *RequestError, got %T", err)
	}
	if reqErr.StatusCode != 0 {
		t.Errorf("transport failures carry no status, got %d", reqErr.StatusCode)
	}
}
