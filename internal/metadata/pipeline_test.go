package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/his-sync/replicator/internal/domain/instance"
	"github.com/his-sync/replicator/internal/hisapi"
)

func TestSyncResource_SingleFamilyMetadata(t *testing.T) {
	// Mirrors spec.md §8's "Single-family metadata" scenario: source returns
	// 2 userRoles, 3 users, 1 userGroup against an empty destination.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "userRoles"):
			w.Write([]byte(`{"userRoles":[{"id":"r1","name":"Role1"},{"id":"r2","name":"Role2"}]}`))
		case strings.Contains(r.URL.Path, "userGroups"):
			w.Write([]byte(`{"userGroups":[{"id":"g1","name":"Group1"}]}`))
		case strings.Contains(r.URL.Path, "users"):
			w.Write([]byte(`{"users":[{"id":"u1"},{"id":"u2"},{"id":"u3"}]}`))
		case r.Method == http.MethodPost:
			w.Write([]byte(`{"response":{"importSummary":{"importCount":{"imported":3,"updated":0,"deleted":0,"ignored":0}}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := hisapi.New(instance.Instance{BaseURL: srv.URL, Username: "a", Password: "b"}, srv.Client(), nil)
	opts := SyncOptions{MergeMode: "merge", ImportStrategy: "create-and-update", PageSize: 50}

	result := SyncResource(context.Background(), client, client, "userRoles", opts, nil)
	if result.Err != nil {
		t.Fatalf("sync userRoles: %v", result.Err)
	}
	if result.SourceCount != 2 {
		t.Fatalf("expected source count 2, got %d", result.SourceCount)
	}

	result = SyncResource(context.Background(), client, client, "users", opts, nil)
	if result.Err != nil {
		t.Fatalf("sync users: %v", result.Err)
	}
	if result.SourceCount != 3 {
		t.Fatalf("expected source count 3, got %d", result.SourceCount)
	}
}

func TestSyncResource_UnknownResource(t *testing.T) {
	result := SyncResource(context.Background(), nil, nil, "not-a-resource", SyncOptions{}, nil)
	if result.Err == nil {
		t.Fatal("expected error for unknown resource")
	}
}
