package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/his-sync/replicator/internal/domain/autosync"
	"github.com/his-sync/replicator/internal/domain/job"
	"github.com/his-sync/replicator/internal/domain/syncconfig"
)

func TestStore_CreateAndGetConfiguration(t *testing.T) {
	s := New()
	ctx := context.Background()

	cfg, err := s.CreateConfiguration(ctx, syncconfig.SyncConfiguration{
		SourceID:      "src",
		DestinationID: "dst",
		SyncType:      syncconfig.SyncMetadata,
	})
	if err != nil {
		t.Fatalf("create configuration: %v", err)
	}
	if cfg.ID == "" {
		t.Fatal("expected generated ID")
	}
	if cfg.PageSize != syncconfig.DefaultPageSize {
		t.Fatalf("expected default page size, got %d", cfg.PageSize)
	}

	got, err := s.GetConfiguration(ctx, cfg.ID)
	if err != nil {
		t.Fatalf("get configuration: %v", err)
	}
	if got.SourceID != "src" {
		t.Fatalf("expected source src, got %s", got.SourceID)
	}
}

func TestStore_HasActiveJob(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.CreateJob(ctx, job.Job{ConfigurationID: "cfg1", Status: job.StatusRunning})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	active, err := s.HasActiveJob(ctx, "cfg1")
	if err != nil {
		t.Fatalf("has active job: %v", err)
	}
	if !active {
		t.Fatal("expected active job for cfg1")
	}

	active, err = s.HasActiveJob(ctx, "cfg2")
	if err != nil {
		t.Fatalf("has active job: %v", err)
	}
	if active {
		t.Fatal("expected no active job for cfg2")
	}
}

func TestStore_ListRetryable(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.CreateJob(ctx, job.Job{
		ConfigurationID: "cfg1",
		Status:          job.StatusFailed,
		RetryCount:      0,
		MaxRetries:      3,
		IsRetry:         false,
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	retryable, err := s.ListRetryable(ctx)
	if err != nil {
		t.Fatalf("list retryable: %v", err)
	}
	if len(retryable) != 1 {
		t.Fatalf("expected 1 retryable job, got %d", len(retryable))
	}
}

func TestStore_UpsertAutoSyncPreservesID(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, err := s.UpsertAutoSync(ctx, autosync.Settings{ConfigurationID: "cfg1", IsEnabled: true, CheckInterval: time.Minute})
	if err != nil {
		t.Fatalf("upsert auto sync: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected generated ID")
	}

	second, err := s.UpsertAutoSync(ctx, autosync.Settings{ConfigurationID: "cfg1", IsEnabled: false, CheckInterval: time.Minute})
	if err != nil {
		t.Fatalf("upsert auto sync again: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected ID to be preserved across upserts, got %s vs %s", second.ID, first.ID)
	}
}
