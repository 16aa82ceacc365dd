package data

import (
	"context"
	"testing"
	"time"
)

type fakeEventSource struct {
	pages [][]byte
}

func (f *fakeEventSource) FetchEvents(ctx context.Context, program, orgUnit string, start, end time.Time, page, pageSize int) ([]byte, bool, error) {
	idx := page - 1
	if idx >= len(f.pages) {
		return nil, false, nil
	}
	return f.pages[idx], idx < len(f.pages)-1, nil
}

type fakeEventDestination struct {
	chunks [][]any
}

func (f *fakeEventDestination) ImportEvents(ctx context.Context, payload any) ([]byte, error) {
	m := payload.(map[string]any)
	f.chunks = append(f.chunks, m["events"].([]any))
	return []byte(`{"response":{"typeReports":[{"stats":{"created":1,"updated":0,"ignored":0,"deleted":0}}]}}`), nil
}

func TestSyncEvents_PagesThenChunks(t *testing.T) {
	src := &fakeEventSource{pages: [][]byte{
		[]byte(`{"events":[{"e":1},{"e":2}]}`),
		[]byte(`{"events":[{"e":3}]}`),
	}}
	dst := &fakeEventDestination{}

	result := SyncEvents(context.Background(), src, dst, EventRequest{
		Programs:  []string{"progA"},
		OrgUnits:  []string{"ouA"},
		ChunkSize: 2,
	})
	if result.Err != nil {
		t.Fatalf("sync events: %v", result.Err)
	}
	total := 0
	for _, c := range dst.chunks {
		total += len(c)
	}
	if total != 3 {
		t.Fatalf("expected 3 events total, got %d", total)
	}
}

func TestSyncEvents_DefaultsStartDate(t *testing.T) {
	if DefaultEventStartDate.Year() != 2020 {
		t.Fatalf("expected default start year 2020, got %d", DefaultEventStartDate.Year())
	}
}
