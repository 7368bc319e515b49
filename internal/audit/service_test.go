package audit

import (
	"context"
	"strings"
	"testing"
	"time"

	_ "github.com/vantage-admin/vantage-admin/internal/testing/guard"
)

type stubRepo struct {
	entries    []Entry
	lastOffset int
	lastLimit  int
}

func (s *stubRepo) Window(ctx context.Context, filters Filters, offset, limit int) ([]Entry, error) {
	s.lastOffset = offset
	s.lastLimit = limit
	if offset >= len(s.entries) {
		return []Entry{}, nil
	}
	end := offset + limit
	if end > len(s.entries) {
		end = len(s.entries)
	}
	return s.entries[offset:end], nil
}

func (s *stubRepo) All(ctx context.Context, filters Filters) ([]Entry, error) {
	return s.entries, nil
}

func makeEntries(n int) []Entry {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	out := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Entry{
			At:       base.Add(-time.Duration(i) * time.Minute),
			ActorID:  int64(i%3 + 1),
			Action:   "PERMISSION_GRANT",
			Entity:   "role_grants",
			EntityID: "1:10:100",
		})
	}
	return out
}

func TestTimelinePaging(t *testing.T) {
	repo := &stubRepo{entries: makeEntries(25)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), Filters{})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(result.Rows) != defaultPageSize {
		t.Fatalf("expected %d rows, got %d", defaultPageSize, len(result.Rows))
	}
	if !result.Paging.HasNext || result.Paging.NextPage != 2 {
		t.Fatalf("expected next page, got %+v", result.Paging)
	}
	if repo.lastLimit != defaultPageSize+1 {
		t.Fatalf("expected limit %d for lookahead, got %d", defaultPageSize+1, repo.lastLimit)
	}

	result, err = svc.Timeline(context.Background(), Filters{Page: 2})
	if err != nil {
		t.Fatalf("timeline page 2: %v", err)
	}
	if len(result.Rows) != 5 {
		t.Fatalf("expected 5 rows on final page, got %d", len(result.Rows))
	}
	if result.Paging.HasNext {
		t.Fatal("final page must not report a next page")
	}
	if result.Paging.PrevPage != 1 {
		t.Fatalf("expected prev page 1, got %d", result.Paging.PrevPage)
	}
	if repo.lastOffset != defaultPageSize {
		t.Fatalf("expected offset %d, got %d", defaultPageSize, repo.lastOffset)
	}
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &stubRepo{entries: makeEntries(5)}
	svc := NewService(repo)

	if _, err := svc.Timeline(context.Background(), Filters{PageSize: 500}); err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if repo.lastLimit != maxPageSize+1 {
		t.Fatalf("expected clamped limit %d, got %d", maxPageSize+1, repo.lastLimit)
	}
}

func TestExportCSV(t *testing.T) {
	repo := &stubRepo{entries: makeEntries(2)}
	svc := NewService(repo)

	data, err := svc.ExportCSV(context.Background(), Filters{})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "at,actor_id,action,entity,entity_id" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if !strings.Contains(lines[1], "PERMISSION_GRANT") {
		t.Fatalf("unexpected row: %q", lines[1])
	}
}
