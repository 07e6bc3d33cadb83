package store

import (
	"context"
	"testing"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func intPtr(v int) *int { return &v }

func Test_Store_AppendAndRecent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, Feedback{Query: "return window?", Answer: "30 days", Rating: intPtr(RatingUp)}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(ctx, Feedback{Query: "warranty?", Answer: "one year", Rating: intPtr(RatingDown), Comment: "too vague"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 entries, got %d", len(got))
	}
	// Newest first.
	if got[0].Query != "warranty?" || got[0].Comment != "too vague" {
		t.Errorf("entry[0]: got %+v", got[0])
	}
	if got[0].Rating == nil || *got[0].Rating != RatingDown {
		t.Errorf("entry[0] rating: got %v", got[0].Rating)
	}
	if got[1].Query != "return window?" {
		t.Errorf("entry[1]: got %+v", got[1])
	}
}

func Test_Store_NilRatingRoundTrips(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, Feedback{Query: "q", Answer: "a", Comment: "comment only"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, err := s.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("want 1 entry, got %d", len(got))
	}
	if got[0].Rating != nil {
		t.Errorf("rating: want nil, got %v", *got[0].Rating)
	}
}

func Test_Store_RecentLimitRespected(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for range 6 {
		if err := s.Append(ctx, Feedback{Query: "q", Answer: "a", Rating: intPtr(RatingUp)}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := s.Recent(ctx, 4)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 4 {
		t.Errorf("want 4 entries, got %d", len(got))
	}
}

func Test_Store_Count(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("empty store count = %d", n)
	}

	for range 3 {
		if err := s.Append(ctx, Feedback{Query: "q", Answer: "a"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	n, err = s.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
}

func Test_Store_EmptyReturnsNil(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	got, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent empty: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("want 0 entries, got %d", len(got))
	}
}
