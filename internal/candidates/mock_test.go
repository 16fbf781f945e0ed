package candidates

import (
	"context"
	"reflect"
	"testing"
)

func TestMockSourceRanksByTermOverlap(t *testing.T) {
	source := NewMockSource()

	records, err := source.Query(context.Background(), "Python AWS Kubernetes", 10, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) == 0 {
		t.Fatal("expected matches for common skills")
	}

	if records[0].ID != "mock-001" {
		t.Fatalf("expected the full match first, got %s", records[0].ID)
	}
	for i := 1; i < len(records); i++ {
		prev, cur := records[i-1], records[i]
		if cur.RetrievalScore > prev.RetrievalScore {
			t.Fatalf("records not sorted by score: %s (%.2f) after %s (%.2f)",
				cur.ID, cur.RetrievalScore, prev.ID, prev.RetrievalScore)
		}
		if cur.RetrievalScore == prev.RetrievalScore && cur.ID < prev.ID {
			t.Fatalf("tied records not sorted by id: %s after %s", cur.ID, prev.ID)
		}
	}
}

func TestMockSourceExcludesNonMatching(t *testing.T) {
	source := NewMockSource()

	records, err := source.Query(context.Background(), "Kafka Spark", 10, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, record := range records {
		if record.ID == "mock-006" {
			t.Fatalf("expected the manager fixture to be filtered out, got %+v", record)
		}
	}
}

func TestMockSourceDeterministic(t *testing.T) {
	source := NewMockSource()

	first, err := source.Query(context.Background(), "Go Terraform monitoring", 10, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := source.Query(context.Background(), "Go Terraform monitoring", 10, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("expected identical results for identical queries")
	}
}

func TestMockSourceTopK(t *testing.T) {
	source := NewMockSource()

	records, err := source.Query(context.Background(), "Python", 2, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) > 2 {
		t.Fatalf("expected at most 2 records, got %d", len(records))
	}
}

func TestMockSourceNoMatches(t *testing.T) {
	source := NewMockSource()

	records, err := source.Query(context.Background(), "underwater basket weaving", 10, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no matches, got %d", len(records))
	}
}
