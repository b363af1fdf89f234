package pagination

import "testing"

func TestNormalize(t *testing.T) {
	p := Pagination{}.Normalize(10, 100)
	if p.Page != 1 || p.Limit != 10 {
		t.Fatalf("unexpected defaults %+v", p)
	}
	p = Pagination{Page: 3, Limit: 500}.Normalize(10, 100)
	if p.Limit != 100 {
		t.Fatalf("expected limit capped at 100, got %d", p.Limit)
	}
	if p.Offset() != 200 {
		t.Fatalf("expected offset 200, got %d", p.Offset())
	}
}

func TestNewMetadata(t *testing.T) {
	meta := NewMetadata(Pagination{Page: 2, Limit: 10}, 5, 25)
	if meta.TotalPage != 3 {
		t.Fatalf("expected 3 pages, got %d", meta.TotalPage)
	}
	if meta.Count != 5 || meta.Page != 2 || meta.TotalCount != 25 {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	if empty := NewMetadata(Pagination{Page: 1, Limit: 10}, 0, 0); empty.TotalPage != 0 {
		t.Fatalf("expected zero pages, got %d", empty.TotalPage)
	}
}

func TestWindow(t *testing.T) {
	tests := []struct {
		name       string
		p          Pagination
		n          int
		start, end int
	}{
		{"first page", Pagination{Page: 1, Limit: 10}, 25, 0, 10},
		{"last partial page", Pagination{Page: 3, Limit: 10}, 25, 20, 25},
		{"past the end", Pagination{Page: 4, Limit: 10}, 25, 25, 25},
		{"empty", Pagination{Page: 1, Limit: 10}, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := Window(tt.p, tt.n)
			if start != tt.start || end != tt.end {
				t.Fatalf("expected [%d,%d), got [%d,%d)", tt.start, tt.end, start, end)
			}
		})
	}
}
