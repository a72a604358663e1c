package pagination

import "testing"

func TestNew(t *testing.T) {
	tests := []struct {
		page, limit         int
		wantPage, wantLimit int
		wantOffset          int
	}{
		{1, 10, 1, 10, 0},
		{3, 10, 3, 10, 20},
		{0, 0, 1, DefaultLimit, 0},
		{2, 500, 2, MaxLimit, MaxLimit},
	}
	for _, tt := range tests {
		p := New(tt.page, tt.limit)
		if p.Page != tt.wantPage || p.Limit != tt.wantLimit || p.Offset != tt.wantOffset {
			t.Errorf("New(%d,%d) = %+v", tt.page, tt.limit, p)
		}
	}
}

func TestNewMeta(t *testing.T) {
	m := NewMeta(New(2, 10), 25)
	if m.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", m.TotalPages)
	}
	if !m.HasNext || !m.HasPrev {
		t.Errorf("expected next and prev on page 2 of 3: %+v", m)
	}

	last := NewMeta(New(3, 10), 25)
	if last.HasNext {
		t.Error("last page should not have next")
	}
}
