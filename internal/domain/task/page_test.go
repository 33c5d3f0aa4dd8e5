package task

import "testing"

func TestQuery_CacheKey(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  string
	}{
		{
			name:  "all statuses",
			query: Query{Page: 1, Size: 12}.Normalize(),
			want:  "tasks:page:all:1:12:created_at:desc",
		},
		{
			name:  "status filter",
			query: Query{Status: StatusOpen, Page: 2, Size: 10}.Normalize(),
			want:  "tasks:page:OPEN:2:10:created_at:desc",
		},
		{
			name:  "search term included",
			query: Query{Page: 1, Size: 10, TitleContains: "report"}.Normalize(),
			want:  "tasks:page:all:1:10:created_at:desc:report",
		},
		{
			name:  "ordering included",
			query: Query{Page: 1, Size: 10, OrderBy: "title", OrderDirection: "asc"}.Normalize(),
			want:  "tasks:page:all:1:10:title:asc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.query.CacheKey(); got != tt.want {
				t.Errorf("CacheKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQuery_Normalize(t *testing.T) {
	q := Query{Page: 0, Size: 500, OrderBy: "bogus", OrderDirection: "UP"}.Normalize()

	if q.Page != 1 {
		t.Errorf("Page = %d, want 1", q.Page)
	}
	if q.Size != MaxPageSize {
		t.Errorf("Size = %d, want %d", q.Size, MaxPageSize)
	}
	if q.OrderBy != DefaultOrderBy {
		t.Errorf("OrderBy = %q, want %q", q.OrderBy, DefaultOrderBy)
	}
	if q.OrderDirection != DefaultOrderDir {
		t.Errorf("OrderDirection = %q, want %q", q.OrderDirection, DefaultOrderDir)
	}
}

func TestQuery_Matches(t *testing.T) {
	all := Query{}
	if !all.Matches(StatusDone) {
		t.Error("empty filter should match every status")
	}

	open := Query{Status: StatusOpen}
	if !open.Matches(StatusOpen) {
		t.Error("OPEN filter should match OPEN")
	}
	if open.Matches(StatusDone) {
		t.Error("OPEN filter should not match DONE")
	}
}

func TestPage_Pages(t *testing.T) {
	tests := []struct {
		total, size, want int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 12, 3},
	}

	for _, tt := range tests {
		p := Page{Total: tt.total, Size: tt.size}
		if got := p.Pages(); got != tt.want {
			t.Errorf("Pages() with total=%d size=%d = %d, want %d", tt.total, tt.size, got, tt.want)
		}
	}
}

func TestPage_IndexOf(t *testing.T) {
	p := Page{Items: []Task{{ID: 1}, {ID: 2}, {ID: 3}}}

	if got := p.IndexOf(2); got != 1 {
		t.Errorf("IndexOf(2) = %d, want 1", got)
	}
	if got := p.IndexOf(9); got != -1 {
		t.Errorf("IndexOf(9) = %d, want -1", got)
	}
}

func TestStatusCounts_Add_Clamps(t *testing.T) {
	var c StatusCounts

	c.Add(StatusOpen, -1)
	if c.Open != 0 || c.Total != 0 {
		t.Errorf("counts went negative: %+v", c)
	}

	c.Add(StatusOpen, 1)
	c.Add(StatusDone, 1)
	if c.Open != 1 || c.Done != 1 || c.Total != 2 {
		t.Errorf("counts after increments: %+v", c)
	}

	c.Add(StatusInProgress, -5)
	if c.InProgress != 0 {
		t.Errorf("InProgress = %d, want 0", c.InProgress)
	}
	if c.Total != 0 {
		t.Errorf("Total = %d, want clamped 0", c.Total)
	}
}

func TestStatusCounts_Add_UnknownStatusIgnored(t *testing.T) {
	var c StatusCounts
	c.Add(Status("SHIPPED"), 1)
	if c.Total != 0 {
		t.Errorf("unknown status mutated total: %+v", c)
	}
}
