package review

import (
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/lehigh-university-libraries/imagereview/internal/analysis"
	"github.com/lehigh-university-libraries/imagereview/internal/models"
)

func makeDataset(analyses ...string) *models.Dataset {
	ds := &models.Dataset{Mapping: models.DefaultColumnMapping()}
	for i, a := range analyses {
		ds.Rows = append(ds.Rows, models.Row{
			Key:      strconv.Itoa(i),
			Position: i,
			ImageURL: fmt.Sprintf("https://img.example.com/%d.jpg", i),
			Analysis: a,
		})
	}
	return ds
}

func repeat(n int, analysis string) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = analysis
	}
	return out
}

func TestSession_Pagination(t *testing.T) {
	s := NewSession(makeDataset(repeat(25, `{"type":"plate"}`)...), WithPageSize(10))

	if s.TotalPages() != 3 {
		t.Fatalf("TotalPages() = %d, want 3", s.TotalPages())
	}

	tests := []struct {
		name string
		op   func() int
		want int
	}{
		{name: "prev at first page is a no-op", op: s.Prev, want: 0},
		{name: "next", op: s.Next, want: 1},
		{name: "last", op: s.Last, want: 2},
		{name: "next at last page is a no-op", op: s.Next, want: 2},
		{name: "set page beyond range clamps", op: func() int { return s.SetPage(99) }, want: 2},
		{name: "negative page clamps", op: func() int { return s.SetPage(-4) }, want: 0},
		{name: "set page", op: func() int { return s.SetPage(1) }, want: 1},
		{name: "first", op: s.First, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op(); got != tt.want {
				t.Errorf("page = %d, want %d", got, tt.want)
			}
			if s.Page() != tt.want {
				t.Errorf("Page() = %d, want %d", s.Page(), tt.want)
			}
		})
	}

	s.Last()
	if got := len(s.VisibleRows()); got != 5 {
		t.Errorf("last page has %d rows, want 5", got)
	}
}

func TestSession_DefaultPageSize(t *testing.T) {
	s := NewSession(makeDataset(repeat(50, "")...))
	if s.TotalPages() != 1 {
		t.Errorf("TotalPages() = %d, want 1", s.TotalPages())
	}
	if s.Next() != 0 {
		t.Error("Next() on single page should stay on page 0")
	}

	empty := NewSession(&models.Dataset{})
	if empty.TotalPages() != 1 || len(empty.VisibleRows()) != 0 {
		t.Error("empty dataset should have one empty page")
	}
}

func TestSession_Filter(t *testing.T) {
	s := NewSession(makeDataset(
		`{"type":"plate"}`,
		"```json\n{\"type\":[\"Signboard\",\"other\"]}\n```",
		"not json at all",
		"",
		`{"type":"other"}`,
	))

	tests := []struct {
		name   string
		filter []string
		want   []string
	}{
		{name: "empty filter shows everything", filter: nil, want: []string{"0", "1", "2", "3", "4"}},
		{name: "single tag", filter: []string{"plate"}, want: []string{"0"}},
		{name: "case insensitive", filter: []string{"SIGNBOARD"}, want: []string{"1"}},
		{name: "any tag matches", filter: []string{"plate", "other"}, want: []string{"0", "1", "4"}},
		{name: "no matches", filter: []string{"tree"}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.SetFilter(tt.filter)
			rows := s.VisibleRows()
			if len(rows) != len(tt.want) {
				t.Fatalf("got %d rows, want %d", len(rows), len(tt.want))
			}
			for i, r := range rows {
				if r.Key != tt.want[i] {
					t.Errorf("rows[%d] = %s, want %s", i, r.Key, tt.want[i])
				}
			}
		})
	}

	tags := s.AvailableTags()
	want := []string{"other", "plate", "signboard"}
	if fmt.Sprint(tags) != fmt.Sprint(want) {
		t.Errorf("AvailableTags() = %v, want %v", tags, want)
	}
}

func TestSession_SelectionSurvivesFilterAndPaging(t *testing.T) {
	s := NewSession(makeDataset(repeat(12, `{"type":"plate"}`)...), WithPageSize(5))

	for _, key := range []string{"2", "5", "9"} {
		if err := s.ToggleIncluded(key, true); err != nil {
			t.Fatal(err)
		}
	}
	s.Next()
	s.SetFilter([]string{"signboard"})
	if s.Page() != 1 {
		t.Errorf("SetFilter reset page to %d", s.Page())
	}
	s.SetFilter(nil)
	s.Last()

	included := s.Included()
	if len(included) != 3 {
		t.Fatalf("Included() returned %d rows, want 3", len(included))
	}
	for i, key := range []string{"2", "5", "9"} {
		if included[i].Key != key {
			t.Errorf("included[%d] = %s, want %s", i, included[i].Key, key)
		}
	}

	if err := s.ToggleIncluded("5", false); err != nil {
		t.Fatal(err)
	}
	sel := s.Selection()
	if len(sel) != 2 || !sel["2"] || !sel["9"] {
		t.Errorf("Selection() = %v", sel)
	}
}

func TestSession_ToggleUnknownRow(t *testing.T) {
	s := NewSession(makeDataset("a"))
	if err := s.ToggleIncluded("missing", true); !errors.Is(err, ErrUnknownRow) {
		t.Errorf("expected ErrUnknownRow, got %v", err)
	}
}

func TestSession_FailureRowsKeepRawText(t *testing.T) {
	failure := analysis.FailurePrefix + `received non-200 status code: 401 - {"error":{"message":"bad key"}}`
	s := NewSession(makeDataset(failure, `{"type":"plate"}`))

	rows := s.VisibleRows()
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Parsed != nil {
		t.Errorf("failure row parsed as analysis: %+v", rows[0].Parsed)
	}
	if rows[0].Analysis != failure {
		t.Errorf("Analysis = %q, want the failure text", rows[0].Analysis)
	}
	if rows[1].Parsed == nil {
		t.Error("expected the plate row to parse")
	}
}
