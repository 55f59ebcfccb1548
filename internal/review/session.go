package review

import (
	"errors"
	"sort"
	"sync"

	"github.com/lehigh-university-libraries/imagereview/internal/analysis"
	"github.com/lehigh-university-libraries/imagereview/internal/models"
)

// PageSize is the number of rows shown per page
const PageSize = 50

// ErrUnknownRow is returned when a row key is not in the dataset
var ErrUnknownRow = errors.New("unknown row")

// VisibleRow is a row as shown to the reviewer. Parsed is nil when the row
// has no analysis or the analysis is not valid JSON.
type VisibleRow struct {
	models.Row
	Parsed *analysis.Parsed `json:"parsed,omitempty"`
}

// Option configures a Session
type Option func(*Session)

// WithPageSize overrides PageSize
func WithPageSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// Session holds the state of one review: the loaded dataset, the current
// page, the included flags and the active tag filter. All methods are safe
// for concurrent use.
type Session struct {
	mu       sync.RWMutex
	dataset  *models.Dataset
	parsed   []*analysis.Parsed
	index    map[string]int
	page     int
	pageSize int
	filter   []string
}

// NewSession starts a review of ds on page 0 with an empty filter. Included
// flags already set on the rows are kept.
func NewSession(ds *models.Dataset, opts ...Option) *Session {
	s := &Session{
		dataset:  ds,
		pageSize: PageSize,
		index:    make(map[string]int, len(ds.Rows)),
		parsed:   make([]*analysis.Parsed, len(ds.Rows)),
	}
	for _, opt := range opts {
		opt(s)
	}

	for i, row := range ds.Rows {
		s.index[row.Key] = i
		if row.HasAnalysis() {
			if p, ok := analysis.Parse(row.Analysis); ok {
				s.parsed[i] = p
			}
		}
	}
	return s
}

// Dataset returns the reviewed dataset. Rows reflect the current flags.
func (s *Session) Dataset() *models.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ds := *s.dataset
	ds.Rows = append([]models.Row(nil), s.dataset.Rows...)
	return &ds
}

func (s *Session) PageSize() int {
	return s.pageSize
}

// Page returns the zero-based current page
func (s *Session) Page() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page
}

// TotalPages is never less than one, so an empty filter result still has a
// page 0 to stand on
func (s *Session) TotalPages() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalPages()
}

func (s *Session) totalPages() int {
	n := len(s.dataset.Rows)
	return max(1, (n+s.pageSize-1)/s.pageSize)
}

// SetPage moves to page n clamped into [0, TotalPages-1]
func (s *Session) SetPage(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setPage(n)
}

func (s *Session) setPage(n int) int {
	s.page = min(max(n, 0), s.totalPages()-1)
	return s.page
}

func (s *Session) First() int {
	return s.SetPage(0)
}

func (s *Session) Prev() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setPage(s.page - 1)
}

func (s *Session) Next() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setPage(s.page + 1)
}

func (s *Session) Last() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setPage(s.totalPages() - 1)
}

// ToggleIncluded sets the included flag of exactly one row
func (s *Session) ToggleIncluded(key string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[key]
	if !ok {
		return ErrUnknownRow
	}
	s.dataset.Rows[i].Included = value
	return nil
}

// SetFilter replaces the active filter. Page and flags are left alone.
func (s *Session) SetFilter(tags []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = analysis.NormalizeTags(tags)
}

func (s *Session) Filter() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.filter...)
}

// VisibleRows filters the dataset by the active tags and returns the current
// page of the result. Rows whose analysis cannot be parsed never match a
// non-empty filter.
func (s *Session) VisibleRows() []VisibleRow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []VisibleRow
	for i, row := range s.dataset.Rows {
		p := s.parsed[i]
		if len(s.filter) > 0 && (p == nil || !p.Type.Intersects(s.filter)) {
			continue
		}
		matched = append(matched, VisibleRow{Row: row, Parsed: p})
	}

	start := min(s.page*s.pageSize, len(matched))
	end := min(start+s.pageSize, len(matched))
	return matched[start:end]
}

// AvailableTags is the sorted union of tags found in parsed analyses
func (s *Session) AvailableTags() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, p := range s.parsed {
		if p == nil {
			continue
		}
		for _, tag := range p.Type {
			seen[tag] = struct{}{}
		}
	}

	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Included returns the flagged rows in dataset order
func (s *Session) Included() []models.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []models.Row
	for _, row := range s.dataset.Rows {
		if row.Included {
			rows = append(rows, row)
		}
	}
	return rows
}

// Selection returns the included flags keyed by row key, for carrying over
// into a reload
func (s *Session) Selection() models.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sel := make(models.Selection)
	for _, row := range s.dataset.Rows {
		if row.Included {
			sel[row.Key] = true
		}
	}
	return sel
}
