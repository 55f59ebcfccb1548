package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/lehigh-university-libraries/imagereview/internal/models"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds simultaneous image analyses during a load
const DefaultConcurrency = 4

// ImageAnalyzer produces the analysis text attached to a row
type ImageAnalyzer interface {
	Analyze(ctx context.Context, imageURL string) string
}

// Loader validates source tables and attaches analyses
type Loader struct {
	analyzer    ImageAnalyzer
	concurrency int
}

// NewLoader creates a Loader. concurrency below 1 means DefaultConcurrency.
func NewLoader(analyzer ImageAnalyzer, concurrency int) *Loader {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Loader{
		analyzer:    analyzer,
		concurrency: concurrency,
	}
}

// LoadAndValidate checks that every mapped column exists, keeps the first
// MaxRows rows, analyzes each non-empty image URL and carries included flags
// over from prior by row key. New rows start excluded.
func (l *Loader) LoadAndValidate(ctx context.Context, source string, table *Table, mapping models.ColumnMapping, prior models.Selection) (*models.Dataset, error) {
	if table == nil || len(table.Rows) == 0 {
		return nil, ErrEmptySource
	}

	cols, err := resolveColumns(table, mapping)
	if err != nil {
		return nil, err
	}

	n := min(len(table.Rows), models.MaxRows)
	if len(table.Rows) > n {
		slog.Info("Truncating source", "source", source, "rows", len(table.Rows), "kept", n)
	}

	rows := make([]models.Row, n)
	for i := range n {
		rows[i] = models.Row{
			Position: i,
			URL:      table.Cell(i, cols[models.RoleURL]),
			ImageURL: table.Cell(i, cols[models.RoleImage]),
			PlaceID:  table.Cell(i, cols[models.RolePlaceID]),
			RowID:    table.Cell(i, cols[models.RoleID]),
		}
	}
	assignKeys(rows)

	for i := range rows {
		if prior != nil {
			rows[i].Included = prior[rows[i].Key]
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i := range rows {
		if rows[i].ImageURL == "" {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows[i].Analysis = l.analyzer.Analyze(gctx, rows[i].ImageURL)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load cancelled: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("load cancelled: %w", err)
	}

	return &models.Dataset{
		Source:     source,
		Mapping:    mapping,
		Rows:       rows,
		SourceRows: len(table.Rows),
		LoadedAt:   time.Now(),
	}, nil
}

func resolveColumns(table *Table, mapping models.ColumnMapping) (map[models.Role]int, error) {
	cols := make(map[models.Role]int, len(models.Roles))
	missing := &MissingColumnsError{}
	for _, role := range models.Roles {
		name := mapping.Column(role)
		idx := table.ColumnIndex(name)
		if idx < 0 {
			missing.Roles = append(missing.Roles, role)
			missing.Columns = append(missing.Columns, name)
			continue
		}
		cols[role] = idx
	}
	if len(missing.Roles) > 0 {
		return nil, missing
	}
	return cols, nil
}

// assignKeys uses the ID value when it is present and unique across the kept
// rows, otherwise "#<position>"
func assignKeys(rows []models.Row) {
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		if r.RowID != "" {
			counts[r.RowID]++
		}
	}
	for i := range rows {
		if id := rows[i].RowID; id != "" && counts[id] == 1 && id[0] != '#' {
			rows[i].Key = id
			continue
		}
		rows[i].Key = "#" + strconv.Itoa(rows[i].Position)
	}
}
