package dataset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lehigh-university-libraries/imagereview/internal/models"
)

// ErrEmptySource is returned when the source table has no data rows
var ErrEmptySource = errors.New("source table is empty")

// ErrUnsupportedFormat is returned for sources that are not xlsx, csv or parquet
var ErrUnsupportedFormat = errors.New("unsupported source format")

// MissingColumnsError lists every role whose column was not found
type MissingColumnsError struct {
	Roles   []models.Role
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing columns: %s", strings.Join(e.Columns, ", "))
}

// SourceStatusError is returned when fetching a remote source does not
// return 200
type SourceStatusError struct {
	URL        string
	StatusCode int
}

func (e *SourceStatusError) Error() string {
	return fmt.Sprintf("failed to fetch source %s: HTTP %d", e.URL, e.StatusCode)
}
