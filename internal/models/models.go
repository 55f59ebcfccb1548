package models

import "time"

// MaxRows is the hard cap on rows kept from a source table
const MaxRows = 50

// Role is one of the four semantic columns every source must provide
type Role string

const (
	RoleURL     Role = "url"
	RoleImage   Role = "image"
	RolePlaceID Role = "place_id"
	RoleID      Role = "id"
)

// Roles lists the required roles in their canonical order
var Roles = []Role{RoleURL, RoleImage, RolePlaceID, RoleID}

// ColumnMapping assigns a source column name to each role
type ColumnMapping struct {
	URL     string `json:"url" yaml:"url" toml:"url"`
	Image   string `json:"image" yaml:"image" toml:"image"`
	PlaceID string `json:"place_id" yaml:"place_id" toml:"place_id"`
	ID      string `json:"id" yaml:"id" toml:"id"`
}

// DefaultColumnMapping returns the column names used by the place sheets
func DefaultColumnMapping() ColumnMapping {
	return ColumnMapping{
		URL:     "URL",
		Image:   "ImageURL",
		PlaceID: "GooglePlaceID",
		ID:      "ID",
	}
}

// Column returns the source column name for a role
func (m ColumnMapping) Column(role Role) string {
	switch role {
	case RoleURL:
		return m.URL
	case RoleImage:
		return m.Image
	case RolePlaceID:
		return m.PlaceID
	case RoleID:
		return m.ID
	default:
		return ""
	}
}

// Row is a single reviewable record
type Row struct {
	Key      string `json:"key"`
	Position int    `json:"position"`
	URL      string `json:"url"`
	ImageURL string `json:"image_url"`
	PlaceID  string `json:"place_id"`
	RowID    string `json:"row_id"`
	Analysis string `json:"analysis,omitempty"` // empty when the row has no image
	Included bool   `json:"included"`
}

// HasAnalysis reports whether an analysis was attached at load time
func (r Row) HasAnalysis() bool {
	return r.Analysis != ""
}

// Dataset is a validated, truncated table ready for review
type Dataset struct {
	Source     string        `json:"source"`
	Mapping    ColumnMapping `json:"mapping"`
	Rows       []Row         `json:"rows"`
	SourceRows int           `json:"source_rows"`
	LoadedAt   time.Time     `json:"loaded_at"`
}

// Selection maps row keys to their included flag
type Selection map[string]bool
