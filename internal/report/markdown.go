package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/imagereview/internal/analysis"
	"github.com/lehigh-university-libraries/imagereview/internal/review"
	"github.com/nao1215/markdown"
)

const maxCell = 80

// Summary is what the analyze command prints for one page of a session
type Summary struct {
	Source     string
	SourceRows int
	Page       int
	TotalPages int
	Filter     []string
	Stats      analysis.Stats
	Rows       []review.VisibleRow
}

// WriteMarkdown renders s as a Markdown document
func WriteMarkdown(w io.Writer, s Summary) error {
	md := markdown.NewMarkdown(w)

	md.H1("Image Review")
	md.PlainText("")

	filter := "none"
	if len(s.Filter) > 0 {
		filter = strings.Join(s.Filter, ", ")
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Source", "`" + s.Source + "`"},
			{"Source rows", strconv.Itoa(s.SourceRows)},
			{"Page", strconv.Itoa(s.Page+1) + " of " + strconv.Itoa(s.TotalPages)},
			{"Filter", filter},
			{"Cache hits", strconv.FormatInt(s.Stats.CacheHits, 10)},
			{"External calls", strconv.FormatInt(s.Stats.ExternalCalls, 10)},
			{"Failures", strconv.FormatInt(s.Stats.Failures, 10)},
		},
	})
	md.PlainText("")

	md.H2("Rows")
	md.PlainText("")

	if len(s.Rows) == 0 {
		md.PlainText("No rows match the current filter.")
		return md.Build()
	}

	rows := make([][]string, 0, len(s.Rows))
	for _, r := range s.Rows {
		rows = append(rows, rowCells(r))
	}
	md.Table(markdown.TableSet{
		Header: []string{"Key", "Place", "Type", "Short description", "Alt"},
		Rows:   rows,
	})

	return md.Build()
}

func rowCells(r review.VisibleRow) []string {
	if r.Parsed == nil {
		// no image, or analysis that is not JSON: show what we have
		text := r.Analysis
		if text == "" {
			text = analysis.NotAvailable
		}
		return []string{r.Key, cell(r.PlaceID), analysis.NotAvailable, cell(text), analysis.NotAvailable}
	}
	return []string{
		r.Key,
		cell(r.PlaceID),
		cell(r.Parsed.TypeLabel()),
		cell(analysis.Display(r.Parsed.ShortDescription)),
		cell(analysis.Display(r.Parsed.Alt)),
	}
}

// cell flattens text for a table cell
func cell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ReplaceAll(s, "|", `\|`)
	if r := []rune(s); len(r) > maxCell {
		s = string(r[:maxCell-3]) + "..."
	}
	return s
}
