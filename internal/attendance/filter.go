package attendance

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"golang.org/x/text/cases"
)

// GlobPrefix marks a search term as a glob pattern, as in "glob:pedro*ñez"
const GlobPrefix = "glob:"

// Filter selects the rows shown in a view
type Filter struct {
	// Search is matched case-insensitively against the concatenated name fields as a
	// substring; every character is literal. Leading and trailing spaces are ignored.
	// A term starting with GlobPrefix is matched as a glob (*, ?, [...]) instead.
	Search string

	// Status keeps only rows whose effective status equals it. Empty keeps every row.
	Status Status
}

// IsZero reports whether the filter lets every row through
func (f Filter) IsZero() bool {
	return strings.TrimSpace(f.Search) == "" && f.Status == ""
}

// matcher is a compiled Filter. It owns its Caser, which is not safe for concurrent use.
type matcher struct {
	status Status
	caser  cases.Caser
	term   string
	glob   glob.Glob
}

func (f Filter) compile() (*matcher, error) {
	m := &matcher{
		status: f.Status,
		caser:  cases.Fold(),
	}
	term := strings.TrimSpace(f.Search)
	pattern, isGlob := strings.CutPrefix(term, GlobPrefix)
	if isGlob {
		term = strings.TrimSpace(pattern)
	}
	if term == "" {
		return m, nil
	}
	m.term = m.caser.String(term)
	if isGlob {
		g, err := glob.Compile("*" + m.term + "*")
		if err != nil {
			return nil, fmt.Errorf("invalid search pattern %q: %w", f.Search, err)
		}
		m.glob = g
	}
	return m, nil
}

func (m *matcher) match(row Row) bool {
	if m.status != "" && row.Effective != m.status {
		return false
	}
	if m.term == "" {
		return true
	}
	haystack := m.caser.String(row.searchText())
	if m.glob != nil {
		return m.glob.Match(haystack)
	}
	return strings.Contains(haystack, m.term)
}

// Visible returns the rows that pass the filter, preserving order
func Visible(rows []Row, filter Filter) ([]Row, error) {
	if filter.IsZero() {
		return rows, nil
	}
	m, err := filter.compile()
	if err != nil {
		return nil, err
	}
	visible := make([]Row, 0, len(rows))
	for _, row := range rows {
		if m.match(row) {
			visible = append(visible, row)
		}
	}
	return visible, nil
}
