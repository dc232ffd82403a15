// Package report renders attendance, quorum and voting results as text tables.
package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/quorumdesk/quorumdesk/internal/attendance"
	"github.com/quorumdesk/quorumdesk/internal/voting"
)

// DefaultLanguage is used for number formatting when none is configured
var DefaultLanguage = language.Spanish

// PendingMark flags rows with an unsaved edit
const PendingMark = "*"

// Writer renders tables with locale-aware numbers
type Writer struct {
	w io.Writer
	p *message.Printer
}

// Option configures a Writer
type Option func(*Writer)

// WithLanguage sets the locale used to format numbers
func WithLanguage(tag language.Tag) Option {
	return func(r *Writer) {
		r.p = message.NewPrinter(tag)
	}
}

// New creates a Writer on w
func New(w io.Writer, opts ...Option) *Writer {
	r := &Writer{
		w: w,
		p: message.NewPrinter(DefaultLanguage),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ParseLanguage parses a BCP 47 tag, falling back to DefaultLanguage when value is empty
func ParseLanguage(value string) (language.Tag, error) {
	if value == "" {
		return DefaultLanguage, nil
	}
	tag, err := language.Parse(value)
	if err != nil {
		return language.Und, fmt.Errorf("invalid language %q: %w", value, err)
	}
	return tag, nil
}

// Number formats n with the grouping of the configured locale
func (r *Writer) Number(n int64) string {
	return r.p.Sprintf("%d", n)
}

// Percent formats a percentage with one decimal
func (r *Writer) Percent(v float64) string {
	return r.p.Sprintf("%.1f%%", v)
}

// Attendance writes one line per row. Rows with a pending edit are flagged.
func (r *Writer) Attendance(rows []attendance.Row) error {
	table := tablewriter.NewTable(r.w)
	table.Header("ID", "Nombre", "Acciones", "Estado", "")
	for _, row := range rows {
		pending := ""
		if row.Pending {
			pending = PendingMark
		}
		if err := table.Append(
			strconv.FormatInt(row.ID, 10),
			row.DisplayName(),
			r.Number(row.Shares),
			string(row.Effective),
			pending,
		); err != nil {
			return fmt.Errorf("failed to add row %d: %w", row.ID, err)
		}
	}
	return table.Render()
}

// Summary writes the counts and shares per status followed by the quorum indicator
func (r *Writer) Summary(summary attendance.Summary, quorum attendance.QuorumResult) error {
	table := tablewriter.NewTable(r.w)
	table.Header("Estado", "Cantidad", "%", "Acciones")
	for _, status := range attendance.AllStatuses {
		if err := table.Append(
			string(status),
			r.Number(int64(summary.Count(status))),
			r.Percent(summary.Percent(status)),
			r.Number(summary.SharesOf(status)),
		); err != nil {
			return fmt.Errorf("failed to add summary of %s: %w", status, err)
		}
	}
	table.Footer("Total", r.Number(int64(summary.Total)), "", r.Number(summary.TotalShares))
	if err := table.Render(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(r.w, "%s\n%s\n", summary.String(), r.Quorum(quorum))
	return err
}

// Quorum renders the quorum indicator with localized numbers
func (r *Writer) Quorum(q attendance.QuorumResult) string {
	state := "no alcanzado"
	if q.Met {
		state = "alcanzado"
	}
	if q.Metric == attendance.QuorumByPercent {
		return fmt.Sprintf("Quorum %s: %s%% de %s%% (%s)", state, r.Number(q.Present), r.Number(q.Required), q.Metric)
	}
	return fmt.Sprintf("Quorum %s: %s de %s (%s)", state, r.Number(q.Present), r.Number(q.Required), q.Metric)
}

// Questions writes every question with its options
func (r *Writer) Questions(questions []voting.Question) error {
	table := tablewriter.NewTable(r.w)
	table.Header("Pregunta", "Texto", "Opción", "Texto de la opción")
	for _, q := range questions {
		for i, o := range q.Options {
			qid, qtext := "", ""
			if i == 0 {
				qid, qtext = strconv.FormatInt(q.ID, 10), q.Text
			}
			if err := table.Append(qid, qtext, strconv.FormatInt(o.ID, 10), o.Text); err != nil {
				return fmt.Errorf("failed to add question %d: %w", q.ID, err)
			}
		}
	}
	return table.Render()
}

// Tally writes the running result of a ballot
func (r *Writer) Tally(question voting.Question, entries []voting.TallyEntry) error {
	if _, err := fmt.Fprintf(r.w, "%d. %s\n", question.ID, question.Text); err != nil {
		return err
	}
	table := tablewriter.NewTable(r.w)
	table.Header("Opción", "Votos", "Acciones")
	for _, e := range entries {
		if err := table.Append(e.Option.Text, r.Number(int64(e.Count)), r.Number(e.Shares)); err != nil {
			return fmt.Errorf("failed to add option %d: %w", e.Option.ID, err)
		}
	}
	return table.Render()
}
