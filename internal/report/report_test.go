package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/quorumdesk/quorumdesk/internal/attendance"
	"github.com/quorumdesk/quorumdesk/internal/voting"
)

func sampleRows() []attendance.Row {
	return []attendance.Row{
		{
			Record:    attendance.Record{ID: 1, Shareholder: "Ana Pérez", Shares: 1234567, Status: attendance.StatusAbsent},
			Effective: attendance.StatusVirtual,
			Pending:   true,
		},
		{
			Record:    attendance.Record{ID: 2, Proxy: "Marta Ruiz", Shares: 5, Status: attendance.StatusInPerson},
			Effective: attendance.StatusInPerson,
		},
	}
}

func TestWriter_Number(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		tag      language.Tag
		value    int64
		expected string
	}{
		{name: "spanish grouping", tag: language.Spanish, value: 1234567, expected: "1.234.567"},
		{name: "english grouping", tag: language.English, value: 1234567, expected: "1,234,567"},
		{name: "small numbers are not grouped", tag: language.Spanish, value: 42, expected: "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := New(&bytes.Buffer{}, WithLanguage(tt.tag))
			assert.Equal(t, tt.expected, r.Number(tt.value))
		})
	}
}

func TestParseLanguage(t *testing.T) {
	t.Parallel()

	tag, err := ParseLanguage("")
	require.NoError(t, err)
	assert.Equal(t, DefaultLanguage, tag)

	tag, err = ParseLanguage("en-US")
	require.NoError(t, err)
	assert.Equal(t, language.AmericanEnglish, tag)

	_, err = ParseLanguage("not a tag!")
	assert.ErrorContains(t, err, "invalid language")
}

func TestWriter_Attendance(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, New(&buf).Attendance(sampleRows()))

	out := buf.String()
	assert.Contains(t, out, "Ana Pérez")
	assert.Contains(t, out, "Marta Ruiz")
	assert.Contains(t, out, "1.234.567")
	assert.Contains(t, out, "VIRTUAL", "the effective status is shown")
	assert.Equal(t, 1, strings.Count(out, PendingMark))
}

func TestWriter_Summary(t *testing.T) {
	t.Parallel()

	rows := sampleRows()
	summary := attendance.Aggregate(rows)
	quorum := attendance.QuorumPolicy{Minimum: 3}.Evaluate(summary)

	var buf bytes.Buffer
	require.NoError(t, New(&buf).Summary(summary, quorum))

	out := buf.String()
	assert.Contains(t, out, "1 presenciales / 1 virtuales / 0 ausentes")
	assert.Contains(t, out, "Quorum no alcanzado: 2 de 3 (headcount)")
	assert.Contains(t, out, "1.234.572")
}

func TestWriter_Quorum(t *testing.T) {
	t.Parallel()

	r := New(&bytes.Buffer{}, WithLanguage(language.English))
	got := r.Quorum(attendance.QuorumResult{
		Metric:   attendance.QuorumByShares,
		Present:  1500000,
		Required: 1000000,
		Met:      true,
	})
	assert.Equal(t, "Quorum alcanzado: 1,500,000 de 1,000,000 (shares)", got)

	got = r.Quorum(attendance.QuorumResult{
		Metric:   attendance.QuorumByPercent,
		Present:  66,
		Required: 50,
		Met:      true,
	})
	assert.Equal(t, "Quorum alcanzado: 66% de 50% (percent)", got)
}

func TestWriter_QuestionsAndTally(t *testing.T) {
	t.Parallel()

	question := voting.Question{
		ID:   4,
		Text: "Aprobación de estados financieros",
		Options: []voting.Option{
			{ID: 10, Text: "A favor"},
			{ID: 11, Text: "En contra"},
		},
	}

	var buf bytes.Buffer
	w := New(&buf)
	require.NoError(t, w.Questions([]voting.Question{question}))
	assert.Contains(t, buf.String(), "Aprobación de estados financieros")
	assert.Contains(t, buf.String(), "En contra")

	buf.Reset()
	require.NoError(t, w.Tally(question, []voting.TallyEntry{
		{Option: question.Options[0], Count: 2, Shares: 2500000},
		{Option: question.Options[1]},
	}))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "4. Aprobación de estados financieros\n"))
	assert.Contains(t, out, "A favor")
	assert.Contains(t, out, "2.500.000")
}
