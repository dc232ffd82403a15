package attendance

import "fmt"

// Summary is the aggregate of a set of rows by effective status.
// It is derived on demand and never stored.
type Summary struct {
	Counts      map[Status]int
	Shares      map[Status]int64
	Total       int
	TotalShares int64
}

// Aggregate counts rows and sums their shares per effective status
func Aggregate(rows []Row) Summary {
	s := Summary{
		Counts: make(map[Status]int, len(AllStatuses)),
		Shares: make(map[Status]int64, len(AllStatuses)),
	}
	for _, status := range AllStatuses {
		s.Counts[status] = 0
		s.Shares[status] = 0
	}
	for _, row := range rows {
		s.Counts[row.Effective]++
		s.Shares[row.Effective] += row.Shares
		s.Total++
		s.TotalShares += row.Shares
	}
	return s
}

// Count returns the number of rows with status
func (s Summary) Count(status Status) int {
	return s.Counts[status]
}

// SharesOf returns the summed shares of rows with status
func (s Summary) SharesOf(status Status) int64 {
	return s.Shares[status]
}

// Present returns the number of rows attending in person or virtually
func (s Summary) Present() int {
	return s.Counts[StatusInPerson] + s.Counts[StatusVirtual]
}

// PresentShares returns the shares of rows attending in person or virtually
func (s Summary) PresentShares() int64 {
	return s.Shares[StatusInPerson] + s.Shares[StatusVirtual]
}

// Percent returns the headcount percentage of status, 0 for an empty summary
func (s Summary) Percent(status Status) float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Counts[status]) / float64(s.Total) * 100
}

// String renders the summary line shown above the attendance table
func (s Summary) String() string {
	return fmt.Sprintf("%d presenciales / %d virtuales / %d ausentes",
		s.Counts[StatusInPerson], s.Counts[StatusVirtual], s.Counts[StatusAbsent])
}
