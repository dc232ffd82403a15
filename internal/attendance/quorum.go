package attendance

import "fmt"

// QuorumMetric selects what the quorum minimum is compared against
type QuorumMetric string

const (
	// QuorumByHeadcount compares the number of present records
	QuorumByHeadcount QuorumMetric = "headcount"

	// QuorumByShares compares the shares held by present records
	QuorumByShares QuorumMetric = "shares"

	// QuorumByPercent compares the percentage of present records over the whole list
	QuorumByPercent QuorumMetric = "percent"
)

// DefaultQuorumPercent is the percent minimum used when none is configured
const DefaultQuorumPercent = 50

// ParseQuorumMetric parses a metric name; empty means headcount
func ParseQuorumMetric(value string) (QuorumMetric, error) {
	switch QuorumMetric(value) {
	case "", QuorumByHeadcount:
		return QuorumByHeadcount, nil
	case QuorumByShares, QuorumByPercent:
		return QuorumMetric(value), nil
	}
	return "", fmt.Errorf("unknown quorum metric %q, expected %s, %s or %s",
		value, QuorumByHeadcount, QuorumByShares, QuorumByPercent)
}

// QuorumPolicy is a threshold on present attendance
type QuorumPolicy struct {
	Minimum int64
	Metric  QuorumMetric
}

// QuorumResult is the outcome of evaluating a policy
type QuorumResult struct {
	Metric   QuorumMetric
	Present  int64
	Required int64
	Met      bool
}

// Evaluate compares the present attendance of a summary against the policy minimum.
// Present is PRESENCIAL plus VIRTUAL, by headcount, by shares or as a whole percentage of
// every record. The percent metric compares exactly and reports Present rounded down; an
// empty list is never at quorum by percent.
func (p QuorumPolicy) Evaluate(s Summary) QuorumResult {
	metric := p.Metric
	if metric == "" {
		metric = QuorumByHeadcount
	}
	switch metric {
	case QuorumByShares:
		present := s.PresentShares()
		return QuorumResult{Metric: metric, Present: present, Required: p.Minimum, Met: present >= p.Minimum}
	case QuorumByPercent:
		required := p.Minimum
		if required == 0 {
			required = DefaultQuorumPercent
		}
		result := QuorumResult{Metric: metric, Required: required}
		if s.Total > 0 {
			present := int64(s.Present())
			result.Present = present * 100 / int64(s.Total)
			result.Met = present*100 >= required*int64(s.Total)
		}
		return result
	default:
		present := int64(s.Present())
		return QuorumResult{Metric: metric, Present: present, Required: p.Minimum, Met: present >= p.Minimum}
	}
}

// String renders the quorum indicator
func (r QuorumResult) String() string {
	state := "no alcanzado"
	if r.Met {
		state = "alcanzado"
	}
	if r.Metric == QuorumByPercent {
		return fmt.Sprintf("quorum %s (%d%%/%d%% por %s)", state, r.Present, r.Required, r.Metric)
	}
	return fmt.Sprintf("quorum %s (%d/%d por %s)", state, r.Present, r.Required, r.Metric)
}
