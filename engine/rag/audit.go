package rag

import "strings"

// unmentioned returns the candidates whose names do not appear in the report
// text, compared case-insensitively.
func unmentioned(a CostAnalysis) []string {
	report := strings.ToLower(a.Report)
	var out []string
	for _, c := range a.Candidates {
		if !strings.Contains(report, strings.ToLower(c)) {
			out = append(out, c)
		}
	}
	return out
}

// audit flags candidates the cost report never names. The run proceeds with
// the list as returned.
func (s *Service) audit(a CostAnalysis) {
	missing := unmentioned(a)
	if len(missing) == 0 {
		return
	}
	s.log.Warn("rag: candidates not named in cost report", "candidates", missing)
	s.metrics.AuditMismatches(len(missing))
}
