package audit

import "github.com/poiesic/evidentia/core"

// Monitor provides hooks to observe an audit run.
// Implement this interface to track intermediate steps during planning.
type Monitor interface {
	Start(goal string)
	AfterDecompose(subqueries []string)
	AfterSubquerySearch(subquery string, evidence []core.EvidenceItem)
	AfterDeduplication(evidence []core.EvidenceItem)
	AfterSynthesis(summary string)
	Finish(result *core.AuditResult)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                                    {}
func (n *noopMonitor) AfterDecompose(_ []string)                         {}
func (n *noopMonitor) AfterSubquerySearch(_ string, _ []core.EvidenceItem) {}
func (n *noopMonitor) AfterDeduplication(_ []core.EvidenceItem)          {}
func (n *noopMonitor) AfterSynthesis(_ string)                           {}
func (n *noopMonitor) Finish(_ *core.AuditResult)                        {}
