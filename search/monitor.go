package search

import "github.com/poiesic/sift/core"

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query Query)
	AfterFilterResolution(matched int)
	AfterScoring(candidates int)
	AfterHydration(requested int, found int)
	Finish(results []*core.SearchResult)
	Failed(err error)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ Query) {}
func (n *noopMonitor) AfterFilterResolution(_ int) {}
func (n *noopMonitor) AfterScoring(_ int) {}
func (n *noopMonitor) AfterHydration(_ int, _ int) {}
func (n *noopMonitor) Finish(_ []*core.SearchResult) {}
func (n *noopMonitor) Failed(_ error) {}
