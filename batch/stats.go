package batch

import (
	"sort"
	"time"
)

// PassStats counts the work recorded by one pass in a frame.
type PassStats struct {
	Draws         int
	Indices       int
	PipelineBinds int
	ResourceBinds int
	CPUDrawTime   time.Duration
}

// RenderStats collects per-frame draw statistics. Timings are measured
// between consecutive marks.
type RenderStats struct {
	passes  map[PassID]*PassStats
	mark    time.Time
	Objects int

	PrepareBegin time.Duration
	PrepareDraw  time.Duration
	PrepareEnd   time.Duration
}

func (s *RenderStats) delta() time.Duration {
	now := time.Now()
	if s.mark.IsZero() {
		s.mark = now
	}
	d := now.Sub(s.mark)
	s.mark = now
	return d
}

func (s *RenderStats) pass(id PassID) *PassStats {
	if s.passes == nil {
		s.passes = make(map[PassID]*PassStats)
	}
	p, ok := s.passes[id]
	if !ok {
		p = &PassStats{}
		s.passes[id] = p
	}
	return p
}

// Reset clears every counter and restarts the timer.
func (s *RenderStats) Reset() {
	clear(s.passes)
	s.Objects = 0
	s.mark = time.Now()
}

// Pass returns the stats of pass id.
func (s *RenderStats) Pass(id PassID) (PassStats, bool) {
	p, ok := s.passes[id]
	if !ok {
		return PassStats{}, false
	}
	return *p, true
}

// Passes returns the ids of passes with stats, in ascending order.
func (s *RenderStats) Passes() []PassID {
	ids := make([]PassID, 0, len(s.passes))
	for id := range s.passes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *RenderStats) Draw(id PassID, indices int) {
	p := s.pass(id)
	p.Draws++
	p.Indices += indices
}

func (s *RenderStats) BindPipeline(id PassID) { s.pass(id).PipelineBinds++ }
func (s *RenderStats) BindResource(id PassID) { s.pass(id).ResourceBinds++ }

// Finish records the CPU time pass id spent since the previous mark.
func (s *RenderStats) Finish(id PassID) { s.pass(id).CPUDrawTime = s.delta() }

func (s *RenderStats) MarkPrepareBegin() { s.PrepareBegin = s.delta() }
func (s *RenderStats) MarkPrepareDraw()  { s.PrepareDraw = s.delta() }
func (s *RenderStats) MarkPrepareEnd()   { s.PrepareEnd = s.delta() }

// Snapshot returns a copy that does not share state with s.
func (s *RenderStats) Snapshot() RenderStats {
	c := *s
	c.passes = make(map[PassID]*PassStats, len(s.passes))
	for id, p := range s.passes {
		cp := *p
		c.passes[id] = &cp
	}
	return c
}
