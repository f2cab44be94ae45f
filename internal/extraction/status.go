package extraction

import "forager/internal/stage"

// Phase is a step of the extraction state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhasePostProcessing
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhasePostProcessing:
		return "post-processing"
	case PhaseDone:
		return "done"
	}
	return "unknown"
}

// Status is a point-in-time view of a run.
type Status struct {
	RunID string
	Phase Phase
	// Unit is the name of the running unit; UnitIndex is 1-based within
	// the phase.
	Unit      string
	UnitIndex int
	UnitCount int
	// Detail is the running unit's own progress report, if it has one.
	Detail   string
	Warnings int
	Failed   bool
}

// Status returns a snapshot of the run.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	s := p.status
	active := p.active
	p.mu.Unlock()
	if r, ok := active.(stage.StatusReporter); ok {
		s.Detail = r.Status()
	}
	return s
}

func (p *Pipeline) update(fn func(*Status)) {
	p.mu.Lock()
	fn(&p.status)
	p.mu.Unlock()
}

func (p *Pipeline) enter(phase Phase, unit stage.Unit, index, count int) {
	p.mu.Lock()
	p.status.Phase = phase
	p.status.Unit = unit.Name()
	p.status.UnitIndex = index + 1
	p.status.UnitCount = count
	p.active = unit
	p.mu.Unlock()
}

func (p *Pipeline) setActive(unit stage.Unit) {
	p.mu.Lock()
	p.active = unit
	p.mu.Unlock()
}
