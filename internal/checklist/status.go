// Package checklist models pre-departure inspection checklists: the per-item
// status vocabularies, the flat form parser and the stored form data.
package checklist

type Status string

const (
	StatusOK  Status = "OK"
	StatusNA  Status = "N/A"
	StatusDEF Status = "DEF"
	StatusYes Status = "Y"
	StatusNo  Status = "N"
)

// Cycle is the fixed order a toggle moves through on each activation.
type Cycle int

const (
	CycleOKDef Cycle = iota + 1
	CycleYesNo
)

var (
	okDefStates = []Status{StatusOK, StatusNA, StatusDEF}
	yesNoStates = []Status{StatusYes, StatusNA, StatusNo}
)

// States returns the cycle order. Callers must not modify the slice.
func (c Cycle) States() []Status {
	switch c {
	case CycleOKDef:
		return okDefStates
	case CycleYesNo:
		return yesNoStates
	default:
		return nil
	}
}

// Contains reports whether s belongs to the cycle's vocabulary.
func (c Cycle) Contains(s Status) bool {
	return c.index(s) >= 0
}

// Next returns the state after s. A value outside the vocabulary is treated
// as an unselected control and moves to N/A.
func (c Cycle) Next(s Status) Status {
	states := c.States()
	if len(states) == 0 {
		return StatusNA
	}
	i := c.index(s)
	if i < 0 {
		return StatusNA
	}
	return states[(i+1)%len(states)]
}

func (c Cycle) String() string {
	switch c {
	case CycleOKDef:
		return "ok_def"
	case CycleYesNo:
		return "y_n"
	default:
		return ""
	}
}

func (c Cycle) index(s Status) int {
	for i, state := range c.States() {
		if state == s {
			return i
		}
	}
	return -1
}

// IsStatusValue reports whether value belongs to either vocabulary.
func IsStatusValue(value string) bool {
	s := Status(value)
	return CycleOKDef.Contains(s) || CycleYesNo.Contains(s)
}

// Toggle is one three-state control on the form.
type Toggle struct {
	cycle Cycle
	state Status
}

// NewToggle starts at the pre-checked value, or N/A when nothing valid is checked.
func NewToggle(cycle Cycle, prechecked Status) *Toggle {
	state := prechecked
	if !cycle.Contains(state) {
		state = StatusNA
	}
	return &Toggle{cycle: cycle, state: state}
}

func (t *Toggle) State() Status { return t.state }

func (t *Toggle) Cycle() Cycle { return t.cycle }

// Activate advances one step and returns the new state.
func (t *Toggle) Activate() Status {
	t.state = t.cycle.Next(t.state)
	return t.state
}

// NoticeVisible reports whether the row's "not selected" notice is shown.
func (t *Toggle) NoticeVisible() bool {
	return t.state == StatusNA
}
