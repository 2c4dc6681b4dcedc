package dialogue

import "strings"

// State is the whole conversation for one session.
type State struct {
	Stage Stage
	// Name is empty until a /name: command is accepted.
	Name string
	// Numbers holds the last accepted number list. Applying an operator reads
	// it without clearing, so another operator may follow a new list.
	Numbers []float64
	// LastOperator is recorded for the journal and never read by Step.
	LastOperator Operator
}

// NewState returns the state of a freshly opened session.
func NewState() State {
	return State{Stage: StageAwaitingStart}
}

// Reply is the single message produced for one input.
type Reply struct {
	Text string
	// Err classifies rejected inputs and division by zero; nil otherwise.
	Err error
}

// Step applies one classified input to st and returns the next state with the
// reply to show. st is never modified; /start and stop produce fresh values.
func Step(st State, in Input) (State, Reply) {
	switch in.Kind {
	case KindStart:
		return State{Stage: StageAskedName}, Reply{Text: MsgGreeting}
	case KindStop:
		return State{Stage: StageStopped}, Reply{Text: MsgFarewell}
	}

	if st.Stage == StageStopped {
		return st, Reply{Text: MsgUnknown}
	}

	switch in.Kind {
	case KindName:
		return stepName(st, in)
	case KindNumbers:
		return stepNumbers(st, in)
	case KindOperator:
		return stepOperator(st, in)
	}
	return st, Reply{Text: MsgUnknown}
}

func stepName(st State, in Input) (State, Reply) {
	if !st.Stage.acceptsName() {
		return st, Reply{Text: MsgStartFirst, Err: ErrWrongStage}
	}
	if in.Payload == "" {
		return st, Reply{Text: MsgNeedName, Err: ErrEmptyPayload}
	}
	st.Name = in.Payload
	st.Stage = StageAwaitingNumbers
	return st, Reply{Text: msgNameAccepted(st.Name)}
}

func stepNumbers(st State, in Input) (State, Reply) {
	if !st.Stage.acceptsNumbers() {
		return st, Reply{Text: MsgStartFirst, Err: ErrWrongStage}
	}
	if in.Err != nil {
		if invalid, ok := in.Err.(*InvalidNumberError); ok {
			return st, Reply{Text: msgInvalidNumber(invalid.Segment), Err: in.Err}
		}
		return st, Reply{Text: MsgNeedNumbers, Err: in.Err}
	}
	st.Numbers = append([]float64(nil), in.Numbers...)
	st.Stage = StageAwaitingOperator
	return st, Reply{Text: MsgChooseOperator}
}

func stepOperator(st State, in Input) (State, Reply) {
	if st.Stage != StageAwaitingOperator {
		return st, Reply{Text: MsgNumbersFirst, Err: ErrWrongStage}
	}
	if len(st.Numbers) == 0 {
		return st, Reply{Text: MsgNumbersNotSet, Err: ErrEmptyPayload}
	}

	st.LastOperator = in.Operator
	st.Stage = StageAwaitingNumbers
	result, err := Compute(st.Numbers, in.Operator)
	if err != nil {
		return st, Reply{Text: MsgDivisionByZero, Err: err}
	}
	return st, Reply{Text: msgResult(result)}
}

// Session owns the state of one conversation. It is not safe for concurrent
// use; callers serialize Submit per session.
type Session struct {
	state State
	// seen is set once the first non-blank line has been processed.
	seen bool
}

// NewSession opens a conversation in StageAwaitingStart.
func NewSession() *Session {
	return &Session{state: NewState()}
}

// Intro is the prompt shown when a session is opened.
func (s *Session) Intro() string {
	return MsgIntro
}

// Submit processes one raw line. Blank input is dropped and reported with ok=false.
func (s *Session) Submit(raw string) (reply Reply, ok bool) {
	_, reply, ok = s.Process(raw)
	return reply, ok
}

// Process is Submit that also returns the classified input.
func (s *Session) Process(raw string) (Input, Reply, bool) {
	if strings.TrimSpace(raw) == "" {
		return Input{}, Reply{}, false
	}
	in := Parse(raw)
	next, reply := Step(s.state, in)
	s.state = next
	s.seen = true
	return in, reply, true
}

// Fresh reports whether no input has been processed yet. Front ends that
// cannot show Intro up front use it to send the prompt with the first reply.
func (s *Session) Fresh() bool {
	return !s.seen
}

// State returns a copy of the current state.
func (s *Session) State() State {
	st := s.state
	st.Numbers = append([]float64(nil), s.state.Numbers...)
	return st
}

// Stage returns the current stage.
func (s *Session) Stage() Stage {
	return s.state.Stage
}
