package dialogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStages = []Stage{
	StageAwaitingStart,
	StageAskedName,
	StageAwaitingNumbers,
	StageAwaitingOperator,
	StageStopped,
}

func stateAt(stage Stage) State {
	return State{Stage: stage, Name: "Vasya", Numbers: []float64{7, 9}, LastOperator: OpAdd}
}

func TestStartResetsFromEveryStage(t *testing.T) {
	for _, stage := range allStages {
		t.Run(stage.String(), func(t *testing.T) {
			next, reply := Step(stateAt(stage), Parse("/start"))
			assert.Equal(t, State{Stage: StageAskedName}, next)
			assert.Equal(t, MsgGreeting, reply.Text)
			assert.NoError(t, reply.Err)
		})
	}
}

func TestStopFromEveryStage(t *testing.T) {
	for _, stage := range allStages {
		t.Run(stage.String(), func(t *testing.T) {
			next, reply := Step(stateAt(stage), Parse("stop"))
			assert.Equal(t, State{Stage: StageStopped}, next)
			assert.Equal(t, MsgFarewell, reply.Text)
		})
	}
}

func TestStepDoesNotMutateInput(t *testing.T) {
	st := stateAt(StageAwaitingOperator)
	next, _ := Step(st, Parse("/number: 1, 2, 3"))
	next.Numbers[0] = 100

	assert.Equal(t, []float64{7, 9}, st.Numbers)
	assert.Equal(t, StageAwaitingOperator, st.Stage)
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		name      string
		stage     Stage
		input     string
		wantStage Stage
		wantText  string
		wantErr   error
	}{
		{"name from asked_name", StageAskedName, "/name: Petya", StageAwaitingNumbers, msgNameAccepted("Petya"), nil},
		{"name from awaiting_start", StageAwaitingStart, "name: Petya", StageAwaitingNumbers, msgNameAccepted("Petya"), nil},
		{"empty name", StageAskedName, "/name:", StageAskedName, MsgNeedName, ErrEmptyPayload},
		{"name in numbers stage", StageAwaitingNumbers, "/name: Petya", StageAwaitingNumbers, MsgStartFirst, ErrWrongStage},
		{"empty name in wrong stage", StageAwaitingOperator, "/name:", StageAwaitingOperator, MsgStartFirst, ErrWrongStage},
		{"numbers accepted", StageAwaitingNumbers, "/number: 1, 2", StageAwaitingOperator, MsgChooseOperator, nil},
		{"numbers replaced", StageAwaitingOperator, "/number: 3", StageAwaitingOperator, MsgChooseOperator, nil},
		{"numbers empty", StageAwaitingNumbers, "/number:", StageAwaitingNumbers, MsgNeedNumbers, ErrEmptyPayload},
		{"numbers invalid", StageAwaitingOperator, "/number: 1, x", StageAwaitingOperator, msgInvalidNumber("x"), nil},
		{"numbers before name", StageAskedName, "/number: 1", StageAskedName, MsgStartFirst, ErrWrongStage},
		{"numbers before start", StageAwaitingStart, "/number: 1", StageAwaitingStart, MsgStartFirst, ErrWrongStage},
		{"operator applied", StageAwaitingOperator, "+", StageAwaitingNumbers, "Результат: 16", nil},
		{"operator too early", StageAwaitingNumbers, "+", StageAwaitingNumbers, MsgNumbersFirst, ErrWrongStage},
		{"operator before start", StageAwaitingStart, "*", StageAwaitingStart, MsgNumbersFirst, ErrWrongStage},
		{"unknown keeps stage", StageAwaitingOperator, "hello", StageAwaitingOperator, MsgUnknown, nil},
		{"unknown before start", StageAwaitingStart, "hello", StageAwaitingStart, MsgUnknown, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, reply := Step(stateAt(tt.stage), Parse(tt.input))
			assert.Equal(t, tt.wantStage, next.Stage)
			assert.Equal(t, tt.wantText, reply.Text)
			if tt.wantErr != nil {
				assert.ErrorIs(t, reply.Err, tt.wantErr)
			}
		})
	}
}

func TestInvalidNumberReplyCarriesSegment(t *testing.T) {
	_, reply := Step(stateAt(StageAwaitingNumbers), Parse("/number: 4, 5a"))
	assert.Equal(t, `Неправильное число: "5a". Введите числа через запятую.`, reply.Text)
	assert.Equal(t, "INVALID_NUMBER", ErrorCode(reply.Err))
}

func TestOperatorWithEmptyNumbers(t *testing.T) {
	st, reply := Step(stateAt(StageAwaitingNumbers), Parse("/number: , "))
	require.Equal(t, MsgChooseOperator, reply.Text)
	require.Equal(t, StageAwaitingOperator, st.Stage)
	require.Empty(t, st.Numbers)

	next, reply := Step(st, Parse("-"))
	assert.Equal(t, MsgNumbersNotSet, reply.Text)
	assert.Equal(t, StageAwaitingOperator, next.Stage)
}

func TestOperatorKeepsNumbersAndRecordsOperator(t *testing.T) {
	next, reply := Step(stateAt(StageAwaitingOperator), Parse("*"))
	assert.Equal(t, "Результат: 63", reply.Text)
	assert.Equal(t, []float64{7, 9}, next.Numbers)
	assert.Equal(t, OpMul, next.LastOperator)
}

func TestStoppedAcceptsOnlyStartAndStop(t *testing.T) {
	st := State{Stage: StageStopped}
	for _, input := range []string{"/name: Vasya", "/number: 1, 2", "+", "/", "hello"} {
		next, reply := Step(st, Parse(input))
		assert.Equal(t, StageStopped, next.Stage, input)
		assert.Equal(t, MsgUnknown, reply.Text, input)
	}
}

func TestMalformedNumbersAreIdempotent(t *testing.T) {
	s := NewSession()
	for _, line := range []string{"/start", "/name: Vasya", "/number: 7, 9"} {
		_, ok := s.Submit(line)
		require.True(t, ok)
	}

	first, _ := s.Submit("/number: 1, oops")
	afterFirst := s.State()
	second, _ := s.Submit("/number: 1, oops")

	assert.Equal(t, first, second)
	assert.Equal(t, []float64{7, 9}, afterFirst.Numbers)
	assert.Equal(t, []float64{7, 9}, s.State().Numbers)
	assert.Equal(t, StageAwaitingOperator, s.Stage())
}

func TestSessionScenarioGreetAndName(t *testing.T) {
	s := NewSession()
	assert.Equal(t, MsgIntro, s.Intro())

	reply, ok := s.Submit("/start")
	require.True(t, ok)
	assert.Equal(t, MsgGreeting, reply.Text)

	reply, _ = s.Submit("/name: Vasya")
	assert.Contains(t, reply.Text, "Vasya")
	assert.Equal(t, StageAwaitingNumbers, s.Stage())
	assert.Equal(t, "Vasya", s.State().Name)
}

func TestSessionScenarioSumAndLoop(t *testing.T) {
	s := NewSession()
	s.Submit("/start")
	s.Submit("/name: Vasya")

	s.Submit("/number: 7, 9")
	assert.Equal(t, StageAwaitingOperator, s.Stage())
	assert.Equal(t, []float64{7, 9}, s.State().Numbers)

	reply, _ := s.Submit("+")
	assert.Equal(t, "Результат: 16", reply.Text)
	assert.Equal(t, StageAwaitingNumbers, s.Stage())

	s.Submit("/number: 10, 4")
	reply, _ = s.Submit("/-")
	assert.Equal(t, "Результат: 6", reply.Text)
}

func TestSessionScenarioDivisionByZero(t *testing.T) {
	s := NewSession()
	s.Submit("/start")
	s.Submit("/name: Vasya")
	s.Submit("/number: 7, 0")

	reply, ok := s.Submit("/")
	require.True(t, ok)
	assert.Equal(t, MsgDivisionByZero, reply.Text)
	assert.ErrorIs(t, reply.Err, ErrDivisionByZero)
	assert.Equal(t, StageAwaitingNumbers, s.Stage())
}

func TestSessionScenarioEmptyNumbers(t *testing.T) {
	s := NewSession()
	s.Submit("/start")
	s.Submit("/name: Vasya")

	reply, _ := s.Submit("/number:")
	assert.Equal(t, MsgNeedNumbers, reply.Text)
	assert.Equal(t, StageAwaitingNumbers, s.Stage())
}

func TestSessionScenarioStop(t *testing.T) {
	s := NewSession()
	s.Submit("/start")
	s.Submit("/name: Vasya")

	reply, _ := s.Submit("stop")
	assert.Equal(t, MsgFarewell, reply.Text)
	assert.Equal(t, StageStopped, s.Stage())
	assert.Empty(t, s.State().Name)

	reply, _ = s.Submit("/number: 1")
	assert.Equal(t, MsgUnknown, reply.Text)

	reply, _ = s.Submit("/start")
	assert.Equal(t, MsgGreeting, reply.Text)
	assert.Equal(t, StageAskedName, s.Stage())
}

func TestSessionFreshUntilFirstInput(t *testing.T) {
	s := NewSession()
	assert.True(t, s.Fresh())

	s.Submit("   ")
	assert.True(t, s.Fresh())

	s.Submit("hello")
	assert.False(t, s.Fresh())
}

func TestSessionDropsBlankInput(t *testing.T) {
	s := NewSession()
	for _, raw := range []string{"", "   ", "\n\t"} {
		_, ok := s.Submit(raw)
		assert.False(t, ok)
	}
	assert.Equal(t, StageAwaitingStart, s.Stage())
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "", ErrorCode(nil))
	assert.Equal(t, "EMPTY_PAYLOAD", ErrorCode(ErrEmptyPayload))
	assert.Equal(t, "WRONG_STAGE", ErrorCode(ErrWrongStage))
	assert.Equal(t, "DIVISION_BY_ZERO", ErrorCode(ErrDivisionByZero))
	assert.Equal(t, "INVALID_NUMBER", ErrorCode(&InvalidNumberError{Segment: "x"}))
	assert.Equal(t, "UNKNOWN_ERROR", ErrorCode(assert.AnError))
}
