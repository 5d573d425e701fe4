package coinjoin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/looplab/fsm"
)

var (
	// ErrTransitionForbidden is returned when an event is not permitted
	// in the current state.
	ErrTransitionForbidden = errors.New("transition forbidden")
)

// Names of the state changing events in the transition table.
const (
	evAutoOn           = "auto_on"
	evAutoOff          = "auto_off"
	evPlay             = "play"
	evPause            = "pause"
	evStop             = "stop"
	evPlebStop         = "pleb_stop"
	evRoundStart       = "round_start"
	evRoundStartFailed = "round_start_failed"
)

// transitions lists every permitted state change. A transition of a
// composite state is spelled out for each of its substates.
var transitions = fsm.Events{
	{
		Name: evPlay,
		Src:  names(StateStopped),
		Dst:  StateManualPlaying.String(),
	},
	{
		Name: evPlay,
		Src:  names(StateAutoStarting, StatePaused),
		Dst:  StateAutoPlaying.String(),
	},
	{
		Name: evStop,
		Src:  names(StateManualPlaying),
		Dst:  StateStopped.String(),
	},
	{
		Name: evPause,
		Src:  names(StateAutoStarting, StateAutoPlaying),
		Dst:  StatePaused.String(),
	},
	{
		Name: evPlebStop,
		Src:  names(StateAutoPlaying),
		Dst:  StatePaused.String(),
	},
	{
		Name: evRoundStart,
		Src:  names(StateAutoStarting, StateAutoPlaying),
		Dst:  StateAutoPlaying.String(),
	},
	{
		Name: evRoundStartFailed,
		Src:  names(StateAutoPlaying),
		Dst:  StatePaused.String(),
	},
	{
		Name: evAutoOn,
		Src:  names(StateManual.substates()...),
		Dst:  StateAuto.String(),
	},
	{
		Name: evAutoOff,
		Src:  names(StateAuto.substates()...),
		Dst:  StateManual.String(),
	},
}

func names(states ...State) []string {
	result := make([]string, 0, len(states))
	for _, s := range states {
		result = append(result, s.String())
	}

	return result
}

// eventName maps an event to its name in the transition table.
func eventName(ev Event) (string, bool) {
	switch ev.(type) {
	case AutoOn:
		return evAutoOn, true

	case AutoOff:
		return evAutoOff, true

	case Play:
		return evPlay, true

	case Pause:
		return evPause, true

	case Stop:
		return evStop, true

	case PlebStop:
		return evPlebStop, true

	case RoundStart:
		return evRoundStart, true

	case RoundStartFailed:
		return evRoundStartFailed, true

	default:
		return "", false
	}
}

// target runs the event through a state machine positioned at s and returns
// the state it lands in.
func target(s State, ev Event) (State, error) {
	forbidden := fmt.Errorf("%w: %T in state %v", ErrTransitionForbidden,
		ev, s)

	name, ok := eventName(ev)
	if !ok {
		return s, forbidden
	}

	machine := fsm.NewFSM(s.String(), transitions, fsm.Callbacks{})
	if !machine.Can(name) {
		return s, forbidden
	}

	// Re-entering the current state is a valid transition that the fsm
	// reports as NoTransitionError.
	err := machine.Event(context.Background(), name)

	var noTransition fsm.NoTransitionError
	if err != nil && !errors.As(err, &noTransition) {
		return s, fmt.Errorf("%w: %v", ErrTransitionForbidden, err)
	}

	to, ok := stateByName[machine.Current()]
	if !ok {
		return s, fmt.Errorf("%w: unknown state %q",
			ErrTransitionForbidden, machine.Current())
	}

	return to, nil
}

// Initial enters the machine for a wallet with automatic coinjoins enabled
// or disabled.
func Initial(auto bool, now time.Time) (Model, []Effect) {
	if auto {
		return enter(Model{}, StateAuto, now)
	}

	return enter(Model{}, StateManual, now)
}

// Transition applies the event to the model. It returns the next model and
// the effects to carry out, or ErrTransitionForbidden if the current state
// does not permit the event. A rejected event leaves the model unchanged.
func Transition(m Model, ev Event, now time.Time) (Model, []Effect, error) {
	switch e := ev.(type) {
	// Announcements and ticks never change the state, they only refresh
	// the countdown.
	case StartingIn:
		m.AutoStartAt = now.Add(e.Delay)
		if m.State == StateAutoStarting {
			return m, []Effect{progress(m, now)}, nil
		}

		return m, nil, nil

	case Tick:
		if m.State == StateAutoStarting {
			return m, []Effect{progress(m, now)}, nil
		}

		return m, nil, nil

	// Toggling the auto setting to the value it already has is a no-op.
	case AutoOn:
		if m.State.IsAuto() {
			return m, nil, nil
		}

	case AutoOff:
		if !m.State.IsAuto() {
			return m, nil, nil
		}
	}

	to, err := target(m.State, ev)
	if err != nil {
		return m, nil, err
	}

	log.Debugf("Event %T moves coinjoin state from %v to %v", ev, m.State,
		to)

	next, effects := enter(m, to, now)

	return next, effects, nil
}

// enter runs the entry actions of s. Composite states descend into their
// initial substate right away.
func enter(m Model, s State, now time.Time) (Model, []Effect) {
	switch s {
	case StateManual:
		return enter(m, StateStopped, now)

	case StateAuto:
		return enter(m, StateAutoStarting, now)
	}

	m.State = s

	switch s {
	case StateStopped:
		return m, []Effect{
			StopCoinJoin{},
			StatusChanged{Message: msgStopped},
			ProgressChanged{},
		}

	case StateManualPlaying, StateAutoPlaying:
		return m, []Effect{
			StartCoinJoin{},
			StatusChanged{Message: msgCoinJoining},
		}

	case StateAutoStarting:
		m.CountdownStarted = now

		return m, []Effect{
			StatusChanged{Message: msgCountDown},
			progress(m, now),
		}

	case StatePaused:
		return m, []Effect{
			StopCoinJoin{},
			StatusChanged{Message: msgPaused},
			ProgressChanged{},
		}
	}

	return m, nil
}

// progress computes the countdown towards the announced automatic start.
func progress(m Model, now time.Time) ProgressChanged {
	elapsed := max(now.Sub(m.CountdownStarted), 0)
	if m.AutoStartAt.IsZero() {
		return ProgressChanged{Elapsed: elapsed}
	}

	remaining := max(m.AutoStartAt.Sub(now), 0)

	percent := 100.0
	if total := m.AutoStartAt.Sub(m.CountdownStarted); total > 0 {
		percent = min(float64(elapsed)*100/float64(total), 100)
	}

	return ProgressChanged{
		Elapsed:   elapsed,
		Remaining: remaining,
		Percent:   percent,
	}
}
