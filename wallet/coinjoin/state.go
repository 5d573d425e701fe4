// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package coinjoin models a wallet's participation in coinjoin rounds as seen
// from the user: whether the wallet mixes automatically or on demand, and
// whether it is currently playing, paused or stopped.
//
// The model is a hierarchical finite state machine. Transition is a pure
// function from a model and an event to the next model plus the effects to
// carry out. Timer ticks are events like any other. The Controller feeds user
// actions, round notifications and ticks through Transition and applies the
// resulting effects.
package coinjoin

import (
	"time"
)

// State is a state of the participation state machine.
type State uint8

const (
	// StateManual is the composite state in which the user starts and
	// stops coinjoins by hand.
	StateManual State = iota

	// StateStopped is the manual substate in which no coinjoin runs.
	StateStopped

	// StateManualPlaying is the manual substate in which the user started
	// a coinjoin.
	StateManualPlaying

	// StateAuto is the composite state in which the wallet joins rounds
	// on its own.
	StateAuto

	// StateAutoStarting is the automatic substate counting down until the
	// wallet joins a round.
	StateAutoStarting

	// StatePaused is the automatic substate in which the user paused
	// coinjoins.
	StatePaused

	// StateAutoPlaying is the automatic substate in which the wallet takes
	// part in rounds.
	StateAutoPlaying
)

// String returns the string representation of a state.
func (s State) String() string {
	switch s {
	case StateManual:
		return "manual"

	case StateStopped:
		return "stopped"

	case StateManualPlaying:
		return "manual playing"

	case StateAuto:
		return "auto"

	case StateAutoStarting:
		return "auto starting"

	case StatePaused:
		return "paused"

	case StateAutoPlaying:
		return "auto playing"

	default:
		return "unknown state"
	}
}

// parent returns the composite state containing s. Composite states are
// their own parent.
func (s State) parent() State {
	switch s {
	case StateStopped, StateManualPlaying:
		return StateManual

	case StateAutoStarting, StatePaused, StateAutoPlaying:
		return StateAuto

	default:
		return s
	}
}

// substates returns the substates of a composite state.
func (s State) substates() []State {
	switch s {
	case StateManual:
		return []State{StateStopped, StateManualPlaying}

	case StateAuto:
		return []State{StateAutoStarting, StatePaused, StateAutoPlaying}

	default:
		return nil
	}
}

// stateByName maps the string representation of every state back to it.
var stateByName = func() map[string]State {
	m := make(map[string]State)
	for s := StateManual; s <= StateAutoPlaying; s++ {
		m[s.String()] = s
	}

	return m
}()

// IsIn reports whether s is other or one of its substates.
func (s State) IsIn(other State) bool {
	return s == other || s.parent() == other
}

// IsAuto reports whether the wallet mixes automatically.
func (s State) IsAuto() bool {
	return s.IsIn(StateAuto)
}

// Event is a sealed interface of the inputs of the state machine.
type Event interface {
	// isEvent is a marker method that is part of the sealed interface
	// pattern.
	isEvent()
}

type (
	// AutoOn is fired when the user enables automatic coinjoins.
	AutoOn struct{}

	// AutoOff is fired when the user disables automatic coinjoins.
	AutoOff struct{}

	// Play is fired when the user starts coinjoining.
	Play struct{}

	// Pause is fired when the user pauses automatic coinjoins.
	Pause struct{}

	// Stop is fired when the user stops a manual coinjoin.
	Stop struct{}

	// PlebStop is fired when the wallet stops mixing because its balance
	// is too small to be worth it.
	PlebStop struct{}

	// RoundStart is fired when the coinjoin manager joined a round.
	RoundStart struct{}

	// RoundStartFailed is fired when the coinjoin manager could not join
	// a round.
	RoundStartFailed struct{}

	// StartingIn is fired when the coinjoin manager announces when it
	// will join the next round.
	StartingIn struct {
		// Delay is the time left until the wallet joins.
		Delay time.Duration
	}

	// Tick is fired periodically to refresh time dependent output.
	Tick struct{}
)

func (AutoOn) isEvent()           {}
func (AutoOff) isEvent()          {}
func (Play) isEvent()             {}
func (Pause) isEvent()            {}
func (Stop) isEvent()             {}
func (PlebStop) isEvent()         {}
func (RoundStart) isEvent()       {}
func (RoundStartFailed) isEvent() {}
func (StartingIn) isEvent()       {}
func (Tick) isEvent()             {}

// Effect is a sealed interface of the outputs of the state machine.
type Effect interface {
	// isEffect is a marker method that is part of the sealed interface
	// pattern.
	isEffect()
}

type (
	// StartCoinJoin asks the coinjoin manager to start mixing the
	// wallet.
	StartCoinJoin struct{}

	// StopCoinJoin asks the coinjoin manager to stop mixing the wallet.
	StopCoinJoin struct{}

	// StatusChanged carries the status message to show to the user.
	StatusChanged struct {
		Message string
	}

	// ProgressChanged carries the countdown until an automatic start.
	ProgressChanged struct {
		Elapsed   time.Duration
		Remaining time.Duration

		// Percent is the share of the countdown that passed, between
		// 0 and 100.
		Percent float64
	}
)

func (StartCoinJoin) isEffect()   {}
func (StopCoinJoin) isEffect()    {}
func (StatusChanged) isEffect()   {}
func (ProgressChanged) isEffect() {}

// Status messages shown to the user.
const (
	msgCountDown   = "Waiting to auto-start coinjoin"
	msgCoinJoining = "Coinjoining"
	msgPaused      = "Coinjoin is paused"
	msgStopped     = "Coinjoin is stopped"
)

// Model is the complete, immutable state of the machine.
type Model struct {
	// State is the current leaf state.
	State State

	// CountdownStarted is when the current countdown towards an automatic
	// start began.
	CountdownStarted time.Time

	// AutoStartAt is when the coinjoin manager plans to join the next
	// round. It is zero until announced.
	AutoStartAt time.Time
}
