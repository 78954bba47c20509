package statemachine

import (
	"sync"
)

// StateFn is a state function following Rob Pike's pattern: each state is a
// function that does its work and returns the next state function, or nil to
// terminate the machine.
type StateFn[T any] func(*T) StateFn[T]

// StateEvent describes a transition edge observed by a machine callback.
type StateEvent int

const (
	StateEntered StateEvent = iota
	StateExited
)

// StateMachine is a small, thread-safe wrapper around a StateFn. The entity
// carries all of the actual state; the machine only tracks which function is
// current.
type StateMachine[T any] struct {
	entity  *T
	stateFn StateFn[T]
	mu      sync.RWMutex
}

// New creates a state machine for entity starting at initial.
func New[T any](entity *T, initial StateFn[T]) *StateMachine[T] {
	return &StateMachine[T]{
		entity:  entity,
		stateFn: initial,
	}
}

// Dispatch sets stateFn as current (when non-nil), runs it once, and
// transitions to whatever it returns.
func (sm *StateMachine[T]) Dispatch(stateFn StateFn[T]) {
	sm.mu.Lock()
	if stateFn != nil {
		sm.stateFn = stateFn
	}
	current := sm.stateFn
	sm.mu.Unlock()

	if current == nil {
		return
	}

	next := current(sm.entity)

	sm.mu.Lock()
	sm.stateFn = next
	sm.mu.Unlock()
}

// Current returns the current state function.
func (sm *StateMachine[T]) Current() StateFn[T] {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.stateFn
}

// SetState replaces the current state function without running it.
func (sm *StateMachine[T]) SetState(stateFn StateFn[T]) {
	sm.mu.Lock()
	sm.stateFn = stateFn
	sm.mu.Unlock()
}
