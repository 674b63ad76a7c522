// Package trigger implements the emergency confirmation state machine.
//
// A trigger opens a confirmation window. Whichever of explicit confirm,
// explicit cancel, or window timeout happens first resolves the alert.
// Timeout resolves as confirmed: an unanswered emergency proceeds, on the
// assumption that silence more often means incapacitation than false alarm.
package trigger

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

// Kind identifies the trigger source.
type Kind string

const (
	KindVoice   Kind = "voice"
	KindGesture Kind = "gesture"
	KindManual  Kind = "manual"
)

// State is the machine state. Idle is both initial and post-resolution.
type State string

const (
	StateIdle     State = "idle"
	StateAwaiting State = "awaiting_confirmation"
)

// Resolution is the outcome of one confirmation window.
type Resolution string

const (
	ResolutionConfirmed Resolution = "confirmed"
	ResolutionCancelled Resolution = "cancelled"
	ResolutionTimedOut  Resolution = "timed_out_confirmed"
)

// DefaultConfirmTimeout is the confirmation window used when none is configured.
const DefaultConfirmTimeout = 10 * time.Second

// Event is one immutable trigger occurrence, consumed once by the machine.
type Event struct {
	Kind       Kind
	Data       string
	Confidence float64
	OccurredAt time.Time
}

// Callbacks receive lifecycle notifications. OnTriggered fires synchronously
// from Trigger; OnResolved fires from the window goroutine with exactly one
// resolution per accepted trigger. Panics inside callbacks are recovered and
// logged so the machine always returns to Idle.
type Callbacks struct {
	OnTriggered func(Event)
	OnResolved  func(Event, Resolution)
}

// Machine converts one trigger event into exactly one resolution, holding at
// most one confirmation window open at a time.
type Machine struct {
	mu        sync.Mutex
	state     State
	timeout   time.Duration
	cb        Callbacks
	signalled bool
	signalCh  chan Resolution
	current   Event
	openedAt  time.Time
}

// New creates a Machine with the given confirmation timeout.
func New(timeout time.Duration, cb Callbacks) *Machine {
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	return &Machine{
		state:   StateIdle,
		timeout: timeout,
		cb:      cb,
	}
}

// Trigger opens a confirmation window for ev. Returns false without side
// effects if a window is already open: a new emergency cannot interrupt one
// awaiting confirmation.
func (m *Machine) Trigger(ev Event) bool {
	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		log.Printf("trigger: %s trigger rejected, confirmation window already open", ev.Kind)
		return false
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	m.state = StateAwaiting
	m.signalled = false
	m.signalCh = make(chan Resolution, 1)
	m.current = ev
	m.openedAt = time.Now()
	signalCh := m.signalCh
	m.mu.Unlock()

	log.Printf("trigger: %s emergency accepted (confidence %.2f), awaiting confirmation for %s", ev.Kind, ev.Confidence, m.timeout)

	safeInvoke("triggered", func() {
		if m.cb.OnTriggered != nil {
			m.cb.OnTriggered(ev)
		}
	})

	go m.window(ev, signalCh)
	return true
}

// window waits for a confirm/cancel signal or the timeout, invokes the
// resolution callback exactly once, and resets the machine to Idle.
func (m *Machine) window(ev Event, signalCh <-chan Resolution) {
	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	var res Resolution
	select {
	case res = <-signalCh:
	case <-timer.C:
		res = ResolutionTimedOut
		log.Printf("trigger: confirmation timeout elapsed, proceeding automatically")
	}

	safeInvoke("resolved", func() {
		if m.cb.OnResolved != nil {
			m.cb.OnResolved(ev, res)
		}
	})

	m.mu.Lock()
	m.state = StateIdle
	m.signalCh = nil
	m.current = Event{}
	m.mu.Unlock()
	log.Printf("trigger: window closed (%s), machine idle", res)
}

// Confirm resolves the open window as confirmed. A no-op with a warning when
// no window is open or the window has already been signalled.
func (m *Machine) Confirm() {
	m.signal(ResolutionConfirmed)
}

// Cancel resolves the open window as cancelled. Safe to call from any
// goroutine at any time; losing the race to confirm or timeout is a no-op.
func (m *Machine) Cancel() {
	m.signal(ResolutionCancelled)
}

func (m *Machine) signal(res Resolution) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateAwaiting {
		log.Printf("trigger: no active emergency to %s", verbFor(res))
		return
	}
	if m.signalled {
		log.Printf("trigger: emergency already signalled, %s ignored", verbFor(res))
		return
	}
	m.signalled = true
	m.signalCh <- res
	log.Printf("trigger: emergency %s by user", res)
}

// Status reports the machine state for health/status endpoints.
type Status struct {
	State    State         `json:"state"`
	Kind     Kind          `json:"kind,omitempty"`
	Elapsed  time.Duration `json:"elapsed,omitempty"`
	Deadline time.Time     `json:"deadline,omitempty"`
}

// Status returns a snapshot of the machine state.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Status{State: m.state}
	if m.state == StateAwaiting {
		s.Kind = m.current.Kind
		s.Elapsed = time.Since(m.openedAt)
		s.Deadline = m.openedAt.Add(m.timeout)
	}
	return s
}

// MatchKeyword reports the first emergency keyword contained in text,
// case-insensitively. Returns ok=false when text contains none.
func MatchKeyword(text string, keywords []string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return kw, true
		}
	}
	return "", false
}

// EmergencyGesture is the gesture type that maps to an emergency trigger.
const EmergencyGesture = "two_fingers"

// GestureEvent builds a gesture trigger event; ok=false when the gesture type
// is not the emergency gesture.
func GestureEvent(gestureType string, confidence float64) (Event, bool) {
	if gestureType != EmergencyGesture {
		return Event{}, false
	}
	return Event{
		Kind:       KindGesture,
		Data:       fmt.Sprintf("%s gesture (confidence: %.2f)", gestureType, confidence),
		Confidence: confidence,
		OccurredAt: time.Now(),
	}, true
}

func verbFor(res Resolution) string {
	if res == ResolutionCancelled {
		return "cancel"
	}
	return "confirm"
}

// safeInvoke runs fn, recovering and logging any panic so callback failures
// never leave the machine stuck outside Idle.
func safeInvoke(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("trigger: %s callback panic: %v", name, r)
		}
	}()
	fn()
}
