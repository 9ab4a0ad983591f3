package conversation

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"chat-client/internal/models"
)

// TypingEmitter announces local typing to the room. Activity is a monotonic timestamp
// compared when the check fires, so a keystroke just before the deadline re-arms the
// check instead of producing a premature "stop typing".
type TypingEmitter struct {
	mu      sync.Mutex
	emit    func(event string)
	timeout time.Duration
	limiter *rate.Limiter
	now     func() time.Time

	typing       bool
	lastActivity time.Time
	timer        *time.Timer
	gen          uint64
	closed       bool
}

// NewTypingEmitter constructs a TypingEmitter. perSecond caps "typing" emits.
func NewTypingEmitter(emit func(event string), timeout time.Duration, perSecond float64) *TypingEmitter {
	return &TypingEmitter{
		emit:    emit,
		timeout: timeout,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		now:     time.Now,
	}
}

// Keystroke records local input activity.
func (e *TypingEmitter) Keystroke() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.lastActivity = e.now()
	if e.typing || !e.limiter.Allow() {
		return
	}
	e.typing = true
	e.emit(models.EventTyping)
	e.armLocked(e.timeout)
}

// Stop emits "stop typing" right away if typing was announced.
func (e *TypingEmitter) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

// Typing reports whether "typing" is currently announced.
func (e *TypingEmitter) Typing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.typing
}

// Close stops like Stop and ignores later keystrokes.
func (e *TypingEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
	e.closed = true
}

func (e *TypingEmitter) stopLocked() {
	e.gen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if e.typing {
		e.typing = false
		e.emit(models.EventStopTyping)
	}
}

func (e *TypingEmitter) armLocked(d time.Duration) {
	e.gen++
	gen := e.gen
	e.timer = time.AfterFunc(d, func() { e.check(gen) })
}

func (e *TypingEmitter) check(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen || !e.typing {
		return
	}
	idle := e.now().Sub(e.lastActivity)
	if idle >= e.timeout {
		e.timer = nil
		e.typing = false
		e.emit(models.EventStopTyping)
		return
	}
	e.armLocked(e.timeout - idle)
}

// TypingIndicator tracks whether a peer is typing. It falls back to idle when no
// "typing" event arrives for the timeout, even without "stop typing".
type TypingIndicator struct {
	mu       sync.Mutex
	timeout  time.Duration
	onChange func(bool)
	now      func() time.Time

	typing bool
	last   time.Time
	timer  *time.Timer
	gen    uint64
}

// NewTypingIndicator constructs a TypingIndicator. onChange may be nil.
func NewTypingIndicator(timeout time.Duration, onChange func(bool)) *TypingIndicator {
	if onChange == nil {
		onChange = func(bool) {}
	}
	return &TypingIndicator{timeout: timeout, onChange: onChange, now: time.Now}
}

// Start handles a peer "typing" event.
func (t *TypingIndicator) Start() {
	t.mu.Lock()
	t.last = t.now()
	changed := !t.typing
	t.typing = true
	if t.timer == nil {
		t.armLocked(t.timeout)
	}
	t.mu.Unlock()

	if changed {
		t.onChange(true)
	}
}

// Stop handles a peer "stop typing" event.
func (t *TypingIndicator) Stop() {
	t.mu.Lock()
	changed := t.resetLocked()
	t.mu.Unlock()

	if changed {
		t.onChange(false)
	}
}

// Typing reports the current state.
func (t *TypingIndicator) Typing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.typing
}

// Close stops the timer without a change callback.
func (t *TypingIndicator) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
}

func (t *TypingIndicator) resetLocked() bool {
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	changed := t.typing
	t.typing = false
	return changed
}

func (t *TypingIndicator) armLocked(d time.Duration) {
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(d, func() { t.expire(gen) })
}

func (t *TypingIndicator) expire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || !t.typing {
		t.mu.Unlock()
		return
	}
	idle := t.now().Sub(t.last)
	if idle < t.timeout {
		t.armLocked(t.timeout - idle)
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.typing = false
	t.mu.Unlock()

	t.onChange(false)
}
