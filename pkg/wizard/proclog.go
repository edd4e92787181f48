package wizard

import (
	"io"
	"sync"

	"github.com/armon/circbuf"
)

const subscriptionCapacity = 64

// ProcLog is a capped ring-buffer log with pub/sub fan-out, the same shape
// as the teacher's virtualizer stdout/stderr capture: a subprocess writes
// to it from one goroutine, any number of readers (the wizard's own
// Infof/Errorf relay, a future attached terminal) subscribe independently
// without blocking the writer.
type ProcLog struct {
	lock   sync.Mutex
	closed bool
	subs   map[*LogSubscription]bool
	buf    *circbuf.Buffer
}

// NewProcLog creates a ProcLog retaining at most bufferCapacity bytes of
// history for late subscribers.
func NewProcLog(bufferCapacity int64) *ProcLog {
	l := &ProcLog{subs: make(map[*LogSubscription]bool)}
	l.buf, _ = circbuf.NewBuffer(bufferCapacity)
	return l
}

// Write implements io.Writer so a ProcLog can be handed directly to
// exec.Cmd.Stdout/Stderr.
func (l *ProcLog) Write(p []byte) (int, error) {

	l.lock.Lock()
	defer l.lock.Unlock()

	if l.closed {
		return 0, io.EOF
	}

	n, err := l.buf.Write(p)
	if err != nil {
		return n, err
	}

	buf := make([]byte, len(p))
	copy(buf, p)
	for s := range l.subs {
		select {
		case s.ch <- buf:
		default:
		}
	}

	return n, nil
}

// Close unblocks every live subscription.
func (l *ProcLog) Close() error {

	l.lock.Lock()
	defer l.lock.Unlock()

	if l.closed {
		return nil
	}

	for s := range l.subs {
		delete(l.subs, s)
		close(s.ch)
	}
	l.closed = true

	return nil
}

// Subscribe returns a channel fed with every byte slice written after
// this call, seeded with whatever history the ring buffer still holds.
func (l *ProcLog) Subscribe() *LogSubscription {

	l.lock.Lock()
	defer l.lock.Unlock()

	s := &LogSubscription{ch: make(chan []byte, subscriptionCapacity)}

	history := l.buf.Bytes()
	seed := make([]byte, len(history))
	copy(seed, history)
	s.ch <- seed

	if l.closed {
		close(s.ch)
		return s
	}

	l.subs[s] = true
	return s
}

// LogSubscription is one reader's view of a ProcLog.
type LogSubscription struct {
	ch chan []byte
}

// Inbox is the channel of newly written chunks.
func (s *LogSubscription) Inbox() <-chan []byte {
	return s.ch
}
