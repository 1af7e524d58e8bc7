package engine

// Signal is one health observation about an identity.
type Signal string

const (
	SignalNone    Signal = ""
	SignalNormal  Signal = "normal"
	SignalWarning Signal = "warning"
)

// historyLen is how many recent signals an identity remembers. A full
// history of warnings triggers a profile reset.
const historyLen = 3

// History is a fixed-size ring of the most recent signals. The zero value is
// empty and ready to use. It is not safe for concurrent use; the pool guards
// it.
type History struct {
	buf  [historyLen]Signal
	next int
	n    int
}

// Push appends s, evicting the oldest signal when full.
func (h *History) Push(s Signal) {
	h.buf[h.next] = s
	h.next = (h.next + 1) % historyLen
	if h.n < historyLen {
		h.n++
	}
}

// Len reports how many signals are held.
func (h *History) Len() int { return h.n }

// Compromised reports whether the history is full and every entry is a
// warning.
func (h *History) Compromised() bool {
	if h.n < historyLen {
		return false
	}
	for _, s := range h.buf {
		if s != SignalWarning {
			return false
		}
	}
	return true
}

// Clear empties the history.
func (h *History) Clear() { *h = History{} }

// Signals returns the held signals, oldest first.
func (h *History) Signals() []Signal {
	out := make([]Signal, 0, h.n)
	start := (h.next - h.n + historyLen) % historyLen
	for i := 0; i < h.n; i++ {
		out = append(out, h.buf[(start+i)%historyLen])
	}
	return out
}
