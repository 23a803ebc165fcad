package engine

import "sync"

type commandKind int

const (
	cmdPlay commandKind = iota
	cmdPlayCrossfade
	cmdPause
	cmdResume
	cmdStop
)

func (k commandKind) String() string {
	switch k {
	case cmdPlay:
		return "play"
	case cmdPlayCrossfade:
		return "play-crossfade"
	case cmdPause:
		return "pause"
	case cmdResume:
		return "resume"
	case cmdStop:
		return "stop"
	default:
		return "unknown"
	}
}

type command struct {
	kind     commandKind
	path     string
	duration float64
	// fadeSeconds overrides the configured crossfade duration for one
	// transition; zero means use the configured value.
	fadeSeconds float64
}

// commandQueue is an unbounded FIFO between callers and the control loop.
// Pushing never blocks; the loop applies one command per tick so lifecycle
// changes stay serialized.
type commandQueue struct {
	mu    sync.Mutex
	items []command
}

func (q *commandQueue) push(c command) {
	q.mu.Lock()
	q.items = append(q.items, c)
	q.mu.Unlock()
}

func (q *commandQueue) pop() (command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return command{}, false
	}
	c := q.items[0]
	q.items = q.items[1:]
	return c, true
}
