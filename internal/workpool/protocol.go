package workpool

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Message types streamed by a worker process on stdout, one JSON document per
// line.
const (
	MessageProgress = "progress"
	MessageResult   = "result"
	MessageError    = "error"
)

// Message is the worker-to-daemon line protocol.
type Message struct {
	Type    string  `json:"type"`
	Stage   string  `json:"stage,omitempty"`
	Percent float64 `json:"percent,omitempty"`
	Message string  `json:"message,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// Emitter serializes protocol messages onto a worker's stdout.
type Emitter struct {
	mu  sync.Mutex
	out io.Writer
}

func NewEmitter(out io.Writer) *Emitter {
	return &Emitter{out: out}
}

func (e *Emitter) emit(msg Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	fmt.Fprintf(e.out, "%s\n", payload)
}

// Progress reports a stage milestone.
func (e *Emitter) Progress(stage, message string, percent float64) {
	e.emit(Message{Type: MessageProgress, Stage: stage, Percent: percent, Message: message})
}

// Done signals successful completion.
func (e *Emitter) Done() {
	e.emit(Message{Type: MessageResult})
}

// Fail reports the failure reason before the worker exits non-zero.
func (e *Emitter) Fail(reason string) {
	e.emit(Message{Type: MessageError, Error: reason})
}
