// Package telemetry carries the ambient logging and metrics concerns:
// structured-ish stdlib logging, a bounded rate-limited audit log for room
// lifecycle/kill events, and Prometheus instrumentation.
package telemetry

import (
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// EventType enumerates the room-lifecycle/combat events worth auditing.
// Trimmed from the teacher's much larger catalog down to what this domain
// actually emits.
type EventType string

const (
	EventRoomCreated   EventType = "room_created"
	EventPlayerJoined  EventType = "player_joined"
	EventPlayerLeft    EventType = "player_left"
	EventKill          EventType = "kill"
	EventRoomFinished  EventType = "room_finished"
	EventAdmissionDrop EventType = "admission_drop"
)

// Event is one append-only audit record.
type Event struct {
	Sequence  uint64      `json:"sequence"`
	Type      EventType   `json:"type"`
	RoomToken string      `json:"room_token,omitempty"`
	PlayerID  uint32      `json:"player_id,omitempty"`
	At        time.Time   `json:"at"`
	Payload   interface{} `json:"payload,omitempty"`
}

const (
	eventBufferSize    = 1024
	maxEventsPerSecond = 2000
	batchFlushSize     = 64
	batchFlushInterval = 200 * time.Millisecond
)

// EventLog is a bounded, rate-limited, backpressure-safe audit log. Under
// sustained overload it drops the oldest buffered events rather than
// blocking the caller, the same trade-off the teacher's EventLog makes.
type EventLog struct {
	buffer    [eventBufferSize]Event
	writeHead uint64
	readHead  uint64

	limiter *rate.Limiter

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	fileMu sync.Mutex
	file   *os.File

	dropped uint64
	total   uint64
}

// NewEventLog constructs an EventLog. Call Start to begin writing.
func NewEventLog() *EventLog {
	return &EventLog{
		limiter:  rate.NewLimiter(maxEventsPerSecond, maxEventsPerSecond/10),
		stopChan: make(chan struct{}),
	}
}

// Start opens filePath for append (if non-empty) and begins the async
// batched writer. Passing an empty path keeps the in-memory ring buffer
// without persisting to disk, useful in tests.
func (el *EventLog) Start(filePath string) error {
	if el.running.Load() {
		return nil
	}
	if filePath != "" {
		f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		el.file = f
	}
	el.running.Store(true)
	el.wg.Add(1)
	go el.writerLoop()
	return nil
}

// Stop flushes pending events and closes the backing file.
func (el *EventLog) Stop() {
	el.stopOnce.Do(func() {
		el.running.Store(false)
		close(el.stopChan)
		el.wg.Wait()
		el.fileMu.Lock()
		if el.file != nil {
			el.file.Close()
		}
		el.fileMu.Unlock()
	})
}

// Emit records an event, subject to the global rate limit and the ring
// buffer's backpressure policy. Returns false if the event was dropped.
func (el *EventLog) Emit(evt Event) bool {
	if !el.running.Load() {
		return false
	}
	if !el.limiter.Allow() {
		atomic.AddUint64(&el.dropped, 1)
		return false
	}

	head := atomic.AddUint64(&el.writeHead, 1)
	tail := atomic.LoadUint64(&el.readHead)
	if head-tail >= eventBufferSize {
		atomic.AddUint64(&el.readHead, 1)
		atomic.AddUint64(&el.dropped, 1)
	}

	evt.Sequence = head
	if evt.At.IsZero() {
		evt.At = time.Now()
	}
	el.buffer[head%eventBufferSize] = evt
	atomic.AddUint64(&el.total, 1)
	return true
}

func (el *EventLog) writerLoop() {
	defer el.wg.Done()
	ticker := time.NewTicker(batchFlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, batchFlushSize)
	for {
		select {
		case <-el.stopChan:
			el.flushBatch(el.collectBatch(batch[:0]))
			return
		case <-ticker.C:
			batch = el.collectBatch(batch[:0])
			if len(batch) > 0 {
				el.flushBatch(batch)
			}
		}
	}
}

func (el *EventLog) collectBatch(batch []Event) []Event {
	head := atomic.LoadUint64(&el.writeHead)
	tail := atomic.LoadUint64(&el.readHead)
	for i := tail; i < head && len(batch) < batchFlushSize; i++ {
		batch = append(batch, el.buffer[i%eventBufferSize])
	}
	if len(batch) > 0 {
		atomic.AddUint64(&el.readHead, uint64(len(batch)))
	}
	return batch
}

func (el *EventLog) flushBatch(batch []Event) {
	if el.file == nil || len(batch) == 0 {
		return
	}
	el.fileMu.Lock()
	defer el.fileMu.Unlock()
	for _, evt := range batch {
		data, err := json.Marshal(evt)
		if err != nil {
			continue
		}
		el.file.Write(data)
		el.file.Write([]byte("\n"))
	}
}

// Stats reports counters useful for a /health or /metrics endpoint.
func (el *EventLog) Stats() (total, dropped, pending uint64) {
	head := atomic.LoadUint64(&el.writeHead)
	tail := atomic.LoadUint64(&el.readHead)
	return atomic.LoadUint64(&el.total), atomic.LoadUint64(&el.dropped), head - tail
}
