package reconciler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"room-router-backend/internal/broker"
	"room-router-backend/internal/config"
	"room-router-backend/internal/room"
)

// Per-room lifecycle. A room holds exactly one active listener while it
// exists and this process owns its reconciliation.
type roomState int

const (
	stateUnsynced roomState = iota
	stateEnsuring
	stateListening
	stateTornDown
)

// RoomLister is the registry view the reconciler diffs against.
type RoomLister interface {
	List() []room.Room
}

// Reconciler converges broker-side resources to match the registry: rooms
// present in the registry but not listening get ensure+listen, rooms
// listening but absent from the registry get their listener cancelled and
// the broker resource removed. Sync is single-flight; a trigger arriving
// mid-run coalesces into one follow-up run instead of racing resource
// creation.
type Reconciler struct {
	rooms         RoomLister
	adapter       broker.Adapter
	deliver       broker.DeliveryFunc
	retryInterval time.Duration

	mu       sync.Mutex
	cond     *sync.Cond
	tracked  map[string]room.Room
	states   map[string]roomState
	handles  map[string]broker.Handle
	lastErrs map[string]error

	running    bool
	pending    bool
	generation uint64
	retryTimer *time.Timer
	closed     bool
}

func New(rooms RoomLister, adapter broker.Adapter, deliver broker.DeliveryFunc, cfg config.ReconcilerConfig) *Reconciler {
	r := &Reconciler{
		rooms:         rooms,
		adapter:       adapter,
		deliver:       deliver,
		retryInterval: cfg.RetryInterval,
		tracked:       make(map[string]room.Room),
		states:        make(map[string]roomState),
		handles:       make(map[string]broker.Handle),
		lastErrs:      make(map[string]error),
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Sync drives broker state toward registry state. Safe to invoke
// concurrently with itself: only one run is ever in flight and concurrent
// triggers coalesce into the next run. Sync does not return until a run
// started at or after the call has completed, so callers can read
// RoomError knowing their change was reconciled.
func (r *Reconciler) Sync() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if r.running {
		r.pending = true
		// The in-flight run completes as generation+1 but may predate
		// this trigger; the coalesced follow-up completes as
		// generation+2 and is guaranteed to observe it.
		target := r.generation + 2
		for r.generation < target && !r.closed {
			r.cond.Wait()
		}
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	for {
		r.runOnce()

		r.mu.Lock()
		r.generation++
		r.cond.Broadcast()
		if r.pending && !r.closed {
			r.pending = false
			r.mu.Unlock()
			continue
		}
		r.running = false
		r.mu.Unlock()
		return
	}
}

func (r *Reconciler) runOnce() {
	incSyncRuns()
	ctx := context.Background()

	desired := make(map[string]room.Room)
	for _, rm := range r.rooms.List() {
		desired[rm.ID] = rm
	}

	// Snapshot what we track; network calls happen outside the lock. Only
	// one runOnce executes at a time, so the maps cannot change underneath
	// other than through this method.
	r.mu.Lock()
	var toStart []room.Room
	var toTear []room.Room
	for id, rm := range desired {
		if r.states[id] != stateListening {
			toStart = append(toStart, rm)
		}
	}
	for id, rm := range r.tracked {
		if _, ok := desired[id]; !ok {
			toTear = append(toTear, rm)
		}
	}
	r.mu.Unlock()

	retryNeeded := false
	for _, rm := range toStart {
		if r.startRoom(ctx, rm) {
			continue
		}
		r.mu.Lock()
		retryable := !errors.Is(r.lastErrs[rm.ID], broker.ErrResourceLimitExceeded)
		r.mu.Unlock()
		if retryable {
			retryNeeded = true
		}
	}

	for _, rm := range toTear {
		r.tearDownRoom(ctx, rm)
	}

	r.mu.Lock()
	setListening(r.countListeningLocked())
	if retryNeeded && r.retryTimer == nil && !r.closed {
		r.retryTimer = time.AfterFunc(r.retryInterval, func() {
			r.mu.Lock()
			r.retryTimer = nil
			r.mu.Unlock()
			r.Sync()
		})
	}
	r.mu.Unlock()
}

// startRoom moves a room from Unsynced through Ensuring to Listening.
// Returns false when the room is stuck in Ensuring.
func (r *Reconciler) startRoom(ctx context.Context, rm room.Room) bool {
	r.mu.Lock()
	r.tracked[rm.ID] = rm
	r.states[rm.ID] = stateEnsuring
	r.mu.Unlock()

	if err := r.adapter.Ensure(ctx, rm); err != nil {
		log.Printf("reconciler: ensure room %s: %v", rm.ID, err)
		r.mu.Lock()
		r.lastErrs[rm.ID] = err
		r.mu.Unlock()
		return false
	}

	handle, err := r.adapter.Listen(rm, r.deliver)
	if err != nil {
		log.Printf("reconciler: listen room %s: %v", rm.ID, err)
		r.mu.Lock()
		r.lastErrs[rm.ID] = err
		r.mu.Unlock()
		return false
	}

	r.mu.Lock()
	r.states[rm.ID] = stateListening
	r.handles[rm.ID] = handle
	delete(r.lastErrs, rm.ID)
	r.mu.Unlock()
	log.Printf("reconciler: room %s listening", rm.ID)
	return true
}

// tearDownRoom cancels the room's listener, waits for it to terminate, and
// only then releases the broker resource, so no delivery can reference a
// room whose resource is already gone.
func (r *Reconciler) tearDownRoom(ctx context.Context, rm room.Room) {
	r.mu.Lock()
	handle := r.handles[rm.ID]
	delete(r.handles, rm.ID)
	r.mu.Unlock()

	if handle != nil {
		handle.Stop()
	}
	if err := r.adapter.Remove(ctx, rm); err != nil {
		log.Printf("reconciler: remove room %s: %v", rm.ID, err)
	}

	r.mu.Lock()
	r.states[rm.ID] = stateTornDown
	delete(r.tracked, rm.ID)
	delete(r.states, rm.ID)
	delete(r.lastErrs, rm.ID)
	r.mu.Unlock()
	log.Printf("reconciler: room %s torn down", rm.ID)
}

// RoomError reports the last reconciliation error for a room, nil when the
// room is healthy. Used by the create path to surface quota exhaustion to
// the room creator.
func (r *Reconciler) RoomError(roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErrs[roomID]
}

// ListeningCount reports rooms with an active listener.
func (r *Reconciler) ListeningCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countListeningLocked()
}

func (r *Reconciler) countListeningLocked() int {
	n := 0
	for _, st := range r.states {
		if st == stateListening {
			n++
		}
	}
	return n
}

// Close stops every listener and cancels pending retries. Broker resources
// are left in place: rooms persist across restarts and the next startup
// sync reattaches to them.
func (r *Reconciler) Close() {
	r.mu.Lock()
	r.closed = true
	r.cond.Broadcast()
	if r.retryTimer != nil {
		r.retryTimer.Stop()
		r.retryTimer = nil
	}
	handles := make([]broker.Handle, 0, len(r.handles))
	for id, h := range r.handles {
		handles = append(handles, h)
		delete(r.handles, id)
		r.states[id] = stateTornDown
	}
	r.mu.Unlock()

	for _, h := range handles {
		h.Stop()
	}
}
