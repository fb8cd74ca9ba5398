package broker

import "sync"

// demux is the router-side filter table of the SharedFilter backend: one
// delivery function per room id. Dispatch holds the read lock for the
// duration of the callback, so unbind returns only after in-flight
// deliveries for the room have completed.
type demux struct {
	mu     sync.RWMutex
	routes map[string]DeliveryFunc
}

func newDemux() *demux {
	return &demux{routes: make(map[string]DeliveryFunc)}
}

func (d *demux) bind(roomID string, fn DeliveryFunc) {
	d.mu.Lock()
	d.routes[roomID] = fn
	d.mu.Unlock()
}

func (d *demux) unbind(roomID string) {
	d.mu.Lock()
	delete(d.routes, roomID)
	d.mu.Unlock()
}

// dispatch routes a payload to the room's delivery function, if bound.
// Messages for rooms with no bound listener are dropped; returns whether a
// listener handled the payload.
func (d *demux) dispatch(roomID string, payload []byte) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fn, ok := d.routes[roomID]
	if !ok {
		return false
	}
	fn(roomID, payload)
	return true
}

func (d *demux) size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.routes)
}
