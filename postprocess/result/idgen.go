package result

import "sync"

// IDGenerator holds a counter for stamping detection results with an
// incremental ID so a detection can be followed through merging, tracking
// and pool reconciliation
type IDGenerator struct {
	id int64
	sync.Mutex
}

// NewIDGenerator returns a generator whose first ID is 1
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// GetNext returns the next incremental ID
func (id *IDGenerator) GetNext() int64 {
	id.Lock()
	defer id.Unlock()
	id.id++
	return id.id
}

// Reset restarts the counter so the next ID issued is 1
func (id *IDGenerator) Reset() {
	id.Lock()
	defer id.Unlock()
	id.id = 0
}
