package repositories

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Change is published after every successful scoped write
type Change struct {
	Table    string
	HostelID string
	ID       string
	Op       string
}

const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

type feedClient struct {
	id       string
	table    string
	hostelID string
	ch       chan Change
}

// ChangeFeed fans scoped writes out to live subscribers of the same table and hostel
type ChangeFeed struct {
	mu      sync.RWMutex
	clients map[string]*feedClient
	logger  *zap.Logger
}

// NewChangeFeed creates a new change feed
func NewChangeFeed(logger *zap.Logger) *ChangeFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChangeFeed{
		clients: make(map[string]*feedClient),
		logger:  logger,
	}
}

// Register adds a listener for one table of one hostel and returns its id and channel
func (f *ChangeFeed) Register(table, hostelID string) (string, <-chan Change) {
	c := &feedClient{
		id:       uuid.NewString(),
		table:    table,
		hostelID: hostelID,
		ch:       make(chan Change, 16),
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.clients[c.id] = c
	f.logger.Debug("change feed listener registered",
		zap.String("table", table), zap.String("hostel_id", hostelID), zap.Int("total", len(f.clients)))
	return c.id, c.ch
}

// Unregister removes a listener and closes its channel
func (f *ChangeFeed) Unregister(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.clients[id]; ok {
		close(c.ch)
		delete(f.clients, id)
	}
}

// Publish delivers a change to every listener of its table and hostel
func (f *ChangeFeed) Publish(change Change) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, c := range f.clients {
		if c.table != change.Table || c.hostelID != change.HostelID {
			continue
		}
		select {
		case c.ch <- change:
		default:
			// listener is behind; it re-reads the full snapshot on its next change anyway
			f.logger.Debug("change feed listener full, skipping", zap.String("listener", c.id))
		}
	}
}

// listenerCount returns the number of registered listeners
func (f *ChangeFeed) listenerCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}
