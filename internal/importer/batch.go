package importer

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/extract"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/model"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/reconcile"
)

// Status is the lifecycle state of a batch item.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusPending    Status = "pending"
	StatusEdited     Status = "edited"
	StatusCommitting Status = "committing"
	StatusCommitted  Status = "committed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusCommitted || s == StatusFailed
}

// State is the lifecycle state of a whole batch.
type State string

const (
	StateProcessing State = "processing"
	StateReady      State = "ready"
	StateCommitting State = "committing"
	StateCommitted  State = "committed"
	StateCancelled  State = "cancelled"
	StateAborted    State = "aborted"
)

// open reports whether the batch still accepts edits and a commit.
func (s State) open() bool { return s == StateReady }

// Document is one uploaded source document.
type Document struct {
	Name    string `json:"name"`
	Content []byte `json:"-"`
}

// Item is one document of a batch with its extraction and review state.
type Item struct {
	ID             string                      `json:"id"`
	Index          int                         `json:"index"`
	Source         string                      `json:"source"`
	Status         Status                      `json:"status"`
	Record         model.ExtractedPolicyRecord `json:"record"`
	Confidence     model.ConfidenceScore       `json:"confidence"`
	Reconciliation reconcile.Result            `json:"reconciliation"`
	Pins           reconcile.Pins              `json:"pins"`
	Rejected       []extract.Rejection         `json:"rejected,omitempty"`
	Notes          []ItemError                 `json:"notes,omitempty"`
	Error          *ItemError                  `json:"error,omitempty"`
	PolicyID       string                      `json:"policy_id,omitempty"`
	UpdatedAt      time.Time                   `json:"updated_at"`
}

func (it *Item) note(e *ItemError) {
	it.Notes = append(it.Notes, *e)
}

// clone returns a copy that shares nothing mutable with it.
func (it *Item) clone() Item {
	c := *it
	c.Rejected = slices.Clone(it.Rejected)
	c.Notes = slices.Clone(it.Notes)
	if it.Error != nil {
		e := *it.Error
		c.Error = &e
	}
	return c
}

// ItemResult is the outcome of committing one item.
type ItemResult struct {
	ItemID    string     `json:"item_id"`
	Source    string     `json:"source"`
	Status    Status     `json:"status"`
	PolicyID  string     `json:"policy_id,omitempty"`
	ClientID  string     `json:"client_id,omitempty"`
	InsurerID string     `json:"insurer_id,omitempty"`
	BranchID  string     `json:"branch_id,omitempty"`
	Created   []string   `json:"created,omitempty"`
	Error     *ItemError `json:"error,omitempty"`
}

// BatchStatus is a point-in-time view of a batch.
type BatchStatus struct {
	ID        string    `json:"id"`
	State     State     `json:"state"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Items     []Item    `json:"items"`
}

// batch is one import session. mu guards state and items; docs are
// read-only after creation.
type batch struct {
	id        string
	createdAt time.Time
	docs      []Document

	mu       sync.Mutex
	state    State
	reason   string
	items    []*Item
	cancel   context.CancelFunc
	done     chan struct{}
	finished time.Time
}

func newBatch(id string, docs []Document, newID func() string) *batch {
	b := &batch{
		id:        id,
		createdAt: time.Now().UTC(),
		docs:      docs,
		state:     StateProcessing,
		items:     make([]*Item, len(docs)),
		done:      make(chan struct{}),
	}
	for i, d := range docs {
		b.items[i] = &Item{
			ID:        newID(),
			Index:     i,
			Source:    d.Name,
			Status:    StatusProcessing,
			UpdatedAt: b.createdAt,
		}
	}
	return b
}

func (b *batch) status() BatchStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := BatchStatus{
		ID:        b.id,
		State:     b.state,
		Reason:    b.reason,
		CreatedAt: b.createdAt,
		Items:     make([]Item, len(b.items)),
	}
	for i, it := range b.items {
		st.Items[i] = it.clone()
	}
	return st
}

func (b *batch) item(itemID string) (*Item, bool) {
	for _, it := range b.items {
		if it.ID == itemID {
			return it, true
		}
	}
	return nil, false
}

// update applies fn to the item at index i under the batch lock.
func (b *batch) update(i int, fn func(it *Item)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b.items[i])
	b.items[i].UpdatedAt = time.Now().UTC()
}

// snapshot returns a copy of the item at index i.
func (b *batch) snapshot(i int) Item {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.items[i].clone()
}

// failOpen marks every non-terminal item Failed with e.
func (b *batch) failOpen(e *ItemError) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now().UTC()
	for _, it := range b.items {
		if it.Status.Terminal() {
			continue
		}
		it.Status = StatusFailed
		copied := *e
		it.Error = &copied
		it.UpdatedAt = now
	}
}

// transition moves the batch to s when it is in one of from.
func (b *batch) transition(s State, reason string, from ...State) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !slices.Contains(from, b.state) {
		return false
	}
	b.setStateLocked(s, reason)
	return true
}

func (b *batch) setState(s State, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setStateLocked(s, reason)
}

func (b *batch) setStateLocked(s State, reason string) {
	b.state = s
	b.reason = reason
	switch s {
	case StateCommitted, StateCancelled, StateAborted:
		b.finished = time.Now()
	}
}

func (b *batch) current() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
