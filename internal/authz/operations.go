// Package authz decides whether an authenticated consumer may invoke a
// protected operation. Operations are declared up front; permissions are a
// set relation from consumer id to operation ids, replaceable at runtime
// when credentials reload.
package authz

import (
	"fmt"
	"strings"
	"sync"
)

// Operation describes a protected API operation.
type Operation struct {
	// ID is the stable identifier permissions refer to.
	ID string

	// Method and Path locate the operation on the wire.
	Method string
	Path   string

	// Title is the human-readable name used in challenge text.
	Title string

	// RequiresAuth marks operations that demand an authenticated caller.
	RequiresAuth bool
}

// Registry holds the declared operations, indexed by id.
type Registry struct {
	ops map[string]Operation
}

// NewRegistry builds a registry from the declared operations. Duplicate ids
// are an error.
func NewRegistry(ops []Operation) (*Registry, error) {
	r := &Registry{ops: make(map[string]Operation, len(ops))}
	for _, op := range ops {
		if op.ID == "" {
			return nil, fmt.Errorf("operation with empty id")
		}
		if _, dup := r.ops[op.ID]; dup {
			return nil, fmt.Errorf("duplicate operation id %q", op.ID)
		}
		op.Method = strings.ToUpper(op.Method)
		if op.Title == "" {
			op.Title = op.ID
		}
		r.ops[op.ID] = op
	}
	return r, nil
}

// Lookup returns the operation for the given id.
func (r *Registry) Lookup(id string) (Operation, bool) {
	op, ok := r.ops[id]
	return op, ok
}

// RequiresAuth reports whether the operation demands authentication.
// Unknown operations require authentication so a routing mistake fails
// closed.
func (r *Registry) RequiresAuth(id string) bool {
	op, ok := r.ops[id]
	if !ok {
		return true
	}
	return op.RequiresAuth
}

// Operations returns all declared operations.
func (r *Registry) Operations() []Operation {
	out := make([]Operation, 0, len(r.ops))
	for _, op := range r.ops {
		out = append(out, op)
	}
	return out
}

// PermissionSet answers set-membership queries from consumer id to
// permitted operation ids.
type PermissionSet interface {
	// IsPermitted reports whether the consumer may invoke the operation.
	IsPermitted(consumerID, operationID string) bool
}

// MemoryPermissions is an in-memory PermissionSet with atomic replacement,
// fed from the credential file.
type MemoryPermissions struct {
	mu      sync.RWMutex
	granted map[string]map[string]struct{}
}

// NewMemoryPermissions creates an empty permission set.
func NewMemoryPermissions() *MemoryPermissions {
	return &MemoryPermissions{granted: make(map[string]map[string]struct{})}
}

// IsPermitted reports whether the consumer holds the operation grant.
func (p *MemoryPermissions) IsPermitted(consumerID, operationID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ops, ok := p.granted[consumerID]
	if !ok {
		return false
	}
	_, ok = ops[operationID]
	return ok
}

// Replace atomically swaps the whole permission relation.
func (p *MemoryPermissions) Replace(grants map[string][]string) {
	next := make(map[string]map[string]struct{}, len(grants))
	for consumerID, ops := range grants {
		set := make(map[string]struct{}, len(ops))
		for _, op := range ops {
			set[op] = struct{}{}
		}
		next[consumerID] = set
	}

	p.mu.Lock()
	p.granted = next
	p.mu.Unlock()
}

// Grant adds a single permission, used in tests and provisioning.
func (p *MemoryPermissions) Grant(consumerID, operationID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ops, ok := p.granted[consumerID]
	if !ok {
		ops = make(map[string]struct{})
		p.granted[consumerID] = ops
	}
	ops[operationID] = struct{}{}
}

// Ensure MemoryPermissions implements PermissionSet.
var _ PermissionSet = (*MemoryPermissions)(nil)
