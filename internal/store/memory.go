package store

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryDirectory is an in-memory implementation of the Directory interface.
// It is safe for concurrent use and is the default backend for development
// and tests.
type MemoryDirectory struct {
	mu        sync.RWMutex
	consumers map[string]*Consumer // by consumer key
	tokens    map[string]*Token    // by token string
	nonces    map[string]time.Time // nonce tuple -> first seen

	nonceTTL time.Duration
	now      func() time.Time
}

// MemoryOption is a functional option for the memory directory.
type MemoryOption func(*MemoryDirectory)

// WithNonceTTL sets the nonce retention window. Zero retains nonces forever.
func WithNonceTTL(ttl time.Duration) MemoryOption {
	return func(d *MemoryDirectory) {
		d.nonceTTL = ttl
	}
}

// WithClock overrides the time source, used in tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(d *MemoryDirectory) {
		d.now = now
	}
}

// NewMemoryDirectory creates a new in-memory directory.
func NewMemoryDirectory(opts ...MemoryOption) *MemoryDirectory {
	d := &MemoryDirectory{
		consumers: make(map[string]*Consumer),
		tokens:    make(map[string]*Token),
		nonces:    make(map[string]time.Time),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// LookupConsumer resolves a consumer by its key.
func (d *MemoryDirectory) LookupConsumer(_ context.Context, key string) (*Consumer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.consumers[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// ResolveAccessToken resolves an access token owned by the given consumer.
func (d *MemoryDirectory) ResolveAccessToken(_ context.Context, consumer *Consumer, token string) (*Token, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	t, ok := d.tokens[token]
	if !ok || t.ConsumerID != consumer.ID || !t.IsValid() {
		return nil, ErrNotFound
	}
	tp := *t
	return &tp, nil
}

// CheckAndRecordNonce atomically records the nonce under the directory lock.
func (d *MemoryDirectory) CheckAndRecordNonce(_ context.Context, consumerID, tokenID string, _ int64, nonce string) error {
	key := nonceKey(consumerID, tokenID, nonce)
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if firstSeen, ok := d.nonces[key]; ok {
		if d.nonceTTL == 0 || now.Sub(firstSeen) < d.nonceTTL {
			return ErrNonceAlreadyUsed
		}
		// Record aged out of the retention window; the timestamp
		// freshness check has already rejected stale requests.
	}
	d.nonces[key] = now
	return nil
}

// PutConsumer adds or replaces a consumer record. Provisioning seam for
// deployment tooling and the credential file loader.
func (d *MemoryDirectory) PutConsumer(c *Consumer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *c
	if cp.ID == "" {
		cp.ID = cp.Key
	}
	d.consumers[cp.Key] = &cp
}

// PutToken adds or replaces a token record.
func (d *MemoryDirectory) PutToken(t *Token) {
	d.mu.Lock()
	defer d.mu.Unlock()
	tp := *t
	if tp.Status == "" {
		tp.Status = TokenStatusValid
	}
	d.tokens[tp.Token] = &tp
}

// ReplaceCredentials atomically swaps all consumer and token records.
// Consumed nonces survive the swap so a reload cannot re-open the replay
// window.
func (d *MemoryDirectory) ReplaceCredentials(consumers []Consumer, tokens []Token) {
	next := make(map[string]*Consumer, len(consumers))
	for i := range consumers {
		c := consumers[i]
		if c.ID == "" {
			c.ID = c.Key
		}
		next[c.Key] = &c
	}
	nextTokens := make(map[string]*Token, len(tokens))
	for i := range tokens {
		t := tokens[i]
		if t.Status == "" {
			t.Status = TokenStatusValid
		}
		nextTokens[t.Token] = &t
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.consumers = next
	d.tokens = nextTokens
}

// PruneNonces drops nonce records first seen before the cutoff.
func (d *MemoryDirectory) PruneNonces(cutoff time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	pruned := 0
	for key, firstSeen := range d.nonces {
		if firstSeen.Before(cutoff) {
			delete(d.nonces, key)
			pruned++
		}
	}
	return pruned
}

// NonceCount returns the number of retained nonce records.
func (d *MemoryDirectory) NonceCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.nonces)
}

// nonceKey builds the unique key for a (consumer, token, nonce) tuple.
func nonceKey(consumerID, tokenID, nonce string) string {
	return strings.Join([]string{consumerID, tokenID, nonce}, "\x00")
}

// Ensure MemoryDirectory implements Directory.
var _ Directory = (*MemoryDirectory)(nil)
