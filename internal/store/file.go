package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/apiward/oauth1gw/internal/observability"
)

// Snapshot is the on-disk credential set: consumers, the tokens delegated to
// them, and the operation permissions granted per consumer key.
type Snapshot struct {
	Consumers   []Consumer          `yaml:"consumers"`
	Tokens      []Token             `yaml:"tokens"`
	Permissions map[string][]string `yaml:"permissions"`
}

// LoadCredentialsFile reads and validates a credential snapshot from a YAML
// file.
func LoadCredentialsFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Operator-provided path
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("invalid credentials file: %w", err)
	}
	return &snap, nil
}

// Validate checks the snapshot for internal consistency.
func (s *Snapshot) Validate() error {
	keys := make(map[string]struct{}, len(s.Consumers))
	ids := make(map[string]struct{}, len(s.Consumers))
	for i := range s.Consumers {
		c := &s.Consumers[i]
		if c.Key == "" {
			return fmt.Errorf("consumer %d: key is required", i)
		}
		if _, dup := keys[c.Key]; dup {
			return fmt.Errorf("duplicate consumer key %q", c.Key)
		}
		keys[c.Key] = struct{}{}
		id := c.ID
		if id == "" {
			id = c.Key
		}
		ids[id] = struct{}{}
	}

	seen := make(map[string]struct{}, len(s.Tokens))
	for i := range s.Tokens {
		t := &s.Tokens[i]
		if t.Token == "" {
			return fmt.Errorf("token %d: token value is required", i)
		}
		if _, dup := seen[t.Token]; dup {
			return fmt.Errorf("duplicate token %q", t.Token)
		}
		seen[t.Token] = struct{}{}
		if t.ConsumerID == "" {
			return fmt.Errorf("token %q: consumerId is required", t.Token)
		}
		if _, ok := ids[t.ConsumerID]; !ok {
			return fmt.Errorf("token %q references unknown consumer %q", t.Token, t.ConsumerID)
		}
	}

	for key := range s.Permissions {
		if _, ok := keys[key]; !ok {
			return fmt.Errorf("permissions reference unknown consumer key %q", key)
		}
	}
	return nil
}

// PermissionGrants resolves the key-indexed permission map to consumer ids,
// the form the authorization gate queries by.
func (s *Snapshot) PermissionGrants() map[string][]string {
	idByKey := make(map[string]string, len(s.Consumers))
	for i := range s.Consumers {
		c := &s.Consumers[i]
		id := c.ID
		if id == "" {
			id = c.Key
		}
		idByKey[c.Key] = id
	}

	grants := make(map[string][]string, len(s.Permissions))
	for key, ops := range s.Permissions {
		if id, ok := idByKey[key]; ok {
			grants[id] = append(grants[id], ops...)
		}
	}
	return grants
}

// SnapshotApplier receives each loaded snapshot. The directory and the
// permission store both register through it.
type SnapshotApplier func(*Snapshot)

// CredentialWatcher reloads the credential file when it changes on disk and
// pushes the new snapshot to the registered applier.
type CredentialWatcher struct {
	logger  observability.Logger
	path    string
	apply   SnapshotApplier
	watcher *fsnotify.Watcher

	mu     sync.Mutex
	closed bool
}

// NewCredentialWatcher starts watching the credential file's directory.
// Watching the directory rather than the file survives the rename-based
// atomic writes editors and configmap mounts perform.
func NewCredentialWatcher(path string, apply SnapshotApplier, logger observability.Logger) (*CredentialWatcher, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch credentials directory: %w", err)
	}

	w := &CredentialWatcher{
		logger:  logger,
		path:    path,
		apply:   apply,
		watcher: fw,
	}
	return w, nil
}

// Run processes file events until the context is cancelled or the watcher is
// closed.
func (w *CredentialWatcher) Run(ctx context.Context) {
	// Reload events are debounced because a single save often arrives as a
	// burst of write and chmod events.
	var timer *time.Timer
	const debounce = 200 * time.Millisecond

	target := filepath.Clean(w.path)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, w.reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("credential watcher error", observability.Error(err))
		}
	}
}

// reload loads the file and applies the snapshot. A broken file is logged and
// skipped so the directory keeps serving the last good credential set.
func (w *CredentialWatcher) reload() {
	snap, err := LoadCredentialsFile(w.path)
	if err != nil {
		w.logger.Error("credential reload failed, keeping previous snapshot",
			observability.String("path", w.path),
			observability.Error(err))
		return
	}

	w.apply(snap)
	w.logger.Info("credentials reloaded",
		observability.String("path", w.path),
		observability.Int("consumers", len(snap.Consumers)),
		observability.Int("tokens", len(snap.Tokens)))
}

// Close stops the watcher.
func (w *CredentialWatcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.watcher.Close()
}
