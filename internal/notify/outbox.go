package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// OutboxDir returns the default outbox location for a project.
func OutboxDir(projectRoot string) string {
	return filepath.Join(projectRoot, ".fulfiller", "outbox")
}

// OutboxSink writes each notification as a JSON file for an external
// email/SMS relay to pick up.
type OutboxSink struct {
	dir string
}

// NewOutboxSink creates the outbox directory if needed.
func NewOutboxSink(dir string) (*OutboxSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create outbox: %w", err)
	}
	return &OutboxSink{dir: dir}, nil
}

// Dir returns the outbox directory.
func (o *OutboxSink) Dir() string {
	return o.dir
}

// Notify writes n to the outbox. The file is written under a hidden temp
// name and renamed so watchers never see a partial file.
func (o *OutboxSink) Notify(_ context.Context, n Notification) error {
	n.ensureIdentity()

	data, err := json.MarshalIndent(n, "", "  ")
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	name := fmt.Sprintf("%d-%s.json", n.CreatedAt.UnixNano(), n.ID)
	tmp := filepath.Join(o.dir, "."+name+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write outbox file: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(o.dir, name)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publish outbox file: %w", err)
	}
	return nil
}

// isOutboxFile reports whether name is a published notification file.
func isOutboxFile(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(base, ".json") && !strings.HasPrefix(base, ".")
}

// ReadOutbox returns every notification currently in dir, oldest first.
func ReadOutbox(dir string) ([]Notification, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read outbox: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && isOutboxFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]Notification, 0, len(names))
	for _, name := range names {
		n, err := readNotification(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func readNotification(path string) (Notification, error) {
	var n Notification
	data, err := os.ReadFile(path)
	if err != nil {
		return n, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, &n); err != nil {
		return n, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return n, nil
}

// Follow watches dir and calls fn for every notification published after
// the watch starts. It blocks until ctx is done.
func Follow(ctx context.Context, dir string, fn func(Notification)) error {
	w, err := WatchOutbox(dir)
	if err != nil {
		return err
	}
	return w.Run(ctx, fn)
}

// OutboxWatcher reports notifications as they are published to an outbox.
type OutboxWatcher struct {
	watcher *fsnotify.Watcher
}

// WatchOutbox starts watching dir. Files published after it returns are
// reported by Run.
func WatchOutbox(dir string) (*OutboxWatcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create outbox: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch outbox: %w", err)
	}
	return &OutboxWatcher{watcher: watcher}, nil
}

// Run calls fn for each published notification until ctx is done, then
// closes the watcher.
func (w *OutboxWatcher) Run(ctx context.Context, fn func(Notification)) error {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Rename) == 0 || !isOutboxFile(event.Name) {
				continue
			}
			n, err := readNotification(event.Name)
			if err != nil {
				// Rename events also fire for the old name; it may be gone already.
				if !errors.Is(err, fs.ErrNotExist) {
					log.Printf("[notify] skipping outbox file %s: %v", filepath.Base(event.Name), err)
				}
				continue
			}
			fn(n)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("[notify] outbox watcher error: %v", err)
		}
	}
}
