package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/slok/rpa/internal/log"
	"github.com/slok/rpa/internal/model"
)

const defaultWatchBuffer = 256

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	// WatchBuffer is the number of events buffered per watcher before dropping.
	WatchBuffer int
	Logger      log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.WatchBuffer <= 0 {
		c.WatchBuffer = defaultWatchBuffer
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.TaskRepository and storage.TemplateRepository.
// Every task mutation is notified to the watchers.
type Repository struct {
	tasks       map[string]model.Task
	templates   map[string]model.Template
	watchers    map[int]chan model.TaskEvent
	nextWatcher int
	watchBuffer int
	mu          sync.RWMutex
	logger      log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		tasks:       make(map[string]model.Task),
		templates:   make(map[string]model.Template),
		watchers:    make(map[int]chan model.TaskEvent),
		watchBuffer: cfg.WatchBuffer,
		logger:      cfg.Logger,
	}, nil
}

// CreateTask creates a new task in the repository.
func (r *Repository) CreateTask(ctx context.Context, t model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t.ID == "" {
		return fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}

	if _, ok := r.tasks[t.ID]; ok {
		return fmt.Errorf("task with id %s: %w", t.ID, model.ErrAlreadyExists)
	}

	t = t.Copy()
	r.tasks[t.ID] = t
	r.publish(model.TaskEventCreated, t)
	r.logger.Debugf("Created task in repository: %s", t.ID)

	return nil
}

// GetTask retrieves a task snapshot by ID.
func (r *Repository) GetTask(ctx context.Context, id string) (*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	tc := t.Copy()
	return &tc, nil
}

// ListTasks returns all task snapshots sorted by start time.
func (r *Repository) ListTasks(ctx context.Context) ([]model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]model.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		tasks = append(tasks, t.Copy())
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].StartTime.Equal(tasks[j].StartTime) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].StartTime.Before(tasks[j].StartTime)
	})

	return tasks, nil
}

// UpdateTask applies mutate to a copy of the task and replaces the stored task with it.
func (r *Repository) UpdateTask(ctx context.Context, id string, mutate func(t *model.Task) error) (*model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	updated := current.Copy()
	if err := mutate(&updated); err != nil {
		return nil, err
	}
	updated.ID = current.ID

	if current.Status.IsTerminal() && frozenFieldsChanged(current, updated) {
		return nil, fmt.Errorf("task %s is %s: %w", id, current.Status, model.ErrTaskFinished)
	}

	if updated.CurrentStep > updated.TotalSteps {
		return nil, fmt.Errorf("task %s current step %d is greater than total steps %d: %w", id, updated.CurrentStep, updated.TotalSteps, model.ErrNotValid)
	}

	r.tasks[id] = updated
	r.publish(model.TaskEventUpdated, updated)

	res := updated.Copy()
	return &res, nil
}

// AppendTaskLog appends a log entry to a task. Entries older than the last one are
// moved forward to the last timestamp. Terminal tasks don't accept new entries.
func (r *Repository) AppendTaskLog(ctx context.Context, id string, entry model.LogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	if t.Status.IsTerminal() {
		return fmt.Errorf("task %s is %s: %w", id, t.Status, model.ErrTaskFinished)
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	t.AppendLog(entry)
	r.tasks[id] = t
	r.publish(model.TaskEventUpdated, t)

	return nil
}

// DeleteTask deletes a task.
func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	delete(r.tasks, id)
	r.publish(model.TaskEventRemoved, t)
	r.logger.Debugf("Deleted task from repository: %s", id)

	return nil
}

// Watch returns a channel receiving every task change until the context is done,
// then the channel is closed. Slow watchers lose events instead of blocking the store.
func (r *Repository) Watch(ctx context.Context) (<-chan model.TaskEvent, error) {
	r.mu.Lock()
	id := r.nextWatcher
	r.nextWatcher++
	ch := make(chan model.TaskEvent, r.watchBuffer)
	r.watchers[id] = ch
	r.mu.Unlock()

	go func() {
		<-ctx.Done()

		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.watchers, id)
		close(ch)
	}()

	return ch, nil
}

// publish must be called with the lock held.
func (r *Repository) publish(typ model.TaskEventType, t model.Task) {
	for id, ch := range r.watchers {
		select {
		case ch <- model.TaskEvent{Type: typ, Task: t.Copy()}:
		default:
			r.logger.Warningf("Task event %s of %s dropped for watcher %d", typ, t.ID, id)
		}
	}
}

func frozenFieldsChanged(old, updated model.Task) bool {
	if old.Status != updated.Status ||
		old.Progress != updated.Progress ||
		old.CurrentStep != updated.CurrentStep ||
		old.SessionID != updated.SessionID ||
		len(old.Logs) != len(updated.Logs) {
		return true
	}

	switch {
	case old.EndTime == nil && updated.EndTime == nil:
		return false
	case old.EndTime == nil || updated.EndTime == nil:
		return true
	default:
		return !old.EndTime.Equal(*updated.EndTime)
	}
}

// CreateTemplate creates a new template in the repository.
func (r *Repository) CreateTemplate(ctx context.Context, t model.Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.templates[t.ID]; ok {
		return fmt.Errorf("template %s: %w", t.ID, model.ErrAlreadyExists)
	}

	r.templates[t.ID] = t.Copy()
	r.logger.Debugf("Created template in repository: %s", t.ID)

	return nil
}

// UpdateTemplate replaces an existing template.
func (r *Repository) UpdateTemplate(ctx context.Context, t model.Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.templates[t.ID]; !ok {
		return fmt.Errorf("template %s: %w", t.ID, model.ErrNotFound)
	}

	r.templates[t.ID] = t.Copy()
	r.logger.Debugf("Updated template in repository: %s", t.ID)

	return nil
}

// GetTemplate retrieves a template by ID.
func (r *Repository) GetTemplate(ctx context.Context, id string) (*model.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.templates[id]
	if !ok {
		return nil, fmt.Errorf("template %s: %w", id, model.ErrNotFound)
	}

	c := t.Copy()
	return &c, nil
}

// ListTemplates returns all templates sorted by ID.
func (r *Repository) ListTemplates(ctx context.Context) ([]model.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	templates := make([]model.Template, 0, len(r.templates))
	for _, t := range r.templates {
		templates = append(templates, t.Copy())
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].ID < templates[j].ID })

	return templates, nil
}

// DeleteTemplate deletes a template.
func (r *Repository) DeleteTemplate(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.templates[id]; !ok {
		return fmt.Errorf("template %s: %w", id, model.ErrNotFound)
	}

	delete(r.templates, id)
	r.logger.Debugf("Deleted template from repository: %s", id)

	return nil
}
