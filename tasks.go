package datafile

import (
	"context"
	"fmt"
	"sync"

	"github.com/gobeaver/datafile/filetype"
)

// DefaultTaskID is the base of generated task ids.
const DefaultTaskID = "get_file_list"

// TaskDescriptor is one unit of downstream work: a single resolved file.
type TaskDescriptor struct {
	TaskID   string
	MapIndex int
	URI      string
	ConnID   string
	FileType filetype.Type
}

// TaskBatch is the result of one listing, tagged with its task id.
type TaskBatch struct {
	TaskID string
	Tasks  []TaskDescriptor
}

// Files returns the batch entries as files bound to r.
func (b *TaskBatch) Files(r *Resolver) []*File {
	files := make([]*File, len(b.Tasks))
	for i, t := range b.Tasks {
		files[i] = New(t.URI, WithConnID(t.ConnID), WithFileType(t.FileType), WithResolver(r))
	}
	return files
}

// Dispatcher hands a batch to the orchestrator.
type Dispatcher interface {
	Dispatch(ctx context.Context, batch *TaskBatch) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, batch *TaskBatch) error

func (f DispatcherFunc) Dispatch(ctx context.Context, batch *TaskBatch) error {
	return f(ctx, batch)
}

// TaskLister lists files as tasks and hands out task ids that do not
// collide: get_file_list, get_file_list__1, get_file_list__2, ...
// It is safe for concurrent use.
type TaskLister struct {
	mu   sync.Mutex
	used map[string]int
}

// NewTaskLister returns a lister with no ids handed out.
func NewTaskLister() *TaskLister {
	return &TaskLister{used: make(map[string]int)}
}

// NextID returns a fresh id derived from base.
func (l *TaskLister) NextID(base string) string {
	if base == "" {
		base = DefaultTaskID
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.used == nil {
		l.used = make(map[string]int)
	}
	n, seen := l.used[base]
	l.used[base] = n + 1
	if !seen {
		return base
	}
	return fmt.Sprintf("%s__%d", base, n)
}

// TaskOption configures ListAsTasks.
type TaskOption func(*taskOptions)

type taskOptions struct {
	taskID     string
	dispatcher Dispatcher
	pattern    []PatternOption
	missing    MissingPolicy
}

// WithTaskID uses id verbatim. Keeping it unique is up to the caller.
func WithTaskID(id string) TaskOption {
	return func(o *taskOptions) {
		o.taskID = id
	}
}

// WithDispatcher hands the batch to d once listed.
func WithDispatcher(d Dispatcher) TaskOption {
	return func(o *taskOptions) {
		o.dispatcher = d
	}
}

// WithTaskMissingPolicy sets the policy for patterns that match nothing.
// The default is MissingIgnore: an empty batch.
func WithTaskMissingPolicy(p MissingPolicy) TaskOption {
	return func(o *taskOptions) {
		o.missing = p
	}
}

// WithTaskPatternOptions passes options to the pattern resolution.
func WithTaskPatternOptions(opts ...PatternOption) TaskOption {
	return func(o *taskOptions) {
		o.pattern = append(o.pattern, opts...)
	}
}

// ListAsTasks resolves pattern and describes one task per file. Files whose
// format cannot be determined are logged and skipped. The task id is
// allocated before resolution, so a failed listing still consumes it.
func (l *TaskLister) ListAsTasks(ctx context.Context, pattern, connID string, opts ...TaskOption) (*TaskBatch, error) {
	o := &taskOptions{missing: MissingIgnore}
	for _, opt := range opts {
		opt(o)
	}

	id := o.taskID
	if id == "" {
		id = l.NextID(DefaultTaskID)
	}

	popts := append([]PatternOption{
		WithPatternConnID(connID),
		WithMissingPolicy(o.missing),
	}, o.pattern...)

	files, err := ResolvePattern(ctx, pattern, popts...)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", id, err)
	}

	batch := &TaskBatch{TaskID: id, Tasks: make([]TaskDescriptor, 0, len(files))}
	for _, f := range files {
		ft, err := f.FileType()
		if err != nil {
			f.log(f.res()).Warn("skipping file without a known format",
				"task_id", id, "path", f.Path, "error", err)
			continue
		}
		batch.Tasks = append(batch.Tasks, TaskDescriptor{
			TaskID:   id,
			MapIndex: len(batch.Tasks),
			URI:      f.Path,
			ConnID:   f.ConnID,
			FileType: ft,
		})
	}

	if o.dispatcher != nil {
		if err := o.dispatcher.Dispatch(ctx, batch); err != nil {
			return nil, fmt.Errorf("task %s: dispatch: %w", id, err)
		}
	}
	return batch, nil
}
