package download

import "sync"

// Registry is the single shared map of in-flight and finished tasks. The
// controller, the aggregator, and the boundary's polling calls all go
// through it, so every access takes the lock.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*Task)}
}

func (r *Registry) Add(task *Task) {
	r.mu.Lock()
	r.tasks[task.ID] = task
	r.mu.Unlock()
}

func (r *Registry) Get(id string) (*Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	task, ok := r.tasks[id]
	return task, ok
}

// Remove deletes the task and reports whether it was present, which is
// what makes a second cancel on the same id return false.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return false
	}
	delete(r.tasks, id)
	return true
}

func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	tasks := make([]*Task, 0, len(r.tasks))
	for _, task := range r.tasks {
		tasks = append(tasks, task)
	}
	r.mu.RUnlock()
	snaps := make([]Snapshot, 0, len(tasks))
	for _, task := range tasks {
		snaps = append(snaps, task.Snapshot())
	}
	return snaps
}

// Prune drops finished tasks (Completed or Error) from the map. Paused
// tasks stay, they are still resumable.
func (r *Registry) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	pruned := 0
	for id, task := range r.tasks {
		if s := task.Status(); s == StatusCompleted || s == StatusError {
			delete(r.tasks, id)
			pruned++
		}
	}
	return pruned
}
