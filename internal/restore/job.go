package restore

import (
	"sync"
	"time"
)

// JobStatus is the lifecycle of a restore job. Transitions move forward
// only: pending -> running -> completed | failed. There is no cancellation.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job tracks one restore run. Jobs live in process memory for the process
// lifetime and are not recoverable across a restart.
type Job struct {
	ID          string     `json:"id"`
	BackupID    string     `json:"backupId"`
	Status      JobStatus  `json:"status"`
	CurrentStep string     `json:"currentStep"`
	Progress    int        `json:"progress"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Error       string     `json:"error,omitempty"`
	Logs        []string   `json:"logs"`
}

// jobMap supports concurrent status polling while the single running job
// goroutine updates its entry.
type jobMap struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func newJobMap() *jobMap {
	return &jobMap{jobs: make(map[string]*Job)}
}

func (m *jobMap) put(job *Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
}

// get returns a snapshot copy so pollers never observe a half-applied
// update or alias the running job's log slice.
func (m *jobMap) get(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	cp := *job
	cp.Logs = append([]string{}, job.Logs...)
	if job.CompletedAt != nil {
		at := *job.CompletedAt
		cp.CompletedAt = &at
	}
	return &cp, true
}

// update applies fn to the stored job under the write lock.
func (m *jobMap) update(id string, fn func(*Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		fn(job)
	}
}
