package exports

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lifeapp/backend/internal/auth"
	"github.com/lifeapp/backend/internal/models"
)

// Export statuses.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var (
	// ErrExporterClosed is returned when a job is submitted after Shutdown.
	ErrExporterClosed = errors.New("exporter closed")
	// ErrStorageUnavailable indicates no object storage is configured.
	ErrStorageUnavailable = errors.New("export storage unavailable")
	// ErrNotFound indicates the export does not exist for the caller.
	ErrNotFound = errors.New("export not found")
)

// ObjectStorage persists export documents.
type ObjectStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// TaskLister lists the tasks owned by a user.
type TaskLister interface {
	ListByOwner(ctx context.Context, userID string) ([]models.Task, error)
}

// PreferenceReader loads a user's preferences.
type PreferenceReader interface {
	GetOrCreate(ctx context.Context, userID string, now time.Time) (models.Preference, error)
}

// FriendshipLister lists the friendships visible to a user and the ids of their friends.
type FriendshipLister interface {
	ListFor(ctx context.Context, caller auth.Principal) ([]models.Friendship, error)
	FriendsOf(ctx context.Context, caller auth.Principal) ([]string, error)
}

// Sources bundles the data an export snapshot is assembled from.
type Sources struct {
	Tasks       TaskLister
	Preferences PreferenceReader
	Friendships FriendshipLister
}

// Config controls the concurrency characteristics of the exporter.
type Config struct {
	QueueSize  int
	Workers    int
	JobTimeout time.Duration
	// Retention is how long finished exports stay retrievable.
	Retention time.Duration
}

// Export describes a requested account export and its progress.
type Export struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Status      string     `json:"status"`
	Location    string     `json:"location,omitempty"`
	Error       string     `json:"error,omitempty"`
	RequestedAt time.Time  `json:"requestedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Snapshot is the document written for each export.
type Snapshot struct {
	UserID      string             `json:"userId"`
	GeneratedAt time.Time          `json:"generatedAt"`
	Tasks       []TaskRecord       `json:"tasks"`
	Preferences PreferenceRecord   `json:"preferences"`
	Friendships []FriendshipRecord `json:"friendships"`
	Friends     []string           `json:"friends"`
}

// TaskRecord is the exported form of a task.
type TaskRecord struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    int        `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// PreferenceRecord is the exported form of a user's preferences.
type PreferenceRecord struct {
	PreferredCategories []string  `json:"preferredCategories"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// FriendshipRecord is the exported form of a friendship.
type FriendshipRecord struct {
	ID        string    `json:"id"`
	FromUser  string    `json:"fromUser"`
	ToUser    string    `json:"toUser"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Exporter asynchronously writes account snapshots to object storage using a
// fixed pool of workers.
type Exporter struct {
	sources   Sources
	storage   ObjectStorage
	logger    *slog.Logger
	timeout   time.Duration
	retention time.Duration
	now       func() time.Time

	mu      sync.Mutex
	exports map[string]Export

	// sendMu guards jobs against being closed while Enqueue is sending.
	sendMu sync.RWMutex
	jobs   chan string
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewExporter starts the worker pool. A nil storage leaves the exporter disabled.
func NewExporter(sources Sources, storage ObjectStorage, cfg Config, logger *slog.Logger) *Exporter {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	e := &Exporter{
		sources:   sources,
		storage:   storage,
		logger:    logger,
		timeout:   cfg.JobTimeout,
		retention: cfg.Retention,
		now:       func() time.Time { return time.Now().UTC() },
		exports:   make(map[string]Export),
		jobs:      make(chan string, cfg.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
	}

	e.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go e.worker()
	}

	return e
}

// Enabled reports whether exports can be produced.
func (e *Exporter) Enabled() bool {
	return e != nil && e.storage != nil
}

// Enqueue schedules an export for userID and returns its queued record.
func (e *Exporter) Enqueue(ctx context.Context, userID string) (Export, error) {
	if !e.Enabled() {
		return Export{}, ErrStorageUnavailable
	}

	select {
	case <-ctx.Done():
		return Export{}, ctx.Err()
	case <-e.ctx.Done():
		return Export{}, ErrExporterClosed
	default:
	}

	e.sendMu.RLock()
	defer e.sendMu.RUnlock()
	if e.ctx.Err() != nil {
		return Export{}, ErrExporterClosed
	}

	record := Export{
		ID:          uuid.NewString(),
		UserID:      userID,
		Status:      StatusQueued,
		RequestedAt: e.now(),
	}
	e.put(record)

	select {
	case <-ctx.Done():
		e.remove(record.ID)
		return Export{}, ctx.Err()
	case <-e.ctx.Done():
		e.remove(record.ID)
		return Export{}, ErrExporterClosed
	case e.jobs <- record.ID:
		return record, nil
	}
}

// Get returns the export with the given id when it belongs to userID.
func (e *Exporter) Get(userID, id string) (Export, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pruneLocked()

	record, ok := e.exports[id]
	if !ok || record.UserID != userID {
		return Export{}, ErrNotFound
	}
	return record, nil
}

// Shutdown stops accepting jobs and waits for the workers to drain the queue.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.once.Do(func() {
		e.cancel()
		e.sendMu.Lock()
		close(e.jobs)
		e.sendMu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (e *Exporter) worker() {
	defer e.wg.Done()

	for id := range e.jobs {
		e.handleJob(id)
	}
}

func (e *Exporter) handleJob(id string) {
	record, ok := e.update(id, func(r *Export) { r.Status = StatusRunning })
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	location, err := e.run(ctx, record)
	finished := e.now()
	if err != nil {
		e.logger.Error("account export failed", "exportId", id, "userId", record.UserID, "error", err)
		e.update(id, func(r *Export) {
			r.Status = StatusFailed
			r.Error = err.Error()
			r.CompletedAt = &finished
		})
		return
	}

	e.logger.Info("account export completed", "exportId", id, "userId", record.UserID, "location", location)
	e.update(id, func(r *Export) {
		r.Status = StatusCompleted
		r.Location = location
		r.CompletedAt = &finished
	})
}

func (e *Exporter) run(ctx context.Context, record Export) (string, error) {
	snapshot, err := e.buildSnapshot(ctx, record.UserID)
	if err != nil {
		return "", err
	}

	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	location, err := e.storage.Save(ctx, ObjectKey(record.UserID, snapshot.GeneratedAt), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("store snapshot: %w", err)
	}
	return location, nil
}

func (e *Exporter) buildSnapshot(ctx context.Context, userID string) (Snapshot, error) {
	now := e.now()
	snapshot := Snapshot{
		UserID:      userID,
		GeneratedAt: now,
		Tasks:       []TaskRecord{},
		Preferences: PreferenceRecord{PreferredCategories: []string{}},
		Friendships: []FriendshipRecord{},
		Friends:     []string{},
	}

	if e.sources.Tasks != nil {
		tasks, err := e.sources.Tasks.ListByOwner(ctx, userID)
		if err != nil {
			return Snapshot{}, fmt.Errorf("load tasks: %w", err)
		}
		for _, t := range tasks {
			snapshot.Tasks = append(snapshot.Tasks, TaskRecord{
				ID:          t.ID,
				Title:       t.Title,
				Description: t.Description,
				Priority:    t.Priority,
				DueDate:     t.DueDate,
				Status:      t.Status,
				CreatedAt:   t.CreatedAt,
				UpdatedAt:   t.UpdatedAt,
			})
		}
	}

	if e.sources.Preferences != nil {
		pref, err := e.sources.Preferences.GetOrCreate(ctx, userID, now)
		if err != nil {
			return Snapshot{}, fmt.Errorf("load preferences: %w", err)
		}
		snapshot.Preferences.UpdatedAt = pref.UpdatedAt
		snapshot.Preferences.PreferredCategories = append(snapshot.Preferences.PreferredCategories, pref.PreferredCategories...)
	}

	if e.sources.Friendships != nil {
		list, err := e.sources.Friendships.ListFor(ctx, auth.Principal{UserID: userID})
		if err != nil {
			return Snapshot{}, fmt.Errorf("load friendships: %w", err)
		}
		for _, f := range list {
			snapshot.Friendships = append(snapshot.Friendships, FriendshipRecord{
				ID:        f.ID,
				FromUser:  f.FromUser,
				ToUser:    f.ToUser,
				Status:    f.Status,
				CreatedAt: f.CreatedAt,
				UpdatedAt: f.UpdatedAt,
			})
		}

		friends, err := e.sources.Friendships.FriendsOf(ctx, auth.Principal{UserID: userID})
		if err != nil {
			return Snapshot{}, fmt.Errorf("load friends: %w", err)
		}
		snapshot.Friends = append(snapshot.Friends, friends...)
	}

	return snapshot, nil
}

// ObjectKey returns the storage key for an export generated at the given time.
func ObjectKey(userID string, at time.Time) string {
	return path.Join("exports", userID, at.UTC().Format("20060102T150405.000000000Z")+".json")
}

func (e *Exporter) put(record Export) {
	e.mu.Lock()
	e.pruneLocked()
	e.exports[record.ID] = record
	e.mu.Unlock()
}

// pruneLocked drops finished exports older than the retention window. e.mu must be held.
func (e *Exporter) pruneLocked() {
	cutoff := e.now().Add(-e.retention)
	for id, record := range e.exports {
		if record.CompletedAt != nil && record.CompletedAt.Before(cutoff) {
			delete(e.exports, id)
		}
	}
}

func (e *Exporter) remove(id string) {
	e.mu.Lock()
	delete(e.exports, id)
	e.mu.Unlock()
}

func (e *Exporter) update(id string, fn func(*Export)) (Export, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	record, ok := e.exports[id]
	if !ok {
		return Export{}, false
	}
	fn(&record)
	e.exports[id] = record
	return record, true
}
