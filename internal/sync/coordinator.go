// Package sync reconciles the local dataset with the single remote backup
// document. A coordinator owns the debounce timer and in-flight state; the
// rest of the app only ever asks it to Schedule, sync now, or resolve a
// pending conflict.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/bilbotrack/internal/backup"
	"github.com/claude/bilbotrack/internal/drive"
	"github.com/claude/bilbotrack/internal/models"
	"github.com/claude/bilbotrack/internal/storage"
)

// DefaultDebounce coalesces bursts of edits into one sync pass.
const DefaultDebounce = time.Second

// ErrConflictPending is returned while a conflict decision is outstanding:
// no sync (manual or automatic) proceeds until the caller picks keepLocal or
// keepRemote.
var ErrConflictPending = errors.New("sync: conflict decision pending")

// ErrNoConflict is returned by the resolve calls when nothing is pending.
var ErrNoConflict = errors.New("sync: no pending conflict")

// SessionPreview summarizes a side's most recent session for the conflict
// prompt.
type SessionPreview struct {
	Date   string  `json:"date"`
	LoadKg float64 `json:"loadKg"`
	Reps   int     `json:"reps"`
}

// Conflict describes a both-sides-changed situation awaiting a decision.
type Conflict struct {
	FirstConnection     bool            `json:"firstConnection"`
	LocalExerciseCount  int             `json:"localExerciseCount"`
	LocalSessionCount   int             `json:"localSessionCount"`
	LocalUpdatedAt      int64           `json:"localUpdatedAt"` // unix ms
	LocalLastSession    *SessionPreview `json:"localLastSession,omitempty"`
	RemoteExerciseCount int             `json:"remoteExerciseCount"`
	RemoteSessionCount  int             `json:"remoteSessionCount"`
	RemoteModifiedAt    time.Time       `json:"remoteModifiedAt"`
	RemoteLastSession   *SessionPreview `json:"remoteLastSession,omitempty"`

	remoteDoc *backup.Document
	remoteID  string
}

// Status is the sync view exposed to the UI.
type Status struct {
	Enabled      bool             `json:"enabled"`
	State        models.SyncState `json:"state"`
	LastSyncedAt int64            `json:"lastSyncedAt,omitempty"`
	Profile      *models.Profile  `json:"profile,omitempty"`
	Conflict     *Conflict        `json:"conflict,omitempty"`
}

// Coordinator drives backup synchronization.
type Coordinator struct {
	store    *storage.Store
	remote   *drive.Client
	log      *slog.Logger
	debounce time.Duration
	now      func() time.Time

	scheduleC chan struct{}

	// runMu serializes sync passes: a pass already in flight finishes
	// rather than being aborted, and a mutation landing meanwhile is
	// picked up by the next pass.
	runMu sync.Mutex

	mu      sync.Mutex
	token   string
	pending *Conflict
}

// New creates a coordinator. Run must be called for debounced scheduling to
// work; the synchronous entry points work either way.
func New(store *storage.Store, remote *drive.Client, debounce time.Duration, log *slog.Logger) *Coordinator {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Coordinator{
		store:     store,
		remote:    remote,
		log:       log,
		debounce:  debounce,
		now:       time.Now,
		scheduleC: make(chan struct{}, 1),
	}
}

// Run is the coordinator's actor loop. Each Schedule restarts the debounce
// timer; only the most recent schedule fires. Run returns when ctx is done.
func (c *Coordinator) Run(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-c.scheduleC:
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(c.debounce)
			timerC = timer.C
		case <-timerC:
			timerC = nil
			if _, err := c.SyncNow(ctx); err != nil {
				if errors.Is(err, ErrConflictPending) {
					c.log.Info("background sync blocked by pending conflict")
				} else {
					c.log.Warn("background sync failed", "error", err)
				}
			}
		}
	}
}

// Schedule requests a debounced sync. It never blocks: a schedule already
// queued covers this one too.
func (c *Coordinator) Schedule() {
	select {
	case c.scheduleC <- struct{}{}:
	default:
	}
}

// SetToken stores the bearer token supplied by the UI's OAuth flow. The
// token lives in memory only.
func (c *Coordinator) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Coordinator) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Pending returns the conflict awaiting a decision, if any.
func (c *Coordinator) Pending() *Conflict {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

func (c *Coordinator) setPending(conflict *Conflict) {
	c.mu.Lock()
	c.pending = conflict
	c.mu.Unlock()
}

// Status reports the current sync state plus any pending conflict.
func (c *Coordinator) Status(ctx context.Context) (Status, error) {
	settings, err := c.store.GetSettings(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Enabled:      settings.SyncEnabled,
		State:        settings.SyncState,
		LastSyncedAt: settings.LastSyncedAt,
		Profile:      settings.Profile,
		Conflict:     c.Pending(),
	}, nil
}

// ResetStuckState repairs a "syncing" state found at startup. No sync can
// legitimately still be running across a restart, so the state falls back to
// synced (when a successful sync exists) or signed_out.
func (c *Coordinator) ResetStuckState(ctx context.Context) error {
	settings, err := c.store.GetSettings(ctx)
	if err != nil {
		return err
	}
	if settings.SyncState != models.SyncSyncing {
		return nil
	}

	state := models.SyncSignedOut
	if settings.LastSyncedAt > 0 {
		state = models.SyncSynced
	}
	c.log.Info("resetting stuck sync state", "to", state)
	return c.setState(ctx, state)
}

// Connect signs the device in: it stores the token and profile, enables
// sync, and performs the first-connection check. When both sides already
// hold data the returned conflict must be resolved before any automatic
// sync; otherwise the non-empty side (or local, when both are empty) wins
// immediately.
func (c *Coordinator) Connect(ctx context.Context, token string, profile *models.Profile) (*Conflict, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	c.SetToken(token)
	if _, err := c.store.UpdateSettings(ctx, func(s *models.Settings) {
		s.SyncEnabled = true
		s.SyncState = models.SyncSyncing
		s.Profile = profile
	}); err != nil {
		return nil, err
	}

	snap, err := c.store.ExportAll(ctx)
	if err != nil {
		c.setState(ctx, models.SyncError)
		return nil, err
	}
	localMax, err := c.store.MaxUpdatedAt(ctx)
	if err != nil {
		c.setState(ctx, models.SyncError)
		return nil, err
	}

	file, err := c.remote.Find(ctx, token)
	if err != nil {
		c.setState(ctx, models.SyncError)
		return nil, err
	}

	if file != nil {
		doc, err := c.remote.Download(ctx, token, file.ID)
		if err != nil {
			c.setState(ctx, models.SyncError)
			return nil, err
		}

		remoteSnap := doc.Snapshot()
		if snap.HasData() && remoteSnap.HasData() {
			conflict := buildConflict(snap, localMax, doc, file, true)
			c.setPending(conflict)
			c.log.Info("first-connection conflict",
				"local_exercises", conflict.LocalExerciseCount,
				"remote_exercises", conflict.RemoteExerciseCount)
			return conflict, nil
		}

		if remoteSnap.HasData() {
			// Fresh device, populated remote: the remote side wins.
			if err := c.store.ImportAll(ctx, remoteSnap); err != nil {
				c.setState(ctx, models.SyncError)
				return nil, err
			}
			return nil, c.markSynced(ctx)
		}
	}

	// Local side wins (or both are empty): upload.
	existingID := ""
	if file != nil {
		existingID = file.ID
	}
	if err := c.upload(ctx, token, snap, existingID); err != nil {
		return nil, err
	}
	return nil, nil
}

// Disconnect signs the device out, clearing the token and all sync
// sub-state. Local training data is untouched.
func (c *Coordinator) Disconnect(ctx context.Context) error {
	c.SetToken("")
	c.setPending(nil)
	_, err := c.store.UpdateSettings(ctx, func(s *models.Settings) {
		s.SyncEnabled = false
		s.SyncState = models.SyncSignedOut
		s.Profile = nil
		s.LastSyncedAt = 0
	})
	return err
}

// SyncNow performs one sync pass. It returns a non-nil conflict (and
// ErrConflictPending on subsequent calls) when both sides changed since the
// last successful sync; resolution happens through ResolveKeepLocal or
// ResolveKeepRemote. Transport failures leave local data untouched and the
// state at error.
func (c *Coordinator) SyncNow(ctx context.Context) (*Conflict, error) {
	if pending := c.Pending(); pending != nil {
		return pending, ErrConflictPending
	}

	c.runMu.Lock()
	defer c.runMu.Unlock()

	settings, err := c.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.SyncEnabled || settings.SyncState == models.SyncSignedOut {
		return nil, nil
	}
	token := c.currentToken()
	if token == "" {
		c.log.Debug("sync skipped: no access token")
		return nil, nil
	}

	if err := c.setState(ctx, models.SyncSyncing); err != nil {
		return nil, err
	}

	// Snapshot the change watermark before any network call: a mutation
	// completing while this pass runs belongs to the next pass.
	localMax, err := c.store.MaxUpdatedAt(ctx)
	if err != nil {
		c.setState(ctx, models.SyncError)
		return nil, err
	}

	file, err := c.remote.Find(ctx, token)
	if err != nil {
		c.setState(ctx, models.SyncError)
		return nil, err
	}

	snap, err := c.store.ExportAll(ctx)
	if err != nil {
		c.setState(ctx, models.SyncError)
		return nil, err
	}

	if file == nil {
		return nil, c.upload(ctx, token, snap, "")
	}

	doc, err := c.remote.Download(ctx, token, file.ID)
	if err != nil {
		c.setState(ctx, models.SyncError)
		return nil, err
	}

	lastSynced := settings.LastSyncedAt
	if localMax > lastSynced && file.ModifiedTime.UnixMilli() > lastSynced {
		conflict := buildConflict(snap, localMax, doc, file, false)
		c.setPending(conflict)
		c.log.Info("sync conflict detected",
			"local_updated", localMax,
			"remote_modified", file.ModifiedTime)
		return conflict, nil
	}

	return nil, c.upload(ctx, token, snap, file.ID)
}

// ResolveKeepLocal settles a pending conflict by uploading the local dataset
// over the remote document.
func (c *Coordinator) ResolveKeepLocal(ctx context.Context) error {
	pending := c.Pending()
	if pending == nil {
		return ErrNoConflict
	}

	c.runMu.Lock()
	defer c.runMu.Unlock()

	if err := c.setState(ctx, models.SyncSyncing); err != nil {
		return err
	}
	snap, err := c.store.ExportAll(ctx)
	if err != nil {
		c.setState(ctx, models.SyncError)
		return err
	}
	if err := c.upload(ctx, c.currentToken(), snap, pending.remoteID); err != nil {
		return err
	}
	c.setPending(nil)
	return nil
}

// ResolveKeepRemote settles a pending conflict by importing the remote
// document wholesale, overwriting local training data.
func (c *Coordinator) ResolveKeepRemote(ctx context.Context) error {
	pending := c.Pending()
	if pending == nil {
		return ErrNoConflict
	}

	c.runMu.Lock()
	defer c.runMu.Unlock()

	if err := c.setState(ctx, models.SyncSyncing); err != nil {
		return err
	}
	if err := c.store.ImportAll(ctx, pending.remoteDoc.Snapshot()); err != nil {
		c.setState(ctx, models.SyncError)
		return err
	}
	if err := c.markSynced(ctx); err != nil {
		return err
	}
	c.setPending(nil)
	return nil
}

// DeleteRemote removes the remote backup document and forgets the last
// successful sync time.
func (c *Coordinator) DeleteRemote(ctx context.Context) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	token := c.currentToken()
	file, err := c.remote.Find(ctx, token)
	if err != nil {
		return err
	}
	if file != nil {
		if err := c.remote.Delete(ctx, token, file.ID); err != nil {
			return err
		}
	}
	_, err = c.store.UpdateSettings(ctx, func(s *models.Settings) {
		s.LastSyncedAt = 0
	})
	return err
}

func (c *Coordinator) upload(ctx context.Context, token string, snap models.Snapshot, existingID string) error {
	doc := backup.New(snap, c.now())
	if err := c.remote.Upload(ctx, token, doc, existingID); err != nil {
		c.setState(ctx, models.SyncError)
		return err
	}
	return c.markSynced(ctx)
}

func (c *Coordinator) markSynced(ctx context.Context) error {
	_, err := c.store.UpdateSettings(ctx, func(s *models.Settings) {
		s.SyncState = models.SyncSynced
		s.LastSyncedAt = c.now().UnixMilli()
	})
	return err
}

func (c *Coordinator) setState(ctx context.Context, state models.SyncState) error {
	_, err := c.store.UpdateSettings(ctx, func(s *models.Settings) {
		s.SyncState = state
	})
	if err != nil {
		return fmt.Errorf("updating sync state: %w", err)
	}
	return nil
}

func buildConflict(local models.Snapshot, localMax int64, doc *backup.Document, file *drive.RemoteFile, firstConnection bool) *Conflict {
	return &Conflict{
		FirstConnection:     firstConnection,
		LocalExerciseCount:  len(local.Exercises),
		LocalSessionCount:   len(local.Sessions),
		LocalUpdatedAt:      localMax,
		LocalLastSession:    previewOf(local.Sessions),
		RemoteExerciseCount: len(doc.Data.Exercises),
		RemoteSessionCount:  len(doc.Data.Sessions),
		RemoteModifiedAt:    file.ModifiedTime,
		RemoteLastSession:   previewOf(doc.Data.Sessions),
		remoteDoc:           doc,
		remoteID:            file.ID,
	}
}

// previewOf picks the most recent session. Local snapshots are already
// ordered newest first; remote payloads are scanned.
func previewOf(sessions []models.Session) *SessionPreview {
	if len(sessions) == 0 {
		return nil
	}
	latest := sessions[0]
	for _, s := range sessions[1:] {
		if s.Datetime > latest.Datetime {
			latest = s
		}
	}
	return &SessionPreview{Date: latest.Datetime, LoadKg: latest.LoadUsedKg, Reps: latest.Reps}
}
