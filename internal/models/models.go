package models

// Units is the unit system selected for display. Stored values are always
// kilograms; conversion happens at the edges.
type Units string

const (
	UnitsKg Units = "kg"
	UnitsLb Units = "lb"
)

// Phase is the training sub-phase recorded on a session. It is decided once
// when the session is logged and never changes afterwards, even on edit.
type Phase string

const (
	// PhaseBilbo is the exploratory part of a cycle: load is probed upward
	// until a session yields fewer than 15 reps.
	PhaseBilbo Phase = "bilbo"
	// PhaseStrength follows once any session in the cycle dropped below
	// 15 reps: load increases by a fixed increment per session.
	PhaseStrength Phase = "strength"
)

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	return p == PhaseBilbo || p == PhaseStrength
}

// SyncState is the backup synchronization state persisted in Settings.
type SyncState string

const (
	SyncSignedOut SyncState = "signed_out"
	SyncSyncing   SyncState = "syncing"
	SyncSynced    SyncState = "synced"
	SyncError     SyncState = "error"
)

// RestPeriod is a completed rest period archived on an exercise.
type RestPeriod struct {
	ID        string `json:"id,omitempty"`
	StartDate string `json:"startDate"`         // YYYY-MM-DD
	EndDate   string `json:"endDate,omitempty"` // planned end, optional
	ActualEnd string `json:"actualEndDate"`     // YYYY-MM-DD when rest really ended
}

// Exercise is a tracked lift. Deleting one cascades to its cycles and sessions.
type Exercise struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PresetType string `json:"presetType"`
	IconKey    string `json:"iconPresetKey"`
	Emoji      string `json:"emoji,omitempty"`
	CreatedAt  int64  `json:"createdAt"` // unix ms
	UpdatedAt  int64  `json:"updatedAt"` // unix ms

	IsResting     bool         `json:"isResting,omitempty"`
	RestStartDate string       `json:"restStartDate,omitempty"` // YYYY-MM-DD
	RestEndDate   string       `json:"restEndDate,omitempty"`   // planned end, optional
	RestHistory   []RestPeriod `json:"restHistory,omitempty"`
}

// Cycle is a bounded block of training for one exercise, anchored to a fixed
// starting 1RM estimate. At most one cycle per exercise is active at a time.
type Cycle struct {
	ID            string   `json:"id"`
	ExerciseID    string   `json:"exerciseId"`
	Index         int      `json:"index"` // 1-based, immutable
	Base1RMKg     float64  `json:"base1RMKg"`
	Improved1RMKg *float64 `json:"improved1RMKg,omitempty"` // set on first PR within the cycle
	StartedAt     int64    `json:"startedAt"`               // unix ms
	EndedAt       *int64   `json:"endedAt,omitempty"`       // unix ms
	IsActive      bool     `json:"isActive"`
}

// Best1RMKg returns the best known 1RM for the cycle.
func (c Cycle) Best1RMKg() float64 {
	if c.Improved1RMKg != nil && *c.Improved1RMKg > c.Base1RMKg {
		return *c.Improved1RMKg
	}
	return c.Base1RMKg
}

// Session is one logged workout. WorkKg is always recomputed from load and
// reps; it is never accepted from callers.
type Session struct {
	ID              string  `json:"id"`
	ExerciseID      string  `json:"exerciseId"`
	CycleID         string  `json:"cycleId"`
	Phase           Phase   `json:"phase"`
	Datetime        string  `json:"datetime"` // YYYY-MM-DDTHH:MM:SS, local
	SuggestedLoadKg float64 `json:"suggestedLoadKg"`
	LoadUsedKg      float64 `json:"loadUsedKg"`
	Reps            int     `json:"reps"`
	TimeSeconds     *int    `json:"timeSeconds,omitempty"`
	Notes           string  `json:"notes,omitempty"`
	WorkKg          float64 `json:"workKg"`
	UpdatedAt       int64   `json:"updatedAt"` // unix ms
}

// Profile is the remote account identity shown in the sync UI.
type Profile struct {
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	PictureURL string `json:"pictureUrl,omitempty"`
}

// Settings is the per-installation singleton. It is only ever updated, never
// deleted; reads merge stored values over DefaultSettings.
type Settings struct {
	Units               Units     `json:"unitsUI"`
	GlobalIncrementKg   float64   `json:"globalIncrementKg"`
	RoundStepKg         float64   `json:"roundStepKg"`
	Language            string    `json:"language"`
	SyncEnabled         bool      `json:"driveSyncEnabled"`
	SyncState           SyncState `json:"driveSyncState"`
	Profile             *Profile  `json:"driveProfile,omitempty"`
	LastSyncedAt        int64     `json:"lastSyncedAt,omitempty"` // unix ms, 0 = never
	OnboardingCompleted bool      `json:"wizardCompleted"`
}

// DefaultSettings returns the settings applied to a fresh installation.
func DefaultSettings() Settings {
	return Settings{
		Units:             UnitsKg,
		GlobalIncrementKg: 2.5,
		RoundStepKg:       2.5,
		Language:          "es",
		SyncState:         SyncSignedOut,
	}
}

// Snapshot is the entire local dataset, as exported for backup and replaced
// wholesale on import.
type Snapshot struct {
	Settings  Settings
	Exercises []Exercise
	Cycles    []Cycle
	Sessions  []Session
}

// HasData reports whether the snapshot holds any tracked training data.
// Settings alone do not count.
func (s Snapshot) HasData() bool {
	return len(s.Exercises) > 0 || len(s.Sessions) > 0
}
