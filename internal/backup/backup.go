// Package backup serializes the local dataset to the versioned backup
// document stored remotely, and validates documents coming back. Validation
// is all-or-nothing: a document that fails any structural check is rejected
// wholesale, never partially imported.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/claude/bilbotrack/internal/models"
	"github.com/google/uuid"
)

const (
	// SchemaVersion is embedded in every document; readers reject anything
	// else.
	SchemaVersion = 1
	// AppID distinguishes this app's backups from other files in the
	// app-private remote space.
	AppID = "bilbotracker"
	// FileName is the fixed name of the single remote backup document.
	FileName = "bilbotracker-backup.json"
)

// ErrInvalid marks a backup document that failed validation.
var ErrInvalid = errors.New("backup: invalid document")

// Document is one immutable backup snapshot. A new snapshot supersedes the
// previous one; there is no incremental format.
type Document struct {
	SchemaVersion int     `json:"schemaVersion"`
	AppID         string  `json:"appId"`
	ExportedAt    string  `json:"exportedAt"` // RFC 3339
	Data          Payload `json:"data"`
}

// Payload is the exported dataset.
type Payload struct {
	Settings  Settings          `json:"settings"`
	Exercises []models.Exercise `json:"exercises"`
	Cycles    []models.Cycle    `json:"cycles"`
	Sessions  []models.Session  `json:"sessions"`
}

// Settings is the exported subset of the local settings: the sync sub-state
// (state, profile, last-synced time) never leaves the device.
type Settings struct {
	Units               models.Units `json:"unitsUI"`
	GlobalIncrementKg   float64      `json:"globalIncrementKg"`
	RoundStepKg         float64      `json:"roundStepKg"`
	Language            string       `json:"language"`
	SyncEnabled         bool         `json:"driveSyncEnabled"`
	OnboardingCompleted bool         `json:"wizardCompleted"`
}

// New builds a document from a local snapshot, stamped with now.
func New(snap models.Snapshot, now time.Time) *Document {
	exercises := snap.Exercises
	if exercises == nil {
		exercises = []models.Exercise{}
	}
	cycles := snap.Cycles
	if cycles == nil {
		cycles = []models.Cycle{}
	}
	sessions := snap.Sessions
	if sessions == nil {
		sessions = []models.Session{}
	}

	return &Document{
		SchemaVersion: SchemaVersion,
		AppID:         AppID,
		ExportedAt:    now.UTC().Format(time.RFC3339),
		Data: Payload{
			Settings: Settings{
				Units:               snap.Settings.Units,
				GlobalIncrementKg:   snap.Settings.GlobalIncrementKg,
				RoundStepKg:         snap.Settings.RoundStepKg,
				Language:            snap.Settings.Language,
				SyncEnabled:         snap.Settings.SyncEnabled,
				OnboardingCompleted: snap.Settings.OnboardingCompleted,
			},
			Exercises: exercises,
			Cycles:    cycles,
			Sessions:  sessions,
		},
	}
}

// Snapshot converts a validated document back into a local snapshot. The
// returned settings carry no sync sub-state; the importer preserves the
// device's own.
func (d *Document) Snapshot() models.Snapshot {
	settings := models.DefaultSettings()
	settings.Units = d.Data.Settings.Units
	settings.GlobalIncrementKg = d.Data.Settings.GlobalIncrementKg
	settings.RoundStepKg = d.Data.Settings.RoundStepKg
	settings.Language = d.Data.Settings.Language
	settings.SyncEnabled = d.Data.Settings.SyncEnabled
	settings.OnboardingCompleted = d.Data.Settings.OnboardingCompleted

	return models.Snapshot{
		Settings:  settings,
		Exercises: d.Data.Exercises,
		Cycles:    d.Data.Cycles,
		Sessions:  d.Data.Sessions,
	}
}

// Encode renders the document as JSON.
func (d *Document) Encode() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encoding backup: %w", err)
	}
	return data, nil
}

// Decode parses and validates a backup document. Any structural problem
// returns an error wrapping ErrInvalid.
func Decode(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks the document's structure and field constraints.
func (d *Document) Validate() error {
	if d.SchemaVersion != SchemaVersion {
		return fmt.Errorf("%w: schema version %d", ErrInvalid, d.SchemaVersion)
	}
	if d.AppID != AppID {
		return fmt.Errorf("%w: app id %q", ErrInvalid, d.AppID)
	}
	if _, err := time.Parse(time.RFC3339, d.ExportedAt); err != nil {
		return fmt.Errorf("%w: exportedAt %q", ErrInvalid, d.ExportedAt)
	}

	exerciseIDs := make(map[string]bool, len(d.Data.Exercises))
	for _, e := range d.Data.Exercises {
		if err := validUUID(e.ID); err != nil {
			return fmt.Errorf("%w: exercise id: %v", ErrInvalid, err)
		}
		if e.Name == "" {
			return fmt.Errorf("%w: exercise %s has no name", ErrInvalid, e.ID)
		}
		exerciseIDs[e.ID] = true
	}

	cycleIDs := make(map[string]bool, len(d.Data.Cycles))
	for _, c := range d.Data.Cycles {
		if err := validUUID(c.ID); err != nil {
			return fmt.Errorf("%w: cycle id: %v", ErrInvalid, err)
		}
		if !exerciseIDs[c.ExerciseID] {
			return fmt.Errorf("%w: cycle %s references unknown exercise", ErrInvalid, c.ID)
		}
		if c.Index < 1 {
			return fmt.Errorf("%w: cycle %s index %d", ErrInvalid, c.ID, c.Index)
		}
		if c.Base1RMKg <= 0 {
			return fmt.Errorf("%w: cycle %s base 1RM %v", ErrInvalid, c.ID, c.Base1RMKg)
		}
		cycleIDs[c.ID] = true
	}

	for _, s := range d.Data.Sessions {
		if err := validUUID(s.ID); err != nil {
			return fmt.Errorf("%w: session id: %v", ErrInvalid, err)
		}
		if !cycleIDs[s.CycleID] {
			return fmt.Errorf("%w: session %s references unknown cycle", ErrInvalid, s.ID)
		}
		if !exerciseIDs[s.ExerciseID] {
			return fmt.Errorf("%w: session %s references unknown exercise", ErrInvalid, s.ID)
		}
		if !s.Phase.Valid() {
			return fmt.Errorf("%w: session %s phase %q", ErrInvalid, s.ID, s.Phase)
		}
		if s.LoadUsedKg <= 0 || s.Reps < 1 {
			return fmt.Errorf("%w: session %s load/reps %v/%d", ErrInvalid, s.ID, s.LoadUsedKg, s.Reps)
		}
		if _, err := time.Parse("2006-01-02T15:04:05", s.Datetime); err != nil {
			return fmt.Errorf("%w: session %s datetime %q", ErrInvalid, s.ID, s.Datetime)
		}
	}

	return nil
}

func validUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%q: %v", id, err)
	}
	return nil
}
