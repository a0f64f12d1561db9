package focus

import (
	"context"
	"errors"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wronai/taskguard/pkg/cerr"
	"github.com/wronai/taskguard/pkg/storage"
)

const stateFile = "state.yaml"

// SessionState tracks the focus discipline for one working directory. At most
// one task is active at a time; ActiveTaskID 0 means idle.
type SessionState struct {
	ActiveTaskID      int       `yaml:"active_task_id,omitempty"`
	TaskStartedAt     time.Time `yaml:"task_started_at,omitempty"`
	FilesTouchedToday []string  `yaml:"files_touched_today,omitempty"`
	// TouchedDate is the calendar day FilesTouchedToday belongs to; the set
	// resets when the state is loaded on a later day.
	TouchedDate   string    `yaml:"touched_date,omitempty"`
	SessionStart  time.Time `yaml:"session_start"`
	LastActivity  time.Time `yaml:"last_activity"`
	TimeoutWarned bool      `yaml:"timeout_warned,omitempty"`

	// timeoutJustWarned marks a warning issued during the current evaluation.
	// The over-budget block only applies from the next check on, so the check
	// that first raises the warning still lets new files through. Not
	// persisted; a reloaded state with TimeoutWarned set blocks immediately.
	timeoutJustWarned bool
}

// Touched reports whether the path was already touched today.
func (s *SessionState) Touched(path string) bool {
	for _, p := range s.FilesTouchedToday {
		if p == path {
			return true
		}
	}
	return false
}

// StateStore persists SessionState through the storage backend.
type StateStore struct {
	storage storage.Storage
	now     func() time.Time
}

func NewStateStore(s storage.Storage) *StateStore {
	return &StateStore{storage: s, now: time.Now}
}

// Load reads the session state, applying the day-boundary reset. A missing
// state file yields a fresh session.
func (s *StateStore) Load(ctx context.Context) (*SessionState, error) {
	now := s.now()
	data, err := s.storage.Read(ctx, stateFile)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &SessionState{
				TouchedDate:  now.Format("2006-01-02"),
				SessionStart: now,
				LastActivity: now,
			}, nil
		}
		return nil, cerr.WrapStorageReadError("session state", err)
	}
	var st SessionState
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, cerr.NewErrorWithHint(cerr.Validation, "malformed session state", err,
			"delete .taskguard/data/"+stateFile+" to reset the session")
	}
	if today := now.Format("2006-01-02"); st.TouchedDate != today {
		st.FilesTouchedToday = nil
		st.TouchedDate = today
	}
	return &st, nil
}

// Save writes the session state back.
func (s *StateStore) Save(ctx context.Context, st *SessionState) error {
	data, err := yaml.Marshal(st)
	if err != nil {
		return cerr.NewError(cerr.Internal, "failed to marshal session state", err)
	}
	if err := s.storage.Write(ctx, stateFile, data); err != nil {
		return cerr.WrapStorageWriteError("session state", err)
	}
	return nil
}
