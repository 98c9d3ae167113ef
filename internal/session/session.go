package session

import (
	"time"

	"github.com/fakeyudi/capturectl/internal/ledger"
)

// Session is the persisted coordinator snapshot. Only stable states are ever
// written, so a snapshot on disk is always either idle or recording.
type Session struct {
	State       string            `json:"state"`
	SessionID   string            `json:"session_id"`
	ActiveTrial string            `json:"active_trial,omitempty"`
	SavePath    string            `json:"save_path,omitempty"`
	Trials      []ledger.Trial    `json:"trials"`
	Notes       map[string]string `json:"notes,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}
