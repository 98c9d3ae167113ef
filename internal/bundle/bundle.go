package bundle

import (
	"time"

	"github.com/fakeyudi/capturectl/internal/ledger"
	"github.com/fakeyudi/capturectl/internal/recording"
)

// SessionBundle is the renderable summary of an ended capture session.
type SessionBundle struct {
	Session SessionMeta `json:"session"`
	Trials  []TrialNote `json:"trials"`
	Videos  []string    `json:"videos"`
	Comment string      `json:"comment,omitempty"`
	CSVPath string      `json:"csv_path,omitempty"`
	Message string      `json:"message,omitempty"` // service reply to end-session
}

// SessionMeta holds summary metadata about the session for the bundle.
type SessionMeta struct {
	ID            string    `json:"id"`
	StudyID       string    `json:"study_id"`
	SessionName   string    `json:"session_name"`
	FullPath      string    `json:"full_path"`
	DeviceAddress string    `json:"device_address"`
	ServerURL     string    `json:"server_url,omitempty"`
	StartTime     time.Time `json:"start_time"` // first trial start, zero without trials
	EndTime       time.Time `json:"end_time"`
	Duration      string    `json:"duration"` // human-readable, e.g. "1h5m0s"
}

// TrialNote is one trial with the note recorded for its name.
type TrialNote struct {
	ledger.Trial
	Note string `json:"note,omitempty"`
}

// FromEnd builds a bundle from an ended session and the last video listing.
func FromEnd(res recording.EndResult, videos []string, serverURL, comment string) *SessionBundle {
	meta := SessionMeta{
		ID:            res.SessionID,
		StudyID:       res.Identity.StudyID,
		SessionName:   res.Identity.SessionName,
		FullPath:      res.Identity.FullPath,
		DeviceAddress: res.Identity.DeviceAddress,
		ServerURL:     serverURL,
		EndTime:       res.EndedAt,
	}
	if len(res.Trials) > 0 {
		meta.StartTime = res.Trials[0].StartedAt
		meta.Duration = res.EndedAt.Sub(meta.StartTime).Round(time.Second).String()
	}

	trials := make([]TrialNote, 0, len(res.Trials))
	for _, t := range res.Trials {
		trials = append(trials, TrialNote{Trial: t, Note: res.Notes[t.Name]})
	}
	if videos == nil {
		videos = []string{}
	}
	return &SessionBundle{
		Session: meta,
		Trials:  trials,
		Videos:  videos,
		Comment: comment,
		CSVPath: res.CSVPath,
		Message: res.Message,
	}
}
