// Package identity owns the session identity: the study/session/path tuple
// that parameterizes every remote call made for the current capture session.
package identity

import (
	"strings"
	"time"
)

// TimestampLayout is the wall-clock format used for session id suffixes.
const TimestampLayout = "2006-01-02_15-04-05"

// Default values used when nothing has been persisted yet.
const (
	DefaultDeviceAddress = "192.168.4.245"
	DefaultBasePath      = "data"
)

// Field names one mutable input field of an Identity. The string values are
// also the keys of the persisted key-value layout.
type Field string

const (
	FieldStudyID         Field = "studyId"
	FieldSessionName     Field = "sessionName"
	FieldVideoNameSuffix Field = "videoNameSuffix"
	FieldDeviceAddress   Field = "smartphoneIp"
	FieldBasePath        Field = "baseSavePath"

	// keySessionID is persisted alongside the input fields but is never
	// accepted by UpdateField.
	keySessionID = "sessionId"
)

// Fields lists every mutable field in display order.
var Fields = []Field{
	FieldStudyID,
	FieldSessionName,
	FieldVideoNameSuffix,
	FieldDeviceAddress,
	FieldBasePath,
}

// Identity is a value snapshot of the session identity. SessionID and
// FullPath are derived from the other fields and only change through derive.
type Identity struct {
	StudyID         string `json:"study_id"`
	SessionName     string `json:"session_name"`
	VideoNameSuffix string `json:"video_name_suffix,omitempty"`
	TimestampSuffix string `json:"timestamp_suffix"`
	DeviceAddress   string `json:"device_address"`
	BasePath        string `json:"base_path"`

	SessionID string `json:"session_id"`
	FullPath  string `json:"full_path"`
}

// Key is the part of an identity that scopes the video inventory.
type Key struct {
	StudyID   string
	SessionID string
	FullPath  string
}

// Key returns the inventory scope of id.
func (id Identity) Key() Key {
	return Key{StudyID: id.StudyID, SessionID: id.SessionID, FullPath: id.FullPath}
}

// Complete reports whether id carries everything a recording needs.
func (id Identity) Complete() bool {
	return id.SessionID != "" && id.FullPath != ""
}

func (id *Identity) derive() {
	id.SessionID = DeriveSessionID(id.SessionName, id.TimestampSuffix)
	id.FullPath = DerivePath(id.BasePath, id.StudyID, id.SessionID)
}

// Value returns the current value of field f, or "" for unknown fields.
func (id Identity) Value(f Field) string {
	switch f {
	case FieldStudyID:
		return id.StudyID
	case FieldSessionName:
		return id.SessionName
	case FieldVideoNameSuffix:
		return id.VideoNameSuffix
	case FieldDeviceAddress:
		return id.DeviceAddress
	case FieldBasePath:
		return id.BasePath
	}
	return ""
}

func (id *Identity) set(f Field, v string) bool {
	switch f {
	case FieldStudyID:
		id.StudyID = v
	case FieldSessionName:
		id.SessionName = v
	case FieldVideoNameSuffix:
		id.VideoNameSuffix = v
	case FieldDeviceAddress:
		id.DeviceAddress = v
	case FieldBasePath:
		id.BasePath = v
	default:
		return false
	}
	return true
}

// NewTimestampSuffix formats now as YYYY-MM-DD_HH-MM-SS.
func NewTimestampSuffix(now time.Time) string {
	return now.Format(TimestampLayout)
}

// DeriveSessionID joins the session name and timestamp suffix. An empty name
// leaves the suffix alone, so uniqueness then rests on one-second granularity.
// Without a suffix no session has begun and the id is empty.
func DeriveSessionID(sessionName, timestampSuffix string) string {
	if timestampSuffix == "" {
		return ""
	}
	if sessionName == "" {
		return timestampSuffix
	}
	return sessionName + "_" + timestampSuffix
}

// suffixFromSessionID recovers the timestamp suffix from a persisted session
// id. It is the inverse of DeriveSessionID for a known session name.
func suffixFromSessionID(sessionName, sessionID string) string {
	if sessionName == "" {
		return sessionID
	}
	if sessionID == sessionName {
		return ""
	}
	return strings.TrimPrefix(sessionID, sessionName+"_")
}

func isSep(b byte) bool {
	return b == '/' || b == '\\'
}

func trimSeps(s string) string {
	return strings.Trim(s, `/\`)
}

// collapseSeps reduces every run of separators to its last character.
func collapseSeps(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if isSep(s[i]) && i+1 < len(s) && isSep(s[i+1]) {
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// DerivePath returns basePath/studyID/sessionID. A separator is inserted
// after basePath only when it does not already end in '/' or '\'. When either
// identifier is empty the result degrades to basePath alone, without a
// trailing separator.
func DerivePath(basePath, studyID, sessionID string) string {
	basePath = collapseSeps(basePath)
	studyID = trimSeps(collapseSeps(studyID))
	sessionID = trimSeps(collapseSeps(sessionID))

	if studyID == "" || sessionID == "" {
		return strings.TrimRight(basePath, `/\`)
	}

	tail := studyID + "/" + sessionID
	if basePath == "" {
		return tail
	}
	if isSep(basePath[len(basePath)-1]) {
		return basePath + tail
	}
	return basePath + "/" + tail
}
