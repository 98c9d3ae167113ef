// Package inventory keeps the video listing for the current session in step
// with the identity and with completed recordings.
package inventory

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"slices"
	"strings"

	"github.com/fakeyudi/capturectl/internal/identity"
)

// NoneLabel is how the "no selection" option is displayed.
const NoneLabel = "None"

// ErrNotListed is returned by Select for a name missing from the inventory.
var ErrNotListed = errors.New("video not in inventory")

// Inventory is the last applied listing. Selected is "" when nothing is
// selected and otherwise always names an entry of Videos.
type Inventory struct {
	Key      identity.Key
	Videos   []string
	Selected string
}

// Options returns the selectable entries: "" for no selection, then the
// videos in listing order.
func (inv Inventory) Options() []string {
	return append([]string{""}, inv.Videos...)
}

func (inv Inventory) clone() Inventory {
	inv.Videos = slices.Clone(inv.Videos)
	return inv
}

// withVideos replaces the listing and drops a selection that is no longer present.
func (inv Inventory) withVideos(key identity.Key, videos []string) Inventory {
	next := Inventory{Key: key, Videos: slices.Clone(videos)}
	if inv.Selected != "" && inv.Key == key && slices.Contains(videos, inv.Selected) {
		next.Selected = inv.Selected
	}
	return next
}

func (inv Inventory) selectVideo(name string) (Inventory, error) {
	if name != "" && !slices.Contains(inv.Videos, name) {
		return inv, fmt.Errorf("%w: %q", ErrNotListed, name)
	}
	inv.Selected = name
	return inv, nil
}

// VideoURL composes the playback URL of the selected video. It reports false
// when nothing is selected.
func (inv Inventory) VideoURL(baseURL string) (string, bool) {
	if inv.Selected == "" {
		return "", false
	}
	return BuildVideoURL(baseURL, inv.Key, inv.Selected), true
}

// VideoPath is the selected video's location on the service, relative to
// its storage root. It reports false when nothing is selected.
func (inv Inventory) VideoPath() (string, bool) {
	if inv.Selected == "" {
		return "", false
	}
	return path.Join(inv.Key.FullPath, inv.Selected), true
}

// BuildVideoURL returns base/videos with every component percent-encoded.
// Spaces become %20 rather than '+'.
func BuildVideoURL(baseURL string, key identity.Key, video string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(baseURL, "/"))
	b.WriteString("/videos?root_path=")
	b.WriteString(encodeComponent(key.FullPath))
	b.WriteString("&session_id=")
	b.WriteString(encodeComponent(key.SessionID))
	if key.StudyID != "" {
		b.WriteString("&study_id=")
		b.WriteString(encodeComponent(key.StudyID))
	}
	b.WriteString("&video_name=")
	b.WriteString(encodeComponent(video))
	return b.String()
}

func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
