package artifact

import (
	"strings"

	"google.golang.org/genai"
)

// UserNamespacePrefix marks a filename as user-namespaced: its version
// history is keyed by (app, user, filename) and shared across every
// session of that user.
const UserNamespacePrefix = "user:"

// Key identifies one artifact's version history. SessionID is ignored for
// user-namespaced filenames.
type Key struct {
	AppName   string
	UserID    string
	SessionID string
	Filename  string
}

// UserNamespaced reports whether the key's filename carries the
// user-namespace marker.
func (k Key) UserNamespaced() bool {
	return strings.HasPrefix(k.Filename, UserNamespacePrefix)
}

// Path renders the storage path for the key. User-namespaced artifacts
// live under a fixed "user" segment in place of the session id, which is
// what makes them reachable from every session of the user.
func (k Key) Path() string {
	if k.UserNamespaced() {
		return k.AppName + "/" + k.UserID + "/user/" + k.Filename
	}
	return k.AppName + "/" + k.UserID + "/" + k.SessionID + "/" + k.Filename
}

// IsText reports whether the part carries plain text rather than inline
// binary data.
func IsText(part *genai.Part) bool {
	return part != nil && part.InlineData == nil && part.Text != ""
}

// PayloadSize returns the stored payload size in bytes.
func PayloadSize(part *genai.Part) int {
	if part == nil {
		return 0
	}
	if part.InlineData != nil {
		return len(part.InlineData.Data)
	}
	return len(part.Text)
}
