package types

import "regexp"

var sessionIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Sentinel strings a confused caller can pass for a missing identifier.
// Serialized absent values from upstream layers arrive as these literals.
var invalidSentinels = map[string]bool{
	"":          true,
	"undefined": true,
	"null":      true,
	"0":         true,
}

// IsValidSessionID reports whether a session identifier is usable for
// connecting. Sentinel-invalid values make connect a silent no-op rather
// than an error.
func IsValidSessionID(sessionID string) bool {
	if invalidSentinels[sessionID] || len(sessionID) > 64 {
		return false
	}
	return sessionIDRegex.MatchString(sessionID)
}

// IsValidToken reports whether an auth credential is present and not a
// serialized-absent sentinel. Token contents are opaque to the client.
func IsValidToken(token string) bool {
	return !invalidSentinels[token]
}

// IsValidUserID applies the same identifier rules as session ids.
func IsValidUserID(userID string) bool {
	if invalidSentinels[userID] || len(userID) > 64 {
		return false
	}
	return sessionIDRegex.MatchString(userID)
}

// IsValidEntryName reports whether a document entry name is acceptable:
// non-empty, no path separators, bounded length.
func IsValidEntryName(name string) bool {
	if name == "" || len(name) > 128 {
		return false
	}
	for _, r := range name {
		if r == '/' || r == '\\' || r == 0 {
			return false
		}
	}
	return true
}
