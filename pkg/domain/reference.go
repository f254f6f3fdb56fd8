package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// TagLatest is the movable default tag.
//
// Resources addressed without explicit tag nor uid resolve through it.
const TagLatest = "latest"

// ParseReference splits a reference path segment into a (tag, uid) pair.
//
// A reference addresses a single version of a named resource, either by tag
// ("latest", "prod", ...) or by uid (the hex identity of one stored revision).
// The two addressing modes are mutually exclusive: exactly one of the returned
// values is non-empty.
//
// Strings shaped like a content hash (32 to 64 lowercase hex digits) are taken
// as uid, everything else as tag. Empty references and references containing
// path separators are rejected with ErrInvalidArgument.
func ParseReference(reference string) (tag string, uid string, err error) {
	if reference == "" {
		return "", "", NewInvalidArgument("reference must not be empty")
	}
	if strings.ContainsAny(reference, "/\\") {
		return "", "", NewInvalidArgument(fmt.Sprintf(
			`reference must not contain path separators: "%s"`, reference,
		))
	}

	if isUid(reference) {
		return "", reference, nil
	}
	return reference, "", nil
}

// NewUid mints a fresh revision identity: 32 lowercase hex digits, so that
// ParseReference recognizes it as a uid.
func NewUid() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func isUid(s string) bool {
	if len(s) < 32 || 64 < len(s) {
		return false
	}
	for _, r := range s {
		switch {
		case '0' <= r && r <= '9':
		case 'a' <= r && r <= 'f':
		default:
			return false
		}
	}
	return true
}
