package model

import (
	"fmt"
	"strings"
	"time"
)

// MetadataEntry is the descriptive data cached per title.
type MetadataEntry struct {
	ID            string
	TitleEN       string
	TitleJA       string
	ThumbnailURL  string
	ThumbnailNSFW bool
	// LengthMinutes is the community-voted play time; nil when unknown.
	LengthMinutes *int
	// LengthClass is the categorical length (1 = very short .. 5 = very long).
	LengthClass *int
	Description string
	FetchedAt   time.Time
}

// DisplayName prefers the Japanese title, then English, then the id.
func (m MetadataEntry) DisplayName() string {
	switch {
	case m.TitleJA != "":
		return m.TitleJA
	case m.TitleEN != "":
		return m.TitleEN
	default:
		return m.ID
	}
}

// NormalizeTitleID returns the canonical "v<digits>" form of a VNDB id: a
// bare number gains the prefix and an upper-case "V" is lowered. Anything
// else comes back trimmed but otherwise unchanged, so lookups simply miss.
func NormalizeTitleID(id string) string {
	id = strings.TrimSpace(id)
	switch {
	case id == "":
		return id
	case id[0] == 'V':
		return "v" + id[1:]
	case allDigits(id):
		return "v" + id
	}
	return id
}

// ParseTitleID normalises id and rejects anything that is not "v<digits>".
func ParseTitleID(id string) (string, error) {
	n := NormalizeTitleID(id)
	if len(n) < 2 || n[0] != 'v' || !allDigits(n[1:]) {
		return "", fmt.Errorf("%w: title id %q is not a VNDB id", ErrValidation, id)
	}
	return n, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
