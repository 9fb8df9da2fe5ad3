package storage

import (
	"path"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// PlayImageDir is where play pictures are stored inside the asset store.
const PlayImageDir = "uploads/plays"

// Slugify lower-cases s, keeps ASCII letters and digits and collapses
// everything else into single hyphens.
func Slugify(s string) string {
	var b strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			hyphen = false
			continue
		}
		if b.Len() > 0 && !hyphen {
			b.WriteByte('-')
			hyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// PlayImageName builds a unique asset name for a play picture, e.g.
// "uploads/plays/the-tempest-0f8b...e1.jpg".
func PlayImageName(title, ext string) string {
	base := Slugify(title)
	if base == "" {
		base = "play"
	}
	return path.Join(PlayImageDir, base+"-"+uuid.NewString()+"."+ext)
}
