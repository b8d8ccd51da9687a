package export

import "strings"

// sanitize lowercases s and maps every non-alphanumeric run to a single
// underscore, trimming underscores from the edges.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastUnderscore := false
	for _, r := range strings.ToLower(s) {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if alnum {
			b.WriteRune(r)
			lastUnderscore = false
		} else if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	return strings.Trim(b.String(), "_")
}

// SafeFileName derives a filesystem-safe, collision-resistant base name
// for an entity. The sanitized name gets the first 8 characters of the
// entity's id appended, so same-named entities never collide. A name
// that sanitizes to nothing falls back to the sanitized id alone.
func SafeFileName(name, id string) string {
	base := sanitize(name)
	if base == "" {
		return sanitize(id)
	}
	return base + "_" + idPrefix(id)
}

// SafeDirName derives a filesystem-safe directory name, falling back to
// the sanitized id when the name sanitizes to nothing.
func SafeDirName(name, id string) string {
	base := sanitize(name)
	if base == "" {
		return sanitize(id)
	}
	return base
}

// idPrefix returns the first 8 characters of id, lowercased.
func idPrefix(id string) string {
	id = strings.ToLower(id)
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
