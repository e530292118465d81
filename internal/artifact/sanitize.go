package artifact

import (
	"regexp"
	"strings"
)

var (
	folderUnsafe = regexp.MustCompile(`[^a-z0-9_-]`)
	folderRuns   = regexp.MustCompile(`_+`)
)

const maxFolderLen = 200

// FolderName derives the on-disk folder segment from a display filename:
// extension stripped, lowercased, unsafe characters replaced, underscore runs
// collapsed, capped at 200 characters. Uniqueness within a case is the
// caller's concern (collisions are resolved by suffixing).
func FolderName(filename string) string {
	name := filename
	if idx := strings.LastIndex(name, "."); idx > 0 {
		name = name[:idx]
	}

	name = strings.ToLower(name)
	name = folderUnsafe.ReplaceAllString(name, "_")
	name = folderRuns.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")

	if name == "" {
		name = "document"
	}
	if len(name) > maxFolderLen {
		name = name[:maxFolderLen]
	}

	return name
}
