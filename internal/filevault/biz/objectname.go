package biz

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lk2023060901/filevault/internal/filevault/types"
)

const maxSanitizedNameLen = 100

// buildObjectName derives the deterministic backend location for stored
// content: {service}/{type}/{yyyy}/{mm}/{dd}/{hash-prefix}_{name}. The hash
// prefix keeps names collision-free even when two distinct files share a
// display name on the same day.
func buildObjectName(ownerService string, fileType types.FileType, fileHash, fileName string, now time.Time) string {
	return fmt.Sprintf("%s/%s/%04d/%02d/%02d/%s_%s",
		ownerService, fileType,
		now.Year(), int(now.Month()), now.Day(),
		fileHash[:16], sanitizeFileName(fileName))
}

// placeholderObjectName names an object reserved for a direct upload. The
// content is unknown until the client performs the PUT, so a random ID stands
// in for the hash prefix.
func placeholderObjectName(ownerService string, fileType types.FileType, fileName string, now time.Time) string {
	return fmt.Sprintf("%s/%s/%04d/%02d/%02d/%s_%s",
		ownerService, fileType,
		now.Year(), int(now.Month()), now.Day(),
		uuid.NewString(), sanitizeFileName(fileName))
}

// thumbnailName places the thumbnail next to its source object. Thumbnails
// are always re-encoded as JPEG regardless of the source format.
func thumbnailName(objectName string) string {
	dir := path.Dir(objectName)
	base := path.Base(objectName)
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return dir + "/thumb_" + base + ".jpg"
}

// sanitizeFileName reduces a client-supplied name to characters safe in every
// backend namespace
func sanitizeFileName(fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	name := strings.Trim(b.String(), "._")
	if name == "" {
		return "file"
	}
	if len(name) > maxSanitizedNameLen {
		// keep the extension when truncating
		ext := path.Ext(name)
		if len(ext) < maxSanitizedNameLen {
			name = name[:maxSanitizedNameLen-len(ext)] + ext
		} else {
			name = name[:maxSanitizedNameLen]
		}
	}
	return name
}
