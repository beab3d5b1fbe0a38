package biz

import (
	"strings"
	"testing"
	"time"

	"github.com/lk2023060901/filevault/internal/filevault/types"
	"github.com/stretchr/testify/require"
)

func TestBuildObjectName(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	hash := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

	name := buildObjectName("posts", types.FileTypeImage, hash, "My Photo.PNG", now)
	require.Equal(t, "posts/image/2026/09/01/0123456789abcdef_My_Photo.PNG", name)
}

func TestPlaceholderObjectNameIsUnique(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	a := placeholderObjectName("posts", types.FileTypeVideo, "clip.mp4", now)
	b := placeholderObjectName("posts", types.FileTypeVideo, "clip.mp4", now)

	require.True(t, strings.HasPrefix(a, "posts/video/2026/09/01/"))
	require.NotEqual(t, a, b)
}

func TestThumbnailName(t *testing.T) {
	tests := []struct {
		objectName string
		want       string
	}{
		{"posts/image/2026/09/01/ab12_photo.png", "posts/image/2026/09/01/thumb_ab12_photo.jpg"},
		{"posts/image/2026/09/01/ab12_photo", "posts/image/2026/09/01/thumb_ab12_photo.jpg"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, thumbnailName(tt.objectName))
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "photo.png", "photo.png"},
		{"spaces", "my summer photo.png", "my_summer_photo.png"},
		{"path traversal stripped", "../../etc/passwd", "passwd"},
		{"windows path stripped", `C:\Users\me\doc.pdf`, "doc.pdf"},
		{"unicode replaced", "fotografía.png", "fotograf_a.png"},
		{"empty becomes placeholder", "", "file"},
		{"dots only becomes placeholder", "...", "file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, sanitizeFileName(tt.in))
		})
	}
}

func TestSanitizeFileNameTruncatesKeepingExtension(t *testing.T) {
	long := strings.Repeat("a", 200) + ".png"
	got := sanitizeFileName(long)

	require.LessOrEqual(t, len(got), maxSanitizedNameLen)
	require.True(t, strings.HasSuffix(got, ".png"))
}
