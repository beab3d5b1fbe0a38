package validator

import "github.com/lk2023060901/filevault/internal/filevault/types"

// segment is a run of expected bytes at a fixed offset from the start of
// the file. Signatures with multiple segments (e.g. RIFF containers) skip
// the variable bytes in between.
type segment struct {
	offset int
	bytes  []byte
}

// signature is an ordered list of segments that must all match
type signature []segment

func sig(segs ...segment) signature { return signature(segs) }

func at(offset int, b ...byte) segment { return segment{offset: offset, bytes: b} }

// formatConfig binds one concrete file format's declared identifiers to its
// magic-byte signatures. Candidacy is established by MIME type or extension;
// authentication requires a signature of the SAME format to match, so JPEG
// bytes uploaded under a .png name fail even though both are images.
type formatConfig struct {
	mimeTypes  []string
	extensions []string
	signatures []signature
}

// typeConfig describes one entry of the fixed type registry
type typeConfig struct {
	fileType types.FileType
	maxSize  int64
	formats  []formatConfig
}

// registry holds the supported type configurations in fixed evaluation order
var registry = []typeConfig{
	{
		fileType: types.FileTypeImage,
		maxSize:  10 << 20, // 10 MB
		formats: []formatConfig{
			{
				mimeTypes:  []string{"image/jpeg"},
				extensions: []string{".jpg", ".jpeg"},
				signatures: []signature{sig(at(0, 0xFF, 0xD8, 0xFF))},
			},
			{
				mimeTypes:  []string{"image/png"},
				extensions: []string{".png"},
				signatures: []signature{sig(at(0, 0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A))},
			},
			{
				mimeTypes:  []string{"image/gif"},
				extensions: []string{".gif"},
				signatures: []signature{
					sig(at(0, 'G', 'I', 'F', '8', '7', 'a')),
					sig(at(0, 'G', 'I', 'F', '8', '9', 'a')),
				},
			},
			{
				mimeTypes:  []string{"image/webp"},
				extensions: []string{".webp"},
				signatures: []signature{sig(at(0, 'R', 'I', 'F', 'F'), at(8, 'W', 'E', 'B', 'P'))},
			},
		},
	},
	{
		fileType: types.FileTypeVideo,
		maxSize:  100 << 20, // 100 MB
		formats: []formatConfig{
			{
				mimeTypes:  []string{"video/mp4", "video/quicktime"},
				extensions: []string{".mp4", ".mov"},
				signatures: []signature{sig(at(4, 'f', 't', 'y', 'p'))},
			},
			{
				mimeTypes:  []string{"video/webm"},
				extensions: []string{".webm"},
				signatures: []signature{sig(at(0, 0x1A, 0x45, 0xDF, 0xA3))},
			},
			{
				mimeTypes:  []string{"video/x-msvideo"},
				extensions: []string{".avi"},
				signatures: []signature{sig(at(0, 'R', 'I', 'F', 'F'), at(8, 'A', 'V', 'I', ' '))},
			},
		},
	},
	{
		fileType: types.FileTypeDocument,
		maxSize:  20 << 20, // 20 MB
		formats: []formatConfig{
			{
				mimeTypes:  []string{"application/pdf"},
				extensions: []string{".pdf"},
				signatures: []signature{sig(at(0, '%', 'P', 'D', 'F'))},
			},
			{
				// legacy Office compound file binary
				mimeTypes: []string{
					"application/msword",
					"application/vnd.ms-excel",
					"application/vnd.ms-powerpoint",
				},
				extensions: []string{".doc", ".xls", ".ppt"},
				signatures: []signature{sig(at(0, 0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1))},
			},
			{
				// OOXML zip container
				mimeTypes: []string{
					"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
					"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
					"application/vnd.openxmlformats-officedocument.presentationml.presentation",
				},
				extensions: []string{".docx", ".xlsx", ".pptx"},
				signatures: []signature{sig(at(0, 'P', 'K', 0x03, 0x04))},
			},
		},
	},
	{
		fileType: types.FileTypeAudio,
		maxSize:  50 << 20, // 50 MB
		formats: []formatConfig{
			{
				mimeTypes:  []string{"audio/mpeg", "audio/mp3"},
				extensions: []string{".mp3"},
				signatures: []signature{
					sig(at(0, 'I', 'D', '3')),
					sig(at(0, 0xFF, 0xFB)),
					sig(at(0, 0xFF, 0xF3)),
				},
			},
			{
				mimeTypes:  []string{"audio/wav", "audio/x-wav"},
				extensions: []string{".wav"},
				signatures: []signature{sig(at(0, 'R', 'I', 'F', 'F'), at(8, 'W', 'A', 'V', 'E'))},
			},
			{
				mimeTypes:  []string{"audio/ogg"},
				extensions: []string{".ogg"},
				signatures: []signature{sig(at(0, 'O', 'g', 'g', 'S'))},
			},
			{
				mimeTypes:  []string{"audio/flac"},
				extensions: []string{".flac"},
				signatures: []signature{sig(at(0, 'f', 'L', 'a', 'C'))},
			},
		},
	},
}

// matches reports whether buf satisfies every segment of the signature
func (s signature) matches(buf []byte) bool {
	for _, seg := range s {
		end := seg.offset + len(seg.bytes)
		if len(buf) < end {
			return false
		}
		for i, b := range seg.bytes {
			if buf[seg.offset+i] != b {
				return false
			}
		}
	}
	return true
}
