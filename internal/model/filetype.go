package model

import (
	"bytes"
	"path/filepath"
	"strings"
)

var extensionTypes = map[string]FileType{
	".pdf":      FileTypePDF,
	".docx":     FileTypeDocx,
	".pptx":     FileTypePptx,
	".jpg":      FileTypeImage,
	".jpeg":     FileTypeImage,
	".png":      FileTypeImage,
	".gif":      FileTypeImage,
	".bmp":      FileTypeImage,
	".tiff":     FileTypeImage,
	".tif":      FileTypeImage,
	".mp3":      FileTypeAudio,
	".wav":      FileTypeAudio,
	".m4a":      FileTypeAudio,
	".ogg":      FileTypeAudio,
	".csv":      FileTypeCSV,
	".txt":      FileTypeText,
	".text":     FileTypeText,
	".md":       FileTypeMD,
	".markdown": FileTypeMD,
}

// DetectFileType classifies intake content by magic bytes first, falling back
// to the filename extension. Returns false when the file is not a supported
// kind.
func DetectFileType(filename string, content []byte) (FileType, bool) {
	if bytes.HasPrefix(content, []byte("%PDF")) {
		return FileTypePDF, true
	}

	ext := strings.ToLower(filepath.Ext(filename))
	ft, ok := extensionTypes[ext]
	return ft, ok
}

// Extension returns the canonical file extension for the original artifact.
func (t FileType) Extension() string {
	switch t {
	case FileTypePDF:
		return ".pdf"
	case FileTypeDocx:
		return ".docx"
	case FileTypePptx:
		return ".pptx"
	case FileTypeImage:
		return ".png"
	case FileTypeAudio:
		return ".mp3"
	case FileTypeCSV:
		return ".csv"
	case FileTypeMD:
		return ".md"
	default:
		return ".txt"
	}
}
