package ingestion

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// MinResumeTextLength is the minimum text length accepted as a resume
	MinResumeTextLength = 20
	// BinarySampleSize is the number of bytes to sample for binary detection
	BinarySampleSize = 1000
	// BinaryThreshold is the proportion of non-printable characters that indicates binary data
	BinaryThreshold = 0.3
	// MaxResumeBytes caps the size of a single resume
	MaxResumeBytes = 1 << 20
)

var (
	// ErrBinaryResume is returned for PDF, DOCX or other binary content; only plain text is parsed
	ErrBinaryResume = errors.New("resume appears to be binary, convert it to plain text first")
	// ErrUnsupportedFormat is returned for file extensions that are not plain text
	ErrUnsupportedFormat = errors.New("unsupported resume format")
	// ErrEmptyResume is returned when a resume has no usable text
	ErrEmptyResume = errors.New("resume text is empty")
)

// SupportedExtension reports whether a file name has a plain-text resume extension
func SupportedExtension(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md", ".text":
		return true
	default:
		return false
	}
}

// ReadResumeFile loads a plain-text resume from disk
func ReadResumeFile(filePath string) (string, error) {
	if !SupportedExtension(filePath) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filePath))
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to stat resume %s: %w", filePath, err)
	}
	if info.Size() > MaxResumeBytes {
		return "", fmt.Errorf("resume %s is too large: %d bytes", filePath, info.Size())
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read resume %s: %w", filePath, err)
	}
	return DecodeResume(data)
}

// DecodeResume validates raw bytes as resume text and returns it as valid UTF-8
func DecodeResume(data []byte) (string, error) {
	content := string(data)
	if IsBinaryData(content) {
		return "", ErrBinaryResume
	}

	content = strings.ToValidUTF8(content, "�")
	content = strings.TrimPrefix(content, "\uFEFF")
	content = strings.ReplaceAll(content, "\r\n", "\n")

	if len(strings.TrimSpace(content)) < MinResumeTextLength {
		return "", ErrEmptyResume
	}
	return content, nil
}

// IsBinaryData checks if content appears to be binary (PDF/ZIP markers)
func IsBinaryData(content string) bool {
	if len(content) == 0 {
		return false
	}

	if strings.HasPrefix(content, "%PDF-") {
		return true
	}

	// ZIP magic number (DOCX files)
	if len(content) >= 2 && content[:2] == "PK" {
		return true
	}

	// OLE compound document (legacy .doc)
	if strings.HasPrefix(content, "\xD0\xCF\x11\xE0") {
		return true
	}

	sampleSize := min(BinarySampleSize, len(content))
	nonPrintable := 0
	for i := 0; i < sampleSize; i++ {
		ch := content[i]
		if ch < 32 && ch != '\n' && ch != '\r' && ch != '\t' {
			nonPrintable++
		}
	}

	return float64(nonPrintable)/float64(sampleSize) > BinaryThreshold
}
