package ingestion

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ResumeFile is a plain-text resume found in the uploads directory
type ResumeFile struct {
	Applicant string // taken from the "Name_CV.txt" file naming convention
	Path      string
	Text      string
}

// FileHandler manages resume files in the uploads directory
type FileHandler struct {
	uploadsDir string
}

// NewFileHandler creates a new file handler
func NewFileHandler(uploadsDir string) *FileHandler {
	return &FileHandler{
		uploadsDir: uploadsDir,
	}
}

// Dir returns the uploads directory
func (fh *FileHandler) Dir() string {
	return fh.uploadsDir
}

// SaveUploadedFile saves an uploaded plain-text resume to the uploads directory
func (fh *FileHandler) SaveUploadedFile(filename string, content io.Reader) (string, error) {
	filename = filepath.Base(filepath.Clean(filename))
	if filename == "." || filename == string(filepath.Separator) {
		return "", fmt.Errorf("invalid file name")
	}
	if !SupportedExtension(filename) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}

	if err := os.MkdirAll(fh.uploadsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create uploads directory: %w", err)
	}

	filePath := filepath.Join(fh.uploadsDir, filename)
	file, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	n, err := io.Copy(file, io.LimitReader(content, MaxResumeBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if n > MaxResumeBytes {
		os.Remove(filePath)
		return "", fmt.Errorf("file %s exceeds %d bytes", filename, MaxResumeBytes)
	}

	return filePath, nil
}

// LoadResumes reads every plain-text resume in the uploads directory.
// Cover letters ("Name_CoverLetter.txt") are skipped.
func (fh *FileHandler) LoadResumes() ([]ResumeFile, error) {
	files, err := os.ReadDir(fh.uploadsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []ResumeFile{}, nil
		}
		return nil, fmt.Errorf("failed to read uploads directory: %w", err)
	}

	resumes := make([]ResumeFile, 0, len(files))
	for _, file := range files {
		if file.IsDir() || !SupportedExtension(file.Name()) {
			continue
		}

		applicant, docType := splitFileName(file.Name())
		if strings.Contains(docType, "cover") || strings.Contains(docType, "letter") {
			continue
		}

		filePath := filepath.Join(fh.uploadsDir, file.Name())
		text, err := ReadResumeFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file.Name(), err)
		}

		resumes = append(resumes, ResumeFile{
			Applicant: applicant,
			Path:      filePath,
			Text:      text,
		})
	}

	sort.Slice(resumes, func(i, j int) bool { return resumes[i].Path < resumes[j].Path })
	return resumes, nil
}

// splitFileName turns "Jane_Doe_CV.txt" into ("Jane Doe", "cv")
func splitFileName(filename string) (string, string) {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	parts := strings.Split(base, "_")
	if len(parts) < 2 {
		return base, ""
	}
	last := strings.ToLower(parts[len(parts)-1])
	switch last {
	case "cv", "resume", "coverletter", "cover", "letter", "cl":
		return strings.Join(parts[:len(parts)-1], " "), last
	}
	return strings.Join(parts, " "), ""
}

// ClearUploads removes all files from the uploads directory
func (fh *FileHandler) ClearUploads() error {
	if err := os.RemoveAll(fh.uploadsDir); err != nil {
		return fmt.Errorf("failed to clear uploads directory: %w", err)
	}
	return os.MkdirAll(fh.uploadsDir, 0755)
}
