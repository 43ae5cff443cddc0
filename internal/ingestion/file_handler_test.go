package ingestion

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const uploadedResume = "Grace Hopper\ngrace@example.com\n\nCompiler engineer, 12 years of experience with COBOL and Go.\n"

func TestSaveUploadedFile(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		wantBase string
		wantErr  error
	}{
		{name: "Plain text", filename: "Grace_Hopper_CV.txt", content: uploadedResume, wantBase: "Grace_Hopper_CV.txt"},
		{name: "Markdown", filename: "grace.MD", content: uploadedResume, wantBase: "grace.MD"},
		{name: "Traversal is flattened", filename: "../../etc/Grace_CV.txt", content: uploadedResume, wantBase: "Grace_CV.txt"},
		{name: "PDF rejected", filename: "Grace_CV.pdf", content: uploadedResume, wantErr: ErrUnsupportedFormat},
		{name: "DOCX rejected", filename: "Grace_CV.docx", content: uploadedResume, wantErr: ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "uploads")
			fh := NewFileHandler(dir)

			path, err := fh.SaveUploadedFile(tt.filename, strings.NewReader(tt.content))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, tt.wantBase), path)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.content, string(data))
		})
	}
}

func TestSaveUploadedFileTooLarge(t *testing.T) {
	dir := t.TempDir()
	fh := NewFileHandler(dir)

	big := strings.Repeat("a", MaxResumeBytes+1)
	_, err := fh.SaveUploadedFile("huge.txt", strings.NewReader(big))
	assert.ErrorContains(t, err, "exceeds")

	_, statErr := os.Stat(filepath.Join(dir, "huge.txt"))
	assert.True(t, os.IsNotExist(statErr), "oversized file is removed")
}

func TestLoadResumes(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"Grace_Hopper_CV.txt":          uploadedResume,
		"Grace_Hopper_CoverLetter.txt": "Dear hiring manager, please consider my application.",
		"Alan_Turing_resume.md":        "Alan Turing\n\nMathematician with 8 years of cryptanalysis experience.\n",
		"linus.text":                   "Linus\n\nKernel maintainer with 30 years of C experience.\n",
		"portfolio.pdf":                "%PDF-1.4",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive_CV.txt"), 0755))

	resumes, err := NewFileHandler(dir).LoadResumes()
	require.NoError(t, err)

	var applicants []string
	for _, r := range resumes {
		applicants = append(applicants, r.Applicant)
		assert.NotEmpty(t, r.Text)
	}
	assert.Equal(t, []string{"Alan Turing", "Grace Hopper", "linus"}, applicants)
}

func TestLoadResumesRejectsBinary(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Bob_CV.txt"), []byte("%PDF-1.7\x00\x01\x02\x03"), 0600))

	_, err := NewFileHandler(dir).LoadResumes()
	assert.ErrorIs(t, err, ErrBinaryResume)
}

func TestLoadResumesMissingDir(t *testing.T) {
	resumes, err := NewFileHandler(filepath.Join(t.TempDir(), "missing")).LoadResumes()
	require.NoError(t, err)
	assert.Empty(t, resumes)
}

func TestSplitFileName(t *testing.T) {
	tests := []struct {
		in      string
		name    string
		docType string
	}{
		{"Jane_Doe_CV.txt", "Jane Doe", "cv"},
		{"Jane_Doe_Resume.md", "Jane Doe", "resume"},
		{"Jane_CoverLetter.txt", "Jane", "coverletter"},
		{"Jane_Doe.txt", "Jane Doe", ""},
		{"jane.txt", "jane", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			name, docType := splitFileName(tt.in)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.docType, docType)
		})
	}
}

func TestClearUploads(t *testing.T) {
	dir := t.TempDir()
	fh := NewFileHandler(dir)
	_, err := fh.SaveUploadedFile("Grace_CV.txt", strings.NewReader(uploadedResume))
	require.NoError(t, err)

	require.NoError(t, fh.ClearUploads())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
