// Package artifact implements the Artifact Store: a run/step-scoped
// directory layout for files tool executions produce, with a write-once
// save operation that suffixes on name collision instead of overwriting.
package artifact

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/arclabs/pilot/plan"
)

// Store persists artifacts under baseDir/<runID>/<stepID>/<fileName>,
// suffixing on name collision rather than overwriting.
type Store struct {
	baseDir string
}

// New creates a Store rooted at baseDir. baseDir is created lazily on
// first Save.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Save copies the file at sourcePath into the run/step's artifact
// directory and returns the resulting Artifact. If fileName is empty, the
// base name of sourcePath is used. If mimeType is empty, it is inferred
// from the file extension.
func (s *Store) Save(runID, stepID, sourcePath, fileName, mimeType string) (plan.Artifact, error) {
	if fileName == "" {
		fileName = filepath.Base(sourcePath)
	}
	if mimeType == "" {
		mimeType = mimeFor(fileName)
	}

	dir := filepath.Join(s.baseDir, runID, stepID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return plan.Artifact{}, fmt.Errorf("artifact: mkdir %s: %w", dir, err)
	}

	destName := uniqueName(dir, fileName)
	dest := filepath.Join(dir, destName)

	size, err := copyFile(sourcePath, dest)
	if err != nil {
		return plan.Artifact{}, fmt.Errorf("artifact: save %s: %w", fileName, err)
	}

	return plan.Artifact{
		FileName: destName,
		Path:     dest,
		MimeType: mimeType,
		Size:     size,
	}, nil
}

// SaveBytes writes data directly as a new artifact, without an existing
// source file. Tools that produce in-memory output (e.g. a generated
// summary) use this instead of Save.
func (s *Store) SaveBytes(runID, stepID, fileName, mimeType string, data []byte) (plan.Artifact, error) {
	dir := filepath.Join(s.baseDir, runID, stepID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return plan.Artifact{}, fmt.Errorf("artifact: mkdir %s: %w", dir, err)
	}

	destName := uniqueName(dir, fileName)
	dest := filepath.Join(dir, destName)

	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return plan.Artifact{}, fmt.Errorf("artifact: write %s: %w", fileName, err)
	}

	if mimeType == "" {
		mimeType = mimeFor(fileName)
	}

	return plan.Artifact{
		FileName: destName,
		Path:     dest,
		MimeType: mimeType,
		Size:     int64(len(data)),
	}, nil
}

func copyFile(src, dest string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	return io.Copy(out, in)
}

// uniqueName appends "-2", "-3", ... before the extension until dir/name
// doesn't already exist.
func uniqueName(dir, name string) string {
	candidate := name
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for i := 2; ; i++ {
		if _, err := os.Stat(filepath.Join(dir, candidate)); os.IsNotExist(err) {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
	}
}

func mimeFor(fileName string) string {
	ext := filepath.Ext(fileName)
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
