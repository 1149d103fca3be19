package export

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"
)

// ErrInvalidPath is wrapped by every output path validation failure.
var ErrInvalidPath = errors.New("invalid output path")

// OutputExtensions are the containers the encoder settings can produce.
var OutputExtensions = []string{".mp4", ".mkv", ".mov"}

// SanitizeName turns free text into a file name fragment: control characters
// are dropped, anything outside letters, digits and " -_.,()" becomes '_',
// and the result is cut to maxLen runes (no limit when maxLen <= 0).
func SanitizeName(s string, maxLen int) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r):
			return -1
		case unicode.IsLetter(r), unicode.IsDigit(r), strings.ContainsRune(" -_.,()", r):
			return r
		default:
			return '_'
		}
	}, s)

	name := strings.TrimSpace(mapped)
	if runes := []rune(name); maxLen > 0 && len(runes) > maxLen {
		name = string(runes[:maxLen])
	}
	return name
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPath, fmt.Sprintf(format, args...))
}

// ValidateOutputDir requires an existing directory given as a clean path
// with no ".." element.
func ValidateOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return invalid("output_dir is required")
	}
	if slices.Contains(strings.Split(filepath.ToSlash(dir), "/"), "..") {
		return invalid("output_dir cannot contain path traversal")
	}
	if filepath.Clean(dir) != dir {
		return invalid("output_dir must be clean path")
	}

	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return invalid("output_dir does not exist")
	case err != nil:
		return invalid("output_dir: %v", err)
	case !info.IsDir():
		return invalid("output_dir is not a directory")
	}
	return nil
}

// ValidateOutputFile checks an export destination: an absolute path with a
// supported container extension, inside an existing directory, and not the
// source video itself.
func ValidateOutputFile(path, inputPath string) error {
	switch {
	case strings.TrimSpace(path) == "":
		return invalid("output_path is required")
	case !filepath.IsAbs(path):
		return invalid("output_path must be absolute")
	case !slices.Contains(OutputExtensions, strings.ToLower(filepath.Ext(path))):
		return invalid("output_path must end in one of %s", strings.Join(OutputExtensions, ", "))
	}

	clean := filepath.Clean(path)
	if inputPath != "" && clean == filepath.Clean(inputPath) {
		return invalid("output_path must differ from the source video")
	}
	if err := ValidateOutputDir(filepath.Dir(clean)); err != nil {
		return err
	}
	if info, err := os.Stat(clean); err == nil && info.IsDir() {
		return invalid("output_path is a directory")
	}
	return nil
}
