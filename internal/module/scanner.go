package module

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"go.uber.org/zap"
)

// Scanner enumerates module files under a scan root.
type Scanner struct {
	log *zap.Logger
}

// NewScanner creates a Scanner.
func NewScanner(log *zap.Logger) *Scanner {
	return &Scanner{log: log}
}

// Scan walks root recursively and returns the eligible module file
// paths, one per load task. Type-declaration files and files without the
// module suffix are skipped. No ordering is guaranteed beyond what the
// directory listing yields.
//
// An unreadable root fails the scan for that root only; callers run
// roots independently.
func (s *Scanner) Scan(root string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !Eligible(path) {
			if IsTypeDecl(path) {
				s.log.Debug("skipping type declaration file", zap.String("path", path))
			}
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	s.log.Debug("scan complete", zap.String("root", root), zap.Int("files", len(files)))
	return files, nil
}
