package scanner

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	pcierrors "github.com/standardbeagle/pci/internal/errors"
)

// fileEntry is one candidate file found under the scan root. rel uses
// forward slashes regardless of platform so exclude globs match uniformly.
type fileEntry struct {
	path   string
	rel    string
	vendor bool
}

// collectFiles walks root and returns scannable files in walk order.
// Excluded directories are pruned rather than filtered per file.
func (s *Scanner) collectFiles(root string, excludeVendor bool) ([]fileEntry, error) {
	vendorPrefix := s.cfg.Scan.VendorDir + "/"

	var files []fileEntry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable subtrees are skipped, not fatal
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if s.excluded(rel + "/") {
				return fs.SkipDir
			}
			if excludeVendor && (rel == s.cfg.Scan.VendorDir || strings.HasPrefix(rel, vendorPrefix)) {
				return fs.SkipDir
			}
			return nil
		}

		if !s.cfg.SourceExtension(d.Name()) || s.excluded(rel) {
			return nil
		}
		if info, err := d.Info(); err == nil && info.Size() > s.cfg.Scan.MaxFileSize {
			return nil
		}

		files = append(files, fileEntry{
			path:   path,
			rel:    rel,
			vendor: rel == s.cfg.Scan.VendorDir || strings.HasPrefix(rel, vendorPrefix),
		})
		return nil
	})
	if err != nil {
		return nil, pcierrors.NewScanError(root, root, err)
	}
	return files, nil
}

// excluded tests the slash-separated relative path against the configured
// exclude globs. Directory paths carry a trailing slash so `**/dir/**`
// patterns prune whole subtrees.
func (s *Scanner) excluded(rel string) bool {
	for _, pattern := range s.cfg.Scan.Exclude {
		if ok, _ := doublestar.Match(pattern, strings.TrimSuffix(rel, "/")); ok {
			return true
		}
		// a directory matches when the pattern targets its contents
		if strings.HasSuffix(rel, "/") {
			if ok, _ := doublestar.Match(pattern, rel+"x"); ok {
				return true
			}
		}
	}
	return false
}
