package depindex

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	gitignore "github.com/sabhiram/go-gitignore"
)

// BuildAll walks root, (re)indexing every .py file not matched by ignore,
// then resolves the dependency graph. cmd/run.go runs it once at session
// start; the index is not updated after individual patches.
func BuildAll(idx *Index, root string, ignore []string) error {
	matcher := gitignore.CompileIgnoreLines(ignore...)
	now := time.Now()

	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if rel != "." && matcher.MatchesPath(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || filepath.Ext(p) != ".py" {
			return nil
		}

		content, readErr := os.ReadFile(p)
		if readErr != nil {
			return nil
		}

		hash := sha256.Sum256(content)
		if indexErr := idx.Upsert(rel, hex.EncodeToString(hash[:]), ExtractImports(string(content)), now); indexErr != nil {
			return fmt.Errorf("depindex: index %s: %w", rel, indexErr)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return idx.Resolve()
}

// HasChanged reports whether content's hash differs from the last-indexed
// hash for path, so callers can skip re-extracting imports for untouched
// files.
func HasChanged(idx *Index, path string, content []byte) (bool, error) {
	hash := sha256.Sum256(content)
	encoded := hex.EncodeToString(hash[:])
	existing, err := idx.FileHash(path)
	if err != nil {
		return false, err
	}
	return !strings.EqualFold(existing, encoded), nil
}
