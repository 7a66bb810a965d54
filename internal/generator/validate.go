package generator

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
)

const maxSourceFileBytes = 10 * 1024 * 1024

// dynamicImports are flagged with a warning but never fail validation:
// code that shells out or loads plugins deserves a look from the reviewer.
var dynamicImports = map[string]bool{
	"os/exec": true,
	"plugin":  true,
	"unsafe":  true,
}

// ValidationError reports a post-apply static check failure. The changes
// stay on the failed branch for manual inspection; nothing is rolled back.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Path, e.Reason)
}

// Validate statically checks the working tree after changes are applied:
// every Go source file must parse, and no source file may exceed the size
// limit. Dynamic-execution imports produce warnings only.
func (g *Generator) Validate() error {
	log.Printf("Validating working tree...")

	root := filepath.Clean(g.repoPath)
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := entry.Name()
		if entry.IsDir() {
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(name, ".go") {
			return nil
		}

		rel, _ := filepath.Rel(root, path)

		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", rel, err)
		}
		if info.Size() > maxSourceFileBytes {
			return &ValidationError{Path: rel, Reason: "file too large (>10MB)"}
		}

		src, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", rel, err)
		}

		file, err := parser.ParseFile(token.NewFileSet(), path, src, parser.AllErrors)
		if err != nil {
			return &ValidationError{Path: rel, Reason: err.Error()}
		}

		for _, imp := range file.Imports {
			importPath := strings.Trim(imp.Path.Value, `"`)
			if dynamicImports[importPath] {
				log.Printf("Warning: %s imports %q", rel, importPath)
			}
		}

		return nil
	})

	if err != nil {
		return err
	}

	log.Printf("Validation passed")
	return nil
}
