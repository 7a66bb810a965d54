package generator

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
}

// BuildContext assembles a bounded snapshot of the repository: the directory
// tree plus a whitelist of key files, each capped at the configured line
// count so the prompt stays inside model context limits.
func (g *Generator) BuildContext() string {
	var parts []string

	parts = append(parts, "## Directory Structure")
	parts = append(parts, g.directoryTree())

	for _, rel := range g.keyFiles {
		full := filepath.Join(g.repoPath, rel)
		content := g.readFileCapped(full)
		if content == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("## File: %s", rel))
		parts = append(parts, "```\n"+content+"\n```")
	}

	return strings.Join(parts, "\n\n")
}

func (g *Generator) directoryTree() string {
	lines := []string{"```"}

	root := filepath.Clean(g.repoPath)
	filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := entry.Name()
		if entry.IsDir() {
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			rel, _ := filepath.Rel(root, path)
			if rel == "." {
				lines = append(lines, filepath.Base(root)+"/")
				return nil
			}
			depth := strings.Count(rel, string(filepath.Separator))
			lines = append(lines, strings.Repeat("  ", depth)+name+"/")
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		depth := strings.Count(rel, string(filepath.Separator))
		lines = append(lines, strings.Repeat("  ", depth+1)+name)
		return nil
	})

	lines = append(lines, "```")
	return strings.Join(lines, "\n")
}

// readFileCapped reads a file, truncating it at the line cap with a marker.
func (g *Generator) readFileCapped(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Failed to read %s: %v", path, err)
		}
		return ""
	}

	lines := strings.Split(string(data), "\n")
	if len(lines) <= g.lineCap {
		return string(data)
	}
	head := strings.Join(lines[:g.lineCap], "\n")
	return head + fmt.Sprintf("\n... (truncated, %d total lines)", len(lines))
}
