package coverage

import "strings"

// PathResolver turns file paths reported by an application into canonical,
// project-root relative paths ("./lib/dog.rb")
type PathResolver struct {
	// RootPaths are stripped from the beginning of paths, the first match wins
	RootPaths []string
}

// Relative returns the canonical form of path. Paths that are already canonical
// or don't start with a root path are returned unchanged.
func (r PathResolver) Relative(path string) string {
	if strings.HasPrefix(path, "./") {
		return path
	}
	for _, root := range r.RootPaths {
		if root == "" {
			continue
		}
		if !strings.HasSuffix(root, "/") {
			root += "/"
		}
		if rest, ok := strings.CutPrefix(path, root); ok {
			return "./" + rest
		}
	}
	return path
}

// RelativeAll resolves all paths of a report. Lines of paths that resolve to the
// same canonical path are merged. Line arrays with invalid values are not merged,
// they are returned in rejected under their reported path.
func (r PathResolver) RelativeAll(files map[string][]Line) (resolved map[string][]Line, rejected map[string]error) {
	resolved = make(map[string][]Line, len(files))
	rejected = make(map[string]error)
	for path, lines := range files {
		if err := Validate(lines); err != nil {
			rejected[path] = err
			continue
		}
		canonical := r.Relative(path)
		if existing, ok := resolved[canonical]; ok {
			resolved[canonical] = MergeLines(existing, lines)
		} else {
			resolved[canonical] = lines
		}
	}
	return resolved, rejected
}
