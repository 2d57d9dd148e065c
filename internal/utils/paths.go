package utils

import "path/filepath"

// ResolvePaths anchors relative paths to a base directory, typically
// the directory holding chatbench.yaml. Absolute paths pass through
// unchanged.
func ResolvePaths(paths []string, baseDir string) []string {
	if len(paths) == 0 {
		return nil
	}

	resolved := make([]string, 0, len(paths))
	for _, path := range paths {
		if filepath.IsAbs(path) {
			resolved = append(resolved, path)
		} else {
			resolved = append(resolved, filepath.Join(baseDir, path))
		}
	}
	return resolved
}
