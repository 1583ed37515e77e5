package hooks

// FilterFiles returns the subset of files the hook applies to: paths
// matching the files pattern (all paths when unset) minus paths matching
// the exclude pattern. Patterns are validated at config load, so a pattern
// that fails to compile here is treated as matching nothing.
func (h *Hook) FilterFiles(files []string) []string {
	include, err := CompilePattern(h.Files)
	if err != nil {
		return nil
	}
	exclude, err := CompilePattern(h.Exclude)
	if err != nil {
		exclude = nil
	}

	var out []string
	for _, f := range files {
		if include != nil && !include.MatchString(f) {
			continue
		}
		if exclude != nil && exclude.MatchString(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}
