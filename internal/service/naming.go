package service

import "fmt"

// maxCopySuffix bounds the search for a free auto-suffixed copy name.
const maxCopySuffix = 100

// copyName picks a name for a copied entity. A caller-supplied name is used
// verbatim; otherwise " (copy)", " (copy 2)", ... are tried against the
// active sibling set.
func copyName(requested, source string, exists func(string) (bool, error)) (string, error) {
	if requested != "" {
		return requested, nil
	}
	for i := 1; i <= maxCopySuffix; i++ {
		candidate := source + " (copy)"
		if i > 1 {
			candidate = fmt.Sprintf("%s (copy %d)", source, i)
		}
		taken, err := exists(candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", conflictf("no free copy name for %q", source)
}
