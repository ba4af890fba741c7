// Package filesource harvests OAI-PMH responses saved as files, from a local
// directory or an S3 prefix, one file per page.
package filesource

import (
	"path"
	"sort"
	"strconv"
	"strings"
)

const initialPrefix = "initial"

// numericToken returns the integer after the second underscore of a file
// named prefix_start_end_suffix.xml.
func numericToken(name string) (int64, bool) {
	base := strings.TrimSuffix(path.Base(name), path.Ext(name))
	parts := strings.Split(base, "_")
	if len(parts) < 3 {
		return 0, false
	}
	n, err := strconv.ParseInt(parts[2], 10, 64)
	return n, err == nil
}

func isInitial(name string) bool {
	return strings.HasPrefix(strings.ToLower(path.Base(name)), initialPrefix)
}

// Sort orders harvest files. Files whose name starts with "initial" come
// first. The rest are sorted by their numeric token when every one of them has
// one, lexically otherwise.
func Sort(names []string) {
	numeric := true
	for _, n := range names {
		if isInitial(n) {
			continue
		}
		if _, ok := numericToken(n); !ok {
			numeric = false
			break
		}
	}

	sort.SliceStable(names, func(i, j int) bool {
		a, b := names[i], names[j]
		ai, bi := isInitial(a), isInitial(b)
		if ai != bi {
			return ai
		}
		if numeric && !ai {
			na, _ := numericToken(a)
			nb, _ := numericToken(b)
			if na != nb {
				return na < nb
			}
		}
		return path.Base(a) < path.Base(b)
	})
}

func isHarvestFile(name string) bool {
	return strings.EqualFold(path.Ext(name), ".xml")
}
