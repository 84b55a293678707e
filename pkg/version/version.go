package version

import (
	"strconv"
	"strings"
)

// component is one dot-separated piece of a version string
type component struct {
	number    int64
	qualifier string
}

// Compare returns -1, 0 or 1 depending on whether a is older than, equal to,
// or newer than b.
func Compare(a, b string) int {
	left := split(a)
	right := split(b)

	n := len(left)
	if len(right) > n {
		n = len(right)
	}

	for i := 0; i < n; i++ {
		var l, r component
		if i < len(left) {
			l = left[i]
		}
		if i < len(right) {
			r = right[i]
		}
		if c := compareComponent(l, r); c != 0 {
			return c
		}
	}
	return 0
}

// AtLeast reports whether current >= required
func AtLeast(current, required string) bool {
	return Compare(current, required) >= 0
}

// Newer reports whether a > b
func Newer(a, b string) bool {
	return Compare(a, b) > 0
}

func compareComponent(l, r component) int {
	switch {
	case l.number < r.number:
		return -1
	case l.number > r.number:
		return 1
	}

	// 1.0-beta < 1.0
	switch {
	case l.qualifier == r.qualifier:
		return 0
	case l.qualifier == "":
		return 1
	case r.qualifier == "":
		return -1
	}
	return strings.Compare(l.qualifier, r.qualifier)
}

func split(v string) []component {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "v")
	if v == "" {
		return nil
	}

	parts := strings.Split(v, ".")
	out := make([]component, 0, len(parts))
	for _, p := range parts {
		out = append(out, parseComponent(p))
	}
	return out
}

func parseComponent(p string) component {
	end := 0
	for end < len(p) && p[end] >= '0' && p[end] <= '9' {
		end++
	}

	var c component
	if end > 0 {
		n, err := strconv.ParseInt(p[:end], 10, 64)
		if err == nil {
			c.number = n
		}
	}
	c.qualifier = p[end:]
	return c
}
