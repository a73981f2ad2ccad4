// internal/dom/unique.go
package dom

import (
	"strconv"
	"strings"

	"github.com/xkilldash9x/focusmap/internal/css"
)

// IDCounter reports how many elements of a document carry an id.
type IDCounter interface {
	CountID(id string) int
}

// UniqueSelector builds a selector that resolves back to el in its document.
// The path stops early at the nearest ancestor-or-self whose id is identifier-safe and
// carried by exactly one element of ids. With a nil ids the path always runs to the root.
func UniqueSelector(el Element, ids IDCounter) string {
	if el == nil {
		return ""
	}
	var parts []string
	for cur := el; cur != nil; cur = cur.Parent() {
		if id, ok := cur.Attribute("id"); ok && ids != nil && css.IsIdentifier(id) && ids.CountID(id) == 1 {
			parts = append(parts, "#"+id)
			break
		}
		if cur.Parent() == nil {
			parts = append(parts, cur.TagName())
			break
		}
		parts = append(parts, cur.TagName()+":nth-child("+strconv.Itoa(ChildIndex(cur))+")")
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

// ParseInteger parses s the way HTML parses integer attributes: leading whitespace,
// an optional sign, then as many decimal digits as are present. Trailing garbage is ignored.
func ParseInteger(s string) (int, bool) {
	s = strings.TrimLeft(s, " \t\n\r\f")
	if s == "" {
		return 0, false
	}
	negative := false
	switch s[0] {
	case '-':
		negative = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		// Only overflow reaches here.
		return 0, false
	}
	if negative {
		n = -n
	}
	return n, true
}

// ParseFloatPrefix is ParseInteger for decimal numbers such as "12.5px".
func ParseFloatPrefix(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := 0
	dot := false
	for end < len(s) {
		c := s[end]
		if c >= '0' && c <= '9' {
			digits++
		} else if c == '.' && !dot {
			dot = true
		} else {
			break
		}
		end++
	}
	if digits == 0 {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(s[:end], "."), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
