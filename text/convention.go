package text

import (
	"fmt"
	"strings"
)

// Convention is the byte sequence a buffer uses to represent one line break
type Convention struct {
	Name     string
	Sequence string
}

var (
	CRLF = Convention{Name: "crlf", Sequence: "\r\n"}
	LF   = Convention{Name: "lf", Sequence: "\n"}
	CR   = Convention{Name: "cr", Sequence: "\r"}
)

// Width returns the number of bytes one line break occupies
func (c Convention) Width() int { return len(c.Sequence) }

func (c Convention) String() string { return c.Name }

// ParseConvention accepts convention names as well as Neovim 'fileformat' values
func ParseConvention(s string) (Convention, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "crlf", "dos", "windows":
		return CRLF, nil
	case "lf", "unix":
		return LF, nil
	case "cr", "mac":
		return CR, nil
	default:
		return Convention{}, fmt.Errorf("unknown line ending %q", s)
	}
}

// Split breaks content into lines on the convention's sequence.
// The result always has at least one element.
func (c Convention) Split(content string) []string {
	return strings.Split(content, c.Sequence)
}

// Join is the inverse of Split
func (c Convention) Join(lines []string) string {
	return strings.Join(lines, c.Sequence)
}
