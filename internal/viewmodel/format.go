// Package viewmodel turns fetched records into display-ready rows. Every
// function is pure.
package viewmodel

import (
	"fmt"
	"math"
	"unicode/utf8"
)

// Color is the semantic colour of a label
type Color string

const (
	ColorDefault   Color = "default"
	ColorPrimary   Color = "primary"
	ColorSecondary Color = "secondary"
	ColorInfo      Color = "info"
	ColorSuccess   Color = "success"
	ColorWarning   Color = "warning"
	ColorError     Color = "error"
)

// Label is a coloured piece of text
type Label struct {
	Text  string `json:"text" yaml:"text"`
	Color Color  `json:"color" yaml:"color"`
}

func (l Label) String() string {
	return l.Text
}

const (
	HashPrefixLen       = 10
	URLPrefixLen        = 20
	ReleasedByPrefixLen = 20
	DiffHashPrefixLen   = 6
	MaxDiffBadges       = 3

	Ellipsis = "..."
)

// Truncate keeps the first n runes of s and appends Ellipsis when anything
// was cut
func Truncate(s string, n int) string {
	if n < 0 {
		n = 0
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + Ellipsis
}

// SizeMB converts bytes to whole megabytes, rounding half away from zero
func SizeMB(bytes int64) int64 {
	return int64(math.Round(float64(bytes) / 1024 / 1024))
}

// SizeKB converts bytes to whole kilobytes
func SizeKB(bytes int64) int64 {
	return int64(math.Round(float64(bytes) / 1024))
}

func percent(p int) string {
	return fmt.Sprintf("%d%%", p)
}
