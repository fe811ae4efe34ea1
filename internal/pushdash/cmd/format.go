package cmd

import (
	"strconv"

	"github.com/sorenmh/pushdash/internal/pushdash/output"
)

func dash(s string) string {
	return output.Dash(s)
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}

func formatIntPtr(n *int64) string {
	if n == nil {
		return "-"
	}
	return formatInt(*n)
}
