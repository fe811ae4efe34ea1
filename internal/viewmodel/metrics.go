package viewmodel

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"

	"github.com/samber/lo"

	"github.com/sorenmh/pushdash/internal/models"
)

var releaseLabelPattern = regexp.MustCompile(`^v\d+$`)

// MetricRow holds the counters of one version label. Only versions with an
// active counter become rows.
type MetricRow struct {
	Version    Label  `json:"version" yaml:"version"`
	Active     int64  `json:"active" yaml:"active"`
	Downloaded *int64 `json:"downloaded,omitempty" yaml:"downloaded,omitempty"`
	Installed  *int64 `json:"installed,omitempty" yaml:"installed,omitempty"`
	Failed     *int64 `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// Counters renders the present counters, e.g. ["Active: 5", "Install: 4"]
func (r MetricRow) Counters() []string {
	out := []string{fmt.Sprintf("Active: %d", r.Active)}
	if r.Downloaded != nil {
		out = append(out, fmt.Sprintf("Download: %d", *r.Downloaded))
	}
	if r.Installed != nil {
		out = append(out, fmt.Sprintf("Install: %d", *r.Installed))
	}
	if r.Failed != nil {
		out = append(out, fmt.Sprintf("Failed: %d", *r.Failed))
	}
	return out
}

// IsReleaseLabel reports whether version has the form v<digits>
func IsReleaseLabel(version string) bool {
	return releaseLabelPattern.MatchString(version)
}

// NewMetricRows maps metrics to rows. Release labels come first in numeric
// order, followed by the other labels in lexical order.
func NewMetricRows(m models.Metrics) []MetricRow {
	versions := lo.Filter(lo.Keys(m), func(v string, _ int) bool {
		return m[v].Active != nil
	})
	slices.SortFunc(versions, compareVersions)

	return lo.Map(versions, func(v string, _ int) MetricRow {
		c := m[v]
		return MetricRow{
			Version:    Label{Text: v, Color: lo.Ternary(IsReleaseLabel(v), ColorInfo, ColorSecondary)},
			Active:     c.Active.Int64(),
			Downloaded: countPtr(c.Downloaded),
			Installed:  countPtr(c.Installed),
			Failed:     countPtr(c.Failed),
		}
	})
}

func countPtr(c *models.Count) *int64 {
	if c == nil {
		return nil
	}
	return lo.ToPtr(c.Int64())
}

func compareVersions(a, b string) int {
	ra, rb := IsReleaseLabel(a), IsReleaseLabel(b)
	switch {
	case ra && rb:
		na, _ := strconv.ParseUint(a[1:], 10, 64)
		nb, _ := strconv.ParseUint(b[1:], 10, 64)
		if na != nb {
			if na < nb {
				return -1
			}
			return 1
		}
	case ra:
		return -1
	case rb:
		return 1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
