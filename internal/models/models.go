package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Collaborator is one entry of an app's collaborator map, keyed by email
type Collaborator struct {
	IsCurrentAccount bool   `json:"isCurrentAccount,omitempty"`
	Permission       string `json:"permission"`
}

// App is a code-push application
type App struct {
	Name          string                  `json:"name"`
	Collaborators map[string]Collaborator `json:"collaborators"`
	Deployments   []string                `json:"deployments"`
}

// DiffPackage is a delta artifact from a previous package hash to the
// current package
type DiffPackage struct {
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// Package is an immutable release descriptor
type Package struct {
	Description     string                 `json:"description"`
	IsDisabled      bool                   `json:"isDisabled"`
	IsMandatory     bool                   `json:"isMandatory"`
	Rollout         Percent                `json:"rollout"`
	AppVersion      string                 `json:"appVersion"`
	PackageHash     string                 `json:"packageHash"`
	BlobURL         string                 `json:"blobUrl"`
	Size            int64                  `json:"size"`
	ManifestBlobURL string                 `json:"manifestBlobUrl"`
	ReleaseMethod   string                 `json:"releaseMethod"`
	UploadTime      int64                  `json:"uploadTime"`
	Label           string                 `json:"label"`
	ReleasedBy      string                 `json:"releasedBy"`
	DiffPackageMap  map[string]DiffPackage `json:"diffPackageMap,omitempty"`
}

// UploadedAt converts the epoch-millis upload time
func (p Package) UploadedAt() time.Time {
	return time.UnixMilli(p.UploadTime)
}

// Deployment is a release channel of an app holding zero or one package
type Deployment struct {
	ID       string             `json:"id"`
	Key      string             `json:"key"`
	Name     string             `json:"name"`
	Package  *Package           `json:"package"`
	Versions *DeploymentMetrics `json:"versions,omitempty"`
}

// HistoryEntry is a past release of a deployment
type HistoryEntry struct {
	Package
}

// DeploymentMetrics wraps the per-version counters of a deployment
type DeploymentMetrics struct {
	Metrics Metrics `json:"metrics"`
}

// MetricCounts holds the sparse counters reported for one version label
type MetricCounts struct {
	Active     *Count `json:"active,omitempty"`
	Downloaded *Count `json:"downloaded,omitempty"`
	Failed     *Count `json:"failed,omitempty"`
	Installed  *Count `json:"installed,omitempty"`
}

// Metrics maps a version label to its counters
type Metrics map[string]MetricCounts

// UnmarshalJSON skips entries that are not counter objects instead of
// failing the whole map
func (m *Metrics) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = nil
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Metrics, len(raw))
	for version, entry := range raw {
		var counts MetricCounts
		if err := json.Unmarshal(entry, &counts); err != nil {
			continue
		}
		out[version] = counts
	}
	*m = out
	return nil
}

// Percent is a rollout percentage. Decoding clamps to [0, 100]; values that
// are not numbers decode as 0.
type Percent int

const (
	MinRollout Percent = 0
	MaxRollout Percent = 100
)

// ClampPercent rounds v and clamps it to [0, 100]
func ClampPercent(v float64) Percent {
	if math.IsNaN(v) {
		return MinRollout
	}
	r := math.Round(v)
	if r < float64(MinRollout) {
		return MinRollout
	}
	if r > float64(MaxRollout) {
		return MaxRollout
	}
	return Percent(r)
}

func (p *Percent) UnmarshalJSON(data []byte) error {
	*p = Percent(parseLenientNumber(data, 0, ClampPercent))
	return nil
}

// Count is a non-negative metric counter; negative values decode as 0
type Count int64

func (c *Count) UnmarshalJSON(data []byte) error {
	*c = Count(parseLenientNumber(data, 0, func(v float64) Count {
		if math.IsNaN(v) || v < 0 {
			return 0
		}
		return Count(math.Round(v))
	}))
	return nil
}

// Int64 returns the counter value, treating nil as zero
func (c *Count) Int64() int64 {
	if c == nil {
		return 0
	}
	return int64(*c)
}

// parseLenientNumber decodes a JSON number or numeric string and applies
// conv; anything else yields def
func parseLenientNumber[T any](data []byte, def T, conv func(float64) T) T {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		return conv(f)
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return conv(f)
		}
	}
	return def
}
