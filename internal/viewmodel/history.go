package viewmodel

import (
	"encoding/json"
	"time"

	"github.com/samber/lo"

	"github.com/sorenmh/pushdash/internal/models"
)

// DescriptionLine is one localized description
type DescriptionLine struct {
	Locale Label  `json:"locale" yaml:"locale"`
	Text   string `json:"text" yaml:"text"`
}

// Description is a history description, either split per locale or kept
// as raw text
type Description struct {
	Raw   string            `json:"raw" yaml:"raw"`
	Lines []DescriptionLine `json:"lines,omitempty" yaml:"lines,omitempty"`
}

// Structured reports whether the description was split per locale
func (d Description) Structured() bool {
	return len(d.Lines) > 0
}

type localized struct {
	Description string `json:"description"`
}

var descriptionLocales = []struct {
	key   string
	label Label
}{
	{"vi", Label{Text: "VI", Color: ColorInfo}},
	{"en", Label{Text: "EN", Color: ColorSecondary}},
}

// ParseDescription splits a description holding a JSON object with "vi"
// and "en" entries. Anything else is kept as raw text.
func ParseDescription(s string) Description {
	d := Description{Raw: s}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return d
	}
	for _, loc := range descriptionLocales {
		raw, ok := obj[loc.key]
		if !ok {
			continue
		}
		var l localized
		if err := json.Unmarshal(raw, &l); err != nil {
			continue
		}
		d.Lines = append(d.Lines, DescriptionLine{Locale: loc.label, Text: l.Description})
	}
	return d
}

// HistoryRow is the release history table row
type HistoryRow struct {
	Label       Label       `json:"label" yaml:"label"`
	AppVersion  Label       `json:"appVersion" yaml:"appVersion"`
	ReleasedBy  string      `json:"releasedBy" yaml:"releasedBy"`
	UploadedAt  time.Time   `json:"uploadedAt" yaml:"uploadedAt"`
	Package     PackageView `json:"package" yaml:"package"`
	Description Description `json:"description" yaml:"description"`
	Mandatory   Label       `json:"mandatory" yaml:"mandatory"`
	Rollout     string      `json:"rollout" yaml:"rollout"`
	Status      Label       `json:"status" yaml:"status"`
}

// NewHistoryRow maps a history entry
func NewHistoryRow(e models.HistoryEntry) HistoryRow {
	pv := NewPackageView(e.Package)
	return HistoryRow{
		Label:       Label{Text: e.Label, Color: ColorPrimary},
		AppVersion:  Label{Text: e.AppVersion, Color: ColorInfo},
		ReleasedBy:  e.ReleasedBy,
		UploadedAt:  e.UploadedAt(),
		Package:     pv,
		Description: ParseDescription(e.Description),
		Mandatory:   pv.Mandatory,
		Rollout:     pv.Rollout,
		Status:      pv.Status,
	}
}

// NewHistoryRows maps a list of history entries
func NewHistoryRows(entries []models.HistoryEntry) []HistoryRow {
	return lo.Map(entries, func(e models.HistoryEntry, _ int) HistoryRow { return NewHistoryRow(e) })
}
