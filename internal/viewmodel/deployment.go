package viewmodel

import (
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/sorenmh/pushdash/internal/models"
)

// PackageView is the display form of a release package
type PackageView struct {
	Description   string    `json:"description" yaml:"description"`
	ReleaseMethod string    `json:"releaseMethod" yaml:"releaseMethod"`
	SizeMB        int64     `json:"sizeMB" yaml:"sizeMB"`
	Hash          string    `json:"hash" yaml:"hash"`
	BlobURL       string    `json:"blobUrl" yaml:"blobUrl"`
	ManifestURL   string    `json:"manifestUrl" yaml:"manifestUrl"`
	DiffCount     int       `json:"diffCount" yaml:"diffCount"`
	Diffs         []Label   `json:"diffs,omitempty" yaml:"diffs,omitempty"`
	MoreDiffs     string    `json:"moreDiffs,omitempty" yaml:"moreDiffs,omitempty"`
	Label         Label     `json:"label" yaml:"label"`
	AppVersion    string    `json:"appVersion" yaml:"appVersion"`
	ReleasedBy    string    `json:"releasedBy" yaml:"releasedBy"`
	UploadedAt    time.Time `json:"uploadedAt" yaml:"uploadedAt"`
	Mandatory     Label     `json:"mandatory" yaml:"mandatory"`
	Rollout       string    `json:"rollout" yaml:"rollout"`
	Status        Label     `json:"status" yaml:"status"`
}

// Size renders the package size, e.g. "3MB"
func (p PackageView) Size() string {
	return fmt.Sprintf("%dMB", p.SizeMB)
}

// NewPackageView maps a package. Diff badges are ordered by hash and capped
// at MaxDiffBadges; the remainder is summarized as "+N more".
func NewPackageView(pkg models.Package) PackageView {
	hashes := lo.Keys(pkg.DiffPackageMap)
	slices.Sort(hashes)

	shown := hashes
	if len(shown) > MaxDiffBadges {
		shown = shown[:MaxDiffBadges]
	}

	var more string
	if extra := len(hashes) - len(shown); extra > 0 {
		more = fmt.Sprintf("+%d more", extra)
	}

	return PackageView{
		Description:   pkg.Description,
		ReleaseMethod: pkg.ReleaseMethod,
		SizeMB:        SizeMB(pkg.Size),
		Hash:          Truncate(pkg.PackageHash, HashPrefixLen),
		BlobURL:       Truncate(pkg.BlobURL, URLPrefixLen),
		ManifestURL:   Truncate(pkg.ManifestBlobURL, URLPrefixLen),
		DiffCount:     len(hashes),
		Diffs: lo.Map(shown, func(hash string, _ int) Label {
			return Label{
				Text:  fmt.Sprintf("%s (%dKB)", Truncate(hash, DiffHashPrefixLen), SizeKB(pkg.DiffPackageMap[hash].Size)),
				Color: ColorDefault,
			}
		}),
		MoreDiffs:  more,
		Label:      Label{Text: pkg.Label, Color: ColorInfo},
		AppVersion: pkg.AppVersion,
		ReleasedBy: Truncate(pkg.ReleasedBy, ReleasedByPrefixLen),
		UploadedAt: pkg.UploadedAt(),
		Mandatory:  mandatoryLabel(pkg.IsMandatory),
		Rollout:    percent(int(pkg.Rollout)),
		Status:     statusLabel(pkg.IsDisabled),
	}
}

// DeploymentRow is the deployments table row
type DeploymentRow struct {
	ID        Label        `json:"id" yaml:"id"`
	Name      string       `json:"name" yaml:"name"`
	NameColor Color        `json:"nameColor" yaml:"nameColor"`
	Key       string       `json:"key" yaml:"key"`
	Package   *PackageView `json:"package" yaml:"package"`
	Status    Label        `json:"status" yaml:"status"`
	Metrics   []MetricRow  `json:"metrics" yaml:"metrics"`
}

// NewDeploymentRow maps a deployment. A deployment without a package is
// reported as active.
func NewDeploymentRow(d models.Deployment) DeploymentRow {
	row := DeploymentRow{
		ID:        Label{Text: d.ID, Color: ColorPrimary},
		Name:      d.Name,
		NameColor: deploymentNameColor(d.Name),
		Key:       d.Key,
		Status:    statusLabel(false),
	}
	if d.Package != nil {
		pv := NewPackageView(*d.Package)
		row.Package = &pv
		row.Status = pv.Status
	}
	if d.Versions != nil {
		row.Metrics = NewMetricRows(d.Versions.Metrics)
	}
	return row
}

// NewDeploymentRows maps a list of deployments
func NewDeploymentRows(ds []models.Deployment) []DeploymentRow {
	return lo.Map(ds, func(d models.Deployment, _ int) DeploymentRow { return NewDeploymentRow(d) })
}

func deploymentNameColor(name string) Color {
	switch name {
	case "Production":
		return ColorSuccess
	case "Staging":
		return ColorWarning
	case "Test":
		return ColorInfo
	default:
		return ColorPrimary
	}
}

func mandatoryLabel(mandatory bool) Label {
	if mandatory {
		return Label{Text: "Mandatory", Color: ColorError}
	}
	return Label{Text: "Optional", Color: ColorWarning}
}

func statusLabel(disabled bool) Label {
	if disabled {
		return Label{Text: "Disable", Color: ColorError}
	}
	return Label{Text: "Active", Color: ColorSuccess}
}
