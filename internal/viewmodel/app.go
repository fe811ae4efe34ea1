package viewmodel

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/sorenmh/pushdash/internal/models"
)

// BannedAppName marks an app rendered in the error colour
const BannedAppName = "banned"

// CollaboratorView is one collaborator avatar with its permission
type CollaboratorView struct {
	Email       string `json:"email" yaml:"email"`
	Avatar      string `json:"avatar" yaml:"avatar"`
	AvatarColor Color  `json:"avatarColor" yaml:"avatarColor"`
	Permission  Label  `json:"permission" yaml:"permission"`
}

// AppRow is the apps table row
type AppRow struct {
	Name          Label              `json:"name" yaml:"name"`
	Collaborators []CollaboratorView `json:"collaborators" yaml:"collaborators"`
	Deployments   []Label            `json:"deployments" yaml:"deployments"`
	Status        Label              `json:"status" yaml:"status"`
}

// NewAppRow maps an app. Collaborators are ordered by email.
func NewAppRow(app models.App) AppRow {
	banned := app.Name == BannedAppName

	emails := lo.Keys(app.Collaborators)
	slices.Sort(emails)

	return AppRow{
		Name: Label{Text: app.Name, Color: lo.Ternary(banned, ColorError, ColorSuccess)},
		Collaborators: lo.Map(emails, func(email string, _ int) CollaboratorView {
			c := app.Collaborators[email]
			return CollaboratorView{
				Email:       email,
				Avatar:      Initial(email),
				AvatarColor: lo.Ternary(c.IsCurrentAccount, ColorPrimary, ColorSecondary),
				Permission:  Label{Text: c.Permission, Color: lo.Ternary(c.Permission == "Owner", ColorSuccess, ColorInfo)},
			}
		}),
		Deployments: lo.Map(app.Deployments, func(name string, _ int) Label {
			return Label{Text: name, Color: deploymentBadgeColor(name)}
		}),
		Status: lo.Ternary(banned, Label{Text: "Banned", Color: ColorError}, Label{Text: "Active", Color: ColorSuccess}),
	}
}

// NewAppRows maps a list of apps
func NewAppRows(apps []models.App) []AppRow {
	return lo.Map(apps, func(app models.App, _ int) AppRow { return NewAppRow(app) })
}

// Initial returns the upper-cased first character of s
func Initial(s string) string {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(s))
	if r == utf8.RuneError {
		return ""
	}
	return string(unicode.ToUpper(r))
}

func deploymentBadgeColor(name string) Color {
	switch name {
	case "Production":
		return ColorSuccess
	case "Staging":
		return ColorWarning
	default:
		return ColorInfo
	}
}
