// Package access evaluates the owner/visibility model of directories and
// files. It holds no state and is safe for concurrent use.
package access

import "github.com/dmitrijs2005/doctree/internal/server/models"

// Allow decides whether p may perform priv on an object with the given
// visibility flag and ordered owner list.
//
// Admins are always allowed. READ on an open object is always allowed.
// Otherwise the first grant matching p decides: PRIVATE matches the
// principal name, GROUP matches one of the principal's groups, PUBLIC
// matches everyone. Without a match the answer is no.
func Allow(openVisible bool, owners []models.Grant, p models.Principal, priv models.Privilege) bool {
	if p.Admin {
		return true
	}
	if priv == models.Read && openVisible {
		return true
	}
	for _, g := range owners {
		if matches(g, p) {
			return g.Mask&priv != 0
		}
	}
	return false
}

func matches(g models.Grant, p models.Principal) bool {
	switch g.Kind {
	case models.GrantPrivate:
		return g.Principal == p.Name
	case models.GrantGroup:
		return p.InGroup(g.Principal)
	case models.GrantPublic:
		return true
	}
	return false
}

func Directory(d *models.Directory, p models.Principal, priv models.Privilege) bool {
	return Allow(d.PublicVisible, d.Owners, p, priv)
}

func File(f *models.FileRecord, p models.Principal, priv models.Privilege) bool {
	return Allow(f.OpenVisible, f.Owners, p, priv)
}

// VisibleDirectories keeps the directories p may read, preserving order.
func VisibleDirectories(dirs []*models.Directory, p models.Principal) []*models.Directory {
	out := make([]*models.Directory, 0, len(dirs))
	for _, d := range dirs {
		if Directory(d, p, models.Read) {
			out = append(out, d)
		}
	}
	return out
}

// VisibleFiles keeps the files p may read, preserving order.
func VisibleFiles(files []*models.FileRecord, p models.Principal) []*models.FileRecord {
	out := make([]*models.FileRecord, 0, len(files))
	for _, f := range files {
		if File(f, p, models.Read) {
			out = append(out, f)
		}
	}
	return out
}
