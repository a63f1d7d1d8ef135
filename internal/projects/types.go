// Package projects implements the project namespace manager: the invariants
// tying a project's metadata row to its named property graph and its vector
// collection into a single logical tenant.
package projects

import (
	"regexp"
	"strings"
	"time"
)

// Settings is the open, JSON-serialisable settings bag carried on a project.
type Settings map[string]any

// Project is a tenant: a metadata row plus the derived graph and collection
// handles the rest of the service addresses it by.
type Project struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	GraphName   string    `json:"graph_name"`
	Description string    `json:"description,omitempty"`
	Settings    Settings  `json:"settings"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CollectionName is the per-project vector collection name derived from slug.
func (p Project) CollectionName() string {
	return "project_" + p.Slug + "_chunks"
}

var (
	disallowedChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	whitespaceRuns  = regexp.MustCompile(`[\s_]+`)
	dashRuns        = regexp.MustCompile(`-+`)
)

// Slugify lowercases s, drops characters outside [a-z0-9\s-], collapses
// whitespace/underscore runs into a single hyphen, collapses repeated
// hyphens, and trims leading/trailing hyphens.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = disallowedChars.ReplaceAllString(s, "")
	s = whitespaceRuns.ReplaceAllString(s, "-")
	s = dashRuns.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// GraphName derives a project's private graph handle from its slug:
// project_<slug-with-underscores>.
func GraphName(slug string) string {
	return "project_" + strings.ReplaceAll(slug, "-", "_")
}
