package duplicates

import (
	"path"
	"sort"
	"strings"

	"github.com/temirov/scadrift/internal/scanclient"
)

const (
	identifierDelimiterConstant = ":"
)

// UniqueIdentifier returns the normalized part of a project name after the first delimiter.
// Names without a delimiter have no identifier and never form duplicate groups.
func UniqueIdentifier(projectName string) (string, bool) {
	delimiterIndex := strings.Index(projectName, identifierDelimiterConstant)
	if delimiterIndex < 0 {
		return "", false
	}
	suffix := strings.TrimSpace(projectName[delimiterIndex+len(identifierDelimiterConstant):])
	if len(suffix) == 0 {
		return "", false
	}
	return path.Clean(suffix), true
}

// Group is the set of projects under one target sharing a unique identifier, in discovery order.
type Group struct {
	UniqueIdentifier string
	Projects         []scanclient.Project
}

// GroupProjects groups projects by unique identifier. Groups are ordered by first appearance.
func GroupProjects(projects []scanclient.Project) []Group {
	groupIndex := make(map[string]int)
	var groups []Group
	for _, project := range projects {
		identifier, identified := UniqueIdentifier(project.Name)
		if !identified {
			continue
		}
		index, exists := groupIndex[identifier]
		if !exists {
			groupIndex[identifier] = len(groups)
			groups = append(groups, Group{UniqueIdentifier: identifier, Projects: []scanclient.Project{project}})
			continue
		}
		groups[index].Projects = append(groups[index].Projects, project)
	}
	return groups
}

// newestFirst orders projects by creation time, newest first. Equal timestamps keep discovery order.
func newestFirst(projects []scanclient.Project) []scanclient.Project {
	ordered := append([]scanclient.Project(nil), projects...)
	sort.SliceStable(ordered, func(leftIndex int, rightIndex int) bool {
		return ordered[leftIndex].Created.After(ordered[rightIndex].Created)
	})
	return ordered
}
