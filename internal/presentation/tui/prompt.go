package tui

import (
	"fmt"
	"strings"

	"github.com/muesli/termenv"

	"github.com/aretw0/stepbnb/pkg/domain"
)

var groupColors = map[string]string{
	"children": "#34d399",
	"siblings": "#fbbf24",
	"leaves":   "#a78bfa",
}

// FormatActionSet lists the open node ids by group, coloured for profile.
// termenv.Ascii yields plain text.
func FormatActionSet(set domain.ActionSet, profile termenv.Profile) string {
	var b strings.Builder
	groups := []struct {
		name string
		ids  []domain.NodeID
	}{
		{"children", set.Children},
		{"siblings", set.Siblings},
		{"leaves", set.Leaves},
	}
	for _, g := range groups {
		if len(g.ids) == 0 {
			continue
		}
		ids := make([]string, len(g.ids))
		for i, id := range g.ids {
			ids[i] = fmt.Sprint(id)
		}
		label := profile.String(fmt.Sprintf("%-9s", g.name)).Foreground(profile.Color(groupColors[g.name])).Bold()
		fmt.Fprintf(&b, "  %s %s\n", label, strings.Join(ids, " "))
	}
	return b.String()
}

// Prompt is the input prompt shown while a decision is pending.
func Prompt(profile termenv.Profile) string {
	return profile.String("node [enter=first, n=none, q=quit]> ").Foreground(profile.Color("#22d3ee")).String()
}
