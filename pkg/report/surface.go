package report

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/platinummonkey/apidelta/pkg/model"
)

// SurfaceListing lists the types and members of b that are visible under mask, one
// declaration per line, sorted by component and type.
func SurfaceListing(b *model.Baseline, mask model.Visibility) ([]string, error) {
	if mask == 0 {
		mask = model.VisibilityAll
	}
	var lines []string
	for _, comp := range b.Components() {
		lines = append(lines, fmt.Sprintf("component %s %s", comp.ID, comp.Version))
		for _, ee := range comp.ExecutionEnvironments {
			lines = append(lines, "  requires "+ee)
		}

		names, err := comp.TypeNames()
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			t, err := comp.FindTypeRoot(name)
			if err != nil {
				return nil, err
			}
			if t == nil || !comp.Exposes(t, mask) {
				continue
			}
			lines = append(lines, typeLines(t, mask)...)
		}
	}
	return lines, nil
}

func typeLines(t *model.TypeRoot, mask model.Visibility) []string {
	header := []string{"  " + declaration(t.Modifiers, t.Kind.String()+" "+t.Name)}
	if t.Superclass != "" {
		header[0] += " extends " + t.Superclass
	}
	if len(t.Interfaces) > 0 {
		header[0] += " implements " + strings.Join(t.Interfaces, ", ")
	}
	if t.Deprecated {
		header[0] += " @deprecated"
	}

	lines := header
	for _, f := range t.Fields {
		if !mask.Includes(model.VisibilityPrivate) && !f.Modifiers.IsExposed() {
			continue
		}
		line := declaration(f.Modifiers, f.Type+" "+f.Name)
		if f.Value != "" {
			line += " = " + f.Value
		}
		lines = append(lines, "    "+line)
	}
	for _, m := range t.Methods {
		if !mask.Includes(model.VisibilityPrivate) && !m.Modifiers.IsExposed() {
			continue
		}
		line := declaration(m.Modifiers, m.Key())
		if m.HasDefault {
			line += " default " + m.Value
		}
		if m.Deprecated {
			line += " @deprecated"
		}
		lines = append(lines, "    "+line)
	}
	return lines
}

func declaration(mods model.Modifiers, rest string) string {
	if s := mods.String(); s != "" {
		return s + " " + rest
	}
	return rest
}

// SurfaceDiff returns a unified diff between the visible surfaces of two baselines. It is
// empty when the surfaces are equal.
func SurfaceDiff(before, after *model.Baseline, mask model.Visibility) (string, error) {
	a, err := SurfaceListing(before, mask)
	if err != nil {
		return "", err
	}
	b, err := SurfaceListing(after, mask)
	if err != nil {
		return "", err
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(strings.Join(a, "\n")),
		B:        difflib.SplitLines(strings.Join(b, "\n")),
		FromFile: before.Name(),
		ToFile:   after.Name(),
		Context:  2,
	})
}
