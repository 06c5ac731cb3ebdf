package descriptor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/apidelta/pkg/model"
)

// BaselineFile is the optional file of a descriptor directory that names the baseline
const BaselineFile = "baseline.yaml"

// BaselineDocument is the serialized form of a baseline
type BaselineDocument struct {
	Name       string              `yaml:"name" json:"name"`
	Components []ComponentDocument `yaml:"components,omitempty" json:"components,omitempty"`
}

// ComponentDocument is the serialized form of a component
type ComponentDocument struct {
	ID                    string            `yaml:"id" json:"id"`
	Version               string            `yaml:"version" json:"version"`
	ExecutionEnvironments []string          `yaml:"executionEnvironments,omitempty" json:"executionEnvironments,omitempty"`
	Packages              []PackageDocument `yaml:"packages,omitempty" json:"packages,omitempty"`
	Types                 []TypeDocument    `yaml:"types,omitempty" json:"types,omitempty"`
}

// PackageDocument assigns a visibility to a package name or to a glob pattern
type PackageDocument struct {
	Name       string `yaml:"name,omitempty" json:"name,omitempty"`
	Pattern    string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Visibility string `yaml:"visibility" json:"visibility"`
}

// TypeDocument is the serialized form of a type
type TypeDocument struct {
	Name       string           `yaml:"name" json:"name"`
	Kind       string           `yaml:"kind,omitempty" json:"kind,omitempty"`
	Modifiers  []string         `yaml:"modifiers,omitempty" json:"modifiers,omitempty"`
	Superclass string           `yaml:"superclass,omitempty" json:"superclass,omitempty"`
	Interfaces []string         `yaml:"interfaces,omitempty" json:"interfaces,omitempty"`
	Deprecated bool             `yaml:"deprecated,omitempty" json:"deprecated,omitempty"`
	Fields     []MemberDocument `yaml:"fields,omitempty" json:"fields,omitempty"`
	Methods    []MemberDocument `yaml:"methods,omitempty" json:"methods,omitempty"`
}

// MemberDocument is a field (with a type) or a method (with a descriptor)
type MemberDocument struct {
	Name       string   `yaml:"name" json:"name"`
	Descriptor string   `yaml:"descriptor,omitempty" json:"descriptor,omitempty"`
	Type       string   `yaml:"type,omitempty" json:"type,omitempty"`
	Modifiers  []string `yaml:"modifiers,omitempty" json:"modifiers,omitempty"`
	Value      string   `yaml:"value,omitempty" json:"value,omitempty"`
	Deprecated bool     `yaml:"deprecated,omitempty" json:"deprecated,omitempty"`
	Default    bool     `yaml:"default,omitempty" json:"default,omitempty"`
}

// Parse decodes a baseline document. JSON input is accepted as well.
func Parse(data []byte) (*BaselineDocument, error) {
	var doc BaselineDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse baseline: %w", err)
	}
	return &doc, nil
}

// ParseComponent decodes a single component document
func ParseComponent(data []byte) (*ComponentDocument, error) {
	var doc ComponentDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse component: %w", err)
	}
	return &doc, nil
}

// ParseFile reads and decodes a baseline document
func ParseFile(path string) (*BaselineDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read baseline: %w", err)
	}
	return Parse(data)
}

// Marshal encodes a baseline document as YAML
func Marshal(doc *BaselineDocument) ([]byte, error) {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal baseline: %w", err)
	}
	return data, nil
}

// IsDescriptorFile reports whether name has a descriptor extension
func IsDescriptorFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// LoadDir reads a descriptor directory: one component per *.yaml, *.yml or *.json file and
// an optional baseline.yaml holding the baseline name and further components. Without a
// name the directory name is used.
func LoadDir(dir string) (*BaselineDocument, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor directory: %w", err)
	}

	doc := &BaselineDocument{}
	if _, err := os.Stat(filepath.Join(dir, BaselineFile)); err == nil {
		doc, err = ParseFile(filepath.Join(dir, BaselineFile))
		if err != nil {
			return nil, err
		}
	}
	if doc.Name == "" {
		doc.Name = filepath.Base(filepath.Clean(dir))
	}

	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == BaselineFile || !IsDescriptorFile(entry.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		comp, err := ParseComponent(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		doc.Components = append(doc.Components, *comp)
	}

	sort.Slice(doc.Components, func(i, j int) bool {
		return doc.Components[i].ID < doc.Components[j].ID
	})
	return doc, nil
}

// ValidationError describes one problem of a document
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors collects every problem found in a document
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return strings.Join(msgs, "; ")
}

// ErrInvalidDocument is matched by every validation failure
var ErrInvalidDocument = errors.New("invalid descriptor")

func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidDocument
}

type validator struct {
	errs ValidationErrors
}

func (v *validator) add(field, format string, args ...interface{}) {
	v.errs = append(v.errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validate checks that the document can be turned into a baseline. The returned error is
// a ValidationErrors listing every problem.
func (d *BaselineDocument) Validate() error {
	v := &validator{}
	if strings.TrimSpace(d.Name) == "" {
		v.add("name", "baseline name is required")
	}

	seen := map[string]bool{}
	for i := range d.Components {
		c := &d.Components[i]
		field := fmt.Sprintf("components[%d]", i)
		if c.ID != "" {
			if seen[c.ID] {
				v.add(field+".id", "duplicate component %s", c.ID)
			}
			seen[c.ID] = true
		}
		c.validate(v, field)
	}

	if len(v.errs) > 0 {
		return v.errs
	}
	return nil
}

// Validate checks a single component document
func (c *ComponentDocument) Validate() error {
	v := &validator{}
	c.validate(v, "component")
	if len(v.errs) > 0 {
		return v.errs
	}
	return nil
}

func (c *ComponentDocument) validate(v *validator, field string) {
	if strings.TrimSpace(c.ID) == "" {
		v.add(field+".id", "component id is required")
	}
	if _, err := model.ParseVersion(c.Version); err != nil {
		v.add(field+".version", "%v", err)
	}

	for i, p := range c.Packages {
		pf := fmt.Sprintf("%s.packages[%d]", field, i)
		switch {
		case p.Name == "" && p.Pattern == "":
			v.add(pf, "either name or pattern is required")
		case p.Name != "" && p.Pattern != "":
			v.add(pf, "name and pattern are exclusive")
		case p.Pattern != "" && !doublestar.ValidatePattern(strings.ReplaceAll(p.Pattern, ".", "/")):
			v.add(pf+".pattern", "invalid pattern %q", p.Pattern)
		}
		if _, err := model.ParseVisibility(p.Visibility); err != nil {
			v.add(pf+".visibility", "%v", err)
		}
	}

	types := map[string]bool{}
	for i := range c.Types {
		t := &c.Types[i]
		tf := fmt.Sprintf("%s.types[%d]", field, i)
		if t.Name == "" {
			v.add(tf+".name", "type name is required")
		} else if types[t.Name] {
			v.add(tf+".name", "duplicate type %s", t.Name)
		}
		types[t.Name] = true
		t.validate(v, tf)
	}
}

func (t *TypeDocument) validate(v *validator, field string) {
	if _, err := model.ParseTypeKind(t.Kind); err != nil {
		v.add(field+".kind", "%v", err)
	}
	if _, err := model.ParseModifiers(t.Modifiers); err != nil {
		v.add(field+".modifiers", "%v", err)
	}

	validateMembers(v, field+".fields", t.Fields)
	validateMembers(v, field+".methods", t.Methods)
	for i, m := range t.Methods {
		if m.Descriptor == "" {
			v.add(fmt.Sprintf("%s.methods[%d].descriptor", field, i), "method descriptor is required")
		}
	}
	for i, f := range t.Fields {
		if f.Descriptor != "" {
			v.add(fmt.Sprintf("%s.fields[%d].descriptor", field, i), "fields have a type, not a descriptor")
		}
	}
}

func validateMembers(v *validator, field string, members []MemberDocument) {
	keys := map[string]bool{}
	for i, m := range members {
		mf := fmt.Sprintf("%s[%d]", field, i)
		if m.Name == "" {
			v.add(mf+".name", "member name is required")
		}
		if _, err := model.ParseModifiers(m.Modifiers); err != nil {
			v.add(mf+".modifiers", "%v", err)
		}
		key := m.Name + m.Descriptor
		if keys[key] {
			v.add(mf, "duplicate member %s", key)
		}
		keys[key] = true
	}
}
