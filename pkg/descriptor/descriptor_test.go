package descriptor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/apidelta/pkg/model"
)

const sampleBaseline = `
name: sample
components:
  - id: a.b.c
    version: 1.2.3
    executionEnvironments: [J2SE-1.5]
    packages:
      - name: a.b.c
        visibility: api
      - pattern: a.b.c.internal.**
        visibility: private
    types:
      - name: a.b.c.Widget
        modifiers: [public, final]
        superclass: a.b.c.Base
        fields:
          - name: SIZE
            type: I
            modifiers: [public, static, final]
            value: "3"
        methods:
          - name: run
            descriptor: ()V
            modifiers: [public]
            deprecated: true
      - name: a.b.c.Marker
        kind: annotation
        modifiers: [public]
        methods:
          - name: value
            descriptor: ()I
            modifiers: [public, abstract]
            default: true
            value: "1"
`

func TestParseAndBuild(t *testing.T) {
	doc, err := Parse([]byte(sampleBaseline))
	require.NoError(t, err)
	require.NoError(t, doc.Validate())
	assert.Equal(t, "sample", doc.Name)
	require.Len(t, doc.Components, 1)

	loader, err := NewLoader(16)
	require.NoError(t, err)
	b, err := loader.Build(doc)
	require.NoError(t, err)

	comp := b.Component("a.b.c")
	require.NotNil(t, comp)
	assert.Equal(t, model.Version{Major: 1, Minor: 2, Micro: 3}, comp.Version)
	assert.Equal(t, []string{"J2SE-1.5"}, comp.ExecutionEnvironments)
	assert.Equal(t, model.VisibilityAPI, comp.TypeVisibility("a.b.c.Widget"))
	assert.Equal(t, model.VisibilityPrivate, comp.TypeVisibility("a.b.c.internal.deep.Thing"))

	names, err := comp.TypeNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.b.c.Marker", "a.b.c.Widget"}, names)
	assert.Equal(t, 0, loader.CachedTypes())

	widget, err := comp.FindTypeRoot("a.b.c.Widget")
	require.NoError(t, err)
	require.NotNil(t, widget)
	assert.Equal(t, model.KindClass, widget.Kind)
	assert.True(t, widget.Modifiers.IsFinal())
	assert.Equal(t, "a.b.c.Base", widget.Superclass)
	require.NotNil(t, widget.Field("SIZE"))
	assert.Equal(t, "3", widget.Field("SIZE").Value)
	require.NotNil(t, widget.Method("run()V"))
	assert.True(t, widget.Method("run()V").Deprecated)
	assert.Equal(t, 1, loader.CachedTypes())

	marker, err := comp.FindTypeRoot("a.b.c.Marker")
	require.NoError(t, err)
	assert.Equal(t, model.KindAnnotation, marker.Kind)
	assert.True(t, marker.Method("value()I").HasDefault)

	missing, err := comp.FindTypeRoot("a.b.c.Nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestLoader_SharesConvertedTypes(t *testing.T) {
	loader, err := NewLoader(0)
	require.NoError(t, err)

	build := func(name string) *model.Baseline {
		doc, err := Parse([]byte(sampleBaseline))
		require.NoError(t, err)
		doc.Name = name
		b, err := loader.Build(doc)
		require.NoError(t, err)
		return b
	}
	first, second := build("r1"), build("r2")

	t1, _, err := first.FindType("a.b.c.Widget")
	require.NoError(t, err)
	t2, _, err := second.FindType("a.b.c.Widget")
	require.NoError(t, err)
	assert.Same(t, t1, t2)
	assert.Equal(t, 1, loader.CachedTypes())
}

func TestParse_JSON(t *testing.T) {
	doc, err := Parse([]byte(`{"name": "json", "components": [{"id": "x", "version": "1.0"}]}`))
	require.NoError(t, err)
	require.NoError(t, doc.Validate())
	assert.Equal(t, "x", doc.Components[0].ID)

	_, err = Parse([]byte("name: [unterminated"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		doc    BaselineDocument
		fields []string
	}{
		{
			name:   "missing name",
			doc:    BaselineDocument{},
			fields: []string{"name"},
		},
		{
			name: "duplicate component",
			doc: BaselineDocument{Name: "r", Components: []ComponentDocument{
				{ID: "a", Version: "1.0.0"},
				{ID: "a", Version: "1.0.0"},
			}},
			fields: []string{"components[1].id"},
		},
		{
			name: "bad version and visibility",
			doc: BaselineDocument{Name: "r", Components: []ComponentDocument{{
				ID:       "a",
				Version:  "one.two",
				Packages: []PackageDocument{{Name: "a", Visibility: "public"}},
			}}},
			fields: []string{"components[0].version", "components[0].packages[0].visibility"},
		},
		{
			name: "package without name",
			doc: BaselineDocument{Name: "r", Components: []ComponentDocument{{
				ID:       "a",
				Packages: []PackageDocument{{Visibility: "api"}, {Name: "a", Pattern: "a.**", Visibility: "api"}},
			}}},
			fields: []string{"components[0].packages[0]", "components[0].packages[1]"},
		},
		{
			name: "bad types",
			doc: BaselineDocument{Name: "r", Components: []ComponentDocument{{
				ID: "a",
				Types: []TypeDocument{
					{Name: "a.X", Kind: "struct"},
					{Name: "a.X", Modifiers: []string{"sealed"}},
					{Name: "a.Y", Methods: []MemberDocument{{Name: "run"}}},
				},
			}}},
			fields: []string{
				"components[0].types[0].kind",
				"components[0].types[1].name",
				"components[0].types[1].modifiers",
				"components[0].types[2].methods[0].descriptor",
			},
		},
		{
			name: "duplicate members",
			doc: BaselineDocument{Name: "r", Components: []ComponentDocument{{
				ID: "a",
				Types: []TypeDocument{{
					Name:   "a.X",
					Fields: []MemberDocument{{Name: "f", Type: "I"}, {Name: "f", Type: "J"}},
				}},
			}}},
			fields: []string{"components[0].types[0].fields[1]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.doc.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidDocument))

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			var got []string
			for _, v := range verrs {
				got = append(got, v.Field)
			}
			assert.ElementsMatch(t, tt.fields, got)
		})
	}
}

func TestLoader_BuildRejectsInvalid(t *testing.T) {
	loader, err := NewLoader(4)
	require.NoError(t, err)
	_, err = loader.Build(&BaselineDocument{Name: "r", Components: []ComponentDocument{{}}})
	assert.ErrorIs(t, err, ErrInvalidDocument)

	_, err = loader.BuildComponent(&ComponentDocument{ID: "a", Version: "x"})
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestLoadDir(t *testing.T) {
	doc, err := LoadDir(filepath.Join("testdata", "r1"))
	require.NoError(t, err)
	assert.Equal(t, "release-1", doc.Name)
	require.Len(t, doc.Components, 2)
	assert.Equal(t, "org.example.core", doc.Components[0].ID)
	assert.Equal(t, "org.example.util", doc.Components[1].ID)
	require.NoError(t, doc.Validate())

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.yml"), []byte("id: one\nversion: 1.0.0\n"), 0644))
	doc, err = LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(dir), doc.Name)
	assert.Len(t, doc.Components, 1)

	_, err = LoadDir(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestMarshalRoundTrip(t *testing.T) {
	doc, err := LoadDir(filepath.Join("testdata", "r2"))
	require.NoError(t, err)

	data, err := Marshal(doc)
	require.NoError(t, err)
	again, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, doc, again)
}

func TestFromTypeRoot(t *testing.T) {
	doc, err := Parse([]byte(sampleBaseline))
	require.NoError(t, err)
	td := doc.Components[0].Types[0]

	root, err := TypeFromDocument(&td)
	require.NoError(t, err)
	back := FromTypeRoot(root)
	again, err := TypeFromDocument(&back)
	require.NoError(t, err)
	assert.Equal(t, root.Fingerprint(), again.Fingerprint())
}
