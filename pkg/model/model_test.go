package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    Version
		wantErr bool
	}{
		{"1.0.0", Version{1, 0, 0, ""}, false},
		{"2", Version{2, 0, 0, ""}, false},
		{"3.4", Version{3, 4, 0, ""}, false},
		{"1.2.3.qualifier", Version{1, 2, 3, "qualifier"}, false},
		{"", Version{}, false},
		{"a.b", Version{}, true},
		{"1.-1", Version{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVersion(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVersion_CompareAndString(t *testing.T) {
	assert.Equal(t, "1.2.3", MustParseVersion("1.2.3").String())
	assert.Equal(t, "1.2.3.v2024", MustParseVersion("1.2.3.v2024").String())
	assert.Equal(t, "1.0.0", MustParseVersion("1").String())

	assert.Equal(t, -1, MustParseVersion("1.0.0").Compare(MustParseVersion("2.0.0")))
	assert.Equal(t, 1, MustParseVersion("1.3.0").Compare(MustParseVersion("1.2.9")))
	assert.Equal(t, 0, MustParseVersion("1.2").Compare(MustParseVersion("1.2.0")))
	assert.Equal(t, -1, MustParseVersion("1.2.0.a").Compare(MustParseVersion("1.2.0.b")))
}

func TestParseVisibility(t *testing.T) {
	v, err := ParseVisibility("api")
	require.NoError(t, err)
	assert.Equal(t, VisibilityAPI, v)

	v, err = ParseVisibility("ALL")
	require.NoError(t, err)
	assert.Equal(t, VisibilityAll, v)

	v, err = ParseVisibility("api, spi")
	require.NoError(t, err)
	assert.Equal(t, VisibilityAPI|VisibilitySPI, v)
	assert.Equal(t, "api,spi", v.String())

	_, err = ParseVisibility("public")
	assert.Error(t, err)
	_, err = ParseVisibility("")
	assert.Error(t, err)
}

func TestModifiers(t *testing.T) {
	m, err := ParseModifiers([]string{"public", "static", "final"})
	require.NoError(t, err)
	assert.True(t, m.IsStatic())
	assert.True(t, m.IsFinal())
	assert.False(t, m.IsAbstract())
	assert.Equal(t, AccessPublic, m.Access())
	assert.Equal(t, "public static final", m.String())

	assert.Equal(t, AccessPackage, Modifiers(0).Access())
	assert.Equal(t, AccessProtected, ModProtected.Access())

	_, err = ParseModifiers([]string{"sealed"})
	assert.Error(t, err)
}

func TestTypeRoot_Accessors(t *testing.T) {
	tr := &TypeRoot{
		Name: "p.q.X",
		Fields: []Member{
			{Name: "f", Type: "int", Modifiers: ModPublic},
		},
		Methods: []Member{
			{Name: "m", Descriptor: "()V", Modifiers: ModPublic},
			{Name: ConstructorName, Descriptor: "()V", Modifiers: ModPublic},
		},
	}

	assert.Equal(t, "p.q", tr.Package())
	assert.Equal(t, "X", tr.SimpleName())
	require.NotNil(t, tr.Field("f"))
	assert.Nil(t, tr.Field("g"))
	require.NotNil(t, tr.Method("m()V"))
	assert.True(t, tr.Method("<init>()V").IsConstructor())
	assert.Nil(t, tr.Method("m(I)V"))
	assert.Equal(t, "", (&TypeRoot{Name: "X"}).Package())
}

func TestTypeRoot_Fingerprint(t *testing.T) {
	a := &TypeRoot{
		Name:       "p.X",
		Interfaces: []string{"p.I", "p.J"},
		Fields:     []Member{{Name: "a"}, {Name: "b"}},
	}
	b := &TypeRoot{
		Name:       "p.X",
		Interfaces: []string{"p.J", "p.I"},
		Fields:     []Member{{Name: "b"}, {Name: "a"}},
	}
	c := &TypeRoot{
		Name:   "p.X",
		Fields: []Member{{Name: "a", Modifiers: ModFinal}},
	}

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.Len(t, a.Fingerprint(), 64)
}

func TestTypeMap(t *testing.T) {
	m, err := NewTypeMap(&TypeRoot{Name: "p.B"}, &TypeRoot{Name: "p.A"}, nil)
	require.NoError(t, err)

	names, err := m.TypeNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"p.A", "p.B"}, names)

	found, err := m.FindTypeRoot("p.A")
	require.NoError(t, err)
	require.NotNil(t, found)

	missing, err := m.FindTypeRoot("p.Z")
	assert.NoError(t, err)
	assert.Nil(t, missing)

	_, err = NewTypeMap(&TypeRoot{Name: "p.A"}, &TypeRoot{Name: "p.A"})
	assert.Error(t, err)
}

func TestComponent_TypeVisibility(t *testing.T) {
	c := &Component{
		ID: "a.b.c",
		Packages: []PackageRule{
			{Pattern: "org.example.**", Visibility: VisibilitySPI},
			{Pattern: "org.example.api", Visibility: VisibilityAPI},
			{Pattern: "p", Visibility: VisibilityAPI},
		},
	}

	tests := []struct {
		typeName string
		want     Visibility
	}{
		{"p.X", VisibilityAPI},
		{"org.example.api.Service", VisibilityAPI},
		{"org.example.spi.Hook", VisibilitySPI},
		{"org.example.spi.deep.Hook", VisibilitySPI},
		{"p.internal.X", VisibilityPrivate},
		{"X", VisibilityPrivate},
	}
	for _, tt := range tests {
		t.Run(tt.typeName, func(t *testing.T) {
			assert.Equal(t, tt.want, c.TypeVisibility(tt.typeName))
		})
	}

	assert.True(t, c.IsVisible("p.X", VisibilityAPI))
	assert.False(t, c.IsVisible("p.internal.X", VisibilityAPI))
	assert.True(t, c.IsVisible("p.internal.X", VisibilityAll))
}

func TestComponent_NilContainer(t *testing.T) {
	c := &Component{ID: "empty"}
	names, err := c.TypeNames()
	require.NoError(t, err)
	assert.Empty(t, names)

	tr, err := c.FindTypeRoot("p.X")
	require.NoError(t, err)
	assert.Nil(t, tr)
}

type failingContainer struct{}

func (failingContainer) TypeNames() ([]string, error) { return nil, errors.New("boom") }
func (failingContainer) FindTypeRoot(string) (*TypeRoot, error) {
	return nil, errors.New("boom")
}

func TestComponent_ContainerErrorsAreWrapped(t *testing.T) {
	c := &Component{ID: "broken", Types: failingContainer{}}
	_, err := c.FindTypeRoot("p.X")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")

	_, err = c.Fingerprint()
	assert.Error(t, err)
}

func TestNewBaseline(t *testing.T) {
	b, err := NewBaseline("base",
		&Component{ID: "z", Types: MustTypeMap(&TypeRoot{Name: "z.Z"})},
		&Component{ID: "a", Types: MustTypeMap(&TypeRoot{Name: "a.A"})},
	)
	require.NoError(t, err)

	assert.Equal(t, "base", b.Name())
	assert.Equal(t, []string{"a", "z"}, b.ComponentIDs())
	assert.Equal(t, "a", b.Components()[0].ID)
	assert.NotNil(t, b.Component("z"))
	assert.Nil(t, b.Component("missing"))

	tr, owner, err := b.FindType("z.Z")
	require.NoError(t, err)
	require.NotNil(t, tr)
	assert.Equal(t, "z", owner.ID)

	tr, owner, err = b.FindType("q.Q")
	require.NoError(t, err)
	assert.Nil(t, tr)
	assert.Nil(t, owner)

	_, err = NewBaseline("dup", &Component{ID: "a"}, &Component{ID: "a"})
	assert.ErrorIs(t, err, ErrDuplicateComponent)

	_, err = NewBaseline("noid", &Component{})
	assert.Error(t, err)
}

func TestBaseline_Fingerprint(t *testing.T) {
	build := func(name, version string) *Baseline {
		return MustBaseline(name, &Component{
			ID:                    "a",
			Version:               MustParseVersion(version),
			ExecutionEnvironments: []string{"J2SE-1.5"},
			Types:                 MustTypeMap(&TypeRoot{Name: "p.X"}),
		})
	}

	fp1, err := build("one", "1.0.0").Fingerprint()
	require.NoError(t, err)
	fp2, err := build("two", "1.0.0").Fingerprint()
	require.NoError(t, err)
	fp3, err := build("one", "1.1.0").Fingerprint()
	require.NoError(t, err)

	assert.Equal(t, fp1, fp2)
	assert.NotEqual(t, fp1, fp3)
}

func TestComponent_Exposes(t *testing.T) {
	c := &Component{ID: "a", Packages: []PackageRule{{Pattern: "a.api", Visibility: VisibilityAPI}}}
	public := &TypeRoot{Name: "a.api.X", Modifiers: ModPublic}
	protected := &TypeRoot{Name: "a.api.Y", Modifiers: ModProtected}
	hidden := &TypeRoot{Name: "a.api.Z"}
	internal := &TypeRoot{Name: "a.impl.W", Modifiers: ModPublic}

	assert.True(t, c.Exposes(public, VisibilityAPI))
	assert.True(t, c.Exposes(protected, VisibilityAPI))
	assert.False(t, c.Exposes(hidden, VisibilityAPI))
	assert.True(t, c.Exposes(hidden, VisibilityAPI|VisibilityPrivate))
	assert.False(t, c.Exposes(internal, VisibilityAPI))
	assert.True(t, c.Exposes(internal, VisibilityAll))
}
