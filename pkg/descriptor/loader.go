package descriptor

import (
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"gopkg.in/yaml.v3"
	"lukechampine.com/blake3"

	"github.com/platinummonkey/apidelta/pkg/model"
)

// DefaultCacheSize is the number of converted types a Loader keeps
const DefaultCacheSize = 4096

// Loader turns documents into baselines. Types are converted on first lookup and kept in
// an LRU shared by every baseline the loader built, keyed by the content of the type
// document, so identical types in two baselines are converted once.
type Loader struct {
	cache *lru.Cache[string, *model.TypeRoot]
}

// NewLoader creates a loader caching up to size converted types
func NewLoader(size int) (*Loader, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *model.TypeRoot](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create type cache: %w", err)
	}
	return &Loader{cache: cache}, nil
}

// CachedTypes returns the number of converted types currently cached
func (l *Loader) CachedTypes() int {
	return l.cache.Len()
}

// Build validates doc and returns the baseline it describes. The baseline keeps referring
// to doc, which must not be modified afterwards.
func (l *Loader) Build(doc *BaselineDocument) (*model.Baseline, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	comps := make([]*model.Component, 0, len(doc.Components))
	for i := range doc.Components {
		comp, err := l.component(&doc.Components[i])
		if err != nil {
			return nil, err
		}
		comps = append(comps, comp)
	}
	return model.NewBaseline(doc.Name, comps...)
}

// BuildComponent validates doc and returns the component it describes
func (l *Loader) BuildComponent(doc *ComponentDocument) (*model.Component, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return l.component(doc)
}

func (l *Loader) component(doc *ComponentDocument) (*model.Component, error) {
	version, err := model.ParseVersion(doc.Version)
	if err != nil {
		return nil, err
	}

	rules := make([]model.PackageRule, 0, len(doc.Packages))
	for _, p := range doc.Packages {
		vis, err := model.ParseVisibility(p.Visibility)
		if err != nil {
			return nil, err
		}
		pattern := p.Name
		if pattern == "" {
			pattern = p.Pattern
		}
		rules = append(rules, model.PackageRule{Pattern: pattern, Visibility: vis})
	}

	return &model.Component{
		ID:                    doc.ID,
		Version:               version,
		ExecutionEnvironments: append([]string(nil), doc.ExecutionEnvironments...),
		Packages:              rules,
		Types:                 newLazyTypes(l, doc.Types),
	}, nil
}

// lazyTypes is a TypeContainer over type documents
type lazyTypes struct {
	loader *Loader
	docs   map[string]*TypeDocument
	names  []string

	mu   sync.Mutex
	keys map[string]string
}

func newLazyTypes(l *Loader, docs []TypeDocument) *lazyTypes {
	t := &lazyTypes{
		loader: l,
		docs:   make(map[string]*TypeDocument, len(docs)),
		keys:   make(map[string]string, len(docs)),
	}
	for i := range docs {
		t.docs[docs[i].Name] = &docs[i]
		t.names = append(t.names, docs[i].Name)
	}
	sort.Strings(t.names)
	return t
}

func (t *lazyTypes) TypeNames() ([]string, error) {
	return append([]string(nil), t.names...), nil
}

func (t *lazyTypes) FindTypeRoot(name string) (*model.TypeRoot, error) {
	doc, ok := t.docs[name]
	if !ok {
		return nil, nil
	}

	key, err := t.key(name, doc)
	if err != nil {
		return nil, err
	}
	if root, ok := t.loader.cache.Get(key); ok {
		return root, nil
	}

	root, err := TypeFromDocument(doc)
	if err != nil {
		return nil, err
	}
	t.loader.cache.Add(key, root)
	return root, nil
}

// key is the content hash of a type document, computed once per container
func (t *lazyTypes) key(name string, doc *TypeDocument) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if k, ok := t.keys[name]; ok {
		return k, nil
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to hash type %s: %w", name, err)
	}
	sum := blake3.Sum256(data)
	k := hex.EncodeToString(sum[:])
	t.keys[name] = k
	return k, nil
}

// TypeFromDocument converts a type document
func TypeFromDocument(doc *TypeDocument) (*model.TypeRoot, error) {
	kind, err := model.ParseTypeKind(doc.Kind)
	if err != nil {
		return nil, fmt.Errorf("type %s: %w", doc.Name, err)
	}
	mods, err := model.ParseModifiers(doc.Modifiers)
	if err != nil {
		return nil, fmt.Errorf("type %s: %w", doc.Name, err)
	}
	fields, err := membersFromDocuments(doc.Name, doc.Fields)
	if err != nil {
		return nil, err
	}
	methods, err := membersFromDocuments(doc.Name, doc.Methods)
	if err != nil {
		return nil, err
	}

	return &model.TypeRoot{
		Name:       doc.Name,
		Kind:       kind,
		Modifiers:  mods,
		Superclass: doc.Superclass,
		Interfaces: append([]string(nil), doc.Interfaces...),
		Fields:     fields,
		Methods:    methods,
		Deprecated: doc.Deprecated,
	}, nil
}

func membersFromDocuments(typeName string, docs []MemberDocument) ([]model.Member, error) {
	out := make([]model.Member, 0, len(docs))
	for _, d := range docs {
		mods, err := model.ParseModifiers(d.Modifiers)
		if err != nil {
			return nil, fmt.Errorf("type %s member %s: %w", typeName, d.Name, err)
		}
		out = append(out, model.Member{
			Name:       d.Name,
			Descriptor: d.Descriptor,
			Type:       d.Type,
			Modifiers:  mods,
			Value:      d.Value,
			Deprecated: d.Deprecated,
			HasDefault: d.Default,
		})
	}
	return out, nil
}

// FromTypeRoot converts a type back into its document form
func FromTypeRoot(t *model.TypeRoot) TypeDocument {
	doc := TypeDocument{
		Name:       t.Name,
		Kind:       t.Kind.String(),
		Modifiers:  t.Modifiers.Names(),
		Superclass: t.Superclass,
		Interfaces: append([]string(nil), t.Interfaces...),
		Deprecated: t.Deprecated,
	}
	for _, f := range t.Fields {
		doc.Fields = append(doc.Fields, fromMember(f))
	}
	for _, m := range t.Methods {
		doc.Methods = append(doc.Methods, fromMember(m))
	}
	return doc
}

func fromMember(m model.Member) MemberDocument {
	return MemberDocument{
		Name:       m.Name,
		Descriptor: m.Descriptor,
		Type:       m.Type,
		Modifiers:  m.Modifiers.Names(),
		Value:      m.Value,
		Deprecated: m.Deprecated,
		Default:    m.HasDefault,
	}
}
