package delta

import (
	"encoding/json"
	"fmt"

	"github.com/platinummonkey/apidelta/pkg/model"
)

type jsonDelta struct {
	Kind               string       `json:"kind,omitempty"`
	Flag               string       `json:"flag,omitempty"`
	Element            string       `json:"element,omitempty"`
	Key                string       `json:"key,omitempty"`
	TypeName           string       `json:"type_name,omitempty"`
	ComponentID        string       `json:"component_id,omitempty"`
	Modifiers          []string     `json:"modifiers,omitempty"`
	PreviousModifiers  []string     `json:"previous_modifiers,omitempty"`
	EnclosingModifiers []string     `json:"enclosing_modifiers,omitempty"`
	Arguments          []string     `json:"arguments,omitempty"`
	Message            string       `json:"message,omitempty"`
	Children           []*jsonDelta `json:"children,omitempty"`
}

// MarshalJSON encodes the whole tree. NoDelta encodes as {}.
func (d *Delta) MarshalJSON() ([]byte, error) {
	return json.Marshal(toJSON(d))
}

// UnmarshalJSON decodes a tree written by MarshalJSON
func (d *Delta) UnmarshalJSON(data []byte) error {
	var jd jsonDelta
	if err := json.Unmarshal(data, &jd); err != nil {
		return err
	}
	decoded, err := fromJSON(&jd)
	if err != nil {
		return err
	}
	*d = *decoded
	return nil
}

// Decode reads a tree and maps an empty document to NoDelta
func Decode(data []byte) (*Delta, error) {
	d := &Delta{}
	if err := json.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("decode delta: %w", err)
	}
	if d.IsEmpty() {
		return NoDelta, nil
	}
	return d, nil
}

func toJSON(d *Delta) *jsonDelta {
	if d.IsEmpty() {
		return &jsonDelta{}
	}
	jd := &jsonDelta{
		Kind:               d.kind.String(),
		Element:            d.element.String(),
		Key:                d.key,
		TypeName:           d.typeName,
		ComponentID:        d.componentID,
		Modifiers:          d.modifiers.Names(),
		PreviousModifiers:  d.previousModifiers.Names(),
		EnclosingModifiers: d.enclosingModifiers.Names(),
		Arguments:          d.arguments,
	}
	if d.flag != FlagNone {
		jd.Flag = d.flag.String()
	}
	if d.IsLeaf() {
		jd.Message = Message(d)
	}
	for _, c := range d.children {
		jd.Children = append(jd.Children, toJSON(c))
	}
	return jd
}

func fromJSON(jd *jsonDelta) (*Delta, error) {
	kind, err := ParseKind(jd.Kind)
	if err != nil {
		return nil, err
	}
	flag, err := ParseFlag(jd.Flag)
	if err != nil {
		return nil, err
	}
	element, err := ParseElementType(jd.Element)
	if err != nil {
		return nil, err
	}
	mods, err := model.ParseModifiers(jd.Modifiers)
	if err != nil {
		return nil, err
	}
	prev, err := model.ParseModifiers(jd.PreviousModifiers)
	if err != nil {
		return nil, err
	}
	encl, err := model.ParseModifiers(jd.EnclosingModifiers)
	if err != nil {
		return nil, err
	}

	d := New(Params{
		Kind:               kind,
		Flag:               flag,
		Element:            element,
		Key:                jd.Key,
		TypeName:           jd.TypeName,
		ComponentID:        jd.ComponentID,
		Modifiers:          mods,
		PreviousModifiers:  prev,
		EnclosingModifiers: encl,
		Arguments:          jd.Arguments,
	})
	for _, jc := range jd.Children {
		c, err := fromJSON(jc)
		if err != nil {
			return nil, err
		}
		d.children = append(d.children, c)
	}
	return d, nil
}
