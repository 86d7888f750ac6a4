// Package schema holds the registry of models, fields and relations parsed
// from the schema file.
package schema

import (
	_ "embed"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/spf13/afero"

	"github.com/satishbabariya/commerce-client/runtime/types"
)

//go:embed schema.prisma
var embedded string

// Source returns the embedded schema text.
func Source() string {
	return embedded
}

// ScalarType is the type of a scalar field.
type ScalarType string

const (
	Int      ScalarType = "Int"
	String   ScalarType = "String"
	Boolean  ScalarType = "Boolean"
	Decimal  ScalarType = "Decimal"
	DateTime ScalarType = "DateTime"
	Float    ScalarType = "Float"
)

// Numeric reports whether the type supports _avg, _sum and arithmetic updates.
func (t ScalarType) Numeric() bool {
	return t == Int || t == Decimal || t == Float
}

func scalarType(name string) (ScalarType, bool) {
	switch t := ScalarType(name); t {
	case Int, String, Boolean, Decimal, DateTime, Float:
		return t, true
	}
	return "", false
}

// ReferentialAction is what happens to dependent rows when the referenced row is deleted.
type ReferentialAction string

const (
	Restrict ReferentialAction = "Restrict"
	Cascade  ReferentialAction = "Cascade"
	NoAction ReferentialAction = "NoAction"
)

// DefaultKind distinguishes generated defaults from literal ones.
type DefaultKind int

const (
	DefaultLiteral DefaultKind = iota
	DefaultAutoincrement
	DefaultNow
)

// Default is a field's @default.
type Default struct {
	Kind  DefaultKind
	Value any
}

// Field is a scalar column.
type Field struct {
	Name     string
	Type     ScalarType
	Nullable bool
	ID       bool
	Unique   bool
	Default  *Default
	// ForeignKey is set when a to-one relation on the same model stores its
	// reference in this field.
	ForeignKey bool
}

// Relation is a foreign-key backed association. For a to-one relation
// LocalField is the foreign key on this model and ForeignField the target's
// id; for a to-many relation LocalField is this model's id and ForeignField
// the foreign key on the target.
type Relation struct {
	Name         string
	Model        string
	Target       string
	ToMany       bool
	Optional     bool
	LocalField   string
	ForeignField string
	OnDelete     ReferentialAction
	// Inverse is the name of the opposite relation field on Target.
	Inverse string
}

// Model is one entity of the schema.
type Model struct {
	Name       string
	Fields     []*Field
	Relations  []*Relation
	UniqueKeys [][]string

	fields    map[string]*Field
	relations map[string]*Relation
}

// Field looks up a scalar field.
func (m *Model) Field(name string) (*Field, bool) {
	f, ok := m.fields[name]
	return f, ok
}

// Relation looks up a relation field.
func (m *Model) Relation(name string) (*Relation, bool) {
	r, ok := m.relations[name]
	return r, ok
}

// PrimaryKey returns the @id field.
func (m *Model) PrimaryKey() *Field {
	for _, f := range m.Fields {
		if f.ID {
			return f
		}
	}
	return nil
}

// ScalarNames returns the scalar field names in declaration order.
func (m *Model) ScalarNames() []string {
	names := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		names[i] = f.Name
	}
	return names
}

// Datasource is the datasource block.
type Datasource struct {
	Name     string
	Provider string
	URL      string
	URLEnv   string
}

// Registry is the immutable set of models. It is safe for concurrent use.
type Registry struct {
	Datasource Datasource
	models     map[string]*Model
	order      []string
}

// DescribeModel returns the named model or ErrUnknownModel.
func (r *Registry) DescribeModel(name string) (*Model, error) {
	m, ok := r.models[name]
	if !ok {
		return nil, types.NewError(types.ErrUnknownModel, "model %q is not registered", name).WithModel(name)
	}
	return m, nil
}

// Models returns all models in declaration order.
func (r *Registry) Models() []*Model {
	out := make([]*Model, len(r.order))
	for i, name := range r.order {
		out[i] = r.models[name]
	}
	return out
}

// ModelNames returns the sorted model names.
func (r *Registry) ModelNames() []string {
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Embedded returns the registry built from the embedded schema. The
// embedded schema is part of the build, so a parse failure panics.
func Embedded() *Registry {
	defaultOnce.Do(func() {
		reg, err := Parse("schema.prisma", embedded)
		if err != nil {
			panic(fmt.Sprintf("schema: embedded schema is invalid: %v", err))
		}
		defaultRegistry = reg
	})
	return defaultRegistry
}

// Load parses the schema file at path.
func Load(fs afero.Fs, path string) (*Registry, error) {
	src, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	return Parse(path, string(src))
}

// Parse parses and validates schema source.
func Parse(filename, src string) (*Registry, error) {
	raw, err := parseString(filename, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	return build(raw)
}

func build(raw *file) (*Registry, error) {
	reg := &Registry{models: make(map[string]*Model)}
	decls := make(map[string]*modelBlock)

	for _, b := range raw.Blocks {
		switch {
		case b.Datasource != nil:
			reg.Datasource = datasource(b.Datasource)
		case b.Model != nil:
			if _, dup := decls[b.Model.Name]; dup {
				return nil, fmt.Errorf("%s: model %s is defined more than once", b.Model.Pos, b.Model.Name)
			}
			decls[b.Model.Name] = b.Model
			reg.order = append(reg.order, b.Model.Name)
		}
	}

	for _, name := range reg.order {
		m, err := buildModel(decls[name], decls)
		if err != nil {
			return nil, err
		}
		reg.models[name] = m
	}

	if err := linkRelations(reg, decls); err != nil {
		return nil, err
	}
	return reg, nil
}

func datasource(cb *configBlock) Datasource {
	ds := Datasource{Name: cb.Name}
	for _, p := range cb.Properties {
		switch p.Name {
		case "provider":
			if p.Value.String != nil {
				ds.Provider = *p.Value.String
			}
		case "url":
			switch {
			case p.Value.String != nil:
				ds.URL = *p.Value.String
			case p.Value.Call != nil && p.Value.Call.Name == "env":
				if v := positional(p.Value.Call.Arguments); v != nil && v.String != nil {
					ds.URLEnv = *v.String
				}
			}
		}
	}
	return ds
}

func buildModel(decl *modelBlock, decls map[string]*modelBlock) (*Model, error) {
	m := &Model{
		Name:      decl.Name,
		fields:    make(map[string]*Field),
		relations: make(map[string]*Relation),
	}

	for _, fd := range decl.Fields {
		if _, dup := m.fields[fd.Name]; dup {
			return nil, fmt.Errorf("%s: field %s.%s is defined more than once", fd.Pos, m.Name, fd.Name)
		}
		if _, dup := m.relations[fd.Name]; dup {
			return nil, fmt.Errorf("%s: field %s.%s is defined more than once", fd.Pos, m.Name, fd.Name)
		}

		if st, ok := scalarType(fd.Type); ok {
			f, err := scalarField(m.Name, fd, st)
			if err != nil {
				return nil, err
			}
			m.Fields = append(m.Fields, f)
			m.fields[f.Name] = f
			continue
		}

		if _, ok := decls[fd.Type]; !ok {
			return nil, fmt.Errorf("%s: field %s.%s has unknown type %s", fd.Pos, m.Name, fd.Name, fd.Type)
		}
		rel := &Relation{
			Name:     fd.Name,
			Model:    m.Name,
			Target:   fd.Type,
			ToMany:   fd.List,
			Optional: fd.Optional,
			OnDelete: Restrict,
		}
		for _, attr := range fd.Attributes {
			if attr.Namespace != "" {
				continue
			}
			if attr.Name != "relation" {
				return nil, fmt.Errorf("%s: attribute @%s is not valid on relation %s.%s", attr.Pos, attr.Name, m.Name, fd.Name)
			}
			local := named(attr.Arguments, "fields").identifiers()
			refs := named(attr.Arguments, "references").identifiers()
			if len(local) != 1 || len(refs) != 1 {
				return nil, fmt.Errorf("%s: relation %s.%s must declare exactly one field and one reference", attr.Pos, m.Name, fd.Name)
			}
			rel.LocalField, rel.ForeignField = local[0], refs[0]
			if v := named(attr.Arguments, "onDelete"); v != nil && v.Ident != nil {
				switch action := ReferentialAction(*v.Ident); action {
				case Restrict, Cascade, NoAction:
					rel.OnDelete = action
				default:
					return nil, fmt.Errorf("%s: onDelete %s is not supported", attr.Pos, *v.Ident)
				}
			}
		}
		m.Relations = append(m.Relations, rel)
		m.relations[rel.Name] = rel
	}

	for _, ba := range decl.Attributes {
		switch ba.Name {
		case "unique":
			key := positional(ba.Arguments).identifiers()
			if len(key) == 0 {
				return nil, fmt.Errorf("%s: @@unique on %s needs a field list", ba.Pos, m.Name)
			}
			for _, name := range key {
				if _, ok := m.fields[name]; !ok {
					return nil, fmt.Errorf("%s: @@unique on %s references unknown field %s", ba.Pos, m.Name, name)
				}
			}
			m.UniqueKeys = append(m.UniqueKeys, key)
		case "index":
		default:
			return nil, fmt.Errorf("%s: block attribute @@%s is not supported", ba.Pos, ba.Name)
		}
	}

	pk := m.PrimaryKey()
	if pk == nil {
		return nil, fmt.Errorf("%s: model %s has no @id field", decl.Pos, m.Name)
	}
	if pk.Type != Int {
		return nil, fmt.Errorf("%s: model %s must use an Int @id", decl.Pos, m.Name)
	}

	// Single-field unique keys come first so lookups prefer them.
	keys := [][]string{{pk.Name}}
	for _, f := range m.Fields {
		if f.Unique && !f.ID {
			keys = append(keys, []string{f.Name})
		}
	}
	m.UniqueKeys = append(keys, m.UniqueKeys...)
	return m, nil
}

func scalarField(model string, fd *fieldDecl, st ScalarType) (*Field, error) {
	if fd.List {
		return nil, fmt.Errorf("%s: scalar list %s.%s is not supported", fd.Pos, model, fd.Name)
	}
	f := &Field{Name: fd.Name, Type: st, Nullable: fd.Optional}
	for _, attr := range fd.Attributes {
		if attr.Namespace != "" {
			continue
		}
		switch attr.Name {
		case "id":
			f.ID = true
			f.Unique = true
		case "unique":
			f.Unique = true
		case "default":
			d, err := defaultValue(st, positional(attr.Arguments))
			if err != nil {
				return nil, fmt.Errorf("%s: %s.%s: %w", attr.Pos, model, fd.Name, err)
			}
			f.Default = d
		default:
			return nil, fmt.Errorf("%s: attribute @%s is not supported on %s.%s", attr.Pos, attr.Name, model, fd.Name)
		}
	}
	return f, nil
}

func defaultValue(st ScalarType, v *value) (*Default, error) {
	if v == nil {
		return nil, fmt.Errorf("@default needs a value")
	}
	if v.Call != nil {
		switch v.Call.Name {
		case "autoincrement":
			if st != Int {
				return nil, fmt.Errorf("autoincrement() requires an Int field")
			}
			return &Default{Kind: DefaultAutoincrement}, nil
		case "now":
			if st != DateTime {
				return nil, fmt.Errorf("now() requires a DateTime field")
			}
			return &Default{Kind: DefaultNow}, nil
		}
		return nil, fmt.Errorf("default function %s() is not supported", v.Call.Name)
	}

	switch st {
	case String:
		if v.String != nil {
			return &Default{Value: *v.String}, nil
		}
	case Boolean:
		if v.Ident != nil && (*v.Ident == "true" || *v.Ident == "false") {
			return &Default{Value: *v.Ident == "true"}, nil
		}
	case Int:
		if v.Number != nil {
			n, err := strconv.ParseInt(*v.Number, 10, 64)
			if err != nil {
				return nil, err
			}
			return &Default{Value: n}, nil
		}
	case Float:
		if v.Number != nil {
			n, err := strconv.ParseFloat(*v.Number, 64)
			if err != nil {
				return nil, err
			}
			return &Default{Value: n}, nil
		}
	case Decimal:
		lit := v.Number
		if lit == nil {
			lit = v.String
		}
		if lit != nil {
			d, err := decimal.NewFromString(*lit)
			if err != nil {
				return nil, err
			}
			return &Default{Value: d}, nil
		}
	}
	return nil, fmt.Errorf("invalid default for %s field", st)
}

func linkRelations(reg *Registry, decls map[string]*modelBlock) error {
	for _, m := range reg.Models() {
		for _, rel := range m.Relations {
			target := reg.models[rel.Target]
			if rel.ToMany {
				continue
			}
			if rel.LocalField == "" {
				return fmt.Errorf("%s: to-one relation %s.%s must declare @relation(fields, references)", decls[m.Name].Pos, m.Name, rel.Name)
			}
			fk, ok := m.fields[rel.LocalField]
			if !ok {
				return fmt.Errorf("relation %s.%s references unknown field %s", m.Name, rel.Name, rel.LocalField)
			}
			if fk.Type != Int {
				return fmt.Errorf("relation %s.%s: foreign key %s must be Int", m.Name, rel.Name, fk.Name)
			}
			if fk.Nullable != rel.Optional {
				return fmt.Errorf("relation %s.%s: optionality of %s and the relation differ", m.Name, rel.Name, fk.Name)
			}
			if pk := target.PrimaryKey(); pk.Name != rel.ForeignField {
				return fmt.Errorf("relation %s.%s must reference %s.%s", m.Name, rel.Name, target.Name, pk.Name)
			}
			fk.ForeignKey = true
		}
	}

	for _, m := range reg.Models() {
		for _, rel := range m.Relations {
			target := reg.models[rel.Target]
			var back []*Relation
			for _, candidate := range target.Relations {
				if candidate.Target == m.Name && candidate.ToMany != rel.ToMany {
					back = append(back, candidate)
				}
			}
			switch {
			case len(back) == 1:
				rel.Inverse = back[0].Name
			case rel.ToMany:
				return fmt.Errorf("relation %s.%s has %d candidate back relations on %s, need exactly one", m.Name, rel.Name, len(back), target.Name)
			}
			if rel.ToMany {
				owner := back[0]
				rel.LocalField = m.PrimaryKey().Name
				rel.ForeignField = owner.LocalField
				rel.OnDelete = owner.OnDelete
			}
		}
	}
	return nil
}
