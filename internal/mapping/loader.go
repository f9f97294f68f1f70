package mapping

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/pierpaolospaziani/openjpa/internal/schema"
)

// LoadDir loads every CUE file of the package in dir and compiles the
// `entity` struct into a Repository.
//
//	entity: Employee: {
//		table: "EMPLOYEE"
//		id: ["id"]
//		fields: {
//			id:   {column: "ID", type: "long"}
//			dept: {relation: "Department", column: "DEPT_ID"}
//		}
//	}
func LoadDir(dir string) (*Repository, error) {
	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}
	return Compile(ctx.BuildInstance(inst))
}

// LoadString compiles mappings from CUE source text.
func LoadString(src string) (*Repository, error) {
	return Compile(cuecontext.New().CompileString(src))
}

// Compile builds a Repository from a CUE value holding an `entity` struct.
func Compile(v cue.Value) (*Repository, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	entities := v.LookupPath(cue.ParsePath("entity"))
	if !entities.Exists() {
		return nil, &CompileError{Message: "no entity definitions", Pos: v.Pos()}
	}
	specs, err := parseEntities(entities)
	if err != nil {
		return nil, err
	}
	ordered, err := orderByInheritance(specs)
	if err != nil {
		return nil, err
	}

	c := &compiler{repo: NewRepository(), specs: make(map[string]*entitySpec)}
	for _, s := range ordered {
		c.specs[s.name] = s
	}
	for _, s := range ordered {
		if err := c.defineClass(s); err != nil {
			return nil, err
		}
	}
	for _, s := range ordered {
		if err := c.resolveToOne(s); err != nil {
			return nil, err
		}
	}
	for _, s := range ordered {
		if err := c.resolveInverse(s); err != nil {
			return nil, err
		}
	}
	return c.repo, nil
}

type entitySpec struct {
	name       string
	table      string
	extends    string
	id         []string
	discColumn string
	discValue  any
	fields     []*fieldSpec
	pos        token.Pos
}

type fieldSpec struct {
	name     string
	column   string
	columns  []string
	typ      string
	size     int
	notNull  bool
	xml      bool
	relation string
	mappedBy string
	many     bool
	eager    string
	pos      token.Pos
}

func (f *fieldSpec) isRelation() bool { return f.relation != "" }

func parseEntities(v cue.Value) ([]*entitySpec, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var specs []*entitySpec
	for iter.Next() {
		s, err := parseEntity(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	return specs, nil
}

func parseEntity(name string, v cue.Value) (*entitySpec, error) {
	s := &entitySpec{name: name, pos: v.Pos()}
	var err error
	if s.table, err = optString(v, "table"); err != nil {
		return nil, err
	}
	if s.extends, err = optString(v, "extends"); err != nil {
		return nil, err
	}
	if s.id, err = optStrings(v, "id"); err != nil {
		return nil, err
	}

	disc := v.LookupPath(cue.ParsePath("discriminator"))
	if disc.Exists() {
		if s.discColumn, err = optString(disc, "column"); err != nil {
			return nil, err
		}
		if s.discColumn == "" {
			return nil, &CompileError{Entity: name, Field: "discriminator", Message: "column is required", Pos: disc.Pos()}
		}
		dv := disc.LookupPath(cue.ParsePath("value"))
		switch dv.Kind() {
		case cue.IntKind:
			n, err := dv.Int64()
			if err != nil {
				return nil, formatCUEError(err)
			}
			s.discValue = n
		case cue.StringKind:
			str, err := dv.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			s.discValue = str
		default:
			return nil, &CompileError{Entity: name, Field: "discriminator", Message: "value must be a string or integer", Pos: disc.Pos()}
		}
	}

	fields := v.LookupPath(cue.ParsePath("fields"))
	if !fields.Exists() {
		return s, nil
	}
	iter, err := fields.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		f, err := parseField(iter.Label(), iter.Value())
		if err != nil {
			if ce, ok := err.(*CompileError); ok {
				ce.Entity = name
			}
			return nil, err
		}
		s.fields = append(s.fields, f)
	}
	return s, nil
}

func parseField(name string, v cue.Value) (*fieldSpec, error) {
	f := &fieldSpec{name: name, pos: v.Pos()}
	var err error
	if f.column, err = optString(v, "column"); err != nil {
		return nil, err
	}
	if f.columns, err = optStrings(v, "columns"); err != nil {
		return nil, err
	}
	if f.typ, err = optString(v, "type"); err != nil {
		return nil, err
	}
	if f.relation, err = optString(v, "relation"); err != nil {
		return nil, err
	}
	if f.mappedBy, err = optString(v, "mappedBy"); err != nil {
		return nil, err
	}
	if f.eager, err = optString(v, "eager"); err != nil {
		return nil, err
	}
	if f.many, err = optBool(v, "many"); err != nil {
		return nil, err
	}
	if f.notNull, err = optBool(v, "notNull"); err != nil {
		return nil, err
	}
	if f.xml, err = optBool(v, "xml"); err != nil {
		return nil, err
	}
	size := v.LookupPath(cue.ParsePath("size"))
	if size.Exists() {
		n, err := size.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		f.size = int(n)
	}
	if f.many && f.mappedBy == "" {
		return nil, &CompileError{Field: name, Message: "to-many relation requires mappedBy", Pos: f.pos}
	}
	if f.mappedBy != "" && f.relation == "" {
		return nil, &CompileError{Field: name, Message: "mappedBy requires relation", Pos: f.pos}
	}
	return f, nil
}

func orderByInheritance(specs []*entitySpec) ([]*entitySpec, error) {
	byName := make(map[string]*entitySpec, len(specs))
	for _, s := range specs {
		byName[s.name] = s
	}
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(specs))
	var out []*entitySpec
	var visit func(s *entitySpec) error
	visit = func(s *entitySpec) error {
		switch state[s.name] {
		case done:
			return nil
		case visiting:
			return &CompileError{Entity: s.name, Message: "inheritance cycle", Pos: s.pos}
		}
		state[s.name] = visiting
		if s.extends != "" {
			parent, ok := byName[s.extends]
			if !ok {
				return &CompileError{Entity: s.name, Field: "extends", Message: fmt.Sprintf("unknown entity %q", s.extends), Pos: s.pos}
			}
			if err := visit(parent); err != nil {
				return err
			}
		}
		state[s.name] = done
		out = append(out, s)
		return nil
	}
	for _, s := range specs {
		if err := visit(s); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type compiler struct {
	repo  *Repository
	specs map[string]*entitySpec
}

func (c *compiler) defineClass(s *entitySpec) error {
	m := &ClassMapping{Name: s.name}
	var sup *ClassMapping
	if s.extends != "" {
		sup, _ = c.repo.Mapping(s.extends)
		m.Superclass = sup
		sup.Subclasses = append(sup.Subclasses, m)
	}
	switch {
	case s.table != "":
		m.Table = c.repo.table(s.table)
	case sup != nil:
		m.Table = sup.Table
	default:
		return &CompileError{Entity: s.name, Field: "table", Message: "table is required", Pos: s.pos}
	}
	c.repo.Add(m)

	if s.discColumn != "" {
		sqlType, javaType := schema.Varchar, schema.JavaString
		if _, ok := s.discValue.(int64); ok {
			sqlType, javaType = schema.Integer, schema.JavaLong
		}
		m.Discriminator = m.Table.AddColumn(s.discColumn, sqlType, javaType)
		m.DiscriminatorValue = s.discValue
	} else if sup != nil && sup.Table == m.Table && sup.Discriminator != nil {
		m.Discriminator = sup.Discriminator
	}

	// Table-per-class subclasses redeclare inherited fields in their own table.
	if sup != nil && sup.Table != m.Table {
		for _, f := range c.inheritedSpecs(s) {
			if !f.isRelation() {
				if err := c.addBasic(m, f); err != nil {
					return err
				}
			}
		}
	}
	for _, f := range s.fields {
		if f.isRelation() {
			continue
		}
		if err := c.addBasic(m, f); err != nil {
			return err
		}
	}
	return c.definePrimaryKey(m, s)
}

// inheritedSpecs returns the field specs declared by the superclasses of s,
// nearest last, excluding fields s redeclares.
func (c *compiler) inheritedSpecs(s *entitySpec) []*fieldSpec {
	own := make(map[string]bool, len(s.fields))
	for _, f := range s.fields {
		own[f.name] = true
	}
	var chain []*entitySpec
	for p := c.specs[s.extends]; p != nil; p = c.specs[p.extends] {
		chain = append(chain, p)
	}
	var out []*fieldSpec
	for i := len(chain) - 1; i >= 0; i-- {
		for _, f := range chain[i].fields {
			if !own[f.name] {
				own[f.name] = true
				out = append(out, f)
			}
		}
	}
	return out
}

func (c *compiler) addBasic(m *ClassMapping, f *fieldSpec) error {
	jt := schema.JavaString
	if f.typ != "" {
		var ok bool
		if jt, ok = schema.ParseJavaType(f.typ); !ok {
			return &CompileError{Entity: m.Name, Field: f.name, Message: fmt.Sprintf("unknown type %q", f.typ), Pos: f.pos}
		}
	}
	name := f.column
	if name == "" {
		name = strings.ToUpper(f.name)
	}
	var opts []schema.ColumnOption
	if f.size > 0 {
		opts = append(opts, schema.WithSize(f.size))
	}
	if f.notNull {
		opts = append(opts, schema.WithNotNull())
	}
	if f.xml {
		opts = append(opts, schema.WithXML())
	}
	col := m.Table.AddColumn(name, schema.DefaultSQLType(jt), jt, opts...)
	m.Fields = append(m.Fields, &FieldMapping{
		Name:    f.name,
		Owner:   m,
		Type:    jt,
		Columns: []*schema.Column{col},
		Index:   len(m.Fields),
	})
	return nil
}

func (c *compiler) definePrimaryKey(m *ClassMapping, s *entitySpec) error {
	ids := s.id
	if len(ids) == 0 {
		for p := c.specs[s.extends]; p != nil && len(ids) == 0; p = c.specs[p.extends] {
			ids = p.id
		}
	}
	if len(ids) == 0 {
		return &CompileError{Entity: s.name, Field: "id", Message: "primary key is required", Pos: s.pos}
	}
	for _, id := range ids {
		f := m.Field(id)
		if f == nil || f.IsRelation() {
			return &CompileError{Entity: s.name, Field: "id", Message: fmt.Sprintf("unknown basic field %q", id), Pos: s.pos}
		}
		m.PrimaryKey = append(m.PrimaryKey, f.Columns...)
	}
	if m.Table.PrimaryKey() == nil {
		if _, err := m.Table.SetPrimaryKey(m.PrimaryKey...); err != nil {
			return &CompileError{Entity: s.name, Field: "id", Message: err.Error(), Pos: s.pos}
		}
	}
	return nil
}

func (c *compiler) resolveToOne(s *entitySpec) error {
	m, _ := c.repo.Mapping(s.name)
	fields := s.fields
	if m.Superclass != nil && m.Superclass.Table != m.Table {
		fields = append(c.inheritedSpecs(s), fields...)
	}
	for _, f := range fields {
		if !f.isRelation() || f.mappedBy != "" {
			continue
		}
		target, ok := c.repo.Mapping(f.relation)
		if !ok {
			return &CompileError{Entity: s.name, Field: f.name, Message: fmt.Sprintf("unknown relation %q", f.relation), Pos: f.pos}
		}
		names := f.columns
		if len(names) == 0 && f.column != "" {
			names = []string{f.column}
		}
		if len(names) == 0 {
			for _, pk := range target.PrimaryKey {
				names = append(names, strings.ToUpper(f.name)+"_"+pk.Name())
			}
		}
		if len(names) != len(target.PrimaryKey) {
			return &CompileError{Entity: s.name, Field: f.name, Message: fmt.Sprintf("%d join columns for %d primary key columns", len(names), len(target.PrimaryKey)), Pos: f.pos}
		}
		cols := make([]*schema.Column, len(names))
		for i, n := range names {
			pk := target.PrimaryKey[i]
			cols[i] = m.Table.AddColumn(n, pk.Type(), pk.JavaType())
		}
		fk, err := m.Table.AddForeignKey("FK_"+m.Table.Name()+"_"+strings.ToUpper(f.name), cols, target.PrimaryKey)
		if err != nil {
			return &CompileError{Entity: s.name, Field: f.name, Message: err.Error(), Pos: f.pos}
		}
		eager, ok := ParseEagerMode(f.eager)
		if !ok {
			return &CompileError{Entity: s.name, Field: f.name, Message: fmt.Sprintf("unknown eager mode %q", f.eager), Pos: f.pos}
		}
		m.Fields = append(m.Fields, &FieldMapping{
			Name:       f.name,
			Owner:      m,
			Type:       schema.JavaEntity,
			Columns:    cols,
			Kind:       ToOne,
			Relation:   target,
			ForeignKey: fk,
			Eager:      eager,
			Index:      len(m.Fields),
		})
	}
	return nil
}

func (c *compiler) resolveInverse(s *entitySpec) error {
	m, _ := c.repo.Mapping(s.name)
	for _, f := range s.fields {
		if f.mappedBy == "" {
			continue
		}
		target, ok := c.repo.Mapping(f.relation)
		if !ok {
			return &CompileError{Entity: s.name, Field: f.name, Message: fmt.Sprintf("unknown relation %q", f.relation), Pos: f.pos}
		}
		back := target.Field(f.mappedBy)
		if back == nil || back.Kind != ToOne || back.Inverse {
			return &CompileError{Entity: s.name, Field: f.name, Message: fmt.Sprintf("mappedBy %s.%s is not an owning to-one relation", target.Name, f.mappedBy), Pos: f.pos}
		}
		if !back.Relation.IsAssignableFrom(m) && !m.IsAssignableFrom(back.Relation) {
			return &CompileError{Entity: s.name, Field: f.name, Message: fmt.Sprintf("%s.%s references %s", target.Name, f.mappedBy, back.Relation.Name), Pos: f.pos}
		}
		eager, ok := ParseEagerMode(f.eager)
		if !ok {
			return &CompileError{Entity: s.name, Field: f.name, Message: fmt.Sprintf("unknown eager mode %q", f.eager), Pos: f.pos}
		}
		kind, typ := ToOne, schema.JavaEntity
		if f.many {
			kind, typ = ToMany, schema.JavaCollection
		}
		m.Fields = append(m.Fields, &FieldMapping{
			Name:       f.name,
			Owner:      m,
			Type:       typ,
			Kind:       kind,
			Relation:   target,
			ForeignKey: back.ForeignKey,
			Inverse:    true,
			MappedBy:   f.mappedBy,
			Eager:      eager,
			Index:      len(m.Fields),
		})
	}
	return nil
}

func optString(v cue.Value, name string) (string, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optBool(v cue.Value, name string) (bool, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return false, nil
	}
	b, err := f.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func optStrings(v cue.Value, name string) ([]string, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return nil, nil
	}
	iter, err := f.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// formatCUEError converts the first CUE error into a positioned CompileError.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
