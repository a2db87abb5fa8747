package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/genesis/internal/entity"
	"github.com/roach88/genesis/internal/ir"
)

// EnvChainID is the only environment value columns can reference.
const EnvChainID = "chain_id"

// columnSource says where a column value comes from.
type columnSource struct {
	kind  string // "key", "field", "env", "const"
	field ir.Path
	value ir.Value
}

// CompileEntity parses a CUE value into an entity definition.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the entity struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`entity: validators: { ... }`)
//	def, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.validators")))
func CompileEntity(v cue.Value) (*entity.Definition, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if !v.Exists() {
		return nil, &CompileError{Field: "entity", Message: "entity not found", Pos: v.Pos()}
	}

	def := &entity.Definition{}

	// Entity name from struct label (the path selector)
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		def.Name = labels[len(labels)-1].String()
	}

	var err error
	if def.Table.Name, err = requiredString(v, "table"); err != nil {
		return nil, err
	}
	if def.Table.Schema, err = optionalString(v, "schema"); err != nil {
		return nil, err
	}

	path, err := requiredString(v, "path")
	if err != nil {
		return nil, err
	}
	def.Path = ir.ParsePath(path)

	if def.DependsOn, err = stringList(v, "depends_on", false); err != nil {
		return nil, err
	}
	if def.Table.Indexes, err = stringList(v, "indexes", false); err != nil {
		return nil, err
	}

	keyFields, err := stringList(v, "key", true)
	if err != nil {
		return nil, err
	}
	if len(keyFields) == 0 {
		return nil, &CompileError{Field: "key", Message: "at least one key field is required", Pos: v.Pos()}
	}
	keyPaths := make([]ir.Path, len(keyFields))
	for i, f := range keyFields {
		keyPaths[i] = ir.ParsePath(f)
		if len(keyPaths[i]) == 0 {
			return nil, &CompileError{Field: "key", Message: "key fields must not be empty", Pos: v.Pos()}
		}
	}

	sources, err := parseColumns(v, &def.Table)
	if err != nil {
		return nil, err
	}

	if explodeVal := v.LookupPath(cue.ParsePath("explode")); explodeVal.Exists() {
		def.Explode, err = parseExplode(explodeVal)
		if err != nil {
			return nil, err
		}
	}

	def.Key = func(rec ir.Record) (string, error) {
		parts := make([]string, len(keyPaths))
		for i, p := range keyPaths {
			s, err := fieldString(rec, p)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return ir.CompositeKey(parts...), nil
	}
	keyFn := def.Key

	def.Row = func(rec ir.Record, env entity.Env) (ir.Row, error) {
		row := make(ir.Row, len(sources))
		for i, src := range sources {
			switch src.kind {
			case "key":
				k, err := keyFn(rec)
				if err != nil {
					return nil, err
				}
				row[i] = ir.Text(k)
			case "field":
				s, err := fieldString(rec, src.field)
				if err != nil {
					return nil, err
				}
				row[i] = ir.Text(s)
			case "env":
				row[i] = ir.Text(env.ChainID)
			case "const":
				row[i] = src.value
			}
		}
		return row, nil
	}

	if err := def.Validate(); err != nil {
		return nil, &CompileError{Field: "entity", Message: err.Error(), Pos: v.Pos()}
	}
	return def, nil
}

// parseColumns fills t.Columns and t.Key and returns one source per column.
func parseColumns(v cue.Value, t *ir.Table) ([]columnSource, error) {
	colsVal := v.LookupPath(cue.ParsePath("columns"))
	if !colsVal.Exists() {
		return nil, &CompileError{Field: "columns", Message: "columns are required", Pos: v.Pos()}
	}
	iter, err := colsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var sources []columnSource
	for iter.Next() {
		colVal := iter.Value()

		name, err := requiredString(colVal, "name")
		if err != nil {
			return nil, err
		}
		typ, err := requiredString(colVal, "type")
		if err != nil {
			return nil, err
		}
		ct := ir.ColumnType(typ)
		if !ct.Valid() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("columns.%s.type", name),
				Message: fmt.Sprintf("unknown column type %q: must be text, numeric or interface", typ),
				Pos:     colVal.Pos(),
			}
		}

		src, err := parseSource(colVal, name)
		if err != nil {
			return nil, err
		}
		if src.kind == "key" {
			if t.Key != "" {
				return nil, &CompileError{
					Field:   fmt.Sprintf("columns.%s.key", name),
					Message: fmt.Sprintf("only one key column is allowed, already have %q", t.Key),
					Pos:     colVal.Pos(),
				}
			}
			t.Key = name
		}

		t.Columns = append(t.Columns, ir.Column{Name: name, Type: ct})
		sources = append(sources, src)
	}

	if len(sources) == 0 {
		return nil, &CompileError{Field: "columns", Message: "at least one column is required", Pos: colsVal.Pos()}
	}
	if t.Key == "" {
		return nil, &CompileError{Field: "columns", Message: "one column must be marked key: true", Pos: colsVal.Pos()}
	}
	return sources, nil
}

// parseSource reads the single value source of a column.
func parseSource(colVal cue.Value, name string) (columnSource, error) {
	var found []columnSource

	if keyVal := colVal.LookupPath(cue.ParsePath("key")); keyVal.Exists() {
		isKey, err := keyVal.Bool()
		if err != nil {
			return columnSource{}, formatCUEError(err)
		}
		if isKey {
			found = append(found, columnSource{kind: "key"})
		}
	}
	if fieldVal := colVal.LookupPath(cue.ParsePath("field")); fieldVal.Exists() {
		f, err := fieldVal.String()
		if err != nil {
			return columnSource{}, formatCUEError(err)
		}
		if len(ir.ParsePath(f)) == 0 {
			return columnSource{}, &CompileError{
				Field:   fmt.Sprintf("columns.%s.field", name),
				Message: "field must not be empty",
				Pos:     fieldVal.Pos(),
			}
		}
		found = append(found, columnSource{kind: "field", field: ir.ParsePath(f)})
	}
	if envVal := colVal.LookupPath(cue.ParsePath("env")); envVal.Exists() {
		e, err := envVal.String()
		if err != nil {
			return columnSource{}, formatCUEError(err)
		}
		if e != EnvChainID {
			return columnSource{}, &CompileError{
				Field:   fmt.Sprintf("columns.%s.env", name),
				Message: fmt.Sprintf("unknown environment value %q: only %q is available", e, EnvChainID),
				Pos:     envVal.Pos(),
			}
		}
		found = append(found, columnSource{kind: "env"})
	}
	if constVal := colVal.LookupPath(cue.ParsePath("const")); constVal.Exists() {
		if constVal.IncompleteKind() == cue.NullKind {
			found = append(found, columnSource{kind: "const", value: ir.Null})
		} else {
			c, err := constVal.String()
			if err != nil {
				return columnSource{}, formatCUEError(err)
			}
			found = append(found, columnSource{kind: "const", value: ir.Text(c)})
		}
	}

	if len(found) != 1 {
		return columnSource{}, &CompileError{
			Field:   fmt.Sprintf("columns.%s", name),
			Message: fmt.Sprintf("exactly one of key, field, env or const is required, got %d", len(found)),
			Pos:     colVal.Pos(),
		}
	}
	return found[0], nil
}

// parseExplode compiles {list, carry} into an ExplodeFunc.
func parseExplode(v cue.Value) (entity.ExplodeFunc, error) {
	list, err := requiredString(v, "list")
	if err != nil {
		return nil, err
	}
	carry, err := stringList(v, "carry", false)
	if err != nil {
		return nil, err
	}

	return func(rec ir.Record) ([]ir.Record, error) {
		elems, err := rec.List(list)
		if err != nil {
			return nil, err
		}
		out := make([]ir.Record, len(elems))
		for i, elem := range elems {
			merged := make(ir.Record, len(elem)+len(carry))
			for k, val := range elem {
				merged[k] = val
			}
			for _, c := range carry {
				val, ok := rec.Field(c)
				if !ok {
					return nil, fmt.Errorf("field %q is missing", c)
				}
				merged[c] = val
			}
			out[i] = merged
		}
		return out, nil
	}, nil
}

// fieldString resolves a dotted field inside a record.
func fieldString(rec ir.Record, p ir.Path) (string, error) {
	if len(p) == 0 {
		return "", fmt.Errorf("empty field path")
	}
	cur := rec
	for i, step := range p[:len(p)-1] {
		next, ok := cur.Field(step)
		if !ok {
			return "", fmt.Errorf("field %q is missing", p[:i+1].String())
		}
		obj, ok := next.(map[string]any)
		if !ok {
			return "", fmt.Errorf("field %q: expected an object", p[:i+1].String())
		}
		cur = ir.Record(obj)
	}
	s, err := cur.String(p[len(p)-1])
	if err != nil && len(p) > 1 {
		return "", fmt.Errorf("%s: %w", p.String(), err)
	}
	return s, err
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	if strings.TrimSpace(s) == "" {
		return "", &CompileError{Field: field, Message: field + " must not be empty", Pos: fv.Pos()}
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func stringList(v cue.Value, field string, required bool) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		if required {
			return nil, &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
		}
		return nil, nil
	}
	iter, err := fv.List()
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
