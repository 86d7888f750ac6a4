package introspect

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/commerce-client/schema"
)

// ProblemKind classifies a difference between the schema and the database.
type ProblemKind string

const (
	MissingTable      ProblemKind = "missing table"
	MissingColumn     ProblemKind = "missing column"
	NullabilityDiffer ProblemKind = "nullability differs"
	MissingUnique     ProblemKind = "missing unique index"
	MissingForeignKey ProblemKind = "missing foreign key"
	OnDeleteDiffers   ProblemKind = "onDelete differs"
)

// Problem is one place where the database does not match a model.
type Problem struct {
	Model  string
	Field  string
	Kind   ProblemKind
	Detail string
}

func (p Problem) String() string {
	target := p.Model
	if p.Field != "" {
		target += "." + p.Field
	}
	if p.Detail == "" {
		return fmt.Sprintf("%s: %s", target, p.Kind)
	}
	return fmt.Sprintf("%s: %s (%s)", target, p.Kind, p.Detail)
}

// Compare lists the differences that would break queries against db: every
// model needs its table, every scalar field its column with the same
// nullability, every unique key an index and every to-one relation its
// foreign key. Extra tables and columns are ignored, as are column types.
func Compare(reg *schema.Registry, db *DatabaseSchema) []Problem {
	var problems []Problem
	for _, m := range reg.Models() {
		table, ok := db.Table(m.Name)
		if !ok {
			problems = append(problems, Problem{Model: m.Name, Kind: MissingTable})
			continue
		}

		for _, f := range m.Fields {
			col, ok := table.Column(f.Name)
			switch {
			case !ok:
				problems = append(problems, Problem{Model: m.Name, Field: f.Name, Kind: MissingColumn})
			case col.Nullable != f.Nullable:
				problems = append(problems, Problem{
					Model:  m.Name,
					Field:  f.Name,
					Kind:   NullabilityDiffer,
					Detail: fmt.Sprintf("schema nullable=%t, column nullable=%t", f.Nullable, col.Nullable),
				})
			}
		}

		pk := m.PrimaryKey()
		for _, key := range m.UniqueKeys {
			if len(key) == 1 && key[0] == pk.Name {
				continue
			}
			if !table.HasUnique(key) {
				problems = append(problems, Problem{Model: m.Name, Field: strings.Join(key, ","), Kind: MissingUnique})
			}
		}

		for _, rel := range m.Relations {
			if rel.ToMany {
				continue
			}
			fk, ok := table.ForeignKey([]string{rel.LocalField})
			if !ok || fk.ReferencedTable != rel.Target {
				problems = append(problems, Problem{
					Model:  m.Name,
					Field:  rel.Name,
					Kind:   MissingForeignKey,
					Detail: fmt.Sprintf("%s -> %s.%s", rel.LocalField, rel.Target, rel.ForeignField),
				})
				continue
			}
			if normalizeAction(fk.OnDelete) != normalizeAction(string(rel.OnDelete)) {
				problems = append(problems, Problem{
					Model:  m.Name,
					Field:  rel.Name,
					Kind:   OnDeleteDiffers,
					Detail: fmt.Sprintf("schema %s, database %s", rel.OnDelete, fk.OnDelete),
				})
			}
		}
	}
	return problems
}

// normalizeAction folds "NO ACTION" and "NoAction" to one spelling.
func normalizeAction(action string) string {
	return strings.ToUpper(strings.ReplaceAll(action, " ", ""))
}
