package gormquery

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// ColumnInput provides the field path of a condition to column resolution.
type ColumnInput struct {
	Statement *gorm.Statement
	Field     string
}

// ColumnOutput is the left-hand side used for a condition.
type ColumnOutput struct {
	// Column is a clause.Column or a clause.Expr.
	Column any

	// Text marks textual columns, exists also rejects empty strings on them.
	Text bool

	// JSONColumn and JSONKeys are set when the field path addresses a key inside a JSON column.
	JSONColumn string
	JSONKeys   []string
}

// ColumnFunc resolves the column of a condition field.
type ColumnFunc func(input *ColumnInput) (*ColumnOutput, error)

// WithFieldColumns maps field paths to raw SQL column expressions, e.g.
// "venue.type" to `"venue"->>'type'`. Unmapped fields resolve against the schema.
func WithFieldColumns(columns map[string]string) Option {
	return WithColumnHook(func(next ColumnFunc) ColumnFunc {
		return func(input *ColumnInput) (*ColumnOutput, error) {
			if col, ok := columns[input.Field]; ok {
				return &ColumnOutput{Column: clause.Column{Name: col, Raw: true}}, nil
			}
			return next(input)
		}
	})
}

// resolveColumn maps the first path segment to a schema field and treats
// any remaining segments as keys inside that field's JSON document.
func resolveColumn(input *ColumnInput) (*ColumnOutput, error) {
	stmt := input.Statement
	segments := strings.Split(input.Field, ".")

	field := lookUpField(stmt.Schema, segments[0])
	if field == nil {
		return nil, errors.Errorf("missing field %q in schema", segments[0])
	}

	column := clause.Column{Table: stmt.Table, Name: field.DBName}
	if len(segments) == 1 {
		return &ColumnOutput{
			Column: column,
			Text:   field.DataType == schema.String,
		}, nil
	}

	if !strings.HasPrefix(strings.ToLower(string(field.DataType)), "json") {
		return nil, errors.Errorf("field %q is not a JSON column", segments[0])
	}
	keys := segments[1:]
	if lo.Contains(keys, "") {
		return nil, errors.Errorf("invalid field path %q", input.Field)
	}
	return &ColumnOutput{
		Column:     jsonText(column, keys),
		Text:       true,
		JSONColumn: field.DBName,
		JSONKeys:   keys,
	}, nil
}

func lookUpField(s *schema.Schema, name string) *schema.Field {
	for _, candidate := range lo.Uniq([]string{SmartPascalCase(name), name, lo.SnakeCase(name)}) {
		if field := s.LookUpField(candidate); field != nil && field.DBName != "" {
			return field
		}
	}
	return nil
}

// jsonText extracts the text of a nested JSON key, NULL when the key is missing.
func jsonText(column clause.Column, keys []string) clause.Expr {
	vars := make([]any, 0, len(keys)+1)
	vars = append(vars, column)
	for _, k := range keys {
		vars = append(vars, k)
	}
	return clause.Expr{
		SQL:  "json_extract_path_text(?::json" + strings.Repeat(",?", len(keys)) + ")",
		Vars: vars,
	}
}
