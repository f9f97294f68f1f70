package queryir

import (
	"fmt"
)

// ValidationResult contains portability analysis of a query document.
//
// A portable query runs the same against every dictionary and can also be
// evaluated in memory against loaded objects. Queries outside the portable
// fragment still execute through SQL.
type ValidationResult struct {
	// IsPortable indicates the query uses only portable features.
	IsPortable bool

	// Warnings lists the non-portable features used. Empty when IsPortable
	// is true.
	Warnings []string
}

// Validate checks a query document against the portable fragment.
//
// Portable fragment rules:
//  1. No subqueries - in-memory evaluation has no statement to run them
//  2. No INDEX - neither SQL nor memory has an ordered collection index
//  3. No = or <> against NULL - use is_null / not_null
//  4. No temporal literals - their SQL text differs between dictionaries
//  5. No SIZE or emptiness of a collection path outside SQL - in memory
//     the collection must already be fetched
//
// Validate is a pure function with no side effects.
func Validate(doc *Document) ValidationResult {
	v := &validator{
		warnings: []string{},
	}
	v.validateDocument(doc, "")

	return ValidationResult{
		IsPortable: len(v.warnings) == 0,
		Warnings:   v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateDocument(doc *Document, at string) {
	if doc == nil {
		v.addWarning("%snil query - portable fragment requires a query document", at)
		return
	}
	for i := range doc.Select {
		v.validateValue(&doc.Select[i], fmt.Sprintf("%sselect %d: ", at, i))
	}
	if doc.Filter != nil {
		v.validateCond(doc.Filter, at+"filter: ")
	}
	for i := range doc.GroupBy {
		v.validateValue(&doc.GroupBy[i], fmt.Sprintf("%sgroup_by %d: ", at, i))
	}
	if doc.Having != nil {
		v.validateCond(doc.Having, at+"having: ")
	}
	for i := range doc.Order {
		v.validateValue(&doc.Order[i].By, fmt.Sprintf("%sorder %d: ", at, i))
	}
}

func (v *validator) validateValue(val *Value, at string) {
	if val == nil {
		return
	}
	switch val.form() {
	case "":
		v.addWarning("%sValue with no single form - portability cannot be verified", at)
	case "lit":
		// temporal literals render through the dictionary
		switch val.Kind {
		case "date", "time", "timestamp":
			v.addWarning("%s%s literal renders dialect-specific SQL - pass it as a parameter", at, val.Kind)
		}
	case "fn":
		switch val.Fn {
		case "index":
			v.addWarning("%sINDEX has no SQL or in-memory form", at)
		case "size":
			v.addWarning("%sSIZE needs a fetched collection in memory", at)
		}
		v.validateValue(val.Of, at)
	case "agg":
		v.validateValue(val.Of, at)
	case "op":
		for i := range val.Args {
			v.validateValue(&val.Args[i], at)
		}
	case "case":
		v.validateValue(val.Case.Operand, at)
		for i := range val.Case.Whens {
			w := &val.Case.Whens[i]
			if w.If != nil {
				v.validateCond(w.If, at)
			}
			v.validateValue(w.Value, at)
			v.validateValue(&w.Then, at)
		}
		v.validateValue(val.Case.Else, at)
	case "coalesce":
		for i := range val.Coalesce {
			v.validateValue(&val.Coalesce[i], at)
		}
	case "nullif":
		for i := range val.NullIf {
			v.validateValue(&val.NullIf[i], at)
		}
	case "subquery":
		v.addWarning("%sSubquery over %s - not evaluable in memory", at, val.Subquery.From)
		v.validateDocument(val.Subquery, at+"subquery: ")
	}
}

func (v *validator) validateCond(c *Cond, at string) {
	form := c.form()
	if _, ok := compareOps[form]; ok {
		for _, cmp := range c.comparisons() {
			if cmp.name != form {
				continue
			}
			for i := range cmp.args {
				if cmp.args[i].Null && (form == "eq" || form == "ne") {
					v.addWarning("%sField compared to NULL with %s - use is_null or not_null", at, form)
				}
				v.validateValue(&cmp.args[i], at)
			}
		}
		return
	}
	switch form {
	case "":
		v.addWarning("%sCondition with no single form - portability cannot be verified", at)
	case "and":
		for i := range c.And {
			v.validateCond(&c.And[i], at)
		}
	case "or":
		for i := range c.Or {
			v.validateCond(&c.Or[i], at)
		}
	case "not":
		v.validateCond(c.Not, at)
	case "is_null":
		v.validateValue(c.IsNull, at)
	case "not_null":
		v.validateValue(c.NotNull, at)
	case "in":
		v.validateValue(&c.In.Value, at)
		for i := range c.In.List {
			v.validateValue(&c.In.List[i], at)
		}
		if c.In.Subquery != nil {
			v.addWarning("%sSubquery over %s - not evaluable in memory", at, c.In.Subquery.From)
			v.validateDocument(c.In.Subquery, at+"subquery: ")
		}
	case "empty", "not_empty":
		target := c.Empty
		if form == "not_empty" {
			target = c.NotEmpty
		}
		if target.Path != "" {
			v.addWarning("%sEmptiness of %s needs a fetched collection in memory", at, target.Path)
		}
		v.validateValue(target, at)
	case "exists":
		v.addWarning("%sSubquery over %s - not evaluable in memory", at, c.Exists.From)
		v.validateDocument(c.Exists, at+"subquery: ")
	case "like":
		v.validateValue(&c.Like.Value, at)
		v.validateValue(&c.Like.Pattern, at)
	}
}
