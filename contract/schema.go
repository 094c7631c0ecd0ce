// Package contract validates response payloads against declared schemas.
//
// A schema is a declarative shape description loaded from yaml and referenced
// by name, so contracts are versioned independently of test code. Validation
// is a structural walk over the decoded JSON value: it checks required fields,
// value kinds, enum membership, and (for closed schemas) the absence of
// undeclared fields. It reports violations as data and never fails on payload
// content; only an undecodable payload or an unusable schema definition is an
// error.
package contract

// FieldKind is the structural kind a field is declared to have. Checks are
// structural (is it a number, a string, an object), never source-language
// class identity.
type FieldKind string

const (
	KindString  FieldKind = "string"
	KindNumber  FieldKind = "number"
	KindInteger FieldKind = "integer"
	KindBoolean FieldKind = "boolean"
	KindObject  FieldKind = "object"
	KindArray   FieldKind = "array"
	KindEnum    FieldKind = "enum"
)

// Field describes one declared field of an object schema.
type Field struct {
	Name     string    `yaml:"name"`
	Kind     FieldKind `yaml:"kind"`
	Required bool      `yaml:"required"`

	// Values lists the allowed literals for an enum field.
	Values []string `yaml:"values,omitempty"`

	// Fields and Closed describe a nested object field.
	Fields []Field `yaml:"fields,omitempty"`
	Closed bool    `yaml:"closed,omitempty"`

	// Element is the schema every element of an array field must satisfy.
	Element *Field `yaml:"element,omitempty"`

	// Deprecated fields still validate but produce a warning when present.
	Deprecated bool `yaml:"deprecated,omitempty"`
}

// Schema is a named contract for a JSON object payload. Closed schemas reject
// undeclared fields; open schemas tolerate them.
type Schema struct {
	Name   string  `yaml:"name"`
	Closed bool    `yaml:"closed"`
	Fields []Field `yaml:"fields"`
}

func validKind(k FieldKind) bool {
	switch k {
	case KindString, KindNumber, KindInteger, KindBoolean, KindObject, KindArray, KindEnum:
		return true
	}
	return false
}

// checkDefinition verifies the schema itself is usable, so a malformed
// contract file fails at load time rather than producing confusing
// violations at validation time.
func (s *Schema) checkDefinition() error {
	return checkFields(s.Name, s.Fields)
}

func checkFields(schemaName string, fields []Field) error {
	for _, f := range fields {
		if f.Name == "" {
			return &SchemaLoadError{Name: schemaName, Reason: "field with no name"}
		}
		if err := checkField(schemaName, f); err != nil {
			return err
		}
	}
	return nil
}

func checkField(schemaName string, f Field) error {
	label := f.Name
	if label == "" {
		label = "(array element)"
	}
	if !validKind(f.Kind) {
		return &SchemaLoadError{Name: schemaName,
			Reason: "field " + label + " has unknown kind " + string(f.Kind)}
	}
	switch f.Kind {
	case KindEnum:
		if len(f.Values) == 0 {
			return &SchemaLoadError{Name: schemaName,
				Reason: "enum field " + label + " declares no values"}
		}
	case KindObject:
		if err := checkFields(schemaName, f.Fields); err != nil {
			return err
		}
	case KindArray:
		if f.Element == nil {
			return &SchemaLoadError{Name: schemaName,
				Reason: "array field " + label + " declares no element schema"}
		}
		return checkField(schemaName, *f.Element)
	}
	return nil
}
