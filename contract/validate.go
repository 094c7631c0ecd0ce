package contract

import (
	"fmt"
	"strings"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/apiharness/service-contract-tests/httpclient"
)

// Validate checks a response record's body against a schema. An empty result
// with a nil error means the payload conforms. The error is non-nil only when
// the body could not be decoded at all (*PayloadDecodeError); payload content
// itself never produces an error, only violations.
func Validate(record *httpclient.ResponseRecord, schema *Schema) ([]Violation, error) {
	value, err := record.JSON()
	if err != nil {
		return nil, &PayloadDecodeError{Err: err}
	}
	return ValidateValue(value, schema), nil
}

// ValidateValue checks an already-decoded JSON value against a schema.
func ValidateValue(value ldvalue.Value, schema *Schema) []Violation {
	if value.Type() != ldvalue.ObjectType {
		return []Violation{{
			Path:     "$",
			Expected: "object",
			Actual:   typeName(value),
			Severity: SeverityError,
		}}
	}
	return checkObject("$", value, schema.Fields, schema.Closed)
}

func checkObject(path string, value ldvalue.Value, fields []Field, closed bool) []Violation {
	var violations []Violation

	declared := make(map[string]bool, len(fields))
	for _, f := range fields {
		declared[f.Name] = true
		fieldPath := path + "." + f.Name
		fv, present := value.TryGetByKey(f.Name)
		if !present {
			if f.Required {
				violations = append(violations, Violation{
					Path:     fieldPath,
					Expected: fmt.Sprintf("required %s field", f.Kind),
					Actual:   "absent",
					Severity: SeverityError,
				})
			}
			continue
		}
		if f.Deprecated {
			violations = append(violations, Violation{
				Path:     fieldPath,
				Expected: "field no longer present (deprecated)",
				Actual:   "present",
				Severity: SeverityWarning,
			})
		}
		violations = append(violations, checkValue(fieldPath, fv, f)...)
	}

	if closed {
		for _, key := range value.Keys() {
			if !declared[key] {
				violations = append(violations, Violation{
					Path:     path + "." + key,
					Expected: "no undeclared fields (schema is closed)",
					Actual:   "undeclared field present",
					Severity: SeverityError,
				})
			}
		}
	}
	return violations
}

func checkValue(path string, value ldvalue.Value, f Field) []Violation {
	switch f.Kind {
	case KindString:
		return checkType(path, value, ldvalue.StringType, "string")
	case KindBoolean:
		return checkType(path, value, ldvalue.BoolType, "boolean")
	case KindNumber:
		return checkType(path, value, ldvalue.NumberType, "number")
	case KindInteger:
		if value.Type() != ldvalue.NumberType {
			return mismatch(path, "integer", typeName(value))
		}
		if !value.IsInt() {
			return mismatch(path, "integer", fmt.Sprintf("non-integral number %v", value.Float64Value()))
		}
		return nil
	case KindEnum:
		if value.Type() != ldvalue.StringType {
			return mismatch(path, enumDescription(f.Values), typeName(value))
		}
		for _, allowed := range f.Values {
			if value.StringValue() == allowed {
				return nil
			}
		}
		return mismatch(path, enumDescription(f.Values), fmt.Sprintf("%q", value.StringValue()))
	case KindObject:
		if value.Type() != ldvalue.ObjectType {
			return mismatch(path, "object", typeName(value))
		}
		return checkObject(path, value, f.Fields, f.Closed)
	case KindArray:
		if value.Type() != ldvalue.ArrayType {
			return mismatch(path, "array", typeName(value))
		}
		var violations []Violation
		for i := 0; i < value.Count(); i++ {
			elementPath := fmt.Sprintf("%s[%d]", path, i)
			violations = append(violations, checkValue(elementPath, value.GetByIndex(i), *f.Element)...)
		}
		return violations
	}
	return nil
}

func checkType(path string, value ldvalue.Value, want ldvalue.ValueType, wantName string) []Violation {
	if value.Type() != want {
		return mismatch(path, wantName, typeName(value))
	}
	return nil
}

func mismatch(path, expected, actual string) []Violation {
	return []Violation{{Path: path, Expected: expected, Actual: actual, Severity: SeverityError}}
}

func enumDescription(values []string) string {
	return "one of [" + strings.Join(values, ", ") + "]"
}

func typeName(value ldvalue.Value) string {
	switch value.Type() {
	case ldvalue.NullType:
		return "null"
	case ldvalue.BoolType:
		return "boolean"
	case ldvalue.NumberType:
		return "number"
	case ldvalue.StringType:
		return "string"
	case ldvalue.ArrayType:
		return "array"
	case ldvalue.ObjectType:
		return "object"
	default:
		return "unknown"
	}
}
