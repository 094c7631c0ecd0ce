package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/apiharness/service-contract-tests/httpclient"
)

func parse(t *testing.T, data string) ldvalue.Value {
	t.Helper()
	return ldvalue.Parse([]byte(data))
}

var userSchema = &Schema{
	Name: "user",
	Fields: []Field{
		{Name: "id", Kind: KindInteger, Required: true},
		{Name: "name", Kind: KindString, Required: true},
	},
}

func TestConformingPayloadHasNoViolations(t *testing.T) {
	violations := ValidateValue(parse(t, `{"id":42,"name":"Ann"}`), userSchema)
	assert.Empty(t, violations)
}

func TestMissingRequiredFieldIsExactlyOneViolation(t *testing.T) {
	schema := &Schema{
		Name: "user-with-email",
		Fields: append(append([]Field(nil), userSchema.Fields...),
			Field{Name: "email", Kind: KindString, Required: true}),
	}
	violations := ValidateValue(parse(t, `{"id":42,"name":"Ann"}`), schema)
	require.Len(t, violations, 1)
	assert.Equal(t, "$.email", violations[0].Path)
	assert.Equal(t, "absent", violations[0].Actual)
	assert.Equal(t, SeverityError, violations[0].Severity)
}

func TestOptionalFieldMayBeAbsent(t *testing.T) {
	schema := &Schema{
		Name: "user",
		Fields: append(append([]Field(nil), userSchema.Fields...),
			Field{Name: "email", Kind: KindString}),
	}
	assert.Empty(t, ValidateValue(parse(t, `{"id":42,"name":"Ann"}`), schema))
}

func TestTypeMismatchReportsExpectedAndActual(t *testing.T) {
	violations := ValidateValue(parse(t, `{"id":"42","name":"Ann"}`), userSchema)
	require.Len(t, violations, 1)
	assert.Equal(t, "$.id", violations[0].Path)
	assert.Equal(t, "integer", violations[0].Expected)
	assert.Equal(t, "string", violations[0].Actual)
}

func TestIntegerKindRejectsFractionalNumbers(t *testing.T) {
	violations := ValidateValue(parse(t, `{"id":42.5,"name":"Ann"}`), userSchema)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Actual, "non-integral")
}

func TestOpenSchemaToleratesUndeclaredFields(t *testing.T) {
	violations := ValidateValue(parse(t, `{"id":42,"name":"Ann","extra":true}`), userSchema)
	assert.Empty(t, violations)
}

func TestClosedSchemaRejectsUndeclaredFields(t *testing.T) {
	closed := &Schema{Name: "user", Closed: true, Fields: userSchema.Fields}
	violations := ValidateValue(parse(t, `{"id":42,"name":"Ann","extra":true}`), closed)
	require.Len(t, violations, 1)
	assert.Equal(t, "$.extra", violations[0].Path)
	assert.Contains(t, violations[0].Expected, "closed")
}

func TestEnumMismatchenumeratesAllowedValues(t *testing.T) {
	schema := &Schema{
		Name: "response",
		Fields: []Field{
			{Name: "result", Kind: KindEnum, Required: true, Values: []string{"OK", "ERROR"}},
		},
	}
	assert.Empty(t, ValidateValue(parse(t, `{"result":"OK"}`), schema))

	violations := ValidateValue(parse(t, `{"result":"MAYBE"}`), schema)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Expected, "OK")
	assert.Contains(t, violations[0].Expected, "ERROR")
	assert.Contains(t, violations[0].Actual, "MAYBE")
}

func TestNestedObjectsAreValidatedRecursively(t *testing.T) {
	schema := &Schema{
		Name: "order",
		Fields: []Field{
			{Name: "customer", Kind: KindObject, Required: true, Fields: []Field{
				{Name: "id", Kind: KindInteger, Required: true},
			}},
		},
	}
	violations := ValidateValue(parse(t, `{"customer":{"id":"bad"}}`), schema)
	require.Len(t, violations, 1)
	assert.Equal(t, "$.customer.id", violations[0].Path)
}

func TestArrayElementsAreValidatedPerIndex(t *testing.T) {
	schema := &Schema{
		Name: "listing",
		Fields: []Field{
			{Name: "items", Kind: KindArray, Required: true,
				Element: &Field{Kind: KindInteger}},
		},
	}
	violations := ValidateValue(parse(t, `{"items":[1,"two",3,"four"]}`), schema)
	require.Len(t, violations, 2)
	assert.Equal(t, "$.items[1]", violations[0].Path)
	assert.Equal(t, "$.items[3]", violations[1].Path)
}

func TestNonObjectRootIsAViolation(t *testing.T) {
	violations := ValidateValue(parse(t, `[1,2,3]`), userSchema)
	require.Len(t, violations, 1)
	assert.Equal(t, "$", violations[0].Path)
	assert.Equal(t, "object", violations[0].Expected)
	assert.Equal(t, "array", violations[0].Actual)
}

func TestDeprecatedFieldProducesWarningOnly(t *testing.T) {
	schema := &Schema{
		Name: "user",
		Fields: append(append([]Field(nil), userSchema.Fields...),
			Field{Name: "legacyName", Kind: KindString, Deprecated: true}),
	}
	violations := ValidateValue(parse(t, `{"id":42,"name":"Ann","legacyName":"A."}`), schema)
	require.Len(t, violations, 1)
	assert.Equal(t, SeverityWarning, violations[0].Severity)
	assert.Empty(t, Errors(violations))
}

func TestUndecodablePayloadIsDecodeErrorNotViolations(t *testing.T) {
	record := &httpclient.ResponseRecord{Status: 200, Body: []byte("<html>oops</html>")}
	violations, err := Validate(record, userSchema)
	assert.Nil(t, violations)
	var decodeErr *PayloadDecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestValidateRecordEndToEnd(t *testing.T) {
	record := &httpclient.ResponseRecord{Status: 200, Body: []byte(`{"id":42,"name":"Ann"}`)}
	violations, err := Validate(record, userSchema)
	require.NoError(t, err)
	assert.Empty(t, violations)
}
