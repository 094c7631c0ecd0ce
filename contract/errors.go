package contract

import "fmt"

// SchemaLoadError means a contract definition is missing or malformed. It is
// a configuration-class problem, distinct from payload violations.
type SchemaLoadError struct {
	Name   string
	Reason string
	Err    error
}

func (e *SchemaLoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("contract schema %q could not be loaded: %s: %v", e.Name, e.Reason, e.Err)
	}
	return fmt.Sprintf("contract schema %q could not be loaded: %s", e.Name, e.Reason)
}

func (e *SchemaLoadError) Unwrap() error { return e.Err }

// PayloadDecodeError means the response body was not decodable JSON at all,
// so no structural validation could take place. It is reported separately
// from violations.
type PayloadDecodeError struct {
	Err error
}

func (e *PayloadDecodeError) Error() string {
	return fmt.Sprintf("response payload is not decodable: %v", e.Err)
}

func (e *PayloadDecodeError) Unwrap() error { return e.Err }
