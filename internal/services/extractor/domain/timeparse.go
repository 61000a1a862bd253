package domain

import (
	"fmt"
	"time"
)

// upstreamTimeLayout matches the source platform's timestamp representation,
// an ISO-8601-like string with a numeric UTC offset such as
// "2024-03-01T17:45:09+0000".
const upstreamTimeLayout = "2006-01-02T15:04:05-0700"

// MalformedTimestampError reports an upstream creation time that could not be
// parsed. It aborts the current item, not the whole pass.
type MalformedTimestampError struct {
	Value string
	cause error
}

func (e *MalformedTimestampError) Error() string {
	return fmt.Sprintf("malformed upstream timestamp %q: %v", e.Value, e.cause)
}

func (e *MalformedTimestampError) Unwrap() error {
	return e.cause
}

// ParseUpstreamTime normalizes an upstream creation time into UTC. An empty
// value is tolerated and yields the zero time, matching upstream records that
// omit the field.
func ParseUpstreamTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(upstreamTimeLayout, value)
	if err != nil {
		return time.Time{}, &MalformedTimestampError{Value: value, cause: err}
	}
	return parsed.UTC(), nil
}
