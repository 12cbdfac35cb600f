/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package table

import (
	"errors"
	"fmt"
)

// ErrSchema is matched by every *SchemaError through errors.Is.
var ErrSchema = errors.New("schema error")

// SchemaError reports a required column that is absent or a cell that cannot be
// coerced to the type its column requires. It is fatal for the run that produced it.
type SchemaError struct {
	Source string `json:"source,omitempty"`
	Column string `json:"column"`
	Row    int    `json:"row,omitempty"` // 1-based data row; 0 when the whole column is at fault.
	Reason string `json:"reason"`
}

func (e *SchemaError) Error() string {
	msg := fmt.Sprintf("column %q: %s", e.Column, e.Reason)
	if e.Row > 0 {
		msg = fmt.Sprintf("row %d, %s", e.Row, msg)
	}
	if e.Source != "" {
		msg = e.Source + ": " + msg
	}
	return msg
}

func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

// MissingColumn builds the SchemaError for an absent column.
func MissingColumn(column string) *SchemaError {
	return &SchemaError{Column: column, Reason: "missing column"}
}

// WithSource tags err with the source name when it is a SchemaError without one.
// Any other error is returned unchanged.
func WithSource(err error, source string) error {
	var se *SchemaError
	if !errors.As(err, &se) || se.Source != "" {
		return err
	}
	tagged := *se
	tagged.Source = source
	return &tagged
}
