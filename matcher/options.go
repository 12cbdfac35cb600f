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

package matcher

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// JoinMode selects how the per-date totals of the two sources are combined.
type JoinMode string

const (
	// JoinInner drops dates missing from either source.
	JoinInner JoinMode = "inner"
	// JoinOuter keeps every date and reports the missing side.
	JoinOuter JoinMode = "outer"
)

// Source describes where the matcher finds a source's date and amount.
type Source struct {
	// Name tags schema errors, e.g. "metabase".
	Name string `json:"name"`
	// Label is the human name used in result labels, e.g. "Metabase".
	Label        string `json:"label"`
	DateColumn   string `json:"date_column"`
	AmountColumn string `json:"amount_column"`
	// Suffix disambiguates this source's columns in the merged detail.
	Suffix string `json:"suffix"`
}

// Options configures a Matcher. A is the internal ledger, B the provider export.
type Options struct {
	A             Source   `json:"source_a"`
	B             Source   `json:"source_b"`
	Indicator     string   `json:"indicator"`
	AggregateJoin JoinMode `json:"aggregate_join"`
}

// DefaultOptions matches the Metabase ledger export against the GMoney export.
func DefaultOptions() Options {
	return Options{
		A: Source{
			Name:         "metabase",
			Label:        "Metabase",
			DateColumn:   "fecha",
			AmountColumn: "total",
			Suffix:       "_meta",
		},
		B: Source{
			Name:         "gmoney",
			Label:        "Gmoney",
			DateColumn:   "fecha",
			AmountColumn: "monto_gmoney",
			Suffix:       "_gmoney",
		},
		Indicator:     "_merge",
		AggregateJoin: JoinInner,
	}
}

func (s Source) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Name, validation.Required),
		validation.Field(&s.DateColumn, validation.Required),
		validation.Field(&s.AmountColumn, validation.Required, validation.NotIn(s.DateColumn).Error("must differ from the date column")),
		validation.Field(&s.Suffix, validation.Required),
	)
}

func (o Options) Validate() error {
	err := validation.ValidateStruct(&o,
		validation.Field(&o.A),
		validation.Field(&o.B),
		validation.Field(&o.Indicator, validation.Required),
		validation.Field(&o.AggregateJoin, validation.Required, validation.In(JoinInner, JoinOuter)),
	)
	if err != nil {
		return err
	}
	if o.A.Suffix == o.B.Suffix {
		return errors.New("source suffixes must differ")
	}
	return nil
}
