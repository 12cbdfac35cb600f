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

const (
	WarnNoOverlappingDates = "no_overlapping_dates"
	WarnNoDiscrepancies    = "no_discrepancies"
)

// Warning is an informational, non-fatal outcome of a run.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Warnings reports empty results: no date shared by both sources, or no operation
// that differs between them.
func Warnings(comparisons []ComparisonRow, differences []DetailRow) []Warning {
	var out []Warning
	if len(comparisons) == 0 {
		out = append(out, Warning{
			Code:    WarnNoOverlappingDates,
			Message: "No hay fechas en común entre las fuentes.",
		})
	}
	if len(differences) == 0 {
		out = append(out, Warning{
			Code:    WarnNoDiscrepancies,
			Message: "No se encontraron diferencias en la conciliacion.",
		})
	}
	return out
}
