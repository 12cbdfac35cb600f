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

package ingest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/Dussand/conciliacion-Gmoney/table"
)

// Format is a supported upload format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	// FormatText is a plain text export that must go through the converter first.
	FormatText Format = "txt"
)

// ErrUnsupportedFormat is returned by Decode for content it cannot read.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// DetectFormat attempts to detect the file format based on its extension or content.
// If the file extension identifies the format, it returns that; otherwise it inspects
// the first bytes of the file.
// Parameters:
// - header: The leading bytes of the file (512 are enough).
// - filename: The name of the uploaded file.
// Returns:
// - Format: The detected format.
// - error: ErrUnsupportedFormat when nothing matches.
func DetectFormat(header []byte, filename string) (Format, error) {
	if f := detectByExtension(filename); f != "" {
		return f, nil
	}
	return detectByContent(header)
}

func detectByExtension(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".csv":
		return FormatCSV
	case ".json":
		return FormatJSON
	case ".txt":
		return FormatText
	default:
		return ""
	}
}

// detectByContent sniffs the content type. Workbooks are zip archives; text content
// is told apart by analyzeTextContent.
func detectByContent(data []byte) (Format, error) {
	mimeType := http.DetectContentType(data)

	switch {
	case mimeType == "application/zip":
		return FormatXLSX, nil
	case strings.HasPrefix(mimeType, "text/plain"), mimeType == "application/octet-stream":
		return analyzeTextContent(data), nil
	default:
		return "", errors.Wrapf(ErrUnsupportedFormat, "content type %s", mimeType)
	}
}

func analyzeTextContent(data []byte) Format {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		return FormatJSON
	}
	if looksLikeCSV(data) {
		return FormatCSV
	}
	return FormatText
}

// looksLikeCSV checks for at least two lines with the same number of comma separated
// fields. The last line may be cut short by the sniffing window, so it is ignored.
func looksLikeCSV(data []byte) bool {
	lines := bytes.Split(data, []byte("\n"))
	if len(lines) < 2 {
		return false
	}

	fields := bytes.Count(lines[0], []byte(",")) + 1
	for _, line := range lines[1 : len(lines)-1] {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if bytes.Count(line, []byte(","))+1 != fields {
			return false
		}
	}
	return fields > 1
}

// Decode reads an upload into a table of string cells. The first row is the header.
// Plain text exports are rejected; they have to be converted first.
func Decode(r io.Reader, filename string) (*table.Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "error reading upload")
	}

	header := data
	if len(header) > 512 {
		header = header[:512]
	}
	format, err := DetectFormat(header, filename)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatXLSX:
		return ReadXLSX(bytes.NewReader(data))
	case FormatCSV:
		return ReadCSV(bytes.NewReader(data))
	case FormatJSON:
		return ReadJSON(bytes.NewReader(data))
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%s (%s)", filename, format)
	}
}

// ReadXLSX reads the first sheet of a workbook. Cells are read unformatted so numbers
// keep their full precision and dates arrive as serial numbers.
func ReadXLSX(r io.Reader) (*table.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "error opening workbook")
	}
	defer func() {
		_ = f.Close()
	}()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.Wrapf(err, "error reading sheet %q", sheet)
	}
	return fromRecords(rows)
}

// ReadCSV reads comma separated text with a header row. Rows may be ragged.
func ReadCSV(r io.Reader) (*table.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "error reading csv")
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return fromRecords(rows)
}

// ReadJSON reads an array of flat objects. Columns are the union of all keys, sorted.
func ReadJSON(r io.Reader) (*table.Table, error) {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()

	var objects []map[string]interface{}
	if err := decoder.Decode(&objects); err != nil {
		return nil, errors.Wrap(err, "error decoding json")
	}

	seen := map[string]bool{}
	var columns []string
	for _, obj := range objects {
		for k := range obj {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	sort.Strings(columns)

	rows := make([][]table.Value, len(objects))
	for i, obj := range objects {
		row := make([]table.Value, len(columns))
		for j, c := range columns {
			row[j] = jsonCell(obj[c])
		}
		rows[i] = row
	}
	return table.New(columns, rows)
}

func jsonCell(v interface{}) table.Value {
	switch val := v.(type) {
	case nil:
		return table.Null()
	case string:
		return cell(val)
	case json.Number:
		return table.String(val.String())
	default:
		return table.String(fmt.Sprint(val))
	}
}

// fromRecords turns a header row plus data rows into a table. Blank header cells are
// named "Unnamed: N" and repeated names get a ".N" suffix; fully blank rows are skipped.
func fromRecords(records [][]string) (*table.Table, error) {
	if len(records) == 0 {
		return table.New(nil, nil)
	}

	columns := headerNames(records[0])
	rows := make([][]table.Value, 0, len(records)-1)
	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		row := make([]table.Value, len(columns))
		for j := range columns {
			if j < len(rec) {
				row[j] = cell(rec[j])
			}
		}
		rows = append(rows, row)
	}
	return table.New(columns, rows)
}

func headerNames(raw []string) []string {
	columns := make([]string, len(raw))
	counts := map[string]int{}
	for i, h := range raw {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n := counts[name]; n > 0 {
			counts[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n)
		} else {
			counts[name] = 1
		}
		columns[i] = name
	}
	return columns
}

func cell(s string) table.Value {
	s = strings.TrimSpace(s)
	if s == "" {
		return table.Null()
	}
	return table.String(s)
}

func blank(rec []string) bool {
	for _, s := range rec {
		if strings.TrimSpace(s) != "" {
			return false
		}
	}
	return true
}
