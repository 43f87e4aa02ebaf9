// Package output writes and reads question/answer tables and hands finished
// files to the desktop viewer.
package output

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/auto-oracle/internal/model"
)

// SheetName is the worksheet written to XLSX tables.
const SheetName = "Answers"

var (
	tableHeader    = []string{"Question", "Answer"}
	failuresHeader = []string{"Index", "Question", "Error"}
)

// WriteTable writes a header row and one row per pair to path, replacing any
// existing file. The format follows the extension: .xlsx writes a workbook,
// anything else writes CSV.
func WriteTable(pairs []model.QAPair, path string) error {
	rows := make([][]string, 0, len(pairs)+1)
	rows = append(rows, tableHeader)
	for _, p := range pairs {
		rows = append(rows, []string{p.Question, p.Answer})
	}
	return writeRows(rows, path)
}

// FailuresPath returns the companion path for failed questions:
// out/output.csv becomes out/output_failures.csv.
func FailuresPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_failures.csv"
}

// WriteFailures writes failed questions as CSV with an Index,Question,Error
// header. Index is 1-based to match the progress output.
func WriteFailures(failures []model.QuestionError, path string) error {
	rows := make([][]string, 0, len(failures)+1)
	rows = append(rows, failuresHeader)
	for _, f := range failures {
		rows = append(rows, []string{strconv.Itoa(f.Index + 1), f.Question, f.Message()})
	}
	return writeCSV(rows, path)
}

func writeRows(rows [][]string, path string) error {
	if isXLSX(path) {
		return writeXLSX(rows, path)
	}
	return writeCSV(rows, path)
}

func isXLSX(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xlsx")
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return model.WrapError(err, model.KindIO, "output: create directory")
	}
	return nil
}

func writeCSV(rows [][]string, path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return model.WrapError(err, model.KindIO, "output: create "+path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return model.WrapError(err, model.KindIO, "output: write "+path)
	}
	if err := f.Close(); err != nil {
		return model.WrapError(err, model.KindIO, "output: close "+path)
	}
	return nil
}

func writeXLSX(rows [][]string, path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(SheetName)
	if err != nil {
		return model.WrapError(eris.Wrap(err, "xlsx: add sheet"), model.KindIO, "output: write "+path)
	}
	for _, r := range rows {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	if err := file.Save(path); err != nil {
		return model.WrapError(err, model.KindIO, "output: save "+path)
	}
	return nil
}

// ReadTable loads pairs from a table written by WriteTable. A first row equal
// to the Question,Answer header is skipped; rows with fewer than two columns
// or a blank question are ignored.
func ReadTable(path string) ([]model.QAPair, error) {
	var (
		rows [][]string
		err  error
	)
	if isXLSX(path) {
		rows, err = readXLSX(path)
	} else {
		rows, err = readCSV(path)
	}
	if err != nil {
		return nil, model.WrapError(err, model.KindIO, "output: read "+path)
	}

	pairs := make([]model.QAPair, 0, len(rows))
	for i, r := range rows {
		if len(r) < 2 {
			continue
		}
		if i == 0 && strings.EqualFold(strings.TrimSpace(r[0]), tableHeader[0]) && strings.EqualFold(strings.TrimSpace(r[1]), tableHeader[1]) {
			continue
		}
		if strings.TrimSpace(r[0]) == "" {
			continue
		}
		pairs = append(pairs, model.QAPair{Question: r[0], Answer: r[1]})
	}
	return pairs, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "csv: open file")
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "csv: read rows")
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, ok := f.Sheet[SheetName]
	if !ok {
		if len(f.Sheets) == 0 {
			return nil, eris.New("xlsx: workbook has no sheets")
		}
		sheet = f.Sheets[0]
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// ReadQuestions loads a plain question list: the first column of a CSV or
// XLSX table, or one question per line of any other file. A leading
// "Question" header cell and blank entries are skipped.
func ReadQuestions(path string) ([]string, error) {
	var (
		rows [][]string
		err  error
	)
	switch {
	case isXLSX(path):
		rows, err = readXLSX(path)
	case strings.EqualFold(filepath.Ext(path), ".csv"):
		rows, err = readCSV(path)
	default:
		rows, err = readLines(path)
	}
	if err != nil {
		return nil, model.WrapError(err, model.KindIO, "output: read "+path)
	}

	questions := make([]string, 0, len(rows))
	for i, r := range rows {
		if len(r) == 0 {
			continue
		}
		q := strings.TrimSpace(r[0])
		if q == "" || (i == 0 && strings.EqualFold(q, tableHeader[0])) {
			continue
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func readLines(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "text: read file")
	}
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	rows := make([][]string, len(lines))
	for i, l := range lines {
		rows[i] = []string{l}
	}
	return rows, nil
}
