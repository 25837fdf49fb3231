package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/packman/internal/model"
	"github.com/xuri/excelize/v2"
	"golang.org/x/net/html/charset"
)

// Format は表形式ファイルの種類。
type Format string

const (
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatXLSX Format = "xlsx"
)

var (
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
	zipMagic = []byte("PK\x03\x04")
)

// DetectFormat はファイル名・Content-Type・先頭バイトからファイル形式を判定する。
// 判定できない場合はCSVとして扱う。
func DetectFormat(name, contentType string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".tsv", ".tab":
		return FormatTSV
	case ".csv":
		return FormatCSV
	}

	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "spreadsheetml"):
		return FormatXLSX
	case strings.Contains(ct, "tab-separated-values"):
		return FormatTSV
	}

	if bytes.HasPrefix(data, zipMagic) {
		return FormatXLSX
	}
	return FormatCSV
}

// Parse はファイル内容を形式に応じて行に分解する。
// 失敗時はIMPORT_PARSE_ERRORの*model.APIErrorを返す。
func Parse(format Format, contentType string, data []byte) (Table, error) {
	switch format {
	case FormatXLSX:
		return ReadXLSX(bytes.NewReader(data))
	case FormatTSV:
		return ReadDelimited(data, contentType, '\t')
	default:
		return ReadDelimited(data, contentType, ',')
	}
}

// ReadDelimited は区切り文字形式のファイルを読み取る。
//
// 文字コードはBOM、Content-Typeのcharset指定の順に判定し、
// どちらもなくUTF-8として不正な場合はShift_JISとみなす。
// 空行と全セルが空の行は読み飛ばす。
func ReadDelimited(data []byte, contentType string, comma rune) (Table, error) {
	text, err := decode(data, contentType)
	if err != nil {
		return Table{}, err
	}

	r := csv.NewReader(bytes.NewReader(text))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var records [][]string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				return Table{}, model.NewImportParseError(fmt.Sprintf("%d行目の形式が不正です", parseErr.Line))
			}
			return Table{}, model.NewImportParseError("ファイルを読み取れません")
		}
		records = append(records, record)
	}

	return buildTable(records)
}

// ReadXLSX はExcelブックの最初のシートを読み取る。
func ReadXLSX(r io.Reader) (Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Table{}, model.NewImportParseError("Excelファイルを開けません")
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, model.NewImportParseError("シートがありません")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Table{}, model.NewImportParseError(fmt.Sprintf("シート %s を読み取れません", sheets[0]))
	}

	return buildTable(rows)
}

// decode はファイル内容をUTF-8に変換する。
func decode(data []byte, contentType string) ([]byte, error) {
	if bytes.HasPrefix(data, utf8BOM) {
		return data[len(utf8BOM):], nil
	}

	enc, name, certain := charset.DetermineEncoding(data, contentType)
	if name == "utf-8" {
		return data, nil
	}
	// 判定は先頭1024バイトのみを見るため、推測の場合は全体で確かめる
	if !certain {
		if utf8.Valid(data) {
			return data, nil
		}
		// 指定もBOMもない非UTF-8データは、表計算ソフトが出力する日本語CSVとみなす
		enc, _ = charset.Lookup("shift_jis")
	}

	decoded, err := io.ReadAll(enc.NewDecoder().Reader(bytes.NewReader(data)))
	if err != nil {
		return nil, model.NewImportParseError("文字コードを変換できません")
	}
	return decoded, nil
}

// buildTable は1行目を見出しとして行をマップに変換する。
// 見出しが空の列は「列N」と名付け、重複する見出しは後の列を無視する。
func buildTable(records [][]string) (Table, error) {
	records = dropBlank(records)
	if len(records) == 0 {
		return Table{}, model.NewImportParseError("データがありません")
	}

	header := records[0]
	columns := make([]string, 0, len(header))
	seen := make(map[string]bool, len(header))
	positions := make([]int, 0, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("列%d", i+1)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		columns = append(columns, name)
		positions = append(positions, i)
	}

	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]string, len(columns))
		for j, name := range columns {
			if pos := positions[j]; pos < len(record) {
				row[name] = record[pos]
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}

	return Table{Columns: columns, Rows: rows}, nil
}

func dropBlank(records [][]string) [][]string {
	result := records[:0]
	for _, record := range records {
		blank := true
		for _, c := range record {
			if strings.TrimSpace(c) != "" {
				blank = false
				break
			}
		}
		if !blank {
			result = append(result, record)
		}
	}
	return result
}
