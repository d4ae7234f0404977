// Package export serializes report row sets into downloadable files. The
// aggregation services produce the rows; this package only renders them.
package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Format selects the output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ErrInvalidFormat is returned for an unknown output format.
var ErrInvalidFormat = errors.New("invalid_export_format")

// ParseFormat parses a format string, defaulting to CSV when empty.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case "":
		return FormatCSV, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", ErrInvalidFormat
	}
}

// File is a rendered download.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

type Params struct {
	fx.In

	Log *zap.Logger
}

// Renderer turns flat row sets into CSV or XLSX buffers.
type Renderer struct {
	log *zap.Logger
}

func New(p Params) *Renderer {
	return &Renderer{log: p.Log.Named("export.renderer")}
}

// Render serializes headers plus records. File names carry a random suffix
// so repeated exports of the same report never collide.
func (r *Renderer) Render(format Format, baseName string, headers []string, records [][]string) (*File, error) {
	name := fmt.Sprintf("%s-%s.%s", baseName, uuid.NewString(), format)
	switch format {
	case FormatCSV:
		data, err := renderCSV(headers, records)
		if err != nil {
			return nil, err
		}
		return &File{Name: name, ContentType: "text/csv", Data: data}, nil
	case FormatXLSX:
		data, err := renderXLSX(baseName, headers, records)
		if err != nil {
			return nil, err
		}
		return &File{
			Name:        name,
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        data,
		}, nil
	default:
		return nil, ErrInvalidFormat
	}
}

func renderCSV(headers []string, records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(headers); err != nil {
		return nil, err
	}
	if err := w.WriteAll(records); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderXLSX(sheet string, headers []string, records [][]string) ([]byte, error) {
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	const defaultSheet = "Sheet1"
	if sheet != "" && sheet != defaultSheet {
		if err := xl.SetSheetName(defaultSheet, sheet); err != nil {
			return nil, err
		}
	} else {
		sheet = defaultSheet
	}

	headerRow := make([]any, len(headers))
	for i, h := range headers {
		headerRow[i] = h
	}
	if err := xl.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return nil, err
	}
	for i, record := range records {
		cells := make([]any, len(record))
		for j, value := range record {
			cells[j] = value
		}
		ref, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := xl.SetSheetRow(sheet, ref, &cells); err != nil {
			return nil, err
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var Module = fx.Module("export.renderer",
	fx.Provide(New),
)
