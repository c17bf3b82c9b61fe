// Package csvstore persists experiment tabs as ';'-delimited files, one file
// per tab, named {tab}.csv.
package csvstore

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/clive/experimenter/internal/experiment"
)

// Delimiter separates the three columns of a tab file.
const Delimiter = ';'

// Ext is the file extension of tab files.
const Ext = ".csv"

// lines consumed before the csv reader starts counting
const headerLines = 1

// ParseTabFile reads the rows of one tab file. The first line is a header and
// is discarded unread; every following record must have exactly three fields.
func ParseTabFile(path string) ([]experiment.ParameterRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &experiment.StorageError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	return readRows(f, path)
}

// readRows parses tab file content from r. name is only used in errors.
// The header is everything up to the first newline and is never parsed.
func readRows(r io.Reader, name string) ([]experiment.ParameterRow, error) {
	br := bufio.NewReader(r)
	if header, err := br.ReadString('\n'); err != nil {
		if !errors.Is(err, io.EOF) {
			return nil, &experiment.StorageError{Op: "read", Path: name, Err: err}
		}
		if header == "" {
			return nil, &experiment.FormatError{Path: name, Line: 1, Reason: "missing header line"}
		}
	}

	cr := csv.NewReader(br)
	cr.Comma = Delimiter
	cr.FieldsPerRecord = -1 // checked below to report the field count

	rows := []experiment.ParameterRow{}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, readError(name, err)
		}
		if len(record) != len(experiment.Header) {
			line, _ := cr.FieldPos(0)
			return nil, &experiment.FormatError{Path: name, Line: line + headerLines, Fields: len(record)}
		}
		rows = append(rows, experiment.ParameterRow{
			Param:   record[0],
			Value:   record[1],
			Comment: record[2],
		})
	}
	return rows, nil
}

func readError(name string, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &experiment.FormatError{Path: name, Line: pe.Line + headerLines, Reason: pe.Err.Error()}
	}
	return &experiment.StorageError{Op: "read", Path: name, Err: err}
}

// WriteTabFile overwrites path with the header followed by one record per
// row. Fields holding the delimiter, quotes or newlines are quoted.
func WriteTabFile(path string, rows []experiment.ParameterRow) error {
	var buf bytes.Buffer
	if err := writeRows(&buf, rows); err != nil {
		return &experiment.StorageError{Op: "encode", Path: path, Err: err}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return &experiment.StorageError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// writeRows encodes the header and rows to w.
func writeRows(w io.Writer, rows []experiment.ParameterRow) error {
	cw := csv.NewWriter(w)
	cw.Comma = Delimiter

	if err := cw.Write(experiment.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range rows {
		if err := cw.Write(r.Fields()); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
