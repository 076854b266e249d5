package application

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/ericfisherdev/passpanel/internal/domain/model"
)

const (
	csvIDHeader        = "ID"
	csvCreatedAtHeader = "Created At"
)

// CSVHeader returns the export header row: ID, the display label of every
// field in column order, then Created At.
func CSVHeader() []string {
	header := []string{csvIDHeader}
	for _, f := range model.Fields() {
		header = append(header, f.Label())
	}
	return append(header, csvCreatedAtHeader)
}

// WriteCSV writes creds to w as CSV with a header row. Timestamps are RFC 3339 in UTC.
func WriteCSV(w io.Writer, creds []model.Credential) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	fields := model.Fields()
	record := make([]string, 0, len(fields)+2)
	for _, c := range creds {
		record = record[:0]
		record = append(record, strconv.FormatInt(c.ID, 10))
		for _, f := range fields {
			record = append(record, f.Get(c))
		}
		createdAt := ""
		if !c.CreatedAt.IsZero() {
			createdAt = c.CreatedAt.UTC().Format(time.RFC3339)
		}
		record = append(record, createdAt)

		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", c.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// ParseCSV reads credentials in the format produced by WriteCSV. The header
// must match CSVHeader exactly.
func ParseCSV(r io.Reader) ([]model.Credential, error) {
	cr := csv.NewReader(r)
	want := CSVHeader()
	cr.FieldsPerRecord = len(want)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("parse csv: missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("parse csv header: %w", err)
	}
	for i := range want {
		if header[i] != want[i] {
			return nil, fmt.Errorf("parse csv header: column %d is %q, want %q", i+1, header[i], want[i])
		}
	}

	fields := model.Fields()
	var creds []model.Credential
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv line %d: %w", line, err)
		}

		var c model.Credential
		if record[0] != "" {
			c.ID, err = strconv.ParseInt(record[0], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parse csv line %d: invalid ID %q", line, record[0])
			}
		}
		for i, f := range fields {
			if err := f.Set(&c, record[i+1]); err != nil {
				return nil, fmt.Errorf("parse csv line %d: %w", line, err)
			}
		}
		if raw := record[len(record)-1]; raw != "" {
			c.CreatedAt, err = time.Parse(time.RFC3339, raw)
			if err != nil {
				return nil, fmt.Errorf("parse csv line %d: invalid Created At %q", line, raw)
			}
		}
		creds = append(creds, c)
	}
	return creds, nil
}
