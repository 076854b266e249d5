package application

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/passpanel/internal/domain/model"
)

func TestCSVHeader(t *testing.T) {
	assert.Equal(t,
		"ID,Website Name,Website Link,Username,Password,Supervised Email,Supervised Phone,Authentication Reference,Status,Description,Created At",
		strings.Join(CSVHeader(), ","))
}

func TestWriteCSV(t *testing.T) {
	creds := []model.Credential{{
		ID:          3,
		WebsiteName: "Example",
		WebsiteLink: "https://example.com",
		Username:    "u1",
		Password:    "p,1",
		Status:      model.StatusActive,
		CreatedAt:   time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, creds))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `3,Example,https://example.com,u1,"p,1",,,,Active,,2026-03-04T05:06:07Z`, lines[1])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))

	assert.Equal(t, strings.Join(CSVHeader(), ",")+"\n", buf.String())
}

func TestParseCSV_Errors(t *testing.T) {
	header := strings.Join(CSVHeader(), ",")
	tests := []struct {
		name  string
		input string
	}{
		{"empty input", ""},
		{"wrong header", strings.Replace(header, "Username", "Login", 1)},
		{"short row", header + "\n1,Example\n"},
		{"bad id", header + "\nx,Example,https://e.com,u,p,,,,Active,,\n"},
		{"bad status", header + "\n1,Example,https://e.com,u,p,,,,Paused,,\n"},
		{"missing password", header + "\n1,Example,https://e.com,u,,,,,Active,,\n"},
		{"bad timestamp", header + "\n1,Example,https://e.com,u,p,,,,Active,,yesterday\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestParseCSV_HeaderOnly(t *testing.T) {
	got, err := ParseCSV(strings.NewReader(strings.Join(CSVHeader(), ",") + "\n"))

	require.NoError(t, err)
	assert.Empty(t, got)
}
