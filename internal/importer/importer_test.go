package importer

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const sampleCSV = "\ufefflocationid,Applicant,FacilityType,Status,Address,Latitude,Longitude,Zip Codes\n" +
	"1,Taco Truck,Truck,approved,123 Main St,37.7749,-122.4194,28855\n" +
	"x,Broken Row,Truck,APPROVED,1 Nowhere,1,1,1\n" +
	"2,\"Burger, Inc\",Truck,EXPIRED,456 Market St,,,\n"

func TestReadCSV(t *testing.T) {
	ps, st, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, Stats{Rows: 3, Skipped: 1}, st)
	require.Len(t, ps, 2)

	assert.Equal(t, int64(1), ps[0].LocationID)
	assert.Equal(t, "APPROVED", ps[0].Status)
	assert.Equal(t, "28855", ps[0].Zipcodes)
	assert.True(t, ps[0].HasLocation())

	assert.Equal(t, "Burger, Inc", ps[1].Applicant)
	assert.False(t, ps[1].HasLocation())
}

func TestReadCSV_MissingColumn(t *testing.T) {
	_, _, err := ReadCSV(strings.NewReader("Applicant,Status\nA,APPROVED\n"))
	require.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "locationid")

	_, _, err = ReadCSV(strings.NewReader(""))
	require.ErrorIs(t, err, ErrMissingColumn)
}

func TestReadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permits.xlsx")
	f := excelize.NewFile()
	rows := [][]any{
		{"locationid", "Applicant", "Status", "Address", "Latitude", "Longitude", "Zip Codes"},
		{"10", "Pizza Truck", "REQUESTED", "789 Mission St", "37.7649", "-122.4294", "94103"},
		{"", "No Id", "APPROVED", "", "", "", ""},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	ps, st, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Stats{Rows: 2, Skipped: 1}, st)
	require.Len(t, ps, 1)
	assert.Equal(t, "Pizza Truck", ps[0].Applicant)
	assert.InDelta(t, 37.7649, ps[0].Latitude, 1e-9)
}

func TestReadFile_UnsupportedExtension(t *testing.T) {
	_, _, err := ReadFile("permits.json")
	require.Error(t, err)
}
