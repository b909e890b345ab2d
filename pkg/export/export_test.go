package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	data := Dataset{Headers: []string{"Teacher", "Classes"}}
	data.AddRow("Dr. Khan", "3")
	data.AddRow("Dr. Ali, PhD", "1")

	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	require.Equal(t, "Teacher,Classes\nDr. Khan,3\n\"Dr. Ali, PhD\",1\n", string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	data := Dataset{Title: "Room utilization", Headers: []string{"Room", "Classes"}}
	data.AddRow("Building A 201", "4")

	out, err := NewPDFExporter().Render(data)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
