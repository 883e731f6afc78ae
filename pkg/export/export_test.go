package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() Table {
	return Table{
		Columns: []Column{{Key: "id", Label: "ID"}, {Key: "status", Label: "Status", Width: 2}},
		Rows: []map[string]string{
			{"id": "br-1", "status": "PENDING_HR"},
			{"id": "br-2", "status": "FULFILLED", "ignored": "x"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleTable())
	require.NoError(t, err)
	assert.Equal(t, "ID,Status\nbr-1,PENDING_HR\nbr-2,FULFILLED\n", string(out))

	_, err = NewCSVExporter().Render(Table{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleTable(), "Benefit Requests")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFExporterRenderDocument(t *testing.T) {
	out, err := NewPDFExporter().RenderDocument(Document{
		Title:      "Certificate of Employment",
		Paragraphs: []string{"This certifies that Ana Cruz is employed."},
		Footer:     "Issued by HR",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = NewPDFExporter().RenderDocument(Document{})
	assert.Error(t, err)
}

func TestFill(t *testing.T) {
	body := "<p>{{ employeeName }} works as {{position}}. {{unknown}}</p>"
	values := map[string]string{"employeeName": "<b>Ana</b>", "position": "Analyst"}

	assert.Equal(t, "<p>&lt;b&gt;Ana&lt;/b&gt; works as Analyst. {{unknown}}</p>", Fill(body, values, true))
	assert.Equal(t, "<p><b>Ana</b> works as Analyst. {{unknown}}</p>", Fill(body, values, false))
	assert.Equal(t, []string{"employeeName", "position", "unknown"}, Placeholders(body+"{{position}}"))
	assert.False(t, strings.Contains(Fill("{{a}}", map[string]string{"a": "1"}, true), "{{"))
}
