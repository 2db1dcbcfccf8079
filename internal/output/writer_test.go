package output

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/rowimport/internal/extract"
)

var (
	columns = []string{"name", "email", "age"}
	records = []extract.Record{
		{"name": "Ann", "email": "a@x.com", "age": "30"},
		{"name": "Bob & Co", "email": "b@x.com", "age": "41", "ignored": "x"},
	}
)

func write(t *testing.T, format string, recs []extract.Record) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, format, columns, recs))
	return buf.String()
}

func TestWrite_JSON(t *testing.T) {
	out := write(t, FormatJSON, records)

	assert.Equal(t, "[\n"+
		`  {"name":"Ann","email":"a@x.com","age":"30"},`+"\n"+
		`  {"name":"Bob & Co","email":"b@x.com","age":"41"}`+"\n"+
		"]\n", out)

	var decoded []map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Len(t, decoded, 2)

	assert.Equal(t, "[]\n", write(t, FormatJSON, nil))
}

func TestOrderedJSON(t *testing.T) {
	obj, err := OrderedJSON([]string{"b", "a", "missing"}, extract.Record{
		"a": `<b>"Tom" & Jerry</b>`,
		"b": "line\nbreak",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"b":"line\nbreak","a":"<b>\"Tom\" & Jerry</b>","missing":""}`, string(obj))
}

func TestWrite_YAML(t *testing.T) {
	out := write(t, FormatYAML, records)

	var decoded []map[string]string
	require.NoError(t, yaml.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "30", decoded[0]["age"])
	assert.Equal(t, "Bob & Co", decoded[1]["name"])
	assert.NotContains(t, decoded[1], "ignored")

	assert.Less(t, strings.Index(out, "name:"), strings.Index(out, "email:"))
	assert.Less(t, strings.Index(out, "email:"), strings.Index(out, "age:"))
}

func TestWrite_CSV(t *testing.T) {
	out := write(t, FormatCSV, records)
	assert.Equal(t, "name,email,age\nAnn,a@x.com,30\nBob & Co,b@x.com,41\n", out)

	assert.Equal(t, "name,email,age\n", write(t, FormatCSV, nil))
}

func TestWrite_XML(t *testing.T) {
	out := write(t, FormatXML, records)

	assert.True(t, strings.HasPrefix(out, xml.Header))
	assert.Contains(t, out, "<name>Bob &amp; Co</name>")
	assert.NotContains(t, out, "ignored")

	var doc struct {
		Records []struct {
			Name  string `xml:"name"`
			Email string `xml:"email"`
			Age   string `xml:"age"`
		} `xml:"record"`
	}
	require.NoError(t, xml.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Records, 2)
	assert.Equal(t, "Ann", doc.Records[0].Name)
	assert.Equal(t, "Bob & Co", doc.Records[1].Name)
	assert.Equal(t, "41", doc.Records[1].Age)
}

func TestWrite_UnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, "pdf", columns, records)
	assert.True(t, errors.Is(err, ErrUnknownFormat))
	assert.False(t, IsKnown("pdf"))
	assert.True(t, IsKnown("XML"))
}

func TestElementName(t *testing.T) {
	tests := map[string]string{
		"name":       "name",
		"first name": "first_name",
		"2fa":        "_2fa",
		"e-mail":     "e-mail",
		"xmlns":      "_xmlns",
		"":           "_",
	}
	for in, want := range tests {
		assert.Equal(t, want, ElementName(in), in)
	}
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json", ContentType("json"))
	assert.Equal(t, "text/csv; charset=utf-8", ContentType("CSV"))
}
