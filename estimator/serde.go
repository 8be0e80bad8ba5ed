package estimator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/bitly/go-simplejson"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeCSV  = "text/csv"
	ContentTypeAny  = "*/*"
)

type Serializer interface {
	ContentType() string
	Serialize(data interface{}) ([]byte, error)
}

type Deserializer interface {
	Accept() string
	Deserialize(body []byte, contentType string) (interface{}, error)
}

var (
	_ Serializer   = JSONSerializer{}
	_ Serializer   = CSVSerializer{}
	_ Serializer   = RecordSerializer{}
	_ Deserializer = JSONDeserializer{}
	_ Deserializer = CSVDeserializer{}
	_ Deserializer = BytesDeserializer{}
)

type JSONSerializer struct{}

func (JSONSerializer) ContentType() string { return ContentTypeJSON }

func (JSONSerializer) Serialize(data interface{}) ([]byte, error) {
	if raw, ok := data.([]byte); ok {
		return raw, nil
	}
	return json.Marshal(data)
}

// CSVSerializer writes one line per row. Strings and byte slices are sent
// unchanged.
type CSVSerializer struct{}

func (CSVSerializer) ContentType() string { return ContentTypeCSV }

func (CSVSerializer) Serialize(data interface{}) ([]byte, error) {
	switch d := data.(type) {
	case []byte:
		return d, nil
	case string:
		return []byte(d), nil
	case []float64:
		return []byte(csvRow(d)), nil
	case [][]float64:
		rows := make([]string, len(d))
		for i, row := range d {
			rows[i] = csvRow(row)
		}
		return []byte(strings.Join(rows, "\n")), nil
	default:
		return nil, fmt.Errorf("cannot serialize %T as csv", data)
	}
}

func csvRow(row []float64) string {
	fields := make([]string, len(row))
	for i, f := range row {
		fields[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strings.Join(fields, ",")
}

// RecordSerializer writes the dense request format first-party algorithm
// endpoints read: {"instances": [{"features": [...]}, ...]}.
type RecordSerializer struct{}

func (RecordSerializer) ContentType() string { return ContentTypeJSON }

type recordInstance struct {
	Features []float64 `json:"features"`
}

type recordRequest struct {
	Instances []recordInstance `json:"instances"`
}

func (RecordSerializer) Serialize(data interface{}) ([]byte, error) {
	var rows [][]float64
	switch d := data.(type) {
	case []float64:
		rows = [][]float64{d}
	case [][]float64:
		rows = d
	default:
		return nil, fmt.Errorf("cannot serialize %T as records, expected []float64 or [][]float64", data)
	}
	req := recordRequest{Instances: make([]recordInstance, len(rows))}
	for i, row := range rows {
		req.Instances[i] = recordInstance{Features: row}
	}
	return json.Marshal(req)
}

// JSONDeserializer parses responses into a *simplejson.Json.
type JSONDeserializer struct{}

func (JSONDeserializer) Accept() string { return ContentTypeJSON }

func (JSONDeserializer) Deserialize(body []byte, _ string) (interface{}, error) {
	js, err := simplejson.NewJson(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response as JSON: %w", err)
	}
	return js, nil
}

// CSVDeserializer splits the response into rows of fields.
type CSVDeserializer struct{}

func (CSVDeserializer) Accept() string { return ContentTypeCSV }

func (CSVDeserializer) Deserialize(body []byte, _ string) (interface{}, error) {
	lines := bytes.Split(bytes.TrimRight(body, "\n"), []byte("\n"))
	rows := make([][]string, 0, len(lines))
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		rows = append(rows, strings.Split(string(line), ","))
	}
	return rows, nil
}

type BytesDeserializer struct{}

func (BytesDeserializer) Accept() string { return ContentTypeAny }

func (BytesDeserializer) Deserialize(body []byte, _ string) (interface{}, error) {
	return body, nil
}
