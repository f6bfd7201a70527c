package n5

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/janelia-flyem/lmtconvert/core"
)

// DataType is the element type of a dataset.
type DataType string

const (
	Uint8   DataType = "uint8"
	Uint16  DataType = "uint16"
	Uint32  DataType = "uint32"
	Uint64  DataType = "uint64"
	Int8    DataType = "int8"
	Int16   DataType = "int16"
	Int32   DataType = "int32"
	Int64   DataType = "int64"
	Float32 DataType = "float32"
	Float64 DataType = "float64"
	Object  DataType = "object"
)

const datasetSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["dimensions", "blockSize", "dataType"],
	"properties": {
		"dimensions": {
			"type": "array",
			"minItems": 1,
			"items": {"type": "integer", "minimum": 1}
		},
		"blockSize": {
			"type": "array",
			"minItems": 1,
			"items": {"type": "integer", "minimum": 1, "maximum": 4294967295}
		},
		"dataType": {
			"enum": ["uint8", "uint16", "uint32", "uint64", "int8", "int16", "int32", "int64",
				"float32", "float64", "object"]
		},
		"compression": {
			"type": "object",
			"required": ["type"],
			"properties": {
				"type": {"type": "string"},
				"level": {"type": "integer"},
				"useZlib": {"type": "boolean"}
			}
		},
		"compressionType": {"type": "string"},
		"isLabelMultiset": {"type": "boolean"}
	}
}`

var compiledSchema *jsonschema.Schema

func init() {
	var err error
	if compiledSchema, err = jsonschema.CompileString("n5-dataset.json", datasetSchema); err != nil {
		panic(fmt.Sprintf("bad dataset attributes schema: %v", err))
	}
}

// known attribute keys; anything else is carried in Extra.
var datasetKeys = map[string]bool{
	"dimensions":      true,
	"blockSize":       true,
	"dataType":        true,
	"compression":     true,
	"compressionType": true,
	"isLabelMultiset": true,
}

// DatasetAttributes are the parsed contents of a dataset's attributes.json.
type DatasetAttributes struct {
	Dimensions      []uint64
	BlockSize       []uint32
	DataType        DataType
	Compression     Compression
	IsLabelMultiset bool

	// Extra holds any other attributes, preserved when rewritten.
	Extra map[string]json.RawMessage
}

// NewDatasetAttributes returns attributes for a dataset of the given geometry.
func NewDatasetAttributes(geom core.Geometry, dataType DataType, c Compression) *DatasetAttributes {
	a := &DatasetAttributes{
		Dimensions:  make([]uint64, len(geom.Dimensions)),
		BlockSize:   make([]uint32, len(geom.BlockSize)),
		DataType:    dataType,
		Compression: c,
	}
	copy(a.Dimensions, geom.Dimensions)
	copy(a.BlockSize, geom.BlockSize)
	return a
}

// Geometry returns the dimensions and block size as a core.Geometry.
func (a *DatasetAttributes) Geometry() core.Geometry {
	return core.Geometry{Dimensions: a.Dimensions, BlockSize: a.BlockSize}
}

// ParseDatasetAttributes validates and decodes attributes.json contents.
// A legacy "compressionType" string is accepted when no "compression" object exists.
func ParseDatasetAttributes(data []byte) (*DatasetAttributes, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, errors.Wrap(err, "bad dataset attributes JSON")
	}
	if err := compiledSchema.Validate(v); err != nil {
		return nil, errors.Wrap(err, "invalid dataset attributes")
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	a := new(DatasetAttributes)
	if err := json.Unmarshal(raw["dimensions"], &a.Dimensions); err != nil {
		return nil, errors.Wrap(err, "bad dimensions")
	}
	if err := json.Unmarshal(raw["blockSize"], &a.BlockSize); err != nil {
		return nil, errors.Wrap(err, "bad blockSize")
	}
	if err := json.Unmarshal(raw["dataType"], &a.DataType); err != nil {
		return nil, errors.Wrap(err, "bad dataType")
	}
	if c, found := raw["compression"]; found {
		if err := json.Unmarshal(c, &a.Compression); err != nil {
			return nil, errors.Wrap(err, "bad compression")
		}
	} else if ct, found := raw["compressionType"]; found {
		var compressionType string
		if err := json.Unmarshal(ct, &compressionType); err != nil {
			return nil, errors.Wrap(err, "bad compressionType")
		}
		a.Compression = DefaultCompression(compressionType)
	} else {
		a.Compression = DefaultCompression(CompressionRaw)
	}
	if lm, found := raw["isLabelMultiset"]; found {
		if err := json.Unmarshal(lm, &a.IsLabelMultiset); err != nil {
			return nil, errors.Wrap(err, "bad isLabelMultiset")
		}
	}
	for k, v := range raw {
		if datasetKeys[k] {
			continue
		}
		if a.Extra == nil {
			a.Extra = make(map[string]json.RawMessage)
		}
		a.Extra[k] = v
	}
	if err := a.Geometry().Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid dataset attributes")
	}
	return a, nil
}

func (a *DatasetAttributes) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, len(a.Extra)+5)
	for k, v := range a.Extra {
		m[k] = v
	}
	m["dimensions"] = a.Dimensions
	m["blockSize"] = a.BlockSize
	m["dataType"] = a.DataType
	m["compression"] = a.Compression
	if a.IsLabelMultiset {
		m["isLabelMultiset"] = true
	}
	return json.Marshal(m)
}
