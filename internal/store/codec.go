package store

import (
	"encoding/json"
	"path/filepath"
	"strings"

	yaml "gopkg.in/yaml.v3"

	"github.com/ShayCichocki/gantry/pkg/models"
)

// codec marshals a collection for one on-disk format.
type codec interface {
	Marshal(c *models.Collection) ([]byte, error)
	Unmarshal(data []byte, c *models.Collection) error
	Name() string
}

// codecForPath picks the codec from the file extension. JSON is the
// default; .yaml and .yml select the YAML codec.
func codecForPath(path string) codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yamlCodec{}
	default:
		return jsonCodec{}
	}
}

type jsonCodec struct{}

func (jsonCodec) Marshal(c *models.Collection) ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (jsonCodec) Unmarshal(data []byte, c *models.Collection) error {
	return json.Unmarshal(data, c)
}

func (jsonCodec) Name() string { return "json" }

type yamlCodec struct{}

func (yamlCodec) Marshal(c *models.Collection) ([]byte, error) {
	return yaml.Marshal(c)
}

func (yamlCodec) Unmarshal(data []byte, c *models.Collection) error {
	return yaml.Unmarshal(data, c)
}

func (yamlCodec) Name() string { return "yaml" }
