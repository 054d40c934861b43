package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/dalemusser/formhub/internal/domain/models"
	"gopkg.in/yaml.v3"
)

// fieldFile is the wrapped layout: a document with a top-level "fields" key,
// as returned by GET /forms/{id}.
type fieldFile struct {
	Fields []models.Field `yaml:"fields"`
}

// readFields loads a field list from path. The file may be YAML or JSON and
// may hold either a bare list or a document with a "fields" key.
func readFields(path string) ([]models.Field, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: "read field list", Err: err}
	}
	return parseFields(data)
}

func parseFields(data []byte) ([]models.Field, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &ExitError{Code: ExitFailure, Message: "field list is empty"}
	}

	var list []models.Field
	if err := yaml.Unmarshal(trimmed, &list); err == nil {
		return list, nil
	}

	var doc fieldFile
	if err := yaml.Unmarshal(trimmed, &doc); err != nil {
		return nil, &ExitError{Code: ExitFailure, Message: "parse field list", Err: err}
	}
	if doc.Fields == nil {
		return nil, &ExitError{Code: ExitFailure, Message: fmt.Sprintf("no fields found in %d bytes of input", len(trimmed))}
	}
	return doc.Fields, nil
}
