package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/beryl/internal/model"
)

// loadDocuments reads a list of documents from a JSON or YAML file. The
// format is chosen by extension; anything other than .yaml or .yml is JSON.
func loadDocuments(path string) ([]model.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read documents %s", path)
	}
	return parseDocuments(data, filepath.Ext(path))
}

func parseDocuments(data []byte, ext string) ([]model.Document, error) {
	var docs []model.Document
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &docs); err != nil {
			return nil, eris.Wrap(err, "parse yaml documents")
		}
	default:
		if err := json.Unmarshal(data, &docs); err != nil {
			return nil, eris.Wrap(err, "parse json documents")
		}
	}

	for i, d := range docs {
		switch d.SourceType {
		case model.SourceArticle, model.SourceVideo:
		case "":
			docs[i].SourceType = model.SourceArticle
		default:
			return nil, eris.Errorf("document %d: unknown source_type %q", i, d.SourceType)
		}
	}
	return docs, nil
}
