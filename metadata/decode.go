package metadata

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed metadata-schema.json
var rawSchema []byte

const schemaID = "mrl.software/mrl/metadata-schema.json"

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	unmarshaled, err := jsonschema.UnmarshalJSON(bytes.NewReader(rawSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaID, unmarshaled); err != nil {
		return nil, fmt.Errorf("failed to add metadata schema resource: %w", err)
	}
	schema, err := compiler.Compile(schemaID)
	if err != nil {
		return nil, fmt.Errorf("failed to compile metadata schema: %w", err)
	}
	return schema, nil
})

// Decode reads a metadata document, validates it against the embedded JSON
// Schema and returns the decoded Metadata with all back-references wired.
// The caller is expected to set BaseURI to the location the document was
// discovered at.
func Decode(r io.Reader) (*Metadata, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata document: %w", err)
	}

	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse metadata document: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("metadata document is invalid: %w", err)
	}

	var md Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("failed to decode metadata document: %w", err)
	}

	// re-wire: json.Unmarshal filled Artifacts directly, back-references
	// are established through Add.
	artifacts := md.Artifacts
	md.Artifacts = nil
	md.Add(artifacts...)

	return &md, nil
}

// artifactDoc mirrors the document form of an artifact, where files are a
// JSON object keyed by item name.
type artifactDoc struct {
	Version    string            `json:"version"`
	Snapshot   bool              `json:"snapshot,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
	Files      map[string]*Item  `json:"files,omitempty"`
}

// UnmarshalJSON decodes the document form of an artifact. The file map keys
// are sorted for a deterministic item order; a file item without an explicit
// name takes its map key as name. Directory items may keep an empty name,
// which places their content at the artifact's cache root.
func (a *Artifact) UnmarshalJSON(data []byte) error {
	var doc artifactDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	a.Version = doc.Version
	a.Snapshot = doc.Snapshot
	a.Properties = doc.Properties

	keys := make([]string, 0, len(doc.Files))
	for key := range doc.Files {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	a.Files = make([]*Item, 0, len(keys))
	for _, key := range keys {
		item := doc.Files[key]
		if item.Name == "" && !item.IsDir() {
			item.Name = key
		}
		item.key = key
		a.Files = append(a.Files, item)
	}
	return nil
}

// MarshalJSON emits the document form again, keyed by the original item keys.
func (a *Artifact) MarshalJSON() ([]byte, error) {
	doc := artifactDoc{
		Version:    a.Version,
		Snapshot:   a.Snapshot,
		Properties: a.Properties,
	}
	if len(a.Files) > 0 {
		doc.Files = make(map[string]*Item, len(a.Files))
		for _, item := range a.Files {
			doc.Files[item.Key()] = item
		}
	}
	return json.Marshal(doc)
}
