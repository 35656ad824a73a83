// Package metadata holds the resolved description of a logical resource: the
// versions (artifacts) available for it, the files (items) each version
// consists of, and the origin base location they are fetched from.
//
// A Metadata document is produced by a repository when it locates a resource
// and is read-only afterwards. Artifacts keep a non-owning back-reference to
// their Metadata so relative item locations can be resolved against the
// document's base URI; Items keep the same kind of back-reference to their
// Artifact. Both links are established by Add (or by Decode, which calls it).
package metadata

import (
	"path"
	"slices"
	"strings"
)

// ItemType distinguishes single-file items from directory items.
type ItemType string

const (
	ItemTypeFile ItemType = "file"
	ItemTypeDir  ItemType = "dir"
)

// Archive kinds an Item may declare. The empty extension means the source
// stream is used verbatim.
const (
	ExtensionZip  = "zip"
	ExtensionTGZ  = "tgz"
	ExtensionGzip = "gzip"
	ExtensionNone = ""
)

// License describes one license the resource is published under. Informational.
type License struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Metadata is the resolved description of a logical resource. All artifacts
// reachable from a Metadata describe versions of the same resource, identified
// by (ResourceType, GroupID, ArtifactID).
type Metadata struct {
	MetadataVersion string             `json:"metadataVersion"`
	ResourceType    string             `json:"resourceType,omitempty"`
	GroupID         string             `json:"groupId"`
	ArtifactID      string             `json:"artifactId"`
	Name            string             `json:"name,omitempty"`
	Description     string             `json:"description,omitempty"`
	Website         string             `json:"website,omitempty"`
	Licenses        map[string]License `json:"licenses,omitempty"`
	Artifacts       []*Artifact        `json:"artifacts"`

	// BaseURI is the origin location the document was discovered at, in the
	// order artifacts resolve relative item locations against. It is not part
	// of the document itself; the locating repository sets it.
	BaseURI string `json:"-"`
}

// Add appends artifacts to the metadata and wires their back-references
// (and those of their items). Decode uses it; programmatically built
// metadata must use it too so ResourceURI and item resolution work.
func (m *Metadata) Add(artifacts ...*Artifact) {
	for _, a := range artifacts {
		a.metadata = m
		for _, item := range a.Files {
			item.artifact = a
		}
		m.Artifacts = append(m.Artifacts, a)
	}
}

// Artifact is one concrete, resolvable version of a resource. Properties are
// an arbitrary string set used for filtering during selection; Files is the
// ordered list of items the version consists of, with unique names.
type Artifact struct {
	Version    string            `json:"version"`
	Snapshot   bool              `json:"snapshot,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
	Files      []*Item           `json:"files,omitempty"`

	metadata *Metadata
}

// Metadata returns the owning metadata document, or nil if the artifact has
// not been added to one.
func (a *Artifact) Metadata() *Metadata {
	return a.metadata
}

// File looks up an item by the name it is filed under.
func (a *Artifact) File(name string) (*Item, bool) {
	for _, item := range a.Files {
		if item.Key() == name {
			return item, true
		}
	}
	return nil, false
}

// HasProperties reports whether every entry of the filter matches a property
// the artifact carries. Properties not named by the filter do not disqualify
// the artifact.
func (a *Artifact) HasProperties(filter map[string]string) bool {
	for k, v := range filter {
		if a.Properties[k] != v {
			return false
		}
	}
	return true
}

// ResourceURI returns the cache-directory key of the artifact: a relative
// path derived from the resource identity, the full property set and the
// version. Properties are encoded as sorted k=v segments, keys included, so
// two artifacts with distinct (identity, version, properties) can never map
// to the same directory.
func (a *Artifact) ResourceURI() string {
	segments := make([]string, 0, 4+len(a.Properties))
	if md := a.metadata; md != nil {
		if md.ResourceType != "" {
			segments = append(segments, md.ResourceType)
		}
		segments = append(segments, strings.ReplaceAll(md.GroupID, ".", "/"), md.ArtifactID)
	}
	keys := make([]string, 0, len(a.Properties))
	for k := range a.Properties {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		segments = append(segments, k+"="+a.Properties[k])
	}
	segments = append(segments, a.Version)
	return path.Join(segments...)
}

// Item describes one file or directory belonging to an artifact. URI may be
// relative to the metadata's base location. Size is informational; zero means
// unknown. SHA256, when set, is the hex digest the fetched source stream must
// match.
type Item struct {
	Name      string   `json:"name,omitempty"`
	URI       string   `json:"uri"`
	Type      ItemType `json:"type,omitempty"`
	Extension string   `json:"extension,omitempty"`
	Size      int64    `json:"size,omitempty"`
	SHA256    string   `json:"sha256,omitempty"`

	artifact *Artifact
	key      string
}

// Artifact returns the owning artifact, or nil if the item is detached.
func (i *Item) Artifact() *Artifact {
	return i.artifact
}

// Key returns the name the item is filed under in the artifact's file
// mapping. It falls back to Name for items built in code.
func (i *Item) Key() string {
	if i.key != "" {
		return i.key
	}
	return i.Name
}

// IsDir reports whether the item is a directory item. An empty type means
// file.
func (i *Item) IsDir() bool {
	return i.Type == ItemTypeDir
}
