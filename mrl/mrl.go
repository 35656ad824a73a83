// Package mrl defines the resource locator used to address a logical,
// versionless resource inside a repository. An MRL carries no information
// about versions or files; it is purely a lookup key that a repository
// resolves into metadata.
package mrl

import (
	"fmt"
	"strings"
)

// Category groups resources by the domain they belong to.
type Category string

const (
	CategoryCV        Category = "cv"
	CategoryNLP       Category = "nlp"
	CategoryAudio     Category = "audio"
	CategoryTabular   Category = "tabular"
	CategoryUndefined Category = "undefined"
)

// MRL is an immutable identifier for a logical resource. Two MRLs are equal
// exactly when all three fields are equal.
type MRL struct {
	category Category
	group    string
	name     string
}

// New creates an MRL from a category, a dotted group identifier
// (e.g. "ai.djl.basicdataset") and a resource name.
func New(category Category, group, name string) MRL {
	return MRL{category: category, group: group, name: name}
}

func (m MRL) Category() Category { return m.category }

func (m MRL) Group() string { return m.group }

func (m MRL) Name() string { return m.name }

// Path returns the repository-relative path of the resource. Dots in the
// group identifier become path separators, so the path nests resources the
// way a Maven-style layout would.
func (m MRL) Path() string {
	group := strings.ReplaceAll(m.group, ".", "/")
	return string(m.category) + "/" + group + "/" + m.name
}

// String returns a canonical textual form, usable as a log attribute.
func (m MRL) String() string {
	return fmt.Sprintf("mrl:%s", m.Path())
}

// IsZero reports whether the MRL has no fields set.
func (m MRL) IsZero() bool {
	return m == MRL{}
}
