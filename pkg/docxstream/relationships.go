package docxstream

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
)

const (
	imageRelationshipType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	relationshipIDPrefix  = "rId"
	relationshipsCloseTag = "</Relationships>"
	emptyRelationshipsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`
)

var relationshipIDRegex = regexp.MustCompile(`Id="rId(\d+)"`)

// RelationshipAllocator hands out relationship ids for new media and splices
// the matching <Relationship> entries into word/_rels/document.xml.rels.
//
// Ids continue after the highest rIdN already present, so existing references
// in the document stay valid. Everything outside the inserted entries is
// preserved byte for byte.
type RelationshipAllocator struct {
	next     int
	pending  []string
	original []byte
	hasDoc   bool
}

// NewRelationshipAllocator returns an allocator starting at rId1.
func NewRelationshipAllocator() *RelationshipAllocator {
	return &RelationshipAllocator{next: 1}
}

// Initialize records the original relationship document and seeds the
// counter with max(N)+1 over every Id="rIdN" found, or 1 when there is none.
func (a *RelationshipAllocator) Initialize(content []byte) {
	maxID := 0
	for _, m := range relationshipIDRegex.FindAllSubmatch(content, -1) {
		if n, err := strconv.Atoi(string(m[1])); err == nil && n > maxID {
			maxID = n
		}
	}
	a.next = maxID + 1
	a.original = content
	a.hasDoc = true
}

// Initialized reports whether Initialize has been called.
func (a *RelationshipAllocator) Initialized() bool {
	return a.hasDoc
}

// Allocate reserves the next id for an image stored as media/{filename}.
// It returns the relationship id ("rId8") and its numeric part (8).
func (a *RelationshipAllocator) Allocate(filename string) (string, int) {
	id := a.next
	a.next++

	relID := relationshipIDPrefix + strconv.Itoa(id)
	a.pending = append(a.pending, fmt.Sprintf(
		`<Relationship Id="%s" Type="%s" Target="media/%s"/>`,
		relID, imageRelationshipType, filename,
	))
	return relID, id
}

// Pending returns the number of relationships allocated but not yet written.
func (a *RelationshipAllocator) Pending() int {
	return len(a.pending)
}

// Finalize returns the relationship document with every allocated entry
// inserted before the closing tag. With nothing allocated the original bytes
// are returned unchanged.
func (a *RelationshipAllocator) Finalize() ([]byte, error) {
	if !a.hasDoc {
		return nil, ErrNoRelationships
	}
	if len(a.pending) == 0 {
		return a.original, nil
	}

	pos := bytes.LastIndex(a.original, []byte(relationshipsCloseTag))
	if pos < 0 {
		return nil, ErrMalformedRelationships
	}

	var buf bytes.Buffer
	buf.Grow(len(a.original) + len(a.pending)*200)
	buf.Write(a.original[:pos])
	buf.WriteString("\n    ")
	for _, rel := range a.pending {
		buf.WriteString(rel)
		buf.WriteString("\n    ")
	}
	buf.Write(a.original[pos:])
	return buf.Bytes(), nil
}
