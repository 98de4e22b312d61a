// test_helpers_test.go builds small in-memory packages and fixtures shared by
// the package tests.

package docxstream

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"strings"
	"testing"
)

const testDocumentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/><Relationship Id="rId7" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/settings" Target="settings.xml"/></Relationships>`

const testContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`

// wrapBody places inner inside a minimal w:document.
func wrapBody(inner string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
		`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">` +
		`<w:body>` + inner + `</w:body></w:document>`
}

func paragraphXML(text string) string {
	return `<w:p><w:r><w:t>` + text + `</w:t></w:r></w:p>`
}

func cellXML(text string) string {
	return `<w:tc>` + paragraphXML(text) + `</w:tc>`
}

func rowXML(cells ...string) string {
	var b strings.Builder
	b.WriteString(`<w:tr>`)
	for _, c := range cells {
		b.WriteString(cellXML(c))
	}
	b.WriteString(`</w:tr>`)
	return b.String()
}

func tableXML(rows ...string) string {
	return `<w:tbl><w:tblPr><w:tblW w:w="0" w:type="auto"/></w:tblPr>` + strings.Join(rows, "") + `</w:tbl>`
}

type testEntry struct {
	name string
	body string
}

// createDOCXBytes builds a package with the usual parts around documentXML.
func createDOCXBytes(t testing.TB, documentXML string) []byte {
	t.Helper()
	return createZipBytes(t,
		testEntry{"[Content_Types].xml", testContentTypes},
		testEntry{"_rels/.rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/></Relationships>`},
		testEntry{"word/document.xml", documentXML},
		testEntry{"word/_rels/document.xml.rels", testDocumentRels},
		testEntry{"word/styles.xml", `<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"/>`},
	)
}

func createZipBytes(t testing.TB, entries ...testEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		fw, err := w.Create(e.name)
		if err != nil {
			t.Fatalf("create %s: %v", e.name, err)
		}
		if _, err := io.WriteString(fw, e.body); err != nil {
			t.Fatalf("write %s: %v", e.name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// readZipEntries returns the entries of a package and their order.
func readZipEntries(t testing.TB, data []byte) (map[string][]byte, []string) {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open output zip: %v", err)
	}
	entries := make(map[string][]byte, len(zr.File))
	var order []string
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		entries[f.Name] = content
		order = append(order, f.Name)
	}
	return entries, order
}

// processBody runs an engine over documentXML and returns the output body.
func processBody(t testing.TB, documentXML string, data PlaceholderMap) (string, *Engine, *ImageRegistry) {
	t.Helper()
	rels := NewRelationshipAllocator()
	rels.Initialize([]byte(testDocumentRels))
	images := NewImageRegistry(nil, rels)
	engine := NewEngine(data, nil, images)
	engine.SetLogger(NewLogger(io.Discard, LogOff))

	var out bytes.Buffer
	if err := engine.Process(context.Background(), strings.NewReader(documentXML), &out); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	return out.String(), engine, images
}

func testImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	return img
}

func testPNG(t testing.TB, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage(width, height)); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func testJPEG(t testing.TB, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testImage(width, height), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func testPNGBase64(t testing.TB, width, height int) string {
	t.Helper()
	return base64.StdEncoding.EncodeToString(testPNG(t, width, height))
}
