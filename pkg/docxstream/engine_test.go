package docxstream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func mustDecodeData(t *testing.T, src string) PlaceholderMap {
	t.Helper()
	data, err := DecodeData(strings.NewReader(src))
	if err != nil {
		t.Fatalf("DecodeData() error = %v", err)
	}
	return data
}

// assertOrder fails unless every needle occurs in out, in the given order.
func assertOrder(t *testing.T, out string, needles ...string) {
	t.Helper()
	last := -1
	for _, n := range needles {
		idx := strings.Index(out[last+1:], n)
		if idx < 0 {
			t.Fatalf("output missing %q after offset %d:\n%s", n, last, out)
		}
		last += 1 + idx
	}
}

func TestEnginePlainSubstitution(t *testing.T) {
	doc := wrapBody(paragraphXML("{{title}}") + paragraphXML("keep {{title}}") + paragraphXML("{{missing}}"))
	out, _, _ := processBody(t, doc, PlaceholderMap{"{{title}}": "Report & Co"})

	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`,
		`<w:t>Report &amp; Co</w:t>`,
		`<w:t>keep {{title}}</w:t>`,
		`<w:r><w:t/></w:r>`,
		`xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s\n%s", want, out)
		}
	}
}

func TestEngineLeavesUntouchedMarkupAlone(t *testing.T) {
	doc := wrapBody(`<w:p><w:pPr><w:jc w:val="center"/></w:pPr><!-- note --><w:r><w:rPr><w:b/></w:rPr><w:t xml:space="preserve"> a &lt; b </w:t></w:r></w:p>`)
	out, _, _ := processBody(t, doc, nil)
	if out != doc {
		t.Errorf("output differs from input:\n got %s\nwant %s", out, doc)
	}
}

func TestEngineExpandsTableRows(t *testing.T) {
	doc := wrapBody(tableXML(
		rowXML("Name", "Age"),
		rowXML("{{#users}}[name]", "[age]"),
		rowXML("Footer", ""),
	))
	data := mustDecodeData(t, `{"{{#users}}": [
		{"name": "Ann", "age": 30},
		{"name": "Bob", "age": 41},
		{"name": "Cy", "age": 30}
	]}`)

	out, engine, _ := processBody(t, doc, data)

	if got := strings.Count(out, "<w:tr>"); got != 5 {
		t.Errorf("output has %d rows, want 5 (header, 3 data, footer)", got)
	}
	assertOrder(t, out,
		`<w:tblPr>`,
		`<w:t>Name</w:t>`, `<w:t>Age</w:t>`,
		`<w:t>Ann</w:t>`, `<w:t>30.00</w:t>`,
		`<w:t>Bob</w:t>`, `<w:t>41.00</w:t>`,
		`<w:t>Cy</w:t>`, `<w:t>30.00</w:t>`,
		`<w:t>Footer</w:t>`,
	)
	if strings.Contains(out, "{{#users}}") || strings.Contains(out, "[name]") {
		t.Error("template tokens leaked into the output")
	}
	if strings.Contains(out, "w:vMerge") {
		t.Error("distinct values were merged")
	}

	want := Stats{Tables: 1, TablesExpanded: 1, RowsGenerated: 3}
	if got := engine.Stats(); got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}
}

func TestEngineMergesEqualCells(t *testing.T) {
	doc := wrapBody(tableXML(rowXML("{{#rows}}[region]", "[city]")))
	data := mustDecodeData(t, `{"{{#rows}}": [
		{"region": "North", "city": "Oslo"},
		{"region": "North", "city": "Bergen"},
		{"region": "North", "city": "Bergen"},
		{"region": "South", "city": "Rome"}
	]}`)

	out, _, _ := processBody(t, doc, data)

	restart := `<w:tc><w:tcPr><w:vMerge w:val="restart"/></w:tcPr><w:p><w:r><w:t>`
	cont := `<w:tc><w:tcPr><w:vMerge w:val="continue"/></w:tcPr><w:p><w:r><w:t/></w:r></w:p></w:tc>`

	assertOrder(t, out,
		restart+`North</w:t>`, `<w:t>Oslo</w:t>`,
		cont, restart+`Bergen</w:t>`,
		cont, cont,
		`<w:tc><w:p><w:r><w:t>South</w:t>`, `<w:tc><w:p><w:r><w:t>Rome</w:t>`,
	)
	if got := strings.Count(out, "North"); got != 1 {
		t.Errorf("North appears %d times, want 1", got)
	}
	if got := strings.Count(out, "Bergen"); got != 1 {
		t.Errorf("Bergen appears %d times, want 1", got)
	}
}

func TestEngineMergeKeepsCellProperties(t *testing.T) {
	cell := `<w:tc><w:tcPr><w:tcW w:w="2000" w:type="dxa"/><w:vMerge/><w:shd w:fill="FFFF00"/></w:tcPr>` +
		paragraphXML("{{#rows}}[group]") + `</w:tc>`
	doc := wrapBody(tableXML(`<w:tr>` + cell + `</w:tr>`))
	data := mustDecodeData(t, `{"{{#rows}}": [{"group": "A"}, {"group": "A"}]}`)

	out, _, _ := processBody(t, doc, data)

	for _, want := range []string{
		`<w:tcPr><w:tcW w:w="2000" w:type="dxa"/><w:vMerge w:val="restart"/><w:shd w:fill="FFFF00"/></w:tcPr>`,
		`<w:tcPr><w:tcW w:w="2000" w:type="dxa"/><w:vMerge w:val="continue"/><w:shd w:fill="FFFF00"/></w:tcPr>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s\n%s", want, out)
		}
	}
	if strings.Contains(out, `<w:vMerge/>`) {
		t.Error("template w:vMerge was kept next to the generated one")
	}
}

func TestEngineMergeKeepsCellPropertiesInIndentedRows(t *testing.T) {
	cell := "<w:tc>\n    <w:tcPr><w:tcW w:w=\"100\" w:type=\"dxa\"/></w:tcPr>\n    " +
		paragraphXML("{{#items}}[name]") + "\n  </w:tc>"
	doc := wrapBody(tableXML("<w:tr>\n  " + cell + "\n</w:tr>"))
	data := mustDecodeData(t, `{"{{#items}}": [{"name": "A"}, {"name": "A"}]}`)

	out, _, _ := processBody(t, doc, data)

	if got := strings.Count(out, "<w:tcPr>"); got != 2 {
		t.Errorf("found %d <w:tcPr> elements, want one per generated cell\n%s", got, out)
	}
	for _, want := range []string{
		"<w:tc>\n    <w:tcPr><w:tcW w:w=\"100\" w:type=\"dxa\"/><w:vMerge w:val=\"restart\"/></w:tcPr>",
		"<w:tc>\n    <w:tcPr><w:tcW w:w=\"100\" w:type=\"dxa\"/><w:vMerge w:val=\"continue\"/></w:tcPr>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}

func TestEngineFlattensNestedArrays(t *testing.T) {
	doc := wrapBody(tableXML(rowXML("{{#users}}[name]", "[pets.name]", "[$index]")))
	data := mustDecodeData(t, `{"{{#users}}": [
		{"name": "Ann", "pets": [{"name": "Rex"}, {"name": "Tom"}]},
		{"name": "Bob", "pets": [{"name": "Kit"}]}
	]}`)

	out, engine, _ := processBody(t, doc, data)

	if got := engine.Stats().RowsGenerated; got != 3 {
		t.Errorf("RowsGenerated = %d, want 3", got)
	}
	assertOrder(t, out,
		`<w:vMerge w:val="restart"/></w:tcPr><w:p><w:r><w:t>Ann</w:t>`, `<w:t>Rex</w:t>`, `<w:t>0</w:t>`,
		`<w:vMerge w:val="continue"/>`, `<w:t>Tom</w:t>`, `<w:t>1</w:t>`,
		`<w:t>Bob</w:t>`, `<w:t>Kit</w:t>`, `<w:t>2</w:t>`,
	)
}

func TestEngineKeepsSupersededRowsOut(t *testing.T) {
	doc := wrapBody(tableXML(
		rowXML("{{#rows}}[old]"),
		rowXML("[v]"),
	))
	data := mustDecodeData(t, `{"{{#rows}}": [{"v": "x", "old": "stale"}, {"v": "y", "old": "stale"}]}`)

	out, _, _ := processBody(t, doc, data)
	if strings.Contains(out, "stale") || strings.Contains(out, "[old]") {
		t.Errorf("superseded data row was emitted:\n%s", out)
	}
	assertOrder(t, out, `<w:t>x</w:t>`, `<w:t>y</w:t>`)
}

func TestEngineTableFallback(t *testing.T) {
	tests := []struct {
		name string
		data PlaceholderMap
	}{
		{"loop key missing", PlaceholderMap{"{{title}}": "T"}},
		{"loop value not an array", PlaceholderMap{"{{title}}": "T", "{{#rows}}": "nope"}},
	}
	doc := wrapBody(tableXML(
		rowXML("{{title}}"),
		rowXML("{{#rows}}[name]"),
		rowXML("After"),
	))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, engine, _ := processBody(t, doc, tt.data)
			if got := strings.Count(out, "<w:tr>"); got != 3 {
				t.Errorf("output has %d rows, want 3", got)
			}
			assertOrder(t, out, `<w:t>T</w:t>`, `<w:t>[name]</w:t>`, `<w:t>After</w:t>`)
			if got := engine.Stats(); got.Tables != 1 || got.TablesExpanded != 0 {
				t.Errorf("Stats() = %+v", got)
			}
		})
	}
}

func TestEngineEmptyLoopArray(t *testing.T) {
	doc := wrapBody(tableXML(rowXML("Head"), rowXML("{{#rows}}[v]")))
	out, _, _ := processBody(t, doc, PlaceholderMap{"{{#rows}}": []any{}})
	if got := strings.Count(out, "<w:tr>"); got != 1 {
		t.Errorf("output has %d rows, want only the header", got)
	}
}

func TestEngineEmbedsImages(t *testing.T) {
	logo := testPNGBase64(t, 800, 600)
	doc := wrapBody(paragraphXML("{{logo}}") + paragraphXML("{{title}}"))

	out, engine, images := processBody(t, doc, PlaceholderMap{"{{logo}}": logo, "{{title}}": "Hello"})

	if len(images.Images()) != 1 {
		t.Fatalf("registry holds %d images, want 1", len(images.Images()))
	}
	ref := images.Images()[0].ImageRef
	assertOrder(t, out,
		`<w:p><w:r><w:drawing `,
		`<wp:extent cx="1800000" cy="1350000"/>`,
		`r:embed="`+ref.RelID+`"`,
		`</w:drawing></w:r></w:p>`,
		`<w:t>Hello</w:t>`,
	)
	if strings.Contains(out, logo[:20]) {
		t.Error("base64 payload leaked into the document")
	}
	if engine.Stats().Images != 1 {
		t.Errorf("Stats().Images = %d, want 1", engine.Stats().Images)
	}
}

func TestEngineEmbedsImagesInRows(t *testing.T) {
	first := testPNGBase64(t, 10, 10)
	second := testPNGBase64(t, 20, 10)
	doc := wrapBody(tableXML(rowXML("{{#items}}[name]", "[@img]")))
	data := PlaceholderMap{"{{#items}}": []any{
		map[string]any{"name": "a", "img": first},
		map[string]any{"name": "b", "img": second},
	}}

	out, _, images := processBody(t, doc, data)

	if got := len(images.Images()); got != 2 {
		t.Fatalf("registry holds %d images, want 2", got)
	}
	if got := strings.Count(out, "<w:drawing "); got != 2 {
		t.Errorf("output has %d drawings, want 2", got)
	}
	assertOrder(t, out,
		`<w:t>a</w:t>`, `<w:r><w:drawing `, `r:embed="rId8"`,
		`<w:t>b</w:t>`, `<w:r><w:drawing `, `r:embed="rId9"`,
	)
}

func TestEngineInvalidImagePayload(t *testing.T) {
	doc := wrapBody(paragraphXML("{{logo}}"))
	engine := NewEngine(PlaceholderMap{"{{logo}}": "iVBORw0KGgo%%%"}, nil, nil)
	engine.SetLogger(NewLogger(io.Discard, LogOff))

	err := engine.Process(context.Background(), strings.NewReader(doc), io.Discard)
	if !IsImageError(err) {
		t.Errorf("Process() error = %v, want an image error", err)
	}
}

func TestEngineErrors(t *testing.T) {
	nested := wrapBody(tableXML(`<w:tr><w:tc>` + tableXML(rowXML("inner")) + `</w:tc></w:tr>`))

	tests := []struct {
		name    string
		doc     string
		wantIs  error
		wantTpl bool
	}{
		{name: "nested table", doc: nested, wantIs: ErrNestedTable, wantTpl: true},
		{name: "mismatched tags", doc: wrapBody(`<w:p><w:r></w:p>`), wantTpl: true},
		{name: "truncated table", doc: `<w:document><w:body><w:tbl><w:tr>`, wantTpl: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(nil, nil, nil)
			engine.SetLogger(NewLogger(io.Discard, LogOff))
			err := engine.Process(context.Background(), strings.NewReader(tt.doc), io.Discard)
			if err == nil {
				t.Fatal("Process() succeeded, want error")
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("Process() error = %v, want %v", err, tt.wantIs)
			}
			if tt.wantTpl && !IsTemplateError(err) {
				t.Errorf("Process() error %T is not a template error", err)
			}
		})
	}
}

func TestEngineHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	doc := wrapBody(tableXML(rowXML("{{#rows}}[v]")))
	engine := NewEngine(PlaceholderMap{"{{#rows}}": []any{map[string]any{"v": "1"}}}, nil, nil)
	engine.SetLogger(NewLogger(io.Discard, LogOff))

	var out bytes.Buffer
	if err := engine.Process(ctx, strings.NewReader(doc), &out); !errors.Is(err, context.Canceled) {
		t.Errorf("Process() error = %v, want context.Canceled", err)
	}
}

type shoutingFormatter struct{ *DefaultFormatter }

func (shoutingFormatter) Replace(text string, data PlaceholderMap) string {
	return strings.ToUpper(text)
}

func TestEngineUsesCustomFormatter(t *testing.T) {
	doc := wrapBody(paragraphXML("quiet"))
	engine := NewEngine(nil, shoutingFormatter{NewDefaultFormatter()}, nil)
	engine.SetLogger(NewLogger(io.Discard, LogOff))

	var out bytes.Buffer
	if err := engine.Process(context.Background(), strings.NewReader(doc), &out); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !strings.Contains(out.String(), "<w:t>QUIET</w:t>") {
		t.Errorf("custom formatter was not used:\n%s", out.String())
	}
}
