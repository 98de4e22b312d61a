// Package docxstream fills DOCX templates with structured data in a single
// streaming pass.
//
// The document body is never loaded as a tree. word/document.xml is read as a
// flat event stream, rewritten where placeholders appear and written straight
// into the output package. Only one table at a time is held in memory.
//
// # Quick Start
//
//	data, err := docxstream.DecodeData(jsonFile)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	gen := docxstream.NewGenerator(nil)
//	if err := gen.GenerateFile(ctx, "template.docx", "out/result.docx", data); err != nil {
//	    log.Fatal(err)
//	}
//
// # Template Syntax
//
// Paragraph placeholders replace a whole text node. Map keys keep their braces:
//
//	{{title}}                   - looked up as data["{{title}}"]
//
// A table whose data row starts with a loop marker is expanded once per
// record of the bound array. Nested arrays and objects are flattened into
// dotted keys, producing one row per combination:
//
//	{{#users}}[name]  [pets.name]  [^city]  [$index]
//
// Row tokens support modifiers:
//
//	[key]     - value of key
//	[^key]    - upper-cased value
//	[@key]    - raw value, for image payloads
//	[$index]  - zero-based row index
//
// Numbers render with two decimals. Unresolved keys render as an empty string.
// Equal consecutive cell values in an expanded table are merged vertically
// with w:vMerge.
//
// # Images
//
// A value that is a base64 PNG or JPEG replaces its text element with an
// inline drawing. The image is sized from its pixel dimensions at Config.DPI,
// capped at Config.MaxImageEMU, stored under word/media/ and given the next
// free relationship id.
//
// # Configuration
//
// Config can be set per Generator or globally, and is read from the
// environment on start-up:
//
//	DOCXSTREAM_DPI            - pixels per inch (default 96)
//	DOCXSTREAM_MAX_IMAGE_EMU  - image size cap (default 1800000)
//	DOCXSTREAM_LOG_LEVEL      - debug, info, warn, error, off
//	DOCXSTREAM_TEMP_DIR       - where the body is spooled
//
// # Errors
//
// Structural problems are reported as *TemplateError (nested tables wrap
// ErrNestedTable), package problems as *DocumentError and undecodable image
// payloads as *ImageError. All work with errors.Is and errors.As.
package docxstream
