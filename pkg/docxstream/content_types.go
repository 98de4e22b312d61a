package docxstream

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

const contentTypesCloseTag = "</Types>"

// extensionContentTypes maps media extensions to their MIME type.
var extensionContentTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"tif":  "image/tiff",
	"webp": "image/webp",
}

type contentTypes struct {
	XMLName  xml.Name             `xml:"Types"`
	Defaults []contentTypeDefault `xml:"Default"`
}

type contentTypeDefault struct {
	Extension   string `xml:"Extension,attr"`
	ContentType string `xml:"ContentType,attr"`
}

// EnsureContentTypeDefaults registers a <Default> entry for every extension
// in exts that [Content_Types].xml does not know yet. New entries are spliced
// before </Types>; the rest of the document is kept byte for byte. content
// is returned unchanged when there is nothing to add.
func EnsureContentTypeDefaults(content []byte, exts []string) ([]byte, error) {
	if len(exts) == 0 {
		return content, nil
	}

	var ct contentTypes
	if err := xml.Unmarshal(content, &ct); err != nil {
		return nil, NewDocumentError("parse", contentTypesPath, err)
	}
	registered := make(map[string]bool, len(ct.Defaults))
	for _, def := range ct.Defaults {
		registered[strings.ToLower(def.Extension)] = true
	}

	var add strings.Builder
	for _, ext := range exts {
		ext = strings.ToLower(ext)
		if ext == "" || registered[ext] {
			continue
		}
		registered[ext] = true

		mime, ok := extensionContentTypes[ext]
		if !ok {
			mime = "image/" + ext
		}
		fmt.Fprintf(&add, `<Default Extension="%s" ContentType="%s"/>`, escapeAttr(ext), escapeAttr(mime))
	}
	if add.Len() == 0 {
		return content, nil
	}

	pos := bytes.LastIndex(content, []byte(contentTypesCloseTag))
	if pos < 0 {
		return nil, NewDocumentError("update", contentTypesPath, fmt.Errorf("missing %s", contentTypesCloseTag))
	}

	var buf bytes.Buffer
	buf.Grow(len(content) + add.Len())
	buf.Write(content[:pos])
	buf.WriteString(add.String())
	buf.Write(content[pos:])
	return buf.Bytes(), nil
}
