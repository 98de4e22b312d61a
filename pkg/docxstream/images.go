package docxstream

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"math"
	"strings"

	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	emuPerInch = 914400

	pngBase64Signature  = "iVBORw0KGgo"
	jpegBase64Signature = "/9j/"

	imageExtPNG  = "png"
	imageExtJPEG = "jpg"

	mediaPathPrefix     = "word/media/"
	imageFilenamePrefix = "image_"
	imageNamePrefix     = "Picture "
	defaultImageDescr   = "Generated Image"
	xmlnsDrawingML      = "http://schemas.openxmlformats.org/drawingml/2006/main"
	xmlnsPicture        = "http://schemas.openxmlformats.org/drawingml/2006/picture"
	xmlnsWordDrawing    = "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
	xmlnsRelationships  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
)

// ImageRef identifies an embedded image from the document's side: the
// relationship the drawing points at, the drawing id and its size in EMU.
type ImageRef struct {
	RelID    string
	ID       int
	Width    int64
	Height   int64
	Filename string
}

// ImageRecord is an accepted image waiting to be written to word/media.
type ImageRecord struct {
	ImageRef
	Extension string
	Data      []byte
}

// ImageRegistry decodes base64 image payloads, sizes them and keeps their
// bytes until Flush writes them to the package. One registry serves exactly
// one generation pass.
type ImageRegistry struct {
	dpi           float64
	maxEMU        float64
	defaultWidth  float64
	defaultHeight float64

	rels    *RelationshipAllocator
	images  []ImageRecord
	newName func() string
}

// NewImageRegistry creates a registry that allocates relationships from rels
// and sizes images using cfg.
func NewImageRegistry(cfg *Config, rels *RelationshipAllocator) *ImageRegistry {
	cfg = NewConfigWithDefaults(cfg)
	return &ImageRegistry{
		dpi:           cfg.DPI,
		maxEMU:        cfg.MaxImageEMU,
		defaultWidth:  cfg.DefaultImageWidth,
		defaultHeight: cfg.DefaultImageHeight,
		rels:          rels,
		newName:       newImageID,
	}
}

// IsImagePayload reports whether a rendered value is a base64 PNG or JPEG.
func IsImagePayload(value string) bool {
	return strings.HasPrefix(value, pngBase64Signature) || strings.HasPrefix(value, jpegBase64Signature)
}

// Submit decodes payload and registers it for embedding. It only fails when
// the payload is not valid base64; an unreadable header falls back to the
// default size.
func (r *ImageRegistry) Submit(payload string) (ImageRef, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		prefix := payload
		if len(prefix) > 16 {
			prefix = prefix[:16]
		}
		return ImageRef{}, &ImageError{Prefix: prefix, Cause: err}
	}

	ext := imageExtension(data)
	filename := imageFilenamePrefix + r.newName() + "." + ext
	relID, id := r.rels.Allocate(filename)

	width, height := r.size(data)
	ref := ImageRef{
		RelID:    relID,
		ID:       id,
		Width:    width,
		Height:   height,
		Filename: filename,
	}
	r.images = append(r.images, ImageRecord{ImageRef: ref, Extension: ext, Data: data})
	return ref, nil
}

// Images returns the accepted images in submission order.
func (r *ImageRegistry) Images() []ImageRecord {
	return r.images
}

// Extensions returns the distinct file extensions of accepted images.
func (r *ImageRegistry) Extensions() []string {
	seen := make(map[string]bool)
	var exts []string
	for _, img := range r.images {
		if !seen[img.Extension] {
			seen[img.Extension] = true
			exts = append(exts, img.Extension)
		}
	}
	return exts
}

// Flush writes every accepted image to word/media. Image data is already
// compressed, so entries are stored.
func (r *ImageRegistry) Flush(w EntryWriter) error {
	for _, img := range r.images {
		path := mediaPathPrefix + img.Filename
		if err := w.WriteWhole(path, zip.Store, img.Data); err != nil {
			return NewDocumentError("write", path, err)
		}
	}
	return nil
}

// size converts the image's pixel size to EMU and clamps it.
func (r *ImageRegistry) size(data []byte) (int64, int64) {
	widthPx, heightPx, err := Dimensions(data)
	if err != nil {
		// Formats the header sniffer does not know (bmp, tiff, webp, gif).
		if cfg, _, cerr := image.DecodeConfig(bytes.NewReader(data)); cerr == nil {
			widthPx, heightPx, err = cfg.Width, cfg.Height, nil
		}
	}

	width, height := r.defaultWidth, r.defaultHeight
	if err == nil && widthPx > 0 && heightPx > 0 {
		width = float64(widthPx) * emuPerInch / r.dpi
		height = float64(heightPx) * emuPerInch / r.dpi
	}
	return fitEMU(width, height, r.maxEMU)
}

// fitEMU scales both sides down by the same factor when either exceeds
// maxEMU, so the larger side ends up exactly at the cap.
func fitEMU(width, height, maxEMU float64) (int64, int64) {
	scale := math.Max(width/maxEMU, height/maxEMU)
	if scale > 1 {
		width /= scale
		height /= scale
	}
	return int64(math.Round(width)), int64(math.Round(height))
}

// imageExtension classifies raw bytes. Anything that is not recognisably
// JPEG is stored as PNG.
func imageExtension(data []byte) string {
	if bytes.HasPrefix(data, pngSignature) {
		return imageExtPNG
	}
	if bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}) {
		return imageExtJPEG
	}
	return imageExtPNG
}

func newImageID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// DrawingXML renders the inline drawing for ref. The fragment is a run child
// (<w:drawing>) and declares the wp and r prefixes itself, so it stays valid
// in documents whose root does not.
func DrawingXML(ref ImageRef, name, descr string) string {
	var b strings.Builder
	b.Grow(1024)
	fmt.Fprintf(&b, `<w:drawing xmlns:wp="%s" xmlns:r="%s">`, xmlnsWordDrawing, xmlnsRelationships)
	b.WriteString(`<wp:inline distT="0" distB="0" distL="114300" distR="114300">`)
	fmt.Fprintf(&b, `<wp:extent cx="%d" cy="%d"/>`, ref.Width, ref.Height)
	b.WriteString(`<wp:effectExtent l="0" t="0" r="24765" b="24130"/>`)
	fmt.Fprintf(&b, `<wp:docPr id="%d" name="%s" descr="%s"/>`, ref.ID, escapeAttr(name), escapeAttr(descr))
	fmt.Fprintf(&b, `<wp:cNvGraphicFramePr><a:graphicFrameLocks xmlns:a="%s" noChangeAspect="1"/></wp:cNvGraphicFramePr>`, xmlnsDrawingML)
	fmt.Fprintf(&b, `<a:graphic xmlns:a="%s"><a:graphicData uri="%s">`, xmlnsDrawingML, xmlnsPicture)
	fmt.Fprintf(&b, `<pic:pic xmlns:pic="%s"><pic:nvPicPr>`, xmlnsPicture)
	fmt.Fprintf(&b, `<pic:cNvPr id="%d" name="%s" descr="%s"/>`, ref.ID, escapeAttr(name), escapeAttr(descr))
	b.WriteString(`<pic:cNvPicPr><a:picLocks noChangeAspect="1"/></pic:cNvPicPr></pic:nvPicPr>`)
	fmt.Fprintf(&b, `<pic:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>`, ref.RelID)
	fmt.Fprintf(&b, `<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm>`, ref.Width, ref.Height)
	b.WriteString(`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr></pic:pic></a:graphicData></a:graphic>`)
	b.WriteString(`</wp:inline></w:drawing>`)
	return b.String()
}

// imageDrawing renders ref with the default name and description.
func imageDrawing(ref ImageRef) string {
	return DrawingXML(ref, imageNamePrefix+fmt.Sprint(ref.ID), defaultImageDescr)
}

var attrReplacer = strings.NewReplacer(`&`, "&amp;", `<`, "&lt;", `"`, "&quot;")

func escapeAttr(s string) string {
	return attrReplacer.Replace(s)
}
