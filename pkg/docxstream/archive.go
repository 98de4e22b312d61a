package docxstream

import (
	"archive/zip"
	"fmt"
	"io"
)

// Fixed package paths.
const (
	documentPath      = "word/document.xml"
	relationshipsPath = "word/_rels/document.xml.rels"
	contentTypesPath  = "[Content_Types].xml"
)

// EntryReader enumerates the entries of a source package by index. Open
// returns a one-shot reader for a single entry.
type EntryReader interface {
	Len() int
	Name(i int) string
	Open(i int) (io.ReadCloser, error)
}

// EntryWriter builds the output package. WriteWhole stores a buffered entry;
// Stream returns a writer that stays valid until the next call on the
// EntryWriter. method is a zip compression method such as zip.Deflate.
type EntryWriter interface {
	WriteWhole(name string, method uint16, data []byte) error
	Stream(name string, method uint16) (io.Writer, error)
	Close() error
}

// ZipEntryReader is an EntryReader over an archive/zip reader.
type ZipEntryReader struct {
	files []*zip.File
}

// NewZipEntryReader opens the zip archive in r and checks that it holds a
// document body.
func NewZipEntryReader(r io.ReaderAt, size int64) (*ZipEntryReader, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to read zip file: %w", err)
	}

	for _, f := range zr.File {
		if f.Name == documentPath {
			return &ZipEntryReader{files: zr.File}, nil
		}
	}
	return nil, NewDocumentError("open", documentPath, ErrMissingDocument)
}

// Len implements EntryReader.
func (r *ZipEntryReader) Len() int {
	return len(r.files)
}

// Name implements EntryReader.
func (r *ZipEntryReader) Name(i int) string {
	return r.files[i].Name
}

// Open implements EntryReader.
func (r *ZipEntryReader) Open(i int) (io.ReadCloser, error) {
	rc, err := r.files[i].Open()
	if err != nil {
		return nil, NewDocumentError("open", r.files[i].Name, err)
	}
	return rc, nil
}

// ZipEntryWriter is an EntryWriter over an archive/zip writer.
type ZipEntryWriter struct {
	zw *zip.Writer
}

// NewZipEntryWriter creates an EntryWriter writing a zip archive to w.
func NewZipEntryWriter(w io.Writer) *ZipEntryWriter {
	return &ZipEntryWriter{zw: zip.NewWriter(w)}
}

// WriteWhole implements EntryWriter.
func (w *ZipEntryWriter) WriteWhole(name string, method uint16, data []byte) error {
	fw, err := w.Stream(name, method)
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return NewDocumentError("write", name, err)
	}
	return nil
}

// Stream implements EntryWriter.
func (w *ZipEntryWriter) Stream(name string, method uint16) (io.Writer, error) {
	fw, err := w.zw.CreateHeader(&zip.FileHeader{Name: name, Method: method})
	if err != nil {
		return nil, NewDocumentError("create", name, err)
	}
	return fw, nil
}

// Close implements EntryWriter.
func (w *ZipEntryWriter) Close() error {
	if err := w.zw.Close(); err != nil {
		return fmt.Errorf("failed to close zip writer: %w", err)
	}
	return nil
}
