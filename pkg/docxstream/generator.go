package docxstream

import (
	"archive/zip"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const bodyTempPattern = "docxstream_*.xml"

// Generator fills DOCX templates. It holds no per-call state, so one
// Generator can serve concurrent Generate calls as long as its formatter can.
type Generator struct {
	config    *Config
	formatter ValueFormatter
	logger    *Logger
}

// NewGenerator creates a generator. Unset config fields take their defaults;
// a nil config uses the global configuration.
func NewGenerator(config *Config) *Generator {
	if config == nil {
		config = GetGlobalConfig()
	}
	return &Generator{
		config:    NewConfigWithDefaults(config),
		formatter: NewDefaultFormatter(),
		logger:    GetLogger(),
	}
}

// SetFormatter replaces the value formatter. nil restores DefaultFormatter.
func (g *Generator) SetFormatter(f ValueFormatter) {
	if f == nil {
		f = NewDefaultFormatter()
	}
	g.formatter = f
}

// SetLogger replaces the logger.
func (g *Generator) SetLogger(logger *Logger) {
	if logger != nil {
		g.logger = logger
	}
}

// Generate reads the template package from in and writes the filled package
// to out. Nothing written to out is usable when an error is returned.
func (g *Generator) Generate(ctx context.Context, in io.ReaderAt, size int64, out io.Writer, data PlaceholderMap) error {
	src, err := NewZipEntryReader(in, size)
	if err != nil {
		return err
	}
	dst := NewZipEntryWriter(out)
	if err := g.GenerateEntries(ctx, src, dst, data); err != nil {
		return err
	}
	return dst.Close()
}

// GenerateEntries runs one generation pass between two archive adapters. dst
// is not closed.
//
// Entries are visited in index order. The relationship document and
// [Content_Types].xml are held back, the document body is spooled to a
// temporary file and everything else is copied through. The body is then
// streamed through an Engine, after which the relationships, content types
// and new media are written.
func (g *Generator) GenerateEntries(ctx context.Context, src EntryReader, dst EntryWriter, data PlaceholderMap) error {
	rels := NewRelationshipAllocator()
	images := NewImageRegistry(g.config, rels)
	logger := g.logger.WithField("entries", src.Len())

	var (
		body         *os.File
		contentTypes []byte
	)
	defer func() {
		if body != nil {
			body.Close()
			os.Remove(body.Name())
		}
	}()

	for i := 0; i < src.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := src.Name(i)
		switch name {
		case relationshipsPath:
			content, err := readEntry(src, i)
			if err != nil {
				return err
			}
			rels.Initialize(content)
		case documentPath:
			if body != nil {
				return NewDocumentError("read", name, errors.New("duplicate entry"))
			}
			f, err := g.spoolEntry(src, i)
			if f != nil {
				body = f
			}
			if err != nil {
				return err
			}
		case contentTypesPath:
			content, err := readEntry(src, i)
			if err != nil {
				return err
			}
			contentTypes = content
		default:
			content, err := readEntry(src, i)
			if err != nil {
				return err
			}
			if err := dst.WriteWhole(name, zip.Deflate, content); err != nil {
				return err
			}
		}
	}

	if body == nil {
		return NewDocumentError("read", documentPath, ErrMissingDocument)
	}
	hadRels := rels.Initialized()
	if !hadRels {
		rels.Initialize([]byte(emptyRelationshipsXML))
	}

	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return NewDocumentError("read", body.Name(), err)
	}
	w, err := dst.Stream(documentPath, zip.Deflate)
	if err != nil {
		return err
	}
	engine := NewEngine(data, g.formatter, images)
	engine.SetLogger(g.logger)
	if err := engine.Process(ctx, bufio.NewReader(body), w); err != nil {
		return WithContext(err, "process document", map[string]interface{}{"path": documentPath})
	}

	if hadRels || rels.Pending() > 0 {
		content, err := rels.Finalize()
		if err != nil {
			return NewDocumentError("update", relationshipsPath, err)
		}
		if err := dst.WriteWhole(relationshipsPath, zip.Deflate, content); err != nil {
			return err
		}
	}

	if contentTypes != nil {
		content, err := EnsureContentTypeDefaults(contentTypes, images.Extensions())
		if err != nil {
			return err
		}
		if err := dst.WriteWhole(contentTypesPath, zip.Deflate, content); err != nil {
			return err
		}
	}

	if err := images.Flush(dst); err != nil {
		return err
	}

	stats := engine.Stats()
	logger.WithFields(Fields{
		"tables": stats.Tables,
		"rows":   stats.RowsGenerated,
		"images": stats.Images,
	}).Debug("Package generated")
	return nil
}

// GenerateFile fills the template at inPath and writes the result to
// outPath, creating parent directories. A failed run leaves no output file.
func (g *Generator) GenerateFile(ctx context.Context, inPath, outPath string, data PlaceholderMap) (err error) {
	in, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("failed to open template: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat template: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close output file: %w", cerr)
		}
		if err != nil {
			os.Remove(outPath)
		}
	}()

	bw := bufio.NewWriter(out)
	if err := g.Generate(ctx, in, info.Size(), bw, data); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// spoolEntry copies entry i to a temporary file. The file is returned even
// on a copy error so the caller can remove it.
func (g *Generator) spoolEntry(src EntryReader, i int) (*os.File, error) {
	rc, err := src.Open(i)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	f, err := os.CreateTemp(g.config.TempDir, bodyTempPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := io.Copy(f, rc); err != nil {
		return f, NewDocumentError("read", src.Name(i), err)
	}
	return f, nil
}

func readEntry(src EntryReader, i int) ([]byte, error) {
	rc, err := src.Open(i)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, NewDocumentError("read", src.Name(i), err)
	}
	return content, nil
}
