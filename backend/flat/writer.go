package flat

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"hash"
	"hash/crc32"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/eventio"
	"github.com/hupe1980/eventio/blobstore"
	"github.com/hupe1980/eventio/codec"
	"github.com/hupe1980/eventio/collection"
	"github.com/hupe1980/eventio/schema"
)

// Options configures a flat file writer or reader.
type Options struct {
	// Compression selects the per-block compression. Default zstd.
	Compression Compression
	// Codec encodes the table of contents. Default codec.Default.
	Codec codec.Codec
	// Registry resolves schema versions and buffer factories on read.
	// Default schema.Default().
	Registry *schema.Registry
	// Logger receives Debug/Info logs. Default noop.
	Logger *eventio.Logger
}

// WithCompression selects the block compression algorithm.
func WithCompression(c Compression) func(o *Options) {
	return func(o *Options) { o.Compression = c }
}

// WithCodec selects the TOC codec.
func WithCodec(c codec.Codec) func(o *Options) {
	return func(o *Options) { o.Codec = c }
}

// WithRegistry selects the schema registry used on read.
func WithRegistry(r *schema.Registry) func(o *Options) {
	return func(o *Options) { o.Registry = r }
}

// WithLogger injects a logger.
func WithLogger(l *eventio.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

func applyOptions(optFns []func(o *Options)) Options {
	opts := Options{
		Compression: CompressionZstd,
		Codec:       codec.Default,
		Registry:    schema.Default(),
		Logger:      eventio.NoopLogger(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

// Writer streams events into one flat file. It is not safe for
// concurrent use; write events from one goroutine and Close once.
type Writer struct {
	blob   blobstore.WritableBlob
	crc    hash.Hash32
	offset uint64
	toc    tableOfContents
	opts   Options
	closed bool
}

// NewWriter creates a flat file named name in the blob store and writes
// the file header. The file becomes visible under its name when Close
// returns nil.
func NewWriter(ctx context.Context, store blobstore.BlobStore, name string, optFns ...func(o *Options)) (*Writer, error) {
	opts := applyOptions(optFns)
	if !opts.Compression.valid() {
		return nil, ErrUnknownCompression
	}

	blob, err := store.Create(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", name, err)
	}

	w := &Writer{
		blob: blob,
		crc:  crc32.NewIEEE(),
		opts: opts,
	}

	codecName := opts.Codec.Name()
	header := fileHeader{
		Magic:        MagicNumber,
		Version:      FormatVersion,
		Compression:  uint8(opts.Compression),
		CodecNameLen: uint8(len(codecName)),
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, header); err != nil {
		return nil, err
	}
	buf.WriteString(codecName)
	if err := w.write(buf.Bytes()); err != nil {
		_ = blob.Close()
		return nil, err
	}

	return w, nil
}

// encodedSection is one collection of one frame, fully encoded and
// compressed, ready to be appended to the file.
type encodedSection struct {
	toc    collectionTOC
	blocks [][]byte
}

// WriteEvent appends one event frame. It finalizes every collection of
// the store, encodes the sections in parallel, and appends the blocks in
// registration order.
func (w *Writer) WriteEvent(ctx context.Context, store *eventio.Store) (err error) {
	if w.closed {
		return ErrClosed
	}

	frame := len(w.toc.Frames)
	defer func() {
		w.opts.Logger.LogWriteEvent(ctx, frame, len(store.Names()), err)
	}()

	if err = store.PrepareForWrite(); err != nil {
		return err
	}

	names := store.Names()
	sections := make([]encodedSection, len(names))

	g, _ := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			base, ok := store.Get(name)
			if !ok {
				return fmt.Errorf("flat: collection %q vanished from store", name)
			}
			sec, err := encodeSection(name, base, w.opts.Compression)
			if err != nil {
				return fmt.Errorf("encode collection %q: %w", name, err)
			}
			sections[i] = sec
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return err
	}

	ftoc := frameTOC{Collections: make([]collectionTOC, 0, len(sections))}
	for _, sec := range sections {
		for _, block := range sec.blocks {
			sec.toc.Blocks = append(sec.toc.Blocks, blockRef{
				Offset: w.offset,
				Length: uint64(len(block)),
			})
			if err = w.write(block); err != nil {
				return err
			}
		}
		ftoc.Collections = append(ftoc.Collections, sec.toc)
	}
	w.toc.Frames = append(w.toc.Frames, ftoc)

	return nil
}

// Close appends the table of contents and the footer, then finalizes the
// blob. The writer is unusable afterwards.
func (w *Writer) Close(ctx context.Context) error {
	if w.closed {
		return ErrClosed
	}
	w.closed = true

	tocBytes, err := w.opts.Codec.Marshal(w.toc)
	if err != nil {
		_ = w.blob.Close()
		return fmt.Errorf("encode toc: %w", err)
	}
	tocBlock, err := compressBlock(tocBytes, w.opts.Compression)
	if err != nil {
		_ = w.blob.Close()
		return err
	}

	tocOffset := w.offset
	if err := w.write(tocBlock); err != nil {
		_ = w.blob.Close()
		return err
	}

	footer := fileFooter{
		TOCOffset: tocOffset,
		TOCLength: uint64(len(tocBlock)),
		Checksum:  w.crc.Sum32(),
		Magic:     MagicNumber,
	}
	if err := binary.Write(w.blob, binary.LittleEndian, footer); err != nil {
		_ = w.blob.Close()
		return err
	}

	w.opts.Logger.InfoContext(ctx, "flat file written",
		"frames", len(w.toc.Frames),
		"bytes", w.offset+footerSize,
	)
	return w.blob.Close()
}

// Events returns the number of frames written so far.
func (w *Writer) Events() int {
	return len(w.toc.Frames)
}

func (w *Writer) write(p []byte) error {
	if _, err := w.blob.Write(p); err != nil {
		return err
	}
	_, _ = w.crc.Write(p)
	w.offset += uint64(len(p))
	return nil
}

func encodeSection(name string, base collection.Base, compression Compression) (encodedSection, error) {
	bufs, err := base.Buffers()
	if err != nil {
		return encodedSection{}, err
	}

	sec := encodedSection{
		toc: collectionTOC{
			Name:          name,
			TypeName:      base.TypeName(),
			ID:            base.ID(),
			SchemaVersion: base.SchemaVersion(),
			Rows:          base.Size(),
			RelationRows:  make([]int, 0, len(bufs.Relations)),
		},
		blocks: make([][]byte, 0, 1+len(bufs.Relations)),
	}

	records, err := encodeValue(bufs.Records)
	if err != nil {
		return encodedSection{}, fmt.Errorf("records: %w", err)
	}
	block, err := compressBlock(records, compression)
	if err != nil {
		return encodedSection{}, err
	}
	sec.blocks = append(sec.blocks, block)

	for i, rel := range bufs.Relations {
		sec.toc.RelationRows = append(sec.toc.RelationRows, len(rel))
		data, err := encodeValue(rel)
		if err != nil {
			return encodedSection{}, fmt.Errorf("relation array %d: %w", i, err)
		}
		block, err := compressBlock(data, compression)
		if err != nil {
			return encodedSection{}, err
		}
		sec.blocks = append(sec.blocks, block)
	}

	return sec, nil
}

// encodeValue writes a slice of fixed-width records little-endian.
func encodeValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
