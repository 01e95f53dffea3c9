package flat

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/hupe1980/eventio"
	"github.com/hupe1980/eventio/blobstore"
	"github.com/hupe1980/eventio/codec"
	"github.com/hupe1980/eventio/collection"
)

// Reader reads events back out of a flat file. Opening a reader freezes
// the schema registry: all datamodel registration must have happened by
// then, and evolution becomes freely concurrent afterwards. A Reader is
// safe for concurrent ReadEvent calls.
type Reader struct {
	blob        blobstore.Blob
	compression Compression
	toc         tableOfContents
	opts        Options
}

// OpenReader opens the named flat file, verifies its checksum, and loads
// the table of contents.
func OpenReader(ctx context.Context, store blobstore.BlobStore, name string, optFns ...func(o *Options)) (*Reader, error) {
	opts := applyOptions(optFns)
	opts.Registry.Freeze()

	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}

	r := &Reader{blob: blob, opts: opts}
	if err := r.readHeaderAndTOC(); err != nil {
		_ = blob.Close()
		return nil, err
	}

	opts.Logger.DebugContext(ctx, "flat file opened",
		"name", name,
		"frames", len(r.toc.Frames),
		"bytes", blob.Size(),
	)
	return r, nil
}

// Events returns the number of event frames in the file.
func (r *Reader) Events() int {
	return len(r.toc.Frames)
}

// Close releases the underlying blob.
func (r *Reader) Close() error {
	return r.blob.Close()
}

// ReadEvent reconstructs the i-th event: it allocates buffers at each
// collection's stored schema version, evolves them to the current
// version, builds the collections, and resolves all relation targets
// registered in the event.
func (r *Reader) ReadEvent(ctx context.Context, i int) (st *eventio.Store, err error) {
	defer func() {
		collections := 0
		if st != nil {
			collections = len(st.Names())
		}
		r.opts.Logger.LogReadEvent(ctx, i, collections, err)
	}()

	if i < 0 || i >= len(r.toc.Frames) {
		return nil, fmt.Errorf("%w: %d of %d", ErrFrameOutOfRange, i, len(r.toc.Frames))
	}

	st = eventio.NewStore(func(o *eventio.StoreOptions) {
		o.Logger = r.opts.Logger
	})

	for _, ct := range r.toc.Frames[i].Collections {
		base, err := r.readCollection(ctx, ct)
		if err != nil {
			return nil, fmt.Errorf("collection %q: %w", ct.Name, err)
		}
		if err := st.Register(ct.Name, base); err != nil {
			return nil, err
		}
	}

	if err = st.FinishRead(); err != nil {
		return nil, err
	}
	return st, nil
}

func (r *Reader) readCollection(ctx context.Context, ct collectionTOC) (collection.Base, error) {
	if len(ct.Blocks) != 1+len(ct.RelationRows) {
		return nil, fmt.Errorf("flat: toc lists %d blocks for %d relation arrays", len(ct.Blocks), len(ct.RelationRows))
	}

	bufs, err := r.opts.Registry.Buffers(ct.TypeName, ct.SchemaVersion, ct.Rows, ct.RelationRows)
	if err != nil {
		return nil, err
	}

	records, err := r.readBlock(ct.Blocks[0])
	if err != nil {
		return nil, fmt.Errorf("records: %w", err)
	}
	if err := binary.Read(bytes.NewReader(records), binary.LittleEndian, bufs.Records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}

	for j := range ct.RelationRows {
		data, err := r.readBlock(ct.Blocks[1+j])
		if err != nil {
			return nil, fmt.Errorf("relation array %d: %w", j, err)
		}
		if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, bufs.Relations[j]); err != nil {
			return nil, fmt.Errorf("decode relation array %d: %w", j, err)
		}
	}

	current, err := r.opts.Registry.CurrentVersion(ct.TypeName)
	if err != nil {
		return nil, err
	}
	evolved, err := r.opts.Registry.Evolve(bufs, ct.SchemaVersion, ct.TypeName)
	if err != nil {
		return nil, err
	}
	if ct.SchemaVersion != current {
		r.opts.Logger.LogEvolve(ctx, ct.TypeName, uint32(ct.SchemaVersion), uint32(current))
	}

	maker, ok := collection.MakerFor(ct.TypeName)
	if !ok {
		return nil, fmt.Errorf("flat: no collection maker registered for %q", ct.TypeName)
	}
	base, err := maker(evolved)
	if err != nil {
		return nil, err
	}
	if err := base.SetID(ct.ID); err != nil {
		return nil, err
	}
	return base, nil
}

func (r *Reader) readBlock(ref blockRef) ([]byte, error) {
	block := make([]byte, ref.Length)
	if _, err := r.blob.ReadAt(block, int64(ref.Offset)); err != nil {
		return nil, err
	}
	return decompressBlock(block, r.compression)
}

func (r *Reader) readHeaderAndTOC() error {
	size := r.blob.Size()
	if size < headerBaseSize+footerSize {
		return ErrInvalidMagic
	}

	head := make([]byte, headerBaseSize)
	if _, err := r.blob.ReadAt(head, 0); err != nil {
		return err
	}
	var header fileHeader
	if err := binary.Read(bytes.NewReader(head), binary.LittleEndian, &header); err != nil {
		return err
	}
	if header.Magic != MagicNumber {
		return ErrInvalidMagic
	}
	if header.Version != FormatVersion {
		return fmt.Errorf("%w: %d", ErrInvalidVersion, header.Version)
	}
	r.compression = Compression(header.Compression)
	if !r.compression.valid() {
		return ErrUnknownCompression
	}

	nameBytes := make([]byte, header.CodecNameLen)
	if _, err := r.blob.ReadAt(nameBytes, headerBaseSize); err != nil {
		return err
	}
	c, ok := codec.ByName(string(nameBytes))
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCodec, string(nameBytes))
	}

	foot := make([]byte, footerSize)
	if _, err := r.blob.ReadAt(foot, size-footerSize); err != nil {
		return err
	}
	var footer fileFooter
	if err := binary.Read(bytes.NewReader(foot), binary.LittleEndian, &footer); err != nil {
		return err
	}
	if footer.Magic != MagicNumber {
		return ErrInvalidMagic
	}

	body := footer.TOCOffset + footer.TOCLength
	if body+footerSize != uint64(size) {
		return ErrChecksum
	}
	crc := crc32.NewIEEE()
	if _, err := io.Copy(crc, io.NewSectionReader(r.blob, 0, int64(body))); err != nil {
		return err
	}
	if crc.Sum32() != footer.Checksum {
		return ErrChecksum
	}

	tocBlock := make([]byte, footer.TOCLength)
	if _, err := r.blob.ReadAt(tocBlock, int64(footer.TOCOffset)); err != nil {
		return err
	}
	tocBytes, err := decompressBlock(tocBlock, r.compression)
	if err != nil {
		return fmt.Errorf("toc: %w", err)
	}
	if err := c.Unmarshal(tocBytes, &r.toc); err != nil {
		return fmt.Errorf("decode toc: %w", err)
	}
	return nil
}
