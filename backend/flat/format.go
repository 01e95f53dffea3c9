// Package flat implements a columnar, frame-per-event file backend.
//
// A file holds a fixed header, one frame per event, a table of contents,
// and a footer. Each frame stores every collection of the event as a run
// of blocks: one block with the contiguous record buffers, then one block
// per relation-target array. Blocks are optionally compressed (zstd or
// lz4) and the table of contents records their offsets, so a reader can
// fetch a single event with ranged reads. A CRC32 over everything before
// the footer guards against truncation and bit rot.
package flat

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/eventio/model"
)

const (
	// MagicNumber identifies flat event files (ASCII: "EVIO").
	MagicNumber = 0x4F495645
	// FormatVersion is the current file format version.
	FormatVersion = 1

	headerBaseSize  = 12
	footerSize      = 24
	blockHeaderSize = 8
)

var (
	ErrInvalidMagic       = errors.New("flat: invalid magic number")
	ErrInvalidVersion     = errors.New("flat: unsupported format version")
	ErrChecksum           = errors.New("flat: checksum mismatch")
	ErrUnknownCodec       = errors.New("flat: unknown codec")
	ErrUnknownCompression = errors.New("flat: unknown compression")
	ErrFrameOutOfRange    = errors.New("flat: frame index out of range")
	ErrClosed             = errors.New("flat: closed")
)

// Compression selects the per-block compression algorithm.
type Compression uint8

const (
	// CompressionNone stores blocks verbatim.
	CompressionNone Compression = 0
	// CompressionLZ4 favors decode speed.
	CompressionLZ4 Compression = 1
	// CompressionZstd favors ratio.
	CompressionZstd Compression = 2
)

func (c Compression) valid() bool {
	return c <= CompressionZstd
}

// fileHeader is the fixed-size prefix of every file. The codec name
// follows it immediately, CodecNameLen bytes long.
type fileHeader struct {
	Magic        uint32
	Version      uint32
	Compression  uint8
	CodecNameLen uint8
	Reserved     [2]byte
}

// fileFooter is the fixed-size suffix. Checksum is a CRC32 (IEEE) over
// all bytes from offset 0 through the end of the TOC block.
type fileFooter struct {
	TOCOffset uint64
	TOCLength uint64
	Checksum  uint32
	Magic     uint32
}

// blockRef locates one block inside the file.
type blockRef struct {
	Offset uint64 `json:"offset"`
	Length uint64 `json:"length"`
}

// collectionTOC describes one collection of one frame. Blocks[0] holds
// the record buffers; Blocks[1+i] holds the i-th relation-target array.
type collectionTOC struct {
	Name          string              `json:"name"`
	TypeName      string              `json:"type_name"`
	ID            model.CollectionID  `json:"id"`
	SchemaVersion model.SchemaVersion `json:"schema_version"`
	Rows          int                 `json:"rows"`
	RelationRows  []int               `json:"relation_rows"`
	Blocks        []blockRef          `json:"blocks"`
}

type frameTOC struct {
	Collections []collectionTOC `json:"collections"`
}

type tableOfContents struct {
	Frames []frameTOC `json:"frames"`
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// compressBlock frames data as [uncompressedSize][compressedSize][bytes].
// compressedSize 0 marks a verbatim block; incompressible data falls back
// to verbatim regardless of the requested algorithm.
func compressBlock(data []byte, compression Compression) ([]byte, error) {
	var compressed []byte

	switch compression {
	case CompressionNone:
	case CompressionLZ4:
		bound := lz4.CompressBlockBound(len(data))
		buf := make([]byte, bound)
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		compressed = buf[:n]
	case CompressionZstd:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, ErrUnknownCompression
	}

	if len(compressed) == 0 || len(compressed) >= len(data) {
		out := make([]byte, blockHeaderSize+len(data))
		binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
		binary.LittleEndian.PutUint32(out[4:], 0)
		copy(out[blockHeaderSize:], data)
		return out, nil
	}

	out := make([]byte, blockHeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(compressed)))
	copy(out[blockHeaderSize:], compressed)
	return out, nil
}

func decompressBlock(block []byte, compression Compression) ([]byte, error) {
	if len(block) < blockHeaderSize {
		return nil, errors.New("flat: block too small for header")
	}

	uncompressedSize := binary.LittleEndian.Uint32(block[0:])
	compressedSize := binary.LittleEndian.Uint32(block[4:])

	if compressedSize == 0 {
		if uint32(len(block)) < blockHeaderSize+uncompressedSize {
			return nil, errors.New("flat: truncated block")
		}
		return block[blockHeaderSize : blockHeaderSize+uncompressedSize], nil
	}

	if uint32(len(block)) < blockHeaderSize+compressedSize {
		return nil, errors.New("flat: truncated block")
	}
	payload := block[blockHeaderSize : blockHeaderSize+compressedSize]

	switch compression {
	case CompressionLZ4:
		out := make([]byte, uncompressedSize)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if uint32(n) != uncompressedSize {
			return nil, errors.New("flat: decompressed size mismatch")
		}
		return out, nil
	case CompressionZstd:
		dec := getZstdDecoder()
		out, err := dec.DecodeAll(payload, make([]byte, 0, uncompressedSize))
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if uint32(len(out)) != uncompressedSize {
			return nil, errors.New("flat: decompressed size mismatch")
		}
		return out, nil
	default:
		return nil, ErrUnknownCompression
	}
}
