package blobstore

import (
	"encoding/binary"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"go.trai.ch/reuse/internal/core/domain"
	"go.trai.ch/zerr"
)

// Compressed blobs start with a tag byte followed by the uvarint length of
// the uncompressed data. The tag values are part of the on-disk format.
const (
	tagNone byte = 0
	tagLZ4  byte = 1
	tagZstd byte = 2
)

// maxBlobSize bounds the uncompressed size read from a blob header.
const maxBlobSize = 1 << 32

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("blobstore: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("blobstore: zstd decoder initialization failed: " + err.Error())
	}
}

// Compress encodes data with the given compression. Data that does not
// shrink is stored uncompressed.
func Compress(data []byte, c domain.Compression) []byte {
	var payload []byte
	tag := tagNone

	switch c {
	case domain.CompressionZstd:
		if out := zstdEncoder.EncodeAll(data, nil); len(out) < len(data) {
			payload, tag = out, tagZstd
		}
	case domain.CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		if n, err := lz4.CompressBlock(data, dst, nil); err == nil && n > 0 && n < len(data) {
			payload, tag = dst[:n], tagLZ4
		}
	case domain.CompressionNone:
	}
	if tag == tagNone {
		payload = data
	}

	out := make([]byte, 0, 1+binary.MaxVarintLen64+len(payload))
	out = append(out, tag)
	out = binary.AppendUvarint(out, uint64(len(data)))
	return append(out, payload...)
}

// Decompress reverses Compress.
func Decompress(blob []byte) ([]byte, error) {
	if len(blob) == 0 {
		return nil, zerr.With(domain.ErrDecompressFailed, "reason", "empty blob")
	}
	tag := blob[0]
	size, n := binary.Uvarint(blob[1:])
	if n <= 0 || size > maxBlobSize {
		return nil, zerr.With(domain.ErrDecompressFailed, "reason", "bad header")
	}
	payload := blob[1+n:]

	switch tag {
	case tagNone:
		if uint64(len(payload)) != size {
			return nil, zerr.With(domain.ErrDecompressFailed, "reason", "size mismatch")
		}
		return payload, nil

	case tagLZ4:
		out := make([]byte, size)
		read, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, zerr.Wrap(err, domain.ErrDecompressFailed.Error())
		}
		if uint64(read) != size {
			return nil, zerr.With(domain.ErrDecompressFailed, "reason", "size mismatch")
		}
		return out, nil

	case tagZstd:
		out, err := zstdDecoder.DecodeAll(payload, make([]byte, 0, size))
		if err != nil {
			return nil, zerr.Wrap(err, domain.ErrDecompressFailed.Error())
		}
		if uint64(len(out)) != size {
			return nil, zerr.With(domain.ErrDecompressFailed, "reason", "size mismatch")
		}
		return out, nil

	default:
		return nil, zerr.With(domain.ErrDecompressFailed, "tag", int(tag))
	}
}
