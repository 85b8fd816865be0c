package payroll

import (
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Compression is an outer compression layer around an uploaded workbook.
type Compression string

// Supported layers. CompressionNone is a bare .xlsx.
const (
	CompressionNone Compression = ""
	CompressionGzip Compression = "gzip"
	CompressionBzip Compression = "bzip2"
	CompressionXZ   Compression = "xz"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

const workbookExt = ".xlsx"

var compressionSuffixes = []struct {
	ext string
	c   Compression
}{
	{".gz", CompressionGzip},
	{".bz2", CompressionBzip},
	{".xz", CompressionXZ},
	{".zst", CompressionZstd},
	{".lz4", CompressionLZ4},
}

// DetectFile classifies an upload by name. It returns the compression layer
// and ErrUnsupportedFile when the name, after removing a compression
// suffix, does not end in .xlsx.
func DetectFile(fileName string) (Compression, error) {
	base := strings.ToLower(filepath.Base(strings.TrimSpace(fileName)))
	comp := CompressionNone
	for _, s := range compressionSuffixes {
		if strings.HasSuffix(base, s.ext) {
			base = strings.TrimSuffix(base, s.ext)
			comp = s.c
			break
		}
	}
	if !strings.HasSuffix(base, workbookExt) || base == workbookExt {
		return CompressionNone, fmt.Errorf("%w: %q (only .xlsx workbooks are accepted)", ErrUnsupportedFile, fileName)
	}
	return comp, nil
}

// Decompress removes the compression layer c from data. The expanded output
// may not exceed limit bytes.
func Decompress(c Compression, data []byte, limit int64) ([]byte, error) {
	if c == CompressionNone {
		return data, nil
	}

	r, closer, err := decompressedReader(c, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if closer != nil {
		defer closer()
	}

	out, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", c, err)
	}
	if int64(len(out)) > limit {
		return nil, fmt.Errorf("%w: decompressed workbook exceeds %d bytes", ErrFileTooLarge, limit)
	}
	return out, nil
}

func decompressedReader(c Compression, r io.Reader) (io.Reader, func(), error) {
	switch c {
	case CompressionGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return zr, func() { zr.Close() }, nil

	case CompressionBzip:
		return bzip2.NewReader(r), nil, nil

	case CompressionXZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		return xr, nil, nil

	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return dec, dec.Close, nil

	case CompressionLZ4:
		return lz4.NewReader(r), nil, nil

	default:
		return nil, nil, fmt.Errorf("%w: compression %q", ErrUnsupportedFile, c)
	}
}
