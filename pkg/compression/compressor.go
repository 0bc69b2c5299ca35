package compression

import (
	"io"

	"github.com/dataporter/mysql-porter/pkg/apperrors"
)

// Compressor wraps the stream encoding used for data chunk artifacts.
type Compressor interface {
	Uncompress(in io.Reader) (io.Reader, error)
	Compress(out io.Writer) (io.WriteCloser, error)
	Extension() string
}

func GetCompressor(name string) (Compressor, error) {
	switch name {
	case "gzip":
		return &GzipCompressor{}, nil
	case "zstd":
		return &ZstdCompressor{}, nil
	case "none", "":
		return &NoCompressor{}, nil
	default:
		return nil, apperrors.Configf("unknown compression format: %s", name)
	}
}
