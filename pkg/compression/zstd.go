package compression

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

var _ Compressor = &ZstdCompressor{}

type ZstdCompressor struct {
}

func (z *ZstdCompressor) Uncompress(in io.Reader) (io.Reader, error) {
	r, err := zstd.NewReader(in)
	if err != nil {
		return nil, err
	}
	return r.IOReadCloser(), nil
}

func (z *ZstdCompressor) Compress(out io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(out)
}
func (z *ZstdCompressor) Extension() string {
	return "zst"
}
