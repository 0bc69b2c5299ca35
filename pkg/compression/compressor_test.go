package compression

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataporter/mysql-porter/pkg/apperrors"
)

func TestGetCompressor(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		err  bool
	}{
		{"gzip", "gz", false},
		{"zstd", "zst", false},
		{"none", "", false},
		{"", "", false},
		{"lz77", "", true},
	}
	for _, tt := range tests {
		t.Run("name "+tt.name, func(t *testing.T) {
			c, err := GetCompressor(tt.name)
			if tt.err {
				require.Error(t, err)
				assert.True(t, apperrors.IsConfig(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ext, c.Extension())
		})
	}
}

func TestRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("1\thello\t2026-01-02\n"), 1000)
	for _, name := range []string{"gzip", "zstd", "none"} {
		t.Run(name, func(t *testing.T) {
			c, err := GetCompressor(name)
			require.NoError(t, err)

			var buf bytes.Buffer
			w, err := c.Compress(&buf)
			require.NoError(t, err)
			_, err = w.Write(payload)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			r, err := c.Uncompress(&buf)
			require.NoError(t, err)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}
