// Package resource provides protocol.Resolver implementations.
package resource

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/TheusHen/kexget/kexget/protocol"

	"github.com/pierrec/lz4/v4"
)

// DefaultSecret is what Static serves unless told otherwise.
const DefaultSecret = "Some secret something that probably shouldn't be sent in plaintext."

// Static returns a resolver that answers every path with data.
func Static(data []byte) protocol.Resolver {
	data = append([]byte(nil), data...)
	return protocol.ResolverFunc(func([]byte) []byte { return data })
}

// CompressedSuffix marks files stored LZ4-compressed under a Dir root.
const CompressedSuffix = ".lz4"

// Dir serves files below Root. A request for /a/b is answered from Root/a/b,
// or from Root/a/b.lz4 decompressed. Paths cannot escape Root.
// Since the grammar has no not-found response, a miss answers with Miss.
type Dir struct {
	Root string
	Miss []byte
}

// decompressorPool reuses LZ4 readers.
var decompressorPool = sync.Pool{
	New: func() interface{} {
		return lz4.NewReader(nil)
	},
}

func (d Dir) Resolve(path []byte) []byte {
	// Clean against "/" first so ".." segments cannot climb above Root.
	rel := filepath.Clean("/" + filepath.FromSlash(string(path)))
	full := filepath.Join(d.Root, rel)

	if data, err := os.ReadFile(full); err == nil {
		return data
	}
	compressed, err := os.ReadFile(full + CompressedSuffix)
	if err != nil {
		return d.Miss
	}
	data, err := Decompress(compressed)
	if err != nil {
		return d.Miss
	}
	return data
}

// Decompress expands an LZ4 frame.
func Decompress(data []byte) ([]byte, error) {
	r := decompressorPool.Get().(*lz4.Reader)
	defer decompressorPool.Put(r)

	r.Reset(bytes.NewReader(data))

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Compress produces an LZ4 frame suitable for storing under a Dir root.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if err := w.Apply(lz4.CompressionLevelOption(lz4.Level4)); err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
