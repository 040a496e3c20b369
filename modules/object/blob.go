package object

import (
	"bytes"
	"io"
)

// Blob is raw file content with no internal structure: its encoded form is
// exactly its bytes.
type Blob struct {
	Size     int64
	Contents io.Reader
}

func (b *Blob) Type() Type { return BlobType }

// Encode copies the blob's content to w, returning the number of bytes
// written.
func (b *Blob) Encode(w io.Writer) (int64, error) {
	return io.Copy(w, b.Contents)
}

// NewBlobFromBytes builds a Blob whose Contents is backed by the given
// slice; convenient for tests and for small in-memory blobs.
func NewBlobFromBytes(p []byte) *Blob {
	return &Blob{Size: int64(len(p)), Contents: bytes.NewReader(p)}
}
