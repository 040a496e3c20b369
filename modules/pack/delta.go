package pack

import (
	"bytes"
	"fmt"
	"io"
)

// applyDelta reconstructs a full object from a delta instruction stream and
// its base content. The stream begins with the base size and result size
// (continuation varints), each of which is validated against base/len;
// what follows is a sequence of copy and insert instructions.
func applyDelta(base []byte, delta []byte) ([]byte, error) {
	r := bytes.NewReader(delta)
	baseSize, err := decodeDeltaSize(r)
	if err != nil {
		return nil, fmt.Errorf("pack: truncated delta base size: %w", err)
	}
	if baseSize != int64(len(base)) {
		return nil, fmt.Errorf("pack: delta base size mismatch: want %d, have %d", baseSize, len(base))
	}
	resultSize, err := decodeDeltaSize(r)
	if err != nil {
		return nil, fmt.Errorf("pack: truncated delta result size: %w", err)
	}

	out := make([]byte, 0, resultSize)
	for {
		cmd, err := r.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if cmd&0x80 != 0 {
			var offset, size int64
			shift := uint(0)
			for i := 0; i < 4; i++ {
				if cmd&(1<<uint(i)) != 0 {
					b, err := r.ReadByte()
					if err != nil {
						return nil, fmt.Errorf("pack: truncated copy offset: %w", err)
					}
					offset |= int64(b) << shift
				}
				shift += 8
			}
			shift = 0
			for i := 0; i < 3; i++ {
				if cmd&(1<<uint(4+i)) != 0 {
					b, err := r.ReadByte()
					if err != nil {
						return nil, fmt.Errorf("pack: truncated copy size: %w", err)
					}
					size |= int64(b) << shift
				}
				shift += 8
			}
			if size == 0 {
				size = 0x10000
			}
			if offset < 0 || offset+size > int64(len(base)) {
				return nil, fmt.Errorf("pack: copy instruction out of range: offset=%d size=%d base=%d", offset, size, len(base))
			}
			out = append(out, base[offset:offset+size]...)
		} else if cmd != 0 {
			n := int(cmd)
			buf := make([]byte, n)
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, fmt.Errorf("pack: truncated insert instruction: %w", err)
			}
			out = append(out, buf...)
		} else {
			return nil, fmt.Errorf("pack: reserved delta opcode 0")
		}
	}
	if int64(len(out)) != resultSize {
		return nil, fmt.Errorf("pack: delta result size mismatch: want %d, got %d", resultSize, len(out))
	}
	return out, nil
}
