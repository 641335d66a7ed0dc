package vector

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

var magic = [8]byte{'K', 'O', 'T', 'A', 'E', 'I', 'D', 'X'}

const formatVersion uint32 = 1

// ErrBadFormat is returned when a blob is not a serialized index.
var ErrBadFormat = errors.New("not a vector index blob")

// Header is stored ahead of the vectors. MetaDigest is the SHA-256 of the
// companion metadata so readers can tell whether the pair belongs together.
type Header struct {
	BuildID    string
	MetaDigest [32]byte
}

// Encode writes the header and all vectors. Layout (little endian): magic (8),
// version (4), dimensions (4), count (4), build id length (4), build id,
// metadata digest (32), then count*dimensions float32 values.
func Encode(w io.Writer, f *FlatIndex, h Header) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(magic[:]); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	id := []byte(h.BuildID)
	for _, v := range []uint32{formatVersion, uint32(f.dimensions), uint32(len(f.vectors)), uint32(len(id))} {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if _, err := bw.Write(id); err != nil {
		return fmt.Errorf("write build id: %w", err)
	}
	if _, err := bw.Write(h.MetaDigest[:]); err != nil {
		return fmt.Errorf("write digest: %w", err)
	}
	for _, vec := range f.vectors {
		if _, err := bw.Write(float32SliceToBytes(vec)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return bw.Flush()
}

// maxDimensions bounds the per-row allocation made from an untrusted header.
const maxDimensions = 1 << 16

// Decode reads an index written by Encode. When r reports its remaining length
// (as *bytes.Reader does), a header declaring more rows than the blob holds is
// rejected before any row is read.
func Decode(r io.Reader) (*FlatIndex, Header, error) {
	var h Header
	sized, _ := r.(interface{ Len() int })
	br := bufio.NewReader(r)
	var m [8]byte
	if _, err := io.ReadFull(br, m[:]); err != nil {
		return nil, h, fmt.Errorf("%w: read magic: %v", ErrBadFormat, err)
	}
	if !bytes.Equal(m[:], magic[:]) {
		return nil, h, ErrBadFormat
	}
	var version, dim, n, idLen uint32
	for _, p := range []*uint32{&version, &dim, &n, &idLen} {
		if err := binary.Read(br, binary.LittleEndian, p); err != nil {
			return nil, h, fmt.Errorf("%w: read header: %v", ErrBadFormat, err)
		}
	}
	if version != formatVersion {
		return nil, h, fmt.Errorf("%w: unsupported version %d", ErrBadFormat, version)
	}
	if dim == 0 || dim > maxDimensions || idLen > 1<<10 {
		return nil, h, fmt.Errorf("%w: bad header", ErrBadFormat)
	}
	id := make([]byte, idLen)
	if _, err := io.ReadFull(br, id); err != nil {
		return nil, h, fmt.Errorf("%w: read build id: %v", ErrBadFormat, err)
	}
	h.BuildID = string(id)
	if _, err := io.ReadFull(br, h.MetaDigest[:]); err != nil {
		return nil, h, fmt.Errorf("%w: read digest: %v", ErrBadFormat, err)
	}
	if sized != nil {
		remaining := int64(sized.Len() + br.Buffered())
		if want := int64(n) * int64(dim) * 4; want != remaining {
			return nil, h, fmt.Errorf("%w: header declares %d vectors of %d dimensions (%d bytes), blob holds %d",
				ErrBadFormat, n, dim, want, remaining)
		}
	}
	f := &FlatIndex{dimensions: int(dim)}
	buf := make([]byte, int(dim)*4)
	for i := uint32(0); i < n; i++ {
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, h, fmt.Errorf("%w: read vector %d: %v", ErrBadFormat, i, err)
		}
		f.vectors = append(f.vectors, bytesToFloat32Slice(buf))
	}
	return f, h, nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
