package dedup

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/errors"
)

// Segment file layout: a 64-byte header, the signature arena as little-endian
// uint64s, the JSON id list, then a 16-byte footer carrying a CRC32 over
// arena and ids.
const (
	MagicBytes    uint32 = 0x43455347
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 16
	SegmentFile          = "signatures.cesig"
)

// SegmentHeader is the header written at the start of every signature
// segment.
type SegmentHeader struct {
	Magic       uint32
	Version     uint32
	Count       uint32
	SigSize     uint32
	Bands       uint32
	CreatedAt   int64
	ArenaOffset int64
	ArenaSize   int64
	IDsOffset   int64
	IDsSize     int64
}

// WriteSegment atomically persists idx as dir/signatures.cesig. It writes to
// a .tmp file first and renames on success.
func WriteSegment(dir string, idx *Index) (string, error) {
	ids, sigs := idx.Entries()
	finalPath := filepath.Join(dir, SegmentFile)
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating segment directory: %w", err)
	}
	arena := make([]byte, 0, len(ids)*idx.SignatureSize()*8)
	for _, sig := range sigs {
		for _, v := range sig {
			arena = binary.LittleEndian.AppendUint64(arena, v)
		}
	}
	idData, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("marshaling segment ids: %w", err)
	}

	header := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(header[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(ids)))
	binary.LittleEndian.PutUint32(header[12:16], uint32(idx.SignatureSize()))
	binary.LittleEndian.PutUint32(header[16:20], uint32(idx.Bands()))
	binary.LittleEndian.PutUint64(header[24:32], uint64(time.Now().Unix()))
	binary.LittleEndian.PutUint64(header[32:40], uint64(HeaderSize))
	binary.LittleEndian.PutUint64(header[40:48], uint64(len(arena)))
	binary.LittleEndian.PutUint64(header[48:56], uint64(HeaderSize+len(arena)))
	binary.LittleEndian.PutUint64(header[56:64], uint64(len(idData)))

	crc := crc32.NewIEEE()
	crc.Write(arena)
	crc.Write(idData)
	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc.Sum32())
	binary.LittleEndian.PutUint32(footer[4:8], uint32(len(ids)))
	binary.LittleEndian.PutUint32(footer[8:12], MagicBytes)

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp segment file: %w", err)
	}
	defer f.Close()
	for _, part := range [][]byte{header, arena, idData, footer} {
		if _, err := f.Write(part); err != nil {
			return "", fmt.Errorf("writing segment: %w", err)
		}
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing segment file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming segment file: %w", err)
	}
	return finalPath, nil
}

// ReadSegment loads a segment written by WriteSegment. Any structural or
// checksum mismatch is reported as index corruption.
func ReadSegment(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading segment file: %w", err)
	}
	corrupt := func(format string, args ...any) error {
		return apperrors.Newf(apperrors.ErrIndexCorruption, "", "%s: "+format, append([]any{path}, args...)...)
	}
	if len(data) < HeaderSize+FooterSize {
		return nil, corrupt("file too short (%d bytes)", len(data))
	}
	h := SegmentHeader{
		Magic:       binary.LittleEndian.Uint32(data[0:4]),
		Version:     binary.LittleEndian.Uint32(data[4:8]),
		Count:       binary.LittleEndian.Uint32(data[8:12]),
		SigSize:     binary.LittleEndian.Uint32(data[12:16]),
		Bands:       binary.LittleEndian.Uint32(data[16:20]),
		CreatedAt:   int64(binary.LittleEndian.Uint64(data[24:32])),
		ArenaOffset: int64(binary.LittleEndian.Uint64(data[32:40])),
		ArenaSize:   int64(binary.LittleEndian.Uint64(data[40:48])),
		IDsOffset:   int64(binary.LittleEndian.Uint64(data[48:56])),
		IDsSize:     int64(binary.LittleEndian.Uint64(data[56:64])),
	}
	if h.Magic != MagicBytes {
		return nil, corrupt("bad magic bytes %x", h.Magic)
	}
	if h.Version != FormatVersion {
		return nil, corrupt("unsupported version %d", h.Version)
	}
	end := h.IDsOffset + h.IDsSize
	if h.ArenaOffset != int64(HeaderSize) || h.IDsOffset != h.ArenaOffset+h.ArenaSize ||
		end+int64(FooterSize) != int64(len(data)) ||
		h.ArenaSize != int64(h.Count)*int64(h.SigSize)*8 {
		return nil, corrupt("inconsistent section offsets")
	}
	arena := data[h.ArenaOffset:h.IDsOffset]
	idData := data[h.IDsOffset:end]
	footer := data[end:]

	crc := crc32.NewIEEE()
	crc.Write(arena)
	crc.Write(idData)
	if got, want := crc.Sum32(), binary.LittleEndian.Uint32(footer[0:4]); got != want {
		return nil, corrupt("checksum mismatch: got %08x, want %08x", got, want)
	}

	var ids []string
	if err := json.Unmarshal(idData, &ids); err != nil {
		return nil, corrupt("parsing ids: %v", err)
	}
	if len(ids) != int(h.Count) {
		return nil, corrupt("header lists %d signatures, found %d ids", h.Count, len(ids))
	}
	idx, err := NewIndex(int(h.SigSize), int(h.Bands))
	if err != nil {
		return nil, corrupt("%v", err)
	}
	size := int(h.SigSize)
	for i, id := range ids {
		sig := make(Signature, size)
		for j := range sig {
			sig[j] = binary.LittleEndian.Uint64(arena[(i*size+j)*8:])
		}
		if err := idx.Add(id, sig); err != nil {
			return nil, corrupt("%v", err)
		}
	}
	return idx, nil
}
