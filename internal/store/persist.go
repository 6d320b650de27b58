package store

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"hash/crc32"
	"os"

	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/pkg/utils"
)

// metadata.pkl layout: magic "TNYM", version (4, LE), CRC-32 of payload (4, LE),
// then a gob-encoded snapshot.
var metadataMagic = [4]byte{'T', 'N', 'Y', 'M'}

const (
	metadataVersion    = 1
	metadataHeaderSize = 12
)

// snapshot holds the sequences that must stay aligned with the index.
type snapshot struct {
	Dimension int
	Texts     []string
	Metadatas []models.ChunkMetadata
}

func encodeSnapshot(s *snapshot) ([]byte, error) {
	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(s); err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	out := make([]byte, metadataHeaderSize, metadataHeaderSize+payload.Len())
	copy(out, metadataMagic[:])
	binary.LittleEndian.PutUint32(out[4:8], metadataVersion)
	binary.LittleEndian.PutUint32(out[8:12], crc32.ChecksumIEEE(payload.Bytes()))
	return append(out, payload.Bytes()...), nil
}

func decodeSnapshot(data []byte) (*snapshot, error) {
	if len(data) < metadataHeaderSize {
		return nil, fmt.Errorf("metadata file too short (%d bytes)", len(data))
	}
	if !bytes.Equal(data[:4], metadataMagic[:]) {
		return nil, fmt.Errorf("metadata file has bad magic")
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != metadataVersion {
		return nil, fmt.Errorf("unsupported metadata version %d", v)
	}
	payload := data[metadataHeaderSize:]
	if crc32.ChecksumIEEE(payload) != binary.LittleEndian.Uint32(data[8:12]) {
		return nil, fmt.Errorf("metadata checksum mismatch")
	}
	var s snapshot
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &s, nil
}

func writeSnapshot(path string, s *snapshot) error {
	data, err := encodeSnapshot(s)
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(path, data)
}

func readSnapshot(path string) (*snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeSnapshot(data)
}

// fileExists reports whether path exists. Errors other than not-exist are
// returned so an unreadable directory is not mistaken for a fresh store.
func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
