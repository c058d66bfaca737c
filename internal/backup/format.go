package backup

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// FormatVersion is the version written to new backup headers.
const FormatVersion = 1

// MaxDecompressedSize is the maximum allowed size of decompressed backup data (200MB).
const MaxDecompressedSize = 200 * 1024 * 1024

// Header is the plain-text first line of a backup file. It can be read
// without decompressing the payload that follows it.
type Header struct {
	Version    int       `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	Checksum   string    `json:"checksum"`
	ScanCount  int       `json:"scan_count"`
	Compressed bool      `json:"compressed"`
}

// Write writes a snapshot as a header line followed by the gzip-compressed
// JSON payload.
func Write(path string, snap *Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	var compressed bytes.Buffer
	gzw, err := gzip.NewWriterLevel(&compressed, gzip.DefaultCompression)
	if err != nil {
		return fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gzw.Write(payload); err != nil {
		return fmt.Errorf("compressing payload: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("closing gzip writer: %w", err)
	}

	headerBytes, err := json.Marshal(Header{
		Version:    FormatVersion,
		CreatedAt:  snap.CreatedAt,
		Checksum:   checksum(compressed.Bytes()),
		ScanCount:  len(snap.Scans),
		Compressed: true,
	})
	if err != nil {
		return fmt.Errorf("marshaling header: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(headerBytes, '\n')); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := f.Write(compressed.Bytes()); err != nil {
		return fmt.Errorf("writing compressed payload: %w", err)
	}
	return f.Close()
}

// Read reads a backup file, verifies the checksum and decompresses the payload.
func Read(path string) (*Snapshot, error) {
	header, compressed, err := readVerified(path)
	if err != nil {
		return nil, err
	}

	gzr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	decompressed, err := io.ReadAll(io.LimitReader(gzr, MaxDecompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("decompressing payload: %w", err)
	}
	if int64(len(decompressed)) > MaxDecompressedSize {
		return nil, fmt.Errorf("decompressed payload exceeds maximum size of %d bytes", MaxDecompressedSize)
	}

	var snap Snapshot
	if err := json.Unmarshal(decompressed, &snap); err != nil {
		return nil, fmt.Errorf("parsing backup data: %w", err)
	}
	if len(snap.Scans) != header.ScanCount {
		return nil, fmt.Errorf("header lists %d scans, payload has %d", header.ScanCount, len(snap.Scans))
	}
	return &snap, nil
}

// ReadHeader reads only the header line of a backup file.
func ReadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	header, _, err := readHeader(bufio.NewReader(f))
	return header, err
}

// VerifyChecksum checks the integrity of a backup file without decompressing it.
func VerifyChecksum(path string) error {
	_, _, err := readVerified(path)
	return err
}

func readVerified(path string) (*Header, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	header, reader, err := readHeader(bufio.NewReader(f))
	if err != nil {
		return nil, nil, err
	}

	compressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("reading compressed payload: %w", err)
	}
	if actual := checksum(compressed); actual != header.Checksum {
		return nil, nil, fmt.Errorf("checksum mismatch: expected %s, got %s", header.Checksum, actual)
	}
	return header, compressed, nil
}

func readHeader(reader *bufio.Reader) (*Header, *bufio.Reader, error) {
	headerLine, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, nil, fmt.Errorf("reading header line: %w", err)
	}

	var header Header
	if err := json.Unmarshal(bytes.TrimSpace(headerLine), &header); err != nil {
		return nil, nil, fmt.Errorf("parsing header: %w", err)
	}
	if header.Version != FormatVersion {
		return nil, nil, fmt.Errorf("unsupported backup version %d", header.Version)
	}
	return &header, reader, nil
}

func checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(hash[:])
}
