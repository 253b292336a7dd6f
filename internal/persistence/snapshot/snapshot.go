package snapshot

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

const Version = 1

type Header struct {
	Version       int    `json:"version"`
	StationID     string `json:"station_id"`
	RunID         string `json:"run_id,omitempty"`
	Tick          uint64 `json:"tick"`
	CatalogDigest string `json:"catalog_digest,omitempty"`
}

// SnapshotV1 is the hot-reload image of a running game session. Entity
// references are stored verbatim; the caller re-resolves them after reload.
type SnapshotV1 struct {
	Header Header `json:"header"`

	GameStarted bool    `json:"game_started"`
	TimeScale   float64 `json:"time_scale"`
	OrbitAngle  float64 `json:"orbit_angle"`

	RefPoint uint32 `json:"ref_point"`
	Camera   uint32 `json:"camera"`
	HUD      uint32 `json:"hud"`
	Selected uint32 `json:"selected_module,omitempty"`

	Station StationV1 `json:"station"`
}

type StationV1 struct {
	NextID  uint32         `json:"next_id"`
	Stats   StatsV1        `json:"stats"`
	Crew    []CrewMemberV1 `json:"crew"`
	Modules []ModuleV1     `json:"modules"`
}

type ResourcesV1 struct {
	Air   float64 `json:"air"`
	Power float64 `json:"power"`
	Heat  float64 `json:"heat"`
	Water float64 `json:"water"`
	Food  float64 `json:"food"`
	Fuel  float64 `json:"fuel"`
}

type StorageV1 struct {
	Food      float64 `json:"food"`
	Water     float64 `json:"water"`
	Fuel      float64 `json:"fuel"`
	Materials float64 `json:"materials"`
}

type StatsV1 struct {
	Production     ResourcesV1 `json:"production"`
	Consumption    ResourcesV1 `json:"consumption"`
	Stored         StorageV1   `json:"stored"`
	StorageSpace   StorageV1   `json:"storage_space"`
	Volume         float64     `json:"volume"`
	OccupiedVolume float64     `json:"occupied_volume"`
	Efficiency     float64     `json:"efficiency"`
}

type CrewMemberV1 struct {
	ID      uint32 `json:"id"`
	Name    string `json:"name"`
	State   uint8  `json:"state"`
	Subject uint32 `json:"subject"`
}

type ModuleV1 struct {
	ID            uint32        `json:"id"`
	Entity        uint32        `json:"entity"`
	BuildProgress float64       `json:"build_progress"`
	Extensions    []ExtensionV1 `json:"extensions"`
}

type ExtensionV1 struct {
	ID            uint32  `json:"id"`
	Entity        uint32  `json:"entity"`
	BuildProgress float64 `json:"build_progress"`
	Blueprint     uint16  `json:"blueprint"`
}

var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Encode serializes snap into a flat byte buffer (deterministic CBOR).
func Encode(snap SnapshotV1) ([]byte, error) {
	b, err := encMode.Marshal(&snap)
	if err != nil {
		return nil, fmt.Errorf("cbor encode: %w", err)
	}
	return b, nil
}

func Decode(b []byte) (SnapshotV1, error) {
	var snap SnapshotV1
	if err := cbor.Unmarshal(b, &snap); err != nil {
		return snap, fmt.Errorf("cbor decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version: %d", snap.Header.Version)
	}
	return snap, nil
}

type Compression string

const (
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

var (
	zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}
	lz4Magic  = []byte{0x04, 0x22, 0x4D, 0x18}
)

// WriteSnapshot writes a JSON header line followed by the CBOR body, the
// whole stream compressed with c.
func WriteSnapshot(path string, snap SnapshotV1, c Compression) error {
	body, err := Encode(snap)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	var zw io.WriteCloser
	switch c {
	case CompressionLZ4:
		zw = lz4.NewWriter(f)
	case CompressionZstd, "":
		enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return err
		}
		zw = enc
	default:
		return fmt.Errorf("unknown snapshot compression %q", c)
	}

	bw := bufio.NewWriterSize(zw, 64*1024)
	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if _, err := bw.Write(body); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return f.Sync()
}

type readCloser struct {
	io.Reader
	close func()
}

func (r readCloser) Close() error {
	if r.close != nil {
		r.close()
	}
	return nil
}

// openStream detects the compression from the frame magic.
func openStream(f io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(f)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("read snapshot magic: %w", err)
	}
	switch {
	case bytes.Equal(magic, zstdMagic):
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, err
		}
		return readCloser{Reader: dec, close: dec.Close}, nil
	case bytes.Equal(magic, lz4Magic):
		return readCloser{Reader: lz4.NewReader(br)}, nil
	default:
		return nil, fmt.Errorf("unrecognized snapshot compression")
	}
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	r, err := openStream(f)
	if err != nil {
		return snap, err
	}
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return snap, err
	}
	nl := bytes.IndexByte(raw, '\n')
	if nl < 0 {
		return snap, fmt.Errorf("snapshot: missing header line")
	}
	return Decode(raw[nl+1:])
}

// ReadHeader decodes only the leading JSON line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	r, err := openStream(f)
	if err != nil {
		return h, err
	}
	defer r.Close()

	line, err := bufio.NewReader(r).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("snapshot: read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("snapshot: decode header: %w", err)
	}
	return h, nil
}
