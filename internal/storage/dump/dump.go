// Package dump writes Reports to length-prefixed CBOR files and reads them
// back.
package dump

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/yuca-profiler/yuca/internal/domain"
	"github.com/yuca-profiler/yuca/internal/logger"
)

const (
	Magic   = "YUCA"
	Version = 1

	// maxRecord bounds the allocation for a corrupt length prefix.
	maxRecord = 1 << 30
)

var (
	ErrBadMagic           = errors.New("dump: not a report file")
	ErrUnsupportedVersion = errors.New("dump: unsupported version")
	ErrRecordTooLarge     = errors.New("dump: record too large")
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("dump: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("dump: CBOR decoder initialization failed: " + err.Error())
	}
}

// Encode writes the file header followed by one report record.
func Encode(w io.Writer, report *domain.Report) error {
	payload, err := encMode.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	var header [len(Magic) + 1 + 4]byte
	copy(header[:], Magic)
	header[len(Magic)] = Version
	binary.BigEndian.PutUint32(header[len(Magic)+1:], uint32(len(payload)))

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

func Decode(r io.Reader) (*domain.Report, error) {
	var header [len(Magic) + 1 + 4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMagic, err)
	}
	if !bytes.Equal(header[:len(Magic)], []byte(Magic)) {
		return nil, ErrBadMagic
	}
	if v := header[len(Magic)]; v != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}

	size := binary.BigEndian.Uint32(header[len(Magic)+1:])
	if size > maxRecord {
		return nil, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read report record: %w", err)
	}

	report := &domain.Report{}
	if err := decMode.Unmarshal(payload, report); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return report, nil
}

func ReadFile(path string) (*domain.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Decode(bufio.NewReader(f))
}

// Writer names and writes dump files under a default directory.
type Writer struct {
	dir string
	log logger.Logger

	mu      sync.Mutex
	counter int
}

func NewWriter(dir string, log logger.Logger) *Writer {
	return &Writer{dir: dir, log: log}
}

// Path resolves where the next dump of pid goes. An empty outputPath uses the
// default directory, a directory gets the generated name inside it and
// anything else is used as given.
func (w *Writer) Path(pid int64, outputPath string) string {
	if outputPath != "" {
		if info, err := os.Stat(outputPath); err != nil || !info.IsDir() {
			return outputPath
		}
	}

	dir := outputPath
	if dir == "" {
		dir = w.dir
	}

	w.mu.Lock()
	w.counter++
	n := w.counter
	w.mu.Unlock()

	return filepath.Join(dir, fmt.Sprintf("yuca-%d-%d.bin", pid, n))
}

// Write stores report and returns the path it was written to.
func (w *Writer) Write(pid int64, outputPath string, report *domain.Report) (string, error) {
	path := w.Path(pid, outputPath)

	if err := writeFile(path, report); err != nil {
		w.log.Warn("dump: write failed", "path", path, "error", err)
		return path, err
	}

	w.log.Info("dump: report written", "path", path, "process_id", pid)
	return path, nil
}

func writeFile(path string, report *domain.Report) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".yuca-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	if err := Encode(bw, report); err != nil {
		tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
