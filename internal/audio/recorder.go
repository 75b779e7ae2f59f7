package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	defaultSampleRate = 16000
	pcmChannels       = 1
	pcmBitDepth       = 16
	wavHeaderSize     = 44
)

// Recorder writes each call's microphone audio to its own WAV file. The
// header is written with zero sizes and patched when the call ends.
type Recorder struct {
	dir string
	now func() time.Time

	mu         sync.Mutex
	file       *os.File
	path       string
	sampleRate int
	dataBytes  int
}

func NewRecorder(dir string) *Recorder {
	if dir == "" {
		dir = filepath.Join("data", "recordings")
	}
	return &Recorder{dir: dir, now: time.Now}
}

// Begin opens a new recording. A recording still open from an earlier call
// is finished first.
func (r *Recorder) Begin(sampleRate int) error {
	if _, err := r.End(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create recordings directory: %w", err)
	}

	path := filepath.Join(r.dir, r.now().UTC().Format("20060102-150405")+".wav")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open recording: %w", err)
	}

	header, err := wavHeader(0, sampleRate, pcmChannels, pcmBitDepth)
	if err == nil {
		_, err = f.Write(header)
	}
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("write wav header: %w", err)
	}

	r.file = f
	r.path = path
	r.sampleRate = sampleRate
	r.dataBytes = 0
	return nil
}

// End patches the WAV header and closes the file. It returns the path, or
// "" when nothing was recording.
func (r *Recorder) End() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return "", nil
	}
	f, path := r.file, r.path
	r.file, r.path = nil, ""

	header, err := wavHeader(r.dataBytes, r.sampleRate, pcmChannels, pcmBitDepth)
	if err == nil {
		_, err = f.WriteAt(header, 0)
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("finish recording %s: %w", path, err)
	}
	return path, nil
}

// Writer tees everything written to dst into the open recording.
func (r *Recorder) Writer(dst io.Writer) io.Writer {
	return &teeWriter{recorder: r, dst: dst}
}

func (r *Recorder) writePCM(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}
	n, err := r.file.Write(data)
	r.dataBytes += n
	if err != nil {
		return fmt.Errorf("write pcm bytes: %w", err)
	}
	return nil
}

func wavHeader(dataSize, sampleRate, channels, bitDepth int) ([]byte, error) {
	byteRate := sampleRate * channels * bitDepth / 8
	blockAlign := channels * bitDepth / 8

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize))
	fields := []any{
		[]byte("RIFF"), uint32(36 + dataSize), []byte("WAVE"),
		[]byte("fmt "), uint32(16), uint16(1), uint16(channels),
		uint32(sampleRate), uint32(byteRate), uint16(blockAlign), uint16(bitDepth),
		[]byte("data"), uint32(dataSize),
	}
	for _, field := range fields {
		if err := binary.Write(buf, binary.LittleEndian, field); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

type teeWriter struct {
	recorder *Recorder
	dst      io.Writer
}

func (w *teeWriter) Write(p []byte) (int, error) {
	n, err := w.dst.Write(p)
	if err != nil {
		return n, err
	}
	if err := w.recorder.writePCM(p[:n]); err != nil {
		return n, err
	}
	return n, nil
}
