package speech

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rbright/voxlate/internal/audio"
	"github.com/rbright/voxlate/internal/logging"
)

// createDebugFile creates a timestamped artifact under the state debug dir.
func createDebugFile(prefix, extension string) (*os.File, error) {
	stateDir, err := logging.StateDir()
	if err != nil {
		return nil, fmt.Errorf("resolve state dir: %w", err)
	}
	debugDir := filepath.Join(stateDir, "debug")
	if err := os.MkdirAll(debugDir, 0o700); err != nil {
		return nil, fmt.Errorf("create debug dir: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405.000")
	path := filepath.Join(debugDir, fmt.Sprintf("%s-%s.%s", prefix, timestamp, extension))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open debug file %q: %w", path, err)
	}
	return file, nil
}

func (r *Recognizer) closeDebugArtifacts() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeDebugArtifactsLocked()
}

func (r *Recognizer) closeDebugArtifactsLocked() {
	if r.debugGRPCFile != nil {
		_ = r.debugGRPCFile.Close()
		r.debugGRPCFile = nil
	}
}

// writeDebugAudio dumps captured PCM as WAV when debug.audio_dump is on.
func (r *Recognizer) writeDebugAudio(rawPCM []byte) {
	if !r.cfg.Debug.EnableAudioDump || len(rawPCM) == 0 {
		return
	}

	file, err := createDebugFile("audio", "wav")
	if err != nil {
		r.logWarn("unable to create debug audio dump", "error", err.Error())
		return
	}
	defer file.Close()

	if err := writePCM16WAV(file, rawPCM, audio.CaptureSampleRate, 1); err != nil {
		r.logWarn("unable to write debug audio dump", "error", err.Error())
	}
}

// writePCM16WAV writes little-endian PCM behind a 44-byte RIFF header.
func writePCM16WAV(w io.Writer, pcm []byte, sampleRate, channels int) error {
	if channels <= 0 {
		channels = 1
	}
	const bitsPerSample = 16
	blockAlign := channels * bitsPerSample / 8

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(pcm)))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(pcm)))

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(pcm)
	return err
}
