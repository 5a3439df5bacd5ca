package snapshot

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"sentient-cities/backend/internal/core/domain/service"
)

// Version текущая версия формата снимка
const Version = 1

// ErrUnsupportedVersion снимок записан несовместимой версией
var ErrUnsupportedVersion = errors.New("неподдерживаемая версия снимка")

// Header первая строка снимка. Читается без разбора тела.
type Header struct {
	Version   int     `json:"version"`
	Tick      uint64  `json:"tick"`
	Elapsed   float64 `json:"elapsed"`
	Agents    int     `json:"agents"`
	Houses    int     `json:"houses"`
	Resources int     `json:"resources"`
}

// HeaderOf заголовок для состояния мира
func HeaderOf(state service.WorldState) Header {
	return Header{
		Version:   Version,
		Tick:      state.Tick,
		Elapsed:   state.Elapsed,
		Agents:    len(state.Agents),
		Houses:    len(state.Houses),
		Resources: len(state.Resources),
	}
}

// FileName имя файла снимка для тика
func FileName(tick uint64) string {
	return fmt.Sprintf("%012d.snap.zst", tick)
}

// Write сохраняет снимок мира: строка заголовка и JSON-тело, сжатые zstd.
// Запись идет во временный файл, который затем переименовывается.
func Write(path string, state service.WorldState) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, err := json.Marshal(HeaderOf(state))
	if err != nil {
		return fmt.Errorf("заголовок снимка: %w", err)
	}
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := json.NewEncoder(bw).Encode(&state); err != nil {
		return fmt.Errorf("кодирование снимка: %w", err)
	}

	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadHeader читает только заголовок снимка
func ReadHeader(path string) (Header, error) {
	var h Header
	err := withReader(path, func(br *bufio.Reader) error {
		var err error
		h, err = readHeader(br)
		return err
	})
	return h, err
}

// Read читает снимок целиком
func Read(path string) (Header, service.WorldState, error) {
	var (
		h     Header
		state service.WorldState
	)
	err := withReader(path, func(br *bufio.Reader) error {
		var err error
		if h, err = readHeader(br); err != nil {
			return err
		}
		if err := json.NewDecoder(br).Decode(&state); err != nil {
			return fmt.Errorf("декодирование снимка: %w", err)
		}
		return nil
	})
	return h, state, err
}

func withReader(path string, fn func(br *bufio.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	return fn(bufio.NewReaderSize(dec, 256*1024))
}

func readHeader(br *bufio.Reader) (Header, error) {
	var h Header
	line, err := br.ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("чтение заголовка снимка: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("разбор заголовка снимка: %w", err)
	}
	if h.Version != Version {
		return h, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	return h, nil
}
