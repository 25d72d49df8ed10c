// Package audioio decodes submitted audio bytes into mono float32 waveforms.
//
// Decoding is WAV (RIFF/PCM) via the wav library; multi-channel input is
// collapsed to mono by averaging the channels. The sample rate is whatever
// the file declares. An encoder is provided for constructing fixtures.
package audioio

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cwbudde/wav"
	goaudio "github.com/go-audio/audio"
)

// Decode parses WAV bytes and returns mono float32 samples plus the declared
// sample rate. Multi-channel audio is downmixed by per-frame channel mean.
func Decode(data []byte) ([]float32, int, error) {
	if len(data) == 0 {
		return nil, 0, errors.New("audioio: empty audio input")
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, 0, errors.New("audioio: invalid WAV file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("audioio: reading PCM data: %w", err)
	}

	sampleRate := int(dec.SampleRate)
	channels := int(dec.NumChans)
	if channels <= 1 {
		return buf.Data, sampleRate, nil
	}
	return downmix(buf.Data, channels), sampleRate, nil
}

// downmix averages interleaved multi-channel samples into a mono waveform.
// A trailing partial frame is averaged over the samples it actually has.
func downmix(interleaved []float32, channels int) []float32 {
	frames := (len(interleaved) + channels - 1) / channels
	mono := make([]float32, frames)
	for f := 0; f < frames; f++ {
		var sum float32
		n := 0
		for c := 0; c < channels; c++ {
			i := f*channels + c
			if i >= len(interleaved) {
				break
			}
			sum += interleaved[i]
			n++
		}
		mono[f] = sum / float32(n)
	}
	return mono
}

// Encode writes mono float32 samples as a 16-bit PCM WAV byte slice. Used by
// tests and local tooling to synthesise submissions.
func Encode(samples []float32, sampleRate int) ([]byte, error) {
	var buf bytes.Buffer
	sw := &seekBuffer{buf: &buf}

	enc := wav.NewEncoder(sw, sampleRate, 16, 1, 1) // 1 = PCM

	pcmBuf := &goaudio.Float32Buffer{
		Data:           samples,
		Format:         &goaudio.Format{SampleRate: sampleRate, NumChannels: 1},
		SourceBitDepth: 16,
	}
	if err := enc.Write(pcmBuf); err != nil {
		return nil, fmt.Errorf("audioio: writing PCM: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("audioio: closing encoder: %w", err)
	}
	return buf.Bytes(), nil
}

// seekBuffer adapts a bytes.Buffer to io.WriteSeeker; the WAV encoder seeks
// back to patch chunk sizes on Close.
type seekBuffer struct {
	buf *bytes.Buffer
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	if s.pos == s.buf.Len() {
		n, err := s.buf.Write(p)
		s.pos += n
		return n, err
	}
	data := s.buf.Bytes()
	n := copy(data[s.pos:], p)
	if n < len(p) {
		data = append(data, p[n:]...)
		s.buf.Reset()
		s.buf.Write(data)
		n = len(p)
	}
	s.pos += n
	return n, nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var newPos int
	switch whence {
	case 0: // io.SeekStart
		newPos = int(offset)
	case 1: // io.SeekCurrent
		newPos = s.pos + int(offset)
	case 2: // io.SeekEnd
		newPos = s.buf.Len() + int(offset)
	}
	if newPos < 0 {
		return 0, fmt.Errorf("seek before start")
	}
	s.pos = newPos
	return int64(newPos), nil
}
