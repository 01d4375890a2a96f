package video

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// PCM is decoded, interleaved integer audio.
type PCM struct {
	Samples    []int
	SampleRate int
	Channels   int
	BitDepth   int
}

// DecodeWAV decodes a RIFF/WAVE payload into PCM samples.
func DecodeWAV(data []byte) (*PCM, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, errors.New("payload is not a valid WAV file")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode WAV samples: %w", err)
	}
	p := &PCM{
		Samples:    buf.Data,
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
	}
	if p.SampleRate <= 0 || p.Channels <= 0 || p.BitDepth%8 != 0 || p.BitDepth == 0 {
		return nil, fmt.Errorf("unsupported WAV format: %d Hz, %d channel(s), %d bit", p.SampleRate, p.Channels, p.BitDepth)
	}
	return p, nil
}

// BytesPerSample is the width of one sample of one channel.
func (p *PCM) BytesPerSample() int { return p.BitDepth / 8 }

// Bytes returns the samples as little-endian PCM.
func (p *PCM) Bytes() []byte {
	width := p.BytesPerSample()
	out := make([]byte, len(p.Samples)*width)
	for i, s := range p.Samples {
		v := uint32(int32(s))
		for b := 0; b < width; b++ {
			out[i*width+b] = byte(v >> (8 * b))
		}
	}
	return out
}

// silence is the sample value of a quiet signal; 8-bit WAV is unsigned.
func (p *PCM) silence() int {
	if p.BitDepth == 8 {
		return 128
	}
	return 0
}

// SameFormat reports whether two buffers can be joined without resampling.
func (p *PCM) SameFormat(o *PCM) bool {
	return p.SampleRate == o.SampleRate && p.Channels == o.Channels && p.BitDepth == o.BitDepth
}

// PCMDuration derives the playable length of raw PCM bytes.
func PCMDuration(numBytes, sampleRate, channels, bytesPerSample int) float64 {
	denom := sampleRate * channels * bytesPerSample
	if denom <= 0 {
		return 0
	}
	return float64(numBytes) / float64(denom)
}

// EncodeWAV writes PCM as a WAV payload.
func EncodeWAV(p *PCM) ([]byte, error) {
	ws := &writeSeeker{}
	enc := wav.NewEncoder(ws, p.SampleRate, p.BitDepth, p.Channels, wavFormatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: p.Channels, SampleRate: p.SampleRate},
		Data:           p.Samples,
		SourceBitDepth: p.BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encode WAV: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalize WAV: %w", err)
	}
	return ws.buf, nil
}

// ConcatWAV joins WAV payloads of identical format into one.
func ConcatWAV(parts [][]byte) ([]byte, error) {
	if len(parts) == 0 {
		return nil, errors.New("no audio to concatenate")
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	var joined *PCM
	for i, part := range parts {
		p, err := DecodeWAV(part)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		if joined == nil {
			joined = p
			continue
		}
		if !joined.SameFormat(p) {
			return nil, fmt.Errorf("chunk %d: format %d Hz/%d ch/%d bit differs from %d Hz/%d ch/%d bit",
				i, p.SampleRate, p.Channels, p.BitDepth, joined.SampleRate, joined.Channels, joined.BitDepth)
		}
		joined.Samples = append(joined.Samples, p.Samples...)
	}
	return EncodeWAV(joined)
}

// writeSeeker is an in-memory io.WriteSeeker; the WAV encoder seeks back to patch
// chunk sizes on Close.
type writeSeeker struct {
	buf []byte
	pos int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	if end := w.pos + len(p); end > len(w.buf) {
		w.buf = append(w.buf, make([]byte, end-len(w.buf))...)
	}
	n := copy(w.buf[w.pos:], p)
	w.pos += n
	return n, nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(w.pos) + offset
	case io.SeekEnd:
		abs = int64(len(w.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, errors.New("negative seek position")
	}
	w.pos = int(abs)
	return abs, nil
}
