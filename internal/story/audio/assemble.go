// Package audio wraps raw speech PCM into WAV containers and back.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Format describes raw PCM: little-endian signed integer samples.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// wavHeaderSize is the canonical RIFF/fmt/data header length.
const wavHeaderSize = 44

// DefaultFormat is what the speech backends return: 24 kHz mono 16-bit.
var DefaultFormat = Format{SampleRate: 24000, Channels: 1, BitDepth: 16}

func (f Format) frameSize() int {
	return f.Channels * f.BitDepth / 8
}

// Duration is the playing time of n bytes of PCM in this format.
func (f Format) Duration(n int) time.Duration {
	if f.frameSize() == 0 || f.SampleRate == 0 {
		return 0
	}
	frames := n / f.frameSize()
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

var (
	ErrNoChunks  = errors.New("no audio chunks to assemble")
	ErrUnaligned = errors.New("pcm payload not aligned to whole frames")
)

// Assemble concatenates chunks in order into one WAV container in
// DefaultFormat.
func Assemble(chunks [][]byte) ([]byte, error) {
	return AssembleFormat(chunks, DefaultFormat)
}

// encodeFrames bounds the samples converted per encoder write, so a long
// narration never needs a second full-size copy of its samples.
const encodeFrames = 8192

// AssembleFormat is Assemble with an explicit header format. Only 16-bit
// PCM is supported.
func AssembleFormat(chunks [][]byte, format Format) ([]byte, error) {
	if format.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth %d", format.BitDepth)
	}

	total := 0
	readers := make([]io.Reader, 0, len(chunks))
	for _, c := range chunks {
		total += len(c)
		if len(c) > 0 {
			readers = append(readers, bytes.NewReader(c))
		}
	}
	if total == 0 {
		return nil, ErrNoChunks
	}
	if total%format.frameSize() != 0 {
		return nil, ErrUnaligned
	}

	out := &writeSeeker{buf: make([]byte, 0, wavHeaderSize+total)}
	enc := wav.NewEncoder(out, format.SampleRate, format.BitDepth, format.Channels, 1)

	raw := make([]byte, encodeFrames*format.frameSize())
	samples := make([]int, len(raw)/2)
	buffer := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: format.Channels, SampleRate: format.SampleRate},
		SourceBitDepth: format.BitDepth,
	}

	src := io.MultiReader(readers...)
	for {
		n, err := io.ReadFull(src, raw)
		if n > 0 {
			for i := 0; i < n/2; i++ {
				samples[i] = int(int16(binary.LittleEndian.Uint16(raw[i*2:])))
			}
			buffer.Data = samples[:n/2]
			if werr := enc.Write(buffer); werr != nil {
				return nil, fmt.Errorf("write wav: %w", werr)
			}
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read pcm: %w", err)
		}
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close wav encoder: %w", err)
	}
	return out.Bytes(), nil
}

// Decode reads a 16-bit PCM WAV container back into raw samples.
func Decode(data []byte) ([]byte, Format, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, Format{}, errors.New("not a valid wav file")
	}

	format := Format{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}
	if format.BitDepth != 16 {
		return nil, format, fmt.Errorf("unsupported bit depth %d", format.BitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, format, fmt.Errorf("read pcm: %w", err)
	}

	pcm := make([]byte, len(buf.Data)*2)
	for i, v := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(v)))
	}
	return pcm, format, nil
}
