package audio

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pcm(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func TestAssembleHeader(t *testing.T) {
	data := pcm(1, -2, 300, -32768, 32767)

	wavBytes, err := Assemble([][]byte{data})
	require.NoError(t, err)
	require.Len(t, wavBytes, 44+len(data))

	assert.Equal(t, "RIFF", string(wavBytes[0:4]))
	assert.Equal(t, uint32(36+len(data)), binary.LittleEndian.Uint32(wavBytes[4:8]))
	assert.Equal(t, "WAVE", string(wavBytes[8:12]))
	assert.Equal(t, "fmt ", string(wavBytes[12:16]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wavBytes[20:22]), "PCM format")
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wavBytes[22:24]), "channels")
	assert.Equal(t, uint32(24000), binary.LittleEndian.Uint32(wavBytes[24:28]), "sample rate")
	assert.Equal(t, uint32(48000), binary.LittleEndian.Uint32(wavBytes[28:32]), "byte rate")
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(wavBytes[32:34]), "block align")
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(wavBytes[34:36]), "bit depth")
	assert.Equal(t, "data", string(wavBytes[36:40]))
	assert.Equal(t, uint32(len(data)), binary.LittleEndian.Uint32(wavBytes[40:44]))
	assert.Equal(t, data, wavBytes[44:])
}

func TestAssembleKeepsChunkOrder(t *testing.T) {
	a := pcm(1, 2, 3)
	b := pcm(4)
	c := pcm(5, 6)

	wavBytes, err := Assemble([][]byte{a, b, c})
	require.NoError(t, err)

	want := append(append(append([]byte{}, a...), b...), c...)
	assert.Equal(t, want, wavBytes[44:])

	reversed, err := Assemble([][]byte{c, b, a})
	require.NoError(t, err)
	assert.NotEqual(t, wavBytes, reversed)
}

func TestAssembleSpansManyEncoderWrites(t *testing.T) {
	samples := make([]int16, 3*encodeFrames+5)
	for i := range samples {
		samples[i] = int16(i*7 - 20000)
	}
	data := pcm(samples...)

	// Odd chunk boundaries split samples across chunks.
	chunks := [][]byte{data[:3], data[3 : 2*encodeFrames+1], {}, data[2*encodeFrames+1:]}
	wavBytes, err := Assemble(chunks)
	require.NoError(t, err)

	require.Len(t, wavBytes, 44+len(data))
	assert.Equal(t, uint32(len(data)), binary.LittleEndian.Uint32(wavBytes[40:44]))
	assert.Equal(t, data, wavBytes[44:])
}

func TestAssembleEmpty(t *testing.T) {
	_, err := Assemble(nil)
	assert.ErrorIs(t, err, ErrNoChunks)

	_, err = Assemble([][]byte{{}, nil})
	assert.ErrorIs(t, err, ErrNoChunks)
}

func TestAssembleUnaligned(t *testing.T) {
	_, err := Assemble([][]byte{{0x01, 0x02, 0x03}})
	assert.ErrorIs(t, err, ErrUnaligned)
}

func TestAssembleEmptyChunksAreSkipped(t *testing.T) {
	wavBytes, err := Assemble([][]byte{nil, pcm(7, 8), {}})
	require.NoError(t, err)
	assert.Equal(t, pcm(7, 8), wavBytes[44:])
}

func TestDecodeRoundTrip(t *testing.T) {
	data := pcm(0, 1, -1, 1234, -4321)

	wavBytes, err := Assemble([][]byte{data})
	require.NoError(t, err)

	decoded, format, err := Decode(wavBytes)
	require.NoError(t, err)
	assert.Equal(t, DefaultFormat, format)
	assert.Equal(t, data, decoded)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, _, err := Decode([]byte("definitely not a wav file at all"))
	assert.Error(t, err)
}

func TestAssembleFormatStereo(t *testing.T) {
	stereo := Format{SampleRate: 44100, Channels: 2, BitDepth: 16}

	_, err := AssembleFormat([][]byte{pcm(1)}, stereo)
	assert.ErrorIs(t, err, ErrUnaligned)

	wavBytes, err := AssembleFormat([][]byte{pcm(1, 2)}, stereo)
	require.NoError(t, err)

	_, format, err := Decode(wavBytes)
	require.NoError(t, err)
	assert.Equal(t, stereo, format)
}

func TestDuration(t *testing.T) {
	assert.Equal(t, time.Second, DefaultFormat.Duration(48000))
	assert.Equal(t, 500*time.Millisecond, DefaultFormat.Duration(24000))
	assert.Equal(t, time.Duration(0), Format{}.Duration(100))
}
