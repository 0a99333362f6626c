package audio

import (
	"encoding/binary"
	"math"
)

const WAVHeaderSize = 44

// EncodeWAV wraps mono S16 PCM in a canonical RIFF/WAVE container.
// The result is always WAVHeaderSize+len(pcm) bytes.
func EncodeWAV(pcm []byte) []byte {
	buf := make([]byte, WAVHeaderSize+len(pcm))
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(WAVHeaderSize-8+len(pcm)))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], Channels)
	binary.LittleEndian.PutUint32(buf[24:28], SampleRate)
	binary.LittleEndian.PutUint32(buf[28:32], SampleRate*Channels*BytesPerSample)
	binary.LittleEndian.PutUint16(buf[32:34], Channels*BytesPerSample)
	binary.LittleEndian.PutUint16(buf[34:36], BitsPerSample)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(pcm)))
	copy(buf[WAVHeaderSize:], pcm)
	return buf
}

// PCM returns the sample data of a container produced by EncodeWAV.
func PCM(wav []byte) []byte {
	if len(wav) <= WAVHeaderSize {
		return nil
	}
	return wav[WAVHeaderSize:]
}

// PayloadSize is the number of sample bytes carried by wav.
func PayloadSize(wav []byte) int {
	return len(PCM(wav))
}

func Seconds(wav []byte) float64 {
	return float64(PayloadSize(wav)) / float64(SampleRate*Channels*BytesPerSample)
}

// Samples decodes little-endian S16 bytes.
func Samples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/BytesPerSample)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

// Level is the display level of one frame: RMS scaled so normal speech
// fills most of the meter, clamped to [0,1].
func Level(frame []byte) float64 {
	n := len(frame) / BytesPerSample
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(frame[i*2:])))
		sum += s * s
	}
	rms := math.Sqrt(sum / float64(n))
	return min(rms/32768*3, 1)
}
