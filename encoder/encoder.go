package encoder

import (
	"fmt"
	"time"

	"listen/audio"
)

// BlockSize is the number of samples per FLAC frame.
const BlockSize = 4096

// Format is the container uploaded to a network engine.
type Format string

const (
	FormatWAV  Format = "wav"
	FormatFLAC Format = "flac"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatWAV:
		return FormatWAV, nil
	case FormatFLAC:
		return FormatFLAC, nil
	}
	return "", fmt.Errorf("unknown upload format %q (use wav or flac)", s)
}

func (f Format) ContentType() string {
	if f == FormatFLAC {
		return "audio/flac"
	}
	return "audio/wav"
}

type Stats struct {
	RawBytes     int
	EncodedBytes int
	EncodeTime   time.Duration
}

func (s Stats) CompressionPct() float64 {
	if s.RawBytes == 0 {
		return 0
	}
	return (1 - float64(s.EncodedBytes)/float64(s.RawBytes)) * 100
}

// Encode converts a WAV recording into format f. WAV passes through.
func Encode(f Format, wav []byte) ([]byte, Stats, error) {
	stats := Stats{RawBytes: len(wav)}
	if f != FormatFLAC {
		stats.EncodedBytes = len(wav)
		return wav, stats, nil
	}

	start := time.Now()
	out, err := FLAC(audio.PCM(wav))
	if err != nil {
		return nil, stats, err
	}
	stats.EncodedBytes = len(out)
	stats.EncodeTime = time.Since(start)
	return out, stats, nil
}

// FLAC encodes mono S16 PCM into a complete FLAC stream.
func FLAC(pcm []byte) ([]byte, error) {
	enc, err := NewFlac()
	if err != nil {
		return nil, err
	}
	samples := audio.Samples(pcm)
	for i := 0; i < len(samples); i += BlockSize {
		if err := enc.EncodeBlock(samples[i:min(i+BlockSize, len(samples))]); err != nil {
			return nil, err
		}
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing flac stream: %w", err)
	}
	return enc.Bytes(), nil
}
