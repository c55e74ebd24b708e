// Package audio converts synthesized speech into something a browser or
// terminal player can use.
package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os/exec"
	"strings"
)

// Format is the encoding of a Clip.
type Format string

const (
	FormatMP3 Format = "mp3"
	FormatPCM Format = "pcm" // raw 16-bit signed little-endian mono
	FormatWAV Format = "wav"
)

// DefaultPCMRate is the sample rate Gemini TTS and Gemini Live emit.
const DefaultPCMRate = 24000

// MP3 encoding settings for all FFmpeg conversions.
const (
	MP3Bitrate    = "128k"
	MP3Codec      = "libmp3lame"
	MP3SampleRate = "24000"
)

// Clip is a piece of encoded audio.
type Clip struct {
	Data       []byte
	Format     Format
	SampleRate int // only meaningful for FormatPCM
}

// MIME returns the content type for the clip's format.
func (c Clip) MIME() string {
	switch c.Format {
	case FormatMP3:
		return "audio/mpeg"
	case FormatWAV:
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

// WrapPCM prefixes raw 16-bit mono PCM with a 44-byte RIFF/WAVE header.
func WrapPCM(pcm []byte, sampleRate int) []byte {
	if sampleRate <= 0 {
		sampleRate = DefaultPCMRate
	}
	const (
		channels      = 1
		bitsPerSample = 16
	)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// HasFFmpeg reports whether ffmpeg is on PATH.
func HasFFmpeg() bool {
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}

// ToMP3 transcodes a PCM or WAV clip to MP3 through ffmpeg, piping through
// stdin and stdout.
func ToMP3(ctx context.Context, c Clip) ([]byte, error) {
	var args []string
	switch c.Format {
	case FormatMP3:
		return c.Data, nil
	case FormatPCM:
		rate := c.SampleRate
		if rate <= 0 {
			rate = DefaultPCMRate
		}
		args = []string{"-f", "s16le", "-ar", fmt.Sprint(rate), "-ac", "1", "-i", "pipe:0"}
	case FormatWAV:
		args = []string{"-i", "pipe:0"}
	default:
		return nil, fmt.Errorf("unsupported audio format for conversion: %s", c.Format)
	}
	args = append(args,
		"-c:a", MP3Codec,
		"-b:a", MP3Bitrate,
		"-ar", MP3SampleRate,
		"-f", "mp3",
		"pipe:1",
	)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stdin = bytes.NewReader(c.Data)
	var stdout bytes.Buffer
	var stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg conversion (%s → mp3) failed: %w\n%s", c.Format, err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output")
	}
	return stdout.Bytes(), nil
}

// Normalize returns browser-playable bytes and their MIME type. MP3 and WAV
// pass through. PCM becomes MP3 when ffmpeg is available and WAV otherwise.
func Normalize(ctx context.Context, c Clip) ([]byte, string) {
	switch c.Format {
	case FormatMP3, FormatWAV:
		return c.Data, c.MIME()
	}
	if HasFFmpeg() {
		if mp3, err := ToMP3(ctx, c); err == nil {
			return mp3, "audio/mpeg"
		}
	}
	return WrapPCM(c.Data, c.SampleRate), "audio/wav"
}

// Sniff guesses the format of encoded bytes from their header.
func Sniff(data []byte) Format {
	switch {
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return FormatWAV
	case len(data) >= 3 && string(data[:3]) == "ID3":
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return FormatMP3
	default:
		return FormatPCM
	}
}
