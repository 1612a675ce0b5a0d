package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tcolgate/mp3"

	"podforge/internal/services"
)

// Prober measures MP3 files by walking their frames.
type Prober struct{}

// NewProber returns a Prober.
func NewProber() *Prober { return &Prober{} }

// Duration returns the playback length of the MP3 at path in seconds.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "rss", "probe", "open audio", err)
	}
	defer f.Close()
	if err := skipID3v2(f); err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "rss", "probe", "skip id3 tag", err)
	}

	decoder := mp3.NewDecoder(f)
	var (
		frame   mp3.Frame
		skipped int
		total   float64
		frames  int
	)
	for {
		if frames%512 == 0 && ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if err := decoder.Decode(&frame, &skipped); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return 0, services.Wrap(services.ErrExternalTool, "rss", "probe", fmt.Sprintf("decode frame %d", frames), err)
		}
		total += frame.Duration().Seconds()
		frames++
	}
	if frames == 0 {
		return 0, services.Wrap(services.ErrExternalTool, "rss", "probe", "no mpeg frames found", nil)
	}
	return total, nil
}

// skipID3v2 positions f after a leading ID3v2 tag, or at the start when there
// is none.
func skipID3v2(f *os.File) error {
	header := make([]byte, 10)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return err
	}
	offset := int64(0)
	if n == len(header) && string(header[:3]) == "ID3" {
		size := int64(header[6]&0x7f)<<21 | int64(header[7]&0x7f)<<14 | int64(header[8]&0x7f)<<7 | int64(header[9]&0x7f)
		offset = 10 + size
		if header[5]&0x10 != 0 {
			offset += 10
		}
	}
	_, err = f.Seek(offset, io.SeekStart)
	return err
}
