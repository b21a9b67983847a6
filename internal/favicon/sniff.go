package favicon

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// Format tags stored alongside cached payloads.
const (
	FormatICO  = "ico"
	FormatPNG  = "png"
	FormatGIF  = "gif"
	FormatJPEG = "jpeg"
	FormatBMP  = "bmp"
	FormatWebP = "webp"
	FormatSVG  = "svg"
)

// Sniff identifies an icon payload by its leading bytes and checks that it
// is structurally an image. Content-Type headers are ignored; servers get
// them wrong too often.
func Sniff(data []byte) (string, error) {
	switch {
	case len(data) == 0:
		return "", fmt.Errorf("%w: empty payload", errUnusable)

	case len(data) >= 6 && bytes.HasPrefix(data, []byte{0, 0, 1, 0}):
		if binary.LittleEndian.Uint16(data[4:6]) == 0 {
			return "", fmt.Errorf("%w: ico without images", errUnusable)
		}
		return FormatICO, nil

	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")),
		bytes.HasPrefix(data, []byte("GIF87a")),
		bytes.HasPrefix(data, []byte("GIF89a")),
		bytes.HasPrefix(data, []byte{0xff, 0xd8, 0xff}):
		cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("%w: %w", errUnusable, err)
		}
		if cfg.Width <= 0 || cfg.Height <= 0 {
			return "", fmt.Errorf("%w: zero-sized %s", errUnusable, format)
		}
		return format, nil

	case len(data) >= 26 && bytes.HasPrefix(data, []byte("BM")):
		return FormatBMP, nil

	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return FormatWebP, nil

	case isSVG(data):
		return FormatSVG, nil
	}

	return "", fmt.Errorf("%w: unrecognized image format", errUnusable)
}

func isSVG(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	head = bytes.ToLower(bytes.TrimSpace(bytes.TrimPrefix(head, []byte("\xef\xbb\xbf"))))
	if !bytes.HasPrefix(head, []byte("<svg")) && !bytes.HasPrefix(head, []byte("<?xml")) && !bytes.HasPrefix(head, []byte("<!--")) {
		return false
	}
	return bytes.Contains(head, []byte("<svg"))
}
