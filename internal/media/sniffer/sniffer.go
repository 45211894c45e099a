package sniffer

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
)

type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatWEBP Format = "webp"
	FormatMP4  Format = "mp4"
	FormatWEBM Format = "webm"
	FormatAVI  Format = "avi"
	FormatMOV  Format = "mov"
)

var ErrUnknownType = errors.New("unknown media type")

type Result struct {
	Format Format
	MIME   string
	Video  bool
}

func Detect(r io.Reader) (Result, []byte, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Result{}, nil, err
	}
	head = head[:n]

	result, err := DetectHead(head)
	return result, head, err
}

func DetectHead(head []byte) (Result, error) {
	if len(head) == 0 {
		return Result{}, ErrUnknownType
	}

	if isJPEG(head) {
		return Result{Format: FormatJPEG, MIME: "image/jpeg"}, nil
	}
	if isPNG(head) {
		return Result{Format: FormatPNG, MIME: "image/png"}, nil
	}
	if isGIF(head) {
		return Result{Format: FormatGIF, MIME: "image/gif"}, nil
	}
	if isWEBP(head) {
		return Result{Format: FormatWEBP, MIME: "image/webp"}, nil
	}
	if isMP4(head) {
		if bytes.Contains(head[8:12], []byte("qt")) {
			return Result{Format: FormatMOV, MIME: "video/quicktime", Video: true}, nil
		}
		return Result{Format: FormatMP4, MIME: "video/mp4", Video: true}, nil
	}
	if isWEBM(head) {
		return Result{Format: FormatWEBM, MIME: "video/webm", Video: true}, nil
	}
	if isAVI(head) {
		return Result{Format: FormatAVI, MIME: "video/x-msvideo", Video: true}, nil
	}

	return Result{}, ErrUnknownType
}

func isJPEG(head []byte) bool {
	return len(head) > 3 &&
		head[0] == 0xff &&
		head[1] == 0xd8 &&
		head[2] == 0xff
}

func isPNG(head []byte) bool {
	pngMagic := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	return len(head) >= len(pngMagic) && bytes.Equal(head[:len(pngMagic)], pngMagic)
}

func isGIF(head []byte) bool {
	return len(head) >= 6 && (bytes.Equal(head[:6], []byte("GIF87a")) || bytes.Equal(head[:6], []byte("GIF89a")))
}

func isWEBP(head []byte) bool {
	return len(head) >= 12 &&
		bytes.Equal(head[:4], []byte("RIFF")) &&
		bytes.Equal(head[8:12], []byte("WEBP"))
}

// isMP4 matches the ISO BMFF ftyp box, which covers mp4, m4v and QuickTime
// containers. The major brand distinguishes QuickTime.
func isMP4(head []byte) bool {
	return len(head) >= 12 && bytes.Equal(head[4:8], []byte("ftyp"))
}

func isWEBM(head []byte) bool {
	// EBML header shared by webm and mkv.
	return len(head) >= 4 && bytes.Equal(head[:4], []byte{0x1a, 0x45, 0xdf, 0xa3})
}

func isAVI(head []byte) bool {
	return len(head) >= 12 &&
		bytes.Equal(head[:4], []byte("RIFF")) &&
		bytes.Equal(head[8:12], []byte("AVI "))
}

func MimeTypeFromHTTP(header http.Header) string {
	contentType := header.Get("Content-Type")
	if contentType == "" {
		return ""
	}
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		return strings.TrimSpace(contentType[:idx])
	}
	return strings.TrimSpace(contentType)
}
