package sniffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectHead(t *testing.T) {
	t.Run("PNG", func(t *testing.T) {
		head := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}
		res, err := DetectHead(head)
		require.NoError(t, err)
		assert.Equal(t, FormatPNG, res.Format)
		assert.Equal(t, "image/png", res.MIME)
		assert.False(t, res.Video)
	})

	t.Run("JPEG", func(t *testing.T) {
		res, err := DetectHead([]byte{0xff, 0xd8, 0xff, 0xe0})
		require.NoError(t, err)
		assert.Equal(t, FormatJPEG, res.Format)
	})

	t.Run("MP4", func(t *testing.T) {
		head := append([]byte{0, 0, 0, 0x18}, []byte("ftypisom")...)
		head = append(head, make([]byte, 8)...)
		res, err := DetectHead(head)
		require.NoError(t, err)
		assert.Equal(t, FormatMP4, res.Format)
		assert.True(t, res.Video)
	})

	t.Run("QuickTime", func(t *testing.T) {
		head := append([]byte{0, 0, 0, 0x14}, []byte("ftypqt  ")...)
		head = append(head, make([]byte, 8)...)
		res, err := DetectHead(head)
		require.NoError(t, err)
		assert.Equal(t, FormatMOV, res.Format)
	})

	t.Run("WEBM", func(t *testing.T) {
		res, err := DetectHead([]byte{0x1a, 0x45, 0xdf, 0xa3, 0x01})
		require.NoError(t, err)
		assert.Equal(t, FormatWEBM, res.Format)
		assert.True(t, res.Video)
	})

	t.Run("AVIvsWEBP", func(t *testing.T) {
		avi := append([]byte("RIFF"), 0, 0, 0, 0)
		avi = append(avi, []byte("AVI ")...)
		res, err := DetectHead(avi)
		require.NoError(t, err)
		assert.Equal(t, FormatAVI, res.Format)

		webp := append([]byte("RIFF"), 0, 0, 0, 0)
		webp = append(webp, []byte("WEBP")...)
		res, err = DetectHead(webp)
		require.NoError(t, err)
		assert.Equal(t, FormatWEBP, res.Format)
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := DetectHead([]byte("plain text"))
		assert.ErrorIs(t, err, ErrUnknownType)
	})
}
