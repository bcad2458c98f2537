package thumbnail

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
)

// makeImage создаёт градиент заданного размера.
func makeImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	return img
}

func encode(t *testing.T, format string, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg":
		err = jpeg.Encode(&buf, img, nil)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	}
	if err != nil {
		t.Fatalf("ошибка кодирования %s: %v", format, err)
	}
	return buf.Bytes()
}

func TestResize_AllWidths(t *testing.T) {
	for _, format := range []string{"png", "jpeg", "gif"} {
		t.Run(format, func(t *testing.T) {
			src, err := Decode(encode(t, format, makeImage(800, 400)), 0)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if src.Format() != format {
				t.Errorf("Format: ожидалось %s, получено %s", format, src.Format())
			}

			for _, w := range Widths {
				data, err := src.Resize(w)
				if err != nil {
					t.Fatalf("Resize(%d): %v", w, err)
				}
				cfg, gotFormat, err := image.DecodeConfig(bytes.NewReader(data))
				if err != nil {
					t.Fatalf("результат не декодируется: %v", err)
				}
				if gotFormat != format {
					t.Errorf("формат результата: ожидалось %s, получено %s", format, gotFormat)
				}
				if cfg.Width != w || cfg.Height != w/2 {
					t.Errorf("размер: ожидалось %dx%d, получено %dx%d", w, w/2, cfg.Width, cfg.Height)
				}
			}
		})
	}
}

func TestResize_NoUpscale(t *testing.T) {
	src, err := Decode(encode(t, "png", makeImage(120, 60)), 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	data, err := src.Resize(500)
	if err != nil {
		t.Fatalf("Resize: %v", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if cfg.Width != 120 || cfg.Height != 60 {
		t.Errorf("изображение не должно увеличиваться: получено %dx%d", cfg.Width, cfg.Height)
	}

	data, _ = src.Resize(100)
	cfg, _, _ = image.DecodeConfig(bytes.NewReader(data))
	if cfg.Width != 100 || cfg.Height != 50 {
		t.Errorf("Resize(100): получено %dx%d", cfg.Width, cfg.Height)
	}
}

func TestResize_ThinImageKeepsHeight(t *testing.T) {
	src, err := Decode(encode(t, "png", makeImage(1000, 1)), 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	data, err := src.Resize(100)
	if err != nil {
		t.Fatalf("Resize: %v", err)
	}
	cfg, _, _ := image.DecodeConfig(bytes.NewReader(data))
	if cfg.Height != 1 {
		t.Errorf("высота: ожидалась 1, получено %d", cfg.Height)
	}
}

func TestDecode_Unsupported(t *testing.T) {
	cases := map[string][]byte{
		"текст":     []byte("hello world"),
		"пусто":     nil,
		"битый png": append([]byte("\x89PNG\r\n\x1a\n"), []byte("garbage")...),
		"pdf":       []byte("%PDF-1.4\n"),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode(data, 0); !errors.Is(err, ErrUnsupported) {
				t.Errorf("ожидалась ErrUnsupported, получено %v", err)
			}
		})
	}
}

func TestResize_InvalidWidth(t *testing.T) {
	src, _ := Decode(encode(t, "png", makeImage(10, 10)), 0)
	if _, err := src.Resize(0); err == nil {
		t.Error("ожидалась ошибка для нулевой ширины")
	}
}

// withPNGSize переписывает размеры в IHDR и пересчитывает CRC чанка.
func withPNGSize(t *testing.T, data []byte, w, h uint32) []byte {
	t.Helper()
	out := bytes.Clone(data)
	if string(out[12:16]) != "IHDR" {
		t.Fatal("ожидался IHDR первым чанком")
	}
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestDecode_PixelLimit(t *testing.T) {
	// Заголовок заявляет 16000x16000 при крошечном теле
	huge := withPNGSize(t, encode(t, "png", makeImage(1, 1)), 16000, 16000)
	if _, err := Decode(huge, 0); !errors.Is(err, ErrTooLarge) {
		t.Errorf("16000x16000: ожидалась ErrTooLarge, получено %v", err)
	}

	data := encode(t, "png", makeImage(100, 100))
	if _, err := Decode(data, 9_999); !errors.Is(err, ErrTooLarge) {
		t.Errorf("лимит 9999: ожидалась ErrTooLarge, получено %v", err)
	}
	if _, err := Decode(data, 10_000); err != nil {
		t.Errorf("лимит 10000: неожиданная ошибка %v", err)
	}
}
