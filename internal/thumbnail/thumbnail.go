// Пакет thumbnail — декодирование изображений и построение уменьшенных копий.
// Поддерживаются PNG, JPEG и GIF; копия кодируется в формате исходника.
package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"
)

// Widths — ширины миниатюр в порядке построения.
var Widths = []int{500, 250, 100}

// jpegQuality — качество перекодирования JPEG.
const jpegQuality = 85

// DefaultMaxPixels — лимит площади исходника по умолчанию (50 Мп).
const DefaultMaxPixels int64 = 50_000_000

// Ошибки декодирования.
var (
	// ErrUnsupported — содержимое не является поддерживаемым изображением.
	ErrUnsupported = errors.New("содержимое не является поддерживаемым изображением")
	// ErrTooLarge — заявленные в заголовке размеры превышают лимит.
	ErrTooLarge = errors.New("изображение слишком большое")
)

// Source — декодированное исходное изображение.
type Source struct {
	img    image.Image
	format string
}

type codec struct {
	decode func(io.Reader) (image.Image, error)
	config func(io.Reader) (image.Config, error)
}

var codecs = map[string]codec{
	"png":  {png.Decode, png.DecodeConfig},
	"jpeg": {jpeg.Decode, jpeg.DecodeConfig},
	"gif":  {func(r io.Reader) (image.Image, error) { return gif.Decode(r) }, gif.DecodeConfig},
}

// Decode определяет формат по сигнатуре и декодирует изображение.
// Размеры из заголовка проверяются до декодирования: изображение
// площадью больше maxPixels отклоняется с ErrTooLarge без выделения
// памяти под пиксели. maxPixels <= 0 означает DefaultMaxPixels.
func Decode(data []byte, maxPixels int64) (*Source, error) {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	mt := mimetype.Detect(data)
	var format string
	switch {
	case mt.Is("image/png"):
		format = "png"
	case mt.Is("image/jpeg"):
		format = "jpeg"
	case mt.Is("image/gif"):
		format = "gif"
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, mt.String())
	}
	c := codecs[format]

	cfg, err := c.config(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: размеры %dx%d", ErrUnsupported, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d, лимит %d пикселей", ErrTooLarge, cfg.Width, cfg.Height, maxPixels)
	}

	img, err := c.decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	return &Source{img: img, format: format}, nil
}

// Format возвращает формат исходника (png, jpeg, gif).
func (s *Source) Format() string {
	return s.format
}

// Bounds возвращает размеры исходника.
func (s *Source) Bounds() image.Rectangle {
	return s.img.Bounds()
}

// Resize строит копию шириной не более width с сохранением пропорций.
// Изображение уже width не увеличивается, а перекодируется как есть.
func (s *Source) Resize(width int) ([]byte, error) {
	if width <= 0 {
		return nil, fmt.Errorf("недопустимая ширина %d", width)
	}

	src := s.img.Bounds()
	var out image.Image = s.img

	if src.Dx() > width {
		height := src.Dy() * width / src.Dx()
		if height < 1 {
			height = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), s.img, src, draw.Over, nil)
		out = dst
	}

	var buf bytes.Buffer
	var err error
	switch s.format {
	case "jpeg":
		err = jpeg.Encode(&buf, out, &jpeg.Options{Quality: jpegQuality})
	case "gif":
		err = gif.Encode(&buf, out, nil)
	default:
		err = png.Encode(&buf, out)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка кодирования %s: %w", s.format, err)
	}
	return buf.Bytes(), nil
}
