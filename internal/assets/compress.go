package assets

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
}

func contentTypeFor(ext string) string {
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

type processedImage struct {
	data       []byte
	width      int
	height     int
	compressed bool
}

// processImage decodes data to validate it and read its dimensions. JPEG and
// PNG payloads larger than compressAbove are re-encoded once and the result
// kept only when it is smaller.
func processImage(data []byte, ext string, compressAbove int64, jpegQuality int) (processedImage, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return processedImage{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	b := img.Bounds()
	out := processedImage{data: data, width: b.Dx(), height: b.Dy()}

	if int64(len(data)) <= compressAbove {
		return out, nil
	}

	format, err := imaging.FormatFromExtension(ext)
	if err != nil || (format != imaging.JPEG && format != imaging.PNG) {
		return out, nil
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format,
		imaging.JPEGQuality(jpegQuality),
		imaging.PNGCompressionLevel(png.BestCompression),
	); err != nil {
		return out, nil
	}
	if buf.Len() < len(data) {
		out.data = buf.Bytes()
		out.compressed = true
	}
	return out, nil
}
