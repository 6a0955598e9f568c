package assetproc

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/HugoSmits86/nativewebp"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp"
)

var formatMimeTypes = map[string]string{
	"jpeg": "image/jpeg",
	"jpg":  "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// transformAsset decodes the image, applies the resize and re-encodes it
// in the requested format. The input stream is fully consumed and closed.
func (s *Service) transformAsset(asset *Result, resizeReq *Resize, convert *Convert) (*Result, error) {
	defer asset.Stream.Close()

	img, sourceFormat, err := image.Decode(asset.Stream)
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	if resizeReq != nil && (resizeReq.Width > 0 || resizeReq.Height > 0) {
		img = s.resizeImage(img, resizeReq)
	}

	targetFormat := sourceFormat
	quality := s.config.DefaultQuality
	if convert != nil && convert.Format != "" {
		targetFormat = convert.Format
		if convert.Quality > 0 {
			quality = convert.Quality
		}
	}

	var buf bytes.Buffer
	if err := encodeImage(&buf, img, targetFormat, quality); err != nil {
		return nil, err
	}

	mimeType, ok := formatMimeTypes[targetFormat]
	if !ok {
		mimeType = asset.Meta.MimeType
	}
	meta := asset.Meta
	meta.MimeType = mimeType
	meta.Size = int64(buf.Len())

	return &Result{
		Stream: io.NopCloser(bytes.NewReader(buf.Bytes())),
		Meta:   meta,
	}, nil
}

// resizeImage applies the requested fit mode. Without ScaleUp the source is
// never enlarged; a request bigger than the source comes back unchanged.
func (s *Service) resizeImage(img image.Image, req *Resize) image.Image {
	bounds := img.Bounds()
	sourceWidth, sourceHeight := bounds.Dx(), bounds.Dy()

	width, height := req.Width, req.Height
	if !s.config.ScaleUp {
		if width > sourceWidth {
			width = sourceWidth
		}
		if height > sourceHeight {
			height = sourceHeight
		}
	}
	if width <= 0 && height <= 0 {
		return img
	}

	fit := req.Fit
	if fit == "" {
		fit = FitCover
	}
	// With a single dimension given every mode degenerates to a
	// ratio-preserving resize.
	if width <= 0 || height <= 0 {
		return resize.Resize(uint(max(width, 0)), uint(max(height, 0)), img, resize.Lanczos3)
	}

	switch fit {
	case FitFill:
		return resize.Resize(uint(width), uint(height), img, resize.Lanczos3)
	case FitContain:
		return resize.Thumbnail(uint(width), uint(height), img, resize.Lanczos3)
	default:
		return coverResize(img, width, height)
	}
}

// coverResize scales the image so both target dimensions are covered, then
// crops the overflow around the center.
func coverResize(img image.Image, width, height int) image.Image {
	bounds := img.Bounds()
	sourceWidth, sourceHeight := bounds.Dx(), bounds.Dy()

	scaleX := float64(width) / float64(sourceWidth)
	scaleY := float64(height) / float64(sourceHeight)
	var scaled image.Image
	if scaleX > scaleY {
		scaled = resize.Resize(uint(width), 0, img, resize.Lanczos3)
	} else {
		scaled = resize.Resize(0, uint(height), img, resize.Lanczos3)
	}

	scaledBounds := scaled.Bounds()
	offsetX := (scaledBounds.Dx() - width) / 2
	offsetY := (scaledBounds.Dy() - height) / 2

	cropped := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(cropped, cropped.Bounds(), scaled, scaledBounds.Min.Add(image.Pt(offsetX, offsetY)), draw.Src)
	return cropped
}

func encodeImage(w io.Writer, img image.Image, format string, quality int) error {
	switch format {
	case "jpeg", "jpg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case "png":
		return png.Encode(w, img)
	case "gif":
		return gif.Encode(w, img, nil)
	case "webp":
		return nativewebp.Encode(w, img, nil)
	default:
		return fmt.Errorf("unsupported target format: %s", format)
	}
}
