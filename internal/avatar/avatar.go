package avatar

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"

	"guildkeeper/internal/utils"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	MaxSide = 1024

	maxDownload = 8 << 20
)

var ErrTooLarge = errors.New("avatar image too large")

// Prepare downloads url, scales the image to fit MaxSide and returns it as a
// base64 PNG data URI.
func Prepare(ctx context.Context, client *http.Client, url string) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	target, err := utils.HTTPURL(url)
	if err != nil {
		return "", fmt.Errorf("avatar url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("avatar fetch: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownload+1))
	if err != nil {
		return "", err
	}
	if len(data) > maxDownload {
		return "", ErrTooLarge
	}
	return Encode(data)
}

func Encode(data []byte) (string, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("avatar decode: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, Fit(src, MaxSide)); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Fit scales src down, keeping its aspect ratio, so neither side exceeds limit.
func Fit(src image.Image, limit int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= limit && h <= limit {
		return src
	}
	if w >= h {
		h = h * limit / w
		w = limit
	} else {
		w = w * limit / h
		h = limit
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}
