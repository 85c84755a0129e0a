package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"buskalo-bff/internal/cache"
	"buskalo-bff/internal/imaging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHost struct {
	published map[string]int
	removed   []string
	err       error
}

func (h *fakeHost) Publish(_ context.Context, id string, blob imaging.Blob) (string, error) {
	if h.err != nil {
		return "", h.err
	}
	h.published[id] = len(blob.Data)
	return "https://cdn.example.com/" + id + ".jpg", nil
}

func (h *fakeHost) Remove(_ context.Context, id string) error {
	h.removed = append(h.removed, id)
	return nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newStore(t *testing.T, host Host) *Store {
	t.Helper()
	c := cache.NewMemory(time.Minute)
	t.Cleanup(func() { _ = c.Close() })
	return NewStore(c, time.Minute, imaging.DefaultOptions, host)
}

func TestStore_PutCropAttach(t *testing.T) {
	s := newStore(t, nil)
	ctx := context.Background()

	u, err := s.Put(ctx, "sid", "banner.png", "image/png", pngBytes(t, 320, 320))
	require.NoError(t, err)
	assert.False(t, u.Info().Cropped)
	assert.Equal(t, "/api/uploads/"+u.ID+"/preview", u.Info().PreviewURL)

	cropped, err := s.Crop(ctx, "sid", u.ID, imaging.CropParams{Aspect: imaging.Banner})
	require.NoError(t, err)
	assert.True(t, cropped.Info().Cropped)

	blob, err := s.Preview(ctx, "sid", u.ID)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", blob.ContentType)
	img, _, err := image.Decode(bytes.NewReader(blob.Data))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(320, 180), img.Bounds().Size())

	file, err := s.Attachment(ctx, "sid", u.ID, "shop_image")
	require.NoError(t, err)
	assert.Equal(t, "shop_image.jpg", file.Name)
	assert.NotEmpty(t, file.Data)
}

func TestStore_UploadsAreScopedToSession(t *testing.T) {
	s := newStore(t, nil)
	ctx := context.Background()

	u, err := s.Put(ctx, "sid", "a.png", "image/png", pngBytes(t, 10, 10))
	require.NoError(t, err)

	_, err = s.Get(ctx, "other", u.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	s.Discard(ctx, "sid", u.ID)
	_, err = s.Get(ctx, "sid", u.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RejectsUnsupported(t *testing.T) {
	s := newStore(t, nil)

	_, err := s.Put(context.Background(), "sid", "a.gif", "image/gif", []byte("GIF89a"))
	assert.ErrorIs(t, err, imaging.ErrUnsupportedFormat)
}

func TestStore_PutDataURL(t *testing.T) {
	s := newStore(t, nil)
	raw := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t, 8, 8))

	u, err := s.PutDataURL(context.Background(), "sid", "", raw)
	require.NoError(t, err)
	assert.Equal(t, "upload.png", u.Name)
	assert.Equal(t, "image/png", u.ContentType)

	_, err = s.PutDataURL(context.Background(), "sid", "", "not a data url")
	assert.ErrorIs(t, err, imaging.ErrUnsupportedFormat)
}

func TestStore_HostedPreview(t *testing.T) {
	host := &fakeHost{published: map[string]int{}}
	s := newStore(t, host)
	ctx := context.Background()

	u, err := s.Put(ctx, "sid", "a.png", "image/png", pngBytes(t, 50, 50))
	require.NoError(t, err)
	u, err = s.Crop(ctx, "sid", u.ID, imaging.CropParams{Aspect: imaging.Square})
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/"+u.ID+".jpg", u.Info().PreviewURL)
	assert.Contains(t, host.published, u.ID)

	s.Discard(ctx, "sid", u.ID)
	assert.Equal(t, []string{u.ID}, host.removed)
}

func TestStore_HostFailureFallsBackToLocalPreview(t *testing.T) {
	s := newStore(t, &fakeHost{err: errors.New("down")})
	ctx := context.Background()

	u, err := s.Put(ctx, "sid", "a.png", "image/png", pngBytes(t, 50, 50))
	require.NoError(t, err)
	u, err = s.Crop(ctx, "sid", u.ID, imaging.CropParams{Aspect: imaging.Square})
	require.NoError(t, err)

	assert.Equal(t, "/api/uploads/"+u.ID+"/preview", u.Info().PreviewURL)
}
