package source

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func randomImage(f *gofakeit.Faker, w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{f.Uint8(), f.Uint8(), f.Uint8(), 255})
		}
	}
	return img
}

func TestDecode_RoundTrip(t *testing.T) {
	f := gofakeit.New(42)
	for i := 0; i < 5; i++ {
		w, h := f.IntRange(1, 40), f.IntRange(1, 40)
		img := randomImage(f, w, h)

		p, err := Decode(encodePNG(t, img))
		require.NoError(t, err)
		require.Equal(t, w, p.Width)
		require.Equal(t, h, p.Height)
		require.Len(t, p.Data, 4*w*h)

		x, y := f.IntRange(0, w-1), f.IntRange(0, h-1)
		off := 4 * (y*w + x)
		assert.Equal(t, img.Pix[img.PixOffset(x, y):img.PixOffset(x, y)+4], p.Data[off:off+4])
	}
}

func TestDecode_Unsupported(t *testing.T) {
	_, err := Decode([]byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = DecodeConfig(nil)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDecodeConfig(t *testing.T) {
	data := encodePNG(t, image.NewNRGBA(image.Rect(0, 0, 13, 7)))
	cfg, err := DecodeConfig(data)
	require.NoError(t, err)
	assert.Equal(t, Config{Width: 13, Height: 7, Format: "png"}, cfg)
}

func TestDecode_Oversized(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, MaxTextureSize+8, 10))
	p, err := Decode(encodePNG(t, img))
	require.NoError(t, err)
	assert.Equal(t, MaxTextureSize, p.Width)
	assert.Equal(t, 9, p.Height)
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, limit    int
		wantW, wantH   int
		wantNeedResize bool
	}{
		{100, 50, 200, 100, 50, false},
		{200, 200, 200, 200, 200, false},
		{400, 100, 200, 200, 50, true},
		{100, 400, 200, 50, 200, true},
		{10000, 1, 100, 100, 1, true},
	}
	for _, tt := range tests {
		w, h, ok := FitWithin(tt.w, tt.h, tt.limit)
		assert.Equal(t, tt.wantNeedResize, ok, "%dx%d", tt.w, tt.h)
		assert.Equal(t, tt.wantW, w, "%dx%d width", tt.w, tt.h)
		assert.Equal(t, tt.wantH, h, "%dx%d height", tt.w, tt.h)
	}
}

func TestFromImage_SubImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	img.SetNRGBA(5, 6, color.NRGBA{1, 2, 3, 4})
	sub := img.SubImage(image.Rect(4, 4, 8, 8))

	p := FromImage(sub)
	require.Equal(t, 4, p.Width)
	off := 4 * (2*4 + 1)
	assert.Equal(t, []byte{1, 2, 3, 4}, p.Data[off:off+4])
	assert.Equal(t, p.Data, p.Image().Pix)
}

func TestList_NaturalOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"img10.png", "img2.PNG", "img1.jpg", "notes.txt", "Img3.webp"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0o700))

	sources, err := List(dir)
	require.NoError(t, err)

	var names []string
	for _, s := range sources {
		assert.Equal(t, KindFilesystem, s.Kind)
		names = append(names, s.FileName())
	}
	assert.Equal(t, []string{"img1.jpg", "img2.PNG", "Img3.webp", "img10.png"}, names)
}

func TestList_MissingDir(t *testing.T) {
	_, err := List(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestStore(t *testing.T) {
	s, err := NewStore(context.Background(), StoreConfig{})
	require.NoError(t, err)
	defer s.Close()

	f := gofakeit.New(7)
	content := map[string][]byte{}
	for i := 0; i < 20; i++ {
		path := "archive/" + f.LetterN(8) + ".png"
		data := []byte(f.Sentence(10))
		content[path] = data
		require.NoError(t, s.Put(path, data))
	}
	assert.Equal(t, len(content), s.Len())

	for path, data := range content {
		got, err := s.Get(path)
		require.NoError(t, err)
		assert.Equal(t, data, got)
		assert.True(t, s.Has(path))
	}

	_, err = s.Get("archive/missing.png")
	assert.ErrorIs(t, err, ErrNotPreloaded)

	for path := range content {
		s.Delete(path)
		assert.False(t, s.Has(path))
		break
	}
	assert.Positive(t, s.Stats().Hits)
}

func TestNewStore_InvalidShards(t *testing.T) {
	_, err := NewStore(context.Background(), StoreConfig{Shards: 3})
	assert.Error(t, err)
}

func TestReader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	require.NoError(t, os.WriteFile(path, []byte("file bytes"), 0o600))

	s, err := NewStore(context.Background(), StoreConfig{Shards: 4})
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Put("inner/b.png", []byte("archive bytes")))

	r := Reader{Store: s}
	got, err := r.ReadBytes(File(path))
	require.NoError(t, err)
	assert.Equal(t, "file bytes", string(got))

	got, err = r.ReadBytes(Source{Kind: KindArchive, Path: "inner/b.png"})
	require.NoError(t, err)
	assert.Equal(t, "archive bytes", string(got))

	_, err = r.ReadBytes(Preloaded("inner/c.png"))
	assert.ErrorIs(t, err, ErrNotPreloaded)

	_, err = Reader{}.ReadBytes(Preloaded("inner/b.png"))
	assert.ErrorIs(t, err, ErrNotPreloaded)

	_, err = r.ReadBytes(File(filepath.Join(dir, "missing.png")))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSource_FileName(t *testing.T) {
	assert.Equal(t, "a.png", File(filepath.Join("x", "y", "a.png")).FileName())
	assert.Equal(t, "dir/a.png", Preloaded("dir/a.png").FileName())
	assert.Equal(t, "preloaded:dir/a.png", Preloaded("dir/a.png").String())
}
