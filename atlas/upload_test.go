package atlas_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/slider/atlas"
	"github.com/gogpu/slider/atlas/atlastest"
)

// gradient returns a w×h RGBA8 image whose pixels encode their position.
func gradient(w, h int) []byte {
	out := make([]byte, 4*w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := 4 * (y*w + x)
			out[i] = byte(x)
			out[i+1] = byte(y)
			out[i+2] = byte(x*7 + y*3)
			out[i+3] = 255
		}
	}
	return out
}

func solid(w, h int, c [4]byte) []byte {
	out := make([]byte, 4*w*h)
	for i := 0; i < w*h; i++ {
		copy(out[4*i:], c[:])
	}
	return out
}

func crop(img []byte, width, x, y, w, h int) []byte {
	out := make([]byte, 0, 4*w*h)
	for row := y; row < y+h; row++ {
		out = append(out, img[4*(row*width+x):4*(row*width+x+w)]...)
	}
	return out
}

// flipRows returns img with its rows in reverse order.
func flipRows(img []byte, width, height int) []byte {
	out := make([]byte, 0, len(img))
	for row := height - 1; row >= 0; row-- {
		out = append(out, img[4*row*width:4*(row+1)*width]...)
	}
	return out
}

func upload(t *testing.T, a *atlas.Atlas, dev *atlastest.Device, w, h int, pixels []byte) *atlas.Entry {
	t.Helper()
	enc, err := dev.CreateEncoder("upload")
	require.NoError(t, err)
	e, err := a.Upload(enc, w, h, pixels)
	require.NoError(t, err, "Upload(%dx%d)", w, h)
	require.NoError(t, dev.Submit(enc))
	return e
}

func readEntry(a *atlas.Atlas, e *atlas.Entry, f atlas.Fragment) []byte {
	return readBinding(a.Binding(), f)
}

func readBinding(b atlas.Binding, f atlas.Fragment) []byte {
	tex := b.Texture.(*atlastest.Texture)
	x, y := f.Allocation.Position()
	w, h := f.Allocation.Size()
	return tex.ReadRGBA(f.Allocation.Layer, x, y, w, h)
}

func TestUpload_Contiguous(t *testing.T) {
	a, dev := newTestAtlas(t, testConfig())

	img := gradient(10, 7)
	e := upload(t, a, dev, 10, 7, img)
	require.False(t, e.Fragmented())

	assert.Equal(t, img, readEntry(a, e, atlas.Fragment{Allocation: e.Allocation}))
	assert.Equal(t, 1, dev.Stats().BufferCopies)
}

func TestUpload_Fragmented(t *testing.T) {
	a, dev := newTestAtlas(t, testConfig())

	const w, h = 150, 70
	img := gradient(w, h)
	e := upload(t, a, dev, w, h, img)

	assert.Equal(t, len(e.Fragments), dev.Stats().BufferCopies, "one copy per fragment")
	for i, f := range e.Fragments {
		fw, fh := f.Allocation.Size()
		assert.Equal(t, crop(img, w, f.X, f.Y, fw, fh), readEntry(a, e, f),
			"fragment %d at (%d,%d)", i, f.X, f.Y)
	}
}

func TestUpload_FlipY(t *testing.T) {
	cfg := testConfig()
	cfg.FlipY = true
	a, dev := newTestAtlas(t, cfg)

	img := gradient(4, 3)
	e := upload(t, a, dev, 4, 3, img)
	got := readEntry(a, e, atlas.Fragment{Allocation: e.Allocation})

	for row := 0; row < 3; row++ {
		assert.Equal(t, img[4*4*(2-row):4*4*(3-row)], got[4*4*row:4*4*(row+1)],
			"row %d is source row %d", row, 2-row)
	}
}

func TestUpload_FlipYFragmented(t *testing.T) {
	const w, h = 150, 70
	tests := []struct {
		name        string
		compression atlas.Compression
		pixels      []byte
	}{
		{"rgba", atlas.CompressionNone, gradient(w, h)},
		{"bc1", atlas.CompressionBC1, solid(w, h, [4]byte{255, 255, 255, 255})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.FlipY = true
			cfg.Compression = tt.compression
			a, dev := newTestAtlas(t, cfg)

			e := upload(t, a, dev, w, h, tt.pixels)
			require.True(t, e.Fragmented())

			want := flipRows(tt.pixels, w, h)
			// Fragment positions count from the bottom edge: the
			// fragment at Y=0 holds the last image rows, bottom-up.
			for i, f := range e.Fragments {
				fw, fh := f.Allocation.Size()
				assert.Equal(t, crop(want, w, f.X, f.Y, fw, fh), readEntry(a, e, f),
					"fragment %d at (%d,%d)", i, f.X, f.Y)
			}
		})
	}
}

func TestUpload_PixelDataSize(t *testing.T) {
	a, dev := newTestAtlas(t, testConfig())
	enc, err := dev.CreateEncoder("short")
	require.NoError(t, err)

	_, err = a.Upload(enc, 8, 8, make([]byte, 10))
	assert.ErrorIs(t, err, atlas.ErrPixelDataSize)
	assert.Zero(t, a.Stats().Allocations)
}

func TestUpload_RowAlignment(t *testing.T) {
	for _, align := range []int{1, 4, 256, 512} {
		dev := atlastest.NewDeviceWithAlignment(align)
		a, err := atlas.New(dev, testConfig())
		require.NoError(t, err)

		img := gradient(13, 5)
		enc, err := dev.CreateEncoder("align")
		require.NoError(t, err)
		e, err := a.Upload(enc, 13, 5, img)
		require.NoError(t, err, "align %d", align)
		require.NoError(t, dev.Submit(enc), "align %d", align)

		assert.Equal(t, img, readEntry(a, e, atlas.Fragment{Allocation: e.Allocation}), "align %d", align)
		a.Close()
	}
}

func TestUpload_GrowsAndPreservesLayers(t *testing.T) {
	cfg := testConfig()
	grows := 0
	var last atlas.Binding
	cfg.OnGrow = func(b atlas.Binding) {
		grows++
		last = b
	}
	a, dev := newTestAtlas(t, cfg)

	red := [4]byte{255, 0, 0, 255}
	blue := [4]byte{0, 0, 255, 255}
	first := upload(t, a, dev, testSize, testSize, solid(testSize, testSize, red))
	firstTex := a.Binding().Texture.(*atlastest.Texture)
	second := upload(t, a, dev, testSize, testSize, solid(testSize, testSize, blue))

	require.Equal(t, 1, grows)
	b := a.Binding()
	assert.Equal(t, 2, b.Layers)
	assert.EqualValues(t, 1, b.Generation)
	assert.EqualValues(t, 1, last.Generation)
	assert.True(t, firstTex.Destroyed(), "old texture released after the grow submission completed")

	tex := b.Texture.(*atlastest.Texture)
	assert.Equal(t, red, tex.Pixel(first.Allocation.Layer, 5, 5))
	assert.Equal(t, blue, tex.Pixel(second.Allocation.Layer, 5, 5))
}

func TestUpload_GrowFailureIsAtlasFull(t *testing.T) {
	a, dev := newTestAtlas(t, testConfig())
	upload(t, a, dev, testSize, testSize, solid(testSize, testSize, [4]byte{9, 9, 9, 255}))

	dev.MaxTextureLayers = 1
	enc, err := dev.CreateEncoder("upload")
	require.NoError(t, err)
	_, err = a.Upload(enc, 8, 8, gradient(8, 8))
	require.ErrorIs(t, err, atlas.ErrAtlasFull)
	require.ErrorIs(t, err, atlastest.ErrInjected)
	enc.Discard()

	assert.Equal(t, 1, a.LayerCount(), "layer appended for the failed upload is dropped")
	assert.Equal(t, 1, a.Stats().Allocations)
	assert.Equal(t, 1, dev.LiveTextures())
}

func TestGrow_CopiesNonEmptyLayers(t *testing.T) {
	cfg := testConfig()
	cfg.InitialLayers = 3
	a, dev := newTestAtlas(t, cfg)

	colors := [][4]byte{{1, 1, 1, 255}, {2, 2, 2, 255}, {3, 3, 3, 255}}
	entries := make([]*atlas.Entry, len(colors))
	for i, c := range colors {
		entries[i] = upload(t, a, dev, testSize, testSize, solid(testSize, testSize, c))
	}
	a.Remove(entries[1])
	dev.ResetStats()

	enc, err := dev.CreateEncoder("grow")
	require.NoError(t, err)
	require.NoError(t, a.Grow(enc, 2))
	require.NoError(t, dev.Submit(enc))

	s := dev.Stats()
	assert.Equal(t, 2, s.TextureCopies)
	assert.Equal(t, []int{0, 2}, s.TextureCopyLayers)
	assert.Equal(t, 5, a.LayerCount())
	assert.Equal(t, 5, a.Binding().Layers)

	tex := a.Binding().Texture.(*atlastest.Texture)
	for _, i := range []int{0, 2} {
		assert.Equal(t, colors[i], tex.Pixel(entries[i].Allocation.Layer, 0, 0), "layer %d", i)
	}
	assert.Equal(t, 3, a.Stats().EmptyLayers)

	enc, err = dev.CreateEncoder("noop")
	require.NoError(t, err)
	require.NoError(t, a.Grow(enc, 0))
	assert.EqualValues(t, 1, a.Binding().Generation, "Grow(0) keeps the generation")
}

func TestUploadBC1(t *testing.T) {
	cfg := testConfig()
	cfg.Compression = atlas.CompressionBC1
	a, dev := newTestAtlas(t, cfg)

	white := [4]byte{255, 255, 255, 255}
	e := upload(t, a, dev, 8, 12, solid(8, 12, white))
	require.Equal(t, atlas.FormatBC1, a.Binding().Format)
	assert.Equal(t, solid(8, 12, white), readEntry(a, e, atlas.Fragment{Allocation: e.Allocation}))
}

func TestUploadBC1_RejectsUnaligned(t *testing.T) {
	cfg := testConfig()
	cfg.Compression = atlas.CompressionBC1
	a, dev := newTestAtlas(t, cfg)

	enc, err := dev.CreateEncoder("bc1")
	require.NoError(t, err)
	_, err = a.Upload(enc, 10, 10, solid(10, 10, [4]byte{1, 2, 3, 255}))
	assert.ErrorIs(t, err, atlas.ErrInvalidCompressionInput)
	assert.Zero(t, a.Stats().Allocations)
}

func TestUploadBC1_PadsEdgeFragments(t *testing.T) {
	cfg := testConfig()
	cfg.Compression = atlas.CompressionBC1
	a, dev := newTestAtlas(t, cfg)

	white := [4]byte{255, 255, 255, 255}
	const w, h = 70, 66
	e := upload(t, a, dev, w, h, solid(w, h, white))
	require.Len(t, e.Fragments, 4)

	for i, f := range e.Fragments {
		x, y := f.Allocation.Position()
		assert.Zero(t, x%4, "fragment %d x block aligned", i)
		assert.Zero(t, y%4, "fragment %d y block aligned", i)
		fw, fh := f.Allocation.Size()
		assert.Equal(t, solid(fw, fh, white), readEntry(a, e, f), "fragment %d (%dx%d)", i, fw, fh)
	}
}

func newTestShared(t *testing.T, dev *atlastest.Device, cfg atlas.Config) *atlas.Shared {
	t.Helper()
	s, err := atlas.NewShared(dev, cfg)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestShared_ConcurrentUploads(t *testing.T) {
	s := newTestShared(t, atlastest.NewDevice(), testConfig())

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				w, h := 4+(i+j)%30, 4+(i*j)%30
				e, err := s.Upload(w, h, gradient(w, h))
				if err != nil {
					errs <- err
					return
				}
				_ = s.Binding()
				s.Remove(e)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	assert.Zero(t, s.Stats().Allocations)
	assert.GreaterOrEqual(t, s.LayerCount(), 1)
}

func TestShared_UploadFailureDiscards(t *testing.T) {
	dev := atlastest.NewDevice()
	cfg := testConfig()
	cfg.MaxLayers = 1
	s := newTestShared(t, dev, cfg)

	_, err := s.Upload(testSize, testSize, solid(testSize, testSize, [4]byte{}))
	require.NoError(t, err)
	_, err = s.Upload(8, 8, gradient(8, 8))
	assert.ErrorIs(t, err, atlas.ErrAtlasFull)
	assert.Equal(t, 1, dev.Stats().Submits)
}

func TestShared_GrowFailures(t *testing.T) {
	red := [4]byte{255, 0, 0, 255}
	tests := []struct {
		name   string
		modify func(*atlastest.Device)
	}{
		{"texture too large", func(d *atlastest.Device) { d.MaxTextureLayers = 1 }},
		{"grow submission", func(d *atlastest.Device) { d.FailSubmit = "atlas grow" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := atlastest.NewDevice()
			s := newTestShared(t, dev, testConfig())

			first, err := s.Upload(testSize, testSize, solid(testSize, testSize, red))
			require.NoError(t, err)
			before := s.Binding()

			tt.modify(dev)
			_, err = s.Upload(testSize, testSize, gradient(testSize, testSize))
			require.ErrorIs(t, err, atlas.ErrAtlasFull)
			require.ErrorIs(t, err, atlastest.ErrInjected)

			after := s.Binding()
			assert.Same(t, before.Texture, after.Texture)
			assert.Equal(t, before.Generation, after.Generation)
			assert.Equal(t, 1, s.LayerCount())
			assert.Equal(t, 1, s.Stats().Allocations)
			assert.Equal(t, 1, dev.LiveTextures(), "unused grown texture is destroyed")
			assert.Equal(t, red, after.Texture.(*atlastest.Texture).Pixel(first.Allocation.Layer, 3, 3))
		})
	}
}

func TestShared_UploadSubmitFailureAfterGrow(t *testing.T) {
	red := [4]byte{255, 0, 0, 255}
	blue := [4]byte{0, 0, 255, 255}
	dev := atlastest.NewDevice()
	s := newTestShared(t, dev, testConfig())

	first, err := s.Upload(testSize, testSize, solid(testSize, testSize, red))
	require.NoError(t, err)
	oldTex := s.Binding().Texture.(*atlastest.Texture)

	dev.FailSubmit = "atlas upload"
	_, err = s.Upload(testSize, testSize, solid(testSize, testSize, blue))
	require.ErrorIs(t, err, atlastest.ErrInjected)

	// The grow went out on its own submission, so the new texture holds
	// the earlier image and the old one is gone.
	b := s.Binding()
	assert.Equal(t, 2, b.Layers)
	assert.EqualValues(t, 1, b.Generation)
	assert.True(t, oldTex.Destroyed())
	assert.Equal(t, 1, dev.LiveTextures())
	assert.Equal(t, 1, s.Stats().Allocations)
	assert.Equal(t, red[:], readBinding(b, atlas.Fragment{Allocation: first.Allocation})[:4])

	dev.FailSubmit = ""
	second, err := s.Upload(testSize, testSize, solid(testSize, testSize, blue))
	require.NoError(t, err)
	assert.Equal(t, 1, second.Allocation.Layer)
	assert.EqualValues(t, 1, s.Binding().Generation, "no further grow needed")
}

func TestNewImageTexture(t *testing.T) {
	tests := []struct {
		name        string
		w, h        int
		compression atlas.Compression
		format      atlas.Format
	}{
		{"rgba", 10, 7, atlas.CompressionNone, atlas.FormatRGBA8},
		{"bc1 aligned", 8, 12, atlas.CompressionBC1, atlas.FormatBC1},
		{"bc1 unaligned falls back", 10, 7, atlas.CompressionBC1, atlas.FormatRGBA8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := atlastest.NewDevice()
			enc, err := dev.CreateEncoder("image")
			require.NoError(t, err)
			img := solid(tt.w, tt.h, [4]byte{255, 0, 0, 255})

			tex, view, err := atlas.NewImageTexture(dev, enc, "image", tt.w, tt.h, img, tt.compression, false)
			require.NoError(t, err)
			require.NoError(t, dev.Submit(enc))

			assert.Equal(t, tt.format, tex.Format())
			assert.Equal(t, 1, tex.Layers())
			assert.Equal(t, tex, view.Texture())
			assert.Equal(t, img, tex.(*atlastest.Texture).ReadRGBA(0, 0, 0, tt.w, tt.h))
		})
	}
}

func TestNewImageTexture_FlipY(t *testing.T) {
	dev := atlastest.NewDevice()
	enc, err := dev.CreateEncoder("image")
	require.NoError(t, err)
	img := gradient(5, 3)

	tex, _, err := atlas.NewImageTexture(dev, enc, "image", 5, 3, img, atlas.CompressionNone, true)
	require.NoError(t, err)
	require.NoError(t, dev.Submit(enc))

	assert.Equal(t, crop(img, 5, 0, 2, 5, 1), tex.(*atlastest.Texture).ReadRGBA(0, 0, 0, 5, 1),
		"top texture row is the bottom image row")
}

func TestNewImageTexture_Invalid(t *testing.T) {
	dev := atlastest.NewDevice()
	enc, err := dev.CreateEncoder("image")
	require.NoError(t, err)

	_, _, err = atlas.NewImageTexture(dev, enc, "image", 0, 4, nil, atlas.CompressionNone, false)
	assert.ErrorIs(t, err, atlas.ErrInvalidDimensions)
	_, _, err = atlas.NewImageTexture(dev, enc, "image", 4, 4, make([]byte, 10), atlas.CompressionNone, false)
	assert.ErrorIs(t, err, atlas.ErrPixelDataSize)
	assert.Zero(t, dev.LiveTextures())
}
