package imgcache

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

	"github.com/gogpu/slider/atlas"
	"github.com/gogpu/slider/atlas/atlastest"
	"github.com/gogpu/slider/source"
)

type imageSize struct{ w, h int }

// writeImages writes random PNGs of the given sizes and returns them in
// collection order.
func writeImages(t *testing.T, sizes ...imageSize) []source.Source {
	t.Helper()
	dir := t.TempDir()
	f := gofakeit.New(11)
	for i, s := range sizes {
		img := image.NewNRGBA(image.Rect(0, 0, s.w, s.h))
		for y := 0; y < s.h; y++ {
			for x := 0; x < s.w; x++ {
				img.SetNRGBA(x, y, color.NRGBA{f.Uint8(), f.Uint8(), f.Uint8(), 255})
			}
		}
		var buf bytes.Buffer
		require.NoError(t, png.Encode(&buf, img))
		name := filepath.Join(dir, "img"+string(rune('a'+i))+".png")
		require.NoError(t, os.WriteFile(name, buf.Bytes(), 0o600))
	}
	sources, err := source.List(dir)
	require.NoError(t, err)
	require.Len(t, sources, len(sizes))
	return sources
}

func newSharedAtlas(t *testing.T, dev *atlastest.Device, modify func(*atlas.Config)) *atlas.Shared {
	t.Helper()
	cfg := atlas.DefaultConfig()
	cfg.Size = 64
	if modify != nil {
		modify(&cfg)
	}
	a, err := atlas.NewShared(dev, cfg)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestCPUBackend(t *testing.T) {
	sources := writeImages(t, imageSize{13, 7})
	b := &CPUBackend{}

	data, err := Load(context.Background(), b, sources[0])
	require.NoError(t, err)
	assert.Equal(t, KindCPU, data.Kind())
	assert.Equal(t, Metadata{Width: 13, Height: 7, FileSize: uint64(data.Len())}, data.Metadata())

	encoded, err := data.Bytes()
	require.NoError(t, err)
	p, err := source.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, 13, p.Width)
	b.Release(data)

	_, err = Load(context.Background(), b, source.File(filepath.Join(t.TempDir(), "missing.png")))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestTextureBackend(t *testing.T) {
	sources := writeImages(t, imageSize{8, 8}, imageSize{10, 6})
	tests := []struct {
		name        string
		src         source.Source
		compression atlas.Compression
		wantKind    Kind
	}{
		{"rgba", sources[0], atlas.CompressionNone, KindTexture},
		{"bc1", sources[0], atlas.CompressionBC1, KindBC1},
		{"bc1 unaligned", sources[1], atlas.CompressionBC1, KindTexture},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := atlastest.NewDevice()
			b := &TextureBackend{Device: dev, Compression: tt.compression}

			data, err := Load(context.Background(), b, tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, data.Kind())
			assert.Equal(t, tt.wantKind == KindBC1, data.IsCompressed())
			require.NotNil(t, data.Texture())
			assert.Equal(t, data.Texture(), data.View().Texture())
			assert.Equal(t, 1, dev.LiveTextures())

			b.Release(data)
			assert.Zero(t, dev.LiveTextures())
		})
	}
}

func TestTextureBackend_UploadsPixels(t *testing.T) {
	sources := writeImages(t, imageSize{5, 3})
	dev := atlastest.NewDevice()
	b := &TextureBackend{Device: dev}

	d, err := b.Decode(sources[0])
	require.NoError(t, err)
	data, err := b.Store(context.Background(), d)
	require.NoError(t, err)
	defer b.Release(data)

	got := data.Texture().(*atlastest.Texture).ReadRGBA(0, 0, 0, 5, 3)
	assert.Equal(t, d.Pixels.Data, got)
}

func TestAtlasBackend(t *testing.T) {
	sources := writeImages(t, imageSize{20, 20}, imageSize{100, 40}, imageSize{30, 10})
	dev := atlastest.NewDevice()
	shared := newSharedAtlas(t, dev, nil)
	b := NewAtlasBackend(source.Reader{}, shared)

	var all []*CachedData
	for _, src := range sources {
		data, err := Load(context.Background(), b, src)
		require.NoError(t, err)
		assert.Equal(t, KindAtlas, data.Kind())
		require.NotNil(t, data.Entry())
		all = append(all, data)
	}
	assert.True(t, all[1].Entry().Fragmented())
	assert.Len(t, all[1].Entry().Fragments, 2)
	assert.Equal(t, 4, shared.Stats().Allocations)
	assert.Zero(t, b.Fallbacks())

	for _, data := range all {
		b.Release(data)
	}
	assert.Zero(t, shared.Stats().Allocations)
}

func TestAtlasBackend_FallsBack(t *testing.T) {
	t.Run("unaligned bc1", func(t *testing.T) {
		sources := writeImages(t, imageSize{10, 10})
		dev := atlastest.NewDevice()
		shared := newSharedAtlas(t, dev, func(c *atlas.Config) { c.Compression = atlas.CompressionBC1 })
		b := NewAtlasBackend(source.Reader{}, shared)

		data, err := Load(context.Background(), b, sources[0])
		require.NoError(t, err)
		assert.Equal(t, KindTexture, data.Kind())
		assert.False(t, data.IsCompressed())
		assert.EqualValues(t, 1, b.Fallbacks())
		assert.Zero(t, shared.Stats().Allocations)

		live := dev.LiveTextures()
		b.Release(data)
		assert.Equal(t, live-1, dev.LiveTextures())
	})

	t.Run("atlas full", func(t *testing.T) {
		sources := writeImages(t, imageSize{64, 64}, imageSize{64, 64})
		dev := atlastest.NewDevice()
		shared := newSharedAtlas(t, dev, func(c *atlas.Config) { c.MaxLayers = 1 })
		b := NewAtlasBackend(source.Reader{}, shared)

		first, err := Load(context.Background(), b, sources[0])
		require.NoError(t, err)
		assert.Equal(t, KindAtlas, first.Kind())

		second, err := Load(context.Background(), b, sources[1])
		require.NoError(t, err)
		assert.Equal(t, KindTexture, second.Kind())
		assert.EqualValues(t, 1, b.Fallbacks())
	})

	t.Run("grow fails", func(t *testing.T) {
		sources := writeImages(t, imageSize{64, 64}, imageSize{64, 64})
		dev := atlastest.NewDevice()
		dev.MaxTextureLayers = 1
		shared := newSharedAtlas(t, dev, nil)
		b := NewAtlasBackend(source.Reader{}, shared)

		first, err := Load(context.Background(), b, sources[0])
		require.NoError(t, err)
		assert.Equal(t, KindAtlas, first.Kind())

		second, err := Load(context.Background(), b, sources[1])
		require.NoError(t, err)
		require.NotNil(t, second)
		assert.Equal(t, KindTexture, second.Kind())
		assert.Equal(t, 64, second.Width())
		assert.EqualValues(t, 1, b.Fallbacks())

		assert.Equal(t, 1, shared.LayerCount())
		assert.Equal(t, 1, shared.Stats().Allocations)
		assert.Equal(t, 2, dev.LiveTextures())

		b.Release(second)
		b.Release(first)
		assert.Equal(t, 1, dev.LiveTextures())
		assert.Zero(t, shared.Stats().Allocations)
	})
}

func TestCPUTextures(t *testing.T) {
	sources := writeImages(t, imageSize{8, 4}, imageSize{4, 4})
	ctx := context.Background()
	dev := atlastest.NewDevice()
	textures := NewCPUTextures(&TextureBackend{Device: dev}, 4)
	cpu := &CPUBackend{}

	a, err := Load(ctx, cpu, sources[0])
	require.NoError(t, err)
	again, err := Load(ctx, cpu, sources[0])
	require.NoError(t, err)
	other, err := Load(ctx, cpu, sources[1])
	require.NoError(t, err)

	ta, err := textures.Texture(ctx, a)
	require.NoError(t, err)
	tagain, err := textures.Texture(ctx, again)
	require.NoError(t, err)
	assert.Same(t, ta, tagain)
	assert.Equal(t, 8, ta.Width())

	_, err = textures.Texture(ctx, other)
	require.NoError(t, err)

	st := textures.Stats()
	assert.EqualValues(t, 1, st.Hits)
	assert.EqualValues(t, 2, st.Misses)
	assert.Equal(t, 2, dev.LiveTextures())

	_, err = textures.Texture(ctx, ta)
	assert.ErrorIs(t, err, ErrNotCPUData)

	textures.Close()
	assert.Zero(t, dev.LiveTextures())
}

func TestImageCache_AtlasBackend(t *testing.T) {
	sizes := make([]imageSize, 7)
	for i := range sizes {
		sizes[i] = imageSize{16 + 4*i, 12}
	}
	sources := writeImages(t, sizes...)
	ctx := context.Background()
	dev := atlastest.NewDevice()
	shared := newSharedAtlas(t, dev, nil)

	c, err := New(NewAtlasBackend(source.Reader{}, shared), sources, Config{CacheCount: 1})
	require.NoError(t, err)
	require.NoError(t, c.LoadInitialImages(ctx, 0))
	assert.Equal(t, 3, shared.Stats().Allocations)

	for i := 1; i < len(sources); i++ {
		data, err := c.Next(ctx)
		require.NoError(t, err)
		require.NotNil(t, data)
		assert.Equal(t, sizes[i].w, data.Width())
		assert.Equal(t, KindAtlas, data.Kind())
		assert.LessOrEqual(t, shared.Stats().Allocations, 3)
	}

	c.Close()
	assert.Zero(t, shared.Stats().Allocations)
}
