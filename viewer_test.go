package slider

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/slider/atlas"
	"github.com/gogpu/slider/atlas/atlastest"
	"github.com/gogpu/slider/imgcache"
	"github.com/gogpu/slider/source"
)

func encodeImage(t *testing.T, f *gofakeit.Faker, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{f.Uint8(), f.Uint8(), f.Uint8(), 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// writeCollection writes n random images named img1.png ... imgN.png.
func writeCollection(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	f := gofakeit.New(3)
	for i := 1; i <= n; i++ {
		data := encodeImage(t, f, f.IntRange(4, 12)*4, f.IntRange(4, 12)*4)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "img"+strconv.Itoa(i)+".png"), data, 0o600))
	}
	return dir
}

func TestViewer_Strategies(t *testing.T) {
	tests := []struct {
		strategy Strategy
		wantKind imgcache.Kind
	}{
		{StrategyCPU, imgcache.KindCPU},
		{StrategyGPU, imgcache.KindTexture},
		{StrategyAtlas, imgcache.KindAtlas},
	}
	dir := writeCollection(t, 12)
	for _, tt := range tests {
		t.Run(tt.strategy.String(), func(t *testing.T) {
			ctx := context.Background()
			dev := atlastest.NewDevice()
			cfg := atlas.DefaultConfig()
			cfg.Size = 128

			v, err := Open(ctx, dir,
				WithDevice(dev),
				WithStrategy(tt.strategy),
				WithAtlasConfig(cfg),
				WithCacheCount(2),
			)
			require.NoError(t, err)
			assert.Equal(t, tt.strategy, v.Strategy())
			assert.Equal(t, 12, v.Len())

			require.NoError(t, v.Load(ctx, 0))
			require.NotNil(t, v.Current())
			assert.Equal(t, tt.wantKind, v.Current().Kind())

			for i := 1; i < v.Len(); i++ {
				data, err := v.Next(ctx)
				require.NoError(t, err)
				require.NotNil(t, data)
				assert.Equal(t, i, v.CurrentIndex())
			}
			_, err = v.Next(ctx)
			assert.ErrorIs(t, err, imgcache.ErrNoNextImage)

			tex, err := v.Texture(ctx)
			require.NoError(t, err)
			assert.NotEqual(t, imgcache.KindCPU, tex.Kind())

			st := v.Stats()
			assert.Equal(t, tt.strategy.String(), st.Strategy)
			assert.Equal(t, 11, st.CurrentIndex)
			assert.Equal(t, 2, st.Offset)
			assert.Equal(t, 5, st.Loaded)
			assert.Equal(t, tt.strategy == StrategyAtlas, st.Atlas != nil)
			assert.Equal(t, tt.strategy == StrategyCPU, st.Textures != nil)

			v.Close()
			assert.Zero(t, dev.LiveTextures())
		})
	}
}

func TestViewer_FallsBackToCPUWithoutDevice(t *testing.T) {
	ctx := context.Background()
	v, err := Open(ctx, writeCollection(t, 3), WithStrategy(StrategyAtlas))
	require.NoError(t, err)
	defer v.Close()

	assert.Equal(t, StrategyCPU, v.Strategy())
	require.NoError(t, v.Load(ctx, 1))
	_, err = v.Texture(ctx)
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestViewer_Preloaded(t *testing.T) {
	ctx := context.Background()
	f := gofakeit.New(5)
	sources := []source.Source{source.Preloaded("zip/a.png"), source.Preloaded("zip/b.png")}

	v, err := New(ctx, sources,
		WithPreloaded("zip/a.png", encodeImage(t, f, 8, 8)),
		WithPreloaded("zip/b.png", encodeImage(t, f, 16, 4)),
		WithCacheCount(1),
	)
	require.NoError(t, err)
	defer v.Close()

	require.NoError(t, v.Load(ctx, 1))
	cur := v.Current()
	require.NotNil(t, cur)
	assert.Equal(t, "16x4", cur.Metadata().ResolutionString())

	st := v.Stats()
	require.NotNil(t, st.Store)
	assert.Positive(t, st.Store.Hits)
	assert.Equal(t, []int{0, 1, -1}, st.Indices)
}

func TestViewer_Errors(t *testing.T) {
	ctx := context.Background()
	_, err := Open(ctx, filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	_, err = New(ctx, nil)
	assert.ErrorIs(t, err, imgcache.ErrEmptyCollection)

	cfg := atlas.DefaultConfig()
	cfg.Size = 3
	_, err = Open(ctx, writeCollection(t, 1),
		WithDevice(atlastest.NewDevice()), WithStrategy(StrategyAtlas), WithAtlasConfig(cfg))
	var cerr *atlas.ConfigError
	assert.ErrorAs(t, err, &cerr)
}
