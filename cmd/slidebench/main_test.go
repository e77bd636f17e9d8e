package main

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/slider"
	"github.com/gogpu/slider/atlas/atlastest"
)

func writePNGs(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	for i := 0; i < n; i++ {
		f, err := os.Create(filepath.Join(dir, "frame"+strconv.Itoa(i)+".png"))
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, image.NewNRGBA(image.Rect(0, 0, 8+i, 8))))
		require.NoError(t, f.Close())
	}
	return dir
}

func TestRun(t *testing.T) {
	dir := writePNGs(t, 9)
	r, err := run(context.Background(), dir, 2, -1,
		slider.WithDevice(atlastest.NewDevice()),
		slider.WithStrategy(slider.StrategyAtlas),
		slider.WithCacheCount(2),
	)
	require.NoError(t, err)
	assert.Equal(t, 6, r.Moves)
	assert.Zero(t, r.Skipped)
	assert.Equal(t, 8, r.Stats.CurrentIndex)
	assert.Equal(t, 2, r.Stats.Offset)
	require.NotNil(t, r.Stats.Atlas)
	assert.Equal(t, 5, r.Stats.Atlas.Allocations)
}

func TestRun_StartOutOfRange(t *testing.T) {
	_, err := run(context.Background(), writePNGs(t, 2), 5, 1)
	assert.Error(t, err, "start past the last image")
}
