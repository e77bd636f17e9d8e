// Package slider displays long image sequences from a sliding window of
// cached images.
//
// # Overview
//
// A Viewer lists an image collection, keeps 2·CacheCount+1 images loaded
// around a cursor and moves the cursor with Next and Prev. How loaded
// images are held is chosen by a Strategy:
//
//   - StrategyCPU keeps encoded bytes and makes textures on demand;
//   - StrategyGPU uploads each image to its own texture;
//   - StrategyAtlas packs images into a layered texture atlas that grows
//     as needed, falling back to individual textures for images it
//     rejects.
//
// # Quick Start
//
//	dev, _ := native.NewNoop()
//	v, err := slider.Open(ctx, "photos",
//	    slider.WithDevice(dev),
//	    slider.WithStrategy(slider.StrategyAtlas),
//	    slider.WithCacheCount(3),
//	)
//	if err != nil {
//	    return err
//	}
//	defer v.Close()
//
//	if err := v.Load(ctx, 0); err != nil {
//	    return err
//	}
//	img, err := v.Next(ctx)
//
// # Architecture
//
// The library is organized into:
//   - atlas: region packer, layered atlas, device abstraction
//   - imgcache: sliding window and storage backends
//   - source: listing, reading and decoding images
//   - cache: content-addressed LRU cache
//   - backend/native: atlas.Device on gogpu/wgpu HAL
//
// # Configuration
//
// Options can be built from a TOML file with LoadConfig.
package slider
