// Package imgcache keeps a sliding window of loaded images around a
// cursor over an image collection.
//
// An ImageCache holds 2·CacheCount+1 slots. The image at the cursor sits
// at slot CacheCount+Offset; Offset is zero while the cursor is away from
// the collection edges and negative or positive near the first or last
// image. Moving the cursor past the middle shifts the window by one slot,
// releasing the image that leaves it and loading the one that enters.
//
// Where loaded images live is decided by a Backend:
//
//   - CPUBackend keeps the encoded bytes;
//   - TextureBackend uploads each image to its own GPU texture, BC1
//     compressed when requested and the dimensions allow;
//   - AtlasBackend packs images into a shared atlas.Shared texture array
//     and falls back to individual textures when the atlas rejects one.
//
// CPUTextures turns CPU-cached images into textures on demand, reusing
// textures of identical content.
//
// ImageCache is not safe for concurrent use; backends are.
package imgcache
