// Package atlas packs images into a layered GPU texture array.
//
// An [Atlas] owns a texture array of square layers, each Size pixels on a
// side (2048 by default). Every layer is either empty, busy (sub-divided by a
// [Packer]) or full (claimed whole by a single image or fragment). Images
// that fit a layer receive one contiguous [Allocation]; larger images are
// split into row-major tiles of at most Size×Size, each allocated on its own,
// and are described by a fragmented [Entry].
//
// The texture array grows on demand. Growing creates a larger array, copies
// every non-empty layer to the same index and bumps the binding generation,
// so renderers must refresh their bindings when [Binding].Generation changes.
// Layers are never compacted and the atlas never shrinks.
//
// Uploads stage pixel rows in a buffer padded to the device row alignment
// and record one buffer-to-texture copy per allocation. Atlases created with
// [CompressionBC1] compress each allocation to BC1 blocks on the CPU first.
//
// [Atlas] is not safe for concurrent use. Share it through [Shared], which
// holds a read-write lock across allocate, grow and copy recording and
// submits the recorded commands after releasing it.
//
// GPU access goes through the [Device] and [Encoder] interfaces. Package
// backend/native implements them on top of the wgpu HAL; package
// atlas/atlastest provides an in-memory device for tests.
package atlas
