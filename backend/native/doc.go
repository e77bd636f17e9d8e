// Package native implements atlas.Device on the gogpu/wgpu HAL.
//
// The device records copies into HAL command encoders and submits them
// without waiting. Every submission signals a fence value; staging buffers
// and textures released by the atlas are kept alive until the GPU has
// passed that value, and are reclaimed on later submissions or by Poll.
//
// A Device can wrap an application's hal.Device and hal.Queue, borrow them
// from a gpucontext.DeviceProvider, or own a headless noop device created
// by NewNoop.
package native
