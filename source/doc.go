// Package source lists, reads and decodes the images of a collection.
//
// A Source is a filesystem path or a path whose bytes were preloaded into
// a Store (for example by an archive reader). Reader returns the encoded
// bytes; Decode turns them into RGBA8 Pixels, downscaling images larger
// than MaxTextureSize. Decoders for PNG, JPEG, GIF, BMP, TIFF and WebP are
// registered.
package source
