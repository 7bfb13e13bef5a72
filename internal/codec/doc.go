// Package codec wraps the image libraries that do the pixel work: decoding
// sources, Lanczos resizing to a target width, and encoding WebP and PNG
// renditions with fixed quality settings.
//
// Each output encoding is a Format so the batch processor can iterate over a
// fixed, ordered list without knowing codec details.
package codec
