// Package ioutils provides file system and image processing utilities.
//
// This package contains functions for:
//   - Atomic file writes and copies
//   - Filename sanitization for cross-platform compatibility
//   - Directory creation
//   - Image validation, exact resizing and JPEG encoding
//
// # File Operations
//
// Every file the dataset exposes is written through WriteFileAtomic, which
// writes a temporary sibling and renames it into place. A crash or
// cancellation therefore never leaves a truncated JPEG behind:
//
//	err := ioutils.WriteFileAtomic("data/train/abc/0000.jpg", data)
//
//	// Copy a file (also atomic)
//	err := ioutils.CopyFile(ctx, "data/train/abc/0000.jpg", "data/test/abc/0000.jpg")
//
// # Filename Sanitization
//
//	safe := ioutils.SanitizeFileName("ga/slug:1") // Returns "ga_slug_1"
//
// # Image Processing
//
// The ImageService turns arbitrary downloaded bytes (JPEG, PNG, GIF, WebP,
// BMP or TIFF) into JPEGs of one fixed raster:
//
//	svc := ioutils.NewImageService(224, 312, 90)
//
//	jpegBytes, err := svc.Normalize(downloaded)
//
//	// Strict existence checks only read the header
//	ok := svc.Conforms("data/train/abc/0000.jpg")
package ioutils
