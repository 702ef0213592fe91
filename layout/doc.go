// Package layout provides the geometric transforms that place the
// rendered text layer onto the output image.
//
// Two kinds of transform are available:
//
//   - Matrix: a 3x3 projective matrix for translation, scaling,
//     rotation, shear, and simple perspective tilts
//   - Warp: the nonlinear folded-paper deformation, with skew and a
//     vertical fold crease
//
// Both map points in layer coordinates. The compositor walks output
// pixels and uses the inverse direction (Matrix.Invert, Warp.Unmap) to
// find the source pixel to sample, so the inverse is the hot path.
package layout
