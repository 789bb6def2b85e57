// Package dnmf factorizes a time series of 2D/3D images into
// spatially-localized components, their per-frame activities and
// per-component backgrounds, using distributed non-negative matrix
// factorization: components whose bounding boxes transitively overlap are
// grouped and optimized together by stochastic gradient descent, everything
// else proceeds independently. Non-negativity is enforced by a logit
// (sigmoid) parameterization instead of explicit projection.
package dnmf
