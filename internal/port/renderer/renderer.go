// Package renderer defines the optional chart rasterization port.
package renderer

import (
	"context"

	"github.com/fundsage/FundSage/internal/domain/chart"
)

// Renderer rasterizes a chart descriptor to an embeddable PNG. A failing or
// absent renderer never fails the visualization step; callers swallow errors
// and keep the descriptor without an image.
type Renderer interface {
	Rasterize(ctx context.Context, spec chart.Spec) ([]byte, error)
}
