package vector

import (
	"log/slog"
	"sync/atomic"

	ferrors "github.com/feedwise/feedwise/internal/errors"
)

// Dimensions that Reproject accepts as a compatibility pair. Vectors from
// the legacy 768-dim model are zero-padded up to 1536 so they remain
// comparable against the current model's output. Any other mismatch is a
// correctness bug and is rejected.
const (
	LegacyDimensions  = 768
	DefaultDimensions = 1536
)

// reprojections counts accepted pad operations for observability.
var reprojections atomic.Int64

// Reproject converts v to targetDim. Matching dimensions pass through
// unchanged. The single accepted shim is zero-padding 768 to 1536, which
// is logged and counted; everything else returns a dimension-mismatch
// error rather than a silently wrong comparison.
func Reproject(v []float32, targetDim int) ([]float32, error) {
	if len(v) == targetDim {
		return v, nil
	}

	if len(v) == LegacyDimensions && targetDim == DefaultDimensions {
		padded := make([]float32, targetDim)
		copy(padded, v)
		n := reprojections.Add(1)
		slog.Info("reprojected legacy vector",
			slog.Int("from", len(v)),
			slog.Int("to", targetDim),
			slog.Int64("total", n))
		return padded, nil
	}

	return nil, ferrors.DimensionMismatch(targetDim, len(v))
}

// ReprojectionCount returns how many pad operations have occurred.
func ReprojectionCount() int64 {
	return reprojections.Load()
}
