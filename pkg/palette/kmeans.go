package palette

import (
	"context"
	"fmt"
	"math"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"

	"github.com/menta2k/shot-analyzer/pkg/types"
)

// Clusterer groups pixels into n representative colors. Centers are returned
// in the clusterer's own order.
type Clusterer interface {
	Cluster(ctx context.Context, pixels []types.RGB, n int) ([][3]float64, error)
}

// KMeansClusterer runs Lloyd's k-means in RGB space, keeping the best of
// several random restarts.
type KMeansClusterer struct {
	// Restarts is the number of independent runs; the one with the lowest
	// inertia wins
	Restarts int
}

// NewKMeansClusterer returns a clusterer with the given restart count
func NewKMeansClusterer(restarts int) *KMeansClusterer {
	if restarts <= 0 {
		restarts = DefaultRestarts
	}
	return &KMeansClusterer{Restarts: restarts}
}

// Cluster partitions pixels into n groups and returns their centers
func (k *KMeansClusterer) Cluster(ctx context.Context, pixels []types.RGB, n int) ([][3]float64, error) {
	if n <= 0 {
		return nil, fmt.Errorf("palette size must be positive, got %d", n)
	}
	if len(pixels) < n {
		return nil, fmt.Errorf("%w: %d pixels for %d colors", ErrEmptyPalette, len(pixels), n)
	}

	obs := make(clusters.Observations, len(pixels))
	for i, p := range pixels {
		obs[i] = clusters.Coordinates{float64(p.R), float64(p.G), float64(p.B)}
	}

	restarts := k.Restarts
	if restarts <= 0 {
		restarts = DefaultRestarts
	}

	var best clusters.Clusters
	bestInertia := math.Inf(1)
	km := kmeans.New()

	for run := 0; run < restarts; run++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cc, err := km.Partition(obs, n)
		if err != nil {
			return nil, fmt.Errorf("k-means run %d: %w", run, err)
		}
		if in := inertia(cc); in < bestInertia {
			best, bestInertia = cc, in
		}
	}

	centers := make([][3]float64, len(best))
	for i, c := range best {
		for d := 0; d < 3 && d < len(c.Center); d++ {
			centers[i][d] = c.Center[d]
		}
	}
	return centers, nil
}

// inertia is the summed squared distance of every observation to its center
func inertia(cc clusters.Clusters) float64 {
	var total float64
	for _, c := range cc {
		for _, o := range c.Observations {
			total += c.Center.Distance(o.Coordinates())
		}
	}
	return total
}
