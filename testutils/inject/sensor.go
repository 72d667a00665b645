package inject

import (
	"context"

	"github.com/viam-labs/keydrive/components/sensor/ultrasonic"
)

// DistanceSensor is an injected distance sensor.
type DistanceSensor struct {
	ultrasonic.DistanceSensor
	DistanceFunc func(ctx context.Context) (float64, error)
}

// Distance calls the injected Distance or the real version.
func (s *DistanceSensor) Distance(ctx context.Context) (float64, error) {
	if s.DistanceFunc == nil {
		return s.DistanceSensor.Distance(ctx)
	}
	return s.DistanceFunc(ctx)
}
