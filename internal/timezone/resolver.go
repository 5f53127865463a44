package timezone

import (
	"fmt"
	"sync"

	"github.com/ringsaturn/tzf"
)

// Resolver maps coordinates to IANA timezone names from embedded boundary
// data. It implements airquality.TimezoneResolver.
type Resolver struct {
	finder tzf.F
}

var (
	instance *Resolver
	initErr  error
	once     sync.Once
)

// NewResolver returns the process-wide Resolver. The finder keeps its
// boundary data in memory, so it is built once.
func NewResolver() (*Resolver, error) {
	once.Do(func() {
		finder, err := tzf.NewDefaultFinder()
		if err != nil {
			initErr = fmt.Errorf("failed to initialize timezone finder: %w", err)
			return
		}
		instance = &Resolver{finder: finder}
	})
	return instance, initErr
}

// GetTimezone returns names like "Asia/Kolkata" or "Europe/London".
func (r *Resolver) GetTimezone(latitude, longitude float64) (string, error) {
	name := r.finder.GetTimezoneName(longitude, latitude)
	if name == "" {
		return "", fmt.Errorf("could not determine timezone for coordinates lat=%f, lon=%f", latitude, longitude)
	}
	return name, nil
}
