package assets

import (
	"fmt"
)

// SizeVariant selects one of the fixed image resolutions produced by the
// resize pipeline for every uploaded object.
type SizeVariant string

const (
	SizeSmall   SizeVariant = "sm"
	SizeMedium  SizeVariant = "md"
	SizeLarge   SizeVariant = "lg"
	SizeExplore SizeVariant = "explore"
)

// dimensions is the fixed width/height token per variant. The resizer writes
// derived objects under resized-{W}w{H}h-{key}, so these values are part of
// the storage contract and must not change without a backfill.
var dimensions = map[SizeVariant]struct{ w, h int }{
	SizeSmall:   {50, 50},
	SizeMedium:  {300, 450},
	SizeLarge:   {400, 225},
	SizeExplore: {400, 600},
}

// Locator maps storage keys to fully-qualified asset URLs. It holds no state
// beyond the bucket coordinates and performs no I/O; the same (key, variant)
// pair always resolves to the same URL.
type Locator struct {
	bucket string
	region string
}

// NewLocator creates a locator for the given bucket and region.
func NewLocator(bucket, region string) *Locator {
	return &Locator{bucket: bucket, region: region}
}

// Resolve returns the URL of the derived object for key at the requested
// variant. An unrecognized variant falls back to SizeLarge rather than
// producing a URL no object exists under.
func (l *Locator) Resolve(key string, variant SizeVariant) string {
	dim, ok := dimensions[variant]
	if !ok {
		dim = dimensions[SizeLarge]
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/resized-%dw%dh-%s",
		l.bucket, l.region, dim.w, dim.h, key)
}
