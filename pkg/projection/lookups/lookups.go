package lookups

import "github.com/snagmail/snagmail/pkg/projection"

var (
	_ projection.Projection = Subdomain{}
	_ projection.Projection = ChaosAddress{}
	_ projection.Projection = APIKey{}
)

// All returns the full ingestion lookup projection set.
func All() []projection.Projection {
	return []projection.Projection{Subdomain{}, ChaosAddress{}, APIKey{}}
}
