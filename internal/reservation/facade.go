package reservation

import (
	"context"

	"github.com/exoplex/stitchcore/internal/amclient"
	"github.com/exoplex/stitchcore/internal/xmldom"
)

// AMFacade is the engine's view of the AM client facade (spec.md §4.6).
// *amclient.Client satisfies it; tests substitute a fake so the engine
// can be exercised without real RPC (spec.md §1(a)).
type AMFacade interface {
	Reserve(ctx context.Context, aggregateURN, url string, apiVersion int, slice string, request *xmldom.Element) (*xmldom.Element, error)
	Delete(ctx context.Context, aggregateURN, url string, apiVersion int, slice string) error
	SliverStatus(ctx context.Context, aggregateURN, url, slice string) (amclient.SliverState, error)
}
