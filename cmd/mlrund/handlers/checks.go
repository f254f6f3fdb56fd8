package handlers

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/bcrant/mlrun/pkg/domain"
	"github.com/bcrant/mlrun/pkg/domain/auth"
)

// ItemCheck decides per listed item whether it may be returned. A false
// verdict drops the item silently; errors abort the listing.
type ItemCheck func(ctx context.Context, item domain.VersionedResource, info auth.AuthInfo) (bool, error)

// checkConcurrency bounds the fan-out of per-item checks within one request.
const checkConcurrency = 8

// filterByCheck runs check over items concurrently. The returned subset
// keeps the input order regardless of completion order.
func filterByCheck(
	ctx context.Context,
	items []domain.VersionedResource,
	info auth.AuthInfo,
	check ItemCheck,
) ([]domain.VersionedResource, error) {
	verdicts := make([]bool, len(items))

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(checkConcurrency)
	for nth, item := range items {
		grp.Go(func() error {
			ok, err := check(gctx, item, info)
			if err != nil {
				return err
			}
			verdicts[nth] = ok
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	kept := make([]domain.VersionedResource, 0, len(items))
	for nth, item := range items {
		if verdicts[nth] {
			kept = append(kept, item)
		}
	}
	return kept, nil
}
