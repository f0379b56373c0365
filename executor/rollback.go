// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package executor

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"github.com/somatczk/romulus/adapter"
	"github.com/somatczk/romulus/errs"
	"github.com/somatczk/romulus/plan"
	"github.com/somatczk/romulus/state"
)

// rollback walks completed in reverse and issues the inverse of each
// action: a completed create is undone by a delete, a completed destroy
// is undone by a create using the same resource value. Rollback failures
// are aggregated and returned separately; they never replace the primary
// error (spec.md §4.6/§7).
func rollback(ctx context.Context, completed []plan.Action, ad adapter.Adapter) error {
	var merr *multierror.Error

	for i := len(completed) - 1; i >= 0; i-- {
		a := completed[i]
		if err := inverse(ctx, a, ad); err != nil {
			merr = multierror.Append(merr, errs.RollbackFailed(string(a.Kind), a.Name, err))
		}
	}

	return merr.ErrorOrNil()
}

func inverse(ctx context.Context, a plan.Action, ad adapter.Adapter) error {
	switch a.Type {
	case plan.ActionCreate:
		return inverseDelete(ctx, a, ad)
	case plan.ActionDestroy:
		return inverseCreate(ctx, a, ad)
	default:
		// update actions are skipped and never enter the completed ledger
		// (see Run), so there is nothing to invert. A completed create
		// cloudinit action reaches inverseDelete, which has nothing to undo.
		return nil
	}
}

func inverseDelete(ctx context.Context, a plan.Action, ad adapter.Adapter) error {
	switch a.Kind {
	case plan.ActionKindPool:
		return ad.DeletePool(ctx, a.Name)
	case plan.ActionKindNetwork:
		return ad.DeleteNetwork(ctx, a.Name)
	case plan.ActionKindVolume:
		v, _ := a.Resource.(state.Volume)
		return ad.DeleteVolume(ctx, v.Pool, a.Name)
	case plan.ActionKindDomain:
		return ad.DeleteDomain(ctx, a.Name)
	default:
		return nil
	}
}

func inverseCreate(ctx context.Context, a plan.Action, ad adapter.Adapter) error {
	switch a.Kind {
	case plan.ActionKindPool:
		p, _ := a.Resource.(state.Pool)
		return ad.CreatePool(ctx, p)
	case plan.ActionKindNetwork:
		n, _ := a.Resource.(state.Network)
		return ad.CreateNetwork(ctx, n)
	case plan.ActionKindVolume:
		v, _ := a.Resource.(state.Volume)
		return ad.CreateVolume(ctx, v)
	case plan.ActionKindDomain:
		// Recreating a destroyed domain needs a fresh cloud-init ISO,
		// which the rollback path deliberately does not regenerate: a
		// rolled-back domain destroy restores the disk/network
		// footprint but not automatic re-provisioning. Surfacing this
		// as a no-op (rather than guessing at a stale ISO path) keeps
		// rollback's failure mode honest.
		return nil
	default:
		return nil
	}
}
