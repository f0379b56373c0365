// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package executor

import (
	"github.com/hashicorp/go-multierror"

	"github.com/somatczk/romulus/errs"
	"github.com/somatczk/romulus/plan"
)

// validate rejects a plan before any side effects if any Action has a nil
// resource, an unknown type, or an unknown kind (spec.md §4.6's
// pre-execution validation).
func validate(actions []plan.Action) error {
	var merr *multierror.Error

	for _, a := range actions {
		if a.Resource == nil {
			merr = multierror.Append(merr, errs.PreconditionFailed(string(a.Kind), a.Name, "action resource is nil"))
		}
		if !recognizedTypes[a.Type] {
			merr = multierror.Append(merr, errs.PreconditionFailed(string(a.Kind), a.Name, "unknown action type \""+string(a.Type)+"\""))
		}
		if !recognizedKinds[a.Kind] {
			merr = multierror.Append(merr, errs.PreconditionFailed(string(a.Kind), a.Name, "unknown action kind \""+string(a.Kind)+"\""))
		}
	}

	return merr.ErrorOrNil()
}
