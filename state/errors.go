// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package state

import "github.com/somatczk/romulus/errs"

func duplicateNameErr(kind Kind, name string) error {
	return errs.StateValidationFailed(string(kind), name, "duplicate "+string(kind)+" name")
}

func validationErr(kind Kind, name, detail string) error {
	return errs.StateValidationFailed(string(kind), name, detail)
}

func missingRefErr(kind Kind, name string, refKind Kind, refName string) error {
	return errs.StateValidationFailed(string(kind), name,
		string(refKind)+" \""+refName+"\" does not exist")
}
