// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package executor

import (
	"context"
	"strconv"
	"strings"

	"github.com/somatczk/romulus/adapter"
	"github.com/somatczk/romulus/cloudinit"
	"github.com/somatczk/romulus/config"
	"github.com/somatczk/romulus/errs"
	"github.com/somatczk/romulus/plan"
	"github.com/somatczk/romulus/state"
)

var recognizedKinds = map[plan.ActionKind]bool{
	plan.ActionKindPool:      true,
	plan.ActionKindNetwork:   true,
	plan.ActionKindVolume:    true,
	plan.ActionKindDomain:    true,
	plan.ActionKindCloudInit: true,
}

var recognizedTypes = map[plan.ActionType]bool{
	plan.ActionCreate:  true,
	plan.ActionUpdate:  true,
	plan.ActionDestroy: true,
}

// isSkipped reports whether a is a no-op per spec.md §4.6: "update *" and
// any action with a kind the Executor does not recognize.
func isSkipped(a plan.Action) bool {
	return a.Type == plan.ActionUpdate || !recognizedKinds[a.Kind]
}

// dispatch runs one Action against the adapter (and, for domain creates,
// the Cloud-Init Generator first), reclassifying a "resource already
// exists" failure on create as success when the existing resource is
// confirmed present.
func dispatch(ctx context.Context, a plan.Action, ad adapter.Adapter, gen *cloudinit.Generator, doc config.Document, allActions []plan.Action) error {
	switch {
	case a.Type == plan.ActionCreate && a.Kind == plan.ActionKindPool:
		p, _ := a.Resource.(state.Pool)
		return reclassifyCreate(ctx, ad, "pool", a.Name, ad.CreatePool(ctx, p))

	case a.Type == plan.ActionCreate && a.Kind == plan.ActionKindNetwork:
		n, _ := a.Resource.(state.Network)
		return reclassifyCreate(ctx, ad, "network", a.Name, ad.CreateNetwork(ctx, n))

	case a.Type == plan.ActionCreate && a.Kind == plan.ActionKindVolume:
		v, _ := a.Resource.(state.Volume)
		return reclassifyCreateVolume(ctx, ad, v.Pool, a.Name, ad.CreateVolume(ctx, v))

	case a.Type == plan.ActionCreate && a.Kind == plan.ActionKindDomain:
		return dispatchCreateDomain(ctx, a, ad, gen, doc, allActions)

	case a.Type == plan.ActionCreate && a.Kind == plan.ActionKindCloudInit:
		return dispatchCreateCloudInit(a, gen, doc)

	case a.Type == plan.ActionDestroy && a.Kind == plan.ActionKindPool:
		return ad.DeletePool(ctx, a.Name)

	case a.Type == plan.ActionDestroy && a.Kind == plan.ActionKindNetwork:
		return ad.DeleteNetwork(ctx, a.Name)

	case a.Type == plan.ActionDestroy && a.Kind == plan.ActionKindVolume:
		v, _ := a.Resource.(state.Volume)
		return ad.DeleteVolume(ctx, v.Pool, a.Name)

	case a.Type == plan.ActionDestroy && a.Kind == plan.ActionKindDomain:
		return ad.DeleteDomain(ctx, a.Name)
	}

	// update * and unrecognized kinds are filtered out as skipped before
	// dispatch is ever called; reaching here means a caller dispatched
	// directly without going through isSkipped.
	return nil
}

func dispatchCreateDomain(ctx context.Context, a plan.Action, ad adapter.Adapter, gen *cloudinit.Generator, doc config.Document, allActions []plan.Action) error {
	d, ok := a.Resource.(state.Domain)
	if !ok {
		return errs.PreconditionFailed(string(a.Kind), a.Name, "create domain action resource is not a state.Domain")
	}

	req, err := cloudInitRequest(d, allActions)
	if err != nil {
		return err
	}

	isoPath, err := gen.Generate(req, doc)
	if err != nil {
		return err
	}

	return reclassifyCreate(ctx, ad, "domain", a.Name, ad.CreateDomain(ctx, d, isoPath))
}

func dispatchCreateCloudInit(a plan.Action, gen *cloudinit.Generator, doc config.Document) error {
	v, ok := a.Resource.(state.Volume)
	if !ok || v.Provenance != state.ProvenanceCloudInit {
		return errs.PreconditionFailed(string(a.Kind), a.Name, "create cloudinit action resource is not a cloud-init state.Volume")
	}

	req := cloudinit.Request{Name: a.Name, Pool: v.Pool, NodeType: v.NodeType, NodeIndex: v.NodeIndex}
	_, err := gen.Generate(req, doc)
	return err
}

// cloudInitRequest derives the (node_type, node_index) the Cloud-Init
// Generator needs for a domain create. The Synthesizer names a domain's
// cloud-init volume "<domain-name>-init.iso" (spec.md §3's naming
// convention), so the cleanest source of truth is that volume's own
// ProvenanceCloudInit fields when it is present in the plan; if it isn't
// (e.g. the volume already exists and only the domain is being
// (re)created), the domain name itself is parsed, since the Synthesizer
// always names domains "<cluster>-<role>-<index>".
func cloudInitRequest(d state.Domain, allActions []plan.Action) (cloudinit.Request, error) {
	wantName := d.Name + "-init.iso"
	for _, a := range allActions {
		if a.Kind != plan.ActionKindVolume && a.Kind != plan.ActionKindCloudInit {
			continue
		}
		v, ok := a.Resource.(state.Volume)
		if ok && v.Name == wantName && v.Provenance == state.ProvenanceCloudInit {
			return cloudinit.Request{Name: d.Name, Pool: d.Pool, NodeType: v.NodeType, NodeIndex: v.NodeIndex}, nil
		}
	}

	nodeType, nodeIndex, err := parseNodeIdentity(d.Name)
	if err != nil {
		return cloudinit.Request{}, err
	}
	return cloudinit.Request{Name: d.Name, Pool: d.Pool, NodeType: nodeType, NodeIndex: nodeIndex}, nil
}

func parseNodeIdentity(domainName string) (string, int, error) {
	parts := strings.Split(domainName, "-")
	if len(parts) < 3 {
		return "", 0, errs.PreconditionFailed("domain", domainName, "domain name does not follow the <cluster>-<role>-<index> convention")
	}

	index, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return "", 0, errs.PreconditionFailed("domain", domainName, "domain name's trailing segment is not a numeric index")
	}

	return parts[len(parts)-2], index, nil
}

// reclassifyCreate implements spec.md §7's propagation policy: a
// HypervisorError/resource_exists on create is success if a follow-up
// exists check confirms the resource is actually there.
func reclassifyCreate(ctx context.Context, ad adapter.Adapter, kind, name string, createErr error) error {
	if createErr == nil {
		return nil
	}

	e, ok := errs.AsError(createErr)
	if !ok || e.Kind != errs.KindHypervisor || e.SubTag != "resource_exists" {
		return createErr
	}

	var exists bool
	var existsErr error
	switch kind {
	case "pool":
		exists, existsErr = ad.PoolExists(ctx, name)
	case "network":
		exists, existsErr = ad.NetworkExists(ctx, name)
	case "domain":
		exists, existsErr = ad.DomainExists(ctx, name)
	default:
		return createErr
	}

	if existsErr != nil || !exists {
		return createErr
	}
	return nil
}

// reclassifyCreateVolume is reclassifyCreate's volume-specific sibling,
// since VolumeExists takes a pool alongside the name.
func reclassifyCreateVolume(ctx context.Context, ad adapter.Adapter, pool, name string, createErr error) error {
	if createErr == nil {
		return nil
	}

	e, ok := errs.AsError(createErr)
	if !ok || e.Kind != errs.KindHypervisor || e.SubTag != "resource_exists" {
		return createErr
	}

	exists, existsErr := ad.VolumeExists(ctx, pool, name)
	if existsErr != nil || !exists {
		return createErr
	}
	return nil
}
