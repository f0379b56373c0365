// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package cloudinit is the Cloud-Init Generator: given a VM's
// (name, pool, node_type, node_index) and the full validated config, it
// renders user-data/network-config/meta-data, stages them on disk, and
// wraps them into a "cidata"-labeled ISO-9660 image for the Adapter to
// attach as a CD-ROM.
package cloudinit

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"text/template"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/somatczk/romulus/config"
	"github.com/somatczk/romulus/errs"
)

const templateFSRoot = "templates"

//go:embed templates
var templateFS embed.FS

// Request is what the Executor passes when dispatching a create-domain
// or create-cloudinit action.
type Request struct {
	Name      string
	Pool      string
	NodeType  string // "master" or "worker"
	NodeIndex int
}

// templateData is the view handed to every template; it flattens the
// handful of config fields cloud-init needs out of the full Document.
type templateData struct {
	InstanceID        string
	Hostname          string
	Domain            string
	ClusterName       string
	NodeType          string
	NodeIndex         int
	SSHUser           string
	SSHPublicKey      string
	IPAddress         string
	Gateway           string
	KubernetesVersion string
	PodSubnet         string
	ServiceSubnet     string
}

// Generator renders and packages cloud-init images, the way the
// teacher's Controller turns a Config into an attachable ISO.
type Generator struct {
	logger hclog.Logger
}

func NewGenerator(logger hclog.Logger) *Generator {
	return &Generator{logger: logger.Named("cloud-init")}
}

// Generate renders, stages, and packages the cloud-init ISO for req and
// returns its absolute path. The staging directory is removed on every
// exit path.
func (g *Generator) Generate(req Request, doc config.Document) (string, error) {
	g.logger.Debug("generating cloud-init image", "name", req.Name, "node_type", req.NodeType, "node_index", req.NodeIndex)

	data, err := buildTemplateData(req, doc)
	if err != nil {
		return "", err
	}

	staging, err := os.MkdirTemp("", "romulus-cloudinit-"+uuid.NewString())
	if err != nil {
		return "", errs.Wrap(errs.KindExecution, "action_failed", "failed to create cloud-init staging directory", err, nil)
	}
	defer os.RemoveAll(staging)

	for _, f := range []struct {
		template, file string
	}{
		{"meta-data.tmpl", "meta-data"},
		{"user-data.tmpl", "user-data"},
		{"network-config.tmpl", "network-config"},
	} {
		var buf bytes.Buffer
		if err := renderTemplate(f.template, data, &buf); err != nil {
			return "", err
		}
		if err := os.WriteFile(filepath.Join(staging, f.file), buf.Bytes(), 0o644); err != nil {
			return "", errs.Wrap(errs.KindExecution, "action_failed", "failed to stage cloud-init file", err,
				map[string]any{"file": f.file})
		}
	}

	isoPath := filepath.Join(os.TempDir(), fmt.Sprintf("romulus-%s-%s.iso", req.Name, uuid.NewString()))
	if err := writeISO(isoPath, "cidata", staging); err != nil {
		return "", err
	}

	g.logger.Info("generated cloud-init image", "name", req.Name, "path", isoPath)
	return isoPath, nil
}

func buildTemplateData(req Request, doc config.Document) (templateData, error) {
	role, ok := map[string]config.Role{
		"master": doc.Nodes.Masters,
		"worker": doc.Nodes.Workers,
	}[req.NodeType]
	if !ok {
		return templateData{}, errs.ResourceValidationFailed("domain", req.Name, "unknown node_type "+req.NodeType)
	}

	gw, err := gatewayFromCIDR(doc.Network.CIDR)
	if err != nil {
		return templateData{}, err
	}

	pubKey, err := readSSHPublicKey(doc.SSH.PublicKeyPath)
	if err != nil {
		return templateData{}, err
	}

	data := templateData{
		InstanceID:   req.Name,
		Hostname:     req.Name,
		Domain:       doc.Cluster.Domain,
		ClusterName:  doc.Cluster.Name,
		NodeType:     req.NodeType,
		NodeIndex:    req.NodeIndex,
		SSHUser:      doc.SSH.User,
		SSHPublicKey: pubKey,
		IPAddress:    fmt.Sprintf("%s%d", role.IPPrefix, req.NodeIndex),
		Gateway:      gw,
	}

	if doc.Kubernetes != nil {
		data.KubernetesVersion = doc.Kubernetes.Version
		data.PodSubnet = doc.Kubernetes.PodSubnet
		data.ServiceSubnet = doc.Kubernetes.ServiceSubnet
	}

	return data, nil
}

func readSSHPublicKey(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", errs.Wrap(errs.KindExecution, "precondition_failed", "failed to read ssh public key", err,
			map[string]any{"path": path})
	}
	return string(bytes.TrimSpace(b)), nil
}

func renderTemplate(name string, data templateData, out *bytes.Buffer) error {
	fsys, err := fs.Sub(templateFS, templateFSRoot)
	if err != nil {
		return errs.Wrap(errs.KindExecution, "action_failed", "failed to open cloud-init templates", err, nil)
	}

	tmpl, err := template.ParseFS(fsys, name)
	if err != nil {
		return errs.Wrap(errs.KindExecution, "action_failed", "failed to parse cloud-init template", err,
			map[string]any{"template": name})
	}

	if err := tmpl.Execute(out, data); err != nil {
		return errs.Wrap(errs.KindExecution, "action_failed", "failed to render cloud-init template", err,
			map[string]any{"template": name})
	}
	return nil
}
