// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cloudinit

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"

	"github.com/somatczk/romulus/config"
)

func testDoc() config.Document {
	return config.Document{
		Cluster: config.Cluster{Name: "romulus", Domain: "cluster.local"},
		Network: config.Network{Name: "k8s-net", Mode: "nat", CIDR: "10.17.3.0/24", DHCP: true},
		Storage: config.Storage{PoolName: "k8s-pool", PoolPath: "/var/lib/romulus/pool"},
		Nodes: config.Nodes{
			Masters: config.Role{Count: 1, MemoryMiB: 2048, VCPU: 2, IPPrefix: "10.17.3.1"},
			Workers: config.Role{Count: 1, MemoryMiB: 4096, VCPU: 4, IPPrefix: "10.17.3.2"},
		},
		SSH: config.SSH{User: "romulus"},
	}
}

func TestGenerate_ProducesReadableISO(t *testing.T) {
	doc := testDoc()
	doc.SSH.PublicKeyPath = writeTempPublicKey(t)

	g := NewGenerator(hclog.NewNullLogger())
	isoPath, err := g.Generate(Request{Name: "romulus-master-1", Pool: "k8s-pool", NodeType: "master", NodeIndex: 1}, doc)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	defer os.Remove(isoPath)

	info, err := os.Stat(isoPath)
	if err != nil {
		t.Fatalf("expected ISO file to exist at %s: %v", isoPath, err)
	}
	if info.Size() == 0 {
		t.Fatal("expected non-empty ISO file")
	}
}

func TestGenerate_UnknownNodeTypeFails(t *testing.T) {
	doc := testDoc()
	g := NewGenerator(hclog.NewNullLogger())

	_, err := g.Generate(Request{Name: "romulus-edge-1", NodeType: "edge", NodeIndex: 1}, doc)
	if err == nil {
		t.Fatal("expected an error for an unrecognized node_type")
	}
}

func TestGenerate_StagingDirectoryIsRemoved(t *testing.T) {
	doc := testDoc()
	doc.SSH.PublicKeyPath = writeTempPublicKey(t)

	before, err := os.ReadDir(os.TempDir())
	if err != nil {
		t.Fatalf("failed to read temp dir: %v", err)
	}

	g := NewGenerator(hclog.NewNullLogger())
	isoPath, err := g.Generate(Request{Name: "romulus-worker-1", NodeType: "worker", NodeIndex: 1}, doc)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	defer os.Remove(isoPath)

	after, err := os.ReadDir(os.TempDir())
	if err != nil {
		t.Fatalf("failed to read temp dir: %v", err)
	}

	for _, entry := range after {
		if strings.HasPrefix(entry.Name(), "romulus-cloudinit-") {
			found := false
			for _, b := range before {
				if b.Name() == entry.Name() {
					found = true
				}
			}
			if !found {
				t.Fatalf("staging directory %s was not cleaned up", entry.Name())
			}
		}
	}
}

func TestBuildTemplateData_ComputesGatewayAndIP(t *testing.T) {
	doc := testDoc()
	doc.Kubernetes = &config.Kubernetes{Version: "1.29.0", PodSubnet: "10.244.0.0/16", ServiceSubnet: "10.96.0.0/12"}

	data, err := buildTemplateData(Request{Name: "romulus-master-1", NodeType: "master", NodeIndex: 1}, doc)
	if err != nil {
		t.Fatalf("buildTemplateData returned error: %v", err)
	}

	if data.IPAddress != "10.17.3.11" {
		t.Fatalf("expected IP 10.17.3.11, got %s", data.IPAddress)
	}
	if data.Gateway != "10.17.3.1" {
		t.Fatalf("expected gateway 10.17.3.1, got %s", data.Gateway)
	}
	if data.KubernetesVersion != "1.29.0" {
		t.Fatalf("expected kubernetes version to be passed through, got %q", data.KubernetesVersion)
	}
}

func TestRenderTemplate_MetaData(t *testing.T) {
	var buf bytes.Buffer
	err := renderTemplate("meta-data.tmpl", templateData{InstanceID: "romulus-master-1", Hostname: "romulus-master-1"}, &buf)
	if err != nil {
		t.Fatalf("renderTemplate returned error: %v", err)
	}
	if !strings.Contains(buf.String(), "instance-id: romulus-master-1") {
		t.Fatalf("expected rendered meta-data to contain instance-id, got %q", buf.String())
	}
}

func writeTempPublicKey(t *testing.T) string {
	t.Helper()
	f, err := os.CreateTemp("", "romulus-test-key-*.pub")
	if err != nil {
		t.Fatalf("failed to create temp ssh key file: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString("ssh-ed25519 AAAATest test@romulus\n"); err != nil {
		t.Fatalf("failed to write temp ssh key file: %v", err)
	}
	t.Cleanup(func() { os.Remove(f.Name()) })
	return f.Name()
}
