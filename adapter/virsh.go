// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package adapter

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/somatczk/romulus/adapter/xmlgen"
	"github.com/somatczk/romulus/errs"
	"github.com/somatczk/romulus/state"
)

const (
	defaultCommandTimeout  = 30 * time.Second
	defaultDownloadTimeout = 5 * time.Minute
)

// VirshAdapter is the default Adapter: it shells out to virsh for every
// libvirt mutation and listing, and wget for base-image downloads. It does
// not build cloud-init media; CreateDomain takes an ISO path produced
// elsewhere.
type VirshAdapter struct {
	logger         hclog.Logger
	commandTimeout time.Duration
	poolPath       func(pool string) string

	// execCommand builds the *exec.Cmd for every shelled-out call; tests
	// within this package stub it to avoid depending on a real virsh/wget
	// binary being on PATH.
	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// Option configures a VirshAdapter.
type Option func(*VirshAdapter)

func WithCommandTimeout(d time.Duration) Option {
	return func(a *VirshAdapter) { a.commandTimeout = d }
}

// WithPoolPathResolver overrides how the adapter maps a pool name to its
// on-disk directory; by default the pool name itself is used as the
// directory path.
func WithPoolPathResolver(fn func(pool string) string) Option {
	return func(a *VirshAdapter) { a.poolPath = fn }
}

func New(logger hclog.Logger, options ...Option) *VirshAdapter {
	a := &VirshAdapter{
		logger:         logger.Named("adapter.virsh"),
		commandTimeout: defaultCommandTimeout,
		execCommand:    exec.CommandContext,
	}
	for _, opt := range options {
		opt(a)
	}
	if a.poolPath == nil {
		a.poolPath = func(pool string) string { return pool }
	}
	return a
}

// run executes name with args under a bounded timeout, returning its
// stdout (stderr is captured only for the error). Command lines are logged at debug, outcomes at info/error.
func (a *VirshAdapter) run(ctx context.Context, timeout time.Duration, name string, args ...string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	a.logger.Debug("executing command", "cmd", name, "args", args)

	var stdout, stderr bytes.Buffer
	cmd := a.execCommand(cctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if cctx.Err() != nil {
		a.logger.Error("command exceeded its timeout", "cmd", name)
		return "", errs.HypervisorTimeout(commandLine(name, args), timeout.Milliseconds())
	}
	if err != nil {
		exitCode := exitCodeOf(err)
		a.logger.Error("command failed", "cmd", name, "stderr", stderr.String(), "exit_code", exitCode)
		return "", errs.CommandFailed(commandLine(name, args), exitCode, stderr.String(), err)
	}

	a.logger.Debug("command succeeded", "cmd", name, "stdout", stdout.String())
	return stdout.String(), nil
}

func commandLine(name string, args []string) string {
	return name + " " + strings.Join(args, " ")
}

// --- Networks ---

func (a *VirshAdapter) ListNetworks(ctx context.Context) ([]state.Network, error) {
	out, err := a.run(ctx, a.commandTimeout, "virsh", "net-list", "--all", "--name")
	if err != nil {
		return nil, err
	}

	var networks []state.Network
	for _, name := range nonEmptyLines(out) {
		info, err := a.run(ctx, a.commandTimeout, "virsh", "net-info", name)
		if err != nil {
			return nil, err
		}
		networks = append(networks, parseNetInfo(name, info))
	}
	return networks, nil
}

func parseNetInfo(name, info string) state.Network {
	n := state.Network{Name: name, Mode: state.NetworkModeNAT}
	for _, line := range strings.Split(info, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "Active:") {
			n.Active = strings.Contains(line, "yes")
		}
	}
	return n
}

func (a *VirshAdapter) CreateNetwork(ctx context.Context, n state.Network) error {
	if exists, err := a.NetworkExists(ctx, n.Name); err != nil {
		return err
	} else if exists {
		return errs.ResourceExists("network", n.Name)
	}

	xml, err := xmlgen.Network(n)
	if err != nil {
		return errs.Wrap(errs.KindHypervisor, "command_failed", "failed to render network XML", err, nil)
	}

	xmlPath, cleanup, err := writeTempFile("romulus-net-*.xml", xml)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := a.run(ctx, a.commandTimeout, "virsh", "net-define", xmlPath); err != nil {
		return err
	}
	if _, err := a.run(ctx, a.commandTimeout, "virsh", "net-start", n.Name); err != nil {
		return err
	}
	_, err = a.run(ctx, a.commandTimeout, "virsh", "net-autostart", n.Name)
	return err
}

func (a *VirshAdapter) DeleteNetwork(ctx context.Context, name string) error {
	if _, err := a.run(ctx, a.commandTimeout, "virsh", "net-destroy", name); err != nil {
		a.logger.Warn("net-destroy failed, network may already be inactive", "name", name, "error", err)
	}
	_, err := a.run(ctx, a.commandTimeout, "virsh", "net-undefine", name)
	return err
}

func (a *VirshAdapter) NetworkExists(ctx context.Context, name string) (bool, error) {
	_, err := a.run(ctx, a.commandTimeout, "virsh", "net-info", name)
	return existsFromErr(err)
}

// --- Pools ---

func (a *VirshAdapter) ListPools(ctx context.Context) ([]state.Pool, error) {
	out, err := a.run(ctx, a.commandTimeout, "virsh", "pool-list", "--all", "--name")
	if err != nil {
		return nil, err
	}

	var pools []state.Pool
	for _, name := range nonEmptyLines(out) {
		info, err := a.run(ctx, a.commandTimeout, "virsh", "pool-info", name)
		if err != nil {
			return nil, err
		}
		pools = append(pools, parsePoolInfo(name, info))
	}
	return pools, nil
}

func parsePoolInfo(name, info string) state.Pool {
	p := state.Pool{Name: name, Type: "dir"}
	for _, line := range strings.Split(info, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "State:") {
			p.Active = strings.Contains(line, "running")
		}
	}
	return p
}

func (a *VirshAdapter) CreatePool(ctx context.Context, p state.Pool) error {
	if exists, err := a.PoolExists(ctx, p.Name); err != nil {
		return err
	} else if exists {
		return errs.ResourceExists("pool", p.Name)
	}

	path := p.Path
	if path == "" {
		path = a.poolPath(p.Name)
	}

	xml, err := xmlgen.Pool(p, path)
	if err != nil {
		return errs.Wrap(errs.KindHypervisor, "command_failed", "failed to render pool XML", err, nil)
	}

	xmlPath, cleanup, err := writeTempFile("romulus-pool-*.xml", xml)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := a.run(ctx, a.commandTimeout, "virsh", "pool-define", xmlPath); err != nil {
		return err
	}
	if _, err := a.run(ctx, a.commandTimeout, "virsh", "pool-build", p.Name); err != nil {
		return err
	}
	if _, err := a.run(ctx, a.commandTimeout, "virsh", "pool-start", p.Name); err != nil {
		return err
	}
	_, err = a.run(ctx, a.commandTimeout, "virsh", "pool-autostart", p.Name)
	return err
}

func (a *VirshAdapter) DeletePool(ctx context.Context, name string) error {
	if _, err := a.run(ctx, a.commandTimeout, "virsh", "pool-destroy", name); err != nil {
		a.logger.Warn("pool-destroy failed, pool may already be inactive", "name", name, "error", err)
	}
	_, err := a.run(ctx, a.commandTimeout, "virsh", "pool-undefine", name)
	return err
}

func (a *VirshAdapter) PoolExists(ctx context.Context, name string) (bool, error) {
	_, err := a.run(ctx, a.commandTimeout, "virsh", "pool-info", name)
	return existsFromErr(err)
}

// --- Volumes ---

func (a *VirshAdapter) ListVolumes(ctx context.Context, pools []state.Pool) ([]state.Volume, error) {
	var volumes []state.Volume
	for _, p := range pools {
		out, err := a.run(ctx, a.commandTimeout, "virsh", "vol-list", p.Name, "--name")
		if err != nil {
			return nil, err
		}
		for _, name := range nonEmptyLines(out) {
			volumes = append(volumes, state.Volume{Name: name, Pool: p.Name})
		}
	}
	return volumes, nil
}

func (a *VirshAdapter) CreateVolume(ctx context.Context, v state.Volume) error {
	if v.Provenance != state.ProvenanceCloudInit {
		if exists, err := a.VolumeExists(ctx, v.Pool, v.Name); err != nil {
			return err
		} else if exists {
			return errs.ResourceExists("volume", v.Name)
		}
	}

	switch v.Provenance {
	case state.ProvenanceSize:
		_, err := a.run(ctx, a.commandTimeout, "virsh", "vol-create-as", v.Pool, v.Name,
			strconv.FormatUint(v.SizeBytes, 10)+"B", "--format", v.Format)
		return err

	case state.ProvenanceBaseVolume:
		_, err := a.run(ctx, a.commandTimeout, "virsh", "vol-clone", v.BaseVolume, v.Name, "--pool", v.Pool)
		return err

	case state.ProvenanceSource:
		// The downloaded file itself becomes the volume; running
		// vol-create-as afterwards would truncate it back to empty, so
		// the pool is refreshed instead to make libvirt pick up the
		// file already on disk.
		dest := filepath.Join(a.poolPath(v.Pool), v.Name)
		if _, err := a.run(ctx, defaultDownloadTimeout, "wget", "-O", dest, v.Source); err != nil {
			return err
		}
		_, err := a.run(ctx, a.commandTimeout, "virsh", "pool-refresh", v.Pool)
		return err

	case state.ProvenanceCloudInit:
		// Cloud-init volumes are materialized by the Cloud-Init Generator,
		// not created directly through virsh; nothing to do here.
		return nil

	default:
		return errs.ResourceValidationFailed("volume", v.Name, "unknown provenance")
	}
}

func (a *VirshAdapter) DeleteVolume(ctx context.Context, pool, name string) error {
	_, err := a.run(ctx, a.commandTimeout, "virsh", "vol-delete", name, "--pool", pool)
	return err
}

func (a *VirshAdapter) VolumeExists(ctx context.Context, pool, name string) (bool, error) {
	out, err := a.run(ctx, a.commandTimeout, "virsh", "vol-list", pool, "--name")
	if err != nil {
		return false, err
	}
	for _, existing := range nonEmptyLines(out) {
		if existing == name {
			return true, nil
		}
	}
	return false, nil
}

// --- Domains ---

func (a *VirshAdapter) ListDomains(ctx context.Context) ([]state.Domain, error) {
	out, err := a.run(ctx, a.commandTimeout, "virsh", "list", "--all", "--name")
	if err != nil {
		return nil, err
	}

	var domains []state.Domain
	for _, name := range nonEmptyLines(out) {
		info, err := a.run(ctx, a.commandTimeout, "virsh", "dominfo", name)
		if err != nil {
			return nil, err
		}
		domains = append(domains, parseDomInfo(name, info))
	}
	return domains, nil
}

func parseDomInfo(name, info string) state.Domain {
	d := state.Domain{Name: name, State: state.DomainUnknown}
	for _, line := range strings.Split(info, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "State:"):
			switch {
			case strings.Contains(trimmed, "running"):
				d.State = state.DomainRunning
			case strings.Contains(trimmed, "paused"):
				d.State = state.DomainPaused
			case strings.Contains(trimmed, "shut off"):
				d.State = state.DomainStopped
			}
		}
	}
	return d
}

func (a *VirshAdapter) CreateDomain(ctx context.Context, d state.Domain, cloudInitISOPath string) error {
	if exists, err := a.DomainExists(ctx, d.Name); err != nil {
		return err
	} else if exists {
		return errs.ResourceExists("domain", d.Name)
	}

	diskPath := filepath.Join(a.poolPath(d.Pool), d.Name+"-disk")

	xml, err := xmlgen.Domain(d, diskPath, cloudInitISOPath)
	if err != nil {
		return errs.Wrap(errs.KindHypervisor, "command_failed", "failed to render domain XML", err, nil)
	}

	xmlPath, cleanup, err := writeTempFile("romulus-dom-*.xml", xml)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := a.run(ctx, a.commandTimeout, "virsh", "define", xmlPath); err != nil {
		return err
	}
	_, err = a.run(ctx, a.commandTimeout, "virsh", "start", d.Name)
	return err
}

func (a *VirshAdapter) DeleteDomain(ctx context.Context, name string) error {
	if _, err := a.run(ctx, a.commandTimeout, "virsh", "destroy", name); err != nil {
		a.logger.Warn("destroy failed, domain may already be stopped", "name", name, "error", err)
	}
	_, err := a.run(ctx, a.commandTimeout, "virsh", "undefine", name, "--remove-all-storage")
	return err
}

func (a *VirshAdapter) DomainExists(ctx context.Context, name string) (bool, error) {
	_, err := a.run(ctx, a.commandTimeout, "virsh", "dominfo", name)
	return existsFromErr(err)
}

// --- helpers ---

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func existsFromErr(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if e, ok := errs.AsError(err); ok && e.Kind == errs.KindHypervisor && e.SubTag == "command_failed" {
		return false, nil
	}
	return false, err
}

// writeTempFile writes content to a uniquely-suffixed file under the
// system temp directory and returns a cleanup func that must run on every
// exit path, successful or not.
func writeTempFile(pattern, content string) (path string, cleanup func(), err error) {
	f, err := os.CreateTemp("", strings.Replace(pattern, "*", uuid.NewString(), 1))
	if err != nil {
		return "", nil, errs.Wrap(errs.KindHypervisor, "command_failed", "failed to stage temp file", err, nil)
	}
	defer f.Close()

	if _, err := f.WriteString(content); err != nil {
		os.Remove(f.Name())
		return "", nil, errs.Wrap(errs.KindHypervisor, "command_failed", "failed to write temp file", err, nil)
	}

	return f.Name(), func() { os.Remove(f.Name()) }, nil
}

var _ Adapter = (*VirshAdapter)(nil)

func exitCodeOf(err error) int {
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}
