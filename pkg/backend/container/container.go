// Package container implements the Execution Backend contract (spec.md
// §4.4) on top of a local Docker-compatible daemon. It is grounded on the
// container package's now-superseded docker_run.go: one container is
// created and started detached per job, steps are run against it with
// ContainerExecCreate/Attach/Inspect, and the container is removed on
// cleanup.
package container

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"os"
	"strings"

	"github.com/docker/docker/api/types"
	dcontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/mattn/go-isatty"
	patternmatcher "github.com/moby/patternmatcher"
	distreference "github.com/docker/distribution/reference"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/localci/localci/pkg/backend"
)

// hostPlatform is the platform this process runs on, used to pull the
// matching image variant from multi-arch manifests.
var hostPlatform = ocispec.Platform{OS: "linux", Architecture: "amd64"}

// imagesByRunsOn maps runner labels to the container image used to satisfy
// them. Lookup picks the first entry, in table order, whose label occurs in
// the runs-on string (so more specific labels are listed first), and falls
// through to defaultImage when nothing matches.
var imagesByRunsOn = []struct {
	prefix string
	image  string
}{
	{"ubuntu-22.04", "ubuntu:22.04"},
	{"ubuntu-latest", "ubuntu:22.04"},
	{"ubuntu-20.04", "ubuntu:20.04"},
	{"ubuntu", "ubuntu:latest"},
	{"debian", "debian:latest"},
	{"alpine", "alpine:latest"},
}

const defaultImage = "ubuntu:22.04"

func mapRunsOnToImage(runsOn string) string {
	lower := strings.ToLower(runsOn)
	for _, m := range imagesByRunsOn {
		if strings.Contains(lower, m.prefix) {
			return m.image
		}
	}
	return defaultImage
}

// Backend runs job steps inside a single long-lived Docker container,
// started detached in PrepareEnvironment and torn down in Cleanup.
type Backend struct {
	client      *client.Client
	events      backend.Events
	containerID string
	workflowID  string
	logger      *logrus.Entry
}

// New constructs a container Backend against the local Docker daemon,
// resolved the same way the Docker CLI resolves it (DOCKER_HOST, then the
// platform default socket).
func New(workflowID string, events backend.Events) (*Backend, error) {
	if events == nil {
		events = backend.NopEvents{}
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errors.Wrap(err, "creating docker client")
	}
	return &Backend{
		client:     cli,
		events:     events,
		workflowID: workflowID,
		logger:     logrus.WithField("backend", "container"),
	}, nil
}

// Ping probes the daemon within backend.RuntimeDetectTimeout, the Go
// equivalent of the original `docker --version`/`podman --version` probe.
func (b *Backend) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, backend.RuntimeDetectTimeout)
	defer cancel()
	_, err := b.client.Ping(ctx)
	return err
}

// PrepareEnvironment pulls (if necessary) and starts a detached container
// for runsOn, left idling on a shell so ExecuteStep can exec into it.
func (b *Backend) PrepareEnvironment(ctx context.Context, runsOn string) error {
	ctx, cancel := context.WithTimeout(ctx, backend.PrepareTimeout)
	defer cancel()

	image := mapRunsOnToImage(runsOn)
	if _, err := distreference.ParseNormalizedNamed(image); err != nil {
		return errors.Wrapf(err, "invalid image reference %q", image)
	}

	if err := b.pullIfMissing(ctx, image); err != nil {
		return errors.Wrapf(err, "pulling image %s", image)
	}

	name := "localci-" + b.workflowID
	resp, err := b.client.ContainerCreate(ctx, &dcontainer.Config{
		Image:     image,
		Cmd:       []string{"sh"},
		Tty:       isatty.IsTerminal(os.Stdout.Fd()),
		OpenStdin: true,
	}, &dcontainer.HostConfig{
		AutoRemove:   false,
		NetworkMode:  "bridge",
		PortBindings: nat.PortMap{},
	}, nil, nil, name)
	if err != nil {
		return errors.Wrap(err, "creating container")
	}
	b.containerID = resp.ID

	if err := b.client.ContainerStart(ctx, b.containerID, types.ContainerStartOptions{}); err != nil {
		return errors.Wrap(err, "starting container")
	}
	b.logger.Debugf("started container %s from image %s", b.containerID, image)
	return nil
}

// ExecuteStep execs the step's shell command inside the prepared container
// and reports its combined output through stepCtx.Events, falling back to
// the Backend's own Events if the caller left stepCtx.Events nil.
func (b *Backend) ExecuteStep(ctx context.Context, step *backend.Step, stepCtx backend.StepContext) error {
	events := b.events
	if stepCtx.Events != nil {
		events = stepCtx.Events
	}

	if b.containerID == "" {
		return errors.New("container not prepared")
	}
	if step.Run == "" {
		b.stageWorkingDirectory(ctx, stepCtx.WorkingDirectory)
		events.Output("action execution: " + step.Uses + " (stub, not executed)")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, backend.StepTimeout)
	defer cancel()

	shell := step.Shell
	if shell == "" {
		shell = "sh"
	}

	env := make([]string, 0, len(stepCtx.Env))
	for k, v := range stepCtx.Env {
		env = append(env, k+"="+v)
	}

	execResp, err := b.client.ContainerExecCreate(ctx, b.containerID, types.ExecConfig{
		Cmd:          []string{shell, "-c", step.Run},
		Env:          env,
		WorkingDir:   stepCtx.WorkingDirectory,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return errors.Wrapf(err, "creating exec for step %s", step.ID)
	}

	attach, err := b.client.ContainerExecAttach(ctx, execResp.ID, types.ExecStartCheck{})
	if err != nil {
		return errors.Wrapf(err, "attaching exec for step %s", step.ID)
	}
	defer attach.Close()

	out, readErr := io.ReadAll(attach.Reader)
	if len(out) > 0 {
		events.Output(string(out))
	}
	if readErr != nil {
		return errors.Wrapf(readErr, "reading step %s output", step.ID)
	}

	inspect, err := b.client.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return errors.Wrapf(err, "inspecting exec for step %s", step.ID)
	}
	if inspect.ExitCode != 0 {
		msg := "step failed with exit code " + itoa(inspect.ExitCode)
		events.Error(msg)
		return errors.New(msg)
	}
	return nil
}

// Cleanup force-removes the prepared container, tolerating a backend that
// never got past PrepareEnvironment.
func (b *Backend) Cleanup(ctx context.Context) error {
	if b.containerID == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, backend.CleanupTimeout)
	defer cancel()

	err := b.client.ContainerRemove(ctx, b.containerID, types.ContainerRemoveOptions{
		RemoveVolumes: true,
		Force:         true,
	})
	b.containerID = ""
	if err != nil {
		return errors.Wrap(err, "removing container")
	}
	return nil
}

func (b *Backend) pullIfMissing(ctx context.Context, image string) error {
	_, _, err := b.client.ImageInspectWithRaw(ctx, image)
	if err == nil {
		return nil
	}
	if !client.IsErrNotFound(err) {
		return err
	}
	platform := hostPlatform.OS + "/" + hostPlatform.Architecture
	reader, err := b.client.ImagePull(ctx, image, types.ImagePullOptions{Platform: platform})
	if err != nil {
		return err
	}
	defer reader.Close()
	_, copyErr := io.Copy(io.Discard, reader)
	return copyErr
}

// stageWorkingDirectory copies dir's top-level files into the prepared
// container at /workspace ahead of a `uses:` step's stub execution, so an
// action stub that inspects its working directory sees the same files a
// real `run` step would. Best-effort: staging failures are logged, not
// fatal, since `uses` execution is itself a stub (spec.md §4.4/§9).
func (b *Backend) stageWorkingDirectory(ctx context.Context, dir string) {
	if dir == "" || b.containerID == "" {
		return
	}
	tarball, err := stageTar(dir, []string{".git"})
	if err != nil {
		b.logger.Debugf("staging %s: %v", dir, err)
		return
	}
	if err := b.client.CopyToContainer(ctx, b.containerID, "/workspace", tarball, types.CopyToContainerOptions{}); err != nil {
		b.logger.Debugf("copying %s to container: %v", dir, err)
	}
}

// stageTar builds a tar stream of dir, honoring a .dockerignore-style
// pattern matcher so action directories are staged into the container
// without their VCS metadata.
func stageTar(dir string, excludes []string) (io.Reader, error) {
	matcher, err := patternmatcher.New(excludes)
	if err != nil {
		return nil, errors.Wrap(err, "compiling copy exclude patterns")
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	defer tw.Close()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matched, err := matcher.Matches(entry.Name())
		if err != nil || matched {
			continue
		}
		data, err := os.ReadFile(dir + string(os.PathSeparator) + entry.Name())
		if err != nil {
			return nil, err
		}
		if err := tw.WriteHeader(&tar.Header{Name: entry.Name(), Size: int64(len(data)), Mode: 0o644}); err != nil {
			return nil, err
		}
		if _, err := tw.Write(data); err != nil {
			return nil, err
		}
	}
	return &buf, nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
