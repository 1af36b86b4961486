// Package vm implements the Execution Backend contract (spec.md §4.4) as a
// higher-fidelity alternative to the container backend: each job runs in a
// dedicated QEMU guest instead of a container, reached over a local pty
// session. Grounded on original_source's QemuBackend, which starts a
// qemu-system-x86_64 process per job and is otherwise a stub.
package vm

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/creack/pty"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/localci/localci/pkg/backend"
)

var imagesByRunsOn = []struct {
	prefix string
	image  string
}{
	{"ubuntu-22.04", "ubuntu-22.04.qcow2"},
	{"ubuntu-latest", "ubuntu-22.04.qcow2"},
	{"ubuntu-20.04", "ubuntu-20.04.qcow2"},
	{"windows-latest", "windows-2022.qcow2"},
}

const defaultImage = "ubuntu-22.04.qcow2"

func mapRunsOnToVMImage(runsOn string) string {
	lower := strings.ToLower(runsOn)
	for _, m := range imagesByRunsOn {
		if strings.Contains(lower, m.prefix) {
			return m.image
		}
	}
	return defaultImage
}

// QemuBinary is the executable probed for at construction and invoked to
// start each guest. Overridable in tests.
var QemuBinary = "qemu-system-x86_64"

// ImageDir is the directory holding pre-built qcow2 guest images.
var ImageDir = "."

// Backend runs job steps inside a QEMU guest reached over a pty-attached
// serial console shell, started in PrepareEnvironment and shut down in
// Cleanup.
type Backend struct {
	events backend.Events
	logger *logrus.Entry

	mu   sync.Mutex
	cmd  *exec.Cmd
	pty  *os.File
	vmID string
}

func New(events backend.Events) *Backend {
	if events == nil {
		events = backend.NopEvents{}
	}
	return &Backend{events: events, logger: logrus.WithField("backend", "vm")}
}

// Detect probes for a usable QEMU binary within backend.RuntimeDetectTimeout.
func Detect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, backend.RuntimeDetectTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, QemuBinary, "--version")
	return cmd.Run()
}

// PrepareEnvironment starts a QEMU guest for runsOn's image, attached to a
// local pty so ExecuteStep can drive its console like a shell.
func (b *Backend) PrepareEnvironment(ctx context.Context, runsOn string) error {
	ctx, cancel := context.WithTimeout(ctx, backend.PrepareTimeout)
	defer cancel()

	image := mapRunsOnToVMImage(runsOn)
	b.events.Output("starting QEMU VM with image: " + image)

	args := []string{
		"-m", "2048",
		"-smp", "2",
		"-hda", ImageDir + "/" + image,
		"-net", "user", "-net", "nic",
		"-nographic",
		"-serial", "mon:stdio",
	}
	cmd := exec.CommandContext(ctx, QemuBinary, args...)
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return errors.Wrap(err, "starting qemu guest")
	}

	b.mu.Lock()
	b.cmd = cmd
	b.pty = ptmx
	b.vmID = "vm-" + strconv.Itoa(cmd.Process.Pid)
	b.mu.Unlock()

	return nil
}

// ExecuteStep writes the step's shell command to the guest console and
// reads back a terminated marker's worth of output, reported through
// stepCtx.Events, falling back to the Backend's own Events if the caller
// left stepCtx.Events nil.
func (b *Backend) ExecuteStep(ctx context.Context, step *backend.Step, stepCtx backend.StepContext) error {
	events := b.events
	if stepCtx.Events != nil {
		events = stepCtx.Events
	}

	b.mu.Lock()
	ptmx := b.pty
	b.mu.Unlock()
	if ptmx == nil {
		return errors.New("vm not prepared")
	}
	if step.Run == "" {
		events.Output("action execution in vm: " + step.Uses + " (stub, not executed)")
		return nil
	}

	line := step.Run + "; echo LOCALCI_EXIT:$?\n"

	if _, err := ptmx.Write([]byte(line)); err != nil {
		return errors.Wrapf(err, "writing step %s to guest console", step.ID)
	}

	scanner := bufio.NewScanner(ptmx)
	for scanner.Scan() {
		text := scanner.Text()
		if strings.HasPrefix(text, "LOCALCI_EXIT:") {
			code := strings.TrimPrefix(text, "LOCALCI_EXIT:")
			if code != "0" {
				msg := "step failed with exit code " + code
				events.Error(msg)
				return errors.New(msg)
			}
			return nil
		}
		events.Output(text + "\n")
	}
	return scanner.Err()
}

// Cleanup terminates the guest process.
func (b *Backend) Cleanup(ctx context.Context) error {
	b.mu.Lock()
	cmd := b.cmd
	vmID := b.vmID
	b.cmd, b.pty, b.vmID = nil, nil, ""
	b.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	b.events.Output("stopping VM: " + vmID)
	if err := cmd.Process.Kill(); err != nil {
		return errors.Wrap(err, "killing qemu guest")
	}
	_ = cmd.Wait()
	return nil
}
