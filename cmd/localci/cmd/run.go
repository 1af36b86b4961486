package cmd

import (
	"context"
	"fmt"

	fswatch "github.com/andreaskoch/go-fswatch"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/localci/localci/pkg/backend"
	"github.com/localci/localci/pkg/backend/container"
	"github.com/localci/localci/pkg/backend/vm"
	"github.com/localci/localci/pkg/common"
	"github.com/localci/localci/pkg/parser"
	"github.com/localci/localci/pkg/scheduler"
)

var (
	useQemu    bool
	watchMode  bool
	watchDelay float64
)

var runCmd = &cobra.Command{
	Use:   "run <repository-path> [workflow-file]",
	Short: "Run a workflow's jobs against a local backend",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		repoRoot := args[0]

		workflowPath := ""
		if len(args) == 2 {
			workflowPath = args[1]
		} else {
			picked, err := pickWorkflow(repoRoot)
			if err != nil {
				return err
			}
			workflowPath = picked
		}

		runOnce := func() error {
			return runWorkflow(cmd.Context(), workflowPath)
		}

		if !watchMode {
			return runOnce()
		}
		return watchAndRun(workflowPath, runOnce)
	},
}

func runWorkflow(ctx context.Context, workflowPath string) error {
	ctx = common.WithLogger(ctx, logrus.NewEntry(logger))

	p := parser.New()
	wf, errs := p.Parse(workflowPath)
	if len(errs) > 0 {
		for _, e := range errs {
			logger.Error(e.String())
		}
		return fmt.Errorf("%s: workflow failed to parse", workflowPath)
	}

	be, err := newBackend(wf.File)
	if err != nil {
		return err
	}

	s := scheduler.New()
	success, err := s.ExecuteWorkflow(ctx, wf, be, consoleEvents{})
	if err != nil {
		return err
	}
	if !success {
		return fmt.Errorf("workflow %s failed", workflowPath)
	}
	return nil
}

func newBackend(workflowID string) (backend.Backend, error) {
	if useQemu {
		if err := vm.Detect(context.Background()); err != nil {
			return nil, err
		}
		return vm.New(backendEvents{}), nil
	}
	return container.New(workflowID, backendEvents{})
}

// watchAndRun re-runs the workflow every time its file changes, enriching
// the original's single-shot CLI with the pack's filesystem-watch library.
func watchAndRun(workflowPath string, run func() error) error {
	if err := run(); err != nil {
		logger.Error(err)
	}

	watcher := fswatch.NewFileWatcher(workflowPath, watchDelay)
	watcher.Start()
	defer watcher.Stop()

	logger.Infof("watching %s for changes (ctrl-c to stop)", workflowPath)
	for range watcher.Modified() {
		logger.Infof("%s changed, re-running", workflowPath)
		if err := run(); err != nil {
			logger.Error(err)
		}
	}
	return nil
}

func init() {
	runCmd.Flags().BoolVar(&useQemu, "qemu", false, "run jobs in a QEMU VM instead of a container")
	runCmd.Flags().BoolVar(&watchMode, "watch", false, "re-run the workflow whenever its file changes")
	runCmd.Flags().Float64Var(&watchDelay, "watch-interval", 1, "seconds between file-change checks in --watch mode")
}
