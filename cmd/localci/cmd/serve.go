package cmd

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/spf13/cobra"
)

var servePort string

// triggerRequest is the payload a local webhook caller posts to request a
// workflow run, standing in for the hosted service's push-event trigger.
type triggerRequest struct {
	RepositoryPath string `json:"repository_path"`
	WorkflowFile   string `json:"workflow_file"`
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a local HTTP endpoint that triggers workflow runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		router := httprouter.New()
		router.POST("/trigger", handleTrigger)
		router.GET("/healthz", handleHealthz)

		logger.Infof("listening on %s", servePort)
		return http.ListenAndServe(servePort, router)
	},
}

func handleHealthz(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleTrigger(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.RepositoryPath == "" || req.WorkflowFile == "" {
		http.Error(w, "repository_path and workflow_file are required", http.StatusBadRequest)
		return
	}

	go func() {
		if err := runWorkflow(context.Background(), req.WorkflowFile); err != nil {
			logger.Error(err)
		}
	}()

	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte("triggered"))
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "addr", ":8787", "address to listen on")
}
