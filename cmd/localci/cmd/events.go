package cmd

import "fmt"

// consoleEvents renders scheduler and backend events to stdout, playing the
// role the original's Qt console view played for its signal/slot events.
type consoleEvents struct{}

func (consoleEvents) JobStarted(jobID string) {
	fmt.Printf("==> job %s: started\n", jobID)
}

func (consoleEvents) JobFinished(jobID string, success bool) {
	fmt.Printf("==> job %s: %s\n", jobID, statusWord(success))
}

func (consoleEvents) StepStarted(jobID, stepLabel string) {
	fmt.Printf("    [%s] %s\n", jobID, stepLabel)
}

func (consoleEvents) StepFinished(jobID, stepLabel string, success bool) {
	fmt.Printf("    [%s] %s: %s\n", jobID, stepLabel, statusWord(success))
}

func (consoleEvents) StepOutput(jobID, stepLabel, text string) {
	fmt.Printf("    [%s] %s\n", jobID, text)
}

func (consoleEvents) Error(message string) {
	fmt.Println("error:", message)
}

func (consoleEvents) ExecutionFinished(success bool) {
	fmt.Println("workflow", statusWord(success))
}

func statusWord(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}

// backendEvents adapts consoleEvents' output/error lines to the
// backend.Events contract the Container/VM backends emit against.
type backendEvents struct{}

func (backendEvents) Output(text string) {
	fmt.Println(text)
}

func (backendEvents) Error(message string) {
	fmt.Println("error:", message)
}
