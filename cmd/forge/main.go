package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"forge/internal/engine"
	"forge/internal/router"
)

var version = "0.1.0"

// Exit codes per the CLI surface contract: 0 success, 1 engine error, 2
// user abort, 3 model-unavailable.
const (
	exitSuccess          = 0
	exitEngineError      = 1
	exitUserAbort        = 2
	exitModelUnavailable = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	var workdir string

	rootCmd := &cobra.Command{
		Use:   "forge",
		Short: "Local-model code-generation orchestrator",
		Long: `Forge coordinates local Ollama models to classify, route, generate,
review, verify, and self-repair a multi-file software project.`,
	}
	rootCmd.PersistentFlags().StringVar(&workdir, "workdir", "", "workspace root (default: current directory)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("forge version %s\n", version)
		},
	})

	exitCode := exitSuccess

	rootCmd.AddCommand(&cobra.Command{
		Use:   "agent <request>",
		Short: "Autonomously plan, generate, and verify a project from a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exitCode = runAgent(workdir, args[0])
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "chat <request>",
		Short: "Classify a request and report its route without generating anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exitCode = runChat(workdir, args[0])
			return nil
		},
	})

	if err := rootCmd.Execute(); err != nil {
		return exitEngineError
	}
	return exitCode
}

func resolveWorkdir(workdir string) (string, error) {
	if workdir != "" {
		return workdir, nil
	}
	return os.Getwd()
}

// runAgent drives the default, autonomous mode: classify, route, and run
// the request to completion through the DAG Orchestrator or the Agentic
// Executor, resuming a prior session checkpoint first if one exists.
func runAgent(workdir, request string) int {
	ws, err := resolveWorkdir(workdir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "forge:", err)
		return exitEngineError
	}

	e, err := engine.New(ws, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "forge:", err)
		return exitModelUnavailable
	}

	if err := e.Resume(); err != nil {
		fmt.Fprintln(os.Stderr, "forge: resuming session:", err)
	}

	ctx := context.Background()
	result, err := e.Handle(ctx, request)
	if err != nil {
		var unavailable *router.ModelUnavailable
		if errors.As(err, &unavailable) {
			fmt.Fprintln(os.Stderr, "forge:", err)
			return exitModelUnavailable
		}
		if errors.Is(err, context.Canceled) {
			return exitUserAbort
		}
		fmt.Fprintln(os.Stderr, "forge:", err)
		return exitEngineError
	}

	fmt.Printf("%+v\n", result)
	return exitSuccess
}

// runChat is the read-only dry run: it reports the route a request would
// take without writing anything to the workspace or calling the model
// again beyond the Classifier's own optional LLM call.
func runChat(workdir, request string) int {
	ws, err := resolveWorkdir(workdir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "forge:", err)
		return exitEngineError
	}

	e, err := engine.New(ws, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "forge:", err)
		return exitModelUnavailable
	}

	route, err := e.Classify(context.Background(), request)
	if err != nil {
		var unavailable *router.ModelUnavailable
		if errors.As(err, &unavailable) {
			fmt.Fprintln(os.Stderr, "forge:", err)
			return exitModelUnavailable
		}
		fmt.Fprintln(os.Stderr, "forge:", err)
		return exitEngineError
	}

	target := "agentic executor"
	if route.IsBuild {
		target = "DAG orchestrator"
	}
	fmt.Printf("complexity=%s size=%s route=%s\n", route.Complexity, route.Size, target)
	return exitSuccess
}
