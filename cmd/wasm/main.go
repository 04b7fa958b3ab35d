//go:build js && wasm

// Command wasm exposes the traffic simulator to the browser via WebAssembly.
// After loading, it registers a global JavaScript function:
//
//	runTrafficSim(jsonString) -> jsonString
//
// The input and output are JSON-encoded ExperimentInput and ExperimentResult
// respectively, matching the same contract used by the CLI.
package main

import (
	"syscall/js"

	"github.com/Deshray/agent-based-traffic-congestion-simulation/internal/engine"
)

func main() {
	js.Global().Set("runTrafficSim", js.FuncOf(runTrafficSim))
	select {} // keep the WASM module alive until the page is closed
}

func runTrafficSim(_ js.Value, args []js.Value) any {
	if len(args) < 1 {
		return map[string]any{"error": "no input provided"}
	}

	result, err := engine.RunJSON(args[0].String())
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	return result
}
