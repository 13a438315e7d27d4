package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/staticpayload/oracle.omen/pkg/agent"
	"github.com/staticpayload/oracle.omen/pkg/capability"
	"github.com/staticpayload/oracle.omen/pkg/controller"
	"github.com/staticpayload/oracle.omen/pkg/observability"
	"github.com/staticpayload/oracle.omen/pkg/patch"
	"github.com/staticpayload/oracle.omen/pkg/tool"
)

// observationRecord is the on-disk shape `omen run --observations` reads:
// one entry per Step, fed to the agent in file order.
type observationRecord struct {
	Type   string                 `json:"type"`
	Source string                 `json:"source"`
	Data   map[string]interface{} `json:"data"`
}

// runRunCmd implements `omen run`: it constructs a Controller over a
// chosen Agent implementation and drives it through every observation in
// the input file, one Step per observation, folding each Step's tool
// responses into the next.
func runRunCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("run", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		runID           uint64
		agentKind       string
		observations    string
		capabilitiesCSV string
		maxConcurrent   int
		outPath         string
		proposePrompt   string
		jsonOutput      bool
		otelEnabled     bool
		otelEndpoint    string
	)

	cmd.Uint64Var(&runID, "run-id", 1, "run identifier")
	cmd.StringVar(&agentKind, "agent", "echo", "agent implementation: echo|scripted")
	cmd.StringVar(&observations, "observations", "", "path to a JSON array of observations (REQUIRED)")
	cmd.StringVar(&capabilitiesCSV, "capabilities", "", "comma-separated capabilities granted to this run")
	cmd.IntVar(&maxConcurrent, "max-concurrent", 4, "bound on concurrent tool dispatch within one Decision.Multiple")
	cmd.StringVar(&outPath, "out", "", "path to write the resulting event log as JSON")
	cmd.StringVar(&proposePrompt, "propose-prompt", "", "with --agent scripted, propose a system-prompt patch with this text on the first step")
	cmd.BoolVar(&jsonOutput, "json", false, "output the run summary as JSON")
	cmd.BoolVar(&otelEnabled, "otel", false, "trace and record RED metrics for this run via OpenTelemetry")
	cmd.StringVar(&otelEndpoint, "otel-endpoint", "localhost:4317", "OTLP gRPC collector endpoint, used only with --otel")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	if observations == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --observations is required")
		return 2
	}

	data, err := os.ReadFile(observations)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: reading observations: %v\n", err)
		return 2
	}
	var records []observationRecord
	if err := json.Unmarshal(data, &records); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: parsing observations: %v\n", err)
		return 2
	}
	if len(records) == 0 {
		_, _ = fmt.Fprintln(stderr, "Error: observations file is empty")
		return 2
	}

	var caps []capability.Capability
	if capabilitiesCSV != "" {
		for _, c := range strings.Split(capabilitiesCSV, ",") {
			c = strings.TrimSpace(c)
			if c != "" {
				caps = append(caps, capability.Capability(c))
			}
		}
	}

	a, err := buildAgent(agentKind, runID, proposePrompt)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	ctx := context.Background()

	var obs *observability.Provider
	if otelEnabled {
		otelCfg := observability.DefaultConfig()
		otelCfg.OTLPEndpoint = otelEndpoint
		obs, err = observability.New(ctx, otelCfg)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: starting observability provider: %v\n", err)
			return 2
		}
		defer func() { _ = obs.Shutdown(ctx) }()
	}

	ctrl, err := controller.New(controller.Config{
		RunID:         runID,
		Agent:         a,
		Tools:         tool.NewRegistry(),
		Capabilities:  capability.NewChecker(capability.NewSet(caps...)),
		Patches:       patch.NewEngine(patch.NewStore(), runID),
		MaxConcurrent: maxConcurrent,
		Observability: obs,
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: starting controller: %v\n", err)
		return 2
	}

	var pending []agent.ToolResponse
	var stepErr error
	for i, rec := range records {
		result, err := ctrl.Step(ctx, agent.Observation{Type: rec.Type, Source: rec.Source, Data: rec.Data}, pending)
		if err != nil {
			stepErr = fmt.Errorf("step %d: %w", i, err)
			break
		}
		pending = result.ToolResponses
	}

	if outPath != "" {
		if err := saveEventLog(outPath, ctrl.Log()); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: writing event log: %v\n", err)
			return 2
		}
	}

	summary := map[string]interface{}{
		"run_id":     runID,
		"events":     ctrl.Log().Len(),
		"state_hash": ctrl.State().Hash().String(),
		"cancelled":  ctrl.Cancelled(),
	}
	if stepErr != nil {
		summary["error"] = stepErr.Error()
	}

	if jsonOutput {
		b, _ := json.MarshalIndent(summary, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(b))
	} else {
		_, _ = fmt.Fprintf(stdout, "run %d: %d events, state hash %s\n", runID, ctrl.Log().Len(), ctrl.State().Hash())
		if stepErr != nil {
			_, _ = fmt.Fprintf(stdout, "stopped early: %v\n", stepErr)
		}
	}

	if stepErr != nil {
		return 1
	}
	return 0
}

// buildAgent constructs the chosen reference Agent implementation. A real
// deployment plugs in its own Agent; these two exist so `omen run` has
// something to drive without an external model in the loop.
func buildAgent(kind string, runID uint64, proposePrompt string) (agent.Agent, error) {
	switch kind {
	case "echo":
		return agent.NewEchoAgent(), nil
	case "scripted":
		if proposePrompt != "" {
			step := agent.ProposeSystemPromptStep(patch.ID{RunID: runID, Sequence: 0}, proposePrompt, "proposed via omen run --propose-prompt")
			return agent.NewScriptedAgent(step), nil
		}
		return agent.NewScriptedAgent(agent.Step{Decision: agent.None()}), nil
	default:
		return nil, fmt.Errorf("unknown --agent %q", kind)
	}
}
