package mcp

import (
	"context"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/drift/pkg/conversation"
	"github.com/papercomputeco/drift/pkg/drift"
)

var (
	submitIntentToolName    = "submit_intent"
	submitIntentDescription = "Submit a user intent to the tracked conversation. Returns the model's full answer and its drift scores against the anchor intent and the previous answer."

	decideToolName    = "decide"
	decideDescription = "Steer the conversation anchor: 'reject' resets the conversation, 'realign' restores the first intent as the anchor, 'accept' makes the latest answer the anchor."

	resetToolName    = "reset_conversation"
	resetDescription = "Clear the conversation history, anchor and iteration counter."

	historyToolName    = "conversation_history"
	historyDescription = "Return the current anchor, iteration count and every recorded turn with its drift scores."
)

// SubmitIntentInput represents the input arguments for the submit_intent tool.
type SubmitIntentInput struct {
	Intent string `json:"intent" jsonschema:"the user intent to send to the model"`
}

// SubmitIntentOutput is the answer and its drift record.
type SubmitIntentOutput struct {
	Response string       `json:"response"`
	Drift    drift.Record `json:"drift"`
}

// DecideInput represents the input arguments for the decide tool.
type DecideInput struct {
	Action string `json:"action" jsonschema:"one of reject, realign or accept"`
}

// DecisionOutput is the outcome of a decide or reset call.
type DecisionOutput struct {
	Status    string `json:"status"`
	Iteration int    `json:"iteration"`
}

// HistoryOutput is the conversation snapshot.
type HistoryOutput struct {
	Anchor    *string       `json:"anchor"`
	Iteration int           `json:"iteration"`
	Turns     []HistoryTurn `json:"turns"`
}

// HistoryTurn is a single recorded turn.
type HistoryTurn struct {
	User              string  `json:"user"`
	AI                string  `json:"ai"`
	StrictDrift       float64 `json:"strict_drift"`
	ProgressiveDrift  float64 `json:"progressive_drift"`
	HybridDrift       float64 `json:"hybrid_drift"`
	Iteration         int     `json:"iteration"`
	StrictWeight      float64 `json:"strict_weight"`
	ProgressiveWeight float64 `json:"progressive_weight"`
	CreatedAt         string  `json:"created_at"`
}

func (s *Server) handleSubmitIntent(ctx context.Context, _ *mcp.CallToolRequest, input SubmitIntentInput) (*mcp.CallToolResult, SubmitIntentOutput, error) {
	logger := s.config.Logger
	logger.Debug("MCP submit_intent request", zap.Int("intent_len", len(input.Intent)))

	var answer strings.Builder
	record, err := s.config.Tracker.Generate(ctx, input.Intent, &answer)
	if err != nil {
		logger.Error("submit_intent failed", zap.Error(err))
		return toolError("Failed to run exchange: %v", err), SubmitIntentOutput{}, nil
	}

	output := SubmitIntentOutput{
		Response: answer.String(),
		Drift:    *record,
	}

	result, err := jsonResult(output)
	if err != nil {
		return toolError("Failed to serialize result: %v", err), SubmitIntentOutput{}, nil
	}
	return result, output, nil
}

func (s *Server) handleDecide(_ context.Context, _ *mcp.CallToolRequest, input DecideInput) (*mcp.CallToolResult, DecisionOutput, error) {
	d := s.config.Tracker.Decide(input.Action)
	output := DecisionOutput{Status: string(d.Status), Iteration: d.Iteration}

	result, err := jsonResult(output)
	if err != nil {
		return toolError("Failed to serialize result: %v", err), DecisionOutput{}, nil
	}
	return result, output, nil
}

func (s *Server) handleReset(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, DecisionOutput, error) {
	d := s.config.Tracker.Reset()
	output := DecisionOutput{Status: string(d.Status), Iteration: d.Iteration}

	result, err := jsonResult(output)
	if err != nil {
		return toolError("Failed to serialize result: %v", err), DecisionOutput{}, nil
	}
	return result, output, nil
}

func (s *Server) handleHistory(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, HistoryOutput, error) {
	output := historyOutput(s.config.Tracker.History())

	result, err := jsonResult(output)
	if err != nil {
		return toolError("Failed to serialize result: %v", err), HistoryOutput{}, nil
	}
	return result, output, nil
}

func historyOutput(snap conversation.Snapshot) HistoryOutput {
	turns := make([]HistoryTurn, len(snap.History))
	for i, t := range snap.History {
		turns[i] = HistoryTurn{
			User:              t.User,
			AI:                t.AI,
			StrictDrift:       t.StrictDrift,
			ProgressiveDrift:  t.ProgressiveDrift,
			HybridDrift:       t.HybridDrift,
			Iteration:         t.Iteration,
			StrictWeight:      t.StrictWeight,
			ProgressiveWeight: t.ProgressiveWeight,
			CreatedAt:         t.CreatedAt.UTC().Format(time.RFC3339),
		}
	}

	return HistoryOutput{
		Anchor:    snap.Anchor,
		Iteration: snap.Iteration,
		Turns:     turns,
	}
}
