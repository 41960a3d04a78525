package eventstream_test

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/drift/pkg/conversation"
	"github.com/papercomputeco/drift/pkg/eventstream"
)

var _ = Describe("Event", func() {
	It("marshals TurnRecordedEvent with expected top-level keys", func() {
		now := time.Unix(1735689600, 0).UTC()
		event := eventstream.NewTurnRecordedEvent(
			eventstream.EventSource{Completer: "ollama", Model: "llama3.1:8b"},
			eventstream.TurnRequestMeta{
				StartedAt:   now.Add(-2 * time.Second),
				CompletedAt: now,
				DurationMs:  2000,
				Fragments:   12,
			},
			"book a flight to Paris",
			"stable",
			conversation.Turn{
				User:              "book a flight to Paris",
				AI:                "Sure, which dates?",
				StrictDrift:       12.5,
				ProgressiveDrift:  12.5,
				HybridDrift:       12.5,
				Iteration:         1,
				StrictWeight:      0.9,
				ProgressiveWeight: 0.1,
			},
		)

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var decoded map[string]any
		Expect(json.Unmarshal(payload, &decoded)).To(Succeed())
		Expect(decoded).To(HaveKey("schema_version"))
		Expect(decoded).To(HaveKey("event_id"))
		Expect(decoded).To(HaveKey("emitted_at"))
		Expect(decoded).To(HaveKey("source"))
		Expect(decoded).To(HaveKey("request_meta"))
		Expect(decoded).To(HaveKey("turn"))
		Expect(decoded["event_type"]).To(Equal(eventstream.EventTypeTurnRecorded))
		Expect(decoded["anchor"]).To(Equal("book a flight to Paris"))

		turn, ok := decoded["turn"].(map[string]any)
		Expect(ok).To(BeTrue())
		Expect(turn["hybrid_drift"]).To(BeNumerically("==", 12.5))
	})

	It("assigns unique event IDs", func() {
		a := eventstream.NewDecisionAppliedEvent("accept", "accepted", 2, nil)
		b := eventstream.NewDecisionAppliedEvent("accept", "accepted", 2, nil)

		Expect(uuid.Validate(a.EventID)).To(Succeed())
		Expect(a.EventID).NotTo(Equal(b.EventID))
		Expect(a.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
		Expect(a.EventType).To(Equal(eventstream.EventTypeDecisionApplied))
	})

	It("marshals a nil anchor as null after a reset", func() {
		event := eventstream.NewDecisionAppliedEvent("reject", "reset", 0, nil)

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(payload)).To(ContainSubstring(`"anchor":null`))
	})
})
