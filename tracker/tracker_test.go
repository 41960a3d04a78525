package tracker_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/drift/pkg/conversation"
	"github.com/papercomputeco/drift/pkg/drift"
	"github.com/papercomputeco/drift/pkg/embeddings"
	"github.com/papercomputeco/drift/pkg/llm"
	"github.com/papercomputeco/drift/pkg/metrics"
	testutils "github.com/papercomputeco/drift/pkg/utils/test"
	"github.com/papercomputeco/drift/tracker"
	"github.com/papercomputeco/drift/tracker/worker"
)

type recordingJournal struct {
	mu   sync.Mutex
	jobs []worker.Job
}

func (r *recordingJournal) Enqueue(job worker.Job) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	return true
}

func (r *recordingJournal) Jobs() []worker.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]worker.Job(nil), r.jobs...)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("client went away")
}

// fragmentRecorder keeps every Write as one fragment.
type fragmentRecorder struct {
	mu        sync.Mutex
	fragments []string
}

func (f *fragmentRecorder) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fragments = append(f.fragments, string(p))
	return len(p), nil
}

func (f *fragmentRecorder) Fragments() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fragments...)
}

var _ = Describe("Tracker", func() {
	var (
		completer *testutils.MockCompleter
		embedder  *testutils.MockEmbedder
		journal   *recordingJournal
		state     *conversation.State
		t         *tracker.Tracker
		ctx       context.Context
	)

	newTracker := func() *tracker.Tracker {
		tr, err := tracker.New(tracker.Config{
			Completer: completer,
			Embedder:  embedder,
			State:     state,
			Journal:   journal,
			Metrics:   metrics.New(),
			Logger:    zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())
		return tr
	}

	BeforeEach(func() {
		completer = testutils.NewMockCompleter()
		embedder = testutils.NewMockEmbedder()
		journal = &recordingJournal{}
		state = conversation.New()
		ctx = context.Background()
	})

	Describe("New", func() {
		It("requires a completer and an embedder", func() {
			_, err := tracker.New(tracker.Config{Embedder: embedder})
			Expect(err).To(HaveOccurred())

			_, err = tracker.New(tracker.Config{Completer: completer})
			Expect(err).To(HaveOccurred())
		})

		It("rejects invalid weights", func() {
			_, err := tracker.New(tracker.Config{
				Completer: completer,
				Embedder:  embedder,
				Weights:   drift.Weights{Floor: 1.5, DecayRate: 0.1},
			})
			Expect(err).To(MatchError(drift.ErrInvalidWeights))
		})
	})

	Describe("Generate", func() {
		It("rejects a blank intent without touching the completer", func() {
			t = newTracker()
			_, err := t.Generate(ctx, "   ", &strings.Builder{})
			Expect(err).To(MatchError(tracker.ErrEmptyIntent))
			Expect(completer.Prompts()).To(BeEmpty())
		})

		Context("book a flight to Paris", func() {
			BeforeEach(func() {
				completer.Responses = [][]string{{"Sure, ", "which ", "dates?"}}
				t = newTracker()
			})

			It("streams every fragment in order and scores an identical embedding as zero drift", func() {
				out := &fragmentRecorder{}
				record, err := t.Generate(ctx, "book a flight to Paris", out)
				Expect(err).NotTo(HaveOccurred())

				Expect(out.Fragments()).To(Equal([]string{"Sure, ", "which ", "dates?"}))
				Expect(completer.Prompts()).To(Equal([]string{"User: book a flight to Paris\nAssistant:"}))

				Expect(record.StrictDrift).To(Equal(0.0))
				Expect(record.ProgressiveDrift).To(Equal(0.0))
				Expect(record.HybridDrift).To(Equal(0.0))
				Expect(record.Iteration).To(Equal(1))
				Expect(record.StrictWeight).To(Equal(0.9))
				Expect(record.ProgressiveWeight).To(Equal(0.1))
				Expect(record.Level).To(Equal(drift.LevelStable))
			})

			It("installs the intent as the anchor and records the turn", func() {
				_, err := t.Generate(ctx, "book a flight to Paris", &strings.Builder{})
				Expect(err).NotTo(HaveOccurred())

				snap := t.History()
				Expect(snap.Anchor).NotTo(BeNil())
				Expect(*snap.Anchor).To(Equal("book a flight to Paris"))
				Expect(snap.Iteration).To(Equal(1))
				Expect(snap.History).To(HaveLen(1))
				Expect(snap.History[0].User).To(Equal("book a flight to Paris"))
				Expect(snap.History[0].AI).To(Equal("Sure, which dates?"))
			})

			It("journals the recorded turn", func() {
				_, err := t.Generate(ctx, "book a flight to Paris", &strings.Builder{})
				Expect(err).NotTo(HaveOccurred())

				jobs := journal.Jobs()
				Expect(jobs).To(HaveLen(1))
				Expect(jobs[0].Turn).NotTo(BeNil())
				Expect(jobs[0].Turn.Anchor).To(Equal("book a flight to Paris"))
				Expect(jobs[0].Turn.Source.Completer).To(Equal("mock"))
				Expect(jobs[0].Turn.RequestMeta.Fragments).To(Equal(3))
			})
		})

		Context("across several turns", func() {
			BeforeEach(func() {
				embedder.Embeddings["A"] = []float32{1, 0}
				embedder.Embeddings["a1"] = []float32{0, 1}
				embedder.Embeddings["a2"] = []float32{1, 0}
				completer.Responses = [][]string{{"a1"}, {"a2"}}
				t = newTracker()
			})

			It("uses strict drift as progressive drift on the first turn", func() {
				record, err := t.Generate(ctx, "A", &strings.Builder{})
				Expect(err).NotTo(HaveOccurred())
				Expect(record.StrictDrift).To(Equal(100.0))
				Expect(record.ProgressiveDrift).To(Equal(record.StrictDrift))
				Expect(record.Level).To(Equal(drift.LevelCritical))
			})

			It("scores later turns against both the anchor and the previous answer", func() {
				_, err := t.Generate(ctx, "A", &strings.Builder{})
				Expect(err).NotTo(HaveOccurred())

				record, err := t.Generate(ctx, "B", &strings.Builder{})
				Expect(err).NotTo(HaveOccurred())
				Expect(record.Iteration).To(Equal(2))
				Expect(record.StrictDrift).To(Equal(0.0))
				Expect(record.ProgressiveDrift).To(Equal(100.0))
				Expect(record.StrictWeight).To(Equal(0.8))
				Expect(record.ProgressiveWeight).To(Equal(0.2))
				Expect(record.HybridDrift).To(Equal(20.0))

				Expect(completer.Prompts()[1]).To(Equal("User: A\nAssistant: a1\nUser: B\nAssistant:"))
			})

			It("keeps the anchor captured at the start of an exchange", func() {
				_, err := t.Generate(ctx, "A", &strings.Builder{})
				Expect(err).NotTo(HaveOccurred())

				completer.Block = make(chan struct{})
				done := make(chan *drift.Record, 1)
				go func() {
					defer GinkgoRecover()
					record, err := t.Generate(ctx, "B", &strings.Builder{})
					Expect(err).NotTo(HaveOccurred())
					done <- record
				}()

				Eventually(completer.Prompts).Should(HaveLen(2))

				// accept moves the anchor to "a1" for the next exchange only
				Expect(t.Decide(conversation.ActionAccept).Status).To(Equal(conversation.StatusAccepted))
				close(completer.Block)

				var record *drift.Record
				Eventually(done).Should(Receive(&record))
				Expect(record.StrictDrift).To(Equal(0.0))

				anchor, ok := state.Anchor()
				Expect(ok).To(BeTrue())
				Expect(anchor).To(Equal("a1"))
			})
		})

		It("clamps the strict weight at the floor from the sixth turn on", func() {
			completer.Responses = [][]string{{"same"}}
			t = newTracker()

			var records []*drift.Record
			for range 8 {
				record, err := t.Generate(ctx, "same", &strings.Builder{})
				Expect(err).NotTo(HaveOccurred())
				records = append(records, record)
			}

			Expect(records[4].StrictWeight).To(Equal(0.5))
			Expect(records[5].StrictWeight).To(Equal(0.4))
			Expect(records[6].StrictWeight).To(Equal(0.4))
			Expect(records[6].ProgressiveWeight).To(Equal(0.6))
			Expect(records[7].Iteration).To(Equal(8))
			Expect(t.History().History).To(HaveLen(8))
		})

		It("behaves like a fresh conversation after a reset", func() {
			completer.Responses = [][]string{{"first"}, {"second"}, {"third"}}
			t = newTracker()

			_, err := t.Generate(ctx, "one", &strings.Builder{})
			Expect(err).NotTo(HaveOccurred())
			_, err = t.Generate(ctx, "two", &strings.Builder{})
			Expect(err).NotTo(HaveOccurred())

			d := t.Reset()
			Expect(d.Status).To(Equal(conversation.StatusReset))
			Expect(d.Iteration).To(Equal(0))

			record, err := t.Generate(ctx, "three", &strings.Builder{})
			Expect(err).NotTo(HaveOccurred())
			Expect(record.Iteration).To(Equal(1))
			Expect(record.StrictWeight).To(Equal(0.9))
			Expect(record.ProgressiveDrift).To(Equal(record.StrictDrift))
			Expect(completer.Prompts()[2]).To(Equal("User: three\nAssistant:"))

			anchor, ok := state.Anchor()
			Expect(ok).To(BeTrue())
			Expect(anchor).To(Equal("three"))
		})

		Context("when the exchange fails", func() {
			expectUntouched := func() {
				snap := t.History()
				Expect(snap.Anchor).To(BeNil())
				Expect(snap.Iteration).To(Equal(0))
				Expect(snap.History).To(BeEmpty())
				Expect(journal.Jobs()).To(BeEmpty())
			}

			It("commits nothing when the upstream is unreachable", func() {
				completer.FailOpen = true
				t = newTracker()

				_, err := t.Generate(ctx, "book a flight", &strings.Builder{})
				Expect(err).To(MatchError(llm.ErrCompletion))
				expectUntouched()
			})

			It("commits nothing when the stream breaks midway", func() {
				completer.Responses = [][]string{{"Sure", ", ", "when?"}}
				completer.FailAfter = 1
				t = newTracker()

				out := &fragmentRecorder{}
				_, err := t.Generate(ctx, "book a flight", out)
				Expect(err).To(MatchError(llm.ErrCompletion))
				Expect(out.Fragments()).To(Equal([]string{"Sure"}))
				expectUntouched()
			})

			It("commits nothing when embedding fails", func() {
				completer.Responses = [][]string{{"bad answer"}}
				embedder.FailOn = "bad answer"
				t = newTracker()

				_, err := t.Generate(ctx, "book a flight", &strings.Builder{})
				Expect(err).To(MatchError(embeddings.ErrEmbedding))
				expectUntouched()
			})

			It("commits nothing when the answer is empty", func() {
				completer.Responses = [][]string{{}}
				t = newTracker()

				_, err := t.Generate(ctx, "book a flight", &strings.Builder{})
				Expect(err).To(MatchError(embeddings.ErrEmptyText))
				expectUntouched()
			})

			It("commits nothing when the client stops reading", func() {
				completer.Responses = [][]string{{"Sure"}}
				t = newTracker()

				_, err := t.Generate(ctx, "book a flight", failingWriter{})
				Expect(err).To(HaveOccurred())
				expectUntouched()
			})

			It("discards the turn when the conversation is reset mid-exchange", func() {
				completer.Responses = [][]string{{"Sure"}}
				completer.Block = make(chan struct{})
				t = newTracker()

				errs := make(chan error, 1)
				go func() {
					_, err := t.Generate(ctx, "book a flight", &strings.Builder{})
					errs <- err
				}()

				Eventually(completer.Prompts).Should(HaveLen(1))
				t.Reset()
				close(completer.Block)

				var err error
				Eventually(errs).Should(Receive(&err))
				Expect(err).To(MatchError(conversation.ErrConversationReset))

				snap := t.History()
				Expect(snap.Anchor).To(BeNil())
				Expect(snap.History).To(BeEmpty())
			})
		})

		It("admits one exchange at a time without blocking decisions", func() {
			completer.Responses = [][]string{{"Sure"}}
			completer.Block = make(chan struct{})
			t = newTracker()

			first := make(chan error, 1)
			go func() {
				_, err := t.Generate(ctx, "first", &strings.Builder{})
				first <- err
			}()
			Eventually(completer.Prompts).Should(HaveLen(1))

			waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancel()
			_, err := t.Generate(waitCtx, "second", &strings.Builder{})
			Expect(err).To(MatchError(context.DeadlineExceeded))

			Expect(t.Decide("bogus").Status).To(Equal(conversation.StatusUnknown))
			Expect(t.History().Iteration).To(Equal(0))

			close(completer.Block)
			Eventually(first).Should(Receive(BeNil()))
			Expect(completer.Prompts()).To(HaveLen(1))
		})
	})

	Describe("Decide", func() {
		BeforeEach(func() {
			completer.Responses = [][]string{{"first answer"}, {"second answer"}}
			t = newTracker()

			_, err := t.Generate(ctx, "intent", &strings.Builder{})
			Expect(err).NotTo(HaveOccurred())
			_, err = t.Generate(ctx, "refined intent", &strings.Builder{})
			Expect(err).NotTo(HaveOccurred())
		})

		It("resets on reject and reports iteration 0", func() {
			d := t.Decide(conversation.ActionReject)
			Expect(d.Status).To(Equal(conversation.StatusReset))
			Expect(d.Iteration).To(Equal(0))
			Expect(t.History().History).To(BeEmpty())
		})

		It("moves the anchor to the latest answer on accept", func() {
			Expect(t.Decide(conversation.ActionAccept).Status).To(Equal(conversation.StatusAccepted))

			anchor, _ := state.Anchor()
			Expect(anchor).To(Equal("second answer"))
		})

		It("restores the first intent on realign", func() {
			t.Decide(conversation.ActionAccept)
			Expect(t.Decide(conversation.ActionRealign).Status).To(Equal(conversation.StatusRealigned))

			anchor, _ := state.Anchor()
			Expect(anchor).To(Equal("intent"))
		})

		It("leaves the state untouched for unknown actions and does not journal them", func() {
			before := t.History()
			jobs := len(journal.Jobs())

			d := t.Decide("bogus")
			Expect(d.Status).To(Equal(conversation.StatusUnknown))
			Expect(t.History()).To(Equal(before))
			Expect(journal.Jobs()).To(HaveLen(jobs))
		})

		It("journals applied decisions with the resulting anchor", func() {
			t.Decide(conversation.ActionAccept)

			jobs := journal.Jobs()
			last := jobs[len(jobs)-1]
			Expect(last.Decision).NotTo(BeNil())
			Expect(last.Decision.Status).To(Equal("accepted"))
			Expect(*last.Decision.Anchor).To(Equal("second answer"))
		})
	})
})
