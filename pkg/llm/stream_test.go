package llm_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/drift/pkg/llm"
)

// sliceStream replays chunks, then returns err (or a clean end).
type sliceStream struct {
	chunks []*llm.StreamChunk
	err    error
	reads  int
}

func (s *sliceStream) Next() (*llm.StreamChunk, error) {
	if s.reads < len(s.chunks) {
		c := s.chunks[s.reads]
		s.reads++
		return c, nil
	}
	s.reads++
	return nil, s.err
}

func (s *sliceStream) Close() error { return nil }

var _ = Describe("Collect", func() {
	It("concatenates fragments and reports each non-empty one", func() {
		s := &sliceStream{chunks: []*llm.StreamChunk{
			{Text: "Paris "},
			{Text: ""},
			{Text: "is the capital."},
			{Done: true, StopReason: "stop"},
		}}

		var seen []string
		full, err := llm.Collect(s, func(text string) error {
			seen = append(seen, text)
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(full).To(Equal("Paris is the capital."))
		Expect(seen).To(Equal([]string{"Paris ", "is the capital."}))
	})

	It("stops at the done chunk", func() {
		s := &sliceStream{chunks: []*llm.StreamChunk{
			{Text: "a", Done: true},
			{Text: "never read"},
		}}

		full, err := llm.Collect(s, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(full).To(Equal("a"))
		Expect(s.reads).To(Equal(1))
	})

	It("treats a nil chunk as a clean end", func() {
		full, err := llm.Collect(&sliceStream{chunks: []*llm.StreamChunk{{Text: "x"}}}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(full).To(Equal("x"))
	})

	It("returns the partial text with a stream error", func() {
		boom := errors.New("connection reset")
		s := &sliceStream{chunks: []*llm.StreamChunk{{Text: "half"}}, err: boom}

		full, err := llm.Collect(s, nil)
		Expect(err).To(MatchError(boom))
		Expect(full).To(Equal("half"))
	})

	It("stops when the callback fails", func() {
		stop := errors.New("client gone")
		s := &sliceStream{chunks: []*llm.StreamChunk{{Text: "one"}, {Text: "two"}}}

		full, err := llm.Collect(s, func(string) error { return stop })
		Expect(err).To(MatchError(stop))
		Expect(full).To(Equal("one"))
		Expect(s.reads).To(Equal(1))
	})
})
