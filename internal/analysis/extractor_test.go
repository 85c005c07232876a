package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumgit/sumgit/internal/port"
)

// fakeLLM replays scripted responses, one per Complete call.
type fakeLLM struct {
	responses []string
	errs      []error
	calls     int
	requests  []port.CompletionRequest
}

func (f *fakeLLM) ModelName() string { return "fake-model" }

func (f *fakeLLM) Complete(_ context.Context, req port.CompletionRequest) (string, error) {
	i := f.calls
	f.calls++
	f.requests = append(f.requests, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", nil
}

func TestExtract_ParsesMilestones(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		`{"milestones":[{"title":"Launched billing","description":"Stripe checkout went live","commit_sha":"abc1234","milestone_date":"2024-03-15","x_post_suggestion":"We just shipped billing!"}]}`,
	}}
	e := NewExtractor(llm, time.Minute)

	milestones, err := e.Extract(context.Background(), "acme/app", "payload text")
	require.NoError(t, err)
	require.Len(t, milestones, 1)
	assert.Equal(t, "Launched billing", milestones[0].Title)
	assert.Equal(t, "abc1234", milestones[0].CommitSHA)
	assert.Equal(t, 1, llm.calls, "exactly one completion call per extraction")
	assert.True(t, llm.requests[0].JSONResponse)
}

func TestExtract_EmptyResponseMeansNoMilestones(t *testing.T) {
	e := NewExtractor(&fakeLLM{responses: []string{"  "}}, time.Minute)

	milestones, err := e.Extract(context.Background(), "acme/app", "payload")
	require.NoError(t, err)
	assert.Empty(t, milestones)
}

func TestExtract_MissingKeyMeansNoMilestones(t *testing.T) {
	e := NewExtractor(&fakeLLM{responses: []string{`{"something_else": []}`}}, time.Minute)

	milestones, err := e.Extract(context.Background(), "acme/app", "payload")
	require.NoError(t, err)
	assert.Empty(t, milestones)
}

func TestExtract_MalformedJSONIsClientError(t *testing.T) {
	e := NewExtractor(&fakeLLM{responses: []string{`not json at all`}}, time.Minute)

	_, err := e.Extract(context.Background(), "acme/app", "payload")
	require.Error(t, err)
	assert.Equal(t, port.KindClientError, port.KindOf(err))
	assert.False(t, port.IsRetryable(err))
}

func TestExtract_ClassifiesUpstreamFailure(t *testing.T) {
	e := NewExtractor(&fakeLLM{errs: []error{&port.StatusError{StatusCode: 503, Body: "overloaded"}}}, time.Minute)

	_, err := e.Extract(context.Background(), "acme/app", "payload")
	require.Error(t, err)
	assert.Equal(t, port.KindServerError, port.KindOf(err))
}

func TestMilestoneDate_FallsBackOnBadInput(t *testing.T) {
	fallback := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	m := ExtractedMilestone{MilestoneDate: "2024-03-15"}
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), m.Date(fallback))

	m = ExtractedMilestone{MilestoneDate: "March 15"}
	assert.Equal(t, fallback, m.Date(fallback))

	m = ExtractedMilestone{}
	assert.Equal(t, fallback, m.Date(fallback))
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want port.ErrorKind
	}{
		{"deadline exceeded", context.DeadlineExceeded, port.KindTimeout},
		{"wrapped deadline", errors.New("context deadline exceeded (client.timeout exceeded)"), port.KindTimeout},
		{"connection refused", errors.New("dial tcp 127.0.0.1:443: connect: connection refused"), port.KindRetryable},
		{"connection reset", errors.New("read tcp: connection reset by peer"), port.KindRetryable},
		{"status 413", &port.StatusError{StatusCode: 413, Body: "payload too big"}, port.KindPayloadTooLarge},
		{"context length in body", &port.StatusError{StatusCode: 400, Body: "this model's maximum context length is 128000 tokens"}, port.KindPayloadTooLarge},
		{"status 401", &port.StatusError{StatusCode: 401, Body: "bad key"}, port.KindClientError},
		{"status 429", &port.StatusError{StatusCode: 429, Body: "rate limited"}, port.KindClientError},
		{"status 500", &port.StatusError{StatusCode: 500, Body: "internal"}, port.KindServerError},
		{"size mention without status", errors.New("request entity too large"), port.KindPayloadTooLarge},
		{"anything else", errors.New("mystery failure"), port.KindUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err)
			assert.Equal(t, tc.want, got.Kind)
		})
	}
}

func TestClassify_PreservesExistingClassification(t *testing.T) {
	orig := port.NewPipelineError(port.KindPayloadTooLarge, "already classified", nil)
	got := Classify(orig)
	assert.Same(t, orig, got)
}
