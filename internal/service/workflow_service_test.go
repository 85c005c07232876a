package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumgit/sumgit/internal/analysis"
	"github.com/sumgit/sumgit/internal/domain"
	"github.com/sumgit/sumgit/internal/port"
)

func newTestWorkflowService(host port.CommitHost, llm port.LLMClient, store AnalysisStore, credits *CreditService) *WorkflowService {
	newFetcher := func(string) *analysis.Fetcher {
		return analysis.NewFetcher(host, analysis.FetcherConfig{MaxPages: 1, DiffBudgetBytes: 2000})
	}
	workflow := analysis.NewWorkflow(llm, nil, analysis.DefaultPayloadConfig(), time.Minute)
	return NewWorkflowService(store, newFetcher, &staticTokens{token: "gho_test"}, workflow, credits)
}

func TestWorkflowService_ForeignRepoReadsAsMissing(t *testing.T) {
	creditStore := newFakeCreditStore()
	creditStore.balances["u1"] = 5
	repo := testRepo()
	repo.UserID = "u2"
	store := newFakeAnalysisStore(repo)
	svc := newTestWorkflowService(&scriptedHost{}, &scriptedLLM{}, store, NewCreditService(creditStore))

	_, _, err := svc.Run(context.Background(), "u1", "r1", nil)
	require.ErrorIs(t, err, port.ErrRepoNotFound)
	assert.Equal(t, 5, creditStore.balances["u1"], "no credit spent on a rejected run")
}

func TestWorkflowService_PersistsUnderWorkflowSource(t *testing.T) {
	host := &scriptedHost{commits: []port.HostCommit{
		{SHA: "sha0000001", Message: "Add dashboard", Author: "dev", Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
	}}
	llm := &scriptedLLM{responses: []string{
		`{"commits":[{"sha":"sha0000001","change_type":"feature","significance":8}]}`,
		`{"milestones":[{"title":"Dashboard launch","commit_sha":"sha0000001","change_type":"feature"}]}`,
	}}
	creditStore := newFakeCreditStore()
	creditStore.balances["u1"] = 5
	store := newFakeAnalysisStore(testRepo())
	svc := newTestWorkflowService(host, llm, store, NewCreditService(creditStore))

	result, balance, err := svc.Run(context.Background(), "u1", "r1", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.WorkflowDone, result.State)
	assert.Equal(t, 2, balance, "story analysis costs three credits")

	persisted := store.persisted[domain.MilestoneSourceWorkflow]
	require.Len(t, persisted, 1)
	assert.Equal(t, "Dashboard launch", persisted[0].Title)
	assert.Equal(t, domain.MilestoneSourceWorkflow, persisted[0].Source)
}
