package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/pinokio-social/pinokio/credibility/countstore"
	"github.com/pinokio-social/pinokio/credibility/evaluation"
	"github.com/pinokio-social/pinokio/credibility/monitor"
	"github.com/pinokio-social/pinokio/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func goodInput(ext string) CreatePostInput {
	return CreatePostInput{
		Name:        "Trusted Reporter",
		Username:    "trusted",
		PostContent: "Council approves the new budget, minutes attached.",
		ExternalID:  ext,
		Likes:       10,
	}
}

func TestCreatePostValidation(t *testing.T) {
	assert := assert.New(t)
	eng, _ := EngineTestFixture()

	_, err := eng.CreatePost(context.Background(), CreatePostInput{Views: -1})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	for _, f := range []string{"name", "username", "postContent", "external_id", "views"} {
		assert.Contains(verr.Fields, f)
	}
	assert.Contains(err.Error(), "external_id")

	in := goodInput(string(make([]byte, 300)))
	_, err = eng.CreatePost(context.Background(), in)
	require.True(t, errors.As(err, &verr))
	assert.Contains(verr.Fields, "external_id")
}

func TestCreatePostScored(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := EngineTestFixture()

	res, err := eng.CreatePost(ctx, goodInput("ext-good"))
	require.NoError(t, err)
	assert.Equal(OutcomeScored, res.Outcome)
	assert.Equal(models.VerdictValid, res.Post.Status)
	assert.False(res.Post.NeedsManualReview)

	bad := CreatePostInput{Name: "X", Username: "nobody", PostContent: "fake news!!", ExternalID: "ext-bad"}
	res, err = eng.CreatePost(ctx, bad)
	require.NoError(t, err)
	assert.Equal(models.VerdictUnknown, res.Post.Status)
	assert.False(res.Post.NeedsManualReview)

	c, err := eng.Counters.GetCount(ctx, countstore.NameIngest, "Valid", countstore.PeriodTotal)
	assert.NoError(err)
	assert.Equal(1, c)
}

func TestCreatePostIdempotent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, ms := EngineTestFixture()

	first, err := eng.CreatePost(ctx, goodInput("ext-1"))
	require.NoError(t, err)
	assert.False(first.Existing())

	in := goodInput("ext-1")
	in.PostContent = "something else entirely"
	second, err := eng.CreatePost(ctx, in)
	require.NoError(t, err)
	assert.True(second.Existing())
	assert.Equal(first.Post.ID, second.Post.ID)
	assert.Equal(first.Post.Content, second.Post.Content)

	counts, err := ms.CountPosts(ctx)
	assert.NoError(err)
	assert.Equal(int64(1), counts.Total)
}

func TestCreatePostConcurrentDuplicates(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, ms := EngineTestFixture()

	var wg sync.WaitGroup
	ids := make([]uint, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := eng.CreatePost(ctx, goodInput("ext-race"))
			assert.NoError(err)
			if res != nil {
				ids[i] = res.Post.ID
			}
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(ids[0], id)
	}
	counts, _ := ms.CountPosts(ctx)
	assert.Equal(int64(1), counts.Total)
}

func TestElevatedBypass(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := EngineTestFixture()

	_, err := eng.ActivateModerationMode(ctx, "test")
	require.NoError(t, err)

	res, err := eng.CreatePost(ctx, goodInput("ext-elevated"))
	require.NoError(t, err)
	assert.Equal(OutcomeElevated, res.Outcome)
	assert.Equal(models.VerdictUnknown, res.Post.Status)
	assert.True(res.Post.NeedsManualReview)
}

func TestCreatePostTriggersElevation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, ms := EngineTestFixture()
	notifier := &MemNotifier{}
	eng.Notifier = notifier

	bad, err := SeedWindow(ctx, ms, "seed", 6, 4)
	require.NoError(t, err)

	res, err := eng.CreatePost(ctx, goodInput("ext-new"))
	require.NoError(t, err)
	assert.Equal(OutcomeNewlyElevated, res.Outcome)
	assert.Equal(models.VerdictUnknown, res.Post.Status)
	assert.True(res.Post.NeedsManualReview)

	for _, id := range bad {
		p, err := ms.FindPost(ctx, id)
		require.NoError(t, err)
		assert.True(p.NeedsManualReview)
	}
	mode, err := eng.ModerationMode(ctx)
	assert.NoError(err)
	assert.True(mode.Active)
	require.Len(t, notifier.Activations, 1)
	assert.Equal(4, notifier.Activations[0].Suspect)
}

func TestBelowMinSampleStaysNormal(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, ms := EngineTestFixture()

	// the check runs before the new post is stored, so the window holds 9
	_, err := SeedWindow(ctx, ms, "seed", 5, 4)
	require.NoError(t, err)

	res, err := eng.CreatePost(ctx, goodInput("ext-new"))
	require.NoError(t, err)
	assert.Equal(OutcomeScored, res.Outcome)
	assert.Equal(models.VerdictValid, res.Post.Status)
	mode, _ := eng.ModerationMode(ctx)
	assert.False(mode.Active)
}

func TestBackgroundMonitorSkipsInlineCheck(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, ms := EngineTestFixture()
	eng.BackgroundMonitor = true

	_, err := SeedWindow(ctx, ms, "seed", 6, 4)
	require.NoError(t, err)
	res, err := eng.CreatePost(ctx, goodInput("ext-new"))
	require.NoError(t, err)
	assert.Equal(OutcomeScored, res.Outcome)

	rep, err := eng.Monitor.CheckAndMaybeActivate(ctx, eng.Now())
	require.NoError(t, err)
	assert.True(rep.Activated)
}

func TestThrottledCheckIsLogged(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, ms := EngineTestFixture()
	var buf bytes.Buffer
	eng.Logger = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cfg := monitor.DefaultConfig()
	cfg.ScanLimit = 0.001
	eng.Monitor = monitor.NewMonitor(cfg, eng.Scorer, eng.Monitor.Sampler, ms, eng.Modes, nil)

	res, err := eng.CreatePost(ctx, goodInput("ext-1"))
	require.NoError(t, err)
	assert.Equal(OutcomeScored, res.Outcome)
	assert.NotContains(buf.String(), "throttled")

	res, err = eng.CreatePost(ctx, goodInput("ext-2"))
	require.NoError(t, err)
	assert.Equal(OutcomeScored, res.Outcome)
	assert.Contains(buf.String(), `"msg":"review-bombing check throttled, scoring without it","external_id":"ext-2"`)
}

func TestReevaluateIgnoresMode(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, ms := EngineTestFixture()

	_, err := eng.ActivateModerationMode(ctx, "test")
	require.NoError(t, err)
	res, err := eng.CreatePost(ctx, goodInput("ext-1"))
	require.NoError(t, err)
	assert.Equal(models.VerdictUnknown, res.Post.Status)

	ms.AddComment(models.Comment{PostID: res.Post.ID, LinguisticScore: 0.9, LikesCount: 40})
	post, err := eng.ReevaluatePost(ctx, res.Post.ID)
	require.NoError(t, err)
	assert.Equal(models.VerdictValid, post.Status)

	stored, err := ms.FindPost(ctx, res.Post.ID)
	require.NoError(t, err)
	assert.Equal(models.VerdictValid, stored.Status)
	// re-scoring does not clear the review flag
	assert.True(stored.NeedsManualReview)

	_, err = eng.ReevaluatePost(ctx, 9999)
	assert.ErrorIs(err, ErrNotFound)
}

func TestStatusPolicy(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	for _, tc := range []struct {
		policy evaluation.Policy
		want   models.Verdict
	}{
		{evaluation.PolicyLastWriteWins, models.VerdictValid},
		{evaluation.PolicyCounterWinsOnceEvaluated, models.VerdictWarning},
	} {
		eng, _ := EngineTestFixture()
		eng.Policy = tc.policy

		res, err := eng.CreatePost(ctx, goodInput("ext-1"))
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			_, err := eng.SubmitEvaluation(ctx, SubmitEvaluationInput{PostID: res.Post.ID, Evaluation: "Warning"})
			require.NoError(t, err)
		}
		post, err := eng.ReevaluatePost(ctx, res.Post.ID)
		require.NoError(t, err)
		assert.Equal(tc.want, post.Status, tc.policy)
	}
}

func TestSubmitEvaluation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, ms := EngineTestFixture()

	res, err := eng.CreatePost(ctx, goodInput("ext-1"))
	require.NoError(t, err)
	id := res.Post.ID

	var verr *ValidationError
	_, err = eng.SubmitEvaluation(ctx, SubmitEvaluationInput{PostID: id, Evaluation: "valid"})
	require.True(t, errors.As(err, &verr))
	assert.Contains(verr.Fields, "evaluation")
	_, err = eng.SubmitEvaluation(ctx, SubmitEvaluationInput{PostID: 9999, Evaluation: "Valid"})
	require.True(t, errors.As(err, &verr))
	assert.Contains(verr.Fields, "post_id")
	_, err = eng.SubmitEvaluation(ctx, SubmitEvaluationInput{})
	require.True(t, errors.As(err, &verr))
	assert.Len(verr.Fields, 2)

	var out *SubmitEvaluationResult
	for _, v := range []string{"Warning", "Unknown", "Warning"} {
		out, err = eng.SubmitEvaluation(ctx, SubmitEvaluationInput{PostID: id, Evaluation: v})
		require.NoError(t, err)
	}
	assert.Equal(models.VerdictWarning, out.PostStatus)
	for i := 0; i < 5; i++ {
		uid := uint(i + 1)
		out, err = eng.SubmitEvaluation(ctx, SubmitEvaluationInput{PostID: id, UserID: &uid, Evaluation: "Valid"})
		require.NoError(t, err)
	}
	assert.Equal(models.VerdictWarning, out.PostStatus)
	assert.Equal(int64(5), out.Post.PositiveEvaluationsCount)
	assert.Equal(int64(3), out.Post.NegativeEvaluationsCount)
	assert.Len(ms.Evaluations(), 8)

	c, err := eng.Counters.GetCountDistinct(ctx, countstore.NameEvaluators, fmt.Sprint(id), countstore.PeriodTotal)
	assert.NoError(err)
	assert.Equal(5, c)
}

func TestDistinctEvaluators(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := EngineTestFixture()

	a, err := eng.CreatePost(ctx, goodInput("ext-a"))
	require.NoError(t, err)
	b, err := eng.CreatePost(ctx, goodInput("ext-b"))
	require.NoError(t, err)

	evaluate := func(post, user uint) {
		_, err := eng.SubmitEvaluation(ctx, SubmitEvaluationInput{PostID: post, UserID: &user, Evaluation: "Valid"})
		require.NoError(t, err)
	}
	evaluate(a.Post.ID, 1)
	evaluate(a.Post.ID, 1)
	evaluate(a.Post.ID, 2)
	evaluate(b.Post.ID, 2)
	evaluate(b.Post.ID, 3)
	// anonymous evaluations count towards totals only
	_, err = eng.SubmitEvaluation(ctx, SubmitEvaluationInput{PostID: b.Post.ID, Evaluation: "Valid"})
	require.NoError(t, err)

	view, err := eng.GetPost(ctx, a.Post.ID)
	require.NoError(t, err)
	assert.Equal(2, view.Evaluators)
	view, err = eng.GetPost(ctx, b.Post.ID)
	require.NoError(t, err)
	assert.Equal(2, view.Evaluators)

	stats, err := eng.Stats(ctx)
	require.NoError(t, err)
	for _, period := range countstore.AllPeriods {
		assert.Equal(3, stats.Evaluators[period], period)
	}
	assert.Equal(6, stats.Evaluations[countstore.PeriodTotal]["Valid"])
}

func TestSubmitEvaluationPositiveOnly(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := EngineTestFixture()

	res, err := eng.CreatePost(ctx, CreatePostInput{Name: "X", Username: "nobody", PostContent: "hoax", ExternalID: "ext-1"})
	require.NoError(t, err)
	assert.Equal(models.VerdictUnknown, res.Post.Status)

	var out *SubmitEvaluationResult
	for i := 0; i < 4; i++ {
		out, err = eng.SubmitEvaluation(ctx, SubmitEvaluationInput{PostID: res.Post.ID, Evaluation: "Valid"})
		require.NoError(t, err)
	}
	assert.Equal(models.VerdictUnknown, out.PostStatus)
	out, err = eng.SubmitEvaluation(ctx, SubmitEvaluationInput{PostID: res.Post.ID, Evaluation: "Valid"})
	require.NoError(t, err)
	assert.Equal(models.VerdictValid, out.PostStatus)
}

func TestSubmitReport(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, ms := EngineTestFixture()

	res, err := eng.CreatePost(ctx, goodInput("ext-1"))
	require.NoError(t, err)

	var verr *ValidationError
	_, err = eng.SubmitReport(ctx, SubmitReportInput{PostID: 9999})
	require.True(t, errors.As(err, &verr))

	rep, err := eng.SubmitReport(ctx, SubmitReportInput{PostID: res.Post.ID, Reason: "spam"})
	require.NoError(t, err)
	assert.NotZero(rep.ID)
	assert.Len(ms.Reports(), 1)

	// reports never change status
	p, _ := ms.FindPost(ctx, res.Post.ID)
	assert.Equal(res.Post.Status, p.Status)
}

func TestPostStatus(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := EngineTestFixture()

	_, err := eng.PostStatus(ctx, "missing")
	assert.ErrorIs(err, ErrNotFound)

	_, err = eng.CreatePost(ctx, goodInput("1001"))
	require.NoError(t, err)
	sv, err := eng.PostStatus(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(models.VerdictValid, sv.Status)
	assert.Empty(sv.Warnings)

	res, err := eng.CreatePost(ctx, CreatePostInput{Name: "X", Username: "nobody", PostContent: "a hoax", ExternalID: "1002"})
	require.NoError(t, err)
	sv, err = eng.PostStatus(ctx, "1002")
	require.NoError(t, err)
	assert.Equal(models.VerdictUnknown, sv.Status)
	assert.NotEmpty(sv.Warnings)

	view, err := eng.GetPost(ctx, res.Post.ID)
	require.NoError(t, err)
	assert.Equal(sv.Warnings, view.Warnings)
	require.Len(t, view.Reservations, 1)
	assert.Equal("credibility", view.Reservations[0].Type)

	_, err = eng.GetPost(ctx, 9999)
	assert.ErrorIs(err, ErrNotFound)
}

func TestBatchStatus(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := EngineTestFixture()

	text := "Council approves the new budget"
	shaID := CandidateID("", text, "")
	_, err := eng.CreatePost(ctx, goodInput("1001"))
	require.NoError(t, err)
	_, err = eng.CreatePost(ctx, goodInput(shaID))
	require.NoError(t, err)

	out, err := eng.BatchStatus(ctx, []StatusQuery{
		{URL: "https://x.com/someone/status/1001"},
		{Text: "  " + text + "\n"},
		{Identifier: "nope"},
	})
	require.NoError(t, err)
	assert.Len(out, 3)
	assert.Equal(models.VerdictValid, out["1001"].Status)
	assert.Equal(models.VerdictValid, out[shaID].Status)
	assert.Equal(StatusView{Status: models.VerdictUnknown, Warnings: []string{}}, out["nope"])
}

func TestCandidateID(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("12345", CandidateID("https://x.com/a/status/12345/photo/1", "ignored", ""))
	assert.Equal("777", CandidateID("https://example.com/posts/777", "", ""))

	// sha256("hello")
	assert.Equal("sha:2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", CandidateID("", " hello ", "<p>x</p>"))
	assert.Equal(CandidateID("", "", "<p>x</p>"), CandidateID("https://example.com/about", "   ", "<p>x</p>"))

	long := make([]rune, 20_000)
	for i := range long {
		long[i] = 'é'
	}
	assert.Equal(CandidateID("", string(long[:10_000]), ""), CandidateID("", string(long), ""))
}

func TestModerationModeReset(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, ms := EngineTestFixture()
	notifier := &MemNotifier{}
	eng.Notifier = notifier

	_, err := SeedWindow(ctx, ms, "seed", 6, 4)
	require.NoError(t, err)
	res, err := eng.CreatePost(ctx, goodInput("ext-1"))
	require.NoError(t, err)
	assert.Equal(OutcomeNewlyElevated, res.Outcome)

	// stays elevated across further submissions
	res, err = eng.CreatePost(ctx, goodInput("ext-2"))
	require.NoError(t, err)
	assert.Equal(OutcomeElevated, res.Outcome)

	mode, err := eng.ResetModerationMode(ctx, "test")
	require.NoError(t, err)
	assert.False(mode.Active)
	require.Len(t, notifier.ModeChanges, 1)
	assert.False(notifier.ModeChanges[0].Active)

	stats, err := eng.Stats(ctx)
	require.NoError(t, err)
	assert.False(stats.Mode.Active)
	assert.Equal(int64(12), stats.Posts.Total)
	assert.Equal(2, stats.Ingested[countstore.PeriodTotal]["elevated"])
	assert.Equal(1, stats.Activations["monitor"])
}

func TestConcurrentEvaluations(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, ms := EngineTestFixture()

	res, err := eng.CreatePost(ctx, goodInput("ext-1"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.SubmitEvaluation(ctx, SubmitEvaluationInput{PostID: res.Post.ID, Evaluation: "Valid"})
			assert.NoError(err)
		}()
	}
	wg.Wait()
	p, err := ms.FindPost(ctx, res.Post.ID)
	require.NoError(t, err)
	assert.Equal(int64(50), p.PositiveEvaluationsCount)
	assert.Equal(models.VerdictValid, p.Status)
}

func TestSlackNotifier(t *testing.T) {
	assert := assert.New(t)

	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body SlackWebhookBody
		assert.NoError(json.NewDecoder(r.Body).Decode(&body))
		got = append(got, body.Text)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	n := &SlackNotifier{SlackWebhookURL: srv.URL}
	assert.NoError(n.SendActivation(context.Background(), &monitor.Report{Sample: 10, Suspect: 4, Flagged: []uint{1, 2, 3, 4}}))
	require.Len(t, got, 1)
	assert.Contains(got[0], "4 of 10")

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer bad.Close()
	n = &SlackNotifier{SlackWebhookURL: bad.URL}
	assert.Error(n.SendActivation(context.Background(), &monitor.Report{}))
}
