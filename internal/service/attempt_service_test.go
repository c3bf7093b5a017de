package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"proctor_backend/internal/model"
	"proctor_backend/internal/proctor"
	"proctor_backend/internal/realtime"
	"proctor_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// liveRound 准备一个进行中的轮次：10 分钟，一道 5 分选择题（答案 B）
func liveRound(t *testing.T, h *harness) {
	t.Helper()
	h.store.addEvent(1, time.Time{})
	h.store.addRound(10, 1, 10, model.RoundNotStarted)
	h.store.addQuestion(10, 1, model.QuestionMultipleChoice, "B", 5)
	_, err := h.rounds.Start(context.Background(), 10)
	require.NoError(t, err)
}

func TestBeginTwiceReturnsConflict(t *testing.T) {
	h := newHarness()
	liveRound(t, h)
	ctx := context.Background()

	a, err := h.attempts.Begin(ctx, 100, 10)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptInProgress, a.Status)
	assert.Equal(t, 5, a.MaxScore)
	assert.Zero(t, a.TotalScore)

	_, err = h.attempts.Begin(ctx, 100, 10)
	assert.ErrorIs(t, err, util.ErrConflict)
	assert.Equal(t, 1, h.store.attemptCount(10))
}

func TestConcurrentBeginCreatesOneAttempt(t *testing.T) {
	h := newHarness()
	liveRound(t, h)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.attempts.Begin(context.Background(), 100, 10)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, util.ErrConflict)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, h.store.attemptCount(10))
}

func TestBeginRequiresRunningRound(t *testing.T) {
	h := newHarness()
	h.store.addEvent(1, time.Time{})
	h.store.addRound(10, 1, 10, model.RoundNotStarted)

	_, err := h.attempts.Begin(context.Background(), 100, 10)
	assert.ErrorIs(t, err, util.ErrInvalidState)
}

func TestMaxScoreFixedAtBegin(t *testing.T) {
	h := newHarness()
	liveRound(t, h)
	ctx := context.Background()

	a, err := h.attempts.Begin(ctx, 100, 10)
	require.NoError(t, err)
	h.store.addQuestion(10, 2, model.QuestionTrueFalse, "true", 3)

	done, err := h.attempts.Submit(ctx, 100, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, done.MaxScore)
}

func TestViolationEscalationIgnoresType(t *testing.T) {
	sequences := [][]string{
		{"tab_switch", "tab_switch", "tab_switch"},
		{"fullscreen_exit", "ctrl_t", "back_button"},
		{"refresh_attempt", "f11_fullscreen", "restricted_shortcut"},
		{"ALT_TAB", " refresh ", "tab_switch"},
	}
	want := []proctor.Decision{proctor.DecisionWarn1, proctor.DecisionWarn2Final, proctor.DecisionDisqualify}

	for _, seq := range sequences {
		h := newHarness()
		liveRound(t, h)
		ctx := context.Background()
		a, err := h.attempts.Begin(ctx, 100, 10)
		require.NoError(t, err)

		for i, vt := range seq {
			res, err := h.attempts.ReportViolation(ctx, 100, a.ID, vt)
			require.NoError(t, err, "%v #%d", seq, i)
			assert.Equal(t, want[i], res.Decision, "%v #%d", seq, i)
			assert.Equal(t, i+1, res.ViolationCount)
			assert.Equal(t, i == 2, res.Submitted)
			if i == 2 {
				assert.Equal(t, model.AttemptCompleted, res.Status)
			} else {
				assert.Equal(t, model.AttemptInProgress, res.Status)
			}
		}
	}
}

func TestViolationWarningText(t *testing.T) {
	h := newHarness()
	liveRound(t, h)
	ctx := context.Background()
	a, err := h.attempts.Begin(ctx, 100, 10)
	require.NoError(t, err)

	res, err := h.attempts.ReportViolation(ctx, 100, a.ID, "tab_switch")
	require.NoError(t, err)
	assert.Contains(t, res.Warning, "Further attempts will eliminate you")

	_, err = h.attempts.ReportViolation(ctx, 100, a.ID, "screenshot")
	assert.ErrorIs(t, err, util.ErrInvalidArgument)
}

func TestThreeViolationsDisqualifyOnceAndSubmit(t *testing.T) {
	h := newHarness()
	liveRound(t, h)
	ctx := context.Background()
	a, err := h.attempts.Begin(ctx, 100, 10)
	require.NoError(t, err)
	require.NoError(t, h.attempts.RecordAnswer(ctx, 100, a.ID, 1, "B"))

	for _, vt := range []string{"tab_switch", "refresh", "alt_tab"} {
		_, err := h.attempts.ReportViolation(ctx, 100, a.ID, vt)
		require.NoError(t, err)
	}

	stored, err := attemptStore{h.store}.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptCompleted, stored.Status)
	assert.Equal(t, 5, stored.TotalScore)
	assert.Equal(t, 1, stored.TabSwitchCount)
	assert.Equal(t, 1, stored.RefreshAttemptCount)
	require.Len(t, stored.ViolationLogs, 3)
	assert.Equal(t, "alt_tab", stored.ViolationLogs[2].Type)
	assert.Equal(t, []uint{100}, h.disqualifier.calls)

	_, err = h.attempts.ReportViolation(ctx, 100, a.ID, "tab_switch")
	assert.ErrorIs(t, err, util.ErrInvalidState)
	assert.Len(t, h.disqualifier.calls, 1)
}

func TestSubmitTwiceKeepsScoreAndConflicts(t *testing.T) {
	h := newHarness()
	liveRound(t, h)
	ctx := context.Background()
	a, err := h.attempts.Begin(ctx, 100, 10)
	require.NoError(t, err)
	require.NoError(t, h.attempts.RecordAnswer(ctx, 100, a.ID, 1, "B"))

	first, err := h.attempts.Submit(ctx, 100, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, first.TotalScore)
	require.NotNil(t, first.SubmittedAt)

	_, err = h.attempts.Submit(ctx, 100, a.ID)
	assert.ErrorIs(t, err, util.ErrConflict)

	stored, err := attemptStore{h.store}.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.TotalScore)
	assert.Equal(t, 1, h.store.completeCalls)

	notices := publishedFor(h, util.SubmitReasonManual)
	require.Len(t, notices, 1)
	assert.Equal(t, uint(100), notices[0].TargetUserID)
	assert.Equal(t, a.ID, notices[0].Data.(realtime.ResultPublishedPayload).AttemptID)

	err = h.attempts.RecordAnswer(ctx, 100, a.ID, 1, "C")
	assert.ErrorIs(t, err, util.ErrInvalidState)
}

func TestRacingSubmitTriggersGradeOnce(t *testing.T) {
	h := newHarness()
	liveRound(t, h)
	ctx := context.Background()
	a, err := h.attempts.Begin(ctx, 100, 10)
	require.NoError(t, err)
	h.clock.Advance(10 * time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			h.attempts.Submit(ctx, 100, a.ID)
		}()
		go func() {
			defer wg.Done()
			h.attempts.SubmitExpired(ctx)
		}()
		go func() {
			defer wg.Done()
			h.attempts.ReportViolation(ctx, 100, a.ID, "tab_switch")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, h.store.completeCalls)
	stored, err := attemptStore{h.store}.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptCompleted, stored.Status)
}

func TestTimeExpiryAutoSubmitsWithCaseInsensitiveGrading(t *testing.T) {
	h := newHarness()
	liveRound(t, h)
	ctx := context.Background()
	a, err := h.attempts.Begin(ctx, 100, 10)
	require.NoError(t, err)
	require.NoError(t, h.attempts.RecordAnswer(ctx, 100, a.ID, 1, "b"))

	h.clock.Advance(9 * time.Minute)
	n, err := h.attempts.SubmitExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	h.clock.Advance(time.Minute)
	n, err = h.attempts.SubmitExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := attemptStore{h.store}.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptCompleted, stored.Status)
	assert.Equal(t, 5, stored.TotalScore)
	assert.Equal(t, 5, stored.MaxScore)

	answers, err := attemptStore{h.store}.Answers(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	require.NotNil(t, answers[0].IsCorrect)
	assert.True(t, *answers[0].IsCorrect)
	assert.Equal(t, 5, answers[0].PointsAwarded)
}

func TestWritesAfterDeadlineSubmitInstead(t *testing.T) {
	h := newHarness()
	liveRound(t, h)
	ctx := context.Background()
	a, err := h.attempts.Begin(ctx, 100, 10)
	require.NoError(t, err)

	h.clock.Advance(11 * time.Minute)
	err = h.attempts.RecordAnswer(ctx, 100, a.ID, 1, "B")
	assert.ErrorIs(t, err, util.ErrInvalidState)

	stored, err := attemptStore{h.store}.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptCompleted, stored.Status)
	assert.Zero(t, stored.TotalScore)
}

func TestRecordAnswerChecksOwnershipAndQuestion(t *testing.T) {
	h := newHarness()
	liveRound(t, h)
	ctx := context.Background()
	a, err := h.attempts.Begin(ctx, 100, 10)
	require.NoError(t, err)

	assert.ErrorIs(t, h.attempts.RecordAnswer(ctx, 101, a.ID, 1, "B"), util.ErrForbidden)
	assert.ErrorIs(t, h.attempts.RecordAnswer(ctx, 100, a.ID, 99, "B"), util.ErrNotFound)
	assert.ErrorIs(t, h.attempts.RecordAnswer(ctx, 100, "missing", 1, "B"), util.ErrNotFound)

	require.NoError(t, h.attempts.RecordAnswer(ctx, 100, a.ID, 1, "A"))
	require.NoError(t, h.attempts.RecordAnswer(ctx, 100, a.ID, 1, "B"))
	answers, err := attemptStore{h.store}.Answers(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, "B", answers[0].Answer)
	assert.Nil(t, answers[0].IsCorrect)
}

func TestEndingRoundForceSubmitsOnlyItsAttempts(t *testing.T) {
	h := newHarness()
	liveRound(t, h)
	ctx := context.Background()
	h.store.addRound(20, 1, 10, model.RoundNotStarted)
	_, err := h.rounds.Start(ctx, 20)
	require.NoError(t, err)

	var ids []string
	for u := uint(100); u < 105; u++ {
		a, err := h.attempts.Begin(ctx, u, 10)
		require.NoError(t, err)
		require.NoError(t, h.attempts.RecordAnswer(ctx, u, a.ID, 1, "b"))
		ids = append(ids, a.ID)
	}
	other, err := h.attempts.Begin(ctx, 100, 20)
	require.NoError(t, err)

	_, err = h.rounds.End(ctx, 10)
	require.NoError(t, err)

	for _, id := range ids {
		stored, err := attemptStore{h.store}.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.AttemptCompleted, stored.Status)
		assert.Equal(t, 5, stored.TotalScore)
	}
	stored, err := attemptStore{h.store}.FindByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptInProgress, stored.Status)
}

func TestViewRedactsUntilDeadlineOrEventEnd(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.store.addEvent(1, h.clock.Now().Add(24*time.Hour))
	h.store.addRound(10, 1, 10, model.RoundNotStarted)
	h.store.addQuestion(10, 1, model.QuestionMultipleChoice, "B", 5)
	h.store.eventAdmins[7] = []uint{1}
	h.store.eventAdmins[8] = []uint{2}
	_, err := h.rounds.Start(ctx, 10)
	require.NoError(t, err)

	a, err := h.attempts.Begin(ctx, 100, 10)
	require.NoError(t, err)
	require.NoError(t, h.attempts.RecordAnswer(ctx, 100, a.ID, 1, "B"))
	_, err = h.attempts.Submit(ctx, 100, a.ID)
	require.NoError(t, err)

	participant := Actor{UserID: 100, Role: model.RoleParticipant}
	view, err := h.attempts.View(ctx, participant, a.ID)
	require.NoError(t, err)
	assert.False(t, view.ResultsVisible)
	assert.Nil(t, view.TotalScore)
	assert.Nil(t, view.MaxScore)
	require.Len(t, view.Questions, 1)
	assert.Nil(t, view.Questions[0].CorrectAnswer)
	assert.Equal(t, "q1", view.Questions[0].Content)
	require.Len(t, view.Answers, 1)
	assert.Equal(t, "B", view.Answers[0].Answer)
	assert.Nil(t, view.Answers[0].IsCorrect)
	assert.Nil(t, view.Answers[0].PointsAwarded)

	admin := Actor{UserID: 7, Role: model.RoleEventAdmin}
	view, err = h.attempts.View(ctx, admin, a.ID)
	require.NoError(t, err)
	require.NotNil(t, view.TotalScore)
	assert.Equal(t, 5, *view.TotalScore)
	require.NotNil(t, view.Questions[0].CorrectAnswer)
	assert.Equal(t, "B", *view.Questions[0].CorrectAnswer)

	_, err = h.attempts.View(ctx, Actor{UserID: 8, Role: model.RoleEventAdmin}, a.ID)
	assert.ErrorIs(t, err, util.ErrForbidden)
	_, err = h.attempts.View(ctx, Actor{UserID: 101, Role: model.RoleParticipant}, a.ID)
	assert.ErrorIs(t, err, util.ErrForbidden)

	// 作答时长已满
	h.clock.Advance(10 * time.Minute)
	view, err = h.attempts.MyAttempt(ctx, 100, 10)
	require.NoError(t, err)
	assert.True(t, view.ResultsVisible)
	require.NotNil(t, view.TotalScore)
	assert.Equal(t, 5, *view.TotalScore)
	require.NotNil(t, view.Answers[0].IsCorrect)
	assert.True(t, *view.Answers[0].IsCorrect)
}

func TestViewUnlocksWhenEventEnds(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.store.addEvent(1, h.clock.Now().Add(2*time.Minute))
	h.store.addRound(10, 1, 60, model.RoundNotStarted)
	h.store.addQuestion(10, 1, model.QuestionMultipleChoice, "B", 5)
	_, err := h.rounds.Start(ctx, 10)
	require.NoError(t, err)
	a, err := h.attempts.Begin(ctx, 100, 10)
	require.NoError(t, err)
	_, err = h.attempts.Submit(ctx, 100, a.ID)
	require.NoError(t, err)

	view, err := h.attempts.MyAttempt(ctx, 100, 10)
	require.NoError(t, err)
	assert.Nil(t, view.TotalScore)

	h.clock.Advance(2 * time.Minute)
	view, err = h.attempts.MyAttempt(ctx, 100, 10)
	require.NoError(t, err)
	require.NotNil(t, view.TotalScore)
	assert.Zero(t, *view.TotalScore)
}

func TestViewRemainingSecondsAndLazyExpiry(t *testing.T) {
	h := newHarness()
	liveRound(t, h)
	ctx := context.Background()
	a, err := h.attempts.Begin(ctx, 100, 10)
	require.NoError(t, err)

	h.clock.Advance(4 * time.Minute)
	view, err := h.attempts.MyAttempt(ctx, 100, 10)
	require.NoError(t, err)
	assert.Equal(t, 360, view.RemainingSeconds)
	assert.Equal(t, model.AttemptInProgress, view.Status)

	h.clock.Advance(6 * time.Minute)
	view, err = h.attempts.View(ctx, Actor{UserID: 100, Role: model.RoleParticipant}, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptCompleted, view.Status)
	assert.Zero(t, view.RemainingSeconds)
}

func TestForceSubmitNotifiesSuperAdmins(t *testing.T) {
	h := newHarness()
	liveRound(t, h)
	ctx := context.Background()
	a, err := h.attempts.Begin(ctx, 100, 10)
	require.NoError(t, err)

	done, err := h.attempts.ForceSubmit(ctx, Actor{UserID: 1, Role: model.RoleSuperAdmin}, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptCompleted, done.Status)

	overrides := h.publisher.byKind(realtime.EventOverrideAction)
	require.Len(t, overrides, 1)
	payload := overrides[0].Data.(realtime.OverrideActionPayload)
	assert.Equal(t, "force_submit", payload.Action)
	assert.Equal(t, a.ID, payload.AttemptID)

	_, err = h.attempts.ForceSubmit(ctx, Actor{UserID: 1, Role: model.RoleSuperAdmin}, a.ID)
	assert.ErrorIs(t, err, util.ErrConflict)
}
