package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/chefhub/pkg/content"
	"github.com/platinummonkey/chefhub/pkg/enrollment"
	"github.com/platinummonkey/chefhub/pkg/platform"
	"github.com/platinummonkey/chefhub/pkg/webhooks"
)

func (f *apiFixture) purchase(t *testing.T, courseID, token, key string) (apiResponse, enrollment.BeginResult) {
	t.Helper()
	var headers []string
	if key != "" {
		headers = []string{IdempotencyKeyHeader, key}
	}
	resp := f.do(t, http.MethodPost, "/courses/"+courseID+"/purchase", token, nil, headers...)
	var res enrollment.BeginResult
	if resp.Status < 300 {
		resp.decode(t, &res)
	}
	return resp, res
}

func TestEnrollments_PurchaseConfirmUnlocksContent(t *testing.T) {
	f := setupAPI(t)
	course, gated, _, recipe := f.publishedCourse(t)

	resp, first := f.purchase(t, course.ID, "student", "order-1")
	require.Equal(t, http.StatusCreated, resp.Status, string(resp.Body))
	require.True(t, first.Created)
	assert.Equal(t, enrollment.StatePending, first.Enrollment.State)
	assert.Equal(t, int64(3900), first.Enrollment.AmountCents)

	resp, retry := f.purchase(t, course.ID, "student", "order-1")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.False(t, retry.Created)
	assert.Equal(t, first.Enrollment.ID, retry.Enrollment.ID)

	resp = f.do(t, http.MethodGet, "/classes/"+gated.ID, "student", nil)
	assert.Equal(t, http.StatusForbidden, resp.Status, "pending enrollments do not grant access")

	resp = f.callback(t, first.Enrollment.ID, "confirm", map[string]string{"ref": "ch_123"}, testWebhookSecret)
	require.Equal(t, http.StatusOK, resp.Status, string(resp.Body))
	var confirmed enrollment.Enrollment
	resp.decode(t, &confirmed)
	assert.Equal(t, enrollment.StateActive, confirmed.State)

	resp = f.callback(t, first.Enrollment.ID, "confirm", map[string]string{"ref": "ch_123"}, testWebhookSecret)
	assert.Equal(t, http.StatusOK, resp.Status, "redelivered confirmation is a no-op")

	resp = f.do(t, http.MethodGet, "/classes/"+gated.ID, "student", nil)
	require.Equal(t, http.StatusOK, resp.Status)
	var detail platform.ClassDetail
	resp.decode(t, &detail)
	require.Len(t, detail.Recipes, 1)
	assert.Equal(t, recipe.ID, detail.Recipes[0].ID)

	resp = f.do(t, http.MethodGet, "/recipes/"+recipe.ID+"?via_class="+gated.ID, "student", nil)
	assert.Equal(t, http.StatusOK, resp.Status)

	resp = f.do(t, http.MethodGet, "/recipes/"+recipe.ID, "student", nil)
	assert.Equal(t, http.StatusForbidden, resp.Status, "private recipes are only readable through a class")

	resp, again := f.purchase(t, course.ID, "student", "order-2")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, first.Enrollment.ID, again.Enrollment.ID, "an active enrollment is returned unchanged")
}

func TestEnrollments_PurchaseRules(t *testing.T) {
	f := setupAPI(t)
	course, _, _, _ := f.publishedCourse(t)

	resp, _ := f.purchase(t, course.ID, "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.Status)

	resp, _ = f.purchase(t, course.ID, "chef", "")
	assert.Equal(t, http.StatusForbidden, resp.Status)
	assert.Equal(t, "role_not_permitted", resp.errorCode(t))

	resp, _ = f.purchase(t, course.ID, "student", strings.Repeat("k", maxIdempotencyKeyLength+1))
	assert.Equal(t, http.StatusBadRequest, resp.Status)

	resp = f.do(t, http.MethodPost, "/courses", "chef", content.CourseInput{Title: "Unreleased"})
	var draft content.Course
	resp.decode(t, &draft)
	resp, _ = f.purchase(t, draft.ID, "student", "")
	assert.Equal(t, http.StatusForbidden, resp.Status)
	assert.Equal(t, "not_published", resp.errorCode(t))

	resp, _ = f.purchase(t, "missing", "student", "")
	assert.Equal(t, http.StatusNotFound, resp.Status)

	resp, created := f.purchase(t, course.ID, "student", "")
	require.Equal(t, http.StatusCreated, resp.Status)
	resp, retried := f.purchase(t, course.ID, "student", "")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, created.Enrollment.ID, retried.Enrollment.ID, "derived keys collapse retries")
}

func TestEnrollments_IdempotencyKeyBoundToCourse(t *testing.T) {
	f := setupAPI(t)
	course, _, _, _ := f.publishedCourse(t)
	other, _, _, _ := f.publishedCourse(t)

	resp, _ := f.purchase(t, course.ID, "student", "shared-key")
	require.Equal(t, http.StatusCreated, resp.Status)

	resp, _ = f.purchase(t, other.ID, "student", "shared-key")
	assert.Equal(t, http.StatusConflict, resp.Status)
	assert.Equal(t, "duplicate_idempotency_key", resp.errorCode(t))
}

func TestEnrollments_PaymentCallbacks(t *testing.T) {
	f := setupAPI(t)
	course, _, _, _ := f.publishedCourse(t)
	_, res := f.purchase(t, course.ID, "student", "order-1")
	id := res.Enrollment.ID

	resp := f.callback(t, id, "confirm", map[string]string{"ref": "ch_1"}, "wrong-secret")
	assert.Equal(t, http.StatusUnauthorized, resp.Status)

	resp = f.callback(t, id, "revoke", map[string]string{"reason": "refund"}, testWebhookSecret)
	assert.Equal(t, http.StatusConflict, resp.Status, "pending enrollments cannot be revoked")
	assert.Equal(t, "invalid_transition", resp.errorCode(t))

	resp = f.callback(t, id, "confirm", map[string]string{}, testWebhookSecret)
	assert.Equal(t, http.StatusBadRequest, resp.Status, "confirmation requires a reference")

	resp = f.callback(t, id, "fail", map[string]string{"reason": "card_declined"}, testWebhookSecret)
	require.Equal(t, http.StatusOK, resp.Status, string(resp.Body))
	var failed enrollment.Enrollment
	resp.decode(t, &failed)
	assert.Equal(t, enrollment.StateFailed, failed.State)
	assert.Equal(t, "card_declined", failed.Reason)

	resp = f.callback(t, id, "confirm", map[string]string{"ref": "ch_1"}, testWebhookSecret)
	assert.Equal(t, http.StatusConflict, resp.Status, "failed enrollments cannot be confirmed")

	resp = f.callback(t, "unknown", "confirm", map[string]string{"ref": "ch_1"}, testWebhookSecret)
	assert.Equal(t, http.StatusNotFound, resp.Status)

	resp, retry := f.purchase(t, course.ID, "student", "")
	require.Equal(t, http.StatusCreated, resp.Status, "a new attempt after failure creates a new row")
	assert.NotEqual(t, id, retry.Enrollment.ID)
}

func TestEnrollments_SignedCallbackBoundToEnrollment(t *testing.T) {
	f := setupAPI(t)
	first, _, _, _ := f.publishedCourse(t)
	second, _, _, _ := f.publishedCourse(t)
	_, a := f.purchase(t, first.ID, "student", "order-a")
	_, b := f.purchase(t, second.ID, "student", "order-b")

	raw, err := json.Marshal(map[string]string{"enrollment_id": a.Enrollment.ID, "ref": "ch_a"})
	require.NoError(t, err)
	signature := webhooks.Sign(raw, testWebhookSecret)

	resp := f.signedPost(t, "/payments/"+a.Enrollment.ID+"/confirm", raw, signature)
	require.Equal(t, http.StatusOK, resp.Status, string(resp.Body))

	resp = f.signedPost(t, "/payments/"+b.Enrollment.ID+"/confirm", raw, signature)
	assert.Equal(t, http.StatusUnauthorized, resp.Status, "a body signed for one enrollment cannot confirm another")

	unbound, err := json.Marshal(map[string]string{"ref": "ch_b"})
	require.NoError(t, err)
	resp = f.signedPost(t, "/payments/"+b.Enrollment.ID+"/confirm", unbound, webhooks.Sign(unbound, testWebhookSecret))
	assert.Equal(t, http.StatusUnauthorized, resp.Status, "callbacks must name their enrollment")

	resp = f.do(t, http.MethodGet, "/enrollments/"+b.Enrollment.ID+"/history", "student", nil)
	require.Equal(t, http.StatusOK, resp.Status)
	var events []*enrollment.Event
	resp.decode(t, &events)
	require.Len(t, events, 1)
	assert.Equal(t, enrollment.StatePending, events[0].To)
}

func TestEnrollments_CallbacksRejectedWithoutSecret(t *testing.T) {
	logger, _ := test.NewNullLogger()
	srv := NewServer(nil, tokenResolver{}, Config{}, logger)

	body := []byte(`{"ref":"x"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments/any/confirm", bytes.NewReader(body))
	req.Header.Set(webhooks.SignatureHeader, webhooks.Sign(body, ""))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEnrollments_StatsHistoryAndProgress(t *testing.T) {
	f := setupAPI(t)
	course, gated, preview, _ := f.publishedCourse(t)
	_, res := f.purchase(t, course.ID, "student", "order-1")
	id := res.Enrollment.ID
	resp := f.callback(t, id, "confirm", map[string]string{"ref": "ch_1"}, testWebhookSecret)
	require.Equal(t, http.StatusOK, resp.Status)

	resp = f.do(t, http.MethodGet, "/courses/"+course.ID+"/stats", "chef", nil)
	require.Equal(t, http.StatusOK, resp.Status)
	var stats enrollment.Stats
	resp.decode(t, &stats)
	assert.Equal(t, int64(1), stats.ActiveEnrollments)
	assert.Equal(t, int64(3900), stats.RevenueCents)

	resp = f.do(t, http.MethodGet, "/courses/"+course.ID+"/stats", "student", nil)
	assert.Equal(t, http.StatusForbidden, resp.Status)

	resp = f.do(t, http.MethodGet, "/me/enrollments", "student", nil)
	require.Equal(t, http.StatusOK, resp.Status)
	var mine []*enrollment.Enrollment
	resp.decode(t, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, id, mine[0].ID)

	resp = f.do(t, http.MethodGet, "/enrollments/"+id+"/history", "student", nil)
	require.Equal(t, http.StatusOK, resp.Status)
	var events []*enrollment.Event
	resp.decode(t, &events)
	require.Len(t, events, 2)
	assert.Equal(t, enrollment.StatePending, events[0].To)
	assert.Equal(t, enrollment.StateActive, events[1].To)

	resp = f.do(t, http.MethodGet, "/enrollments/"+id+"/history", "chef", nil)
	assert.Equal(t, http.StatusForbidden, resp.Status)

	resp = f.do(t, http.MethodPost, "/classes/"+gated.ID+"/complete", "student", nil)
	require.Equal(t, http.StatusNoContent, resp.Status, string(resp.Body))
	resp = f.do(t, http.MethodPost, "/classes/"+preview.ID+"/complete", "student", nil)
	require.Equal(t, http.StatusNoContent, resp.Status)

	resp = f.do(t, http.MethodGet, "/courses/"+course.ID+"/progress", "student", nil)
	require.Equal(t, http.StatusOK, resp.Status)
	var progress platform.Progress
	resp.decode(t, &progress)
	assert.Equal(t, []string{gated.ID, preview.ID}, progress.CompletedClasses)
	assert.Equal(t, 2, progress.TotalClasses)

	resp = f.do(t, http.MethodGet, "/me/enrollments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Status)
}

func TestEnrollments_RevokeRemovesAccess(t *testing.T) {
	f := setupAPI(t)
	course, gated, _, _ := f.publishedCourse(t)
	_, res := f.purchase(t, course.ID, "student", "order-1")
	id := res.Enrollment.ID

	require.Equal(t, http.StatusOK,
		f.callback(t, id, "confirm", map[string]string{"ref": "ch_1"}, testWebhookSecret).Status)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/classes/"+gated.ID, "student", nil).Status)

	resp := f.callback(t, id, "revoke", map[string]string{"reason": "chargeback"}, testWebhookSecret)
	require.Equal(t, http.StatusOK, resp.Status)

	resp = f.do(t, http.MethodGet, "/classes/"+gated.ID, "student", nil)
	assert.Equal(t, http.StatusForbidden, resp.Status)
	assert.Equal(t, "not_enrolled", resp.errorCode(t))
}
