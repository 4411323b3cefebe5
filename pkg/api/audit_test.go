package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/chefhub/pkg/audit"
	"github.com/platinummonkey/chefhub/pkg/content"
)

func TestAudit_MyTrail(t *testing.T) {
	f := setupAPI(t)
	course, _, _, _ := f.publishedCourse(t)

	resp := f.do(t, http.MethodPut, "/courses/"+course.ID, "other", content.CourseInput{Title: "Stolen"})
	require.Equal(t, http.StatusForbidden, resp.Status)

	resp = f.do(t, http.MethodGet, "/me/audit?status=denied", "other", nil)
	require.Equal(t, http.StatusOK, resp.Status, string(resp.Body))
	var denied []*audit.AuditEvent
	resp.decode(t, &denied)
	require.Len(t, denied, 1)
	assert.Equal(t, audit.EventAccessDenied, denied[0].EventType)
	assert.Equal(t, course.ID, denied[0].ResourceID)
	assert.Equal(t, "not_owner", denied[0].Reason)
	assert.NotEmpty(t, denied[0].RequestID)

	// the owner sees their own authorized mutations, not the other chef's denial
	resp = f.do(t, http.MethodGet, "/me/audit?limit=100", "chef", nil)
	require.Equal(t, http.StatusOK, resp.Status)
	var mine []*audit.AuditEvent
	resp.decode(t, &mine)
	require.NotEmpty(t, mine)
	for _, e := range mine {
		assert.Equal(t, f.chef.UserID, e.ActorID)
		assert.Equal(t, audit.EventStatusAllowed, e.Status)
	}

	resp = f.do(t, http.MethodGet, "/me/audit?status=maybe", "chef", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Status)

	resp = f.do(t, http.MethodGet, "/me/audit?limit=ten", "chef", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Status)

	resp = f.do(t, http.MethodGet, "/me/audit", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Status)
}
