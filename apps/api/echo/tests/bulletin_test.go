package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	. "github.com/simonmuehling/educafric-platform-sub005/apps/api/echo"
	"github.com/simonmuehling/educafric-platform-sub005/core"
	"github.com/simonmuehling/educafric-platform-sub005/core/bulletin"
	testutil "github.com/simonmuehling/educafric-platform-sub005/tests"
)

func studentIDs(t *testing.T, data []byte) []string {
	var bulletins []bulletin.Bulletin
	if err := json.Unmarshal(data, &bulletins); err != nil {
		t.Fatalf("studentIDs() failed: %v; body %s", err, string(data))
	}
	ids := make([]string, 0, len(bulletins))
	for _, b := range bulletins {
		ids = append(ids, b.StudentID)
	}
	return ids
}

func Test_bulletinApi_auth(t *testing.T) {
	app, env := setup(t)

	tests := []httpTest{
		{name: "Auth required", path: "/api/bulletins", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Invalid token", path: "/api/bulletins", token: "not-a-jwt",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "invalid or expired jwt"}),
		},
		{
			name: "Parent forbidden", path: "/api/bulletins", token: getToken(t, env.Conf, "parent-1", RoleParent),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Student forbidden", path: "/api/bulletins", token: getToken(t, env.Conf, "student-1", RoleStudent),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Teacher not allowed to list pending", path: "/api/bulletins/pending", token: getToken(t, env.Conf, "teacher-7", RoleTeacher),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Admin has director rights", path: "/api/bulletins/pending", token: getToken(t, env.Conf, "admin-1", RoleAdmin),
			wantCode: http.StatusOK, wantData: emptyList,
		},
		{
			name: "Teacher allowed", path: "/api/bulletins", token: getToken(t, env.Conf, "teacher-7", RoleTeacher),
			wantCode: http.StatusOK, wantData: emptyList,
		},
		{
			name: "Tracking requires a token", path: "/api/bulletins/track/BUL-2026-AAAAAAAAAA",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_bulletinApi_create(t *testing.T) {
	app, env := setup(t)
	teacherToken := getToken(t, env.Conf, "teacher-7", RoleTeacher)

	body := func(studentID string, grades ...bulletin.GradeInput) []byte {
		return marchallObj(t, bulletin.NewBulletin{
			StudentID:      studentID,
			ClassID:        "6A",
			TermID:         "T1",
			AcademicYearID: "2025-2026",
			SchoolID:       "school-1",
			Grades:         grades,
		})
	}

	t.Run("create", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/bulletins", teacherToken,
			body("s1", testutil.GradeInput("math", 16, 2), testutil.GradeInput("french", 12, 1)))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var created bulletin.Bulletin
		unmarshall(t, rec, &created)
		assert.Equal(t, bulletin.StatusDraft, created.Status)
		require.NotNil(t, created.GeneralAverage)
		assert.Equal(t, 14.67, *created.GeneralAverage)
		assert.Equal(t, 1, created.ClassRank)
		require.Len(t, created.Grades, 2)
		for _, g := range created.Grades {
			assert.Equal(t, "teacher-7", g.TeacherID, "grades are credited to the author")
		}

		got, err := env.Svc.Get(context.Background(), created.ID)
		require.NoError(t, err)
		checkCodeAndData(t, httpTest{wantCode: http.StatusCreated, wantData: marchallObj(t, got)}, rec)
	})

	tests := []httpTest{
		{name: "Auth required", body: body("s2"), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Parent forbidden", body: body("s2"), token: getToken(t, env.Conf, "parent-1", RoleParent),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "student_id required", body: body(""), token: teacherToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"student_id": "this field is required"}),
		},
		{
			name: "grade out of range", body: body("s2", testutil.GradeInput("math", 21, 1)), token: teacherToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"grade": "grade must be between 0 and 20"}),
		},
		{
			name: "duplicate", body: body("s1"), token: teacherToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"student_id": bulletin.ErrExists.Error()}),
		},
		{
			name: "malformed JSON", body: []byte(`{"student_id": 1}`), token: teacherToken,
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/api/bulletins", tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_bulletinApi_workflow(t *testing.T) {
	app, env := setup(t)
	ctx := context.Background()

	teacherToken := getToken(t, env.Conf, "teacher-7", RoleTeacher)
	directorToken := getToken(t, env.Conf, "director-3", RoleDirector)
	adminToken := getToken(t, env.Conf, "admin-1", RoleAdmin)

	b := testutil.CreateBulletin(t, env.Svc, "s1", testutil.GradeInput("math", 16, 2), testutil.GradeInput("french", 12, 1))
	empty := testutil.CreateBulletin(t, env.Svc, "s2")
	path := func(action string) string { return "/api/bulletins/" + b.ID + "/" + action }
	comment := func(c string) []byte { return marchallObj(t, map[string]string{"comment": c}) }
	transitionErr := func(status bulletin.Status, action bulletin.Action) []byte {
		return marchallObj(t, map[string]string{
			"error":  (&bulletin.TransitionError{Status: status, Action: action}).Error(),
			"status": string(status),
			"action": string(action),
		})
	}
	locked := marchallObj(t, httpErr{Error: bulletin.ErrBulletinLocked.Error()})

	// the steps run in order, on the same bulletin
	tests := []httpTest{
		{name: "submit: auth required", method: http.MethodPost, path: path("submit"), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "submit: parent forbidden", method: http.MethodPost, path: path("submit"), body: comment("done"),
			token: getToken(t, env.Conf, "parent-1", RoleParent), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "submit: comment required", method: http.MethodPost, path: path("submit"), token: teacherToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"comment": "a comment is required to submit a bulletin"}),
		},
		{
			name: "send a draft", method: http.MethodPost, path: path("send"), token: directorToken,
			wantCode: http.StatusConflict, wantData: transitionErr(bulletin.StatusDraft, bulletin.ActionSend),
		},
		{
			name: "submit", method: http.MethodPost, path: path("submit"), body: comment("grades complete"), token: teacherToken,
			wantCode: http.StatusOK, extra: bulletin.StatusPending,
		},
		{
			name: "approve: teacher forbidden", method: http.MethodPost, path: path("approve"), token: teacherToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "approve: unknown action", method: http.MethodPost, path: path("approve"),
			body: marchallObj(t, map[string]string{"action": "archive"}), token: directorToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"action": "must be one of approve, reject"}),
		},
		{
			name: "approve: reject without comment", method: http.MethodPost, path: path("approve"),
			body: marchallObj(t, map[string]string{"action": "reject"}), token: directorToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"comment": "a comment is required to reject a bulletin"}),
		},
		{
			name: "approve (PATCH, admin)", method: http.MethodPatch, path: path("approve"),
			body: marchallObj(t, map[string]string{"action": "approve"}), token: adminToken,
			wantCode: http.StatusOK, extra: bulletin.StatusApproved,
		},
		{
			name: "reject an approved bulletin", method: http.MethodPost, path: path("reject"), body: comment("too late"), token: directorToken,
			wantCode: http.StatusConflict, wantData: transitionErr(bulletin.StatusApproved, bulletin.ActionReject),
		},
		{
			name: "send", method: http.MethodPost, path: path("send"), token: directorToken,
			wantCode: http.StatusOK, extra: bulletin.StatusSent,
		},
		{
			name: "grades locked", method: http.MethodPut, path: path("grades"), token: teacherToken,
			body:     marchallObj(t, map[string]interface{}{"grades": []bulletin.GradeInput{testutil.GradeInput("math", 20, 2)}}),
			wantCode: http.StatusLocked, wantData: locked,
		},
		{name: "grade deletion locked", method: http.MethodDelete, path: path("grades/math"), token: teacherToken, wantCode: http.StatusLocked, wantData: locked},
		{
			name: "sent is terminal", method: http.MethodPost, path: path("submit"), body: comment("again"), token: teacherToken,
			wantCode: http.StatusConflict, wantData: transitionErr(bulletin.StatusSent, bulletin.ActionSubmit),
		},
		{
			name: "submit without grades", method: http.MethodPost, path: "/api/bulletins/" + empty.ID + "/submit", body: comment("done"), token: teacherToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: bulletin.ErrInvalidGradeSet.Error()}),
		},
		{
			name: "unknown bulletin", method: http.MethodPost, path: "/api/bulletins/unknown/submit", body: comment("done"), token: teacherToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: bulletin.ErrNotFound.Error()}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if status, ok := tt.extra.(bulletin.Status); ok {
				var got bulletin.Bulletin
				unmarshall(t, rec, &got)
				assert.Equal(t, status, got.Status)
			}
		})
	}

	sent, err := env.Svc.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "teacher-7", sent.SubmittedBy)
	assert.Equal(t, "admin-1", sent.ApprovedBy)
	assert.Equal(t, "director-3", sent.SentBy)
	assert.NotEmpty(t, sent.TrackingNumber)

	notifications := env.Notifier.Notifications()
	require.Len(t, notifications, 1)
	assert.Equal(t, b.ID, notifications[0].BulletinID)

	t.Run("approvals", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/bulletins/"+b.ID+"/approvals", directorToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var approvals []bulletin.Approval
		unmarshall(t, rec, &approvals)
		actions := make([]string, 0, len(approvals))
		for _, a := range approvals {
			actions = append(actions, a.Action)
		}
		assert.Equal(t, []string{"submitted", "approved", "sent"}, actions)
	})
}

func Test_bulletinApi_grades(t *testing.T) {
	app, env := setup(t)
	ctx := context.Background()
	token := getToken(t, env.Conf, "teacher-7", RoleTeacher)

	b := testutil.CreateBulletin(t, env.Svc, "s1", testutil.GradeInput("math", 16, 2), testutil.GradeInput("french", 12, 1))
	gradesPath := "/api/bulletins/" + b.ID + "/grades"
	grades := func(inputs ...bulletin.GradeInput) []byte {
		return marchallObj(t, map[string]interface{}{"grades": inputs})
	}

	tests := []httpTest{
		{
			name: "no grades", method: http.MethodPut, path: gradesPath, body: grades(), token: token,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"grades": "this field is required"}),
		},
		{
			name: "invalid grade", method: http.MethodPut, path: gradesPath, body: grades(testutil.GradeInput("math", -1, 2)), token: token,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"grade": "grade must be between 0 and 20"}),
		},
		{
			name: "update french", method: http.MethodPut, path: gradesPath, body: grades(testutil.GradeInput("french", 18, 1)), token: token,
			wantCode: http.StatusOK, extra: 16.67,
		},
		{name: "delete math", method: http.MethodDelete, path: gradesPath + "/math", token: token, wantCode: http.StatusOK, extra: 18.0},
		{
			name: "delete unknown subject", method: http.MethodDelete, path: gradesPath + "/physics", token: token,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: bulletin.ErrGradeNotFound.Error()}),
		},
		{
			name: "unknown bulletin", method: http.MethodPut, path: "/api/bulletins/unknown/grades", body: grades(testutil.GradeInput("math", 10, 1)),
			token: token, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: bulletin.ErrNotFound.Error()}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if avg, ok := tt.extra.(float64); ok {
				got, err := env.Svc.Get(ctx, b.ID)
				require.NoError(t, err)
				checkCodeAndData(t, httpTest{wantCode: tt.wantCode, wantData: marchallObj(t, got)}, rec)
				require.NotNil(t, got.GeneralAverage)
				assert.Equal(t, avg, *got.GeneralAverage)
			}
		})
	}
}

func Test_bulletinApi_query(t *testing.T) {
	app, env := setup(t)
	token := getToken(t, env.Conf, "director-3", RoleDirector)

	s1 := testutil.CreateBulletin(t, env.Svc, "s1", testutil.GradeInput("math", 12, 1))
	s2 := testutil.CreateBulletin(t, env.Svc, "s2", testutil.GradeInput("math", 15, 1))
	testutil.CreateBulletin(t, env.Svc, "s3", testutil.GradeInput("math", 9, 1))
	testutil.MoveTo(t, env.Svc, s1.ID, bulletin.StatusPending)
	testutil.MoveTo(t, env.Svc, s2.ID, bulletin.StatusApproved)

	path := func(base string, params ...string) string {
		v := make(url.Values)
		for i := 0; i+1 < len(params); i += 2 {
			v.Add(params[i], params[i+1])
		}
		if len(v) == 0 {
			return base
		}
		return base + "?" + v.Encode()
	}

	tests := []httpTest{
		{name: "all", path: path("/api/bulletins", "ordering", "student_id"), extra: []string{"s1", "s2", "s3"}},
		{name: "descending", path: path("/api/bulletins", "ordering", "-student_id"), extra: []string{"s3", "s2", "s1"}},
		{name: "by rank", path: path("/api/bulletins", "ordering", "class_rank"), extra: []string{"s2", "s1", "s3"}},
		{name: "status filter", path: path("/api/bulletins", "status", "approved"), extra: []string{"s2"}},
		{name: "status route", path: "/api/bulletins/status/pending", extra: []string{"s1"}},
		{name: "pending alias", path: "/api/bulletins/pending", extra: []string{"s1"}},
		{name: "class filter (empty)", path: path("/api/bulletins", "class_id", "6B"), extra: []string{}},
		{name: "student filter", path: path("/api/bulletins", "student_id", "s3"), extra: []string{"s3"}},
		{name: "limit", path: path("/api/bulletins", "ordering", "student_id", "limit", "2"), extra: []string{"s1", "s2"}},
		{name: "offset", path: path("/api/bulletins", "ordering", "student_id", "offset", "1"), extra: []string{"s2", "s3"}},
		{name: "unknown ordering field ignored", path: path("/api/bulletins", "ordering", "password,student_id"), extra: []string{"s1", "s2", "s3"}},
		{
			name: "invalid status", path: "/api/bulletins/status/archived",
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"status": "invalid bulletin status"}),
		},
		{
			name: "invalid limit", path: path("/api/bulletins", "limit", "ten"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"limit": "must be a positive integer"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, token)
			app.ServeHTTP(rec, req)

			if want, ok := tt.extra.([]string); ok {
				require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
				assert.Equal(t, want, studentIDs(t, rec.Body.Bytes()))
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("retrieve", func(t *testing.T) {
		got, err := env.Svc.Get(context.Background(), s2.ID)
		require.NoError(t, err)

		req, rec := newAuthRequest(http.MethodGet, "/api/bulletins/"+s2.ID, token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, got)}, rec)
	})
}

func Test_bulletinApi_verify(t *testing.T) {
	app, env := setup(t)
	ctx := context.Background()
	parentToken := getToken(t, env.Conf, "parent-1", RoleParent)

	b := testutil.CreateBulletin(t, env.Svc, "s1", testutil.GradeInput("math", 14, 2))
	b = testutil.MoveTo(t, env.Svc, b.ID, bulletin.StatusApproved)

	want, err := env.Svc.Track(ctx, b.TrackingNumber)
	require.NoError(t, err)
	first, again := want, want
	first.FirstVerification = true

	notFound := marchallObj(t, httpErr{Error: bulletin.ErrNotFound.Error()})
	verify := func(field, value string) []byte { return marchallObj(t, map[string]string{field: value}) }

	tests := []httpTest{
		{
			name: "teacher forbidden", method: http.MethodPost, path: "/api/bulletins/verify", body: verify("verification_code", b.VerificationCode),
			token: getToken(t, env.Conf, "teacher-7", RoleTeacher), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "code required", method: http.MethodPost, path: "/api/bulletins/verify", token: parentToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"qr_code": "this field is required", "verification_code": "this field is required"}),
		},
		{
			name: "unknown code", method: http.MethodPost, path: "/api/bulletins/verify", body: verify("verification_code", "AAAA-BBBB-CCCC"),
			token: parentToken, wantCode: http.StatusNotFound, wantData: notFound,
		},
		{
			name: "forged QR code", method: http.MethodPost, path: "/api/bulletins/verify", body: verify("qr_code", b.QRCode+"x"),
			token: parentToken, wantCode: http.StatusUnprocessableEntity, wantData: marchallObj(t, httpErr{Error: bulletin.ErrVerificationFailed.Error()}),
		},
		{
			name: "first verification", method: http.MethodPost, path: "/api/bulletins/verify", body: verify("verification_code", b.VerificationCode),
			token: parentToken, wantCode: http.StatusOK, wantData: marchallObj(t, first),
		},
		{
			name: "verification by QR code", method: http.MethodPost, path: "/api/bulletins/verify", body: verify("qr_code", b.QRCode),
			token: parentToken, wantCode: http.StatusOK, wantData: marchallObj(t, again),
		},
		{
			name: "track", method: http.MethodGet, path: "/api/bulletins/track/" + b.TrackingNumber,
			token: parentToken, wantCode: http.StatusOK, wantData: marchallObj(t, want),
		},
		{
			name: "track unknown", method: http.MethodGet, path: "/api/bulletins/track/BUL-2026-AAAAAAAAAA",
			token: parentToken, wantCode: http.StatusNotFound, wantData: notFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			req.Header.Set("User-Agent", "educafric-test")
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	got, err := env.Svc.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.ParentVerified)
	assert.False(t, got.ParentVerifiedAt.IsZero())

	attempts := env.DB.Verifications()
	require.Len(t, attempts, 4)
	var successes int
	for _, a := range attempts {
		assert.Equal(t, "parent-1", a.ParentID)
		assert.Equal(t, "educafric-test", a.UserAgent)
		if a.Success {
			successes++
		}
	}
	assert.Equal(t, 2, successes)
}

func Test_bulletinApi_import(t *testing.T) {
	app, env := setup(t)
	token := getToken(t, env.Conf, "teacher-7", RoleTeacher)

	sheet := func(t *testing.T) []byte {
		f := excelize.NewFile()
		defer func() { _ = f.Close() }()
		rows := [][]interface{}{
			{"student_id", "subject_id", "grade", "coefficient"},
			{"s1", "math", 15, 2},
			{"s1", "french", 10, 1},
			{"s2", "math", 8, 2},
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
		}
		buf, err := f.WriteToBuffer()
		require.NoError(t, err)
		return buf.Bytes()
	}

	upload := func(t *testing.T, fields map[string]string, file []byte) (*http.Request, *httptest.ResponseRecorder) {
		body := new(bytes.Buffer)
		w := multipart.NewWriter(body)
		for k, v := range fields {
			require.NoError(t, w.WriteField(k, v))
		}
		if file != nil {
			part, err := w.CreateFormFile("file", "6A-T1.xlsx")
			require.NoError(t, err)
			_, err = part.Write(file)
			require.NoError(t, err)
		}
		require.NoError(t, w.Close())

		req, rec := newAuthRequest(http.MethodPost, "/api/bulletins/import", token, body.Bytes())
		req.Header.Set("Content-Type", w.FormDataContentType())
		return req, rec
	}

	key := map[string]string{"class_id": "6A", "term_id": "T1", "academic_year_id": "2025-2026", "school_id": "school-1"}

	tests := []struct {
		name     string
		fields   map[string]string
		file     []byte
		wantCode int
		wantData []byte
	}{
		{
			name: "file required", fields: key, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"file": "this field is required"}),
		},
		{
			name: "not a workbook", fields: key, file: []byte("student_id;grade"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"file": "not a valid .xlsx file"}),
		},
		{
			name: "class required", fields: map[string]string{"term_id": "T1", "academic_year_id": "2025-2026"}, file: sheet(t),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"class_id": "this field is required"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := upload(t, tt.fields, tt.file)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, httpTest{wantCode: tt.wantCode, wantData: tt.wantData}, rec)
		})
	}

	t.Run("import", func(t *testing.T) {
		req, rec := upload(t, key, sheet(t))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var report bulletin.ImportReport
		unmarshall(t, rec, &report)
		assert.Equal(t, 2, report.Created)
		assert.Equal(t, 0, report.Updated)
		assert.Equal(t, 3, report.Grades)
		assert.Empty(t, report.Skipped)
		assert.Len(t, report.Bulletins, 2)

		bulletins, err := env.Svc.Query(context.Background(), bulletin.QueryFilter{StudentID: "s1"}, nil, core.DBPage{})
		require.NoError(t, err)
		require.Len(t, bulletins, 1)
		require.NotNil(t, bulletins[0].GeneralAverage)
		assert.Equal(t, 13.33, *bulletins[0].GeneralAverage)
		assert.Equal(t, 1, bulletins[0].ClassRank)
	})
}
