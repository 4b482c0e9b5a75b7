package echoapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/baraza/core/course"
	"github.com/trezcool/baraza/core/discussion"
	"github.com/trezcool/baraza/core/group"
	"github.com/trezcool/baraza/core/guest"
	"github.com/trezcool/baraza/core/identity"
	"github.com/trezcool/baraza/tests"
)

func Test_auth(t *testing.T) {
	env, app := newServer(t)
	room := testutil.NewClassroom(t, env)
	other := testutil.CreateProfile(t, env, identity.RoleTeacher, "Other Teacher")
	outsider := testutil.CreateProfile(t, env, identity.RoleStudent, "Outsider")
	ghost := identity.Profile{ID: "ghost", Role: identity.RoleTeacher, DisplayName: "Ghost"}
	newCourse := marchallObj(t, course.NewCourse{Title: "Networks"})

	tests := []httpTest{
		{name: "Auth required", method: http.MethodPost, path: "/v1/courses", body: newCourse, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Invalid jwt", method: http.MethodPost, path: "/v1/courses", body: newCourse, token: "abc.def.ghi", wantCode: http.StatusUnauthorized},
		{
			name: "Unknown profile", method: http.MethodPost, path: "/v1/courses", body: newCourse, token: getToken(t, env, ghost),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "authentication required"}),
		},
		{
			name: "Unknown guest session", method: http.MethodPost, path: "/v1/courses", body: newCourse, token: guest.SessionTokenPrefix + "nope",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "authentication required"}),
		},
		{
			name: "Staff required", method: http.MethodPost, path: "/v1/courses", body: newCourse, token: getToken(t, env, room.Leader()),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "unauthorized"}),
		},
		{
			name: "Owner required", path: "/v1/activities/" + room.Activity.ID, token: getToken(t, env, other),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "unauthorized"}),
		},
		{name: "Member of the activity", path: "/v1/activities/" + room.Activity.ID, token: getToken(t, env, room.Leader()), wantCode: http.StatusOK},
		{
			name: "Student outside the activity", path: "/v1/activities/" + room.Activity.ID, token: getToken(t, env, outsider),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "unauthorized"}),
		},
		{name: "Teacher", method: http.MethodPost, path: "/v1/courses", body: newCourse, token: getToken(t, env, other), wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, do(app, tt))
		})
	}
}

func Test_courseApi(t *testing.T) {
	env, app := newServer(t)
	room := testutil.NewClassroom(t, env)
	teacherToken := getToken(t, env, room.Teacher)
	studentToken := getToken(t, env, room.Leader())

	twoCorrect := course.NewQuestion{
		Title:  "Q",
		Prompt: "P",
		Choices: course.Choices{
			A: course.Choice{Text: "a", IsCorrect: true},
			B: course.Choice{Text: "b", IsCorrect: true},
			C: course.Choice{Text: "c"},
			D: course.Choice{Text: "d"},
		},
	}

	tests := []httpTest{
		{
			name: "Title required", method: http.MethodPost, path: "/v1/courses", body: marchallObj(t, course.NewCourse{Title: "  "}), token: teacherToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"title": "this field is required"}),
		},
		{
			name: "One correct choice", method: http.MethodPost, path: "/v1/courses/" + room.Course.ID + "/questions", body: marchallObj(t, twoCorrect), token: teacherToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"choices": "Exactly one choice must be marked as correct"}),
		},
		{name: "Teacher sees the answer key", path: "/v1/questions/" + room.Question.ID, token: teacherToken, wantCode: http.StatusOK, wantData: marchallObj(t, room.Question)},
		{name: "Student does not", path: "/v1/questions/" + room.Question.ID, token: studentToken, wantCode: http.StatusOK, wantData: marchallObj(t, room.Question.Public())},
		{
			name: "Unknown question", path: "/v1/questions/nope", token: studentToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "question not found"}),
		},
		{name: "Activities of the course", path: "/v1/courses/" + room.Course.ID + "/activities", token: teacherToken, wantCode: http.StatusOK},
		{name: "My courses", path: "/v1/courses", token: teacherToken, wantCode: http.StatusOK, wantData: marchallObj(t, []course.Course{room.Course})},
		{name: "Courses are for staff", path: "/v1/courses", token: studentToken, wantCode: http.StatusForbidden},
		{
			name: "Rename course", method: http.MethodPut, path: "/v1/courses/" + room.Course.ID, body: marchallObj(t, course.UpdateCourse{Title: "Algorithms"}), token: teacherToken,
			wantCode: http.StatusOK,
		},
		{
			name: "Question asked by an activity", method: http.MethodDelete, path: "/v1/questions/" + room.Question.ID, token: teacherToken,
			wantCode: http.StatusConflict, wantData: marchallObj(t, stateErr{Error: "question is used by an activity", Kind: "state"}),
		},
		{name: "Delete course", method: http.MethodDelete, path: "/v1/courses/" + room.Course.ID, token: teacherToken, wantCode: http.StatusNoContent},
		{
			name: "Deleted question", path: "/v1/questions/" + room.Question.ID, token: teacherToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "question not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, do(app, tt))
		})
	}
}

func Test_discussionApi(t *testing.T) {
	env, app := newServer(t)
	room := testutil.NewClassroom(t, env)
	teacherToken := getToken(t, env, room.Teacher)
	leaderToken := getToken(t, env, room.Leader())
	roundsPath := "/v1/activities/" + room.Activity.ID + "/questions/" + room.Question.ID + "/rounds"

	rec := do(app, httpTest{path: roundsPath + "/current", token: leaderToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("current round: code = %v; body %s", rec.Code, rec.Body.String())
	}
	var rnd struct {
		ID string `json:"id"`
	}
	unmarshal(t, rec, &rnd)

	message := func(content string) []byte {
		return marchallObj(t, discussion.NewMessage{
			ActivityID: room.Activity.ID,
			QuestionID: room.Question.ID,
			GroupID:    room.Group.ID,
			RoundID:    rnd.ID,
			Content:    content,
		})
	}

	rec = do(app, httpTest{method: http.MethodPost, path: "/v1/messages", token: leaderToken, body: message("I pick B because the loop uses <= on the length.")})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create message: code = %v; body %s", rec.Code, rec.Body.String())
	}
	created := json.RawMessage(rec.Body.Bytes())

	tests := []httpTest{
		{
			name: "Too short", method: http.MethodPost, path: "/v1/messages", token: getToken(t, env, room.Students[1]), body: message("B it is"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"content": "Message must be at least 20 characters (currently 7)"}),
		},
		{
			name: "Students only", method: http.MethodPost, path: "/v1/messages", token: teacherToken, body: message("I pick B because the loop uses <= on the length."),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "unauthorized"}),
		},
		{
			name: "Duplicate", method: http.MethodPost, path: "/v1/messages", token: leaderToken, body: message("Second thoughts: it might be A after all."),
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, echo.Map{"error": "you have already posted in this round", "kind": "conflict", "data": created}),
		},
		{
			name: "Preview", method: http.MethodPost, path: "/v1/content/validate", token: leaderToken,
			body:     marchallObj(t, discussion.Preview{RoundID: rnd.ID, Content: "nope"}),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, echo.Map{
				"accepted":    false,
				"reason":      "Message must be at least 20 characters (currently 4)",
				"diagnostics": echo.Map{"len": 4, "keyword_hits": nil, "has_causality": false, "has_example": false, "has_boundary": false, "has_if_then": false},
			}),
		},
		{name: "Messages of the round", path: "/v1/groups/" + room.Group.ID + "/rounds/" + rnd.ID + "/messages", token: teacherToken, wantCode: http.StatusOK, wantData: []byte("[" + string(created) + "]")},
		{
			name: "Choice", method: http.MethodPost, path: "/v1/choices", token: leaderToken,
			body:     marchallObj(t, discussion.NewChoice{ActivityID: room.Activity.ID, QuestionID: room.Question.ID, GroupID: room.Group.ID, Choice: "b"}),
			wantCode: http.StatusOK,
		},
		{name: "End round", method: http.MethodPost, path: "/v1/rounds/" + rnd.ID + "/end", token: teacherToken, wantCode: http.StatusOK},
		{
			name: "End round again", method: http.MethodPost, path: "/v1/rounds/" + rnd.ID + "/end", token: teacherToken,
			wantCode: http.StatusConflict, wantData: marchallObj(t, stateErr{Error: "round is already closed", Kind: "state"}),
		},
		{
			name: "Round closed", method: http.MethodPost, path: "/v1/messages", token: getToken(t, env, room.Students[2]), body: message("I pick B because the loop uses <= on the length."),
			wantCode: http.StatusConflict, wantData: marchallObj(t, stateErr{Error: "This round is not open for submissions", Kind: "state"}),
		},
		{
			name: "No current round", path: roundsPath + "/current", token: leaderToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "open round not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, do(app, tt))
		})
	}
}

func Test_groupApi_submitFinal(t *testing.T) {
	env, app := newServer(t)
	room := testutil.NewClassroom(t, env)
	path := "/v1/groups/" + room.Group.ID + "/final"
	leaderToken := getToken(t, env, room.Leader())
	final := func(activityID string) []byte {
		return marchallObj(t, echo.Map{
			"activity_id": activityID,
			"question_id": room.Question.ID,
			"choice":      "b",
			"rationale":   testutil.Rationale,
		})
	}

	tests := []httpTest{
		{
			name: "Activity required", method: http.MethodPost, path: path, token: leaderToken, body: final(""),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"activity_id": "this field is required"}),
		},
		{
			name: "Rounds still open", method: http.MethodPost, path: path, token: leaderToken, body: final(room.Activity.ID),
			wantCode: http.StatusConflict, wantData: marchallObj(t, stateErr{Error: "rounds are still open for this question", Kind: "state"}),
		},
		{
			name: "Leader only", method: http.MethodPost, path: path, token: getToken(t, env, room.Students[1]), body: final(room.Activity.ID),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "unauthorized"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, do(app, tt))
		})
	}

	ctx := context.Background()
	rnd, err := env.Svcs.Rounds.GetOpen(ctx, room.Activity.ID, room.Question.ID)
	if err != nil {
		t.Fatalf("getting open round: %v", err)
	}
	if _, err = env.Svcs.Rounds.End(ctx, room.Teacher.Identity(), rnd.ID); err != nil {
		t.Fatalf("ending round: %v", err)
	}
	rec := do(app, httpTest{method: http.MethodPost, path: path, token: leaderToken, body: final(room.Activity.ID)})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit final: code = %v; body %s", rec.Code, rec.Body.String())
	}
	var grp group.Group
	unmarshal(t, rec, &grp)
	fa, ok := grp.FinalAnswer(room.Question.ID)
	if !ok || fa.Choice != course.ChoiceB {
		t.Errorf("final answer = %+v, %v", fa, ok)
	}

	rec = do(app, httpTest{method: http.MethodPost, path: path, token: leaderToken, body: final(room.Activity.ID)})
	if rec.Code != http.StatusConflict {
		t.Errorf("second submit: code = %v; want %v", rec.Code, http.StatusConflict)
	}
}

func Test_guestApi(t *testing.T) {
	env, app := newServer(t)
	room := testutil.NewClassroom(t, env)
	teacherToken := getToken(t, env, room.Teacher)
	activityPath := "/v1/activities/" + room.Activity.ID

	rec := do(app, httpTest{method: http.MethodPost, path: activityPath + "/invitations", token: teacherToken, body: []byte(`{"max_uses": 1}`)})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create invitation: code = %v; body %s", rec.Code, rec.Body.String())
	}
	var inv guest.Invitation
	unmarshal(t, rec, &inv)

	join := func(number string) []byte {
		return marchallObj(t, guest.JoinRequest{Token: inv.Token, StudentNumber: number, DisplayName: "Guest " + number})
	}
	rec = do(app, httpTest{method: http.MethodPost, path: "/v1/join", body: join("G-1")})
	if rec.Code != http.StatusCreated {
		t.Fatalf("join: code = %v; body %s", rec.Code, rec.Body.String())
	}
	var joined guest.Joined
	unmarshal(t, rec, &joined)

	tests := []httpTest{
		{
			name: "Token required", method: http.MethodPost, path: "/v1/join", body: []byte(`{"student_number": "G-2", "display_name": "G"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"token": "this field is required"}),
		},
		{
			name: "Used up", method: http.MethodPost, path: "/v1/join", body: join("G-2"),
			wantCode: http.StatusConflict, wantData: marchallObj(t, stateErr{Error: "invitation has reached its maximum number of uses", Kind: "state"}),
		},
		{name: "Guest sees the activity", path: activityPath, token: joined.Token, wantCode: http.StatusOK},
		{
			name: "Guest is not staff", path: activityPath + "/sessions", token: joined.Token,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "unauthorized"}),
		},
		{
			name: "Not grouped yet", path: activityPath + "/groups/mine", token: joined.Token,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "group not found"}),
		},
		{name: "Auto assign", method: http.MethodPost, path: activityPath + "/groups/auto", token: teacherToken, body: []byte(`{"group_size": 2}`), wantCode: http.StatusCreated},
		{name: "Grouped", path: activityPath + "/groups/mine", token: joined.Token, wantCode: http.StatusOK},
		{
			name: "Nobody left", method: http.MethodPost, path: activityPath + "/groups/auto", token: teacherToken,
			wantCode: http.StatusCreated, wantData: []byte(`[]`),
		},
		{name: "Revoke session", method: http.MethodDelete, path: "/v1/sessions/" + joined.Session.ID, token: teacherToken, wantCode: http.StatusNoContent},
		{
			name: "Revoked", path: activityPath, token: joined.Token,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "authentication required"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, do(app, tt))
		})
	}
}
