package app_test

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Тестовые структуры данных соответствующие API
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type LoginResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	User      UserResponse `json:"user"`
}

type TeamResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ProjectResponse struct {
	ID     string `json:"id"`
	TeamID string `json:"team_id"`
	Name   string `json:"name"`
}

type TaskResponse struct {
	ID         string  `json:"id"`
	ProjectID  string  `json:"project_id"`
	Title      string  `json:"title"`
	Status     string  `json:"status"`
	Priority   string  `json:"priority"`
	AssigneeID *string `json:"assignee_id"`
}

type CommentResponse struct {
	ID       string `json:"id"`
	TaskID   string `json:"task_id"`
	AuthorID string `json:"author_id"`
	Body     string `json:"body"`
}

type ActivityResponse struct {
	ID         int64          `json:"id"`
	Seq        int64          `json:"seq"`
	ProjectID  string         `json:"project_id"`
	ActorID    string         `json:"actor_id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Summary    map[string]any `json:"summary"`
}

type ActivityListResponse struct {
	Activity []ActivityResponse `json:"activity"`
}

type TaskListResponse struct {
	Tasks []TaskResponse `json:"tasks"`
}

type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type StreamMessage struct {
	Type string           `json:"type"`
	Data ActivityResponse `json:"data"`
}

// TestE2E_TaskLifecycle тестирует основной сценарий: команда, проект, задача и журнал активности
func TestE2E_TaskLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	env := SetupTestEnvironment(t)
	defer env.Cleanup(t)
	env.WaitForHealthCheck(t)

	aliceID, alice := env.RegisterAndLogin(t, "alice@x.com", "pw1")
	bobID, bob := env.RegisterAndLogin(t, "bob@x.com", "pw2")

	var team TeamResponse
	env.DoJSON(t, http.MethodPost, "/teams", map[string]string{"name": "Eng"}, alice, http.StatusCreated, &team)

	var project ProjectResponse
	env.DoJSON(t, http.MethodPost, "/projects", map[string]string{
		"team_id": team.ID,
		"name":    "Launch",
	}, alice, http.StatusCreated, &project)
	assert.Equal(t, team.ID, project.TeamID)

	var task TaskResponse
	t.Run("Create Task", func(t *testing.T) {
		env.DoJSON(t, http.MethodPost, "/tasks", map[string]string{
			"project_id": project.ID,
			"title":      "Write spec",
		}, alice, http.StatusCreated, &task)

		assert.Equal(t, "todo", task.Status)
		assert.Equal(t, "medium", task.Priority)

		var log ActivityListResponse
		env.DoJSON(t, http.MethodGet, "/projects/"+project.ID+"/activity", nil, alice, http.StatusOK, &log)
		require.Len(t, log.Activity, 1)
		assert.Equal(t, "task_created", log.Activity[0].Action)
		assert.Equal(t, aliceID, log.Activity[0].ActorID)
		assert.Equal(t, task.ID, log.Activity[0].EntityID)
	})

	t.Run("Update Task Status", func(t *testing.T) {
		var updated TaskResponse
		env.DoJSON(t, http.MethodPatch, "/tasks/"+task.ID, map[string]string{
			"status": "in_progress",
		}, alice, http.StatusOK, &updated)
		assert.Equal(t, "in_progress", updated.Status)

		var log ActivityListResponse
		env.DoJSON(t, http.MethodGet, "/projects/"+project.ID+"/activity", nil, alice, http.StatusOK, &log)
		require.Len(t, log.Activity, 2)
		assert.Equal(t, "task_updated", log.Activity[0].Action)
		assert.Equal(t, "todo", log.Activity[0].Summary["status_from"])
		assert.Equal(t, "in_progress", log.Activity[0].Summary["status_to"])
	})

	t.Run("Non Member Is Forbidden", func(t *testing.T) {
		var errResp ErrorResponse
		env.DoJSON(t, http.MethodGet, "/projects/"+project.ID, nil, bob, http.StatusForbidden, &errResp)
		assert.Equal(t, "FORBIDDEN", errResp.Error.Code)

		env.DoJSON(t, http.MethodPatch, "/tasks/"+task.ID, map[string]string{
			"status": "done",
		}, bob, http.StatusForbidden, nil)
	})

	t.Run("Assignee Must Be Team Member", func(t *testing.T) {
		var errResp ErrorResponse
		env.DoJSON(t, http.MethodPatch, "/tasks/"+task.ID, map[string]string{
			"assignee_id": bobID,
		}, alice, http.StatusBadRequest, &errResp)
		assert.Equal(t, "VALIDATION_ERROR", errResp.Error.Code)

		env.DoJSON(t, http.MethodPost, "/teams/"+team.ID+"/members", map[string]string{
			"user_id": bobID,
		}, alice, http.StatusCreated, nil)

		var updated TaskResponse
		env.DoJSON(t, http.MethodPatch, "/tasks/"+task.ID, map[string]string{
			"assignee_id": bobID,
		}, alice, http.StatusOK, &updated)
		require.NotNil(t, updated.AssigneeID)
		assert.Equal(t, bobID, *updated.AssigneeID)
	})

	t.Run("Filter Tasks", func(t *testing.T) {
		env.DoJSON(t, http.MethodPost, "/tasks", map[string]string{
			"project_id": project.ID,
			"title":      "Book venue",
			"priority":   "high",
			"due_date":   "2020-01-01T00:00:00Z",
		}, alice, http.StatusCreated, nil)

		var mine TaskListResponse
		env.DoJSON(t, http.MethodGet, "/tasks?assignee=me", nil, bob, http.StatusOK, &mine)
		require.Len(t, mine.Tasks, 1)
		assert.Equal(t, task.ID, mine.Tasks[0].ID)

		var high TaskListResponse
		env.DoJSON(t, http.MethodGet, "/tasks?project_id="+project.ID+"&priority=high", nil, alice, http.StatusOK, &high)
		require.Len(t, high.Tasks, 1)
		assert.Equal(t, "Book venue", high.Tasks[0].Title)

		var overdue TaskListResponse
		env.DoJSON(t, http.MethodGet, "/tasks?due_before=2020-01-01", nil, alice, http.StatusOK, &overdue)
		require.Len(t, overdue.Tasks, 1)

		env.DoJSON(t, http.MethodGet, "/tasks?status=blocked", nil, alice, http.StatusBadRequest, nil)
	})

	t.Run("Comments", func(t *testing.T) {
		var comment CommentResponse
		env.DoJSON(t, http.MethodPost, "/tasks/"+task.ID+"/comments", map[string]string{
			"body": "Draft is ready",
		}, bob, http.StatusCreated, &comment)
		assert.Equal(t, bobID, comment.AuthorID)

		// Чужой комментарий удалить нельзя
		env.DoJSON(t, http.MethodDelete, "/tasks/"+task.ID+"/comments/"+comment.ID, nil, alice, http.StatusForbidden, nil)
		env.DoJSON(t, http.MethodDelete, "/tasks/"+task.ID+"/comments/"+comment.ID, nil, bob, http.StatusNoContent, nil)
	})

	t.Run("Delete Task Keeps Activity", func(t *testing.T) {
		env.DoJSON(t, http.MethodDelete, "/tasks/"+task.ID, nil, alice, http.StatusNoContent, nil)
		env.DoJSON(t, http.MethodGet, "/tasks/"+task.ID, nil, alice, http.StatusNotFound, nil)

		var log ActivityListResponse
		env.DoJSON(t, http.MethodGet, "/projects/"+project.ID+"/activity", nil, alice, http.StatusOK, &log)
		require.NotEmpty(t, log.Activity)
		assert.Equal(t, "task_deleted", log.Activity[0].Action)
		assert.Equal(t, task.ID, log.Activity[0].EntityID)
	})
}

// TestE2E_ErrorMapping проверяет HTTP статусы таксономии ошибок
func TestE2E_ErrorMapping(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	env := SetupTestEnvironment(t)
	defer env.Cleanup(t)
	env.WaitForHealthCheck(t)

	_, token := env.RegisterAndLogin(t, "carol@x.com", "secret")

	t.Run("Missing Token", func(t *testing.T) {
		var errResp ErrorResponse
		env.DoJSON(t, http.MethodGet, "/users/me", nil, "", http.StatusUnauthorized, &errResp)
		assert.Equal(t, "UNAUTHORIZED", errResp.Error.Code)
	})

	t.Run("Wrong Password", func(t *testing.T) {
		env.DoJSON(t, http.MethodPost, "/auth/login", map[string]string{
			"email":    "carol@x.com",
			"password": "nope",
		}, "", http.StatusUnauthorized, nil)
	})

	t.Run("Duplicate Email", func(t *testing.T) {
		var errResp ErrorResponse
		env.DoJSON(t, http.MethodPost, "/auth/register", map[string]string{
			"email":    "CAROL@x.com",
			"password": "other",
		}, "", http.StatusConflict, &errResp)
		assert.Equal(t, "CONFLICT", errResp.Error.Code)
	})

	t.Run("Malformed Body", func(t *testing.T) {
		resp := env.MakeRequest(t, http.MethodPost, "/teams", bytes.NewReader([]byte(`{"name":`)), token)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Unknown Task", func(t *testing.T) {
		var errResp ErrorResponse
		env.DoJSON(t, http.MethodGet, "/tasks/7a9d1c3e-0000-4000-8000-000000000000", nil, token, http.StatusNotFound, &errResp)
		assert.Equal(t, "NOT_FOUND", errResp.Error.Code)
	})

	t.Run("Admin Only", func(t *testing.T) {
		env.DoJSON(t, http.MethodGet, "/users", nil, token, http.StatusForbidden, nil)
	})
}

// TestE2E_ActivityIsAppendOnly проверяет, что БД запрещает изменение журнала
func TestE2E_ActivityIsAppendOnly(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	env := SetupTestEnvironment(t)
	defer env.Cleanup(t)
	env.WaitForHealthCheck(t)

	_, token := env.RegisterAndLogin(t, "dave@x.com", "secret")

	var team TeamResponse
	env.DoJSON(t, http.MethodPost, "/teams", map[string]string{"name": "Ops"}, token, http.StatusCreated, &team)
	var project ProjectResponse
	env.DoJSON(t, http.MethodPost, "/projects", map[string]string{"team_id": team.ID, "name": "Infra"}, token, http.StatusCreated, &project)
	env.DoJSON(t, http.MethodPost, "/tasks", map[string]string{"project_id": project.ID, "title": "Rotate keys"}, token, http.StatusCreated, nil)

	_, err := env.DB.Exec(t.Context(), `UPDATE activity_logs SET action = 'tampered'`)
	require.Error(t, err)

	_, err = env.DB.Exec(t.Context(), `DELETE FROM activity_logs`)
	require.Error(t, err)

	// Удаление проекта не затрагивает журнал
	env.DoJSON(t, http.MethodDelete, "/projects/"+project.ID, nil, token, http.StatusNoContent, nil)

	var count int
	require.NoError(t, env.DB.QueryRow(t.Context(),
		`SELECT COUNT(*) FROM activity_logs WHERE project_id = $1`, project.ID,
	).Scan(&count))
	assert.Equal(t, 2, count)
}

// TestE2E_ActivityStream проверяет доставку событий по WebSocket
func TestE2E_ActivityStream(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	env := SetupTestEnvironment(t)
	defer env.Cleanup(t)
	env.WaitForHealthCheck(t)

	_, token := env.RegisterAndLogin(t, "erin@x.com", "secret")

	var team TeamResponse
	env.DoJSON(t, http.MethodPost, "/teams", map[string]string{"name": "Web"}, token, http.StatusCreated, &team)
	var project ProjectResponse
	env.DoJSON(t, http.MethodPost, "/projects", map[string]string{"team_id": team.ID, "name": "Site"}, token, http.StatusCreated, &project)

	streamURL := "ws" + strings.TrimPrefix(env.BaseURL, "http") +
		"/projects/" + project.ID + "/activity/stream?access_token=" + url.QueryEscape(token)

	conn, resp, err := websocket.DefaultDialer.Dial(streamURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "subscribed", msg.Type)

	var task TaskResponse
	env.DoJSON(t, http.MethodPost, "/tasks", map[string]string{"project_id": project.ID, "title": "Ship it"}, token, http.StatusCreated, &task)

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "activity", msg.Type)
	assert.Equal(t, "task_created", msg.Data.Action)
	assert.Equal(t, task.ID, msg.Data.EntityID)
	assert.Equal(t, project.ID, msg.Data.ProjectID)
}

// TestE2E_RemoveMemberUnassignsTasks проверяет, что исключенный участник снимается с задач команды
func TestE2E_RemoveMemberUnassignsTasks(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	env := SetupTestEnvironment(t)
	defer env.Cleanup(t)
	env.WaitForHealthCheck(t)

	aliceID, alice := env.RegisterAndLogin(t, "alice@x.com", "pw1")
	bobID, _ := env.RegisterAndLogin(t, "bob@x.com", "pw2")

	var team TeamResponse
	env.DoJSON(t, http.MethodPost, "/teams", map[string]string{"name": "Eng"}, alice, http.StatusCreated, &team)
	var project ProjectResponse
	env.DoJSON(t, http.MethodPost, "/projects", map[string]string{"team_id": team.ID, "name": "Launch"}, alice, http.StatusCreated, &project)
	env.DoJSON(t, http.MethodPost, "/teams/"+team.ID+"/members", map[string]string{"user_id": bobID}, alice, http.StatusCreated, nil)

	var task TaskResponse
	env.DoJSON(t, http.MethodPost, "/tasks", map[string]string{
		"project_id":  project.ID,
		"title":       "Write spec",
		"assignee_id": bobID,
	}, alice, http.StatusCreated, &task)
	require.NotNil(t, task.AssigneeID)

	env.DoJSON(t, http.MethodDelete, "/teams/"+team.ID+"/members/"+bobID, nil, alice, http.StatusNoContent, nil)

	var got TaskResponse
	env.DoJSON(t, http.MethodGet, "/tasks/"+task.ID, nil, alice, http.StatusOK, &got)
	assert.Nil(t, got.AssigneeID)

	var mine TaskListResponse
	env.DoJSON(t, http.MethodGet, "/tasks?assignee="+bobID, nil, alice, http.StatusOK, &mine)
	assert.Empty(t, mine.Tasks)

	var log ActivityListResponse
	env.DoJSON(t, http.MethodGet, "/projects/"+project.ID+"/activity", nil, alice, http.StatusOK, &log)
	require.Len(t, log.Activity, 2)
	assert.Equal(t, "task_updated", log.Activity[0].Action)
	assert.Equal(t, task.ID, log.Activity[0].EntityID)
	assert.Equal(t, aliceID, log.Activity[0].ActorID)
	assert.Equal(t, []any{"assignee_id"}, log.Activity[0].Summary["changes"])
	assert.Equal(t, int64(2), log.Activity[0].Seq)
	assert.Equal(t, int64(1), log.Activity[1].Seq)
}

// TestE2E_DeleteTeamLogsProjects проверяет, что удаление команды оставляет project_deleted в журнале каждого проекта
func TestE2E_DeleteTeamLogsProjects(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	env := SetupTestEnvironment(t)
	defer env.Cleanup(t)
	env.WaitForHealthCheck(t)

	_, owner := env.RegisterAndLogin(t, "owner@x.com", "pw1")
	rootID, root := env.RegisterAndLogin(t, "root@x.com", "pw2")
	_, err := env.DB.Exec(t.Context(), `UPDATE users SET role = 'admin' WHERE id = $1`, rootID)
	require.NoError(t, err)

	var team TeamResponse
	env.DoJSON(t, http.MethodPost, "/teams", map[string]string{"name": "Ops"}, owner, http.StatusCreated, &team)

	projectIDs := make([]string, 0, 2)
	for _, name := range []string{"Infra", "Billing"} {
		var project ProjectResponse
		env.DoJSON(t, http.MethodPost, "/projects", map[string]string{"team_id": team.ID, "name": name}, owner, http.StatusCreated, &project)
		projectIDs = append(projectIDs, project.ID)
	}
	env.DoJSON(t, http.MethodPost, "/tasks", map[string]string{"project_id": projectIDs[0], "title": "Rotate keys"}, owner, http.StatusCreated, nil)

	env.DoJSON(t, http.MethodDelete, "/teams/"+team.ID, nil, root, http.StatusNoContent, nil)
	env.DoJSON(t, http.MethodGet, "/projects/"+projectIDs[0], nil, owner, http.StatusNotFound, nil)

	for _, projectID := range projectIDs {
		var (
			action  string
			actorID string
			seq     int64
		)
		require.NoError(t, env.DB.QueryRow(t.Context(), `
			SELECT action, actor_id::text, seq FROM activity_logs
			WHERE project_id = $1 ORDER BY seq DESC LIMIT 1`, projectID,
		).Scan(&action, &actorID, &seq))
		assert.Equal(t, "project_deleted", action)
		assert.Equal(t, rootID, actorID)
	}

	// Задачи удаляются каскадом без отдельных записей
	var count int
	require.NoError(t, env.DB.QueryRow(t.Context(),
		`SELECT COUNT(*) FROM activity_logs WHERE project_id = $1`, projectIDs[0],
	).Scan(&count))
	assert.Equal(t, 2, count)
}

// TestE2E_ConcurrentUpdatesKeepEveryChange проверяет, что параллельные PATCH разных полей не затирают друг друга
// и что seq журнала остается непрерывным
func TestE2E_ConcurrentUpdatesKeepEveryChange(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	env := SetupTestEnvironment(t)
	defer env.Cleanup(t)
	env.WaitForHealthCheck(t)

	_, token := env.RegisterAndLogin(t, "frank@x.com", "pw1")

	var team TeamResponse
	env.DoJSON(t, http.MethodPost, "/teams", map[string]string{"name": "Core"}, token, http.StatusCreated, &team)
	var project ProjectResponse
	env.DoJSON(t, http.MethodPost, "/projects", map[string]string{"team_id": team.ID, "name": "Engine"}, token, http.StatusCreated, &project)
	var task TaskResponse
	env.DoJSON(t, http.MethodPost, "/tasks", map[string]string{"project_id": project.ID, "title": "Tune"}, token, http.StatusCreated, &task)

	client := &http.Client{Timeout: 10 * time.Second}
	patch := func(body string) int {
		req, err := http.NewRequest(http.MethodPatch, env.BaseURL+"/tasks/"+task.ID, strings.NewReader(body))
		if err != nil {
			return 0
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := client.Do(req)
		if err != nil {
			return 0
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	const rounds = 10
	statuses := make([]int, 2*rounds)
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			statuses[2*i] = patch(fmt.Sprintf(`{"description":"rev %d"}`, i))
		}(i)
		go func(i int) {
			defer wg.Done()
			priority := []string{"low", "high"}[i%2]
			statuses[2*i+1] = patch(`{"priority":"` + priority + `","status":"in_progress"}`)
		}(i)
	}
	wg.Wait()

	for _, status := range statuses {
		assert.Equal(t, http.StatusOK, status)
	}

	var got TaskResponse
	env.DoJSON(t, http.MethodGet, "/tasks/"+task.ID, nil, token, http.StatusOK, &got)
	assert.Equal(t, "in_progress", got.Status)

	var description string
	require.NoError(t, env.DB.QueryRow(t.Context(),
		`SELECT description FROM tasks WHERE id = $1`, task.ID,
	).Scan(&description))
	assert.True(t, strings.HasPrefix(description, "rev "), description)

	// Переход todo -> in_progress зафиксирован ровно один раз
	var transitions int
	require.NoError(t, env.DB.QueryRow(t.Context(), `
		SELECT COUNT(*) FROM activity_logs
		WHERE project_id = $1 AND summary->>'status_from' = 'todo'`, project.ID,
	).Scan(&transitions))
	assert.Equal(t, 1, transitions)

	rows, err := env.DB.Query(t.Context(),
		`SELECT seq FROM activity_logs WHERE project_id = $1 ORDER BY id`, project.ID)
	require.NoError(t, err)
	defer rows.Close()

	var want int64 = 1
	for rows.Next() {
		var seq int64
		require.NoError(t, rows.Scan(&seq))
		assert.Equal(t, want, seq, "seq gap at position "+strconv.FormatInt(want, 10))
		want++
	}
	require.NoError(t, rows.Err())
	assert.Greater(t, want, int64(2))
}

// TestE2E_ActivityCursor проверяет постраничный обход журнала через before_id
func TestE2E_ActivityCursor(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	env := SetupTestEnvironment(t)
	defer env.Cleanup(t)
	env.WaitForHealthCheck(t)

	_, token := env.RegisterAndLogin(t, "gina@x.com", "pw1")

	var team TeamResponse
	env.DoJSON(t, http.MethodPost, "/teams", map[string]string{"name": "Docs"}, token, http.StatusCreated, &team)
	var project ProjectResponse
	env.DoJSON(t, http.MethodPost, "/projects", map[string]string{"team_id": team.ID, "name": "Guide"}, token, http.StatusCreated, &project)
	for _, title := range []string{"one", "two", "three"} {
		env.DoJSON(t, http.MethodPost, "/tasks", map[string]string{"project_id": project.ID, "title": title}, token, http.StatusCreated, nil)
	}

	base := "/projects/" + project.ID + "/activity"

	var first ActivityListResponse
	env.DoJSON(t, http.MethodGet, base+"?limit=2", nil, token, http.StatusOK, &first)
	require.Len(t, first.Activity, 2)
	assert.Equal(t, "three", first.Activity[0].Summary["title"])

	var rest ActivityListResponse
	cursor := strconv.FormatInt(first.Activity[1].ID, 10)
	env.DoJSON(t, http.MethodGet, base+"?before_id="+cursor, nil, token, http.StatusOK, &rest)
	require.Len(t, rest.Activity, 1)
	assert.Equal(t, "one", rest.Activity[0].Summary["title"])
	assert.Equal(t, int64(1), rest.Activity[0].Seq)

	var errResp ErrorResponse
	env.DoJSON(t, http.MethodGet, base+"?before_id=abc", nil, token, http.StatusBadRequest, &errResp)
	assert.Equal(t, "VALIDATION_ERROR", errResp.Error.Code)
}
