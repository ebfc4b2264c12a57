package handler_test

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/classdesk/classdesk-api/internal/config"
	"github.com/classdesk/classdesk-api/internal/handler"
	"github.com/classdesk/classdesk-api/internal/middleware"
	"github.com/classdesk/classdesk-api/internal/models"
	"github.com/classdesk/classdesk-api/internal/repository"
	"github.com/classdesk/classdesk-api/internal/router"
	"github.com/classdesk/classdesk-api/internal/service"
	"github.com/classdesk/classdesk-api/internal/storage"
)

func setupApp(t *testing.T) *fiber.App {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Group{}, &models.GroupMember{}, &models.Assignment{}, &models.Submission{}))

	logger := zerolog.New(io.Discard)
	validate := validator.New(validator.WithRequiredStructEnabled())

	blobs, err := storage.NewLocalStore(t.TempDir(), logger)
	require.NoError(t, err)

	userRepo := repository.NewUserRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)

	gate := service.NewAuthorizationGate(groupRepo, assignmentRepo, logger)
	events := service.NewEventPublisher(nil, "classdesk", logger)

	authService := service.NewAuthService(userRepo, validate, "test-secret", time.Hour, logger)
	groupService := service.NewGroupService(groupRepo, gate, validate, events, nil, 5, logger)
	assignmentService := service.NewAssignmentService(assignmentRepo, submissionRepo, gate, validate, blobs, nil, time.Minute, logger)
	submissionService := service.NewSubmissionService(submissionRepo, assignmentRepo, gate, validate, blobs, events, nil, 1024*1024, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Classdesk Test", AppEnv: "test"}, router.Dependencies{
		AuthHandler:       handler.NewAuthHandler(authService, logger),
		GroupHandler:      handler.NewGroupHandler(groupService, logger),
		AssignmentHandler: handler.NewAssignmentHandler(assignmentService, logger),
		SubmissionHandler: handler.NewSubmissionHandler(submissionService, logger),
		JWTMiddleware:     middleware.JWTProtected("test-secret"),
	})

	return app
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Reason  string          `json:"reason"`
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, payload interface{}) (int, envelope) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env), "body: %s", raw)

	return resp.StatusCode, env
}

func registerAndLogin(t *testing.T, app *fiber.App, username, role string) string {
	t.Helper()

	status, _ := doJSON(t, app, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"username": username,
		"password": "hunter22",
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, status)

	status, env := doJSON(t, app, http.MethodPost, "/api/auth/login", "", fiber.Map{
		"username": username,
		"password": "hunter22",
		"role":     role,
	})
	require.Equal(t, http.StatusOK, status)

	var auth struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &auth))
	require.NotEmpty(t, auth.Token)

	return auth.Token
}

func TestHealthEndpoint(t *testing.T) {
	app := setupApp(t)

	status, env := doJSON(t, app, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.True(t, env.Success)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app := setupApp(t)

	status, _ := doJSON(t, app, http.MethodGet, "/api/groups/teacher", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestAssignmentWorkflow(t *testing.T) {
	app := setupApp(t)

	teacherToken := registerAndLogin(t, app, "ibu-sari", models.RoleTeacher)
	studentToken := registerAndLogin(t, app, "mika", models.RoleStudent)

	// Teacher creates a group and reads back its join code.
	status, env := doJSON(t, app, http.MethodPost, "/api/groups", teacherToken, fiber.Map{"name": "Physics 101"})
	require.Equal(t, http.StatusCreated, status)

	var group struct {
		ID       uint   `json:"id"`
		JoinCode string `json:"join_code"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &group))
	require.Len(t, group.JoinCode, 6)

	// Student joins with the code.
	status, _ = doJSON(t, app, http.MethodPost, "/api/groups/join", studentToken, fiber.Map{"join_code": group.JoinCode})
	require.Equal(t, http.StatusCreated, status)

	// Joining twice conflicts.
	status, _ = doJSON(t, app, http.MethodPost, "/api/groups/join", studentToken, fiber.Map{"join_code": group.JoinCode})
	require.Equal(t, http.StatusConflict, status)

	// Teacher publishes an assignment.
	status, env = doJSON(t, app, http.MethodPost, "/api/assignments", teacherToken, fiber.Map{
		"group_id": group.ID,
		"title":    "Lab Report",
		"deadline": time.Now().Add(48 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, status)

	var assignment struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &assignment))

	// Student sees it in the annotated list, not yet submitted.
	status, env = doJSON(t, app, http.MethodGet, "/api/assignments/student", studentToken, nil)
	require.Equal(t, http.StatusOK, status)

	var studentList []struct {
		ID           uint `json:"id"`
		HasSubmitted bool `json:"has_submitted"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &studentList))
	require.Len(t, studentList, 1)
	require.False(t, studentList[0].HasSubmitted)

	// Student submits a file, then replaces it with a link.
	fileContent := "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("my lab report"))
	status, _ = doJSON(t, app, http.MethodPost, "/api/submissions", studentToken, fiber.Map{
		"assignment_id":   assignment.ID,
		"submission_type": "file",
		"content":         fileContent,
	})
	require.Equal(t, http.StatusCreated, status)

	status, _ = doJSON(t, app, http.MethodPost, "/api/submissions", studentToken, fiber.Map{
		"assignment_id":   assignment.ID,
		"submission_type": "link",
		"content":         "https://example.com/final",
	})
	require.Equal(t, http.StatusCreated, status)

	// Student's own view returns the replacement.
	status, env = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/submissions/%d", assignment.ID), studentToken, nil)
	require.Equal(t, http.StatusOK, status)

	var own struct {
		SubmissionType string `json:"submission_type"`
		Content        string `json:"content"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &own))
	require.Equal(t, "link", own.SubmissionType)
	require.Equal(t, "https://example.com/final", own.Content)

	// Teacher sees exactly one submission with the submitter's name.
	status, env = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/submissions/%d", assignment.ID), teacherToken, nil)
	require.Equal(t, http.StatusOK, status)

	var roster []struct {
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &roster))
	require.Len(t, roster, 1)
	require.Equal(t, "mika", roster[0].Username)

	// The teacher list now carries the submission count.
	status, env = doJSON(t, app, http.MethodGet, "/api/assignments/teacher", teacherToken, nil)
	require.Equal(t, http.StatusOK, status)

	var teacherList []struct {
		SubmissionCount int64 `json:"submission_count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &teacherList))
	require.Len(t, teacherList, 1)
	require.EqualValues(t, 1, teacherList[0].SubmissionCount)
}

func TestRoleGatesOnRoutes(t *testing.T) {
	app := setupApp(t)

	teacherToken := registerAndLogin(t, app, "teacher", models.RoleTeacher)
	studentToken := registerAndLogin(t, app, "student", models.RoleStudent)

	status, env := doJSON(t, app, http.MethodPost, "/api/groups", studentToken, fiber.Map{"name": "Nope"})
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "forbidden-role", env.Reason)

	status, _ = doJSON(t, app, http.MethodPost, "/api/groups/join", teacherToken, fiber.Map{"join_code": "AB12CD"})
	require.Equal(t, http.StatusForbidden, status)

	status, _ = doJSON(t, app, http.MethodGet, "/api/assignments/student", teacherToken, nil)
	require.Equal(t, http.StatusForbidden, status)
}

func TestCrossTenantDetailHidden(t *testing.T) {
	app := setupApp(t)

	ownerToken := registerAndLogin(t, app, "owner", models.RoleTeacher)
	intruderToken := registerAndLogin(t, app, "intruder", models.RoleTeacher)
	outsiderToken := registerAndLogin(t, app, "outsider", models.RoleStudent)

	status, env := doJSON(t, app, http.MethodPost, "/api/groups", ownerToken, fiber.Map{"name": "Physics"})
	require.Equal(t, http.StatusCreated, status)

	var group struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &group))

	status, _ = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/groups/%d", group.ID), intruderToken, nil)
	require.Equal(t, http.StatusNotFound, status)

	status, _ = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/groups/%d", group.ID), outsiderToken, nil)
	require.Equal(t, http.StatusNotFound, status)

	status, _ = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/groups/%d", group.ID), ownerToken, nil)
	require.Equal(t, http.StatusOK, status)
}

func TestRegisterDuplicateUsernameConflict(t *testing.T) {
	app := setupApp(t)

	payload := fiber.Map{"username": "mika", "password": "hunter22", "role": models.RoleStudent}

	status, _ := doJSON(t, app, http.MethodPost, "/api/auth/register", "", payload)
	require.Equal(t, http.StatusCreated, status)

	status, _ = doJSON(t, app, http.MethodPost, "/api/auth/register", "", payload)
	require.Equal(t, http.StatusConflict, status)
}
