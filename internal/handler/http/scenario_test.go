package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vasiliy-maslov/account-service/internal/account"
	handler "github.com/vasiliy-maslov/account-service/internal/handler/http"
)

type apiClient struct {
	t      *testing.T
	router http.Handler
}

func newAPI(t *testing.T) (*apiClient, *account.MemoryStore) {
	t.Helper()
	store := account.NewMemoryStore()
	svc := account.NewService(store, &account.BcryptHasher{Cost: bcrypt.MinCost})
	router := handler.NewRouter(
		handler.NewHealthHandler(store, time.Second, nil),
		handler.NewAccountHandler(svc),
		nil,
	)
	return &apiClient{t: t, router: router}, store
}

func (c *apiClient) do(method, target, body, username, password string) *httptest.ResponseRecorder {
	c.t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if username != "" {
		req.SetBasicAuth(username, password)
	}
	rr := httptest.NewRecorder()
	c.router.ServeHTTP(rr, req)
	return rr
}

// self fetches the read-shape as a generic map so absent keys can be asserted.
func (c *apiClient) self(username, password string) map[string]interface{} {
	c.t.Helper()
	rr := c.do(http.MethodGet, "/v1/user/self", "", username, password)
	require.Equal(c.t, http.StatusOK, rr.Code)

	var body map[string]interface{}
	require.NoError(c.t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func stripServerFields(body map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(body))
	for k, v := range body {
		switch k {
		case "id", "is_verified", "account_created", "account_updated":
			continue
		}
		out[k] = v
	}
	return out
}

const janePayload = `{"first_name":"Jane","last_name":"Doe","username":"jane.doe@x.com","password":"JaneDoe123"}`

func TestScenario_HealthOverMemoryStore(t *testing.T) {
	api, _ := newAPI(t)

	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/healthz", "", "", "").Code)
	require.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/healthz?x=1", "", "", "").Code)
	require.Equal(t, http.StatusMethodNotAllowed, api.do(http.MethodPost, "/healthz", "", "", "").Code)
}

func TestScenario_CreateGetUpdate(t *testing.T) {
	api, _ := newAPI(t)

	created := api.do(http.MethodPost, "/v1/user", janePayload, "jane.doe@x.com", "JaneDoe123")
	require.Equal(t, http.StatusCreated, created.Code)

	var createdBody map[string]interface{}
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &createdBody))
	assert.NotContains(t, createdBody, "password")

	got := api.self("jane.doe@x.com", "JaneDoe123")
	assert.Equal(t, map[string]interface{}{
		"first_name": "Jane",
		"last_name":  "Doe",
		"username":   "jane.doe@x.com",
	}, stripServerFields(got))
	assert.Equal(t, false, got["is_verified"])
	assert.Equal(t, createdBody["id"], got["id"])
	assert.NotEmpty(t, got["id"])

	updated := api.do(http.MethodPut, "/v1/user/self", `{"first_name":"Jack","last_name":"Doe","is_verified":true}`, "jane.doe@x.com", "JaneDoe123")
	require.Equal(t, http.StatusNoContent, updated.Code)

	got = api.self("jane.doe@x.com", "JaneDoe123")
	assert.Equal(t, map[string]interface{}{
		"first_name": "Jack",
		"last_name":  "Doe",
		"username":   "jane.doe@x.com",
	}, stripServerFields(got))
	assert.Equal(t, false, got["is_verified"], "is_verified is server-owned")
	assert.Equal(t, createdBody["id"], got["id"])
}

func TestScenario_UpdateLeavesUntouchedFields(t *testing.T) {
	api, _ := newAPI(t)
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/v1/user", janePayload, "", "").Code)

	before := api.self("jane.doe@x.com", "JaneDoe123")

	require.Equal(t, http.StatusNoContent, api.do(http.MethodPut, "/v1/user/self", `{"first_name":"Jack"}`, "jane.doe@x.com", "JaneDoe123").Code)
	after := api.self("jane.doe@x.com", "JaneDoe123")

	assert.Equal(t, "Jack", after["first_name"])
	assert.Equal(t, before["last_name"], after["last_name"])
	assert.Equal(t, before["username"], after["username"])
	assert.Equal(t, before["account_created"], after["account_created"])
}

func TestScenario_AccountUpdatedIsMonotonic(t *testing.T) {
	api, _ := newAPI(t)
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/v1/user", janePayload, "", "").Code)

	parse := func(v interface{}) time.Time {
		ts, err := time.Parse(time.RFC3339Nano, v.(string))
		require.NoError(t, err)
		return ts
	}

	prev := api.self("jane.doe@x.com", "JaneDoe123")
	created := parse(prev["account_created"])

	for _, name := range []string{"Jack", "John", "Jim"} {
		body := `{"first_name":"` + name + `"}`
		require.Equal(t, http.StatusNoContent, api.do(http.MethodPut, "/v1/user/self", body, "jane.doe@x.com", "JaneDoe123").Code)

		cur := api.self("jane.doe@x.com", "JaneDoe123")
		assert.False(t, parse(cur["account_updated"]).Before(parse(prev["account_updated"])))
		assert.True(t, parse(cur["account_created"]).Equal(created))
		prev = cur
	}
}

func TestScenario_DuplicateUsername(t *testing.T) {
	api, _ := newAPI(t)
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/v1/user", janePayload, "", "").Code)

	dup := `{"first_name":"Other","last_name":"Person","username":"JANE.DOE@x.com","password":"different"}`
	rr := api.do(http.MethodPost, "/v1/user", dup, "", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, rr.Body.String())

	got := api.self("jane.doe@x.com", "JaneDoe123")
	assert.Equal(t, "Jane", got["first_name"])
	assert.Equal(t, "Doe", got["last_name"])

	require.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/v1/user/self", "", "jane.doe@x.com", "different").Code)
}

func TestScenario_UsernameIsCaseInsensitive(t *testing.T) {
	api, _ := newAPI(t)
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/v1/user", janePayload, "", "").Code)

	got := api.self("Jane.Doe@X.com", "JaneDoe123")
	assert.Equal(t, "jane.doe@x.com", got["username"])

	require.Equal(t, http.StatusNoContent,
		api.do(http.MethodPut, "/v1/user/self", `{"username":"JANE.DOE@X.COM","last_name":"Roe"}`, "jane.doe@x.com", "JaneDoe123").Code)
	require.Equal(t, http.StatusBadRequest,
		api.do(http.MethodPut, "/v1/user/self", `{"username":"john@x.com"}`, "jane.doe@x.com", "JaneDoe123").Code)
}

func TestScenario_AccountsAreIsolated(t *testing.T) {
	api, store := newAPI(t)
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/v1/user", janePayload, "", "").Code)
	john := `{"first_name":"John","last_name":"Roe","username":"john@x.com","password":"JohnRoe123"}`
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/v1/user", john, "", "").Code)

	// John's credentials with Jane's username in the payload cannot reach Jane.
	rr := api.do(http.MethodPut, "/v1/user/self", `{"username":"jane.doe@x.com","first_name":"Hacked"}`, "john@x.com", "JohnRoe123")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	// Jane's username with John's password is rejected.
	require.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/v1/user/self", "", "jane.doe@x.com", "JohnRoe123").Code)
	require.Equal(t, http.StatusUnauthorized, api.do(http.MethodPut, "/v1/user/self", `{"first_name":"Hacked"}`, "jane.doe@x.com", "JohnRoe123").Code)

	require.Equal(t, http.StatusNoContent, api.do(http.MethodPut, "/v1/user/self", `{"first_name":"Johnny"}`, "john@x.com", "JohnRoe123").Code)

	assert.Equal(t, "Johnny", api.self("john@x.com", "JohnRoe123")["first_name"])
	assert.Equal(t, "Jane", api.self("jane.doe@x.com", "JaneDoe123")["first_name"])

	jane, err := store.FindByUsername(context.Background(), "jane.doe@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Jane", jane.FirstName)
}

func TestScenario_PasswordChange(t *testing.T) {
	api, store := newAPI(t)
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/v1/user", janePayload, "", "").Code)

	require.Equal(t, http.StatusNoContent, api.do(http.MethodPut, "/v1/user/self", `{"password":"NewSecret456"}`, "jane.doe@x.com", "JaneDoe123").Code)

	require.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/v1/user/self", "", "jane.doe@x.com", "JaneDoe123").Code)
	assert.Equal(t, "Jane", api.self("jane.doe@x.com", "NewSecret456")["first_name"])

	stored, err := store.FindByUsername(context.Background(), "jane.doe@x.com")
	require.NoError(t, err)
	assert.NotEqual(t, "NewSecret456", stored.PasswordHash)
}

func TestScenario_PasswordLengthLimits(t *testing.T) {
	api, _ := newAPI(t)

	tooLong := `{"first_name":"Jane","last_name":"Doe","username":"jane.doe@x.com","password":"` + strings.Repeat("p", 73) + `"}`
	rr := api.do(http.MethodPost, "/v1/user", tooLong, "", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, rr.Body.String())

	// 40 runes pass the request rules but exceed bcrypt's 72-byte input.
	multiByte := strings.Repeat("é", 40)
	rr = api.do(http.MethodPost, "/v1/user", `{"first_name":"Jane","last_name":"Doe","username":"jane.doe@x.com","password":"`+multiByte+`"}`, "", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/v1/user", janePayload, "", "").Code)
	require.Equal(t, http.StatusBadRequest,
		api.do(http.MethodPut, "/v1/user/self", `{"password":"`+strings.Repeat("p", 73)+`"}`, "jane.doe@x.com", "JaneDoe123").Code)
	require.Equal(t, http.StatusBadRequest,
		api.do(http.MethodPut, "/v1/user/self", `{"password":"`+multiByte+`"}`, "jane.doe@x.com", "JaneDoe123").Code)

	// The account still answers to its original password.
	assert.Equal(t, "Jane", api.self("jane.doe@x.com", "JaneDoe123")["first_name"])
}

func TestScenario_NameLengthLimit(t *testing.T) {
	api, _ := newAPI(t)

	long := strings.Repeat("J", 256)
	rr := api.do(http.MethodPost, "/v1/user", `{"first_name":"`+long+`","last_name":"Doe","username":"jane.doe@x.com","password":"JaneDoe123"}`, "", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/v1/user", janePayload, "", "").Code)
	require.Equal(t, http.StatusBadRequest,
		api.do(http.MethodPut, "/v1/user/self", `{"last_name":"`+long+`"}`, "jane.doe@x.com", "JaneDoe123").Code)

	exact := strings.Repeat("J", 255)
	require.Equal(t, http.StatusNoContent,
		api.do(http.MethodPut, "/v1/user/self", `{"first_name":"`+exact+`"}`, "jane.doe@x.com", "JaneDoe123").Code)
	assert.Equal(t, exact, api.self("jane.doe@x.com", "JaneDoe123")["first_name"])
}

func TestScenario_WrongCredentialsWithPayload(t *testing.T) {
	api, _ := newAPI(t)
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/v1/user", janePayload, "", "").Code)

	require.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/v1/user/self?x=1", "", "jane.doe@x.com", "wrong").Code)
	require.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/v1/user/self?x=1", "", "", "").Code)
	require.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/v1/user/self", "", "jane.doe@x.com", "wrong").Code)
}
