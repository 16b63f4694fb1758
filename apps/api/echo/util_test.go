package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/sistemaeducativo/gradebook/core"
	"github.com/sistemaeducativo/gradebook/core/auth"
	"github.com/sistemaeducativo/gradebook/core/grade"
	"github.com/sistemaeducativo/gradebook/core/user"
	"github.com/sistemaeducativo/gradebook/services/identity"
	"github.com/sistemaeducativo/gradebook/storage/database/docrepo"
	"github.com/sistemaeducativo/gradebook/storage/database/inmem"
	"github.com/sistemaeducativo/gradebook/tests"
)

const testPassword = "Xk9#mq2w"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	srv       *Server
	store     core.DocumentStore
	userSvc   *user.Service
	usrRepo   user.Repository
	gradeRepo grade.Repository
	mailer    *testutil.Mailer
}

func setup(t *testing.T) *testApp {
	t.Helper()

	conf := &core.Config{AppName: "gradebook-test", TestMode: true, SecretKey: "not-so-secret", Term: "2025-1"}
	conf.Server.JWTExpirationDelta = time.Hour

	// set up store & repos
	store := inmemdb.Open()
	usrRepo := docrepo.NewUserRepository(store)
	gradeRepo := docrepo.NewGradeRepository(store)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// set up services
	logger := &testutil.Logger{}
	mailer := &testutil.Mailer{}
	provider := identity.NewProvider(store, identity.NewMemorySessionStore(), conf)
	userSvc := user.NewService(usrRepo, provider, mailer, logger, validate)
	gradeSvc := grade.NewService(gradeRepo, usrRepo, logger, validate, conf)

	// set up server
	srv := NewServer(&Options{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
		UserSvc:        userSvc,
		GradeSvc:       gradeSvc,
		Provider:       provider,
		Gate:           auth.NewGate(usrRepo, logger),
	})

	return &testApp{
		srv:       srv,
		store:     store,
		userSvc:   userSvc,
		usrRepo:   usrRepo,
		gradeRepo: gradeRepo,
		mailer:    mailer,
	}
}

// createUser registers a user able to log in with testPassword.
func (app *testApp) createUser(t *testing.T, name, email, ctrlNum string, role user.Role) user.User {
	t.Helper()
	usr, err := app.userSvc.Create(context.Background(), user.NewUser{
		Email:         email,
		Name:          name,
		Role:          role,
		ControlNumber: ctrlNum,
		Password:      testPassword,
	})
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func (app *testApp) getToken(t *testing.T, email string) string {
	t.Helper()
	req, rec := newRequest(http.MethodPost, "/v1/users/login", marchallObj(t, LoginRequest{Email: email, Password: testPassword}))
	app.srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("getToken() failed: %d %s", rec.Code, rec.Body.String())
	}
	var res LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return res.Token
}

func (app *testApp) run(t *testing.T, tt httpTest) *httptest.ResponseRecorder {
	t.Helper()
	req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	app.srv.ServeHTTP(rec, req)
	checkCodeAndData(t, tt, rec)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte // nil skips the body check
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
