package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	accountdomain "trading-advisory/backend/internal/account/domain"
	accounthandler "trading-advisory/backend/internal/account/handler"
	accountrepo "trading-advisory/backend/internal/account/repository"
	accountservice "trading-advisory/backend/internal/account/service"
	agreementdomain "trading-advisory/backend/internal/agreement/domain"
	"trading-advisory/backend/internal/agreement/esign"
	agreementhandler "trading-advisory/backend/internal/agreement/handler"
	agreementservice "trading-advisory/backend/internal/agreement/service"
	"trading-advisory/backend/internal/authz"
	"trading-advisory/backend/internal/devotp"
	devotphandler "trading-advisory/backend/internal/devotp/handler"
	"trading-advisory/backend/internal/health"
	otpdomain "trading-advisory/backend/internal/otp/domain"
	"trading-advisory/backend/internal/security"
	sessiondomain "trading-advisory/backend/internal/session/domain"
	studydomain "trading-advisory/backend/internal/study/domain"
	studyhandler "trading-advisory/backend/internal/study/handler"
	studyservice "trading-advisory/backend/internal/study/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ---- in-memory fakes ----

type memAccounts struct {
	mu   sync.Mutex
	byID map[string]accountdomain.Account
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byID: map[string]accountdomain.Account{}}
}

func (m *memAccounts) GetByID(_ context.Context, id string) (*accountdomain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	cp := a
	return &cp, nil
}

func (m *memAccounts) GetByLogin(_ context.Context, usernameOrEmail string) (*accountdomain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.Username == usernameOrEmail || a.Email == usernameOrEmail {
			cp := a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memAccounts) Create(_ context.Context, a *accountdomain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[a.ID] = *a
	return nil
}

func (m *memAccounts) UpdateStatus(_ context.Context, id string, from, to accountdomain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok || a.Status != from {
		return accountrepo.ErrStatusConflict
	}
	a.Status = to
	a.UpdatedAt = time.Now().UTC()
	m.byID[id] = a
	return nil
}

func (m *memAccounts) SetNsim(_ context.Context, id, documentKey, nsimNumber string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.byID[id]
	a.NsimDocumentKey = &documentKey
	a.NsimNumber = &nsimNumber
	m.byID[id] = a
	return nil
}

func (m *memAccounts) SetNsimAndStatus(_ context.Context, id, documentKey, nsimNumber string, from, to accountdomain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok || a.Status != from {
		return accountrepo.ErrStatusConflict
	}
	a.NsimDocumentKey = &documentKey
	a.NsimNumber = &nsimNumber
	a.Status = to
	a.UpdatedAt = time.Now().UTC()
	m.byID[id] = a
	return nil
}

func (m *memAccounts) MarkOTPSent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.byID[id]
	a.IsOtpSentToUser = true
	m.byID[id] = a
	return nil
}

func (m *memAccounts) ListByRoleAndStatus(_ context.Context, role accountdomain.Role, status accountdomain.Status) ([]*accountdomain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*accountdomain.Account
	for _, a := range m.byID {
		if a.Role == role && a.Status == status {
			cp := a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memAccounts) ListByRole(_ context.Context, role accountdomain.Role) ([]*accountdomain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*accountdomain.Account
	for _, a := range m.byID {
		if a.Role == role {
			cp := a
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memOTPs struct {
	mu         sync.Mutex
	challenges []otpdomain.Challenge
}

func (m *memOTPs) Create(_ context.Context, c *otpdomain.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.challenges = append(m.challenges, *c)
	return nil
}

func (m *memOTPs) GetLatestByAccount(_ context.Context, accountID string) (*otpdomain.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.challenges) - 1; i >= 0; i-- {
		if m.challenges[i].AccountID == accountID {
			cp := m.challenges[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memOTPs) DeleteByAccount(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.challenges[:0]
	for _, c := range m.challenges {
		if c.AccountID != accountID {
			kept = append(kept, c)
		}
	}
	m.challenges = kept
	return nil
}

type memSessions struct {
	mu   sync.Mutex
	byID map[string]sessiondomain.Session
}

func newMemSessions() *memSessions {
	return &memSessions{byID: map[string]sessiondomain.Session{}}
}

func (m *memSessions) GetByID(_ context.Context, id string) (*sessiondomain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	cp := s
	return &cp, nil
}

func (m *memSessions) Create(_ context.Context, s *sessiondomain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[s.ID] = *s
	return nil
}

func (m *memSessions) Revoke(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok || s.RevokedAt != nil {
		return nil
	}
	now := time.Now().UTC()
	s.RevokedAt = &now
	m.byID[id] = s
	return nil
}

func (m *memSessions) RevokeAllByAccount(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for id, s := range m.byID {
		if s.AccountID == accountID && s.RevokedAt == nil {
			s.RevokedAt = &now
			m.byID[id] = s
		}
	}
	return nil
}

type memAgreements struct {
	mu     sync.Mutex
	rounds []agreementdomain.Agreement
}

func (m *memAgreements) Create(_ context.Context, a *agreementdomain.Agreement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rounds = append(m.rounds, *a)
	return nil
}

func (m *memAgreements) GetByCallbackToken(_ context.Context, token string) (*agreementdomain.Agreement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rounds {
		if m.rounds[i].CallbackToken == token {
			cp := m.rounds[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memAgreements) GetOpenByAccountAndPhase(_ context.Context, accountID string, phase agreementdomain.Phase) (*agreementdomain.Agreement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.rounds) - 1; i >= 0; i-- {
		r := m.rounds[i]
		if r.AccountID == accountID && r.Phase == phase && r.CompletedAt == nil {
			cp := r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memAgreements) ListByAccount(_ context.Context, accountID string) ([]*agreementdomain.Agreement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*agreementdomain.Agreement
	for i := len(m.rounds) - 1; i >= 0; i-- {
		if m.rounds[i].AccountID == accountID {
			cp := m.rounds[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memAgreements) MarkCompleted(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for i := range m.rounds {
		if m.rounds[i].ID == id && m.rounds[i].CompletedAt == nil {
			m.rounds[i].CompletedAt = &now
		}
	}
	return nil
}

// openToken returns the callback token of the newest open round for the account and phase.
func (m *memAgreements) openToken(accountID string, phase agreementdomain.Phase) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.rounds) - 1; i >= 0; i-- {
		r := m.rounds[i]
		if r.AccountID == accountID && r.Phase == phase && r.CompletedAt == nil {
			return r.CallbackToken
		}
	}
	return ""
}

type memStudies struct {
	mu      sync.Mutex
	studies []studydomain.Study
}

func (m *memStudies) Create(_ context.Context, s *studydomain.Study) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.studies = append(m.studies, *s)
	return nil
}

func (m *memStudies) GetByID(_ context.Context, id string) (*studydomain.Study, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.studies {
		if m.studies[i].ID == id {
			cp := m.studies[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStudies) ListByAccount(_ context.Context, accountID string) ([]*studydomain.Study, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*studydomain.Study
	for i := range m.studies {
		if m.studies[i].AccountID == accountID {
			cp := m.studies[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStudies) ListAll(_ context.Context) ([]*studydomain.Study, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*studydomain.Study, 0, len(m.studies))
	for i := range m.studies {
		cp := m.studies[i]
		out = append(out, &cp)
	}
	return out, nil
}

type memCerts struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemCerts() *memCerts { return &memCerts{objects: map[string][]byte{}} }

func (m *memCerts) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memCerts) Download(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, nil
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memCerts) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://certs.local/" + key, nil
}

// ---- fixture ----

type fixture struct {
	router     *gin.Engine
	accounts   *memAccounts
	agreements *memAgreements
	devOTP     *devotp.MemoryStore
	hasher     *security.Hasher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	accounts := newMemAccounts()
	otps := &memOTPs{}
	sessions := newMemSessions()
	agreements := &memAgreements{}
	studies := &memStudies{}
	certs := newMemCerts()
	devStore := devotp.NewMemoryStore()

	hasher := security.NewHasher(4)
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	evaluator, err := authz.NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	regSvc := accountservice.NewRegistrationService(accounts, otps, nil, devStore, hasher, nil, 5*time.Minute)
	authSvc := accountservice.NewAuthService(accounts, sessions, hasher, tokens, nil, time.Hour)
	adminSvc := accountservice.NewAdminService(accounts, sessions, nil)
	agreementSvc := agreementservice.NewService(accounts, agreements, esign.DevProvider{}, "http://localhost:8080/esign/callback", nil)
	studySvc := studyservice.NewService(accounts, studies)

	router := NewRouter(Deps{
		Registration: accounthandler.NewRegistrationHandler(regSvc, certs),
		Auth:         accounthandler.NewAuthHandler(authSvc, accounts),
		Admin:        accounthandler.NewAdminHandler(adminSvc, certs),
		Agreements:   agreementhandler.NewHandler(agreementSvc),
		Studies:      studyhandler.NewHandler(studySvc),
		DevOTP:       devotphandler.NewHandler(devStore),
		Health:       health.NewHandler(nil, evaluator),
		Tokens:       tokens,
		Sessions:     sessions,
		Accounts:     accounts,
		Authz:        evaluator,
		ServiceName:  "advisory-test",
	})

	return &fixture{
		router:     router,
		accounts:   accounts,
		agreements: agreements,
		devOTP:     devStore,
		hasher:     hasher,
	}
}

func (f *fixture) seedAccount(t *testing.T, username string, role accountdomain.Role, status accountdomain.Status, password string) string {
	t.Helper()
	hash, err := f.hasher.Hash([]byte(password))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	now := time.Now().UTC()
	a := accountdomain.Account{
		ID:            uuid.New().String(),
		Username:      username,
		Email:         username + "@example.com",
		PhoneNumber:   "9876500000",
		AadhaarNumber: "111122223333",
		Role:          role,
		Status:        status,
		PasswordHash:  hash,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := a.Validate(); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	if err := f.accounts.Create(context.Background(), &a); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return a.ID
}

type envelope struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (e envelope) dataMap(t *testing.T) map[string]any {
	t.Helper()
	m, ok := e.Data.(map[string]any)
	if !ok {
		t.Fatalf("data is %T, want object: %v", e.Data, e.Data)
	}
	return m
}

func (e envelope) dataList(t *testing.T) []any {
	t.Helper()
	l, ok := e.Data.([]any)
	if !ok {
		t.Fatalf("data is %T, want array: %v", e.Data, e.Data)
	}
	return l
}

func (f *fixture) do(t *testing.T, method, path, token, contentType string, body []byte) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var env envelope
	if strings.Contains(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: decode response %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec, env
}

func (f *fixture) doJSON(t *testing.T, method, path, token string, payload any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return f.do(t, method, path, token, "application/json", body)
}

func multipartForm(t *testing.T, fields map[string]string, fileField, fileName string, file []byte) ([]byte, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if fileField != "" {
		fw, err := w.CreateFormFile(fileField, fileName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(file); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return buf.Bytes(), w.FormDataContentType()
}

func (f *fixture) login(t *testing.T, usernameOrEmail, password string) (string, map[string]any) {
	t.Helper()
	rec, env := f.doJSON(t, http.MethodPost, "/users/login", "", map[string]string{
		"usernameOrEmail": usernameOrEmail,
		"password":        password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: got %d, body %s", usernameOrEmail, rec.Code, rec.Body.String())
	}
	data := env.dataMap(t)
	token, _ := data["accessToken"].(string)
	if token == "" {
		t.Fatalf("login %s: no access token in %v", usernameOrEmail, data)
	}
	return token, data
}

// ---- tests ----

func TestFullRegistrationAndVerificationLifecycle(t *testing.T) {
	f := newFixture(t)
	adminID := f.seedAccount(t, "root", accountdomain.RoleAdmin, accountdomain.StatusActive, "adminpass")

	// Self-registration with the NSIM certificate attached up front.
	form, contentType := multipartForm(t, map[string]string{
		"name":            "Asha K",
		"username":        "Asha",
		"email":           "Asha@Example.com",
		"phoneNumber":     "9876543210",
		"aadhaarNumber":   "123456789012",
		"password":        "secretpass",
		"confirmPassword": "secretpass",
		"role":            string(accountdomain.RoleTrustedAssociate),
		"nsimNumber":      "NSIM-42",
	}, "nsimCertificate", "cert.pdf", []byte("%PDF-1.4 fake"))
	rec, env := f.do(t, http.MethodPost, "/users/register", "", contentType, form)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: got %d, body %s", rec.Code, rec.Body.String())
	}
	data := env.dataMap(t)
	accountID := data["id"].(string)
	if sent, _ := data["isOtpSentToUser"].(bool); !sent {
		t.Fatalf("register: isOtpSentToUser = false")
	}
	if got := data["status"]; got != string(accountdomain.StatusWaitingForOTP) {
		t.Fatalf("register: status = %v", got)
	}
	if got := data["username"]; got != "asha" {
		t.Fatalf("register: username not normalized: %v", got)
	}
	stored, _ := f.accounts.GetByID(context.Background(), accountID)
	if stored == nil || !stored.HasNsimDocument() {
		t.Fatalf("register: certificate not attached")
	}

	// Mismatched password confirmation is refused.
	badForm, badType := multipartForm(t, map[string]string{
		"username": "other", "email": "other@example.com",
		"phoneNumber": "9876543211", "aadhaarNumber": "123456789013",
		"password": "secretpass", "confirmPassword": "different",
	}, "", "", nil)
	rec, _ = f.do(t, http.MethodPost, "/users/register", "", badType, badForm)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("mismatched confirm: got %d", rec.Code)
	}

	// Duplicate registration is refused.
	form2, ct2 := multipartForm(t, map[string]string{
		"username": "asha", "email": "other@example.com",
		"phoneNumber": "9876543211", "aadhaarNumber": "123456789013",
		"password": "secretpass", "confirmPassword": "secretpass",
	}, "", "", nil)
	rec, _ = f.do(t, http.MethodPost, "/users/register", "", ct2, form2)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register: got %d", rec.Code)
	}

	// Dev OTP mode exposes the code.
	rec, env = f.do(t, http.MethodGet, "/dev/otp/"+accountID, "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dev otp: got %d", rec.Code)
	}
	code := env.dataMap(t)["otp"].(string)

	// A wrong code is rejected without consuming the challenge.
	rec, env = f.doJSON(t, http.MethodPost, "/users/submit-otp", "", map[string]string{
		"userId": accountID, "otp": "000000",
	})
	if rec.Code != http.StatusBadRequest || env.Error.Code != "otp_invalid" {
		t.Fatalf("wrong otp: got %d %v", rec.Code, env.Error)
	}

	rec, env = f.doJSON(t, http.MethodPost, "/users/submit-otp", "", map[string]string{
		"userId": accountID, "otp": code,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("submit otp: got %d, body %s", rec.Code, rec.Body.String())
	}
	data = env.dataMap(t)
	if got := data["status"]; got != string(accountdomain.StatusPendingVerification) {
		t.Fatalf("submit otp: status = %v", got)
	}
	if got, _ := data["verifiedAt"].(string); got == "" {
		t.Fatalf("submit otp: no verifiedAt")
	}

	// Login stays refused until the admin acts.
	rec, env = f.doJSON(t, http.MethodPost, "/users/login", "", map[string]string{
		"usernameOrEmail": "asha", "password": "secretpass",
	})
	if rec.Code != http.StatusUnauthorized || env.Error.Code != "login_refused" {
		t.Fatalf("pending login: got %d %v", rec.Code, env.Error)
	}

	// Admin reviews and approves; the certificate is already attached.
	adminToken, _ := f.login(t, "root", "adminpass")
	rec, env = f.do(t, http.MethodGet,
		"/users/by-role-and-status?role=TRUSTED_ASSOCIATE&status="+string(accountdomain.StatusPendingVerification),
		adminToken, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin list: got %d, body %s", rec.Code, rec.Body.String())
	}
	if got := len(env.dataList(t)); got != 1 {
		t.Fatalf("admin list: %d pending accounts", got)
	}
	rec, env = f.do(t, http.MethodGet, "/admin/users/"+accountID, adminToken, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin get: got %d", rec.Code)
	}
	if url, _ := env.dataMap(t)["nsimDocumentUrl"].(string); !strings.Contains(url, "nsim/") {
		t.Fatalf("admin get: no certificate review URL: %v", env.Data)
	}

	// The approve path names the acting admin; anything else is forbidden.
	rec, _ = f.doJSON(t, http.MethodPost, "/admin/users/"+accountID+"/approve", adminToken,
		map[string]string{"userId": accountID, "status": string(accountdomain.StatusApprovedByAdmin)})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("approve with wrong adminId: got %d", rec.Code)
	}

	rec, _ = f.doJSON(t, http.MethodPost, "/admin/users/"+adminID+"/approve", adminToken,
		map[string]string{"userId": accountID, "status": string(accountdomain.StatusApprovedByAdmin)})
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: got %d, body %s", rec.Code, rec.Body.String())
	}
	rec, _ = f.doJSON(t, http.MethodPost, "/admin/users/"+adminID+"/approve", adminToken,
		map[string]string{"userId": accountID, "status": string(accountdomain.StatusPendingTAAgreement)})
	if rec.Code != http.StatusOK {
		t.Fatalf("request agreement: got %d, body %s", rec.Code, rec.Body.String())
	}

	// Approved TA logs in as nta and is steered to the restricted dashboard.
	taToken, loginData := f.login(t, "asha", "secretpass")
	if got := loginData["frontendRole"]; got != "nta" {
		t.Fatalf("nta login: frontendRole = %v", got)
	}
	if got := loginData["dashboard"]; got != "/nonverifiedtadashboard" {
		t.Fatalf("nta login: dashboard = %v", got)
	}
	if got, _ := loginData["nsimDocumentKey"].(string); !strings.HasPrefix(got, "nsim/") {
		t.Fatalf("nta login: nsimDocumentKey = %v", loginData["nsimDocumentKey"])
	}
	rec, _ = f.do(t, http.MethodGet, "/tadashboard", taToken, "", nil)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/nonverifiedtadashboard" {
		t.Fatalf("nta on /tadashboard: got %d -> %q", rec.Code, rec.Header().Get("Location"))
	}
	rec, _ = f.doJSON(t, http.MethodPost, "/studies", taToken, map[string]any{
		"stockExchange": "NSE", "stockName": "INFY", "currentPrice": 1500.0,
		"expectedPrice": 1700.0, "action": "BUY",
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("nta publish: got %d", rec.Code)
	}

	// TA signs; provider callback confirms.
	rec, env = f.do(t, http.MethodPost, "/users/"+accountID+"/sign-agreement", taToken, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sign-agreement: got %d, body %s", rec.Code, rec.Body.String())
	}
	data = env.dataMap(t)
	if got, _ := data["url"].(string); got == "" {
		t.Fatalf("sign-agreement: empty sign URL")
	}
	if got := data["status"]; got != string(accountdomain.StatusTAAgreementInitiated) {
		t.Fatalf("sign-agreement: status = %v", got)
	}
	taCallback := f.agreements.openToken(accountID, agreementdomain.PhaseTA)
	rec, env = f.do(t, http.MethodGet, "/esign/callback?token="+taCallback, "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ta callback: got %d, body %s", rec.Code, rec.Body.String())
	}
	if got := env.dataMap(t)["status"]; got != string(accountdomain.StatusTAAgreementSigned) {
		t.Fatalf("ta callback: status = %v", got)
	}

	// The callback token is single use.
	rec, env = f.do(t, http.MethodGet, "/esign/callback?token="+taCallback, "", "", nil)
	if rec.Code != http.StatusConflict || env.Error.Code != "callback_completed" {
		t.Fatalf("replayed callback: got %d %v", rec.Code, env.Error)
	}

	// Admin counter-signs; second callback completes verification.
	rec, env = f.do(t, http.MethodPost, "/admin/users/"+accountID+"/esign-agreement-by-admin", adminToken, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("countersign: got %d, body %s", rec.Code, rec.Body.String())
	}
	if got, _ := env.dataMap(t)["eSignUrl"].(string); got == "" {
		t.Fatalf("countersign: empty eSignUrl")
	}
	adminCallback := f.agreements.openToken(accountID, agreementdomain.PhaseAdmin)
	rec, env = f.do(t, http.MethodGet, "/esign/callback?token="+adminCallback, "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin callback: got %d, body %s", rec.Code, rec.Body.String())
	}
	if got := env.dataMap(t)["status"]; got != string(accountdomain.StatusAdminSignatureSigned) {
		t.Fatalf("admin callback: status = %v", got)
	}

	// Fully verified TA: ta role, ta dashboard, studies unlocked.
	taToken, loginData = f.login(t, "asha", "secretpass")
	if got := loginData["frontendRole"]; got != "ta" {
		t.Fatalf("verified login: frontendRole = %v", got)
	}
	if got := loginData["dashboard"]; got != "/tadashboard" {
		t.Fatalf("verified login: dashboard = %v", got)
	}
	rec, _ = f.do(t, http.MethodGet, "/tadashboard", taToken, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("verified ta on /tadashboard: got %d", rec.Code)
	}
	rec, _ = f.do(t, http.MethodGet, "/nonverifiedtadashboard", taToken, "", nil)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/tadashboard" {
		t.Fatalf("verified ta on /nonverifiedtadashboard: got %d -> %q", rec.Code, rec.Header().Get("Location"))
	}
	rec, _ = f.doJSON(t, http.MethodPost, "/studies", taToken, map[string]any{
		"userId":        "ignored-by-server",
		"stockExchange": "NSE", "stockName": "INFY", "stockIndex": "NIFTY 50",
		"currentPrice": 1500.0, "expectedPrice": 1700.0, "action": "BUY",
		"analysis": "Strong quarterly results.",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("publish: got %d, body %s", rec.Code, rec.Body.String())
	}
	rec, env = f.do(t, http.MethodGet, "/studies/by-ta/"+accountID, taToken, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list studies: got %d", rec.Code)
	}
	studies := env.dataList(t)
	if len(studies) != 1 {
		t.Fatalf("list studies: %d studies", len(studies))
	}
	if got := studies[0].(map[string]any)["userId"]; got != accountID {
		t.Fatalf("list studies: author = %v, want the signed-in TA", got)
	}
}

func TestApproveWithoutCertificateThenUpload(t *testing.T) {
	f := newFixture(t)
	adminID := f.seedAccount(t, "root", accountdomain.RoleAdmin, accountdomain.StatusActive, "adminpass")

	form, contentType := multipartForm(t, map[string]string{
		"username": "ravi", "email": "ravi@example.com",
		"phoneNumber": "9876543220", "aadhaarNumber": "123456789022",
		"password": "secretpass", "confirmPassword": "secretpass",
	}, "", "", nil)
	rec, env := f.do(t, http.MethodPost, "/users/register", "", contentType, form)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: got %d, body %s", rec.Code, rec.Body.String())
	}
	accountID := env.dataMap(t)["id"].(string)

	_, env = f.do(t, http.MethodGet, "/dev/otp/"+accountID, "", "", nil)
	code := env.dataMap(t)["otp"].(string)
	rec, _ = f.doJSON(t, http.MethodPost, "/users/submit-otp", "", map[string]string{
		"userId": accountID, "otp": code,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("submit otp: got %d", rec.Code)
	}

	adminToken, _ := f.login(t, "root", "adminpass")

	// Approval without a certificate is blocked.
	rec, env = f.doJSON(t, http.MethodPost, "/admin/users/"+adminID+"/approve", adminToken,
		map[string]string{"userId": accountID, "status": string(accountdomain.StatusApprovedByAdmin)})
	if rec.Code != http.StatusConflict || env.Error.Code != "nsim_required" {
		t.Fatalf("approve without cert: got %d %v", rec.Code, env.Error)
	}

	// Admin uploads the certificate on the TA's behalf, then approval passes.
	certForm, certType := multipartForm(t, map[string]string{"nsimNumber": "NSIM-77"},
		"nsimCertificate", "cert.pdf", []byte("%PDF-1.4 fake"))
	rec, _ = f.do(t, http.MethodPost, "/admin/users/"+accountID+"/nsim", adminToken, certType, certForm)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload cert: got %d, body %s", rec.Code, rec.Body.String())
	}
	rec, _ = f.doJSON(t, http.MethodPost, "/admin/users/"+adminID+"/approve", adminToken,
		map[string]string{"userId": accountID, "status": string(accountdomain.StatusApprovedByAdmin)})
	if rec.Code != http.StatusOK {
		t.Fatalf("approve after upload: got %d, body %s", rec.Code, rec.Body.String())
	}

	// An illegal target is refused with a conflict.
	rec, env = f.doJSON(t, http.MethodPost, "/admin/users/"+adminID+"/approve", adminToken,
		map[string]string{"userId": accountID, "status": string(accountdomain.StatusActive)})
	if rec.Code != http.StatusConflict || env.Error.Code != "illegal_transition" {
		t.Fatalf("illegal target: got %d %v", rec.Code, env.Error)
	}
}

func TestLinkNSIMFromHolder(t *testing.T) {
	f := newFixture(t)
	adminID := f.seedAccount(t, "root", accountdomain.RoleAdmin, accountdomain.StatusActive, "adminpass")
	holderID := f.seedAccount(t, "holder", accountdomain.RoleTrustedAssociate, accountdomain.StatusActive, "secretpass")
	targetID := f.seedAccount(t, "fresh", accountdomain.RoleTrustedAssociate, accountdomain.StatusPendingVerification, "secretpass")
	_ = f.accounts.SetNsim(context.Background(), holderID, "nsim/holder-cert.pdf", "NSIM-1")

	adminToken, _ := f.login(t, "root", "adminpass")

	rec, env := f.doJSON(t, http.MethodPost, "/admin/users/"+targetID+"/link-nsim", adminToken,
		map[string]string{"nsimCertificateHolderId": holderID})
	if rec.Code != http.StatusOK {
		t.Fatalf("link-nsim: got %d, body %s", rec.Code, rec.Body.String())
	}
	account := env.dataMap(t)["account"].(map[string]any)
	if got := account["nsimDocumentKey"]; got != "nsim/holder-cert.pdf" {
		t.Fatalf("link-nsim: nsimDocumentKey = %v", got)
	}
	if got := account["status"]; got != string(accountdomain.StatusPendingVerification) {
		t.Fatalf("link-nsim changed status: %v", got)
	}

	// Link and approve in one atomic admin call for a second registration.
	secondID := f.seedAccount(t, "second", accountdomain.RoleTrustedAssociate, accountdomain.StatusPendingVerification, "secretpass")
	rec, env = f.doJSON(t, http.MethodPost, "/admin/users/"+adminID+"/approve", adminToken, map[string]string{
		"userId":                  secondID,
		"status":                  string(accountdomain.StatusApprovedByAdmin),
		"nsimCertificateHolderId": holderID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("link+approve: got %d, body %s", rec.Code, rec.Body.String())
	}
	account = env.dataMap(t)["account"].(map[string]any)
	if got := account["status"]; got != string(accountdomain.StatusApprovedByAdmin) {
		t.Fatalf("link+approve: status = %v", got)
	}
	if got := account["nsimDocumentKey"]; got != "nsim/holder-cert.pdf" {
		t.Fatalf("link+approve: nsimDocumentKey = %v", got)
	}
}

func TestSuspendRevokesLiveSessions(t *testing.T) {
	f := newFixture(t)
	adminID := f.seedAccount(t, "root", accountdomain.RoleAdmin, accountdomain.StatusActive, "adminpass")
	accountID := f.seedAccount(t, "meena", accountdomain.RoleTrustedAssociate, accountdomain.StatusApprovedByAdmin, "secretpass")

	taToken, _ := f.login(t, "meena", "secretpass")
	rec, _ := f.do(t, http.MethodGet, "/agreements", taToken, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("agreements before suspend: got %d", rec.Code)
	}

	adminToken, _ := f.login(t, "root", "adminpass")
	rec, _ = f.doJSON(t, http.MethodPost, "/admin/users/"+adminID+"/approve", adminToken,
		map[string]string{"userId": accountID, "status": string(accountdomain.StatusSuspended)})
	if rec.Code != http.StatusOK {
		t.Fatalf("suspend: got %d, body %s", rec.Code, rec.Body.String())
	}

	// The suspended TA's bearer token no longer works.
	rec, env := f.do(t, http.MethodGet, "/agreements", taToken, "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("agreements after suspend: got %d %v", rec.Code, env.Error)
	}

	// And a fresh login is refused with the suspension message.
	rec, env = f.doJSON(t, http.MethodPost, "/users/login", "", map[string]string{
		"usernameOrEmail": "meena", "password": "secretpass",
	})
	if rec.Code != http.StatusUnauthorized || env.Error.Code != "login_refused" {
		t.Fatalf("suspended login: got %d %v", rec.Code, env.Error)
	}
	if !strings.Contains(env.Error.Message, "suspended") {
		t.Fatalf("suspended login: message %q", env.Error.Message)
	}
}

func TestAssociateLoginRefused(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "legacy", accountdomain.RoleAssociate, accountdomain.StatusActive, "secretpass")

	rec, env := f.doJSON(t, http.MethodPost, "/users/login", "", map[string]string{
		"usernameOrEmail": "legacy", "password": "secretpass",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("associate login: got %d", rec.Code)
	}
	if env.Error.Message != "Associate login is not supported in this version" {
		t.Fatalf("associate login: message %q", env.Error.Message)
	}
}

func TestLogoutInvalidatesToken(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "root", accountdomain.RoleAdmin, accountdomain.StatusActive, "adminpass")

	token, _ := f.login(t, "root", "adminpass")
	rec, _ := f.do(t, http.MethodPost, "/users/logout", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: got %d", rec.Code)
	}
	rec, _ = f.do(t, http.MethodGet, "/users/by-role-and-status", token, "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("list after logout: got %d", rec.Code)
	}
}

func TestAuthRejectsBadTokens(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, http.MethodGet, "/agreements", "", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: got %d", rec.Code)
	}
	rec, _ = f.do(t, http.MethodGet, "/agreements", "not-a-jwt", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: got %d", rec.Code)
	}
}

func TestUnauthenticatedDashboardRedirectsToLogin(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, http.MethodGet, "/tadashboard", "", "", nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("anonymous dashboard: got %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/login?from=%2Ftadashboard" {
		t.Fatalf("anonymous dashboard: Location = %q", got)
	}
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t)
	rec, env := f.do(t, http.MethodGet, "/health", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health: got %d", rec.Code)
	}
	if got := env.dataMap(t)["route_policy"]; got != "up" {
		t.Fatalf("health: route_policy = %v", got)
	}
}
