package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cloudedbasement/control-panel/internal/client"
	"github.com/cloudedbasement/control-panel/internal/models"
	"github.com/cloudedbasement/control-panel/internal/repository"
)

// In-memory collaborators shared by the service tests.

type statusWrite struct {
	serverID string
	status   string
}

type fakeServerStore struct {
	mu      sync.Mutex
	servers map[string]*models.Server

	warnCandidates []*models.ServerWithOwner
	expiredTrials  []*models.ServerWithOwner
	lapsed         []*models.ServerWithOwner
	stopped        []*models.ServerWithOwner

	statusWrites     []statusWrite
	warningsSent     []string
	deleted          []string
	failUpdateStatus bool
}

func newFakeServerStore() *fakeServerStore {
	return &fakeServerStore{servers: make(map[string]*models.Server)}
}

func (f *fakeServerStore) Create(ctx context.Context, s *models.Server) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	f.servers[s.ID] = &cp
	return nil
}

func (f *fakeServerStore) GetByID(ctx context.Context, id string) (*models.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.servers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeServerStore) GetActiveByUser(ctx context.Context, userID string) (*models.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.servers {
		if s.UserID == userID && s.Status != models.ServerStatusDeleted && s.Status != models.ServerStatusFailed {
			cp := *s
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeServerStore) GetLatestByUser(ctx context.Context, userID string) (*models.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.servers {
		if s.UserID == userID && s.Status != models.ServerStatusDeleted {
			cp := *s
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeServerStore) Update(ctx context.Context, s *models.Server) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.servers[s.ID] = &cp
	return nil
}

func (f *fakeServerStore) UpdateStatus(ctx context.Context, id, status string, errorMsg *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdateStatus {
		return errors.New("update failed")
	}
	f.statusWrites = append(f.statusWrites, statusWrite{serverID: id, status: status})
	if s, ok := f.servers[id]; ok {
		s.Status = status
		s.ErrorMessage = errorMsg
		s.UpdatedAt = time.Now()
	}
	return nil
}

func (f *fakeServerStore) MarkTrialWarningSent(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warningsSent = append(f.warningsSent, id)
	if s, ok := f.servers[id]; ok {
		s.TrialWarningSent = true
	}
	return nil
}

func (f *fakeServerStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	delete(f.servers, id)
	return nil
}

func (f *fakeServerStore) ListExpiredTrials(ctx context.Context, trialCutoff time.Time) ([]*models.ServerWithOwner, error) {
	return f.expiredTrials, nil
}

func (f *fakeServerStore) ListLapsedPayments(ctx context.Context, trialCutoff, paymentCutoff time.Time) ([]*models.ServerWithOwner, error) {
	return f.lapsed, nil
}

func (f *fakeServerStore) ListStoppedSince(ctx context.Context, graceCutoff time.Time) ([]*models.ServerWithOwner, error) {
	return f.stopped, nil
}

func (f *fakeServerStore) ListTrialWarningCandidates(ctx context.Context, bandStart, bandEnd time.Time) ([]*models.ServerWithOwner, error) {
	return f.warnCandidates, nil
}

type fakeComputeGateway struct {
	mu         sync.Mutex
	poweredOff []string
	poweredOn  []string
	rebooted   []string
	destroyed  []string
	created    []*client.CreateDropletRequest

	powerOffErr error
	destroyErr  error
	createErr   error
	activeIP    string
}

func (f *fakeComputeGateway) CreateDroplet(ctx context.Context, req *client.CreateDropletRequest) (*client.Droplet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	return &client.Droplet{ID: 4242, Name: req.Name, Status: "new"}, nil
}

func (f *fakeComputeGateway) PowerOff(ctx context.Context, dropletID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.powerOffErr != nil {
		return f.powerOffErr
	}
	f.poweredOff = append(f.poweredOff, dropletID)
	return nil
}

func (f *fakeComputeGateway) PowerOn(ctx context.Context, dropletID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.poweredOn = append(f.poweredOn, dropletID)
	return nil
}

func (f *fakeComputeGateway) Reboot(ctx context.Context, dropletID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rebooted = append(f.rebooted, dropletID)
	return nil
}

func (f *fakeComputeGateway) Destroy(ctx context.Context, dropletID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.destroyErr != nil {
		return f.destroyErr
	}
	f.destroyed = append(f.destroyed, dropletID)
	return nil
}

func (f *fakeComputeGateway) WaitForDropletActive(ctx context.Context, dropletID string, maxWait time.Duration) (*client.Droplet, error) {
	ip := f.activeIP
	if ip == "" {
		ip = "203.0.113.10"
	}
	d := &client.Droplet{ID: 4242, Status: "active"}
	d.Networks.V4 = append(d.Networks.V4, struct {
		IPAddress string `json:"ip_address"`
		Type      string `json:"type"`
	}{IPAddress: ip, Type: "public"})
	return d, nil
}

type sentMail struct {
	to      string
	subject string
	body    string
}

type fakeMailer struct {
	mu      sync.Mutex
	sent    []sentMail
	sendErr error
}

func (f *fakeMailer) Send(to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (f *fakeMailer) sentTo(addr string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.sent {
		if m.to == addr {
			n++
		}
	}
	return n
}

type fakeEventLog struct {
	mu      sync.Mutex
	actions []string
	events  []*models.ServerEvent
}

func (f *fakeEventLog) LogAction(ctx context.Context, serverID, action, status, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action)
	f.events = append(f.events, &models.ServerEvent{
		ServerID: serverID,
		Action:   action,
		Status:   status,
		Message:  message,
	})
	return nil
}

func (f *fakeEventLog) GetByServerID(ctx context.Context, serverID string, limit int) ([]*models.ServerEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.ServerEvent
	for _, e := range f.events {
		if e.ServerID == serverID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeDomainStore struct {
	mu         sync.Mutex
	domains    map[string]*models.Domain
	candidates []*models.SSLCandidate
	sslWrites  map[string][]string
}

func newFakeDomainStore() *fakeDomainStore {
	return &fakeDomainStore{
		domains:   make(map[string]*models.Domain),
		sslWrites: make(map[string][]string),
	}
}

func (f *fakeDomainStore) Create(ctx context.Context, d *models.Domain) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.domains {
		if existing.Name == d.Name {
			return repository.ErrDuplicateDomain
		}
	}
	cp := *d
	cp.CreatedAt = time.Now()
	f.domains[d.ID] = &cp
	return nil
}

func (f *fakeDomainStore) GetByID(ctx context.Context, id string) (*models.Domain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.domains[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDomainStore) GetByName(ctx context.Context, name string) (*models.Domain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.domains {
		if d.Name == name {
			cp := *d
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeDomainStore) ListByUser(ctx context.Context, userID string) ([]*models.Domain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Domain
	for _, d := range f.domains {
		if d.UserID == userID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeDomainStore) CountByServer(ctx context.Context, serverID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, d := range f.domains {
		if d.ServerID == serverID {
			n++
		}
	}
	return n, nil
}

func (f *fakeDomainStore) UpdateSSLStatus(ctx context.Context, id, sslStatus string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sslWrites[id] = append(f.sslWrites[id], sslStatus)
	if d, ok := f.domains[id]; ok {
		d.SSLStatus = sslStatus
	}
	for _, c := range f.candidates {
		if c.ID == id {
			c.SSLStatus = sslStatus
		}
	}
	return nil
}

func (f *fakeDomainStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.domains, id)
	return nil
}

func (f *fakeDomainStore) ListSSLCandidates(ctx context.Context) ([]*models.SSLCandidate, error) {
	return f.candidates, nil
}

type fakePaymentStore struct {
	mu       sync.Mutex
	payments []*models.Payment
}

func (f *fakePaymentStore) Create(ctx context.Context, p *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	cp.CreatedAt = time.Now()
	f.payments = append(f.payments, &cp)
	return nil
}

func (f *fakePaymentStore) GetLatestSucceededByUser(ctx context.Context, userID string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.payments) - 1; i >= 0; i-- {
		if f.payments[i].UserID == userID && f.payments[i].Status == models.PaymentStatusSucceeded {
			cp := *f.payments[i]
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakePaymentStore) ListByUser(ctx context.Context, userID string) ([]*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Payment
	for _, p := range f.payments {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeUserStore struct {
	users map[string]*models.User
}

func (f *fakeUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

type fakeResolver struct {
	addrs map[string][]string
	errs  map[string]error
}

func (f *fakeResolver) LookupA(ctx context.Context, name string) ([]string, error) {
	if err, ok := f.errs[name]; ok {
		return nil, err
	}
	return f.addrs[name], nil
}

type execCall struct {
	host    string
	command string
}

type fakeExecutor struct {
	mu      sync.Mutex
	calls   []execCall
	results []*client.ExecResult
	errs    []error
}

func (f *fakeExecutor) Execute(ctx context.Context, host, username, password, command string, timeout time.Duration) (*client.ExecResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, execCall{host: host, command: command})
	idx := len(f.calls) - 1
	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	if idx < len(f.results) {
		return f.results[idx], nil
	}
	return &client.ExecResult{}, nil
}

func serverWithOwner(id, dropletID, email string) *models.ServerWithOwner {
	s := &models.ServerWithOwner{OwnerEmail: email}
	s.ID = id
	s.UserID = "user-" + id
	s.Plan = models.PlanBasic
	s.Status = models.ServerStatusRunning
	s.CreatedAt = time.Now().Add(-48 * time.Hour)
	if dropletID != "" {
		s.DropletID = &dropletID
	}
	return s
}
