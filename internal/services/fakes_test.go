package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/brasillegalize/agency-server/internal/documents"
	"github.com/brasillegalize/agency-server/internal/eligibility"
	"github.com/brasillegalize/agency-server/internal/lifecycle"
	"github.com/brasillegalize/agency-server/internal/models"
	"github.com/brasillegalize/agency-server/internal/repository"
	"github.com/brasillegalize/agency-server/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type memSequences struct {
	mu     sync.Mutex
	values map[string]int64
}

func newMemSequences() *memSequences { return &memSequences{values: map[string]int64{}} }

func (m *memSequences) Next(ctx context.Context, scope string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[scope]++
	return m.values[scope], nil
}

type memLeads struct {
	mu      sync.Mutex
	leads   map[uuid.UUID]models.Lead
	clients *memClients
	apps    *memApps
}

func newMemLeads(clients *memClients, apps *memApps) *memLeads {
	return &memLeads{leads: map[uuid.UUID]models.Lead{}, clients: clients, apps: apps}
}

func (m *memLeads) Create(ctx context.Context, l *models.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads[l.ID] = *l
	return nil
}

func (m *memLeads) Get(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &l, nil
}

func (m *memLeads) List(ctx context.Context, status string, limit, offset int) ([]models.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Lead{}
	for _, l := range m.leads {
		if status == "" || l.Status == status {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memLeads) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	l.Status = status
	m.leads[id] = l
	return &l, nil
}

// Convert holds the lead lock for the whole conversion and undoes the
// client insert when the application insert fails, like the transaction
// in the repository.
func (m *memLeads) Convert(ctx context.Context, id uuid.UUID, build repository.ConvertFunc) (*models.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if l.Status == models.LeadConverted {
		return nil, repository.ErrConflict
	}
	client, app, err := build(&l)
	if err != nil {
		return nil, err
	}
	if err := m.clients.Create(ctx, client); err != nil {
		return nil, err
	}
	if err := m.apps.Create(ctx, app); err != nil {
		m.clients.mu.Lock()
		delete(m.clients.clients, client.ClientID)
		m.clients.mu.Unlock()
		return nil, err
	}
	l.Status = models.LeadConverted
	l.ClientID = &client.ClientID
	m.leads[id] = l
	return &l, nil
}

func (m *memLeads) CountByStatus(ctx context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int{}
	for _, l := range m.leads {
		out[l.Status]++
	}
	return out, nil
}

type memRules struct {
	rules []eligibility.Rule
	err   error
}

func (m *memRules) Active(ctx context.Context) ([]eligibility.Rule, error) {
	return m.rules, m.err
}

type memClients struct {
	mu      sync.Mutex
	clients map[string]models.Client
}

func newMemClients() *memClients { return &memClients{clients: map[string]models.Client{}} }

func (m *memClients) Create(ctx context.Context, c *models.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.clients[c.ClientID]; exists {
		return fmt.Errorf("duplicate client %s", c.ClientID)
	}
	m.clients[c.ClientID] = *c
	return nil
}

func (m *memClients) Get(ctx context.Context, clientID string) (*models.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[clientID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (m *memClients) List(ctx context.Context, f models.ClientFilter) ([]models.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Client{}
	for _, c := range m.clients {
		if c.Archived != f.Archived {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out, nil
}

func (m *memClients) Update(ctx context.Context, clientID string, p models.ClientPatch) (*models.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[clientID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Email != nil {
		c.Email = *p.Email
	}
	if p.Locale != nil {
		c.Locale = *p.Locale
	}
	if p.Currency != nil {
		c.Currency = *p.Currency
	}
	if p.Tags != nil {
		c.Tags = *p.Tags
	}
	m.clients[clientID] = c
	return &c, nil
}

func (m *memClients) Archive(ctx context.Context, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[clientID]
	if !ok {
		return repository.ErrNotFound
	}
	now := fixedNow
	c.Archived = true
	c.ArchivedAt = &now
	m.clients[clientID] = c
	return nil
}

func (m *memClients) mutate(clientID string, fn func(c *models.Client)) (*models.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[clientID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	fn(&c)
	m.clients[clientID] = c
	return &c, nil
}

func (m *memClients) AppendNote(ctx context.Context, clientID string, n models.NoteEntry) (*models.Client, error) {
	return m.mutate(clientID, func(c *models.Client) { c.Notes = append(c.Notes, n) })
}

func (m *memClients) AppendCommunication(ctx context.Context, clientID string, e models.CommunicationEntry) (*models.Client, error) {
	return m.mutate(clientID, func(c *models.Client) { c.Communications = append(c.Communications, e) })
}

func (m *memClients) AppendPayment(ctx context.Context, clientID string, p models.PaymentEntry) (*models.Client, error) {
	return m.mutate(clientID, func(c *models.Client) {
		c.Payments = append(c.Payments, p)
		c.TotalPaidCents += p.AmountCents
	})
}

func (m *memClients) CountActive(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.clients {
		if !c.Archived {
			n++
		}
	}
	return n, nil
}

type memApps struct {
	mu          sync.Mutex
	apps        map[string]models.Application
	issueCalls  int
	issueWrites int
	createErr   error
}

func newMemApps() *memApps { return &memApps{apps: map[string]models.Application{}} }

func (m *memApps) Create(ctx context.Context, a *models.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.apps[a.ApplicationID] = *a
	return nil
}

func (m *memApps) Get(ctx context.Context, applicationID string) (*models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.apps[applicationID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (m *memApps) GetByToken(ctx context.Context, token string) (*models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.apps {
		if a.PortalToken != nil && *a.PortalToken == token && !a.Archived {
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memApps) List(ctx context.Context, f models.ApplicationFilter) ([]models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Application{}
	for _, a := range m.apps {
		if a.Archived != f.Archived {
			continue
		}
		if f.Status != "" && string(a.Status) != f.Status {
			continue
		}
		if f.Phase != 0 && int(a.Phase) != f.Phase {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *memApps) ListForClient(ctx context.Context, clientID, email string) ([]models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Application{}
	for _, a := range m.apps {
		if a.Archived {
			continue
		}
		if (a.ClientID != nil && *a.ClientID == clientID) ||
			(a.ClientID == nil && email != "" && strings.EqualFold(a.Email, email)) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ApplicationID < out[j].ApplicationID })
	return out, nil
}

func (m *memApps) ApplyUpdate(ctx context.Context, applicationID string, c repository.ApplicationChange) (*models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.apps[applicationID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	docs := append([]models.UploadedFile(nil), a.Documents...)
	for _, review := range c.Reviews {
		if !applyReview(docs, review) {
			return nil, repository.ErrNotFound
		}
	}
	a.Documents = docs
	if c.Status != nil {
		a.Status = lifecycle.Status(*c.Status)
	}
	if c.Phase != nil {
		a.Phase = lifecycle.Phase(*c.Phase)
	}
	if c.ServiceType != nil {
		a.ServiceType = *c.ServiceType
	}
	if c.Package != nil {
		a.Package = *c.Package
	}
	if c.Locale != nil {
		a.Locale = *c.Locale
	}
	a.Timeline = append(a.Timeline, c.Timeline...)
	a.Notes = append(a.Notes, c.Notes...)
	a.Payments = append(a.Payments, c.Payments...)
	m.apps[applicationID] = a
	return &a, nil
}

func (m *memApps) IssuePortalCredentials(ctx context.Context, applicationID, token, passwordHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issueCalls++
	a, ok := m.apps[applicationID]
	if !ok || a.PortalToken != nil {
		return false, nil
	}
	a.PortalToken = &token
	a.PortalPasswordHash = &passwordHash
	a.HasPortalAccess = true
	m.apps[applicationID] = a
	m.issueWrites++
	return true, nil
}

func (m *memApps) AppendDocuments(ctx context.Context, applicationID string, files []models.UploadedFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.apps[applicationID]
	if !ok {
		return repository.ErrNotFound
	}
	a.Documents = append(a.Documents, files...)
	m.apps[applicationID] = a
	return nil
}

func applyReview(docs []models.UploadedFile, review models.DocumentReview) bool {
	for i := range docs {
		if docs[i].StoredFilename == review.StoredFilename {
			docs[i].Status = review.Status
			docs[i].RejectionReason = review.RejectionReason
			return true
		}
	}
	return false
}

func (m *memApps) Archive(ctx context.Context, applicationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.apps[applicationID]
	if !ok {
		return repository.ErrNotFound
	}
	a.Archived = true
	m.apps[applicationID] = a
	return nil
}

func (m *memApps) CountByPhase(ctx context.Context) (map[int]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int]int{}
	for _, a := range m.apps {
		if !a.Archived {
			out[int(a.Phase)]++
		}
	}
	return out, nil
}

type memRequests struct {
	mu   sync.Mutex
	reqs map[string]models.DocumentRequest
}

func newMemRequests() *memRequests { return &memRequests{reqs: map[string]models.DocumentRequest{}} }

func (m *memRequests) Create(ctx context.Context, d *models.DocumentRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs[d.RequestID] = *d
	return nil
}

func (m *memRequests) Get(ctx context.Context, requestID string) (*models.DocumentRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.reqs[requestID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &d, nil
}

func (m *memRequests) GetByToken(ctx context.Context, token string) (*models.DocumentRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.reqs {
		if d.UploadToken == token {
			return &d, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memRequests) ListByClient(ctx context.Context, clientID string) ([]models.DocumentRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.DocumentRequest{}
	for _, d := range m.reqs {
		if d.ClientID == clientID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memRequests) AppendFiles(ctx context.Context, requestID string, files []models.UploadedFile) (documents.RequestStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.reqs[requestID]
	if !ok {
		return "", repository.ErrNotFound
	}
	next, err := documents.AfterUpload(d.Status)
	if err != nil {
		return "", err
	}
	d.Status = next
	d.UploadedFiles = append(d.UploadedFiles, files...)
	m.reqs[requestID] = d
	return next, nil
}

func (m *memRequests) Complete(ctx context.Context, requestID string) (*models.DocumentRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.reqs[requestID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	next, err := documents.Complete(d.Status)
	if err != nil {
		return nil, err
	}
	now := fixedNow
	d.Status = next
	d.CompletedAt = &now
	m.reqs[requestID] = d
	return &d, nil
}

func (m *memRequests) CountOpen(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, d := range m.reqs {
		if d.Status != documents.StatusCompleted {
			n++
		}
	}
	return n, nil
}

type memAdmins struct {
	mu     sync.Mutex
	admins map[string]models.AdminUser
}

func newMemAdmins() *memAdmins { return &memAdmins{admins: map[string]models.AdminUser{}} }

func (m *memAdmins) GetByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.admins[strings.ToLower(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (m *memAdmins) CreateIfMissing(ctx context.Context, a *models.AdminUser) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(a.Email)
	if _, ok := m.admins[key]; ok {
		return false, nil
	}
	m.admins[key] = *a
	return true, nil
}

type memPricing struct {
	packages []models.PricingPackage
	names    map[string]map[int]string
}

func (m *memPricing) List(ctx context.Context, loc string, activeOnly bool) ([]models.PricingPackage, error) {
	out := []models.PricingPackage{}
	for _, p := range m.packages {
		if activeOnly && !p.Active {
			continue
		}
		if name, ok := m.names[loc][p.ID]; ok {
			p.Name = name
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memPricing) Update(ctx context.Context, id int, patch models.PricingPatch) (*models.PricingPackage, error) {
	for i := range m.packages {
		if m.packages[i].ID != id {
			continue
		}
		if patch.PriceCents != nil {
			m.packages[i].PriceCents = *patch.PriceCents
		}
		if patch.Currency != nil {
			m.packages[i].Currency = *patch.Currency
		}
		if patch.Name != nil {
			if m.names[patch.Locale] == nil {
				m.names[patch.Locale] = map[int]string{}
			}
			m.names[patch.Locale][id] = *patch.Name
		}
		p := m.packages[i]
		if name, ok := m.names[patch.Locale][id]; ok {
			p.Name = name
		}
		return &p, nil
	}
	return nil, repository.ErrNotFound
}

type dispatched struct {
	template string
	locale   string
	to       string
	data     any
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []dispatched
}

func (n *recordingNotifier) Dispatch(ctx context.Context, template, loc, to string, data any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, dispatched{template: template, locale: loc, to: to, data: data})
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemBlobs() *memBlobs { return &memBlobs{objects: map[string][]byte{}} }

func (m *memBlobs) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = b
	return nil
}

func (m *memBlobs) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memBlobs) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memBlobs) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// fixture wires every service over the in-memory stores.
type fixture struct {
	seq      *memSequences
	leads    *memLeads
	rules    *memRules
	clients  *memClients
	apps     *memApps
	requests *memRequests
	admins   *memAdmins
	blobs    *memBlobs
	mail     *recordingNotifier

	leadSvc     *LeadService
	clientSvc   *ClientService
	appSvc      *ApplicationService
	requestSvc  *DocumentRequestService
	trackerSvc  *TrackerService
	dashboardSv *DashboardService
}

const testBaseURL = "https://brasillegalize.test"

func newFixture(policy lifecycle.TransitionPolicy) *fixture {
	logger := zap.NewNop().Sugar()
	clients, apps := newMemClients(), newMemApps()
	f := &fixture{
		seq:      newMemSequences(),
		leads:    newMemLeads(clients, apps),
		rules:    &memRules{},
		clients:  clients,
		apps:     apps,
		requests: newMemRequests(),
		admins:   newMemAdmins(),
		blobs:    newMemBlobs(),
		mail:     &recordingNotifier{},
	}
	f.clientSvc = NewClientService(f.clients, f.apps, f.seq, logger)
	f.clientSvc.now = clock
	f.appSvc = NewApplicationService(f.apps, f.clients, f.seq, policy, f.mail, testBaseURL, logger)
	f.appSvc.now = clock
	f.leadSvc = NewLeadService(f.leads, f.rules, f.clientSvc, f.appSvc, "2026-01", logger)
	f.leadSvc.now = clock
	f.requestSvc = NewDocumentRequestService(f.requests, f.clients, f.apps, f.seq, f.blobs, f.mail, testBaseURL, logger)
	f.requestSvc.now = clock
	f.trackerSvc = NewTrackerService(f.apps, logger)
	f.dashboardSv = NewDashboardService(f.leads, f.clients, f.apps, f.requests)
	return f
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
func intPtr(i int) *int       { return &i }
