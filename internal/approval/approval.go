// Package approval implements the human-in-the-loop approval queue of spec
// §6: secret provisioning requests, pending human actions, and the other
// categories of decision a plan cannot make unilaterally.
package approval

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mandubian/ccos-sub020/internal/ccoserr"
)

// Category enumerates the kinds of approval request the queue tracks.
type Category string

const (
	CategoryServerDiscovery    Category = "ServerDiscovery"
	CategorySecretRequired     Category = "SecretRequired"
	CategoryEffectExecution    Category = "EffectExecution"
	CategoryCapabilitySynthesis Category = "CapabilitySynthesis"
	CategoryLLMPrompt          Category = "LlmPrompt"
)

// Status is a request's lifecycle state.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusComplete Status = "Complete"
	StatusExpired  Status = "Expired"
)

// Request is one pending or resolved approval-queue entry.
type Request struct {
	ID           string
	Category     Category
	CapabilityID string
	SecretType   string
	Description  string

	Status    Status
	Result    any
	CreatedAt time.Time
	ExpiresAt time.Time

	// dedupKey is (capability_id, secret_type) for SecretRequired requests,
	// empty otherwise; used to collapse duplicate secret asks into one
	// pending entry instead of paging an operator once per plan run.
	dedupKey string
}

// Secret is a provisioned secret value, kept separate from the Request's
// audit trail (secrets never appear in Request.Result or any log line).
type Secret struct {
	CapabilityID string
	SecretType   string
	Value        string
}

// Queue is the approval workflow of record: pending secret requests and
// pending human actions, addressable by id.
type Queue struct {
	mu       sync.Mutex
	requests map[string]*Request
	order    []string
	secrets  map[string]Secret // keyed by capability_id + "\x00" + secret_type

	nowFn func() time.Time
}

// New constructs an empty Queue.
func New() *Queue {
	return &Queue{
		requests: map[string]*Request{},
		secrets:  map[string]Secret{},
		nowFn:    time.Now,
	}
}

func secretKey(capabilityID, secretType string) string {
	return capabilityID + "\x00" + secretType
}

// AddSecretApproval records a pending SecretRequired request for
// (capabilityID, secretType), deduplicating against any existing pending
// request for the same pair rather than creating a second one (spec §6:
// operators should see one ask per missing secret, not one per plan run
// that needs it).
func (q *Queue) AddSecretApproval(capabilityID, secretType, description string, ttlHours float64) (Request, error) {
	if capabilityID == "" || secretType == "" {
		return Request{}, ccoserr.New(ccoserr.KindParse, "approval: capability id and secret type are required")
	}
	key := secretKey(capabilityID, secretType)

	q.mu.Lock()
	defer q.mu.Unlock()
	for _, id := range q.order {
		r := q.requests[id]
		if r.Status == StatusPending && r.dedupKey == key {
			return *r, nil
		}
	}

	now := q.nowFn()
	r := &Request{
		ID:           uuid.NewString(),
		Category:     CategorySecretRequired,
		CapabilityID: capabilityID,
		SecretType:   secretType,
		Description:  description,
		Status:       StatusPending,
		CreatedAt:    now,
		dedupKey:     key,
	}
	if ttlHours > 0 {
		r.ExpiresAt = now.Add(time.Duration(ttlHours * float64(time.Hour)))
	}
	q.requests[r.ID] = r
	q.order = append(q.order, r.ID)
	return *r, nil
}

// RequestHumanAction records a pending EffectExecution-style human action
// request (the narrower category used by the ccos.approval.* built-ins,
// which do not distinguish further sub-categories) and returns its id.
func (q *Queue) RequestHumanAction(ctx context.Context, description string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	r := &Request{
		ID:          uuid.NewString(),
		Category:    CategoryEffectExecution,
		Description: description,
		Status:      StatusPending,
		CreatedAt:   q.nowFn(),
	}
	q.requests[r.ID] = r
	q.order = append(q.order, r.ID)
	return r.ID, nil
}

// SetSecret provisions a secret value for (capabilityID, secretType) and
// marks any pending SecretRequired request for that pair Complete.
func (q *Queue) SetSecret(ctx context.Context, capabilityID, secretType, value string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.secrets[secretKey(capabilityID, secretType)] = Secret{CapabilityID: capabilityID, SecretType: secretType, Value: value}

	key := secretKey(capabilityID, secretType)
	for _, id := range q.order {
		r := q.requests[id]
		if r.Status == StatusPending && r.dedupKey == key {
			r.Status = StatusComplete
			r.Result = true
		}
	}
	return nil
}

// GetSecret returns the provisioned secret for (capabilityID, secretType),
// if any.
func (q *Queue) GetSecret(capabilityID, secretType string) (Secret, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	s, ok := q.secrets[secretKey(capabilityID, secretType)]
	return s, ok
}

// Complete resolves requestID with result, marking it Complete.
func (q *Queue) Complete(ctx context.Context, requestID string, result any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.requests[requestID]
	if !ok {
		return ccoserr.Newf(ccoserr.KindNotFound, "approval: unknown request %q", requestID)
	}
	if r.Status != StatusPending {
		return ccoserr.Newf(ccoserr.KindParse, "approval: request %q is not pending (status %s)", requestID, r.Status)
	}
	r.Status = StatusComplete
	r.Result = result
	return nil
}

// ListPendingSecrets returns every SecretRequired request still Pending, in
// creation order, expiring (and excluding) any whose TTL has elapsed.
func (q *Queue) ListPendingSecrets() []Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.nowFn()
	out := make([]Request, 0, len(q.order))
	for _, id := range q.order {
		r := q.requests[id]
		if r.Category != CategorySecretRequired || r.Status != StatusPending {
			continue
		}
		if !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt) {
			r.Status = StatusExpired
			continue
		}
		out = append(out, *r)
	}
	return out
}

// Get returns the request for id, if any.
func (q *Queue) Get(id string) (Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.requests[id]
	if !ok {
		return Request{}, false
	}
	return *r, true
}
