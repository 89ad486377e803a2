package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/telinga/telinga-backend/internal/classifier"
	appErrors "github.com/telinga/telinga-backend/internal/errors"
	"github.com/telinga/telinga-backend/internal/model"
	"github.com/telinga/telinga-backend/internal/service"
)

// In-memory repository fakes shared across the service tests.

type mockCustomerRepo struct {
	mu        sync.Mutex
	nextID    int
	customers map[int]*model.Customer
}

func newMockCustomerRepo() *mockCustomerRepo {
	return &mockCustomerRepo{customers: map[int]*model.Customer{}}
}

func (m *mockCustomerRepo) GetByID(id int) (*model.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.customers[id], nil
}

func (m *mockCustomerRepo) GetByPhone(phone string) (*model.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.customers {
		if c.Phone == phone {
			return c, nil
		}
	}
	return nil, nil
}

func (m *mockCustomerRepo) GetByEmail(email string) (*model.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.customers {
		if c.Email == email {
			return c, nil
		}
	}
	return nil, nil
}

func (m *mockCustomerRepo) Create(c *model.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c.ID = m.nextID
	c.Active = true
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	m.customers[c.ID] = c
	return nil
}

func (m *mockCustomerRepo) Upsert(c *model.Customer) error {
	var existing *model.Customer
	if c.Phone != "" {
		existing, _ = m.GetByPhone(c.Phone)
	} else {
		existing, _ = m.GetByEmail(c.Email)
	}
	if existing == nil {
		return m.Create(c)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = existing.ID
	c.AccountID = existing.AccountID
	c.Active = existing.Active
	m.customers[c.ID] = c
	return nil
}

func (m *mockCustomerRepo) Deactivate(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.customers[id]; ok {
		c.Active = false
	}
	return nil
}

type mockThreadRepo struct {
	mu      sync.Mutex
	nextID  int
	threads map[int]*model.ConversationThread
}

func newMockThreadRepo() *mockThreadRepo {
	return &mockThreadRepo{threads: map[int]*model.ConversationThread{}}
}

func (m *mockThreadRepo) GetByCustomerAndChannel(customerID int, channel model.Channel) (*model.ConversationThread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.threads {
		if t.CustomerID == customerID && t.Channel == channel {
			return t, nil
		}
	}
	return nil, nil
}

func (m *mockThreadRepo) GetByProviderThreadID(providerThreadID string) (*model.ConversationThread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.threads {
		if t.ProviderThreadID == providerThreadID && providerThreadID != "" {
			return t, nil
		}
	}
	return nil, nil
}

func (m *mockThreadRepo) Create(t *model.ConversationThread) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t.ID = m.nextID
	t.MessageCount = 1
	t.LastActivityAt = time.Now()
	t.CreatedAt = t.LastActivityAt
	m.threads[t.ID] = t
	return nil
}

func (m *mockThreadRepo) Touch(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.threads[id]; ok {
		t.MessageCount++
		t.LastActivityAt = time.Now()
	}
	return nil
}

type mockFeedbackRepo struct {
	mu       sync.Mutex
	nextID   int
	messages map[int]*model.FeedbackMessage
	byEvent  map[string]int
}

func newMockFeedbackRepo() *mockFeedbackRepo {
	return &mockFeedbackRepo{
		messages: map[int]*model.FeedbackMessage{},
		byEvent:  map[string]int{},
	}
}

func (m *mockFeedbackRepo) CreateDedup(msg *model.FeedbackMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, seen := m.byEvent[msg.ProviderEventID]; seen {
		return appErrors.NewDuplicateEvent(msg.ProviderEventID)
	}
	m.nextID++
	msg.ID = m.nextID
	msg.Status = model.FeedbackStatusReceived
	msg.CreatedAt = time.Now()
	m.messages[msg.ID] = msg
	m.byEvent[msg.ProviderEventID] = msg.ID
	return nil
}

func (m *mockFeedbackRepo) GetByID(id int) (*model.FeedbackMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages[id], nil
}

func (m *mockFeedbackRepo) AttachCorrelation(id, customerID, threadID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg, ok := m.messages[id]; ok {
		msg.CustomerID = &customerID
		msg.ThreadID = &threadID
	}
	return nil
}

func (m *mockFeedbackRepo) RecordClassification(id int, sentiment string, confidence float64, language string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok || msg.Sentiment != nil {
		return nil
	}
	now := time.Now()
	msg.Sentiment = &sentiment
	msg.Confidence = &confidence
	msg.Language = &language
	msg.Status = model.FeedbackStatusProcessed
	msg.ClassifiedAt = &now
	return nil
}

func (m *mockFeedbackRepo) SetResponseID(id, responseID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg, ok := m.messages[id]; ok && msg.ResponseID == nil {
		msg.ResponseID = &responseID
	}
	return nil
}

type mockScheduledRepo struct {
	mu       sync.Mutex
	nextID   int
	messages map[int]*model.ScheduledMessage
	// delivery, when set, lets ListStrandedDispatched see which messages
	// already have a delivery record.
	delivery *mockDeliveryRepo
}

func newMockScheduledRepo() *mockScheduledRepo {
	return &mockScheduledRepo{messages: map[int]*model.ScheduledMessage{}}
}

func (m *mockScheduledRepo) Create(msg *model.ScheduledMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	msg.ID = m.nextID
	if msg.Status == "" {
		msg.Status = model.ScheduledStatusPending
	}
	msg.CreatedAt = time.Now()
	msg.UpdatedAt = msg.CreatedAt
	m.messages[msg.ID] = msg
	return nil
}

func (m *mockScheduledRepo) GetByID(id int) (*model.ScheduledMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages[id], nil
}

func (m *mockScheduledRepo) ListDueIDs(now time.Time, limit int) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []int{}
	for _, msg := range m.messages {
		if msg.Status == model.ScheduledStatusPending && !msg.ScheduledAt.After(now) {
			ids = append(ids, msg.ID)
		}
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

func (m *mockScheduledRepo) ListStrandedDispatched(before time.Time, limit int) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []int{}
	for _, msg := range m.messages {
		if msg.Status != model.ScheduledStatusDispatched ||
			msg.DispatchedAt == nil || msg.DispatchedAt.After(before) {
			continue
		}
		if m.delivery != nil && m.delivery.hasRecordFor(msg.ID) {
			continue
		}
		ids = append(ids, msg.ID)
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

func (m *mockScheduledRepo) ClaimForDispatch(id int, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok || msg.Status != model.ScheduledStatusPending || msg.ScheduledAt.After(now) {
		return false, nil
	}
	msg.Status = model.ScheduledStatusDispatched
	msg.DispatchedAt = &now
	return true, nil
}

func (m *mockScheduledRepo) TransitionStatus(id int, from, to, lastError string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok || msg.Status != from {
		return false, nil
	}
	msg.Status = to
	msg.LastError = lastError
	return true, nil
}

func (m *mockScheduledRepo) Cancel(id int) (bool, error) {
	return m.TransitionStatus(id, model.ScheduledStatusPending, model.ScheduledStatusCancelled, "")
}

type mockDeliveryRepo struct {
	mu         sync.Mutex
	nextID     int
	records    map[int]*model.DeliveryRecord
	byProvider map[string]int
}

func newMockDeliveryRepo() *mockDeliveryRepo {
	return &mockDeliveryRepo{
		records:    map[int]*model.DeliveryRecord{},
		byProvider: map[string]int{},
	}
}

func (m *mockDeliveryRepo) Create(rec *model.DeliveryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	rec.ID = m.nextID
	if rec.Status == "" {
		rec.Status = model.DeliveryStatusQueued
	}
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	m.records[rec.ID] = rec
	m.byProvider[rec.ProviderMessageID] = rec.ID
	return nil
}

// Reads return copies, like row scans do, so callers observe the state at
// read time rather than sharing the stored struct.
func (m *mockDeliveryRepo) GetByProviderMessageID(providerMessageID string) (*model.DeliveryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byProvider[providerMessageID]; ok {
		rec := *m.records[id]
		return &rec, nil
	}
	return nil, nil
}

func deliveryTerminal(status string) bool {
	switch status {
	case model.DeliveryStatusDelivered, model.DeliveryStatusRead,
		model.DeliveryStatusFailed, model.DeliveryStatusUndelivered,
		model.DeliveryStatusUnknown:
		return true
	}
	return false
}

func (m *mockDeliveryRepo) ListNonTerminal(limit int) ([]*model.DeliveryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := []*model.DeliveryRecord{}
	for _, rec := range m.records {
		if !deliveryTerminal(rec.Status) {
			snapshot := *rec
			records = append(records, &snapshot)
		}
		if len(records) == limit {
			break
		}
	}
	return records, nil
}

func (m *mockDeliveryRepo) hasRecordFor(scheduledMessageID int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.ScheduledMessageID == scheduledMessageID {
			return true
		}
	}
	return false
}

func (m *mockDeliveryRepo) RecordCheck(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[id]; ok {
		now := time.Now()
		rec.CheckAttempts++
		rec.LastCheckedAt = &now
	}
	return nil
}

func (m *mockDeliveryRepo) TransitionStatus(id int, status string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok || deliveryTerminal(rec.Status) {
		return false, nil
	}
	rec.Status = status
	return true, nil
}

type mockMeetingRepo struct {
	mu       sync.Mutex
	nextID   int
	meetings []*model.MeetingRequest
}

func (m *mockMeetingRepo) Create(req *model.MeetingRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	req.ID = m.nextID
	if req.Status == "" {
		req.Status = model.MeetingStatusProposed
	}
	req.CreatedAt = time.Now()
	m.meetings = append(m.meetings, req)
	return nil
}

func (m *mockMeetingRepo) ListByCustomer(customerID int) ([]*model.MeetingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.MeetingRequest{}
	for _, req := range m.meetings {
		if req.CustomerID == customerID {
			out = append(out, req)
		}
	}
	return out, nil
}

func (m *mockMeetingRepo) UpdateStatus(id int, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, req := range m.meetings {
		if req.ID == id {
			req.Status = status
		}
	}
	return nil
}

type publishedTask struct {
	Topic string
	Body  []byte
}

type mockQueue struct {
	mu        sync.Mutex
	published []publishedTask
	failNext  bool
}

func (q *mockQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failNext {
		q.failNext = false
		return errors.New("broker unavailable")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	q.published = append(q.published, publishedTask{Topic: topic, Body: body})
	return nil
}

func (q *mockQueue) Subscribe(topic string, handler func(data []byte) error) error {
	return nil
}

func (q *mockQueue) topicCount(topic string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, p := range q.published {
		if p.Topic == topic {
			n++
		}
	}
	return n
}

// stubClassifier returns a canned result without calling anything.
type stubClassifier struct {
	result classifier.Result
	calls  int
}

func (s *stubClassifier) Classify(ctx context.Context, text string) classifier.Result {
	s.calls++
	return s.result
}

// stubChannelClient fails the first failures sends, then succeeds. Statuses
// are popped from the front of statusSeq on each CheckStatus call.
type stubChannelClient struct {
	mu        sync.Mutex
	failures  int
	sends     int
	sentTo    []string
	sentBody  []string
	statusSeq []string
}

func (s *stubChannelClient) Send(ctx context.Context, to, body string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends++
	if s.failures > 0 {
		s.failures--
		return "", errors.New("provider rejected message")
	}
	s.sentTo = append(s.sentTo, to)
	s.sentBody = append(s.sentBody, body)
	return "SM-test", nil
}

func (s *stubChannelClient) CheckStatus(ctx context.Context, providerMessageID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.statusSeq) == 0 {
		return "sent", nil
	}
	status := s.statusSeq[0]
	s.statusSeq = s.statusSeq[1:]
	return status, nil
}

type stubVerifier struct {
	ok bool
}

func (v *stubVerifier) Verify(_ *service.InboundEvent) bool { return v.ok }

// stubDedupeCache is an in-memory DedupeCache.
type stubDedupeCache struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newStubDedupeCache() *stubDedupeCache {
	return &stubDedupeCache{keys: map[string]bool{}}
}

func (c *stubDedupeCache) Seen(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keys[key], nil
}

func (c *stubDedupeCache) Mark(ctx context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[key] = true
	return nil
}

// flakyFeedbackRepo fails the first failures CreateDedup calls with a
// transient error, then delegates.
type flakyFeedbackRepo struct {
	*mockFeedbackRepo
	failures int
}

func (m *flakyFeedbackRepo) CreateDedup(msg *model.FeedbackMessage) error {
	if m.failures > 0 {
		m.failures--
		return errors.New("connection reset by peer")
	}
	return m.mockFeedbackRepo.CreateDedup(msg)
}

// flakyMeetingRepo fails the first failures Create calls, then delegates.
type flakyMeetingRepo struct {
	mockMeetingRepo
	failures int
}

func (m *flakyMeetingRepo) Create(req *model.MeetingRequest) error {
	if m.failures > 0 {
		m.failures--
		return errors.New("deadlock detected")
	}
	return m.mockMeetingRepo.Create(req)
}
