package service

import (
	"context"
	"fmt"
	"sync"

	"wabridge/internal/database"
	"wabridge/internal/models"
	"wabridge/internal/queue"
	"wabridge/pkg/telegram"
	"wabridge/pkg/whatsapp"
)

// mockStore is an in-memory Store.
type mockStore struct {
	mu         sync.Mutex
	nextID     int64
	customers  map[int64]*models.Customer
	origins    map[string]*models.LedgerEntry
	records    map[int64]string
	originErr  error
	topicErr   error
	clearCalls int
}

func newMockStore() *mockStore {
	return &mockStore{
		nextID:    1,
		customers: make(map[int64]*models.Customer),
		origins:   make(map[string]*models.LedgerEntry),
		records:   make(map[int64]string),
	}
}

func (m *mockStore) addCustomer(channel, chatID string, topicID int64, banned bool) *models.Customer {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &models.Customer{
		ID:      m.nextID,
		Channel: channel,
		ChatID:  chatID,
		TopicID: topicID,
		Banned:  banned,
	}
	m.nextID++
	m.customers[c.ID] = c
	return c
}

func (m *mockStore) GetOrCreateCustomer(ctx context.Context, channel, chatID string) (*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.customers {
		if c.Channel == channel && c.ChatID == chatID {
			return c, nil
		}
	}
	c := &models.Customer{ID: m.nextID, Channel: channel, ChatID: chatID}
	m.nextID++
	m.customers[c.ID] = c
	return c, nil
}

func (m *mockStore) GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.customers[id], nil
}

func (m *mockStore) GetCustomerByTopic(ctx context.Context, topicID int64) (*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.customers {
		if c.TopicID == topicID {
			return c, nil
		}
	}
	return nil, nil
}

func (m *mockStore) SetCustomerTopic(ctx context.Context, customerID, topicID int64) error {
	if m.topicErr != nil {
		return m.topicErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.customers[customerID]; ok {
		c.TopicID = topicID
	}
	return nil
}

func (m *mockStore) ClearCustomerTopic(ctx context.Context, customerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearCalls++
	if c, ok := m.customers[customerID]; ok {
		c.TopicID = 0
	}
	return nil
}

func (m *mockStore) RecordOrigin(ctx context.Context, customerID int64, direction models.Direction, originID string) (*models.LedgerEntry, error) {
	if m.originErr != nil {
		return nil, m.originErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%d/%s/%s", customerID, direction, originID)
	if _, exists := m.origins[key]; exists {
		return nil, database.ErrDuplicateOrigin
	}
	entry := &models.LedgerEntry{
		ID:         int64(len(m.origins) + 1),
		CustomerID: customerID,
		Direction:  direction,
		OriginID:   originID,
	}
	m.origins[key] = entry
	return entry, nil
}

func (m *mockStore) AttachDestination(ctx context.Context, entryID int64, destID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range m.origins {
		if entry.ID == entryID && entry.DestID == nil {
			d := destID
			entry.DestID = &d
		}
	}
	return nil
}

func (m *mockStore) SaveChannelMessageRecord(ctx context.Context, entryID int64, waMessageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[entryID] = waMessageID
	return nil
}

func (m *mockStore) entryByOrigin(originID string) *models.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range m.origins {
		if entry.OriginID == originID {
			return entry
		}
	}
	return nil
}

// mockTeamClient scripts Bot API behavior.
type mockTeamClient struct {
	mu            sync.Mutex
	nextMsgID     int64
	nextTopicID   int64
	sendErr       error
	sendErrOnce   bool
	createErr     error
	editErr       error
	sentTexts     []string
	createdTopics []string
	editedIcons   []string
	files         map[string]string
}

func newMockTeamClient() *mockTeamClient {
	return &mockTeamClient{nextMsgID: 100, nextTopicID: 10, files: map[string]string{}}
}

func (m *mockTeamClient) takeSendErr() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.sendErr
	if err != nil && m.sendErrOnce {
		m.sendErr = nil
	}
	return err
}

func (m *mockTeamClient) reply() *telegram.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextMsgID++
	return &telegram.Message{MessageID: m.nextMsgID}
}

func (m *mockTeamClient) SendMessage(ctx context.Context, chatID, topicID int64, text string) (*telegram.Message, error) {
	if err := m.takeSendErr(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sentTexts = append(m.sentTexts, text)
	m.mu.Unlock()
	return m.reply(), nil
}

func (m *mockTeamClient) SendLocation(ctx context.Context, chatID, topicID int64, latitude, longitude float64) (*telegram.Message, error) {
	if err := m.takeSendErr(); err != nil {
		return nil, err
	}
	return m.reply(), nil
}

func (m *mockTeamClient) SendContact(ctx context.Context, chatID, topicID int64, phoneNumber, firstName string) (*telegram.Message, error) {
	if err := m.takeSendErr(); err != nil {
		return nil, err
	}
	return m.reply(), nil
}

func (m *mockTeamClient) SendPhoto(ctx context.Context, chatID, topicID int64, filePath, caption string) (*telegram.Message, error) {
	if err := m.takeSendErr(); err != nil {
		return nil, err
	}
	return m.reply(), nil
}

func (m *mockTeamClient) SendVideo(ctx context.Context, chatID, topicID int64, filePath, caption string) (*telegram.Message, error) {
	if err := m.takeSendErr(); err != nil {
		return nil, err
	}
	return m.reply(), nil
}

func (m *mockTeamClient) SendDocument(ctx context.Context, chatID, topicID int64, filePath, caption string) (*telegram.Message, error) {
	if err := m.takeSendErr(); err != nil {
		return nil, err
	}
	return m.reply(), nil
}

func (m *mockTeamClient) SendVoice(ctx context.Context, chatID, topicID int64, filePath string) (*telegram.Message, error) {
	if err := m.takeSendErr(); err != nil {
		return nil, err
	}
	return m.reply(), nil
}

func (m *mockTeamClient) SendSticker(ctx context.Context, chatID, topicID int64, filePath string) (*telegram.Message, error) {
	if err := m.takeSendErr(); err != nil {
		return nil, err
	}
	return m.reply(), nil
}

func (m *mockTeamClient) CreateForumTopic(ctx context.Context, chatID int64, name, iconCustomEmojiID string) (*telegram.ForumTopic, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextTopicID++
	m.createdTopics = append(m.createdTopics, name)
	return &telegram.ForumTopic{MessageThreadID: m.nextTopicID, Name: name}, nil
}

func (m *mockTeamClient) EditForumTopic(ctx context.Context, chatID, topicID int64, iconCustomEmojiID string) error {
	if m.editErr != nil {
		return m.editErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.editedIcons = append(m.editedIcons, iconCustomEmojiID)
	return nil
}

func (m *mockTeamClient) GetFile(ctx context.Context, fileID string) (*telegram.File, error) {
	path, ok := m.files[fileID]
	if !ok {
		return nil, &telegram.APIError{Code: 400, Description: "Bad Request: file not found"}
	}
	return &telegram.File{FileID: fileID, FilePath: path}, nil
}

func (m *mockTeamClient) FileURL(filePath string) string {
	return "https://api.example/file/" + filePath
}

// mockProvider scripts customer-channel behavior.
type mockProvider struct {
	mu         sync.Mutex
	name       string
	result     *whatsapp.DeliveryResult
	sendErr    error
	sent       []*whatsapp.Outbound
	uploadID   string
	uploadErr  error
	markedRead []string
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Send(ctx context.Context, msg *whatsapp.Outbound) (*whatsapp.DeliveryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	m.sent = append(m.sent, msg)
	if m.result != nil {
		return m.result, nil
	}
	return &whatsapp.DeliveryResult{Status: whatsapp.StatusSent, MessageID: "wamid.OK"}, nil
}

func (m *mockProvider) UploadMedia(ctx context.Context, filePath, mimeType string) (string, error) {
	return m.uploadID, m.uploadErr
}

func (m *mockProvider) MarkRead(ctx context.Context, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markedRead = append(m.markedRead, messageID)
	return nil
}

func (m *mockProvider) MediaURL(ctx context.Context, mediaID string) (string, error) {
	return "https://media.example/" + mediaID, nil
}

func (m *mockProvider) AuthHeaders() map[string]string {
	return map[string]string{"X-Api-Key": "test"}
}

func (m *mockProvider) sentMessages() []*whatsapp.Outbound {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*whatsapp.Outbound, len(m.sent))
	copy(out, m.sent)
	return out
}

type mockRegistry struct {
	provider whatsapp.Provider
	err      error
}

func (m *mockRegistry) Active() (whatsapp.Provider, error) {
	return m.provider, m.err
}

// mockFetcher returns a fixed local path.
type mockFetcher struct {
	path string
	err  error
	urls []string
}

func (m *mockFetcher) Fetch(ctx context.Context, mediaURL string, headers map[string]string) (string, error) {
	m.urls = append(m.urls, mediaURL)
	return m.path, m.err
}

// passGate admits everything; scriptedGate admits per key once.
type passGate struct{}

func (passGate) Admit(ctx context.Context, channelTag, eventID string) bool { return true }

type onceGate struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newOnceGate() *onceGate { return &onceGate{seen: map[string]bool{}} }

func (g *onceGate) Admit(ctx context.Context, channelTag, eventID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := channelTag + "_" + eventID
	if g.seen[key] {
		return false
	}
	g.seen[key] = true
	return true
}

// inlineQueue runs submitted jobs synchronously and records outcomes.
type inlineQueue struct {
	mu       sync.Mutex
	jobs     []queue.Job
	run      bool
	outcomes []queue.Outcome
}

func (q *inlineQueue) Submit(job queue.Job) error {
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()
	if q.run {
		outcome, _ := job.Run(context.Background())
		q.mu.Lock()
		q.outcomes = append(q.outcomes, outcome)
		q.mu.Unlock()
	}
	return nil
}

type failQueue struct{}

func (failQueue) Submit(job queue.Job) error { return fmt.Errorf("delivery queue is full") }
