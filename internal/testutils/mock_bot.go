package testutils

import (
	"sync"
)

// MockMessage captures a single message sent by MockBot.
type MockMessage struct {
	ChatID    int64
	MessageID int
	Text      string
	Keyboard  any
}

// MockEdit captures one EditMessageText call.
type MockEdit struct {
	ChatID    int64
	MessageID int
	Text      string
}

// MockUpload captures a single video or audio sent by MockBot.
type MockUpload struct {
	ChatID   int64
	FilePath string
	Caption  string
	Audio    bool
	// Existed reports whether the file was on disk when the upload was requested.
	Existed bool
}

// MockBot implements bot.Service for testing. It is safe for concurrent use.
type MockBot struct {
	mu     sync.Mutex
	nextID int

	SentMessages []MockMessage
	Edits        []MockEdit
	Uploads      []MockUpload
	ChatActions  []string

	// SendVideoError, SendAudioError and EditError, if set, are returned by the matching method.
	SendVideoError error
	SendAudioError error
	EditError      error
}

func (m *MockBot) SendMessage(chatID int64, text string, keyboard any) {
	_, _ = m.SendMessageReturningID(chatID, text, keyboard)
}

func (m *MockBot) SendMessageReturningID(chatID int64, text string, keyboard any) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.SentMessages = append(m.SentMessages, MockMessage{
		ChatID:    chatID,
		MessageID: m.nextID,
		Text:      text,
		Keyboard:  keyboard,
	})
	return m.nextID, nil
}

func (m *MockBot) EditMessageText(chatID int64, messageID int, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EditError != nil {
		return m.EditError
	}
	m.Edits = append(m.Edits, MockEdit{ChatID: chatID, MessageID: messageID, Text: text})
	return nil
}

func (m *MockBot) SendVideo(chatID int64, filePath, caption string) error {
	return m.upload(chatID, filePath, caption, false, m.SendVideoError)
}

func (m *MockBot) SendAudio(chatID int64, filePath, caption string) error {
	return m.upload(chatID, filePath, caption, true, m.SendAudioError)
}

func (m *MockBot) upload(chatID int64, filePath, caption string, audio bool, err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Uploads = append(m.Uploads, MockUpload{
		ChatID:   chatID,
		FilePath: filePath,
		Caption:  caption,
		Audio:    audio,
		Existed:  fileExists(filePath),
	})
	return err
}

func (m *MockBot) SendChatAction(_ int64, action string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatActions = append(m.ChatActions, action)
}

// GetLastMessage returns the most recently sent message, or nil if none.
func (m *MockBot) GetLastMessage() *MockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.SentMessages) == 0 {
		return nil
	}
	msg := m.SentMessages[len(m.SentMessages)-1]
	return &msg
}

// GetLastEdit returns the most recent edit, or nil if none.
func (m *MockBot) GetLastEdit() *MockEdit {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Edits) == 0 {
		return nil
	}
	edit := m.Edits[len(m.Edits)-1]
	return &edit
}

// GetUploads returns a copy of the recorded uploads.
func (m *MockBot) GetUploads() []MockUpload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockUpload(nil), m.Uploads...)
}

// ClearMessages resets everything captured so far.
func (m *MockBot) ClearMessages() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentMessages = nil
	m.Edits = nil
	m.Uploads = nil
	m.ChatActions = nil
}
