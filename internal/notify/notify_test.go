package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"hnsort/internal/models"
)

// MockConn records published messages.
type MockConn struct {
	PublishErr error
	Subjects   []string
	Messages   [][]byte
	Flushed    int
}

func (m *MockConn) Publish(subject string, data []byte) error {
	if m.PublishErr != nil {
		return m.PublishErr
	}

	m.Subjects = append(m.Subjects, subject)
	m.Messages = append(m.Messages, data)

	return nil
}

func (m *MockConn) FlushWithContext(context.Context) error {
	m.Flushed++

	return nil
}

var _ publisher = (*MockConn)(nil)

func TestNotifier_RunCompleted(t *testing.T) {
	conn := &MockConn{}

	n, err := New(conn, "hnsort.run.completed", nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	summary := models.RunSummary{RunID: "abc", HaltReason: models.HaltCapReached, Count: 100, Sorted: true}
	if err := n.RunCompleted(context.Background(), summary); err != nil {
		t.Fatalf("RunCompleted failed: %v", err)
	}

	if len(conn.Messages) != 1 || conn.Subjects[0] != "hnsort.run.completed" || conn.Flushed != 1 {
		t.Fatalf("unexpected publish state: %+v", conn)
	}

	var event Event
	if err := json.Unmarshal(conn.Messages[0], &event); err != nil {
		t.Fatalf("invalid event payload: %v", err)
	}

	if event.Type != "run.completed" || event.Summary.RunID != "abc" || event.Summary.Count != 100 {
		t.Errorf("unexpected event: %+v", event)
	}
}

func TestNotifier_PublishError(t *testing.T) {
	boom := errors.New("connection closed")

	n, _ := New(&MockConn{PublishErr: boom}, "s", nil)
	if err := n.RunCompleted(context.Background(), models.RunSummary{}); !errors.Is(err, boom) {
		t.Fatalf("Expected wrapped publish error, got %v", err)
	}
}

func TestNotifier_Disabled(t *testing.T) {
	n, err := Connect("", "ignored", nil)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if n.Enabled() {
		t.Error("notifier without url should be disabled")
	}

	if err := n.RunCompleted(context.Background(), models.RunSummary{}); err != nil {
		t.Errorf("disabled notifier returned %v", err)
	}

	var nilNotifier *Notifier
	if err := nilNotifier.RunCompleted(context.Background(), models.RunSummary{}); err != nil {
		t.Errorf("nil notifier returned %v", err)
	}

	nilNotifier.Close()
}

func TestNew_MissingSubject(t *testing.T) {
	if _, err := New(&MockConn{}, "", nil); !errors.Is(err, ErrMissingSubject) {
		t.Fatalf("Expected ErrMissingSubject, got %v", err)
	}
}
