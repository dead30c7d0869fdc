package session

import (
	"errors"
	"sync"
	"testing"

	"github.com/BerylCAtieno/milo-api/internal/models"
	"github.com/BerylCAtieno/milo-api/internal/utils"
)

func TestConversationLifecycle(t *testing.T) {
	c := newConversation()
	if c.State() != StateIdle {
		t.Fatalf("initial state = %s", c.State())
	}

	c.Compose()
	if c.State() != StateComposing {
		t.Errorf("after Compose = %s", c.State())
	}

	history := c.Submit("TSH 1.8")
	if len(history) != 0 {
		t.Errorf("history before first message = %v", history)
	}
	if c.State() != StateAwaitingReply {
		t.Errorf("after Submit = %s", c.State())
	}
	if msgs := c.Messages(); len(msgs) != 1 || msgs[0].Sender != models.SenderUser {
		t.Errorf("user message should be appended before the reply: %v", msgs)
	}

	c.Deliver("At goal.")
	if c.State() != StateDelivered {
		t.Errorf("after Deliver = %s", c.State())
	}

	history = c.Submit("And free T3?")
	if len(history) != 2 {
		t.Errorf("history = %v, want two prior messages", history)
	}
}

func TestConversationFailAppendsFallback(t *testing.T) {
	c := newConversation()
	c.Submit("Estradiol 41")
	c.Fail()

	if c.State() != StateFailed {
		t.Errorf("state = %s, want failed", c.State())
	}
	msgs := c.Messages()
	last := msgs[len(msgs)-1]
	if last.Sender != models.SenderAssistant || last.Text != FallbackReply {
		t.Errorf("last message = %+v", last)
	}

	c.Compose()
	if c.State() != StateComposing {
		t.Errorf("new turn after failure should compose, got %s", c.State())
	}
}

func TestComposeIgnoredWhilePending(t *testing.T) {
	c := newConversation()
	c.Submit("x")
	c.Compose()

	if c.State() != StateAwaitingReply {
		t.Errorf("state = %s, want awaiting_reply", c.State())
	}
}

func TestSelectPatientResetsTranscripts(t *testing.T) {
	ctrl := NewController(utils.NewNopLogger())
	s := ctrl.Create()

	s.Deliver(s.Submit(TabAsk, "hello"), "hi")
	s.Submit(TabLab, "Estradiol 41")

	s.SelectPatient(&models.Patient{ID: "p1", Name: "Jane Doe"})

	v := s.View()
	if v.PatientID != "p1" || v.PatientName != "Jane Doe" {
		t.Errorf("view patient = %q %q", v.PatientID, v.PatientName)
	}
	for tab, tv := range v.Tabs {
		if len(tv.Messages) != 0 || tv.State != StateIdle {
			t.Errorf("tab %s not reset: %+v", tab, tv)
		}
	}
}

func TestSubmitReturnsSelectedPatient(t *testing.T) {
	ctrl := NewController(utils.NewNopLogger())
	s := ctrl.Create()

	if turn := s.Submit(TabAsk, "x"); turn.Patient != nil {
		t.Errorf("expected no patient, got %+v", turn.Patient)
	}

	s.SelectPatient(&models.Patient{ID: "p1"})
	if turn := s.Submit(TabAsk, "y"); turn.Patient == nil || turn.Patient.ID != "p1" {
		t.Errorf("patient = %+v", turn.Patient)
	}
}

func TestReplyAfterPatientSwitchIsDropped(t *testing.T) {
	ctrl := NewController(utils.NewNopLogger())
	s := ctrl.Create()
	s.SelectPatient(&models.Patient{ID: "p1", Name: "Jane Doe"})

	pending := s.Submit(TabLab, "Estradiol 41")
	failing := s.Submit(TabAsk, "TSH 1.8")

	s.SelectPatient(&models.Patient{ID: "p2", Name: "John Roe"})

	if s.Deliver(pending, "**Estradiol**\nBelow goal.") {
		t.Error("reply for the previous patient should be dropped")
	}
	if s.Fail(failing) {
		t.Error("failure for the previous patient should be dropped")
	}

	v := s.View()
	for tab, tv := range v.Tabs {
		if len(tv.Messages) != 0 || tv.State != StateIdle {
			t.Errorf("tab %s of new patient = %+v, want empty idle", tab, tv)
		}
	}

	current := s.Submit(TabLab, "Progesterone 6.8")
	if !s.Deliver(current, "**Progesterone**\nAt goal.") {
		t.Error("reply for the current patient should be recorded")
	}
	if n := len(s.View().Tabs[TabLab].Messages); n != 2 {
		t.Errorf("lab messages = %d, want 2", n)
	}
}

func TestControllerGet(t *testing.T) {
	ctrl := NewController(utils.NewNopLogger())
	s := ctrl.Create()

	got, err := ctrl.Get(s.ID)
	if err != nil || got != s {
		t.Fatalf("Get = %v, %v", got, err)
	}

	if err := ctrl.Delete(s.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := ctrl.Get(s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
	if err := ctrl.Delete(s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second Delete = %v, want ErrSessionNotFound", err)
	}
}

func TestParseTab(t *testing.T) {
	for in, want := range map[string]Tab{"": TabAsk, "ask": TabAsk, "lab": TabLab} {
		got, err := ParseTab(in)
		if err != nil || got != want {
			t.Errorf("ParseTab(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseTab("billing"); !errors.Is(err, ErrUnknownTab) {
		t.Errorf("err = %v, want ErrUnknownTab", err)
	}
}

func TestSessionConcurrentSubmissions(t *testing.T) {
	ctrl := NewController(utils.NewNopLogger())
	s := ctrl.Create()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Deliver(s.Submit(TabAsk, "q"), "a")
		}()
	}
	wg.Wait()

	if n := len(s.View().Tabs[TabAsk].Messages); n != 40 {
		t.Errorf("messages = %d, want 40", n)
	}
}
