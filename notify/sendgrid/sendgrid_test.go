package sendgrid

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
)

type fakeSender struct {
	status int
	err    error
	last   *mail.SGMailV3
}

func (f *fakeSender) SendWithContext(_ context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	f.last = email
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status}, nil
}

func TestConfigValidate(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty config")
	}
}

func TestSend(t *testing.T) {
	tests := []struct {
		name      string
		sender    *fakeSender
		delivered bool
		wantErr   bool
	}{
		{"accepted", &fakeSender{status: http.StatusAccepted}, true, false},
		{"rejected", &fakeSender{status: http.StatusBadRequest}, false, true},
		{"transport", &fakeSender{err: errors.New("dial tcp")}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := New(Config{APIKey: "k", From: "ops@example.com"}, withSender(tt.sender))
			if err != nil {
				t.Fatal(err)
			}
			ok, err := n.Send(context.Background(), "scholar@example.com", "You hit 90%!")
			if ok != tt.delivered || (err != nil) != tt.wantErr {
				t.Errorf("Send = %v, %v", ok, err)
			}
			if err != nil && !errors.Is(err, fieldwork.ErrNotificationFailed) {
				t.Errorf("err = %v, want ErrNotificationFailed", err)
			}
			if tt.sender.last == nil || tt.sender.last.Subject != "Garage Scholars update" {
				t.Errorf("unexpected email %+v", tt.sender.last)
			}
		})
	}
}
