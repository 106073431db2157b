package models

import (
	"testing"
)

func TestMessageRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     *MessageRequest
		wantErr bool
	}{
		{"empty question", &MessageRequest{Name: ""}, true},
		{"valid question", &MessageRequest{Name: "what is a goroutine?"}, false},
		{"valid with session", &MessageRequest{Name: "and channels?", SessionID: "s1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
