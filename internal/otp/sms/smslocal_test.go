package sms

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendOTP(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewSMSLocalClient("key-1", srv.URL, "")
	if err := c.SendOTP("919876543210", "123456"); err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	if gotAuth != "key-1" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody["numbers"] != "919876543210" || gotBody["variables"] != "123456" || gotBody["route"] != "otp" {
		t.Errorf("request body = %v", gotBody)
	}
}

func TestSendOTP_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewSMSLocalClient("key-1", srv.URL, "")
	if err := c.SendOTP("919876543210", "123456"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestSendOTP_MissingKey(t *testing.T) {
	c := NewSMSLocalClient("", "", "")
	if err := c.SendOTP("919876543210", "123456"); err == nil {
		t.Fatal("expected error when API key is empty")
	}
}
