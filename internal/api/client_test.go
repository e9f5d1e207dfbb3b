package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"groupgate/internal/api"
)

func jsonHandler(t *testing.T, status int, body any) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(body); err != nil {
			t.Error(err)
		}
	}
}

func TestSendCode(t *testing.T) {
	ts := httptest.NewServer(jsonHandler(t, http.StatusOK, map[string]any{
		"success":       true,
		"phoneCodeHash": "hash-1",
		"clientId":      "abc",
	}))
	defer ts.Close()

	res, err := api.New(ts.URL).SendCode(context.Background(), "+15550001111")
	if err != nil {
		t.Fatalf("SendCode() error: %v", err)
	}
	if res.PhoneCodeHash != "hash-1" {
		t.Errorf("PhoneCodeHash = %q, want hash-1", res.PhoneCodeHash)
	}
	if res.ClientID != "abc" {
		t.Errorf("ClientID = %q, want abc", res.ClientID)
	}
}

func TestSendCode_Failure(t *testing.T) {
	ts := httptest.NewServer(jsonHandler(t, http.StatusInternalServerError, map[string]any{
		"success": false,
		"error":   "PHONE_NUMBER_INVALID",
	}))
	defer ts.Close()

	_, err := api.New(ts.URL).SendCode(context.Background(), "bogus")
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *api.Error", err)
	}
	if apiErr.Message != "PHONE_NUMBER_INVALID" {
		t.Errorf("Message = %q, want the server-supplied text", apiErr.Message)
	}
}

func TestVerifyCode_RequiresPassword(t *testing.T) {
	ts := httptest.NewServer(jsonHandler(t, http.StatusBadRequest, map[string]any{
		"success":          false,
		"error":            "two-step verification password needed",
		"requiresPassword": true,
	}))
	defer ts.Close()

	_, err := api.New(ts.URL).VerifyCode(context.Background(), api.VerifyCodeParams{
		Phone: "+1", PhoneCodeHash: "h", Code: "1",
	})
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *api.Error", err)
	}
	if !apiErr.RequiresPassword {
		t.Error("RequiresPassword not set")
	}
}

func TestVerifyCode_Success(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Error(err)
		}
		jsonHandler(t, http.StatusOK, map[string]any{
			"success":       true,
			"sessionString": "token",
		})(w, r)
	}))
	defer ts.Close()

	token, err := api.New(ts.URL).VerifyCode(context.Background(), api.VerifyCodeParams{
		Phone: "+1", PhoneCodeHash: "h", Code: "1", ClientID: "abc",
	})
	if err != nil {
		t.Fatalf("VerifyCode() error: %v", err)
	}
	if token != "token" {
		t.Errorf("token = %q, want token", token)
	}
	if got["clientId"] != "abc" {
		t.Errorf("request clientId = %v, want abc", got["clientId"])
	}
}

func TestCreateGroup(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Error(err)
		}
		jsonHandler(t, http.StatusOK, map[string]any{
			"success":        true,
			"message":        "created",
			"membersAdded":   1,
			"totalRequested": 2,
			"failedNumbers":  []string{"+10000000002"},
		})(w, r)
	}))
	defer ts.Close()

	res, err := api.New(ts.URL).CreateGroup(context.Background(), api.CreateGroupParams{
		Session: "sess",
		Name:    "Trip",
		Numbers: []string{"+10000000001", "+10000000002"},
		Image:   []byte{0x01},
	})
	if err != nil {
		t.Fatalf("CreateGroup() error: %v", err)
	}
	if res.MembersAdded != 1 || res.TotalRequested != 2 {
		t.Errorf("counts = %d/%d, want 1/2", res.MembersAdded, res.TotalRequested)
	}
	if len(res.FailedNumbers) != 1 {
		t.Errorf("FailedNumbers = %v, want one entry", res.FailedNumbers)
	}
	if got["groupImageBase64"] != "AQ==" {
		t.Errorf("groupImageBase64 = %v, want AQ==", got["groupImageBase64"])
	}
}

func TestCreateGroup_FailureCarriesNumbers(t *testing.T) {
	ts := httptest.NewServer(jsonHandler(t, http.StatusBadRequest, map[string]any{
		"success":       false,
		"error":         "none of the numbers belong to a telegram account",
		"failedNumbers": []string{"+1", "+2"},
	}))
	defer ts.Close()

	_, err := api.New(ts.URL).CreateGroup(context.Background(), api.CreateGroupParams{
		Session: "sess", Name: "Trip", Numbers: []string{"+1", "+2"},
	})
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *api.Error", err)
	}
	if len(apiErr.FailedNumbers) != 2 {
		t.Errorf("FailedNumbers = %v, want both", apiErr.FailedNumbers)
	}
}

func TestHealth(t *testing.T) {
	ts := httptest.NewServer(jsonHandler(t, http.StatusOK, map[string]any{"status": "ok"}))
	defer ts.Close()

	if err := api.New(ts.URL).Health(context.Background()); err != nil {
		t.Errorf("Health() error: %v", err)
	}
}

func TestHealth_Down(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer ts.Close()

	if err := api.New(ts.URL).Health(context.Background()); err == nil {
		t.Error("expected an error for a failing probe")
	}
}
