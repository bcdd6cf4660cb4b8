package secrets_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/example/graph-notifier/internal/faults"
	"github.com/example/graph-notifier/internal/secrets"
)

func TestVaultStoreReturnsSecret(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value":"sp-p4ssw0rd","id":"https://vault/secrets/sp-secret"}`))
	}))
	defer server.Close()

	store, err := secrets.NewVaultStore(server.URL, zerolog.Nop(), secrets.WithVaultAuthorization("ambient-token"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	value, err := store.GetSecret(context.Background(), "sp-secret")
	if err != nil {
		t.Fatalf("expected secret, got %v", err)
	}
	if value != "sp-p4ssw0rd" {
		t.Fatalf("unexpected secret value %q", value)
	}
	if gotPath != "/secrets/sp-secret" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer ambient-token" {
		t.Fatalf("unexpected authorization header %q", gotAuth)
	}
}

func TestVaultStoreNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"SecretNotFound"}}`))
	}))
	defer server.Close()

	store, err := secrets.NewVaultStore(server.URL, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = store.GetSecret(context.Background(), "missing")
	if !errors.Is(err, faults.ErrCredential) {
		t.Fatalf("expected credential fault, got %v", err)
	}
	if !errors.Is(err, secrets.ErrSecretNotFound) {
		t.Fatalf("expected ErrSecretNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "SecretNotFound") {
		t.Fatalf("expected vault diagnostics preserved, got %v", err)
	}
}

func TestVaultStoreForbiddenKeepsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":"Forbidden","message":"caller lacks secret get permission"}}`))
	}))
	defer server.Close()

	store, err := secrets.NewVaultStore(server.URL, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = store.GetSecret(context.Background(), "sp-secret")
	if !errors.Is(err, faults.ErrCredential) {
		t.Fatalf("expected credential fault, got %v", err)
	}
	if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "lacks secret get permission") {
		t.Fatalf("expected diagnostics in error, got %v", err)
	}
}

func TestVaultStoreEmptyValue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"value":""}`))
	}))
	defer server.Close()

	store, err := secrets.NewVaultStore(server.URL, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := store.GetSecret(context.Background(), "sp-secret"); !errors.Is(err, faults.ErrCredential) {
		t.Fatalf("expected credential fault for empty value, got %v", err)
	}
}

func TestStaticStore(t *testing.T) {
	store := secrets.NewStaticStore(map[string]string{"sp-secret": "value"})

	value, err := store.GetSecret(context.Background(), "sp-secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "value" {
		t.Fatalf("unexpected value %q", value)
	}

	if _, err := store.GetSecret(context.Background(), "other"); !errors.Is(err, secrets.ErrSecretNotFound) {
		t.Fatalf("expected ErrSecretNotFound, got %v", err)
	}
}
