package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(
		WithEnvFile(""),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{
			"API_FIREBASE_PROJECT_ID": "aurelle-dev",
		}),
	)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Fatalf("expected default read timeout, got %s", cfg.Server.ReadTimeout)
	}
	if cfg.Firestore.ProjectID != "aurelle-dev" {
		t.Fatalf("expected firestore project inherited from firebase, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.PubSub.ProjectID != "aurelle-dev" {
		t.Fatalf("expected pubsub project inherited from firebase, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.Notifications.TopicID != "order-notifications" {
		t.Fatalf("expected default notification topic, got %s", cfg.Notifications.TopicID)
	}
	if !cfg.Features.EnableCoupons {
		t.Fatalf("expected coupons enabled by default")
	}
	if cfg.Checkout.ShippingFlatRate != 900 {
		t.Fatalf("expected default flat rate 900, got %d", cfg.Checkout.ShippingFlatRate)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(
		WithEnvFile(""),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{
			"API_FIREBASE_PROJECT_ID":         "aurelle-prod",
			"API_FIRESTORE_PROJECT_ID":        "aurelle-data",
			"API_SERVER_PORT":                 "9090",
			"API_SERVER_READ_TIMEOUT":         "5s",
			"API_NOTIFICATIONS_TOPIC":         "custom-topic",
			"API_CHECKOUT_SHIPPING_FLAT_RATE": "1500",
			"API_CHECKOUT_FREE_SHIPPING_OVER": "50000",
			"API_FEATURE_COUPONS":             "off",
		}),
	)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Fatalf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Fatalf("expected 5s read timeout, got %s", cfg.Server.ReadTimeout)
	}
	if cfg.Firestore.ProjectID != "aurelle-data" {
		t.Fatalf("expected explicit firestore project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.Notifications.TopicID != "custom-topic" {
		t.Fatalf("expected custom topic, got %s", cfg.Notifications.TopicID)
	}
	if cfg.Checkout.FreeShippingOver != 50000 {
		t.Fatalf("expected free shipping threshold 50000, got %d", cfg.Checkout.FreeShippingOver)
	}
	if cfg.Features.EnableCoupons {
		t.Fatalf("expected coupons disabled")
	}
}

func TestLoadMissingProject(t *testing.T) {
	_, err := Load(WithEnvFile(""), WithoutSystemEnv(), WithEnvMap(map[string]string{}))
	if err == nil {
		t.Fatalf("expected validation error")
	}
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	found := false
	for _, field := range validation.Fields() {
		if field == "Firebase.ProjectID" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected Firebase.ProjectID in missing fields, got %v", validation.Fields())
	}
}
