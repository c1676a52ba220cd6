package config

import (
	"errors"
	"testing"

	"github.com/MrWong99/roomguard/pkg/provider/stt"
	sttmock "github.com/MrWong99/roomguard/pkg/provider/stt/mock"
)

func TestRegistryCreate(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.RegisterSTT("mock", func(entry ProviderEntry) (stt.Transcriber, error) {
		return &sttmock.Transcriber{}, nil
	})

	tr, err := r.CreateSTT(ProviderEntry{Name: "mock"})
	if err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}
	if tr == nil {
		t.Fatal("CreateSTT returned nil transcriber")
	}
}

func TestRegistryUnregistered(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if _, err := r.CreateSTT(ProviderEntry{Name: "ghost"}); !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("CreateSTT error = %v, want ErrProviderNotRegistered", err)
	}
	if _, err := r.CreateTTS(ProviderEntry{Name: "ghost"}); !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("CreateTTS error = %v, want ErrProviderNotRegistered", err)
	}
	if _, err := r.CreateLLM(ProviderEntry{Name: "ghost"}); !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("CreateLLM error = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistryOverwrite(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	first := &sttmock.Transcriber{}
	second := &sttmock.Transcriber{}
	r.RegisterSTT("mock", func(ProviderEntry) (stt.Transcriber, error) { return first, nil })
	r.RegisterSTT("mock", func(ProviderEntry) (stt.Transcriber, error) { return second, nil })

	tr, err := r.CreateSTT(ProviderEntry{Name: "mock"})
	if err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}
	if tr != second {
		t.Error("later registration should win")
	}
}
