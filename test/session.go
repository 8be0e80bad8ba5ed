package test

import (
	"testing"
	"time"

	"github.com/raulk/clock"
	"github.com/samber/mo"
	"go.uber.org/zap"

	"sagekit/resource"
	"sagekit/session"
)

const (
	Region = "us-west-2"
	Bucket = "sagemaker-us-west-2-123456789012"
	Role   = "arn:aws:iam::123456789012:role/SageMakerRole"
)

// Env bundles a test session with handles on its fakes.
type Env struct {
	Session  session.Session
	Platform *FakePlatform
	Storage  *FakeStorage
	Clock    *clock.Mock
}

// Session returns a session over a fake platform and fake storage, with a
// sqlite ledger and a mock clock set to 2018-11-05 10:30:15.123 UTC.
func Session(t *testing.T) Env {
	clk := clock.NewMock()
	clk.Set(time.Date(2018, 11, 5, 10, 30, 15, 123e6, time.UTC))
	platform := NewFakePlatform()
	storage := NewFakeStorage()
	return Env{
		Session: session.Session{
			Region:        Region,
			DefaultBucket: Bucket,
			Role:          Role,
			Scope:         resource.NewScope("test"),
			Platform:      platform,
			Storage:       storage,
			Ledger:        mo.Some(Ledger(t)),
			Clock:         clk,
			Logger:        zap.NewNop(),
		},
		Platform: platform,
		Storage:  storage,
		Clock:    clk,
	}
}
