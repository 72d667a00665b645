package inject

import (
	"context"

	"github.com/viam-labs/keydrive/components/base"
)

// Base is an injected base.
type Base struct {
	base.Base
	ApplyDriveFunc func(ctx context.Context, dir base.Direction, duty uint8) error
	StopFunc       func(ctx context.Context) error
	CloseFunc      func(ctx context.Context) error
}

// ApplyDrive calls the injected ApplyDrive or the real version.
func (b *Base) ApplyDrive(ctx context.Context, dir base.Direction, duty uint8) error {
	if b.ApplyDriveFunc == nil {
		return b.Base.ApplyDrive(ctx, dir, duty)
	}
	return b.ApplyDriveFunc(ctx, dir, duty)
}

// Stop calls the injected Stop or the real version.
func (b *Base) Stop(ctx context.Context) error {
	if b.StopFunc == nil {
		return b.Base.Stop(ctx)
	}
	return b.StopFunc(ctx)
}

// Close calls the injected Close or the real version.
func (b *Base) Close(ctx context.Context) error {
	if b.CloseFunc == nil {
		return b.Base.Close(ctx)
	}
	return b.CloseFunc(ctx)
}
