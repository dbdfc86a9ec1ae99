package mirror

import "context"

// Disabled is a Calendar that mirrors nothing.
type Disabled struct{}

func (Disabled) Name() string { return BackendNone }

func (Disabled) Create(context.Context, Event) error { return ErrDisabled }

func (Disabled) Update(context.Context, Locator, Event) error { return ErrDisabled }

func (Disabled) Delete(context.Context, Locator) error { return ErrDisabled }
