package security

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrincipalFrom(t *testing.T) {
	_, ok := PrincipalFrom(context.Background())
	assert.False(t, ok)

	alice := &User{Username: "alice"}
	ctx := WithPrincipal(context.Background(), alice)
	p, ok := PrincipalFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "alice", p.Name())

	_, ok = PrincipalFrom(WithPrincipal(ctx, nil))
	assert.False(t, ok)
}

func TestWithPrincipal_TypedNilClears(t *testing.T) {
	ctx := WithPrincipal(context.Background(), &User{Username: "alice"})
	p, ok := PrincipalFrom(WithPrincipal(ctx, (*User)(nil)))
	assert.False(t, ok)
	assert.Nil(t, p)

	err := RunAs(ctx, (*User)(nil), func(ctx context.Context) error {
		_, ok := PrincipalFrom(ctx)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestRunAs_ScopedImpersonation(t *testing.T) {
	alice := &User{Username: "alice"}
	system := &User{Username: "system", Admin: true}
	ctx := WithPrincipal(context.Background(), alice)

	var inside string
	err := RunAs(ctx, system, func(ctx context.Context) error {
		p, _ := PrincipalFrom(ctx)
		inside = p.Name()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "system", inside)

	p, _ := PrincipalFrom(ctx)
	assert.Equal(t, "alice", p.Name())
}

func TestRunAs_PropagatesErrorsAndPanics(t *testing.T) {
	ctx := WithPrincipal(context.Background(), &User{Username: "alice"})
	boom := errors.New("boom")

	err := RunAs(ctx, &User{Username: "bob"}, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	assert.PanicsWithValue(t, "bad", func() {
		_ = RunAs(ctx, &User{Username: "bob"}, func(context.Context) error { panic("bad") })
	})
	p, _ := PrincipalFrom(ctx)
	assert.Equal(t, "alice", p.Name())

	n, err := RunAsValue(ctx, &User{Username: "bob"}, func(ctx context.Context) (int, error) {
		p, _ := PrincipalFrom(ctx)
		return len(p.Name()), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
