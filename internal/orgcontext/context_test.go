package orgcontext

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
)

func TestOrgIDFromContext(t *testing.T) {
	_, ok := OrgIDFromContext(context.Background())
	assert.False(t, ok)

	_, ok = OrgIDFromContext(WithOrgID(context.Background(), 0))
	assert.False(t, ok, "zero org must not count as a tenant")

	id, ok := OrgIDFromContext(WithOrgID(context.Background(), 77))
	assert.True(t, ok)
	assert.Equal(t, snowflake.ID(77), id)

	ctx := context.WithValue(context.Background(), OrgContextKey{}, "1234")
	id, ok = OrgIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, snowflake.ID(1234), id)
}

func TestActorIDFromContext(t *testing.T) {
	assert.Equal(t, "", ActorIDFromContext(context.Background()))
	assert.Equal(t, "cashier-1", ActorIDFromContext(WithActorID(context.Background(), " cashier-1 ")))
}
