package tenantregistry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hippos/internal/domain/ids"
	"hippos/internal/infrastructure/tenantregistry"
)

func TestObserve_DeduplicatesAndList(t *testing.T) {
	r := tenantregistry.New()
	r.Observe(ids.TenantID("a"))
	r.Observe(ids.TenantID("b"))
	r.Observe(ids.TenantID("a"))

	tenants, err := r.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, tenants, 2)
}

func TestObserve_IgnoresZeroTenant(t *testing.T) {
	r := tenantregistry.New()
	r.Observe(ids.TenantID(""))

	tenants, err := r.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tenants)
}
