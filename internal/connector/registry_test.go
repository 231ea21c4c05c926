package connector_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/riskstream/internal/connector"
)

type stubPoller struct{}

func (stubPoller) Poll(ctx context.Context) (connector.PollSummary, error) {
	return connector.PollSummary{}, nil
}

func TestRegistryBuildUsesRegisteredFactory(t *testing.T) {
	r := connector.NewRegistry()
	r.Register("stub", func(spec connector.Spec) (connector.Poller, error) {
		return stubPoller{}, nil
	})

	p, err := r.Build(connector.Spec{Type: "stub"})
	require.NoError(t, err)
	assert.NotNil(t, p)

	assert.ElementsMatch(t, []string{"stub"}, r.List())
}

func TestRegistryBuildUnknownTypeErrors(t *testing.T) {
	r := connector.NewRegistry()
	_, err := r.Build(connector.Spec{Type: "missing"})
	assert.Error(t, err)
}

func TestRegistryClearRemovesFactories(t *testing.T) {
	r := connector.NewRegistry()
	r.Register("stub", func(spec connector.Spec) (connector.Poller, error) { return stubPoller{}, nil })
	r.Clear()
	assert.Empty(t, r.List())
}
