package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionProposal(t *testing.T) {
	assert.True(t, CanTransitionProposal(ProposalStatusPending, ProposalStatusAccepted))
	assert.True(t, CanTransitionProposal(ProposalStatusPending, ProposalStatusRejected))

	// Resolved proposals are terminal.
	assert.False(t, CanTransitionProposal(ProposalStatusAccepted, ProposalStatusRejected))
	assert.False(t, CanTransitionProposal(ProposalStatusAccepted, ProposalStatusPending))
	assert.False(t, CanTransitionProposal(ProposalStatusRejected, ProposalStatusAccepted))
	assert.False(t, CanTransitionProposal(ProposalStatusRejected, ProposalStatusPending))
}

func TestProposalResolvedType(t *testing.T) {
	explicit := ProposalTypeChangeOrder
	p := Proposal{Type: &explicit, Tags: JSONMap{"intent": ProposalTypeNewOrder}}
	assert.Equal(t, ProposalTypeChangeOrder, p.ResolvedType())

	// Older rows carry the type only in tags.
	p = Proposal{Tags: JSONMap{"intent": ProposalTypeNewOrder}}
	assert.Equal(t, ProposalTypeNewOrder, p.ResolvedType())

	empty := ""
	p = Proposal{Type: &empty, Tags: JSONMap{"intent": ProposalTypeCancelOrder}}
	assert.Equal(t, ProposalTypeCancelOrder, p.ResolvedType())

	p = Proposal{Tags: JSONMap{}}
	assert.Equal(t, "", p.ResolvedType())
}

func TestProposalIsRecurring(t *testing.T) {
	p := Proposal{Tags: JSONMap{"order_frequency": OrderFrequencyRecurring}}
	assert.True(t, p.IsRecurring())

	p = Proposal{Tags: JSONMap{"order_frequency": OrderFrequencyOneTime}}
	assert.False(t, p.IsRecurring())

	p = Proposal{Tags: JSONMap{}}
	assert.False(t, p.IsRecurring())
}

func TestProposalLineQuantity(t *testing.T) {
	// Values unmarshalled from jsonb arrive as float64.
	l := ProposalLine{ProposedValues: JSONMap{"quantity": float64(5)}}
	assert.Equal(t, 5, l.Quantity())

	l = ProposalLine{ProposedValues: JSONMap{"quantity": 3}}
	assert.Equal(t, 3, l.Quantity())

	l = ProposalLine{ProposedValues: JSONMap{}}
	assert.Equal(t, 0, l.Quantity())
}

func TestJSONMapRoundTrip(t *testing.T) {
	m := JSONMap{"intent": "change_order", "count": float64(2)}

	value, err := m.Value()
	assert.NoError(t, err)

	var scanned JSONMap
	assert.NoError(t, scanned.Scan(value))
	assert.Equal(t, m, scanned)

	var fromNil JSONMap
	assert.NoError(t, fromNil.Scan(nil))
	assert.Empty(t, fromNil)
}
