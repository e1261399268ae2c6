package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToggle(t *testing.T) {
	on, err := ParseLikeToggle("liked")
	require.NoError(t, err)
	assert.Equal(t, ToggledOn, on)
	assert.Equal(t, int64(1), on.Delta())

	off, err := ParseLikeToggle("unliked")
	require.NoError(t, err)
	assert.Equal(t, ToggledOff, off)
	assert.Equal(t, int64(-1), off.Delta())

	_, err = ParseLikeToggle("subscribed")
	assert.Error(t, err)

	sub, err := ParseSubscriptionToggle("subscribed")
	require.NoError(t, err)
	assert.True(t, sub.On())
	_, err = ParseSubscriptionToggle("Subscribed")
	assert.Error(t, err)
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("")
	require.NoError(t, err)
	assert.Equal(t, DefaultOrder, o)

	o, err = ParseOrder("views:desc")
	require.NoError(t, err)
	assert.Equal(t, Order{Column: "views", Desc: true}, o)
	assert.Equal(t, "views:desc", o.String())

	o, err = ParseOrder("views")
	require.NoError(t, err)
	assert.Equal(t, Order{Column: "views", Desc: true}, o)

	o, err = ParseOrder("title:asc")
	require.NoError(t, err)
	assert.False(t, o.Desc)

	_, err = ParseOrder("password:asc")
	assert.Error(t, err)
	_, err = ParseOrder("views:sideways")
	assert.Error(t, err)
}

func TestProfileUpdateApply(t *testing.T) {
	p := Profile{Username: "old", Bio: "keep"}
	name := "new"
	u := ProfileUpdate{Username: &name}
	assert.False(t, u.Empty())
	u.Apply(&p)
	assert.Equal(t, "new", p.Username)
	assert.Equal(t, "keep", p.Bio)
	assert.True(t, ProfileUpdate{}.Empty())
}

func TestCatalogues(t *testing.T) {
	assert.True(t, ValidCategory("gaming"))
	assert.False(t, ValidCategory("Podcasts"))
	assert.True(t, ValidLanguage("Hindi"))

	m, ok := LookupPaymentMethod("gpay")
	require.True(t, ok)
	assert.Equal(t, "Google Pay", m.Name)
	_, ok = LookupPaymentMethod("cash")
	assert.False(t, ok)

	assert.True(t, TransactionDeposit.Credit())
	assert.False(t, TransactionWithdrawal.Credit())
}
