package transporttest_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavelet-io/wavelet-go/pkg/transport"
	"github.com/wavelet-io/wavelet-go/pkg/transport/transporttest"
)

func TestScriptedResponseDeliversSynchronously(t *testing.T) {
	f := transporttest.New()
	var got transport.CallbackResult
	f.RegisterCallback(func(r transport.CallbackResult) { got = r })

	f.ScriptNext(transport.CallbackResult{Result: transport.ResultOK, Cursor: transport.Cursor{Timetoken: "100"}})
	require.NoError(t, f.SubscribeV2(context.Background(), "ch1", "", transport.Cursor{}, "", 0, nil))

	assert.Equal(t, transport.TransactionSubscribe, got.Kind)
	assert.Equal(t, "100", got.Cursor.Timetoken)
	require.Len(t, f.Calls(), 1)
	assert.Equal(t, "ch1", f.Calls()[0].Channels)
}

func TestCancelInvokesCallbackWithCancelledResult(t *testing.T) {
	f := transporttest.New()
	var got transport.CallbackResult
	f.RegisterCallback(func(r transport.CallbackResult) { got = r })

	f.Cancel()
	assert.Equal(t, transport.ResultCancelled, got.Result)
	assert.Equal(t, 1, f.CancelCount())
}

func TestCanStartTransactionDefaultsTrueAndIsSettable(t *testing.T) {
	f := transporttest.New()
	assert.True(t, f.CanStartTransaction())
	f.SetCanStartTransaction(false)
	assert.False(t, f.CanStartTransaction())
}

func TestCursorIsInitial(t *testing.T) {
	assert.True(t, transport.Cursor{Timetoken: "0"}.IsInitial())
	assert.True(t, transport.Cursor{}.IsInitial())
	assert.False(t, transport.Cursor{Timetoken: "1500000"}.IsInitial())
}
