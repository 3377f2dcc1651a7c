package chainclient

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ourtypes "arbitrage-sub000/pkg/types"
)

func TestCallArgsTranslatesToEthereumCallMsg(t *testing.T) {
	addr := common.HexToAddress("0x01")
	msg := CallMsg{To: addr, Data: []byte{0xde, 0xad}}
	got := callArgs(msg)
	require.NotNil(t, got.To)
	assert.Equal(t, addr, *got.To)
	assert.Equal(t, []byte{0xde, 0xad}, got.Data)
}

func TestToFilterQueryCopiesFields(t *testing.T) {
	f := LogFilter{
		Addresses: []common.Address{common.HexToAddress("0x02")},
		Topics:    [][]common.Hash{{common.HexToHash("0x03")}},
	}
	got := toFilterQuery(f)
	assert.Equal(t, f.Addresses, got.Addresses)
	assert.Equal(t, f.Topics, got.Topics)
}

func TestHexStringToBytesEmptyReturnsNil(t *testing.T) {
	assert.Nil(t, hexStringToBytes(""))
}

func TestHexStringToBytesDecodesHex(t *testing.T) {
	assert.Equal(t, []byte{0xab, 0xcd}, hexStringToBytes("0xabcd"))
}

type fakeRPCError struct {
	code int
}

func (e *fakeRPCError) Error() string   { return "rpc error" }
func (e *fakeRPCError) ErrorCode() int  { return e.code }

func TestClassifyCallErrorNilPassesThrough(t *testing.T) {
	assert.NoError(t, classifyCallError("ep", nil))
}

func TestClassifyCallErrorRPCRevertCodeIsPermanent(t *testing.T) {
	err := classifyCallError("ep", &fakeRPCError{code: 3})
	var perm *ourtypes.PermanentProtocolError
	assert.ErrorAs(t, err, &perm)
}

func TestClassifyCallErrorRPCProtocolRangeIsPermanent(t *testing.T) {
	err := classifyCallError("ep", &fakeRPCError{code: -32000})
	var perm *ourtypes.PermanentProtocolError
	assert.ErrorAs(t, err, &perm)
}

func TestClassifyCallErrorMessageContainingRevertIsPermanent(t *testing.T) {
	err := classifyCallError("ep", errors.New("execution reverted: insufficient balance"))
	var perm *ourtypes.PermanentProtocolError
	assert.ErrorAs(t, err, &perm)
}

func TestClassifyCallErrorOtherwiseIsTransient(t *testing.T) {
	err := classifyCallError("ep", errors.New("connection reset by peer"))
	var transient *ourtypes.TransientNetworkError
	assert.ErrorAs(t, err, &transient)
}
