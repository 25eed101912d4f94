package server

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dcov/lib/store"
	"github.com/ValentinKolb/dcov/rpc/common"
)

func NewIStoreServerAdapter() IRPCServerAdapter {
	return &iStoreServerAdapterImpl{}
}

type iStoreServerAdapterImpl struct{}

func (adapter *iStoreServerAdapterImpl) Handle(req *common.Message, store store.IStore) *common.Message {
	// Check for nil store
	if store == nil {
		return common.NewErrorResponse("handler: store is nil")
	}

	// Handle different message types
	switch req.MsgType {
	case common.MsgTKVSet:
		err := store.Set(req.Key, req.Value)
		return common.NewSetResponse(err)
	case common.MsgTKVSetE:
		err := store.SetE(req.Key, req.Value, req.ExpireIn)
		return common.NewSetEResponse(err)
	case common.MsgTKVSetEIfUnset:
		ok, err := store.SetEIfUnset(req.Key, req.Value, req.ExpireIn)
		return common.NewSetEIfUnsetResponse(ok, err)
	case common.MsgTKVCompareAndSwap:
		ok, err := store.CompareAndSwap(req.Key, req.ExpectedOld(), req.Value, req.ExpireIn)
		return common.NewCompareAndSwapResponse(ok, err)
	case common.MsgTKVDelete:
		err := store.Delete(req.Key)
		return common.NewDeleteResponse(err)
	case common.MsgTKVGet:
		val, ok, err := store.Get(req.Key)
		return common.NewGetResponse(val, ok, err)
	case common.MsgTKVTTL:
		ttl, err := store.TTL(req.Key)
		return common.NewTTLResponse(ttl, err)
	case common.MsgTKVKeys:
		keys, err := store.Keys(req.Key)
		return common.NewKeysResponse(keys, err)
	case common.MsgTKVDBInfo:
		info, err := store.GetDBInfo()
		if err != nil {
			return common.NewDBInfoResponse(nil, err)
		}
		encoded, err := json.Marshal(info)
		return common.NewDBInfoResponse(encoded, err)
	default:
		return common.NewErrorResponse(
			fmt.Sprintf("RPC IStoreAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}
